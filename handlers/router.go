package handlers

import (
	"net/http"
	"time"

	"gateserver/archive"
	"gateserver/game"
	"gateserver/middlewares"
	"gateserver/scheduler"
	"gateserver/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies はルーティングに必要なコンポーネント
type Dependencies struct {
	Registry       game.Registry
	Directory      *scheduler.LobbyDirectory
	Intake         *archive.Intake
	Ingress        http.Handler
	Tokens         *middlewares.HostTokens
	Metrics        http.Handler // nil なら /metrics を公開しない
	StaticDir      string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter は全てのHTTPルートを登録したルーターを返す
func NewRouter(deps Dependencies) *gin.Engine {
	logger := deps.Logger
	router := gin.New()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))
	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	hostOnly := middlewares.RequireHostToken(deps.Tokens, logger)

	router.GET("/lobbies", func(c *gin.Context) {
		ListLobbies(c, deps.Directory)
	})
	router.POST("/private_lobby", func(c *gin.Context) {
		CreatePrivateLobby(c, deps.Registry, deps.Tokens, logger)
	})
	router.GET("/private_lobby/:id", func(c *gin.Context) {
		GetPrivateLobby(c, deps.Registry)
	})
	router.PUT("/private_lobby/:id", hostOnly, func(c *gin.Context) {
		UpdatePrivateLobby(c, deps.Registry, logger)
	})
	router.POST("/start_private_lobby/:id", hostOnly, func(c *gin.Context) {
		StartPrivateLobby(c, deps.Registry, logger)
	})
	router.GET("/lobby/:id/exists", func(c *gin.Context) {
		LobbyExists(c, deps.Registry)
	})
	router.GET("/lobby/:id", func(c *gin.Context) {
		LobbyPlayers(c, deps.Registry)
	})
	router.POST("/archive_singleplayer_game", func(c *gin.Context) {
		ArchiveSingleplayerGame(c, deps.Intake, logger)
	})
	router.GET("/ws", gin.WrapH(deps.Ingress))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	router.NoRoute(func(c *gin.Context) {
		StaticFallback(c, deps.StaticDir, deps.Ingress)
	})

	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		config.AllowAllOrigins = true
		return config
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			config.AllowAllOrigins = true
			return config
		}
	}
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	return config
}
