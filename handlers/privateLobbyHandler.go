package handlers

import (
	"errors"
	"net/http"

	"gateserver/game"
	"gateserver/middlewares"
	"gateserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreatePrivateLobby はプライベートロビーを作成する。ホストトークンが有効なら一緒に返す
func CreatePrivateLobby(c *gin.Context, registry game.Registry, tokens *middlewares.HostTokens, logger *zap.Logger) {
	id := registry.CreatePrivateGame()
	response := gin.H{"id": id}

	if tokens.Enabled() {
		token, err := tokens.Generate(id)
		if err != nil {
			logger.Error("Host token generation error", zap.String("gameID", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate host token"})
			return
		}
		response["token"] = token
	}

	logger.Info("Private lobby created", zap.String("gameID", id))
	c.JSON(http.StatusOK, response)
}

// GetPrivateLobby はロビーの現在の設定を返す
func GetPrivateLobby(c *gin.Context, registry game.Registry) {
	info, ok := registry.Game(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         info.ID,
		"isPublic":   info.IsPublic,
		"phase":      info.Phase,
		"numClients": info.NumClients(),
		"gameConfig": info.Config,
	})
}

// StartPrivateLobby はプライベートロビーのゲームを開始する
func StartPrivateLobby(c *gin.Context, registry game.Registry, logger *zap.Logger) {
	id := c.Param("id")
	if err := registry.StartPrivateGame(id); err != nil {
		respondRegistryError(c, id, err, logger)
		return
	}
	logger.Info("Private lobby started", zap.String("gameID", id))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdatePrivateLobby はロビーの設定を部分的に更新する。ボディにないフィールドは変更しない
func UpdatePrivateLobby(c *gin.Context, registry game.Registry, logger *zap.Logger) {
	id := c.Param("id")

	var update models.GameConfigUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		logger.Info("Request binding error", zap.String("gameID", id), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lobby configuration"})
		return
	}

	if err := registry.UpdateGameConfig(id, update); err != nil {
		respondRegistryError(c, id, err, logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// respondRegistryError はレジストリのエラーをHTTPステータスに変換する
func respondRegistryError(c *gin.Context, id string, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
	case errors.Is(err, game.ErrGameNotInLobby):
		c.JSON(http.StatusConflict, gin.H{"error": "Game already started"})
	case errors.Is(err, game.ErrGameNotPrivate):
		c.JSON(http.StatusForbidden, gin.H{"error": "Game is not a private lobby"})
	default:
		logger.Error("Registry operation failed", zap.String("gameID", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
