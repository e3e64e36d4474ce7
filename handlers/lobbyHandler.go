package handlers

import (
	"net/http"

	"gateserver/game"
	"gateserver/models"
	"gateserver/scheduler"

	"github.com/gin-gonic/gin"
)

// ListLobbies は直近に公開されたロビー一覧をそのまま返す
func ListLobbies(c *gin.Context, directory *scheduler.LobbyDirectory) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", directory.Lobbies())
}

// LobbyExists はゲームIDが現在存在するかを返す
func LobbyExists(c *gin.Context, registry game.Registry) {
	c.JSON(http.StatusOK, gin.H{"exists": registry.HasActiveGame(c.Param("id"))})
}

// LobbyPlayers はゲームの参加者一覧を返す
func LobbyPlayers(c *gin.Context, registry game.Registry) {
	info, ok := registry.Game(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}
	players := info.Clients
	if players == nil {
		players = []models.PlayerInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"players": players})
}
