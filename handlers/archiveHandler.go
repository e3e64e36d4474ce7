package handlers

import (
	"errors"
	"io"
	"net/http"

	"gateserver/archive"
	"gateserver/gateway"
	"gateserver/models"
	"gateserver/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxRecordSize = 8 << 20

// ArchiveSingleplayerGame はシングルプレイの記録を受け取り、送信元のIPを付けて保存する
func ArchiveSingleplayerGame(c *gin.Context, intake *archive.Intake, logger *zap.Logger) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRecordSize))
	if err != nil {
		logger.Info("Failed to read game record", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game record format"})
		return
	}

	record, err := archive.DecodeGameRecord(body)
	if err != nil {
		logger.Info("Received malformed game record", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game record format"})
		return
	}

	err = intake.Archive(c.Request.Context(), record, gateway.RequestOrigin(c.Request))
	switch {
	case err == nil, errors.Is(err, archive.ErrDuplicateRecord):
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, archive.ErrRecordInFlight):
		// 先行リクエストの結果が出るまで再送してもらう
		c.JSON(http.StatusConflict, gin.H{"error": "Game record is being archived"})
	case errors.Is(err, archive.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Game record not found"})
	case errors.Is(err, archive.ErrInvalidRecord):
		logger.Info("Game record failed validation", zap.String("gameID", record.ID), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game record format"})
	default:
		utils.Slog(logger, models.LogEntry{
			LogKey:   "complete_single_player_game_record",
			Msg:      "Failed to archive game record: " + err.Error(),
			Severity: models.LogSeverityError,
			GameID:   record.ID,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive game record"})
	}
}
