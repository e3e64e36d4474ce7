package utils

import (
	"gateserver/models"

	"go.uber.org/zap"
)

// Slog は構造化ログを1件出力する。FATAL でもプロセスは終了させない
func Slog(logger *zap.Logger, entry models.LogEntry) {
	fields := []zap.Field{
		zap.String("logKey", entry.LogKey),
		zap.String("severity", string(entry.Severity)),
	}
	if entry.ClientID != "" {
		fields = append(fields, zap.String("clientID", entry.ClientID))
	}
	if entry.GameID != "" {
		fields = append(fields, zap.String("gameID", entry.GameID))
	}
	if entry.PersistentID != "" {
		fields = append(fields, zap.String("persistentID", entry.PersistentID))
	}

	switch entry.Severity {
	case models.LogSeverityDebug:
		logger.Debug(entry.Msg, fields...)
	case models.LogSeverityWarn:
		logger.Warn(entry.Msg, fields...)
	case models.LogSeverityError:
		logger.Error(entry.Msg, fields...)
	case models.LogSeverityFatal:
		logger.Error(entry.Msg, append(fields, zap.Bool("fatal", true))...)
	default:
		logger.Info(entry.Msg, fields...)
	}
}
