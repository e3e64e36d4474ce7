package utils

import (
	"time"

	"gateserver/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PruneArchivedGames は保存期間を過ぎたゲーム記録を削除する
func PruneArchivedGames(db *gorm.DB, retention time.Duration, logger *zap.Logger) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := db.Where("ended_at < ?", cutoff).Delete(&models.ArchivedGame{})
	if result.Error != nil {
		logger.Error("期限切れのゲーム記録の削除に失敗しました", zap.Error(result.Error))
		return 0, result.Error
	}
	logger.Info("期限切れのゲーム記録の削除完了", zap.Int64("records_deleted", result.RowsAffected))
	return result.RowsAffected, nil
}

// CronCleaner はゲーム記録の定期クリーンナップを登録して開始する。呼び出し側が Stop する
func CronCleaner(db *gorm.DB, cfg models.ArchiveConfig, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(CronLogger(logger))))

	// "分 時 日 月 曜日"
	_, err := c.AddFunc(cfg.CleanupCron, func() {
		logger.Info("期限切れのゲーム記録を削除する処理を開始")
		PruneArchivedGames(db, cfg.Retention, logger)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}
