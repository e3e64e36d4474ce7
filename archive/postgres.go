package archive

import (
	"context"
	"encoding/json"
	"time"

	"gateserver/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresSink はゲーム記録を archived_games テーブルに保存する
type PostgresSink struct {
	db *gorm.DB
}

func NewPostgresSink(db *gorm.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Archive(ctx context.Context, record *models.GameRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	row := toArchivedGame(record, data)
	// 同じゲームIDの記録は一度だけ保存する
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "game_id"}}, DoNothing: true}).
		Create(&row).Error
}

func toArchivedGame(record *models.GameRecord, data []byte) models.ArchivedGame {
	return models.ArchivedGame{
		GameID:     record.ID,
		GameType:   record.GameConfig.GameType,
		GameMap:    record.GameConfig.GameMap,
		NumPlayers: len(record.Players),
		NumTurns:   record.NumTurns,
		Winner:     record.Winner,
		StartedAt:  time.UnixMilli(record.StartTimestampMS).UTC(),
		EndedAt:    time.UnixMilli(record.EndTimestampMS).UTC(),
		Record:     data,
	}
}
