package models

import (
	"time"

	"gorm.io/gorm"
)

// ArchivedGame は永続化されたゲーム記録のテーブル
type ArchivedGame struct {
	gorm.Model
	GameID     string `gorm:"uniqueIndex;not null"`
	GameType   string `gorm:"not null"`
	GameMap    string `gorm:"not null"`
	NumPlayers int    `gorm:"not null"`
	NumTurns   int    `gorm:"not null;default:0"`
	Winner     string
	StartedAt  time.Time
	EndedAt    time.Time `gorm:"index"`
	Record     []byte    `gorm:"type:jsonb;not null"` // 記録全体のJSON
}
