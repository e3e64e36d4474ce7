package models

// ゲームの種類
const (
	GameTypePublic       = "Public"
	GameTypePrivate      = "Private"
	GameTypeSingleplayer = "Singleplayer"
)

// GameConfig はセッションの設定。作成後に変更できるのはマップ・難易度・ボット関連・公開設定のみ
type GameConfig struct {
	GameMap      string `json:"gameMap" validate:"required,max=64"`
	Difficulty   string `json:"difficulty" validate:"required,oneof=Easy Medium Hard Impossible"`
	GameType     string `json:"gameType" validate:"required,oneof=Public Private Singleplayer"`
	DisableBots  bool   `json:"disableBots"`
	DisableNPCs  bool   `json:"disableNPCs"`
	CreativeMode bool   `json:"creativeMode"`
}

// GameConfigUpdate は PUT /private_lobby/:id のボディ。nil のフィールドは変更しない
type GameConfigUpdate struct {
	GameMap      *string `json:"gameMap" binding:"omitempty,max=64"`
	Difficulty   *string `json:"difficulty" binding:"omitempty,oneof=Easy Medium Hard Impossible"`
	DisableBots  *bool   `json:"disableBots"`
	DisableNPCs  *bool   `json:"disableNPCs"`
	CreativeMode *bool   `json:"creativeMode"`
	IsPublic     *bool   `json:"isPublic"`
}

// DefaultGameConfig は新規ロビーの初期設定
func DefaultGameConfig(gameType string) GameConfig {
	return GameConfig{
		GameMap:    "World",
		Difficulty: "Medium",
		GameType:   gameType,
	}
}
