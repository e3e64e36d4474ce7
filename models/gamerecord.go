package models

// GameRecord はクライアントから送られる終了済みシングルプレイゲームの記録
type GameRecord struct {
	ID               string         `json:"id" validate:"required,max=64"`
	GameConfig       GameConfig     `json:"gameConfig" validate:"required"`
	Players          []PlayerRecord `json:"players" validate:"required,min=1,max=64,dive"`
	StartTimestampMS int64          `json:"startTimestampMS" validate:"required,gt=0"`
	EndTimestampMS   int64          `json:"endTimestampMS" validate:"required,gtefield=StartTimestampMS"`
	Date             string         `json:"date" validate:"required,datetime=2006-01-02"`
	NumTurns         int            `json:"num_turns" validate:"gte=0"`
	Turns            []TurnRecord   `json:"turns" validate:"dive"`
	Winner           string         `json:"winner,omitempty" validate:"omitempty,max=64"`
}

// PlayerRecord のIPはサーバー側で上書きされる
type PlayerRecord struct {
	ClientID     string `json:"clientID" validate:"required,max=64"`
	Username     string `json:"username" validate:"required,max=64"`
	PersistentID string `json:"persistentID" validate:"omitempty,max=64"`
	IP           string `json:"ip" validate:"required,max=64"`
}

// TurnRecord は1ターン分のインテント
type TurnRecord struct {
	TurnNumber int              `json:"turnNumber" validate:"gte=0"`
	GameID     string           `json:"gameID" validate:"omitempty,max=64"`
	Intents    []map[string]any `json:"intents"`
}
