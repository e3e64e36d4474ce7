package models

// クライアントから受信するメッセージの種類
const (
	MessageTypeJoin = "join"
	MessageTypeLog  = "log"
)

// LogSeverity はクライアントログの重大度
type LogSeverity string

const (
	LogSeverityDebug LogSeverity = "DEBUG"
	LogSeverityInfo  LogSeverity = "INFO"
	LogSeverityWarn  LogSeverity = "WARN"
	LogSeverityError LogSeverity = "ERROR"
	LogSeverityFatal LogSeverity = "FATAL"
)

// JoinMessage はWebSocket接続をゲームに参加させる要求
type JoinMessage struct {
	Type         string `json:"type" validate:"required,eq=join"`
	ClientID     string `json:"clientID" validate:"required,max=64"`
	PersistentID string `json:"persistentID" validate:"required,max=64"`
	GameID       string `json:"gameID" validate:"required,max=64"`
	Username     string `json:"username" validate:"required"`
	LastTurn     int    `json:"lastTurn" validate:"gte=0"`
}

// LogMessage はクライアントの診断ログ。構造化ロガーに転送するだけで保持しない
type LogMessage struct {
	Type         string      `json:"type" validate:"required,eq=log"`
	Severity     LogSeverity `json:"severity" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	Log          string      `json:"log" validate:"required,max=4096"`
	ClientID     string      `json:"clientID" validate:"omitempty,max=64"`
	GameID       string      `json:"gameID" validate:"omitempty,max=64"`
	PersistentID string      `json:"persistentID" validate:"omitempty,max=64"`
}

// LogEntry は構造化ログの1レコード
type LogEntry struct {
	LogKey       string
	Msg          string
	Severity     LogSeverity
	ClientID     string
	GameID       string
	PersistentID string
}
