package models

import "time"

// Config はサーバー全体の設定情報を保持します。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameSettings   `mapstructure:"game"`
	Username UsernameConfig `mapstructure:"username"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Discord  DiscordConfig  `mapstructure:"discord"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	StaticDir      string   `mapstructure:"static_dir"` // SPAのビルド成果物
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MessageRate    float64  `mapstructure:"message_rate"` // 接続ごとの受信メッセージ数/秒。0以下なら無制限
	MessageBurst   int      `mapstructure:"message_burst"`
}

// GameSettings はレジストリとスケジューラの周期設定
type GameSettings struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	LobbyInterval    time.Duration `mapstructure:"lobby_interval"`
	LobbyLifetime    time.Duration `mapstructure:"lobby_lifetime"` // 公開ロビーの開始までの待ち時間
	MaxTurns         int           `mapstructure:"max_turns"`
	EmptyGameTimeout time.Duration `mapstructure:"empty_game_timeout"`
}

type UsernameConfig struct {
	MinLength int `mapstructure:"min_length"`
	MaxLength int `mapstructure:"max_length"`
}

// DatabaseConfig はデータベース接続の設定情報を保持します。
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ArchiveConfig struct {
	Retention   time.Duration `mapstructure:"retention"`
	CleanupCron string        `mapstructure:"cleanup_cron"` // "分 時 日 月 曜日"
	DedupeTTL   time.Duration `mapstructure:"dedupe_ttl"`
}

// AuthConfig はプライベートロビーのホストトークン設定。秘密鍵が空なら無効
type AuthConfig struct {
	HostTokenSecret string        `mapstructure:"host_token_secret"`
	HostTokenTTL    time.Duration `mapstructure:"host_token_ttl"`
}

type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}
