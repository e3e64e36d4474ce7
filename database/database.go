package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gateserver/models"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setDefaults は設定ファイルにも環境変数にもない項目の値
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.static_dir", "out")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.message_rate", 20)
	v.SetDefault("server.message_burst", 40)

	v.SetDefault("game.tick_interval", time.Second)
	v.SetDefault("game.lobby_interval", 100*time.Millisecond)
	v.SetDefault("game.lobby_lifetime", 60*time.Second)
	v.SetDefault("game.max_turns", 10000)
	v.SetDefault("game.empty_game_timeout", 30*time.Second)

	v.SetDefault("username.min_length", 3)
	v.SetDefault("username.max_length", 27)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "gateserver")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("archive.retention", 720*time.Hour)
	v.SetDefault("archive.cleanup_cron", "0 3 * * *")
	v.SetDefault("archive.dedupe_ttl", 24*time.Hour)

	v.SetDefault("auth.host_token_secret", "")
	v.SetDefault("auth.host_token_ttl", 24*time.Hour)

	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("log.development", false)
}

// LoadConfig は設定を読み込む。優先順位は環境変数、設定ファイル、デフォルト値。
// 設定ファイルが存在しなければデフォルト値と環境変数だけを使う
func LoadConfig(filename string) (models.Config, error) {
	var config models.Config

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("GATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// ホスティング環境が渡す PORT も受け付ける
	if err := v.BindEnv("server.port", "GATE_SERVER_PORT", "PORT"); err != nil {
		return config, err
	}

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			v.SetConfigFile(filename)
			if err := v.ReadInConfig(); err != nil {
				return config, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return config, err
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, nil
}

func postgresDSN(config models.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Name, config.Password, config.SSLMode)
}

func InitPostgreSQL(config models.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	dsn := postgresDSN(config)

	const maxRetries = 3
	const retryInterval = 5 * time.Second
	var err error
	for i := 0; i <= maxRetries; i++ {
		var gormDB *gorm.DB
		gormDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			return gormDB, nil
		}
		logger.Error("データベース接続のリトライ", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
}

// AutoMigrate はアーカイブ用のテーブルを作成・更新する
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.ArchivedGame{})
}

func InitRedis(config models.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Redisへの接続テスト
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		rdb.Close()
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.Addr))
	return rdb, nil
}
