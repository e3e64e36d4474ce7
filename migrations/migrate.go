package main

import (
	"flag"

	"gateserver/database"
	"gateserver/utils"

	"go.uber.org/zap"
)

// サーバーを起動せずにアーカイブ用テーブルだけを作成・更新する
func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	logger, err := utils.InitLogger(false)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config, err := database.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
	}

	db, err := database.InitPostgreSQL(config.Database, logger)
	if err != nil {
		logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Error migrating archived_games table", zap.Error(err))
	}
	logger.Info("archived_games table migrated successfully")
}
