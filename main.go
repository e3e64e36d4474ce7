package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gateserver/archive"  //シングルプレイ記録の保存
	"gateserver/bot"      //起動時のDiscord通知
	"gateserver/database" //設定の読み込みとPostgreSQL・Redisの初期化
	"gateserver/game"     //ゲームセッションのレジストリ
	"gateserver/gateway"  //WebSocket接続の受け付け
	"gateserver/handlers" //HTTPルーティング
	"gateserver/metrics"
	"gateserver/middlewares"
	"gateserver/scheduler" //ティックとロビー一覧の定期処理
	"gateserver/utils"     //ロガーの初期化とCronジョブ(PostgreSQLの定期クリーンナップ)
	"gateserver/validations"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	config, err := database.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定ファイルの読み込みに失敗しました: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.InitLogger(config.Log.Development) // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	metrics.InitMetrics(prometheus.DefaultRegisterer)

	// PostgreSQLとRedisを並行して初期化
	var db *gorm.DB
	var rdb *redis.Client
	var initGroup errgroup.Group
	initGroup.Go(func() error {
		var err error
		db, err = database.InitPostgreSQL(config.Database, logger)
		if err != nil {
			return fmt.Errorf("PostgreSQLの初期化に失敗しました: %w", err)
		}
		return database.AutoMigrate(db)
	})
	initGroup.Go(func() error {
		var err error
		rdb, err = database.InitRedis(config.Redis, logger)
		if err != nil {
			return fmt.Errorf("Redisの初期化に失敗しました: %w", err)
		}
		return nil
	})
	if err := initGroup.Wait(); err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer rdb.Close()

	// クーロンスケジューラのセットアップと呼び出し
	cleaner, err := utils.CronCleaner(db, config.Archive, logger)
	if err != nil {
		logger.Fatal("Failed to schedule archive cleanup", zap.Error(err))
	}
	defer cleaner.Stop()

	registry := game.NewGameManager(config.Game, logger)
	directory := scheduler.NewLobbyDirectory()
	ticker, err := scheduler.New(registry, directory, config.Game, logger)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}

	policy := validations.DefaultUsernamePolicy()
	policy.MinLength = config.Username.MinLength
	policy.MaxLength = config.Username.MaxLength
	ingress := gateway.NewIngress(registry, policy, config.Server, logger)

	intake := archive.NewIntake(
		archive.NewPostgresSink(db),
		archive.NewRedisGuard(rdb, config.Archive.DedupeTTL),
		logger,
	)

	router := handlers.NewRouter(handlers.Dependencies{
		Registry:       registry,
		Directory:      directory,
		Intake:         intake,
		Ingress:        ingress,
		Tokens:         middlewares.NewHostTokens(config.Auth),
		Metrics:        promhttp.Handler(),
		StaticDir:      config.Server.StaticDir,
		AllowedOrigins: config.Server.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Server.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening", zap.Int("port", config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTPサーバーの起動に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ticker.Run(gctx)
	})
	g.Go(func() error {
		// 通知の失敗でサーバーは止めない
		if err := bot.NewAnnouncer(config.Discord, logger).Start(gctx, config.Server.Port); err != nil {
			logger.Warn("Failed to announce start-up", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", zap.Error(err))
		}
		// Hijackされた接続は srv.Shutdown の対象外
		if err := ingress.Shutdown(shutdownCtx); err != nil {
			logger.Error("WebSocket shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}
