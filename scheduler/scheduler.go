package scheduler

import (
	"context"
	"fmt"
	"time"

	"gateserver/game"
	"gateserver/metrics"
	"gateserver/models"
	"gateserver/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// intervalSchedule は固定周期のスケジュール。cron.Every と違い1秒未満に丸めない
type intervalSchedule struct {
	interval time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.interval)
}

// Scheduler はティックとロビー一覧の公開を独立した周期で実行する
type Scheduler struct {
	cron      *cron.Cron
	registry  game.Registry
	directory *LobbyDirectory
	logger    *zap.Logger
}

func New(registry game.Registry, directory *LobbyDirectory, settings models.GameSettings, logger *zap.Logger) (*Scheduler, error) {
	if settings.TickInterval <= 0 || settings.LobbyInterval <= 0 {
		return nil, fmt.Errorf("tick and lobby intervals must be positive")
	}
	cronLogger := utils.CronLogger(logger)
	s := &Scheduler{
		// 同じジョブの実行は重ならない。パニックはログに残して次の周期へ進む
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		registry:  registry,
		directory: directory,
		logger:    logger,
	}
	s.cron.Schedule(intervalSchedule{settings.TickInterval}, cron.FuncJob(s.Tick))
	s.cron.Schedule(intervalSchedule{settings.LobbyInterval}, cron.FuncJob(s.PublishLobbies))
	return s, nil
}

// Tick はレジストリの全セッションを1ステップ進める
func (s *Scheduler) Tick() {
	defer func() {
		if r := recover(); r != nil {
			metrics.Ticks.WithLabelValues("panic").Inc()
			s.logger.Error("Tick panicked", zap.Any("panic", r))
		}
	}()

	if err := s.registry.Tick(); err != nil {
		metrics.Ticks.WithLabelValues("error").Inc()
		s.logger.Error("Tick failed", zap.Error(err))
		return
	}
	metrics.Ticks.WithLabelValues("ok").Inc()
}

// PublishLobbies は公開ロビー一覧を作り直して差し替える。失敗時は前回の一覧を残す
func (s *Scheduler) PublishLobbies() {
	if err := s.directory.Refresh(s.registry); err != nil {
		s.logger.Warn("Failed to refresh lobby directory", zap.Error(err))
	}
}

// Run は ctx が終わるまで両方の周期処理を動かし、実行中のジョブの完了を待って戻る
func (s *Scheduler) Run(ctx context.Context) error {
	s.PublishLobbies()
	s.cron.Start()
	s.logger.Info("Scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}
