package game

import (
	"errors"
	"time"

	"gateserver/models"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrGameNotInLobby = errors.New("game is no longer in the lobby phase")
	ErrGameNotPrivate = errors.New("game is not a private lobby")
)

// Phase はセッションのライフサイクル段階
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// GameInfo はレジストリ外に渡すセッションの読み取り専用スナップショット
type GameInfo struct {
	ID        string
	Phase     Phase
	IsPublic  bool
	StartTime time.Time // ロビー段階の開始予定時刻。未定ならゼロ値
	Config    models.GameConfig
	Clients   []models.PlayerInfo
	Turn      int
}

// NumClients は参加中のクライアント数
func (g GameInfo) NumClients() int {
	return len(g.Clients)
}

// Registry はゲートウェイが利用するセッション管理の契約。
// 全ての変更はレジストリ自身が直列化する
type Registry interface {
	CreatePrivateGame() string
	StartPrivateGame(id string) error
	UpdateGameConfig(id string, update models.GameConfigUpdate) error
	HasActiveGame(id string) bool
	Game(id string) (GameInfo, bool)
	AddClient(client *models.Client, gameID string, lastTurn int) error
	RemoveClient(gameID string, client *models.Client)
	Tick() error
	GamesByPhase(phase Phase) ([]GameInfo, error)
}
