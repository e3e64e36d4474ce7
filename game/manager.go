package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gateserver/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 参加者のいないプライベートロビーを破棄するまでの時間
const privateLobbyTTL = time.Hour

// GameManager はプロセス内の全セッションを所有するレジストリ
type GameManager struct {
	mu       sync.RWMutex
	games    map[string]*GameServer
	settings models.GameSettings
	logger   *zap.Logger
	now      func() time.Time
}

var _ Registry = (*GameManager)(nil)

func NewGameManager(settings models.GameSettings, logger *zap.Logger) *GameManager {
	return &GameManager{
		games:    make(map[string]*GameServer),
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// generateID は8文字のゲームIDを生成する
func generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (gm *GameManager) CreatePrivateGame() string {
	return gm.createGame(false, models.DefaultGameConfig(models.GameTypePrivate))
}

func (gm *GameManager) createGame(isPublic bool, config models.GameConfig) string {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	id := generateID()
	for _, exists := gm.games[id]; exists; _, exists = gm.games[id] {
		id = generateID()
	}
	gm.games[id] = newGameServer(id, isPublic, config, gm.now(), gm.settings, gm.logger)
	gm.logger.Info("Game created", zap.String("gameID", id), zap.Bool("public", isPublic))
	return id
}

func (gm *GameManager) lookup(id string) (*GameServer, bool) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	g, ok := gm.games[id]
	if !ok || g.currentPhase() == PhaseFinished {
		return nil, false
	}
	return g, true
}

func (gm *GameManager) StartPrivateGame(id string) error {
	g, ok := gm.lookup(id)
	if !ok {
		return ErrGameNotFound
	}
	if info := g.info(); info.Config.GameType != models.GameTypePrivate {
		return ErrGameNotPrivate
	}
	out, err := g.start(gm.now())
	if err != nil {
		return err
	}
	gm.deliver(out)
	return nil
}

func (gm *GameManager) UpdateGameConfig(id string, update models.GameConfigUpdate) error {
	g, ok := gm.lookup(id)
	if !ok {
		return ErrGameNotFound
	}
	return g.updateConfig(update, gm.now())
}

func (gm *GameManager) HasActiveGame(id string) bool {
	_, ok := gm.lookup(id)
	return ok
}

func (gm *GameManager) Game(id string) (GameInfo, bool) {
	g, ok := gm.lookup(id)
	if !ok {
		return GameInfo{}, false
	}
	return g.info(), true
}

// AddClient はクライアントをゲームに参加させ、lastTurn以降のターンを再送する
func (gm *GameManager) AddClient(client *models.Client, gameID string, lastTurn int) error {
	g, ok := gm.lookup(gameID)
	if !ok {
		return ErrGameNotFound
	}
	out, err := g.addClient(client, lastTurn, gm.now())
	if err != nil {
		return err
	}
	gm.logger.Info("Client joined",
		zap.String("gameID", gameID),
		zap.String("clientID", client.ClientID),
		zap.String("persistentID", client.PersistentID),
		zap.Int("lastTurn", lastTurn),
	)
	if out != nil {
		gm.deliver([]outbound{*out})
	}
	return nil
}

func (gm *GameManager) RemoveClient(gameID string, client *models.Client) {
	gm.mu.RLock()
	g, ok := gm.games[gameID]
	gm.mu.RUnlock()
	if !ok {
		return
	}
	if g.removeClient(client, gm.now()) {
		gm.logger.Info("Client left", zap.String("gameID", gameID), zap.String("clientID", client.ClientID))
	}
}

// Tick は全セッションを1ステップ進める。1つのセッションの失敗が他を止めることはない
func (gm *GameManager) Tick() error {
	now := gm.now()

	gm.mu.RLock()
	games := make([]*GameServer, 0, len(gm.games))
	for _, g := range gm.games {
		games = append(games, g)
	}
	gm.mu.RUnlock()

	var errs []error
	var out []outbound
	for _, g := range games {
		msgs, err := tickGame(g, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("game %s: %w", g.id, err))
			continue
		}
		out = append(out, msgs...)
	}
	gm.deliver(out)

	gm.pruneFinished()
	gm.ensurePublicLobby()
	return errors.Join(errs...)
}

func tickGame(g *GameServer, now time.Time) (out []outbound, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during tick: %v", r)
		}
	}()
	return g.tick(now)
}

func (gm *GameManager) pruneFinished() {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	for id, g := range gm.games {
		if g.currentPhase() == PhaseFinished {
			delete(gm.games, id)
		}
	}
}

// ensurePublicLobby は参加可能な公開ロビーが常に1つあるようにする
func (gm *GameManager) ensurePublicLobby() {
	gm.mu.RLock()
	for _, g := range gm.games {
		if info := g.info(); info.IsPublic && info.Phase == PhaseLobby {
			gm.mu.RUnlock()
			return
		}
	}
	gm.mu.RUnlock()
	gm.createGame(true, models.DefaultGameConfig(models.GameTypePublic))
}

func (gm *GameManager) GamesByPhase(phase Phase) ([]GameInfo, error) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	result := make([]GameInfo, 0, len(gm.games))
	for _, g := range gm.games {
		if info := g.info(); info.Phase == phase {
			result = append(result, info)
		}
	}
	return result, nil
}

// deliver は送信キューに積むだけでブロックしない。
// 積めなかったクライアントは閉じてロスターから外す
func (gm *GameManager) deliver(out []outbound) {
	for _, o := range out {
		if len(o.data) > 0 {
			if err := o.client.Send(o.data...); err != nil {
				gm.logger.Warn("Failed to send to client",
					zap.String("gameID", o.gameID),
					zap.String("clientID", o.client.ClientID),
					zap.Error(err),
				)
				gm.RemoveClient(o.gameID, o.client)
				continue
			}
		}
		if o.close {
			o.client.CloseAfterFlush()
		}
	}
}
