package game

import (
	"encoding/json"
	"sync"
	"time"

	"gateserver/models"

	"go.uber.org/zap"
)

// サーバーからクライアントへ送るメッセージ
type startMessage struct {
	Type    string              `json:"type"`
	GameID  string              `json:"gameID"`
	Config  models.GameConfig   `json:"config"`
	Players []models.PlayerInfo `json:"players"`
	Turn    int                 `json:"turn"`
}

type turnMessage struct {
	Type string   `json:"type"`
	Turn turnBody `json:"turn"`
}

type endMessage struct {
	Type   string `json:"type"`
	GameID string `json:"gameID"`
	Reason string `json:"reason"`
}

type turnBody struct {
	TurnNumber int    `json:"turnNumber"`
	GameID     string `json:"gameID"`
}

// outbound は送信待ちのメッセージ。ロックの外で送信する
type outbound struct {
	gameID string
	client *models.Client
	data   [][]byte
	close  bool // 送信後に接続を閉じる
}

// GameServer は1つのセッション
type GameServer struct {
	mu sync.Mutex

	id        string
	isPublic  bool
	config    models.GameConfig
	createdAt time.Time
	startTime time.Time
	phase     Phase
	turn      int
	clients   []*models.Client
	lastSeen  time.Time // 最後にクライアントが接続していた時刻

	maxTurns      int
	emptyTimeout  time.Duration
	lobbyLifetime time.Duration
	logger        *zap.Logger
}

func newGameServer(id string, isPublic bool, config models.GameConfig, now time.Time, settings models.GameSettings, logger *zap.Logger) *GameServer {
	g := &GameServer{
		id:            id,
		isPublic:      isPublic,
		config:        config,
		createdAt:     now,
		phase:         PhaseLobby,
		lastSeen:      now,
		maxTurns:      settings.MaxTurns,
		emptyTimeout:  settings.EmptyGameTimeout,
		lobbyLifetime: settings.LobbyLifetime,
		logger:        logger.With(zap.String("gameID", id)),
	}
	// 公開ロビーは一定時間後に自動で開始する
	if isPublic {
		g.startTime = now.Add(settings.LobbyLifetime)
	}
	return g
}

func (g *GameServer) info() GameInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GameInfo{
		ID:        g.id,
		Phase:     g.phase,
		IsPublic:  g.isPublic,
		StartTime: g.startTime,
		Config:    g.config,
		Clients:   g.rosterLocked(),
		Turn:      g.turn,
	}
}

func (g *GameServer) currentPhase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *GameServer) rosterLocked() []models.PlayerInfo {
	players := make([]models.PlayerInfo, 0, len(g.clients))
	for _, c := range g.clients {
		players = append(players, models.PlayerInfo{Username: c.Username, ClientID: c.ClientID})
	}
	return players
}

// addClient はクライアントをロスターに加える。同じclientIDの再接続は接続を置き換える
func (g *GameServer) addClient(client *models.Client, lastTurn int, now time.Time) (*outbound, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseFinished {
		return nil, ErrGameNotFound
	}

	replaced := false
	for i, c := range g.clients {
		if c.ClientID == client.ClientID {
			if c != client {
				c.Close()
			}
			g.clients[i] = client
			replaced = true
			break
		}
	}
	if !replaced {
		g.clients = append(g.clients, client)
	}
	g.lastSeen = now

	if g.phase != PhaseActive {
		return nil, nil
	}

	// 進行中のゲームには開始通知と取りこぼしたターンを再送する
	out := &outbound{gameID: g.id, client: client}
	if data, err := json.Marshal(g.startMessageLocked()); err == nil {
		out.data = append(out.data, data)
	}
	if lastTurn < 0 {
		lastTurn = 0
	}
	for t := lastTurn + 1; t <= g.turn; t++ {
		if data, err := json.Marshal(g.turnMessage(t)); err == nil {
			out.data = append(out.data, data)
		}
	}
	return out, nil
}

// removeClient は同じ接続の場合だけ取り除く。再接続で置き換えられた古い接続は無視する
func (g *GameServer) removeClient(client *models.Client, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, c := range g.clients {
		if c == client {
			g.clients = append(g.clients[:i], g.clients[i+1:]...)
			g.lastSeen = now
			return true
		}
	}
	return false
}

// updateConfig は変更可能なフィールドだけを更新する。
// 公開にしたプライベートロビーは公開ロビーと同じく一定時間後に開始する
func (g *GameServer) updateConfig(update models.GameConfigUpdate, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseLobby {
		return ErrGameNotInLobby
	}
	if g.config.GameType != models.GameTypePrivate {
		return ErrGameNotPrivate
	}
	if update.GameMap != nil {
		g.config.GameMap = *update.GameMap
	}
	if update.Difficulty != nil {
		g.config.Difficulty = *update.Difficulty
	}
	if update.DisableBots != nil {
		g.config.DisableBots = *update.DisableBots
	}
	if update.DisableNPCs != nil {
		g.config.DisableNPCs = *update.DisableNPCs
	}
	if update.CreativeMode != nil {
		g.config.CreativeMode = *update.CreativeMode
	}
	if update.IsPublic != nil && *update.IsPublic != g.isPublic {
		g.isPublic = *update.IsPublic
		if g.isPublic {
			g.startTime = now.Add(g.lobbyLifetime)
		} else {
			g.startTime = time.Time{}
		}
	}
	return nil
}

// start はロビーを進行中にする
func (g *GameServer) start(now time.Time) ([]outbound, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startLocked(now)
}

func (g *GameServer) startLocked(now time.Time) ([]outbound, error) {
	if g.phase != PhaseLobby {
		return nil, ErrGameNotInLobby
	}
	g.phase = PhaseActive
	g.startTime = now
	g.logger.Info("Game started", zap.Int("clients", len(g.clients)), zap.Bool("public", g.isPublic))

	data, err := json.Marshal(g.startMessageLocked())
	if err != nil {
		return nil, err
	}
	return g.broadcastLocked(false, data), nil
}

// tick はセッションを1ステップ進める
func (g *GameServer) tick(now time.Time) ([]outbound, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.phase {
	case PhaseLobby:
		if g.isPublic && !g.startTime.IsZero() && !now.Before(g.startTime) {
			return g.startLocked(now)
		}
		if !g.isPublic && now.Sub(g.createdAt) > privateLobbyTTL && len(g.clients) == 0 {
			return g.endLocked("private lobby expired"), nil
		}
		return nil, nil
	case PhaseActive:
		if len(g.clients) > 0 {
			g.lastSeen = now
		} else if now.Sub(g.lastSeen) > g.emptyTimeout {
			return g.endLocked("no clients"), nil
		}
		g.turn++
		data, err := json.Marshal(g.turnMessage(g.turn))
		if err != nil {
			return nil, err
		}
		if g.maxTurns > 0 && g.turn >= g.maxTurns {
			return g.endLocked("max turns reached", data), nil
		}
		return g.broadcastLocked(false, data), nil
	}
	return nil, nil
}

// endLocked はセッションを終了し、最後のメッセージと終了通知を送ってから接続を閉じる
func (g *GameServer) endLocked(reason string, last ...[]byte) []outbound {
	g.phase = PhaseFinished
	g.logger.Info("Game ended", zap.String("reason", reason), zap.Int("turn", g.turn))

	data := last
	if end, err := json.Marshal(endMessage{Type: "end", GameID: g.id, Reason: reason}); err == nil {
		data = append(data, end)
	}
	out := g.broadcastLocked(true, data...)
	g.clients = nil
	return out
}

func (g *GameServer) broadcastLocked(closeAfter bool, data ...[]byte) []outbound {
	out := make([]outbound, 0, len(g.clients))
	for _, c := range g.clients {
		out = append(out, outbound{gameID: g.id, client: c, data: data, close: closeAfter})
	}
	return out
}

func (g *GameServer) startMessageLocked() startMessage {
	return startMessage{
		Type:    "start",
		GameID:  g.id,
		Config:  g.config,
		Players: g.rosterLocked(),
		Turn:    g.turn,
	}
}

func (g *GameServer) turnMessage(turn int) turnMessage {
	return turnMessage{
		Type: "turn",
		Turn: turnBody{TurnNumber: turn, GameID: g.id},
	}
}
