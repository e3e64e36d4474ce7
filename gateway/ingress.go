package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"gateserver/game"
	"gateserver/metrics"
	"gateserver/models"
	"gateserver/protocol"
	"gateserver/utils"
	"gateserver/validations"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	pongWait       = 60 * time.Second // 60秒の読み取りデッドライン
	pingPeriod     = 10 * time.Second // 10秒ごとにPingを送信
	controlWait    = time.Second
	maxMessageSize = 64 * 1024
)

// connState は接続ごとの状態 Connected -> Identified -> Closed
type connState int

const (
	stateConnected connState = iota
	stateIdentified
	stateClosed
)

type connection struct {
	id      string
	ws      *websocket.Conn
	origin  string
	done    chan struct{}
	limiter *rate.Limiter

	mu     sync.Mutex
	state  connState
	client *models.Client
	gameID string
}

func (cn *connection) currentState() connState {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return cn.state
}

// closeWith はクローズフレームを送ってから接続を閉じる
func (cn *connection) closeWith(code int, text string) {
	cn.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(controlWait))
	cn.ws.Close()
}

// Ingress はWebSocket接続を受け付け、検証済みのメッセージだけをレジストリとロガーに渡す
type Ingress struct {
	registry     game.Registry
	policy       validations.UsernamePolicy
	upgrader     websocket.Upgrader
	messageRate  rate.Limit
	messageBurst int
	logger       *zap.Logger

	mu     sync.Mutex
	conns  map[*connection]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewIngress(registry game.Registry, policy validations.UsernamePolicy, server models.ServerConfig, logger *zap.Logger) *Ingress {
	in := &Ingress{
		registry: registry,
		policy:   policy,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(server.AllowedOrigins),
		},
		messageRate:  rate.Inf,
		messageBurst: server.MessageBurst,
		logger:       logger,
		conns:        make(map[*connection]struct{}),
	}
	if server.MessageRate > 0 {
		in.messageRate = rate.Limit(server.MessageRate)
		if in.messageBurst < 1 {
			in.messageBurst = 1
		}
	}
	return in
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// ServeHTTP はWebSocket接続へのアップグレードを行い、接続ごとの読み取りゴルーチンを起動する
func (in *Ingress) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := in.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// アップグレード失敗時のレスポンスは upgrader が返している
		in.logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	cn := &connection{
		id:      uuid.NewString(),
		ws:      conn,
		origin:  RequestOrigin(r),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(in.messageRate, in.messageBurst),
		state:   stateConnected,
	}
	if !in.register(cn) {
		cn.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	in.logger.Debug("WebSocket connected", zap.String("connID", cn.id), zap.String("origin", cn.origin))

	go in.keepAlive(cn)
	go in.readLoop(cn)
}

func (in *Ingress) register(cn *connection) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return false
	}
	in.conns[cn] = struct{}{}
	in.wg.Add(1)
	metrics.ActiveConnections.Inc()
	return true
}

// readLoop は到着順にメッセージを処理する。終了時に接続をセッションから外す
func (in *Ingress) readLoop(cn *connection) {
	defer in.finish(cn)

	cn.ws.SetReadLimit(maxMessageSize)
	cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	// Pongを受信したら読み取りデッドラインを更新
	cn.ws.SetPongHandler(func(string) error {
		return cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := cn.ws.ReadMessage()
		if err != nil {
			in.handleReadError(cn, err)
			return
		}
		if !cn.limiter.Allow() {
			// 上限を超えたメッセージは破棄するが接続は維持する
			metrics.RejectedMessages.WithLabelValues("rate_limited").Inc()
			in.logger.Debug("Dropping message over rate limit", zap.String("connID", cn.id))
			continue
		}
		in.handleMessage(cn, message)
	}
}

func (in *Ingress) handleReadError(cn *connection, err error) {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		in.logger.Debug("WebSocket closed", zap.String("connID", cn.id), zap.Error(err))
	case isProtocolViolation(err):
		// 不正な制御フレームは接続だけを異常終了させる
		in.logger.Warn("WebSocket protocol violation", zap.String("connID", cn.id), zap.Error(err))
		cn.closeWith(websocket.CloseProtocolError, "protocol error")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		in.logger.Error("WebSocket error", zap.String("connID", cn.id), zap.Error(err))
	default:
		in.logger.Debug("WebSocket read ended", zap.String("connID", cn.id), zap.Error(err))
	}
}

// isProtocolViolation は gorilla/websocket がフレームの解析で返すエラーかどうかを判定する
func isProtocolViolation(err error) bool {
	var closeErr *websocket.CloseError
	var netErr net.Error
	switch {
	case errors.As(err, &closeErr), errors.As(err, &netErr):
		return false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		return false
	case errors.Is(err, websocket.ErrReadLimit), errors.Is(err, websocket.ErrCloseSent):
		return false
	}
	return strings.HasPrefix(err.Error(), "websocket: ")
}

func (in *Ingress) handleMessage(cn *connection, raw []byte) {
	msg, err := protocol.DecodeClientMessage(raw)
	if err != nil {
		metrics.RejectedMessages.WithLabelValues(rejectReason(err)).Inc()
		in.logger.Warn("Error handling websocket message", zap.String("connID", cn.id), zap.Error(err))
		return
	}

	switch msg.Type {
	case models.MessageTypeJoin:
		in.handleJoin(cn, msg.Join)
	case models.MessageTypeLog:
		utils.Slog(in.logger, models.LogEntry{
			LogKey:       "client_console_log",
			Msg:          msg.Log.Log,
			Severity:     msg.Log.Severity,
			ClientID:     msg.Log.ClientID,
			GameID:       msg.Log.GameID,
			PersistentID: msg.Log.PersistentID,
		})
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownMessageType):
		return "unknown_type"
	case errors.Is(err, protocol.ErrInvalidMessage):
		return "invalid"
	default:
		return "malformed"
	}
}

// handleJoin は接続をゲームに参加させる。1つの接続が参加できるのは一度だけ
func (in *Ingress) handleJoin(cn *connection, join *models.JoinMessage) {
	if cn.currentState() != stateConnected {
		metrics.RejectedMessages.WithLabelValues("duplicate_join").Inc()
		in.logger.Debug("Ignoring join on identified connection", zap.String("connID", cn.id), zap.String("gameID", join.GameID))
		return
	}

	if ok, err := in.policy.ValidateUsername(join.Username); !ok {
		metrics.RejectedMessages.WithLabelValues("invalid_username").Inc()
		in.logger.Info("Received invalid username",
			zap.String("gameID", join.GameID),
			zap.String("clientID", join.ClientID),
			zap.Error(err),
		)
		return
	}

	client := models.NewClient(join.ClientID, join.PersistentID, cn.origin, in.policy.SanitizeUsername(join.Username), cn.ws)
	if err := in.registry.AddClient(client, join.GameID, join.LastTurn); err != nil {
		in.logger.Warn("Failed to add client to game",
			zap.String("gameID", join.GameID),
			zap.String("clientID", join.ClientID),
			zap.Error(err),
		)
		return
	}

	cn.mu.Lock()
	cn.state = stateIdentified
	cn.client = client
	cn.gameID = join.GameID
	cn.mu.Unlock()
}

// finish は接続を閉じ、参加していたセッションから外す
func (in *Ingress) finish(cn *connection) {
	cn.mu.Lock()
	prev := cn.state
	cn.state = stateClosed
	client, gameID := cn.client, cn.gameID
	cn.mu.Unlock()

	close(cn.done)
	cn.ws.Close()
	if prev == stateIdentified {
		in.registry.RemoveClient(gameID, client)
		client.Close()
	}

	in.mu.Lock()
	delete(in.conns, cn)
	in.mu.Unlock()
	metrics.ActiveConnections.Dec()
	in.wg.Done()
	in.logger.Debug("Client removed", zap.String("connID", cn.id), zap.String("gameID", gameID))
}

// keepAlive は定期的にPingを送る。失敗したら接続を閉じて読み取りループを終わらせる
func (in *Ingress) keepAlive(cn *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cn.done:
			return
		case <-ticker.C:
			if err := cn.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWait)); err != nil {
				in.logger.Debug("Error sending ping", zap.String("connID", cn.id), zap.Error(err))
				cn.ws.Close()
				return
			}
		}
	}
}

// Shutdown は新規接続を拒否し、全接続を閉じて読み取りループの終了を待つ
func (in *Ingress) Shutdown(ctx context.Context) error {
	in.mu.Lock()
	in.closed = true
	conns := make([]*connection, 0, len(in.conns))
	for cn := range in.conns {
		conns = append(conns, cn)
	}
	in.mu.Unlock()

	for _, cn := range conns {
		cn.closeWith(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		in.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveConnections は開いている接続数を返す
func (in *Ingress) ActiveConnections() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.conns)
}
