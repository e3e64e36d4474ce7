package models

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// 未送信のまま保持できるバッチ数。超えたクライアントは切断する
	sendQueueSize = 64
)

var (
	ErrClientClosed  = errors.New("client connection closed")
	ErrSendQueueFull = errors.New("client send queue is full")
)

// Conn はクライアントへの送信に必要なWebSocket接続の操作。*websocket.Conn が満たす
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Websocketクライアントを定義。ゲームに参加した後はゲームのロスターが所有する
type Client struct {
	ClientID     string
	PersistentID string // 再接続をまたいで変わらないID
	IP           string
	Username     string // サニタイズ済み

	conn  Conn
	queue chan [][]byte
	done  chan struct{}

	mu        sync.Mutex
	closing   bool // 以降の Send を受け付けない
	startOnce sync.Once
	closeOnce sync.Once
}

func NewClient(clientID, persistentID, ip, username string, conn Conn) *Client {
	return &Client{
		ClientID:     clientID,
		PersistentID: persistentID,
		IP:           ip,
		Username:     username,
		conn:         conn,
		queue:        make(chan [][]byte, sendQueueSize),
		done:         make(chan struct{}),
	}
}

// Send はメッセージのまとまりを送信キューに積む。ブロックしない。
// キューが一杯なら接続を閉じて ErrSendQueueFull を返す
func (c *Client) Send(data ...[]byte) error {
	if c == nil || c.conn == nil {
		return ErrClientClosed
	}
	c.startOnce.Do(func() { go c.writeLoop() })

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrClientClosed
	}
	select {
	case c.queue <- data:
		c.mu.Unlock()
		return nil
	default:
	}
	c.mu.Unlock()

	c.Close()
	return ErrSendQueueFull
}

// writeLoop はキューを順に書き込む。書き込みに失敗したら接続を閉じる
func (c *Client) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case batch, ok := <-c.queue:
			if !ok {
				return
			}
			for _, data := range batch {
				if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			}
		}
	}
}

// CloseAfterFlush は積まれたメッセージを送り終えてから接続を閉じる
func (c *Client) CloseAfterFlush() {
	if c == nil || c.conn == nil {
		return
	}
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	close(c.queue)
	c.mu.Unlock()

	c.startOnce.Do(func() { go c.writeLoop() })
}

// Close は未送信のメッセージを捨てて接続を閉じる
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		c.mu.Unlock()
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
