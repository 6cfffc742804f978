package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var ErrChannelClosed = errors.New("realtime: channel closed")

// Channel is one open push-capable connection. Implementations must be
// comparable (pointer receivers) because the registry compares entries.
type Channel interface {
	Push(payload []byte) error
	Close() error
}

// wsChannel 包装 gorilla 连接：写操作串行化，每次写设置 deadline
type wsChannel struct {
	ID        string
	conn      *websocket.Conn
	writeWait time.Duration

	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

func newWSChannel(id string, conn *websocket.Conn, writeWait time.Duration) *wsChannel {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &wsChannel{ID: id, conn: conn, writeWait: writeWait}
}

func (c *wsChannel) Push(payload []byte) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		go c.Close()
		return err
	}
	return nil
}

// ping 是控制帧，gorilla 允许与普通写并发
func (c *wsChannel) ping() error {
	if c.closed.Load() {
		return ErrChannelClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.writeWait))
}

func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}
