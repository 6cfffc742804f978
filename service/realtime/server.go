package realtime

import (
	"bytes"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode"

	"ProjectHub/global"
	"ProjectHub/logger"
	"ProjectHub/tools/decode"
	"ProjectHub/tools/errs"
	"ProjectHub/tools/ids"
	"ProjectHub/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxKeyLen = 128

// ---- 常量参数（默认值） ----
const (
	defaultPingInterval = 25 * time.Second
	defaultWriteWait    = 10 * time.Second
	defaultMaxMessage   = 64 * 1024
)

type EndpointConf struct {
	PingInterval   time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	RequireToken   bool
	AllowedOrigins []string
}

func (c *EndpointConf) norm() {
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessage
	}
}

// TokenVerifier returns the subject of a valid token.
type TokenVerifier func(token string) (string, error)

// Endpoint serves the push subscription: one WebSocket per participant key.
type Endpoint struct {
	disp     *Dispatcher
	conf     EndpointConf
	verify   TokenVerifier
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewEndpoint(disp *Dispatcher, conf EndpointConf, verify TokenVerifier) *Endpoint {
	conf.norm()
	e := &Endpoint{
		disp:   disp,
		conf:   conf,
		verify: verify,
		log:    logger.Named("realtime.ws"),
	}
	e.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     e.checkOrigin,
	}
	return e
}

func (e *Endpoint) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(e.conf.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range e.conf.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ValidKey rejects empty, oversized and whitespace-containing keys.
func ValidKey(key string) bool {
	if key == "" || len(key) > maxKeyLen {
		return false
	}
	return strings.IndexFunc(key, unicode.IsSpace) < 0
}

// HandleWS 握手失败不会改动 registry
func (e *Endpoint) HandleWS(c *gin.Context) {
	key := c.Param("user_id")
	if !ValidKey(key) {
		global.Fail(c, errs.ErrArgs.WrapMsg("invalid participant key"))
		return
	}
	if e.conf.RequireToken {
		if e.verify == nil {
			global.Fail(c, errs.ErrTokenInvalid.WrapMsg("token verification unavailable"))
			return
		}
		sub, err := e.verify(c.Query("token"))
		if err != nil || sub != key {
			global.Fail(c, errs.ErrTokenInvalid.WrapMsg("token does not match key"))
			return
		}
	}

	ws, err := e.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 非 WebSocket 请求/握手失败，upgrader 已写回错误
		e.log.Info("upgrade failed", zap.String("key", key), zap.Error(err))
		return
	}

	ch := newWSChannel(ids.ConnID(), ws, e.conf.WriteWait)
	pongWait := e.conf.PingInterval * 3
	ws.SetReadLimit(e.conf.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	reg := e.disp.Registry()
	if err := reg.Register(key, ch); err != nil {
		e.log.Warn("register refused", zap.String("key", key), zap.Error(err))
		_ = ch.Close()
		return
	}
	e.disp.BroadcastPresence(key, true)

	done := make(chan struct{})
	safe.SafeGo("ws-keepalive", func() { e.keepalive(ch, done) })

	e.readLoop(key, ch, ws)

	// ---- 退出阶段：摘除自己这条连接，真正下线才广播 offline ----
	close(done)
	reg.Release(key, ch)
	_ = ch.Close()
	if !reg.IsOnline(key) {
		e.disp.BroadcastPresence(key, false)
	}
}

func (e *Endpoint) readLoop(key string, ch *wsChannel, ws *websocket.Conn) {
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				e.log.Info("peer closed", zap.String("key", key), zap.String("conn", ch.ID))
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				e.log.Info("read timeout", zap.String("key", key), zap.String("conn", ch.ID))
			} else {
				e.log.Info("read error", zap.String("key", key), zap.String("conn", ch.ID), zap.Error(rerr))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		e.handleFrame(key, ch, data)
	}
}

func (e *Endpoint) handleFrame(key string, ch *wsChannel, data []byte) {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "ping" {
		e.pong(key, ch)
		return
	}

	frame, err := decode.Object[inboundFrame](trimmed, decode.Loose)
	if err != nil {
		sample := trimmed
		if len(sample) > 256 {
			sample = sample[:256]
		}
		e.log.Debug("ignored frame", zap.String("key", key), zap.ByteString("sample", sample), zap.Error(err))
		return
	}

	switch frame.Type {
	case "ping":
		e.pong(key, ch)
	case EventTyping:
		if frame.RoomID == "" || !e.disp.Rooms().IsMember(frame.RoomID, key) {
			return
		}
		e.disp.BroadcastToRoom(frame.RoomID, Payload{
			Type:   EventTyping,
			RoomID: frame.RoomID,
			UserID: key,
		}, key)
	default:
		e.log.Debug("frame without handler", zap.String("key", key), zap.String("type", frame.Type))
	}
}

// pong answers on the very channel that asked.
func (e *Endpoint) pong(key string, ch *wsChannel) {
	raw, _ := encode(Pong())
	if err := ch.Push(raw); err != nil {
		e.log.Info("pong failed", zap.String("key", key), zap.Error(err))
	}
}

func (e *Endpoint) keepalive(ch *wsChannel, done <-chan struct{}) {
	ticker := time.NewTicker(e.conf.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ch.ping(); err != nil {
				e.log.Info("ping failed", zap.String("conn", ch.ID), zap.Error(err))
				_ = ch.Close()
				return
			}
		}
	}
}
