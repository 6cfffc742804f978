package mgo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	mgo "ProjectHub/data/database/mgo/mongoutil"
	"ProjectHub/logger"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
	maxShift    = 6
	healthEvery = 10 * time.Second
	failThresh  = 3 // 连续 ping 失败次数
)

// MongoManager 后台维持一条 mongo 连接：断了就重连
type MongoManager struct {
	mu        sync.RWMutex
	client    *mgo.Client
	readyCh   chan struct{} // 首次就绪；只 close 一次
	readyOnce sync.Once

	lastErr atomic.Pointer[error]
}

var globalMgr = MongoManager{readyCh: make(chan struct{})}

// StartAsync 一直运行到 ctx.Done()
func StartAsync(ctx context.Context, cfg *mgo.Config) {
	go globalMgr.run(ctx, cfg)
}

func (m *MongoManager) run(ctx context.Context, cfg *mgo.Config) {
	for {
		cli, ok := m.connect(ctx, cfg)
		if !ok {
			return
		}
		m.mu.Lock()
		m.client = cli
		m.mu.Unlock()
		m.readyOnce.Do(func() { close(m.readyCh) })
		logger.Info("[Mongo] connected", zap.String("uri", cfg.Redacted()), zap.String("database", cfg.Database))

		m.watch(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

// connect 指数退避 + 抖动，直到成功或 ctx 结束
func (m *MongoManager) connect(ctx context.Context, cfg *mgo.Config) (*mgo.Client, bool) {
	for attempt := 0; ; {
		if ctx.Err() != nil {
			return nil, false
		}
		cli, err := mgo.Dial(ctx, cfg)
		if err == nil {
			return cli, true
		}
		m.setErr(err)
		logger.Warn("[Mongo] connect failed", zap.Int("attempt", attempt), zap.Error(err))

		if !sleep(ctx, backoff(attempt)) {
			return nil, false
		}
		if attempt < maxShift {
			attempt++
		}
	}
}

// watch 周期 ping；连续失败 failThresh 次就丢掉连接交给 connect
func (m *MongoManager) watch(ctx context.Context) {
	tk := time.NewTicker(healthEvery)
	defer tk.Stop()
	fail := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}
		m.mu.RLock()
		c := m.client
		m.mu.RUnlock()
		if c == nil {
			return
		}
		if err := c.Ping(ctx); err != nil {
			fail++
			m.setErr(err)
			if fail >= failThresh {
				logger.Warn("[Mongo] unhealthy, reconnecting", zap.Error(err))
				m.drop()
				return
			}
			continue
		}
		fail = 0
	}
}

func backoff(attempt int) time.Duration {
	d := baseBackoff << attempt
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d/5) + 1)) // 0~20%
	return d - jitter/2
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *MongoManager) setErr(err error) { m.lastErr.Store(&err) }

func (m *MongoManager) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Disconnect(context.Background())
		m.client = nil
	}
}

// Ready 首次连接成功时 close
func Ready() <-chan struct{} {
	return globalMgr.readyCh
}

func Manager() *MongoManager {
	return &globalMgr
}

// Err 最近一次连接/ping 错误
func Err() error {
	if p := globalMgr.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func TryGetDB() (*mongo.Database, bool) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		return nil, false
	}
	return globalMgr.client.GetDB(), true
}

// DB 给 store 用：未就绪时返回 ErrUnavailable
func DB() (*mongo.Database, error) {
	db, ok := TryGetDB()
	if !ok {
		return nil, errs.ErrUnavailable.WrapMsg("mongo not ready")
	}
	return db, nil
}

func Ping(ctx context.Context) error {
	globalMgr.mu.RLock()
	c := globalMgr.client
	globalMgr.mu.RUnlock()
	if c == nil {
		if last := Err(); last != nil {
			return errs.ErrUnavailable.WrapMsg("mongo not ready", "last_error", last.Error())
		}
		return errs.ErrUnavailable.WrapMsg("mongo not ready")
	}
	return c.Ping(ctx)
}

// Disconnect 关闭当前连接；重连循环靠 ctx 取消停止
func Disconnect() {
	globalMgr.drop()
}

func WaitReady(ctx context.Context, m *MongoManager) error {
	m.mu.RLock()
	readyCh := m.readyCh
	clientNil := m.client == nil
	m.mu.RUnlock()

	if !clientNil {
		return nil
	}
	if readyCh == nil {
		return fmt.Errorf("mongo manager not started")
	}
	select {
	case <-readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
