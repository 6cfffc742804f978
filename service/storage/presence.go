package storage

import (
	"context"
	"time"

	"ProjectHub/logger"
	"ProjectHub/tools/safe"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const opTimeout = 2 * time.Second

// presence key: phub:presence:<user>
// Value: node id; TTL bounds how long a crashed node can leave a user "online".
func presenceKey(user string) string { return "phub:presence:" + user }

// PresenceMirror copies registry online/offline transitions into redis so
// other nodes and the presence endpoint can see them.
type PresenceMirror struct {
	rdb    redis.Cmdable
	nodeID string
	ttl    time.Duration
}

func NewPresenceMirror(rdb redis.Cmdable, nodeID string, ttl time.Duration) *PresenceMirror {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &PresenceMirror{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

// Online implements realtime.PresenceHook; the write happens off the caller's goroutine.
func (p *PresenceMirror) Online(user string) {
	safe.SafeGo("presence-online", func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := p.SetOnline(ctx, user); err != nil {
			logger.Warn("[Presence] set online", zap.String("user", user), zap.Error(err))
		}
	})
}

func (p *PresenceMirror) Offline(user string) {
	safe.SafeGo("presence-offline", func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := p.SetOffline(ctx, user); err != nil {
			logger.Warn("[Presence] set offline", zap.String("user", user), zap.Error(err))
		}
	})
}

func (p *PresenceMirror) SetOnline(ctx context.Context, user string) error {
	if p.rdb == nil {
		return errors.New("redis not initialized")
	}
	return p.rdb.Set(ctx, presenceKey(user), p.nodeID, p.ttl).Err()
}

// SetOffline only deletes the key if this node still owns it.
func (p *PresenceMirror) SetOffline(ctx context.Context, user string) error {
	if p.rdb == nil {
		return errors.New("redis not initialized")
	}
	owner, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if owner != p.nodeID {
		return nil
	}
	return p.rdb.Del(ctx, presenceKey(user)).Err()
}

// Lookup reports whether any node has the user online.
func (p *PresenceMirror) Lookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	if p.rdb == nil {
		return "", false, errors.New("redis not initialized")
	}
	val, err := p.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
