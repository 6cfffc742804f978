package realtime

import (
	"errors"
	"sort"
	"sync"

	"ProjectHub/logger"

	"go.uber.org/zap"
)

var (
	ErrEmptyKey       = errors.New("realtime: empty key")
	ErrNilChannel     = errors.New("realtime: nil channel")
	ErrRegistryClosed = errors.New("realtime: registry closed")
)

// PresenceHook is told when a key goes from offline to online and back.
// Calls happen outside the registry lock, on the goroutine that caused them,
// and are serialized in the same order as the registry changes. Hooks must
// not call Register, Unregister, Release or Close.
type PresenceHook interface {
	Online(key string)
	Offline(key string)
}

// Registry maps a participant key to its single live channel. A newer
// channel for the same key replaces (and closes) the previous one.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Channel
	closed  bool

	// hookMu 覆盖 map 变更和 hook 调用，重连时 Offline 不会晚于新的 Online
	hookMu sync.Mutex
	hooks  []PresenceHook
	log    *zap.Logger
}

func NewRegistry(hooks ...PresenceHook) *Registry {
	return &Registry{
		entries: make(map[string]Channel),
		hooks:   hooks,
		log:     logger.Named("realtime.registry"),
	}
}

// AddHook must be called before the registry starts serving connections.
func (r *Registry) AddHook(h PresenceHook) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.hooks = append(r.hooks, h)
	r.mu.Unlock()
}

func (r *Registry) Register(key string, ch Channel) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ch == nil {
		return ErrNilChannel
	}

	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = ch.Close()
		return ErrRegistryClosed
	}
	prev, existed := r.entries[key]
	r.entries[key] = ch
	hooks := r.hooks
	r.mu.Unlock()

	if existed && prev != ch {
		_ = prev.Close()
		r.log.Info("replaced channel", zap.String("key", key))
	} else {
		r.log.Info("registered", zap.String("key", key))
	}
	if !existed {
		for _, h := range hooks {
			h.Online(key)
		}
	}
	return nil
}

// Unregister removes and closes the entry for key. Safe to call for absent keys.
func (r *Registry) Unregister(key string) {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.mu.Lock()
	ch, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	hooks := r.hooks
	r.mu.Unlock()

	if !ok {
		return
	}
	_ = ch.Close()
	r.log.Info("unregistered", zap.String("key", key))
	for _, h := range hooks {
		h.Offline(key)
	}
}

// Release removes the entry only if ch is still the channel registered for
// key, so an old connection never evicts its replacement. Reports whether
// it removed anything.
func (r *Registry) Release(key string, ch Channel) bool {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.mu.Lock()
	cur, ok := r.entries[key]
	if !ok || cur != ch {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, key)
	hooks := r.hooks
	r.mu.Unlock()

	_ = ch.Close()
	r.log.Info("released", zap.String("key", key))
	for _, h := range hooks {
		h.Offline(key)
	}
	return true
}

func (r *Registry) Lookup(key string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.entries[key]
	return ch, ok
}

func (r *Registry) IsOnline(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// ListOnline returns a sorted snapshot of registered keys.
func (r *Registry) ListOnline() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close 关闭所有连接并清空；之后的 Register 会被拒绝
func (r *Registry) Close() {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	old := r.entries
	r.entries = make(map[string]Channel)
	hooks := r.hooks
	r.mu.Unlock()

	for key, ch := range old {
		_ = ch.Close()
		for _, h := range hooks {
			h.Offline(key)
		}
	}
	r.log.Info("registry closed", zap.Int("dropped", len(old)))
}
