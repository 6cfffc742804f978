package realtime

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel records pushes and can be told to fail.
type fakeChannel struct {
	mu     sync.Mutex
	pushes [][]byte
	broken bool
	closed bool
}

func (f *fakeChannel) Push(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken || f.closed {
		return errors.New("broken pipe")
	}
	f.pushes = append(f.pushes, append([]byte(nil), p...))
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) breakIt() {
	f.mu.Lock()
	f.broken = true
	f.mu.Unlock()
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

func (f *fakeChannel) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pushes) == 0 {
		return ""
	}
	return string(f.pushes[len(f.pushes)-1])
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type hookRecorder struct {
	mu     sync.Mutex
	events []string
}

func (h *hookRecorder) Online(key string)  { h.add("+" + key) }
func (h *hookRecorder) Offline(key string) { h.add("-" + key) }
func (h *hookRecorder) add(e string) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}
func (h *hookRecorder) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func TestUnknownKeyIsOffline(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.IsOnline("nobody"))
	assert.Empty(t, reg.ListOnline())
}

func TestRegisterUnregister(t *testing.T) {
	reg := NewRegistry()
	ch := &fakeChannel{}

	require.NoError(t, reg.Register("u1", ch))
	assert.True(t, reg.IsOnline("u1"))
	assert.Equal(t, []string{"u1"}, reg.ListOnline())

	reg.Unregister("u1")
	assert.False(t, reg.IsOnline("u1"))
	assert.True(t, ch.isClosed())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hooks := &hookRecorder{}
	reg := NewRegistry(hooks)
	require.NoError(t, reg.Register("u1", &fakeChannel{}))

	reg.Unregister("u1")
	assert.False(t, reg.IsOnline("u1"))
	reg.Unregister("u1")
	assert.False(t, reg.IsOnline("u1"))

	assert.Equal(t, []string{"+u1", "-u1"}, hooks.all())
}

func TestRegisterReplacesPrevious(t *testing.T) {
	hooks := &hookRecorder{}
	reg := NewRegistry(hooks)
	old, cur := &fakeChannel{}, &fakeChannel{}

	require.NoError(t, reg.Register("u1", old))
	require.NoError(t, reg.Register("u1", cur))

	assert.True(t, old.isClosed())
	assert.False(t, cur.isClosed())
	got, ok := reg.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, cur, got)
	assert.Equal(t, 1, reg.Len())
	// replacement is not an online transition
	assert.Equal(t, []string{"+u1"}, hooks.all())
}

func TestReleaseOnlyOwnChannel(t *testing.T) {
	reg := NewRegistry()
	old, cur := &fakeChannel{}, &fakeChannel{}
	require.NoError(t, reg.Register("u1", old))
	require.NoError(t, reg.Register("u1", cur))

	assert.False(t, reg.Release("u1", old))
	assert.True(t, reg.IsOnline("u1"))

	assert.True(t, reg.Release("u1", cur))
	assert.False(t, reg.IsOnline("u1"))
	assert.False(t, reg.Release("u1", cur))
}

func TestRegisterRejectsBadInput(t *testing.T) {
	reg := NewRegistry()
	assert.ErrorIs(t, reg.Register("", &fakeChannel{}), ErrEmptyKey)
	assert.ErrorIs(t, reg.Register("u1", nil), ErrNilChannel)
	assert.Zero(t, reg.Len())
}

func TestCloseDropsEverything(t *testing.T) {
	hooks := &hookRecorder{}
	reg := NewRegistry(hooks)
	a, b := &fakeChannel{}, &fakeChannel{}
	require.NoError(t, reg.Register("a", a))
	require.NoError(t, reg.Register("b", b))

	reg.Close()
	assert.Zero(t, reg.Len())
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.ElementsMatch(t, []string{"+a", "+b", "-a", "-b"}, hooks.all())

	late := &fakeChannel{}
	assert.ErrorIs(t, reg.Register("c", late), ErrRegistryClosed)
	assert.True(t, late.isClosed())
	reg.Close()
}

func TestRegistryConcurrentUse(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []string{"a", "b", "c"}[i%3]
			ch := &fakeChannel{}
			_ = reg.Register(key, ch)
			_ = reg.IsOnline(key)
			_ = reg.ListOnline()
			reg.Release(key, ch)
			reg.Unregister(key)
		}(i)
	}
	wg.Wait()
	assert.Zero(t, reg.Len())
}

// slowMirror 像 redis 镜像一样记在线状态，Offline 可以被卡住
type slowMirror struct {
	mu      sync.Mutex
	online  map[string]bool
	entered chan struct{}
	proceed chan struct{}
}

func (m *slowMirror) Online(key string) {
	m.mu.Lock()
	m.online[key] = true
	m.mu.Unlock()
}

func (m *slowMirror) Offline(key string) {
	select {
	case m.entered <- struct{}{}:
	default:
	}
	<-m.proceed
	m.mu.Lock()
	delete(m.online, key)
	m.mu.Unlock()
}

func (m *slowMirror) isOnline(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online[key]
}

func TestReconnectDuringSlowOfflineHook(t *testing.T) {
	m := &slowMirror{online: map[string]bool{}, entered: make(chan struct{}, 4), proceed: make(chan struct{})}
	r := NewRegistry(m)
	old := &fakeChannel{}
	require.NoError(t, r.Register("a", old))

	released := make(chan struct{})
	go func() {
		r.Release("a", old)
		close(released)
	}()
	<-m.entered

	registered := make(chan struct{})
	go func() {
		_ = r.Register("a", &fakeChannel{})
		close(registered)
	}()
	select {
	case <-registered:
		t.Fatal("register finished before the offline hook returned")
	case <-time.After(50 * time.Millisecond):
	}

	close(m.proceed)
	<-released
	<-registered

	assert.True(t, r.IsOnline("a"))
	assert.True(t, m.isOnline("a"))
	r.Close()
	assert.False(t, m.isOnline("a"))
}
