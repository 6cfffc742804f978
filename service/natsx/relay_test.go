package natsx

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBus fans every publish out to all subscribers, like a core subject.
type memBus struct {
	mu   sync.Mutex
	subs map[string][]NatsxHandler
	sent int
}

func newMemBus() *memBus { return &memBus{subs: map[string][]NatsxHandler{}} }

func (b *memBus) Publish(subject string, data []byte, _ map[string]string) error {
	b.mu.Lock()
	b.sent++
	hs := append([]NatsxHandler(nil), b.subs[subject]...)
	b.mu.Unlock()
	for _, h := range hs {
		_ = h(context.Background(), NatsxMessage{Subject: subject, Data: data})
	}
	return nil
}

func (b *memBus) Subscribe(subject, _ string, h NatsxHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[subject] = append(b.subs[subject], NatsxChain(h, Recovery()))
	return nil
}

type inbox struct {
	mu  sync.Mutex
	got map[string][]string
	on  map[string]bool
}

func newInbox(online ...string) *inbox {
	in := &inbox{got: map[string][]string{}, on: map[string]bool{}}
	for _, k := range online {
		in.on[k] = true
	}
	return in
}

func (in *inbox) deliver(key string, payload []byte) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.on[key] {
		return false
	}
	in.got[key] = append(in.got[key], string(payload))
	return true
}

func TestRelayReachesOtherNode(t *testing.T) {
	bus := newMemBus()
	a := NewRelay(bus, "", "a")
	b := NewRelay(bus, "", "b")

	inA := newInbox("u1")
	inB := newInbox("u2")
	require.NoError(t, a.Start(inA.deliver))
	require.NoError(t, b.Start(inB.deliver))

	require.NoError(t, a.Forward(context.Background(), "u2", []byte(`{"type":"new_message"}`)))

	assert.Equal(t, []string{`{"type":"new_message"}`}, inB.got["u2"])
	assert.Empty(t, inA.got)
	assert.Equal(t, 1, bus.sent)
}

func TestRelayIgnoresOwnOrigin(t *testing.T) {
	bus := newMemBus()
	a := NewRelay(bus, "realtime.relay", "a")
	in := newInbox("u1")
	require.NoError(t, a.Start(in.deliver))

	require.NoError(t, a.Forward(context.Background(), "u1", []byte(`{"type":"x"}`)))
	assert.Empty(t, in.got)
}

func TestRelayEnvelopeShape(t *testing.T) {
	bus := newMemBus()
	var raw []byte
	require.NoError(t, bus.Subscribe("realtime.relay", "", func(_ context.Context, msg NatsxMessage) error {
		raw = msg.Data
		return nil
	}))

	r := NewRelay(bus, "", "node-7")
	require.NoError(t, r.Forward(context.Background(), "u9", []byte(`{"type":"pong"}`)))

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.JSONEq(t, `"node-7"`, string(env["origin"]))
	assert.JSONEq(t, `"u9"`, string(env["key"]))
	assert.JSONEq(t, `{"type":"pong"}`, string(env["payload"]))
}

func TestRelayRejectsGarbage(t *testing.T) {
	r := NewRelay(newMemBus(), "", "a")
	h := r.handler(func(string, []byte) bool { t.Fatal("must not deliver"); return false })
	assert.Error(t, h(context.Background(), NatsxMessage{Data: []byte("not json")}))
	assert.NoError(t, h(context.Background(), NatsxMessage{Data: []byte(`{"origin":"b"}`)}))
}

func TestChainOrderAndRecovery(t *testing.T) {
	var order []string
	mw := func(name string) NatsxMiddleware {
		return func(next NatsxHandler) NatsxHandler {
			return func(ctx context.Context, msg NatsxMessage) error {
				order = append(order, name)
				return next(ctx, msg)
			}
		}
	}
	h := NatsxChain(func(context.Context, NatsxMessage) error {
		order = append(order, "h")
		return errors.New("boom")
	}, mw("1"), mw("2"))
	assert.Error(t, h(context.Background(), NatsxMessage{}))
	assert.Equal(t, []string{"1", "2", "h"}, order)

	p := NatsxChain(func(context.Context, NatsxMessage) error { panic("x") }, Recovery())
	assert.Error(t, p(context.Background(), NatsxMessage{Subject: "s"}))
}
