package realtime

import (
	"context"
	"sync/atomic"
	"time"

	"ProjectHub/logger"

	"go.uber.org/zap"
)

type Status int

const (
	Delivered Status = iota + 1
	NotRegistered
	ChannelError
	InvalidPayload
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case NotRegistered:
		return "not_registered"
	case ChannelError:
		return "channel_error"
	case InvalidPayload:
		return "invalid_payload"
	default:
		return "unknown"
	}
}

// Result is the outcome of one push. Err is set for ChannelError and
// InvalidPayload only.
type Result struct {
	Key    string
	Status Status
	Err    error
}

func (r Result) Delivered() bool { return r.Status == Delivered }

// Relay hands a push for a key that is not online here to other nodes.
type Relay interface {
	Forward(ctx context.Context, key string, payload []byte) error
}

// Dispatcher pushes payloads to registered channels. It never returns an
// error to its caller; failures come back as a Result.
type Dispatcher struct {
	reg   *Registry
	rooms *RoomTable
	relay atomic.Pointer[relayBox]
	log   *zap.Logger
	now   func() time.Time
}

type relayBox struct{ r Relay }

func NewDispatcher(reg *Registry, rooms *RoomTable) *Dispatcher {
	return &Dispatcher{
		reg:   reg,
		rooms: rooms,
		log:   logger.Named("realtime.dispatcher"),
		now:   time.Now,
	}
}

func (d *Dispatcher) Registry() *Registry { return d.reg }
func (d *Dispatcher) Rooms() *RoomTable   { return d.rooms }

func (d *Dispatcher) SetRelay(r Relay) {
	if r == nil {
		d.relay.Store(nil)
		return
	}
	d.relay.Store(&relayBox{r: r})
}

// SendTo reports whether payload reached key's channel.
func (d *Dispatcher) SendTo(key string, payload any) bool {
	return d.Deliver(key, payload).Delivered()
}

func (d *Dispatcher) Deliver(key string, payload any) Result {
	raw, err := encode(payload)
	if err != nil {
		d.log.Warn("encode payload", zap.String("key", key), zap.Error(err))
		return Result{Key: key, Status: InvalidPayload, Err: err}
	}
	return d.deliverRaw(key, raw)
}

func (d *Dispatcher) deliverRaw(key string, raw []byte) Result {
	ch, ok := d.reg.Lookup(key)
	if !ok {
		return Result{Key: key, Status: NotRegistered}
	}
	if err := ch.Push(raw); err != nil {
		// 推送失败：视为未送达并摘除该连接
		d.reg.Release(key, ch)
		d.log.Warn("push failed, channel dropped", zap.String("key", key), zap.Error(err))
		return Result{Key: key, Status: ChannelError, Err: err}
	}
	return Result{Key: key, Status: Delivered}
}

// BroadcastToRoom delivers to every member of roomKey except excludeKey.
// An unknown room yields no results.
func (d *Dispatcher) BroadcastToRoom(roomKey string, payload any, excludeKey string) []Result {
	members := d.rooms.Members(roomKey)
	if len(members) == 0 {
		return nil
	}
	raw, err := encode(payload)
	if err != nil {
		d.log.Warn("encode payload", zap.String("room", roomKey), zap.Error(err))
		return []Result{{Key: roomKey, Status: InvalidPayload, Err: err}}
	}
	out := make([]Result, 0, len(members))
	for _, m := range members {
		if m == excludeKey {
			continue
		}
		out = append(out, d.deliverRaw(m, raw))
	}
	return out
}

// Notify is Deliver plus the cross-node fallback: a key that is not online
// here is forwarded to the relay when one is configured. The returned Result
// is still the local outcome.
func (d *Dispatcher) Notify(ctx context.Context, key string, payload any) Result {
	raw, err := encode(payload)
	if err != nil {
		d.log.Warn("encode payload", zap.String("key", key), zap.Error(err))
		return Result{Key: key, Status: InvalidPayload, Err: err}
	}
	res := d.deliverRaw(key, raw)
	if res.Status != NotRegistered {
		return res
	}
	if box := d.relay.Load(); box != nil {
		if err := box.r.Forward(ctx, key, raw); err != nil {
			d.log.Warn("relay forward", zap.String("key", key), zap.Error(err))
		}
	}
	return res
}

// BroadcastPresence tells everyone sharing a room with key that it went
// online or offline. Each peer gets at most one frame.
func (d *Dispatcher) BroadcastPresence(key string, online bool) int {
	rooms := d.rooms.RoomsOf(key)
	if len(rooms) == 0 {
		return 0
	}
	raw, err := encode(PresencePayload(key, online, d.now()))
	if err != nil {
		return 0
	}
	seen := map[string]struct{}{key: {}}
	n := 0
	for _, room := range rooms {
		for _, m := range d.rooms.Members(room) {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			if d.deliverRaw(m, raw).Delivered() {
				n++
			}
		}
	}
	return n
}
