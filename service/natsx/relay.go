package natsx

import (
	"context"
	"encoding/json"

	"ProjectHub/logger"
	"ProjectHub/tools/errs"

	"go.uber.org/zap"
)

// Bus is the part of NatsxClient the relay needs.
type Bus interface {
	Publish(subject string, data []byte, hdr map[string]string) error
	Subscribe(subject, queue string, h NatsxHandler) error
}

// DeliverFunc pushes an already encoded payload to a local key.
type DeliverFunc func(key string, payload []byte) bool

type envelope struct {
	Origin  string          `json:"origin"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// Relay forwards pushes for keys that are not connected to this node. Every
// node subscribes and tries a local delivery; the origin ignores its own echo.
type Relay struct {
	bus     Bus
	subject string
	nodeID  string
}

func NewRelay(bus Bus, subject, nodeID string) *Relay {
	if subject == "" {
		subject = "realtime.relay"
	}
	return &Relay{bus: bus, subject: subject, nodeID: nodeID}
}

func (r *Relay) Forward(_ context.Context, key string, payload []byte) error {
	data, err := json.Marshal(envelope{Origin: r.nodeID, Key: key, Payload: payload})
	if err != nil {
		return errs.WrapMsg(err, "marshal relay envelope")
	}
	return r.bus.Publish(r.subject, data, map[string]string{"origin": r.nodeID})
}

// Start subscribes without a queue group: every node must see every envelope.
func (r *Relay) Start(deliver DeliverFunc) error {
	return r.bus.Subscribe(r.subject, "", r.handler(deliver))
}

func (r *Relay) handler(deliver DeliverFunc) NatsxHandler {
	return func(_ context.Context, msg NatsxMessage) error {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return errs.WrapMsg(err, "decode relay envelope")
		}
		if env.Origin == r.nodeID || env.Key == "" {
			return nil
		}
		if deliver(env.Key, env.Payload) {
			logger.Debug("[Relay] delivered", zap.String("key", env.Key), zap.String("origin", env.Origin))
		}
		return nil
	}
}
