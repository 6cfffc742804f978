package kafka

import (
	"context"
	"encoding/json"
	"time"

	"ProjectHub/logger"
	"ProjectHub/tools/errs"
	"ProjectHub/tools/safe"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// 活动事件类型
const (
	KindMessageSent     = "message_sent"
	KindNotification    = "notification_created"
	KindProjectGraded   = "project_graded"
	KindProjectStatus   = "project_status"
	KindTeacherAssigned = "teacher_assigned"
	KindUserOnline      = "user_online"
	KindUserOffline     = "user_offline"
	KindUserUpdated     = "user_updated"
	KindUserDeleted     = "user_deleted"
)

// Event 活动流记录，按 Target 分区
type Event struct {
	Kind   string    `json:"kind"`
	Actor  string    `json:"actor,omitempty"`
	Target string    `json:"target"`
	Ref    string    `json:"ref,omitempty"`
	At     time.Time `json:"at"`
}

// Emitter 业务侧只依赖这个
type Emitter interface {
	Emit(kind, actor, target, ref string)
}

// Noop 未启用 Kafka 时使用
type Noop struct{}

func (Noop) Emit(string, string, string, string) {}

type Publisher struct {
	prod  sarama.SyncProducer
	topic string
	now   func() time.Time
}

func NewPublisher(prod sarama.SyncProducer, topic string) *Publisher {
	if topic == "" {
		topic = "phub.activity"
	}
	return &Publisher{prod: prod, topic: topic, now: time.Now}
}

func (p *Publisher) Publish(_ context.Context, ev Event) error {
	if ev.Kind == "" || ev.Target == "" {
		return errs.ErrArgs.WrapMsg("event kind and target required")
	}
	if ev.At.IsZero() {
		ev.At = p.now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return errs.WrapMsg(err, "marshal activity event")
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.Target),
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err := p.prod.SendMessage(msg); err != nil {
		return errs.WrapMsg(err, "send activity event", "topic", p.topic, "kind", ev.Kind)
	}
	return nil
}

// Emit 异步发送，失败只记日志
func (p *Publisher) Emit(kind, actor, target, ref string) {
	ev := Event{Kind: kind, Actor: actor, Target: target, Ref: ref, At: p.now().UTC()}
	safe.SafeGo("activity-emit", func() {
		if err := p.Publish(context.Background(), ev); err != nil {
			logger.Warn("[Activity] publish failed", zap.String("kind", kind), zap.Error(err))
		}
	})
}

// Online / Offline 让 Publisher 可以挂到连接注册表上
func (p *Publisher) Online(key string)  { p.Emit(KindUserOnline, key, key, "") }
func (p *Publisher) Offline(key string) { p.Emit(KindUserOffline, key, key, "") }

func (p *Publisher) Close() error { return p.prod.Close() }
