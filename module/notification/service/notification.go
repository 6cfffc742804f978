package service

import (
	"context"
	"strings"
	"time"

	"ProjectHub/module/notification/model"
	"ProjectHub/module/notification/store"
	"ProjectHub/service/kafka"
	"ProjectHub/service/realtime"
	"ProjectHub/tools/errs"
)

const maxList = 100

// Pusher 实时推送（realtime.Dispatcher）
type Pusher interface {
	Notify(ctx context.Context, key string, payload any) realtime.Result
}

type Service struct {
	store  store.Store
	push   Pusher
	events kafka.Emitter
	now    func() time.Time
}

func New(st store.Store, push Pusher, events kafka.Emitter) *Service {
	if events == nil {
		events = kafka.Noop{}
	}
	return &Service{store: st, push: push, events: events, now: time.Now}
}

type CreateParams struct {
	Type         string
	RecipientID  string
	Title        string
	Message      string
	ProjectID    string
	ProjectTitle string
	SenderID     string
	SenderName   string
}

// Send 先落库，再推送；推送结果不影响返回
func (s *Service) Send(ctx context.Context, p CreateParams) (*model.Notification, realtime.Result, error) {
	if strings.TrimSpace(p.RecipientID) == "" || strings.TrimSpace(p.Type) == "" {
		return nil, realtime.Result{}, errs.ErrArgs.WrapMsg("type and recipient_id required")
	}
	n := &model.Notification{
		Type:         p.Type,
		RecipientID:  p.RecipientID,
		Title:        p.Title,
		Message:      p.Message,
		ProjectID:    p.ProjectID,
		ProjectTitle: p.ProjectTitle,
		SenderID:     p.SenderID,
		SenderName:   p.SenderName,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, realtime.Result{}, err
	}

	res := s.push.Notify(ctx, n.RecipientID, realtime.Payload{
		Type: realtime.EventNewNotification,
		Data: n,
	})
	s.events.Emit(kafka.KindNotification, n.SenderID, n.RecipientID, n.ID.Hex())
	return n, res, nil
}

func (s *Service) List(ctx context.Context, recipient string) ([]*model.Notification, error) {
	return s.store.ListByRecipient(ctx, recipient, maxList)
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.store.MarkRead(ctx, id, s.now().UTC())
}

func (s *Service) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	return s.store.MarkAllRead(ctx, recipient, s.now().UTC())
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *Service) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	return s.store.UnreadCount(ctx, recipient)
}
