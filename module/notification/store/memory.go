package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ProjectHub/module/notification/model"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Memory struct {
	mu    sync.RWMutex
	items map[primitive.ObjectID]*model.Notification
}

func NewMemory() *Memory {
	return &Memory{items: make(map[primitive.ObjectID]*model.Notification)}
}

func (m *Memory) Create(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	c := *n
	m.items[n.ID] = &c
	return nil
}

func (m *Memory) ListByRecipient(_ context.Context, recipient string, limit int64) ([]*model.Notification, error) {
	m.mu.RLock()
	out := make([]*model.Notification, 0)
	for _, n := range m.items {
		if n.RecipientID == recipient {
			c := *n
			out = append(out, &c)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkRead(_ context.Context, id string, at time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[oid]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("notification not found")
	}
	n.Read, n.ReadAt = true, &at
	return nil
}

func (m *Memory) MarkAllRead(_ context.Context, recipient string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var k int64
	for _, n := range m.items {
		if n.RecipientID == recipient && !n.Read {
			n.Read, n.ReadAt = true, &at
			k++
		}
	}
	return k, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[oid]; !ok {
		return errs.ErrRecordNotFound.WrapMsg("notification not found")
	}
	delete(m.items, oid)
	return nil
}

func (m *Memory) UnreadCount(_ context.Context, recipient string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var k int64
	for _, n := range m.items {
		if n.RecipientID == recipient && !n.Read {
			k++
		}
	}
	return k, nil
}
