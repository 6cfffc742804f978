package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ProjectHub/module/chat/model"
	"ProjectHub/tools/errs"
)

// Memory 单进程实现，测试和无库启动用
type Memory struct {
	mu     sync.RWMutex
	convs  map[string]*model.Conversation
	msgs   []*model.ChatMessage
	simple []*model.SimpleMessage
}

func NewMemory() *Memory {
	return &Memory{convs: make(map[string]*model.Conversation)}
}

func (m *Memory) FindConversation(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[id]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("conversation not found", "conversation_id", id)
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) FindConversationByPair(_ context.Context, studentID, teacherID string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.convs {
		if c.StudentID == studentID && c.TeacherID == teacherID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateConversation(_ context.Context, c *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.convs[c.ConversationID]; ok {
		return errs.ErrConflict.WrapMsg("conversation exists", "conversation_id", c.ConversationID)
	}
	cp := *c
	m.convs[c.ConversationID] = &cp
	return nil
}

func (m *Memory) TouchConversation(_ context.Context, id, lastMessage string, at time.Time, unreadSlot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("conversation not found", "conversation_id", id)
	}
	c.LastMessage, c.LastMessageTime, c.UpdatedAt = lastMessage, at, at
	if unreadSlot == model.SlotStudent {
		c.UnreadStudent++
	} else {
		c.UnreadTeacher++
	}
	return nil
}

func (m *Memory) ListConversations(_ context.Context, userID, slot string) ([]*model.Conversation, error) {
	m.mu.RLock()
	out := make([]*model.Conversation, 0)
	for _, c := range m.convs {
		hit := false
		switch slot {
		case model.SlotStudent:
			hit = c.StudentID == userID
		case model.SlotTeacher:
			hit = c.TeacherID == userID
		default:
			hit = c.StudentID == userID || c.TeacherID == userID
		}
		if hit {
			cp := *c
			out = append(out, &cp)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *Memory) MarkConversationRead(_ context.Context, id, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("conversation not found", "conversation_id", id)
	}
	self := c.TeacherID
	if slot == model.SlotStudent {
		c.UnreadStudent = 0
		self = c.StudentID
	} else {
		c.UnreadTeacher = 0
	}
	for _, msg := range m.msgs {
		if msg.ConversationID == id && msg.ReceiverID == self {
			msg.Read = true
		}
	}
	return nil
}

func (m *Memory) InsertMessage(_ context.Context, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.msgs = append(m.msgs, &cp)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, conversationID string, limit int64) ([]*model.ChatMessage, error) {
	m.mu.RLock()
	out := make([]*model.ChatMessage, 0)
	for _, msg := range m.msgs {
		if msg.ConversationID == conversationID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) InsertSimple(_ context.Context, msg *model.SimpleMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.simple = append(m.simple, &cp)
	return nil
}

func (m *Memory) ListSimple(_ context.Context, roomID string) ([]*model.SimpleMessage, error) {
	m.mu.RLock()
	out := make([]*model.SimpleMessage, 0)
	for _, msg := range m.simple {
		if msg.RoomID == roomID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) MarkSimpleRead(_ context.Context, roomID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, msg := range m.simple {
		if msg.RoomID == roomID && msg.SenderID != userID && !msg.Read {
			msg.Read = true
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListFilesTo(_ context.Context, receiverID string) ([]*model.SimpleMessage, error) {
	m.mu.RLock()
	out := make([]*model.SimpleMessage, 0)
	for _, msg := range m.simple {
		if msg.ReceiverID == receiverID && msg.FileURL != "" {
			cp := *msg
			out = append(out, &cp)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
