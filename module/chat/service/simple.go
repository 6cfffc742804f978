package service

import (
	"context"
	"sort"
	"strings"

	"ProjectHub/module/chat/model"
	"ProjectHub/service/kafka"
	"ProjectHub/service/realtime"
	"ProjectHub/tools/errs"
	"ProjectHub/tools/ids"
)

type SimpleParams struct {
	SenderID   string
	SenderName string
	SenderRole string
	ReceiverID string
	Message    string
	FileURL    string
	FileName   string
	FileType   string
	FileSize   int64
}

type SimpleResult struct {
	Message   *model.SimpleMessage `json:"message"`
	RoomID    string               `json:"room_id"`
	Delivered bool                 `json:"delivered"`
}

// SendSimple 房间消息：房间 id 由两个参与者确定
func (s *Service) SendSimple(ctx context.Context, p SimpleParams) (*SimpleResult, error) {
	if strings.TrimSpace(p.SenderID) == "" || strings.TrimSpace(p.ReceiverID) == "" {
		return nil, errs.ErrArgs.WrapMsg("sender_id and receiver_id required")
	}
	if p.SenderID == p.ReceiverID {
		return nil, errs.ErrArgs.WrapMsg("cannot message yourself")
	}
	if strings.TrimSpace(p.Message) == "" && p.FileURL == "" {
		return nil, errs.ErrArgs.WrapMsg("message or file required")
	}

	room := realtime.DirectRoomID(p.SenderID, p.ReceiverID)
	msg := &model.SimpleMessage{
		MessageID:  ids.UUID(),
		RoomID:     room,
		SenderID:   p.SenderID,
		SenderName: s.displayName(ctx, p.SenderName, p.SenderID),
		SenderRole: p.SenderRole,
		ReceiverID: p.ReceiverID,
		Message:    p.Message,
		Timestamp:  s.now().UTC(),
		FileURL:    p.FileURL,
		FileName:   p.FileName,
		FileType:   p.FileType,
		FileSize:   p.FileSize,
	}
	if err := s.store.InsertSimple(ctx, msg); err != nil {
		return nil, err
	}

	s.rooms.Join(room, p.SenderID, p.ReceiverID)
	ok := s.push.SendTo(p.ReceiverID, realtime.Payload{
		Type:    realtime.EventNewMessage,
		RoomID:  room,
		Message: msg,
	})
	s.events.Emit(kafka.KindMessageSent, p.SenderID, p.ReceiverID, msg.MessageID)
	return &SimpleResult{Message: msg, RoomID: room, Delivered: ok}, nil
}

func (s *Service) SimpleMessages(ctx context.Context, user1, user2 string) ([]*model.SimpleMessage, error) {
	if user1 == "" || user2 == "" {
		return nil, errs.ErrArgs.WrapMsg("two user ids required")
	}
	room := realtime.DirectRoomID(user1, user2)
	s.rooms.Join(room, user1, user2)
	return s.store.ListSimple(ctx, room)
}

func (s *Service) MarkSimpleRead(ctx context.Context, roomID, userID string) (int64, error) {
	if roomID == "" || userID == "" {
		return 0, errs.ErrArgs.WrapMsg("room_id and user_id required")
	}
	return s.store.MarkSimpleRead(ctx, roomID, userID)
}

type OnlineUsers struct {
	OnlineUsers []string `json:"online_users"`
	TotalOnline int      `json:"total_online"`
}

// OnlineUsers 只看本节点的注册表
func (s *Service) OnlineUsers() OnlineUsers {
	var keys []string
	if s.online != nil {
		keys = s.online.ListOnline()
	}
	if keys == nil {
		keys = []string{}
	}
	sort.Strings(keys)
	return OnlineUsers{OnlineUsers: keys, TotalOnline: len(keys)}
}

type Documents struct {
	CoordinatorID string                 `json:"coordinator_id"`
	Documents     []*model.SimpleMessage `json:"documents"`
	Total         int                    `json:"total_documents"`
}

// CoordinatorDocuments 教师们发给协调员的所有附件
func (s *Service) CoordinatorDocuments(ctx context.Context, coordinatorID string) (*Documents, error) {
	if strings.TrimSpace(coordinatorID) == "" {
		return nil, errs.ErrArgs.WrapMsg("coordinator_id required")
	}
	docs, err := s.store.ListFilesTo(ctx, coordinatorID)
	if err != nil {
		return nil, err
	}
	return &Documents{CoordinatorID: coordinatorID, Documents: docs, Total: len(docs)}, nil
}
