package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ProjectHub/logger"
	"ProjectHub/module/chat/model"
	"ProjectHub/module/chat/store"
	umodel "ProjectHub/module/user/model"
	"ProjectHub/service/kafka"
	"ProjectHub/service/realtime"
	"ProjectHub/tools/errs"
	"ProjectHub/tools/ids"

	"go.uber.org/zap"
)

const (
	defaultMessageLimit = 100
	maxMessageLimit     = 500
)

// Pusher 由 realtime.Dispatcher 实现
type Pusher interface {
	Notify(ctx context.Context, key string, payload any) realtime.Result
	SendTo(key string, payload any) bool
}

// Rooms 由 realtime.RoomTable 实现
type Rooms interface {
	Join(room string, members ...string)
	RoomsOf(member string) []string
}

type Names interface {
	DisplayName(ctx context.Context, id string) string
}

type Online interface {
	ListOnline() []string
}

type Deps struct {
	Store  store.Store
	Push   Pusher
	Rooms  Rooms
	Names  Names
	Online Online
	Events kafka.Emitter

	UploadDir string
	MaxUpload int64
}

type Service struct {
	store  store.Store
	push   Pusher
	rooms  Rooms
	names  Names
	online Online
	events kafka.Emitter

	uploadDir string
	maxUpload int64
	now       func() time.Time
}

func New(d Deps) *Service {
	if d.Events == nil {
		d.Events = kafka.Noop{}
	}
	if d.UploadDir == "" {
		d.UploadDir = "uploads"
	}
	if d.MaxUpload <= 0 {
		d.MaxUpload = 10 << 20
	}
	return &Service{
		store:     d.Store,
		push:      d.Push,
		rooms:     d.Rooms,
		names:     d.Names,
		online:    d.Online,
		events:    d.Events,
		uploadDir: d.UploadDir,
		maxUpload: d.MaxUpload,
		now:       time.Now,
	}
}

// slotFor 校验角色并返回会话位置
func slotFor(role string) (string, error) {
	switch role {
	case umodel.RoleStudent, umodel.RoleTeacher, umodel.RoleCoordinator:
		return model.SlotOf(role), nil
	}
	return "", errs.ErrArgs.WrapMsg("invalid role", "role", role)
}

func (s *Service) displayName(ctx context.Context, given, id string) string {
	if strings.TrimSpace(given) != "" || s.names == nil {
		return given
	}
	return s.names.DisplayName(ctx, id)
}

type SendParams struct {
	SenderID       string
	SenderName     string
	SenderRole     string
	ReceiverID     string
	ReceiverName   string
	Message        string
	ConversationID string
	ProjectID      string
	ProjectTitle   string
}

type SendResult struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Delivered      bool   `json:"delivered"`
}

// SendMessage 写会话和消息，写成功后再推送给接收方
func (s *Service) SendMessage(ctx context.Context, p SendParams) (*SendResult, error) {
	if strings.TrimSpace(p.SenderID) == "" || strings.TrimSpace(p.ReceiverID) == "" {
		return nil, errs.ErrArgs.WrapMsg("sender_id and receiver_id required")
	}
	if p.SenderID == p.ReceiverID {
		return nil, errs.ErrArgs.WrapMsg("cannot message yourself")
	}
	if strings.TrimSpace(p.Message) == "" {
		return nil, errs.ErrArgs.WrapMsg("message required")
	}
	slot, err := slotFor(p.SenderRole)
	if err != nil {
		return nil, err
	}
	senderName := s.displayName(ctx, p.SenderName, p.SenderID)
	receiverName := s.displayName(ctx, p.ReceiverName, p.ReceiverID)

	conv, err := s.resolveConversation(ctx, p, slot, senderName, receiverName)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	msg := &model.ChatMessage{
		MessageID:      ids.UUID(),
		ConversationID: conv.ConversationID,
		SenderID:       p.SenderID,
		SenderName:     senderName,
		SenderRole:     p.SenderRole,
		ReceiverID:     p.ReceiverID,
		ReceiverName:   receiverName,
		Message:        p.Message,
		Timestamp:      now,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	// 未读记在接收方所在的位置，不按角色推
	if err := s.store.TouchConversation(ctx, conv.ConversationID, p.Message, now, slotIn(conv, p.ReceiverID)); err != nil {
		return nil, err
	}

	// 落库之后才推送，推送失败不影响结果
	s.rooms.Join(conv.RoomID, conv.StudentID, conv.TeacherID)
	res := s.push.Notify(ctx, p.ReceiverID, realtime.Payload{
		Type:           realtime.EventNewMessage,
		ConversationID: conv.ConversationID,
		RoomID:         conv.RoomID,
		Message:        msg,
	})
	if !res.Delivered() {
		logger.Debug("[Chat] receiver not reached",
			zap.String("receiver", p.ReceiverID), zap.Stringer("status", res.Status))
	}
	s.events.Emit(kafka.KindMessageSent, p.SenderID, p.ReceiverID, msg.MessageID)

	return &SendResult{
		ConversationID: conv.ConversationID,
		MessageID:      msg.MessageID,
		Delivered:      res.Delivered(),
	}, nil
}

func (s *Service) resolveConversation(ctx context.Context, p SendParams, slot, senderName, receiverName string) (*model.Conversation, error) {
	if p.ConversationID != "" {
		conv, err := s.store.FindConversation(ctx, p.ConversationID)
		switch {
		case err == nil:
			if !participant(conv, p.SenderID) || !participant(conv, p.ReceiverID) {
				return nil, errs.ErrNoPermission.WrapMsg("not a participant", "conversation_id", p.ConversationID)
			}
			return conv, nil
		case errors.Is(err, errs.ErrRecordNotFound):
			// id 失效时按收发双方重新找或新建
			logger.Debug("[Chat] conversation id not found, resolving by pair", zap.String("conversation_id", p.ConversationID))
		default:
			return nil, err
		}
	}

	studentID, studentName, teacherID, teacherName := p.SenderID, senderName, p.ReceiverID, receiverName
	if slot == model.SlotTeacher {
		studentID, studentName, teacherID, teacherName = p.ReceiverID, receiverName, p.SenderID, senderName
	}
	conv, err := s.findPair(ctx, studentID, teacherID)
	if err != nil || conv != nil {
		return conv, err
	}

	now := s.now().UTC()
	conv = &model.Conversation{
		ConversationID:  ids.UUID(),
		RoomID:          realtime.DirectRoomID(studentID, teacherID),
		StudentID:       studentID,
		StudentName:     studentName,
		TeacherID:       teacherID,
		TeacherName:     teacherName,
		ProjectID:       p.ProjectID,
		ProjectTitle:    p.ProjectTitle,
		LastMessageTime: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// findPair 教师发给协调员时协调员在 student 位置，反过来则在 teacher 位置，两个方向都要找
func (s *Service) findPair(ctx context.Context, studentID, teacherID string) (*model.Conversation, error) {
	conv, err := s.store.FindConversationByPair(ctx, studentID, teacherID)
	if err != nil || conv != nil {
		return conv, err
	}
	return s.store.FindConversationByPair(ctx, teacherID, studentID)
}

func participant(c *model.Conversation, id string) bool {
	return c.StudentID == id || c.TeacherID == id
}

// slotIn 用户在这个会话里的实际位置
func slotIn(c *model.Conversation, id string) string {
	if c.StudentID == id {
		return model.SlotStudent
	}
	return model.SlotTeacher
}

// listFor 协调员可能在任一位置，按两边查
func (s *Service) listFor(ctx context.Context, userID, role string) ([]*model.Conversation, error) {
	slot, err := slotFor(role)
	if err != nil {
		return nil, err
	}
	if role == umodel.RoleCoordinator {
		slot = ""
	}
	return s.store.ListConversations(ctx, userID, slot)
}

func (s *Service) Conversations(ctx context.Context, userID, role string) ([]*model.Conversation, error) {
	convs, err := s.listFor(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		s.rooms.Join(c.RoomID, c.StudentID, c.TeacherID)
	}
	return convs, nil
}

func (s *Service) Messages(ctx context.Context, conversationID string, limit int64) ([]*model.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	if _, err := s.store.FindConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID, limit)
}

// MarkAsRead userID 是会话成员时按实际位置清零，否则退回按角色
func (s *Service) MarkAsRead(ctx context.Context, conversationID, userID, role string) error {
	conv, err := s.store.FindConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if userID != "" && participant(conv, userID) {
		return s.store.MarkConversationRead(ctx, conversationID, slotIn(conv, userID))
	}
	slot, err := slotFor(role)
	if err != nil {
		return err
	}
	return s.store.MarkConversationRead(ctx, conversationID, slot)
}

func (s *Service) UnreadCount(ctx context.Context, userID, role string) (int64, error) {
	convs, err := s.listFor(ctx, userID, role)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, c := range convs {
		n += c.Unread(slotIn(c, userID))
	}
	return n, nil
}

// ChatIDs 返回用户所在的房间；先用库里的会话补齐成员表
func (s *Service) ChatIDs(ctx context.Context, userID string) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errs.ErrArgs.WrapMsg("user_id required")
	}
	convs, err := s.store.ListConversations(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		s.rooms.Join(c.RoomID, c.StudentID, c.TeacherID)
	}
	rooms := s.rooms.RoomsOf(userID)
	if rooms == nil {
		rooms = []string{}
	}
	return rooms, nil
}
