package store

import (
	"context"
	"time"

	"ProjectHub/module/chat/model"
)

type Store interface {
	// ===== 会话 =====
	FindConversation(ctx context.Context, id string) (*model.Conversation, error)
	// FindConversationByPair 没有时返回 (nil, nil)
	FindConversationByPair(ctx context.Context, studentID, teacherID string) (*model.Conversation, error)
	CreateConversation(ctx context.Context, c *model.Conversation) error
	// TouchConversation 更新最后一条消息，并给 unreadSlot 位置 +1
	TouchConversation(ctx context.Context, id, lastMessage string, at time.Time, unreadSlot string) error
	// ListConversations slot 为空时匹配 student_id 或 teacher_id；按 updated_at 倒序
	ListConversations(ctx context.Context, userID, slot string) ([]*model.Conversation, error)
	// MarkConversationRead 清零 slot 的未读，并把另一方发来的消息置为已读
	MarkConversationRead(ctx context.Context, id, slot string) error

	// ===== 会话消息 =====
	InsertMessage(ctx context.Context, m *model.ChatMessage) error
	// ListMessages 按时间正序
	ListMessages(ctx context.Context, conversationID string, limit int64) ([]*model.ChatMessage, error)

	// ===== 房间消息 =====
	InsertSimple(ctx context.Context, m *model.SimpleMessage) error
	ListSimple(ctx context.Context, roomID string) ([]*model.SimpleMessage, error)
	// MarkSimpleRead 把房间里别人发的消息置为已读
	MarkSimpleRead(ctx context.Context, roomID, userID string) (int64, error)
	// ListFilesTo 发给 receiverID 的带附件消息，新的在前
	ListFilesTo(ctx context.Context, receiverID string) ([]*model.SimpleMessage, error)
}
