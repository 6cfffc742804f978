package model

import (
	"time"

	"ProjectHub/data/database"
)

// 会话里的两个位置；coordinator 发起时占 teacher 位，被教师发起时占 student 位
const (
	SlotStudent = "student"
	SlotTeacher = "teacher"
)

func SlotOf(role string) string {
	if role == SlotStudent {
		return SlotStudent
	}
	return SlotTeacher
}


// Conversation 学生 ⇄ 教师 一对一会话
type Conversation struct {
	ConversationID string `bson:"conversation_id" json:"conversation_id"`
	RoomID         string `bson:"room_id" json:"room_id"`

	StudentID   string `bson:"student_id" json:"student_id"`
	StudentName string `bson:"student_name" json:"student_name"`
	TeacherID   string `bson:"teacher_id" json:"teacher_id"`
	TeacherName string `bson:"teacher_name" json:"teacher_name"`

	ProjectID    string `bson:"project_id,omitempty" json:"project_id,omitempty"`
	ProjectTitle string `bson:"project_title,omitempty" json:"project_title,omitempty"`

	LastMessage     string    `bson:"last_message" json:"last_message"`
	LastMessageTime time.Time `bson:"last_message_time" json:"last_message_time"`
	// 未读计数，按位置分开
	UnreadStudent int64 `bson:"unread_count_student" json:"unread_count_student"`
	UnreadTeacher int64 `bson:"unread_count_teacher" json:"unread_count_teacher"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (c *Conversation) GetTableName() string { return database.ConversationsTable }

func (c *Conversation) Unread(slot string) int64 {
	if slot == SlotStudent {
		return c.UnreadStudent
	}
	return c.UnreadTeacher
}

type ChatMessage struct {
	MessageID      string    `bson:"message_id" json:"message_id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	SenderName     string    `bson:"sender_name" json:"sender_name"`
	SenderRole     string    `bson:"sender_role" json:"sender_role"`
	ReceiverID     string    `bson:"receiver_id" json:"receiver_id"`
	ReceiverName   string    `bson:"receiver_name" json:"receiver_name"`
	Message        string    `bson:"message" json:"message"`
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
	Read           bool      `bson:"read" json:"read"`
}

func (m *ChatMessage) GetTableName() string { return database.ChatMessagesTable }

// SimpleMessage 房间聊天消息，可带附件
type SimpleMessage struct {
	MessageID  string    `bson:"message_id" json:"message_id"`
	RoomID     string    `bson:"room_id" json:"room_id"`
	SenderID   string    `bson:"sender_id" json:"sender_id"`
	SenderName string    `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	SenderRole string    `bson:"sender_role,omitempty" json:"sender_role,omitempty"`
	ReceiverID string    `bson:"receiver_id" json:"receiver_id"`
	Message    string    `bson:"message" json:"message"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	Read       bool      `bson:"read" json:"read"`

	FileURL  string `bson:"file_url,omitempty" json:"file_url,omitempty"`
	FileName string `bson:"file_name,omitempty" json:"file_name,omitempty"`
	FileType string `bson:"file_type,omitempty" json:"file_type,omitempty"`
	FileSize int64  `bson:"file_size,omitempty" json:"file_size,omitempty"`
}

func (m *SimpleMessage) GetTableName() string { return database.SimpleChatMessagesTable }

// FileInfo 上传结果
type FileInfo struct {
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	Size     int64  `json:"size"`
}
