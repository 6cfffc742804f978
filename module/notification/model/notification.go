package model

import (
	"time"

	"ProjectHub/data/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 常用通知类型
const (
	TypeProjectGraded      = "project_graded"
	TypeProjectPublished   = "project_published"
	TypeProjectUnpublished = "project_unpublished"
	TypeProjectRejected    = "project_rejected"
	TypeNewMessage         = "new_message"
)

type Notification struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type         string             `bson:"type" json:"type"`
	RecipientID  string             `bson:"recipient_id" json:"recipient_id"`
	Title        string             `bson:"title" json:"title"`
	Message      string             `bson:"message" json:"message"`
	ProjectID    string             `bson:"project_id,omitempty" json:"project_id,omitempty"`
	ProjectTitle string             `bson:"project_title,omitempty" json:"project_title,omitempty"`
	SenderID     string             `bson:"sender_id,omitempty" json:"sender_id,omitempty"`
	SenderName   string             `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	Read         bool               `bson:"read" json:"read"`
	ReadAt       *time.Time         `bson:"read_at,omitempty" json:"read_at,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

func (n *Notification) GetTableName() string {
	return database.NotificationsTable
}
