package database

import "go.mongodb.org/mongo-driver/mongo"

// 集合名
const (
	UsersTable              = "users"
	ProjectsTable           = "projects"
	NotificationsTable      = "notifications"
	ConversationsTable      = "conversations"
	ChatMessagesTable       = "chat_messages"
	SimpleChatMessagesTable = "simple_chat_messages"
)

type Table interface {
	GetTableName() string
}

// Collection 取模型对应的集合
func Collection(db *mongo.Database, t Table) *mongo.Collection {
	return db.Collection(t.GetTableName())
}
