package store

import (
	"context"
	"time"

	"ProjectHub/data/database"
	"ProjectHub/data/database/mgo/mongoutil"
	"ProjectHub/module/chat/model"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	db func() (*mongo.Database, error)
}

func NewMongo(db func() (*mongo.Database, error)) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) coll(t database.Table) (*mongo.Collection, error) {
	db, err := m.db()
	if err != nil {
		return nil, err
	}
	return database.Collection(db, t), nil
}

func unreadField(slot string) string {
	return "unread_count_" + slot
}

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	idx := []struct {
		t    database.Table
		keys []mongo.IndexModel
	}{
		{&model.Conversation{}, []mongo.IndexModel{
			{Keys: bson.D{{Key: "conversation_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "teacher_id", Value: 1}}},
			{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		}},
		{&model.ChatMessage{}, []mongo.IndexModel{
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		}},
		{&model.SimpleMessage{}, []mongo.IndexModel{
			{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		}},
	}
	for _, it := range idx {
		c, err := m.coll(it.t)
		if err != nil {
			return err
		}
		if _, err := c.Indexes().CreateMany(ctx, it.keys); err != nil {
			return errs.WrapMsg(err, "ensure chat indexes", "collection", it.t.GetTableName())
		}
	}
	return nil
}

func (m *Mongo) FindConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c, err := m.coll(&model.Conversation{})
	if err != nil {
		return nil, err
	}
	var conv model.Conversation
	if err := c.FindOne(ctx, bson.M{"conversation_id": id}).Decode(&conv); err != nil {
		if mongoutil.IsNotFound(err) {
			return nil, errs.ErrRecordNotFound.WrapMsg("conversation not found", "conversation_id", id)
		}
		return nil, errs.WrapMsg(err, "find conversation")
	}
	return &conv, nil
}

func (m *Mongo) FindConversationByPair(ctx context.Context, studentID, teacherID string) (*model.Conversation, error) {
	c, err := m.coll(&model.Conversation{})
	if err != nil {
		return nil, err
	}
	var conv model.Conversation
	err = c.FindOne(ctx, bson.M{"student_id": studentID, "teacher_id": teacherID}).Decode(&conv)
	if mongoutil.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find conversation by pair")
	}
	return &conv, nil
}

func (m *Mongo) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	c, err := m.coll(conv)
	if err != nil {
		return err
	}
	_, err = c.InsertOne(ctx, conv)
	return errs.WrapMsg(err, "insert conversation")
}

func (m *Mongo) TouchConversation(ctx context.Context, id, lastMessage string, at time.Time, unreadSlot string) error {
	c, err := m.coll(&model.Conversation{})
	if err != nil {
		return err
	}
	res, err := c.UpdateOne(ctx, bson.M{"conversation_id": id}, bson.M{
		"$set": bson.M{"last_message": lastMessage, "last_message_time": at, "updated_at": at},
		"$inc": bson.M{unreadField(unreadSlot): 1},
	})
	if err != nil {
		return errs.WrapMsg(err, "touch conversation")
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("conversation not found", "conversation_id", id)
	}
	return nil
}

func (m *Mongo) ListConversations(ctx context.Context, userID, slot string) ([]*model.Conversation, error) {
	c, err := m.coll(&model.Conversation{})
	if err != nil {
		return nil, err
	}
	filter := bson.M{"$or": bson.A{bson.M{"student_id": userID}, bson.M{"teacher_id": userID}}}
	if slot != "" {
		filter = bson.M{slot + "_id": userID}
	}
	cur, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list conversations")
	}
	out := make([]*model.Conversation, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode conversations")
	}
	return out, nil
}

func (m *Mongo) MarkConversationRead(ctx context.Context, id, slot string) error {
	conv, err := m.FindConversation(ctx, id)
	if err != nil {
		return err
	}
	c, err := m.coll(conv)
	if err != nil {
		return err
	}
	if _, err := c.UpdateOne(ctx, bson.M{"conversation_id": id},
		bson.M{"$set": bson.M{unreadField(slot): 0}}); err != nil {
		return errs.WrapMsg(err, "reset unread counter")
	}

	// 对方发来的消息：receiver 是自己
	self := conv.StudentID
	if slot == model.SlotTeacher {
		self = conv.TeacherID
	}
	mc, err := m.coll(&model.ChatMessage{})
	if err != nil {
		return err
	}
	_, err = mc.UpdateMany(ctx,
		bson.M{"conversation_id": id, "receiver_id": self, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	return errs.WrapMsg(err, "mark messages read")
}

func (m *Mongo) InsertMessage(ctx context.Context, msg *model.ChatMessage) error {
	c, err := m.coll(msg)
	if err != nil {
		return err
	}
	_, err = c.InsertOne(ctx, msg)
	return errs.WrapMsg(err, "insert chat message")
}

func (m *Mongo) ListMessages(ctx context.Context, conversationID string, limit int64) ([]*model.ChatMessage, error) {
	c, err := m.coll(&model.ChatMessage{})
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := c.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "list chat messages")
	}
	out := make([]*model.ChatMessage, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode chat messages")
	}
	return out, nil
}

func (m *Mongo) InsertSimple(ctx context.Context, msg *model.SimpleMessage) error {
	c, err := m.coll(msg)
	if err != nil {
		return err
	}
	_, err = c.InsertOne(ctx, msg)
	return errs.WrapMsg(err, "insert room message")
}

func (m *Mongo) ListSimple(ctx context.Context, roomID string) ([]*model.SimpleMessage, error) {
	c, err := m.coll(&model.SimpleMessage{})
	if err != nil {
		return nil, err
	}
	cur, err := c.Find(ctx, bson.M{"room_id": roomID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list room messages")
	}
	out := make([]*model.SimpleMessage, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode room messages")
	}
	return out, nil
}

func (m *Mongo) MarkSimpleRead(ctx context.Context, roomID, userID string) (int64, error) {
	c, err := m.coll(&model.SimpleMessage{})
	if err != nil {
		return 0, err
	}
	res, err := c.UpdateMany(ctx,
		bson.M{"room_id": roomID, "sender_id": bson.M{"$ne": userID}, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, errs.WrapMsg(err, "mark room messages read")
	}
	return res.ModifiedCount, nil
}

func (m *Mongo) ListFilesTo(ctx context.Context, receiverID string) ([]*model.SimpleMessage, error) {
	c, err := m.coll(&model.SimpleMessage{})
	if err != nil {
		return nil, err
	}
	cur, err := c.Find(ctx,
		bson.M{"receiver_id": receiverID, "file_url": bson.M{"$nin": bson.A{nil, ""}}},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "list received files")
	}
	out := make([]*model.SimpleMessage, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode received files")
	}
	return out, nil
}
