package store

import (
	"context"
	"time"

	"ProjectHub/data/database"
	"ProjectHub/module/notification/model"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo struct {
	db func() (*mongo.Database, error)
}

func NewMongo(db func() (*mongo.Database, error)) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) coll() (*mongo.Collection, error) {
	db, err := m.db()
	if err != nil {
		return nil, err
	}
	return database.Collection(db, &model.Notification{}), nil
}

func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	c, err := m.coll()
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return errs.WrapMsg(err, "ensure notifications indexes")
}

func (m *Mongo) Create(ctx context.Context, n *model.Notification) error {
	c, err := m.coll()
	if err != nil {
		return err
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err = c.InsertOne(ctx, n)
	return errs.WrapMsg(err, "insert notification")
}

func (m *Mongo) ListByRecipient(ctx context.Context, recipient string, limit int64) ([]*model.Notification, error) {
	c, err := m.coll()
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := c.Find(ctx, bson.M{"recipient_id": recipient}, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "list notifications")
	}
	out := make([]*model.Notification, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode notifications")
	}
	return out, nil
}

func (m *Mongo) MarkRead(ctx context.Context, id string, at time.Time) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	c, err := m.coll()
	if err != nil {
		return err
	}
	res, err := c.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"read": true, "read_at": at}})
	if err != nil {
		return errs.WrapMsg(err, "mark notification read")
	}
	if res.MatchedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("notification not found")
	}
	return nil
}

func (m *Mongo) MarkAllRead(ctx context.Context, recipient string, at time.Time) (int64, error) {
	c, err := m.coll()
	if err != nil {
		return 0, err
	}
	res, err := c.UpdateMany(ctx,
		bson.M{"recipient_id": recipient, "read": false},
		bson.M{"$set": bson.M{"read": true, "read_at": at}})
	if err != nil {
		return 0, errs.WrapMsg(err, "mark all notifications read")
	}
	return res.ModifiedCount, nil
}

func (m *Mongo) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	c, err := m.coll()
	if err != nil {
		return err
	}
	res, err := c.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errs.WrapMsg(err, "delete notification")
	}
	if res.DeletedCount == 0 {
		return errs.ErrRecordNotFound.WrapMsg("notification not found")
	}
	return nil
}

func (m *Mongo) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	c, err := m.coll()
	if err != nil {
		return 0, err
	}
	n, err := c.CountDocuments(ctx, bson.M{"recipient_id": recipient, "read": false})
	return n, errs.WrapMsg(err, "count unread notifications")
}
