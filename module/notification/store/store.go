package store

import (
	"context"
	"time"

	"ProjectHub/module/notification/model"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store interface {
	Create(ctx context.Context, n *model.Notification) error
	// ListByRecipient 按 created_at 倒序
	ListByRecipient(ctx context.Context, recipient string, limit int64) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, recipient string, at time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
	UnreadCount(ctx context.Context, recipient string) (int64, error)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.ErrArgs.WrapMsg("invalid notification id", "id", id)
	}
	return oid, nil
}
