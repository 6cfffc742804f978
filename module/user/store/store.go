package store

import (
	"context"
	"time"

	"ProjectHub/module/user/model"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Update 只写非 nil 字段
type Update struct {
	Name      *string
	Email     *string
	Role      *string
	Active    *bool
	UpdatedAt time.Time
}

type Filter struct {
	Role  string
	Skip  int64
	Limit int64
}

// Store 用户持久化；找不到时返回 errs.ErrRecordNotFound，唯一键冲突返回 errs.ErrConflict
type Store interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByCedula(ctx context.Context, cedula string) (*model.User, error)
	List(ctx context.Context, f Filter) ([]*model.User, int64, error)
	Create(ctx context.Context, u *model.User) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string) error
	// SetAssignedTeacher at 为 nil 时清除
	SetAssignedTeacher(ctx context.Context, studentID string, at *model.AssignedTeacher) error
	Update(ctx context.Context, id string, u Update) (*model.User, error)
	SetProfile(ctx context.Context, id string, profile map[string]any, at time.Time) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context) (*model.Summary, error)
}

func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.ErrArgs.WrapMsg("invalid id", "id", id)
	}
	return oid, nil
}
