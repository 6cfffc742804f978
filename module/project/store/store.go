package store

import (
	"context"
	"strings"
	"time"

	"ProjectHub/module/project/model"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Filter struct {
	Status     string
	AuthorID   string
	AssignedTo string
	Limit      int64
	// SortBy 倒序字段，默认 updated_at
	SortBy string
}

// Update 只写非 nil 字段
type Update struct {
	Status      *string
	Grade       *float64
	GradeType   *string
	GradedAt    *time.Time
	GradedBy    *string
	PublishedAt **time.Time
	UpdatedAt   time.Time
	// FromStatus 非空时只有当前状态在其中才写，和写入同一次原子操作
	FromStatus []string
}

type Store interface {
	Create(ctx context.Context, p *model.Project) error
	FindByID(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context, f Filter) ([]*model.Project, error)
	Update(ctx context.Context, id string, u Update) (*model.Project, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.ErrArgs.WrapMsg("invalid project id", "id", id)
	}
	return oid, nil
}

// statusMismatch 条件更新没命中、但记录存在时的错误
func statusMismatch(id, cur string, want []string) error {
	return errs.ErrArgs.WrapMsg("invalid project status for this action",
		"id", id, "status", cur, "want", strings.Join(want, "|"))
}
