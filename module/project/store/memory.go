package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"ProjectHub/module/project/model"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Memory struct {
	mu    sync.RWMutex
	items map[primitive.ObjectID]*model.Project
}

func NewMemory() *Memory {
	return &Memory{items: make(map[primitive.ObjectID]*model.Project)}
}

func clone(p *model.Project) *model.Project {
	c := *p
	c.Authors = append([]model.Author(nil), p.Authors...)
	return &c
}

func (m *Memory) Create(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.items[p.ID] = clone(p)
	return nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*model.Project, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[oid]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("project not found", "id", id)
	}
	return clone(p), nil
}

func sortKey(p *model.Project, field string) time.Time {
	if field == "published_at" {
		if p.PublishedAt == nil {
			return time.Time{}
		}
		return *p.PublishedAt
	}
	if field == "created_at" {
		return p.CreatedAt
	}
	return p.UpdatedAt
}

func (m *Memory) List(_ context.Context, f Filter) ([]*model.Project, error) {
	m.mu.RLock()
	out := make([]*model.Project, 0)
	for _, p := range m.items {
		if f.Status != "" && p.Metadata.Status != f.Status {
			continue
		}
		if f.AuthorID != "" && !p.HasAuthor(f.AuthorID) {
			continue
		}
		if f.AssignedTo != "" && p.Evaluation.AssignedTo != f.AssignedTo {
			continue
		}
		out = append(out, clone(p))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return sortKey(out[i], f.SortBy).After(sortKey(out[j], f.SortBy))
	})
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, id string, u Update) (*model.Project, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[oid]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("project not found", "id", id)
	}
	if len(u.FromStatus) > 0 && !slices.Contains(u.FromStatus, p.Metadata.Status) {
		return nil, statusMismatch(id, p.Metadata.Status, u.FromStatus)
	}
	p.UpdatedAt, p.Metadata.LastModified = u.UpdatedAt, u.UpdatedAt
	if u.Status != nil {
		p.Metadata.Status = *u.Status
	}
	if u.Grade != nil {
		g := *u.Grade
		p.Grade = &g
	}
	if u.GradeType != nil {
		p.GradeType = *u.GradeType
	}
	if u.GradedAt != nil {
		t := *u.GradedAt
		p.GradedAt = &t
	}
	if u.GradedBy != nil {
		p.GradedBy = *u.GradedBy
	}
	if u.PublishedAt != nil {
		p.PublishedAt = *u.PublishedAt
	}
	return clone(p), nil
}

func (m *Memory) CountByStatus(_ context.Context) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64)
	for _, p := range m.items {
		out[p.Metadata.Status]++
	}
	return out, nil
}
