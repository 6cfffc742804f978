package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"ProjectHub/module/user/model"
	"ProjectHub/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory 内存实现，测试和本地调试用
type Memory struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]*model.User
}

func NewMemory() *Memory {
	return &Memory{users: make(map[primitive.ObjectID]*model.User)}
}

func clone(u *model.User) *model.User {
	c := *u
	if u.AssignedTeacher != nil {
		at := *u.AssignedTeacher
		c.AssignedTeacher = &at
	}
	if u.Profile != nil {
		c.Profile = maps.Clone(u.Profile)
	}
	return &c
}

func (m *Memory) FindByID(_ context.Context, id string) (*model.User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[oid]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found")
	}
	return clone(u), nil
}

func (m *Memory) FindByCedula(_ context.Context, cedula string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Cedula == cedula {
			return clone(u), nil
		}
	}
	return nil, errs.ErrRecordNotFound.WrapMsg("user not found")
}

func (m *Memory) List(_ context.Context, f Filter) ([]*model.User, int64, error) {
	m.mu.RLock()
	all := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		if f.Role == "" || u.Role == f.Role {
			all = append(all, clone(u))
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := int64(len(all))
	if f.Skip >= total {
		return []*model.User{}, total, nil
	}
	all = all[f.Skip:]
	if f.Limit > 0 && int64(len(all)) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (m *Memory) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.users {
		if e.Cedula == u.Cedula || (u.Email != "" && e.Email == u.Email) {
			return errs.ErrConflict.WrapMsg("cedula or email already registered")
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.ID] = clone(u)
	return nil
}

func (m *Memory) with(id string, fn func(u *model.User)) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[oid]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("user not found")
	}
	fn(u)
	return nil
}

func (m *Memory) SetLastLogin(_ context.Context, id string, at time.Time) error {
	return m.with(id, func(u *model.User) { u.LastLogin = &at })
}

func (m *Memory) UpdatePassword(_ context.Context, id, hash string) error {
	return m.with(id, func(u *model.User) { u.Password = hash })
}

func (m *Memory) SetAssignedTeacher(_ context.Context, studentID string, at *model.AssignedTeacher) error {
	return m.with(studentID, func(u *model.User) {
		if at == nil {
			u.AssignedTeacher = nil
			return
		}
		c := *at
		u.AssignedTeacher = &c
	})
}

func (m *Memory) Update(_ context.Context, id string, u Update) (*model.User, error) {
	oid, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[oid]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("user not found")
	}
	if u.Email != nil && *u.Email != "" {
		for k, e := range m.users {
			if k != oid && e.Email == *u.Email {
				return nil, errs.ErrConflict.WrapMsg("email already registered")
			}
		}
	}
	if u.Name != nil {
		cur.Name = *u.Name
	}
	if u.Email != nil {
		cur.Email = *u.Email
	}
	if u.Role != nil {
		cur.Role = *u.Role
	}
	if u.Active != nil {
		a := *u.Active
		cur.IsActive = &a
	}
	cur.UpdatedAt = u.UpdatedAt
	return clone(cur), nil
}

func (m *Memory) SetProfile(_ context.Context, id string, profile map[string]any, at time.Time) error {
	return m.with(id, func(u *model.User) {
		u.Profile = maps.Clone(profile)
		u.UpdatedAt = at
	})
}

func (m *Memory) Delete(_ context.Context, id string) error {
	oid, err := ParseID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[oid]; !ok {
		return errs.ErrRecordNotFound.WrapMsg("user not found")
	}
	delete(m.users, oid)
	return nil
}

func (m *Memory) Summary(_ context.Context) (*model.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := &model.Summary{ByRole: make(map[string]int64)}
	for _, u := range m.users {
		out.Total++
		if u.Active() {
			out.Active++
		}
		out.ByRole[u.Role]++
	}
	return out, nil
}
