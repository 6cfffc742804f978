package service

import (
	"context"
	"strings"
	"time"

	"ProjectHub/logger"
	"ProjectHub/module/user/model"
	"ProjectHub/module/user/store"
	"ProjectHub/service/kafka"
	"ProjectHub/tools/errs"
	jwtlib "ProjectHub/tools/security"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const nameCacheSize = 4096

// LocalPresence 本节点连接表（realtime.Registry）
type LocalPresence interface {
	IsOnline(key string) bool
}

// RemotePresence redis 镜像，可为空
type RemotePresence interface {
	Lookup(ctx context.Context, user string) (nodeID string, online bool, err error)
}

type Deps struct {
	Store  store.Store
	JWT    jwtlib.Options
	Local  LocalPresence
	Remote RemotePresence
	Events kafka.Emitter
}

type Service struct {
	store  store.Store
	jwt    jwtlib.Options
	local  LocalPresence
	remote RemotePresence
	events kafka.Emitter
	names  *lru.Cache[string, string]
	now    func() time.Time
}

func New(d Deps) *Service {
	names, _ := lru.New[string, string](nameCacheSize)
	if d.Events == nil {
		d.Events = kafka.Noop{}
	}
	return &Service{
		store:  d.Store,
		jwt:    d.JWT,
		local:  d.Local,
		remote: d.Remote,
		events: d.Events,
		names:  names,
		now:    time.Now,
	}
}

type LoginResult struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.View `json:"user"`
}

// Login 用 cedula 登录；旧 sha256 密码校验通过后升级为 bcrypt
func (s *Service) Login(ctx context.Context, cedula, password string) (*LoginResult, error) {
	u, err := s.store.FindByCedula(ctx, strings.TrimSpace(cedula))
	if err != nil {
		return nil, err
	}
	if !u.Active() {
		return nil, errs.ErrAccountDisable.WrapMsg("user inactive")
	}
	ok, rehash := jwtlib.CheckPassword(u.Password, password)
	if !ok {
		return nil, errs.ErrPassword.WrapMsg("wrong password")
	}
	id := u.HexID()
	if rehash {
		if h, err := jwtlib.HashPassword(password); err == nil {
			if err := s.store.UpdatePassword(ctx, id, h); err != nil {
				logger.Warn("[User] password upgrade failed", zap.String("user", id), zap.Error(err))
			} else {
				u.Password = h
			}
		}
	}

	at := s.now().UTC()
	if err := s.store.SetLastLogin(ctx, id, at); err != nil {
		logger.Warn("[User] set last_login failed", zap.String("user", id), zap.Error(err))
	} else {
		u.LastLogin = &at
	}
	s.fillTeacherName(ctx, u)

	token, exp, err := jwtlib.Generate(s.jwt, id, u.Role)
	if err != nil {
		return nil, errs.WrapMsg(err, "sign token")
	}
	s.names.Add(id, u.Name)
	return &LoginResult{Token: token, ExpiresAt: exp, User: u.View()}, nil
}

func (s *Service) fillTeacherName(ctx context.Context, u *model.User) {
	if u.Role != model.RoleStudent || u.AssignedTeacher == nil || u.AssignedTeacher.TeacherID == "" {
		return
	}
	if name := s.DisplayName(ctx, u.AssignedTeacher.TeacherID); name != "" {
		u.AssignedTeacher.TeacherName = name
	}
}

func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.names.Add(id, u.Name)
	s.fillTeacherName(ctx, u)
	return u, nil
}

// DisplayName 取显示名，带 LRU 缓存；查不到返回空串
func (s *Service) DisplayName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if n, ok := s.names.Get(id); ok {
		return n
	}
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return ""
	}
	s.names.Add(id, u.Name)
	return u.Name
}

type Page struct {
	Items    []model.View `json:"items"`
	Total    int64        `json:"total"`
	Page     int64        `json:"page"`
	PageSize int64        `json:"page_size"`
}

func (s *Service) List(ctx context.Context, role string, page, pageSize int64) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 100
	}
	users, total, err := s.store.List(ctx, store.Filter{Role: role, Skip: (page - 1) * pageSize, Limit: pageSize})
	if err != nil {
		return nil, err
	}
	out := &Page{Items: make([]model.View, 0, len(users)), Total: total, Page: page, PageSize: pageSize}
	for _, u := range users {
		out.Items = append(out.Items, u.View())
	}
	return out, nil
}

type CreateParams struct {
	Cedula   string
	Name     string
	Email    string
	Role     string
	Password string // 学生缺省用 cedula
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*model.User, error) {
	p.Cedula = strings.TrimSpace(p.Cedula)
	p.Name = strings.TrimSpace(p.Name)
	if p.Cedula == "" || p.Name == "" {
		return nil, errs.ErrArgs.WrapMsg("cedula and name required")
	}
	if p.Password == "" {
		if p.Role != model.RoleStudent {
			return nil, errs.ErrArgs.WrapMsg("password required for role", "role", p.Role)
		}
		p.Password = p.Cedula
	}
	if p.Role == model.RoleCoordinator && len(p.Password) < 9 {
		return nil, errs.ErrArgs.WrapMsg("coordinator password must have at least 9 characters")
	}
	hash, err := jwtlib.HashPassword(p.Password)
	if err != nil {
		return nil, errs.WrapMsg(err, "hash password")
	}
	now := s.now().UTC()
	active := true
	u := &model.User{
		Cedula:    p.Cedula,
		Name:      p.Name,
		Email:     strings.ToLower(strings.TrimSpace(p.Email)),
		Role:      p.Role,
		Password:  hash,
		IsActive:  &active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	s.names.Add(u.HexID(), u.Name)
	return u, nil
}

func (s *Service) AssignTeacher(ctx context.Context, actor, studentID, teacherID string) (*model.User, error) {
	student, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.Role != model.RoleStudent {
		return nil, errs.ErrArgs.WrapMsg("not a student", "id", studentID)
	}
	teacher, err := s.store.FindByID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if teacher.Role != model.RoleTeacher {
		return nil, errs.ErrArgs.WrapMsg("not a teacher", "id", teacherID)
	}
	at := &model.AssignedTeacher{TeacherID: teacherID, TeacherName: teacher.Name, AssignedAt: s.now().UTC()}
	if err := s.store.SetAssignedTeacher(ctx, studentID, at); err != nil {
		return nil, err
	}
	student.AssignedTeacher = at
	s.events.Emit(kafka.KindTeacherAssigned, actor, studentID, teacherID)
	return student, nil
}

func (s *Service) UnassignTeacher(ctx context.Context, studentID string) error {
	student, err := s.store.FindByID(ctx, studentID)
	if err != nil {
		return err
	}
	if student.AssignedTeacher == nil {
		return nil
	}
	return s.store.SetAssignedTeacher(ctx, studentID, nil)
}

type UpdateParams struct {
	Name   *string
	Email  *string
	Role   *string
	Active *bool
}

// Update 协调员改用户资料；改名后刷新名字缓存
func (s *Service) Update(ctx context.Context, actor, id string, p UpdateParams) (*model.User, error) {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return nil, errs.ErrArgs.WrapMsg("name cannot be empty")
		}
		p.Name = &n
	}
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		p.Email = &e
	}
	if p.Role != nil && !validRole(*p.Role) {
		return nil, errs.ErrArgs.WrapMsg("invalid role", "role", *p.Role)
	}
	u, err := s.store.Update(ctx, id, store.Update{
		Name:      p.Name,
		Email:     p.Email,
		Role:      p.Role,
		Active:    p.Active,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.names.Add(id, u.Name)
	s.events.Emit(kafka.KindUserUpdated, actor, id, "")
	return u, nil
}

func validRole(r string) bool {
	switch r {
	case model.RoleStudent, model.RoleTeacher, model.RoleCoordinator:
		return true
	}
	return false
}

func (s *Service) UpdateProfile(ctx context.Context, id string, profile map[string]any) error {
	if len(profile) == 0 {
		return errs.ErrArgs.WrapMsg("profile required")
	}
	return s.store.SetProfile(ctx, id, profile, s.now().UTC())
}

func (s *Service) Delete(ctx context.Context, actor, id string) error {
	if actor == id {
		return errs.ErrArgs.WrapMsg("cannot delete yourself")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.names.Remove(id)
	s.events.Emit(kafka.KindUserDeleted, actor, id, "")
	return nil
}

// byRole 不分页，给分配页面的下拉框用
func (s *Service) byRole(ctx context.Context, role string) ([]model.View, error) {
	users, _, err := s.store.List(ctx, store.Filter{Role: role})
	if err != nil {
		return nil, err
	}
	out := make([]model.View, 0, len(users))
	for _, u := range users {
		s.names.Add(u.HexID(), u.Name)
		s.fillTeacherName(ctx, u)
		out = append(out, u.View())
	}
	return out, nil
}

func (s *Service) TeachersAvailable(ctx context.Context) ([]model.View, error) {
	return s.byRole(ctx, model.RoleTeacher)
}

// StudentsWithAssignments 所有学生，带已分配教师
func (s *Service) StudentsWithAssignments(ctx context.Context) ([]model.View, error) {
	return s.byRole(ctx, model.RoleStudent)
}

func (s *Service) Summary(ctx context.Context) (*model.Summary, error) {
	return s.store.Summary(ctx)
}

type Presence struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
	Local  bool   `json:"local"`
	Node   string `json:"node,omitempty"`
}

// Presence 先看本节点，再看 redis 镜像
func (s *Service) Presence(ctx context.Context, id string) (*Presence, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, err
	}
	p := &Presence{UserID: id}
	if s.local != nil && s.local.IsOnline(id) {
		p.Online, p.Local = true, true
		return p, nil
	}
	if s.remote == nil {
		return p, nil
	}
	node, online, err := s.remote.Lookup(ctx, id)
	if err != nil {
		logger.Warn("[User] presence lookup failed", zap.String("user", id), zap.Error(err))
		return p, nil
	}
	p.Online, p.Node = online, node
	return p, nil
}
