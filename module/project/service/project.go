package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ProjectHub/logger"
	nmodel "ProjectHub/module/notification/model"
	nservice "ProjectHub/module/notification/service"
	"ProjectHub/module/project/model"
	"ProjectHub/module/project/store"
	"ProjectHub/service/kafka"
	"ProjectHub/service/realtime"
	"ProjectHub/tools/errs"

	"go.uber.org/zap"
)

const (
	maxList  = 100
	maxGrade = 20
)

// Notifier 由 notification 服务实现：先落库再推送
type Notifier interface {
	Send(ctx context.Context, p nservice.CreateParams) (*nmodel.Notification, realtime.Result, error)
}

// Pusher 只用来给评审教师推 project_status
type Pusher interface {
	SendTo(key string, payload any) bool
}

type Names interface {
	DisplayName(ctx context.Context, id string) string
}

type Deps struct {
	Store    store.Store
	Notifier Notifier
	Push     Pusher
	Names    Names
	Events   kafka.Emitter
}

type Service struct {
	store    store.Store
	notifier Notifier
	push     Pusher
	names    Names
	events   kafka.Emitter
	now      func() time.Time
}

func New(d Deps) *Service {
	if d.Events == nil {
		d.Events = kafka.Noop{}
	}
	return &Service{
		store:    d.Store,
		notifier: d.Notifier,
		push:     d.Push,
		names:    d.Names,
		events:   d.Events,
		now:      time.Now,
	}
}

func (s *Service) name(ctx context.Context, id string) string {
	if s.names == nil || id == "" {
		return ""
	}
	return s.names.DisplayName(ctx, id)
}

type CreateParams struct {
	Title         string
	Description   string
	TeacherID     string
	Collaborators []string
}

// Create 学生登记项目；调用者是主作者
func (s *Service) Create(ctx context.Context, actor string, p CreateParams) (*model.Project, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, errs.ErrArgs.WrapMsg("title required")
	}
	now := s.now().UTC()
	proj := &model.Project{
		Title:       strings.TrimSpace(p.Title),
		Description: p.Description,
		Authors:     []model.Author{{UserID: actor, Name: s.name(ctx, actor), Role: model.AuthorMain}},
		Metadata:    model.Metadata{Status: model.StatusSubmitted, CurrentVersion: 1, LastModified: now},
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, id := range p.Collaborators {
		if id == "" || proj.HasAuthor(id) {
			continue
		}
		proj.Authors = append(proj.Authors, model.Author{UserID: id, Name: s.name(ctx, id), Role: model.AuthorCollaborator})
	}
	if p.TeacherID != "" {
		proj.Evaluation = model.Evaluation{AssignedTo: p.TeacherID, AssignedAt: &now}
	}
	if err := s.store.Create(ctx, proj); err != nil {
		return nil, err
	}
	return proj, nil
}

type ListParams struct {
	Status    string
	StudentID string
	TeacherID string
}

func (s *Service) List(ctx context.Context, p ListParams) ([]*model.Project, error) {
	return s.store.List(ctx, store.Filter{
		Status:     p.Status,
		AuthorID:   p.StudentID,
		AssignedTo: p.TeacherID,
		Limit:      maxList,
	})
}

func (s *Service) Get(ctx context.Context, id string) (*model.Project, error) {
	return s.store.FindByID(ctx, id)
}

func (s *Service) Assigned(ctx context.Context, teacherID, status string) ([]*model.Project, error) {
	if teacherID == "" {
		return nil, errs.ErrArgs.WrapMsg("teacher_id required")
	}
	return s.store.List(ctx, store.Filter{AssignedTo: teacherID, Status: status, SortBy: "created_at"})
}

func (s *Service) Stats(ctx context.Context) (map[string]any, error) {
	by, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range by {
		total += n
	}
	return map[string]any{"total_projects": total, "by_status": by}, nil
}

type GradeParams struct {
	Grade     float64
	GradeType string
	Status    string
	TeacherID string
}

func (p GradeParams) validate() error {
	if p.Grade < 0 || p.Grade > maxGrade {
		return errs.ErrArgs.WrapMsg("grade out of range", "grade", p.Grade)
	}
	switch p.GradeType {
	case model.GradePartial, model.GradeFinal:
	default:
		return errs.ErrArgs.WrapMsg("invalid grade_type", "grade_type", p.GradeType)
	}
	switch p.Status {
	case model.StatusInReview, model.StatusApproved, model.StatusFailed:
	default:
		return errs.ErrArgs.WrapMsg("invalid status", "status", p.Status)
	}
	if strings.TrimSpace(p.TeacherID) == "" {
		return errs.ErrArgs.WrapMsg("teacher_id required")
	}
	return nil
}

type Outcome struct {
	Project  *model.Project `json:"project"`
	Notified int            `json:"notified"`
}

// Grade 写评分和状态，然后通知每个作者
func (s *Service) Grade(ctx context.Context, id string, p GradeParams) (*Outcome, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	proj, err := s.store.Update(ctx, id, store.Update{
		Status:    &p.Status,
		Grade:     &p.Grade,
		GradeType: &p.GradeType,
		GradedAt:  &now,
		GradedBy:  &p.TeacherID,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Tu proyecto \"%s\" fue calificado: %.2f (%s), estado %s", proj.Title, p.Grade, p.GradeType, p.Status)
	n := s.notifyAuthors(ctx, proj, nmodel.TypeProjectGraded, "Proyecto calificado", msg, p.TeacherID)
	for _, a := range proj.AuthorIDs() {
		s.events.Emit(kafka.KindProjectGraded, p.TeacherID, a, proj.HexID())
	}
	return &Outcome{Project: proj, Notified: n}, nil
}

func (s *Service) GetGrade(ctx context.Context, id string) (*model.GradeView, error) {
	proj, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := proj.GradeView()
	return &v, nil
}

func (s *Service) Approved(ctx context.Context) ([]*model.Project, error) {
	return s.store.List(ctx, store.Filter{Status: model.StatusApproved, Limit: maxList})
}

func (s *Service) Published(ctx context.Context) ([]*model.Project, error) {
	return s.store.List(ctx, store.Filter{Status: model.StatusPublished, Limit: maxList, SortBy: "published_at"})
}

// Publish 只能发布已通过的项目
func (s *Service) Publish(ctx context.Context, id, actor string) (*Outcome, error) {
	now := s.now().UTC()
	at := &now
	return s.transition(ctx, id, actor, []string{model.StatusApproved}, model.StatusPublished, &at,
		nmodel.TypeProjectPublished, "Proyecto publicado", "Tu proyecto \"%s\" fue publicado en la biblioteca digital")
}

// Unpublish published -> aprobado，清掉 published_at
func (s *Service) Unpublish(ctx context.Context, id, actor string) (*Outcome, error) {
	var none *time.Time
	return s.transition(ctx, id, actor, []string{model.StatusPublished}, model.StatusApproved, &none,
		nmodel.TypeProjectUnpublished, "Proyecto retirado", "Tu proyecto \"%s\" fue retirado de la biblioteca digital")
}

func (s *Service) Reject(ctx context.Context, id, actor string) (*Outcome, error) {
	var none *time.Time
	return s.transition(ctx, id, actor, nil, model.StatusFailed, &none,
		nmodel.TypeProjectRejected, "Proyecto rechazado", "Tu proyecto \"%s\" fue rechazado por coordinación")
}

// transition from 为空时不检查当前状态
func (s *Service) transition(ctx context.Context, id, actor string, from []string, to string,
	publishedAt **time.Time, ntype, title, format string) (*Outcome, error) {
	proj, err := s.store.Update(ctx, id, store.Update{
		Status:      &to,
		PublishedAt: publishedAt,
		UpdatedAt:   s.now().UTC(),
		FromStatus:  from,
	})
	if err != nil {
		return nil, err
	}

	n := s.notifyAuthors(ctx, proj, ntype, title, fmt.Sprintf(format, proj.Title), actor)
	if s.push != nil && proj.Evaluation.AssignedTo != "" {
		s.push.SendTo(proj.Evaluation.AssignedTo, realtime.Payload{
			Type: realtime.EventProjectStatus,
			Data: map[string]string{"project_id": proj.HexID(), "status": to},
		})
	}
	for _, a := range proj.AuthorIDs() {
		s.events.Emit(kafka.KindProjectStatus, actor, a, proj.HexID())
	}
	return &Outcome{Project: proj, Notified: n}, nil
}

// notifyAuthors 通知失败只记日志，状态已经写库
func (s *Service) notifyAuthors(ctx context.Context, proj *model.Project, ntype, title, msg, sender string) int {
	if s.notifier == nil {
		return 0
	}
	senderName := s.name(ctx, sender)
	var n int
	for _, a := range proj.AuthorIDs() {
		_, _, err := s.notifier.Send(ctx, nservice.CreateParams{
			Type:         ntype,
			RecipientID:  a,
			Title:        title,
			Message:      msg,
			ProjectID:    proj.HexID(),
			ProjectTitle: proj.Title,
			SenderID:     sender,
			SenderName:   senderName,
		})
		if err != nil {
			logger.Warn("[Project] notify author failed",
				zap.String("project", proj.HexID()), zap.String("author", a), zap.Error(err))
			continue
		}
		n++
	}
	return n
}
