package model

import (
	"time"

	"ProjectHub/data/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// metadata.status
const (
	StatusSubmitted = "submitted"
	StatusInReview  = "en_revision"
	StatusApproved  = "aprobado"
	StatusFailed    = "reprobado"
	StatusPublished = "published"
)

// grade_type
const (
	GradePartial = "parcial"
	GradeFinal   = "definitiva"
)

const (
	AuthorMain         = "main_author"
	AuthorCollaborator = "collaborator"
)

type Author struct {
	UserID string `bson:"user_id" json:"user_id"`
	Name   string `bson:"name" json:"name"`
	Role   string `bson:"role" json:"role"`
}

type Metadata struct {
	Status         string    `bson:"status" json:"status"`
	CurrentVersion int       `bson:"current_version" json:"current_version"`
	LastModified   time.Time `bson:"last_modified" json:"last_modified"`
}

type Evaluation struct {
	AssignedTo string     `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	AssignedAt *time.Time `bson:"assigned_at,omitempty" json:"assigned_at,omitempty"`
}

type Project struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Authors     []Author           `bson:"authors" json:"authors"`
	Metadata    Metadata           `bson:"metadata" json:"metadata"`
	Evaluation  Evaluation         `bson:"evaluation" json:"evaluation"`

	// 评分，由教师写入
	Grade     *float64   `bson:"grade,omitempty" json:"grade,omitempty"`
	GradeType string     `bson:"grade_type,omitempty" json:"grade_type,omitempty"`
	GradedAt  *time.Time `bson:"graded_at,omitempty" json:"graded_at,omitempty"`
	GradedBy  string     `bson:"graded_by,omitempty" json:"graded_by,omitempty"`

	PublishedAt *time.Time `bson:"published_at" json:"published_at"`

	CreatedBy string    `bson:"created_by" json:"created_by"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (p *Project) GetTableName() string {
	return database.ProjectsTable
}

func (p *Project) HexID() string { return p.ID.Hex() }

// AuthorIDs 去重后的作者 id
func (p *Project) AuthorIDs() []string {
	seen := make(map[string]struct{}, len(p.Authors))
	out := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a.UserID == "" {
			continue
		}
		if _, ok := seen[a.UserID]; ok {
			continue
		}
		seen[a.UserID] = struct{}{}
		out = append(out, a.UserID)
	}
	return out
}

func (p *Project) HasAuthor(id string) bool {
	for _, a := range p.Authors {
		if a.UserID == id {
			return true
		}
	}
	return false
}

// GradeView GET /evaluation/grade 的返回
type GradeView struct {
	ProjectID string     `json:"project_id"`
	Grade     *float64   `json:"grade"`
	GradeType string     `json:"grade_type"`
	Status    string     `json:"status"`
	GradedAt  *time.Time `json:"graded_at"`
	GradedBy  string     `json:"graded_by"`
}

func (p *Project) GradeView() GradeView {
	return GradeView{
		ProjectID: p.HexID(),
		Grade:     p.Grade,
		GradeType: p.GradeType,
		Status:    p.Metadata.Status,
		GradedAt:  p.GradedAt,
		GradedBy:  p.GradedBy,
	}
}
