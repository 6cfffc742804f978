package model

import (
	"time"

	"ProjectHub/data/database"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 角色
const (
	RoleStudent     = "student"
	RoleTeacher     = "teacher"
	RoleCoordinator = "coordinator"
)

type AssignedTeacher struct {
	TeacherID   string    `bson:"teacher_id" json:"teacher_id"`
	TeacherName string    `bson:"teacher_name,omitempty" json:"teacher_name,omitempty"`
	AssignedAt  time.Time `bson:"assigned_at" json:"assigned_at"`
}

// User 学生 / 教师 / 协调员共用一张表
type User struct {
	// ===== 基础标识 =====
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Cedula string             `bson:"cedula" json:"cedula"` // 登录账号（身份证号）
	Name   string             `bson:"name" json:"name"`
	Email  string             `bson:"email,omitempty" json:"email,omitempty"`
	Role   string             `bson:"role" json:"role"`

	// ===== 认证 =====
	Password string `bson:"password" json:"-"` // bcrypt；旧数据可能是 sha256 hex
	// 旧数据可能没有该字段，缺省视为启用
	IsActive  *bool      `bson:"is_active,omitempty" json:"-"`
	LastLogin *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`

	AssignedTeacher *AssignedTeacher `bson:"assigned_teacher,omitempty" json:"assigned_teacher,omitempty"`
	// Profile 前端自由填写的资料，整体覆盖
	Profile map[string]any `bson:"profile,omitempty" json:"profile,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) HexID() string {
	return u.ID.Hex()
}

func (u *User) GetTableName() string {
	return database.UsersTable
}

// View 对外输出（带 is_active）
type View struct {
	*User
	Active bool `json:"is_active"`
}

func (u *User) View() View {
	return View{User: u, Active: u.Active()}
}

// Summary 用户统计
type Summary struct {
	Total  int64            `json:"total_users"`
	Active int64            `json:"active_users"`
	ByRole map[string]int64 `json:"by_role"`
}
