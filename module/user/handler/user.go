package handler

import (
	"strconv"

	"ProjectHub/global"
	midsec "ProjectHub/middleware/security"
	"ProjectHub/module/user/model"
	"ProjectHub/module/user/service"
	"ProjectHub/tools/errs"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

type loginReq struct {
	Cedula   string `json:"cedula" binding:"required,notblank"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Cedula, req.Password)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, res)
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), midsec.UserID(c))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, u.View())
}

func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	size, _ := strconv.ParseInt(c.DefaultQuery("page_size", "100"), 10, 64)
	res, err := h.svc.List(c.Request.Context(), c.Query("role"), page, size)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, res)
}

func (h *Handler) Get(c *gin.Context) {
	u, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, u.View())
}

func (h *Handler) Presence(c *gin.Context) {
	p, err := h.svc.Presence(c.Request.Context(), c.Param("id"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, p)
}

type createReq struct {
	Cedula   string `json:"cedula" binding:"required,notblank"`
	Name     string `json:"name" binding:"required,notblank"`
	Email    string `json:"email" binding:"omitempty,email"`
	Role     string `json:"role" binding:"required,role"`
	Password string `json:"password"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	u, err := h.svc.Create(c.Request.Context(), service.CreateParams{
		Cedula:   req.Cedula,
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Created(c, u.View())
}

type assignReq struct {
	StudentID string `json:"student_id" binding:"required"`
	TeacherID string `json:"teacher_id"`
}

func (h *Handler) AssignTeacher(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil || req.TeacherID == "" {
		global.Fail(c, errs.ErrArgs.WrapMsg("student_id and teacher_id required"))
		return
	}
	u, err := h.svc.AssignTeacher(c.Request.Context(), midsec.UserID(c), req.StudentID, req.TeacherID)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, u.View())
}

func (h *Handler) UnassignTeacher(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := h.svc.UnassignTeacher(c.Request.Context(), req.StudentID); err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"student_id": req.StudentID})
}

type updateReq struct {
	Name     *string `json:"name" binding:"omitempty,notblank"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Role     *string `json:"role" binding:"omitempty,role"`
	IsActive *bool   `json:"is_active"`
}

func (h *Handler) Update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	u, err := h.svc.Update(c.Request.Context(), midsec.UserID(c), c.Param("id"), service.UpdateParams{
		Name:   req.Name,
		Email:  req.Email,
		Role:   req.Role,
		Active: req.IsActive,
	})
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, u.View())
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), midsec.UserID(c), c.Param("id")); err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"id": c.Param("id"), "deleted": true})
}

// UpdateProfile 本人或协调员
func (h *Handler) UpdateProfile(c *gin.Context) {
	id := c.Param("id")
	if id != midsec.UserID(c) && midsec.Role(c) != model.RoleCoordinator {
		global.Fail(c, errs.ErrNoPermission.WrapMsg("can only edit your own profile"))
		return
	}
	var profile map[string]any
	if err := c.ShouldBindJSON(&profile); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := h.svc.UpdateProfile(c.Request.Context(), id, profile); err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"id": id, "profile": profile})
}

func (h *Handler) TeachersAvailable(c *gin.Context) {
	items, err := h.svc.TeachersAvailable(c.Request.Context())
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, items)
}

func (h *Handler) StudentsWithAssignments(c *gin.Context) {
	items, err := h.svc.StudentsWithAssignments(c.Request.Context())
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, items)
}

func (h *Handler) Summary(c *gin.Context) {
	sum, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, sum)
}
