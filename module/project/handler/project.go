package handler

import (
	"context"

	"ProjectHub/global"
	"ProjectHub/middleware"
	midsec "ProjectHub/middleware/security"
	"ProjectHub/module/project/service"
	umodel "ProjectHub/module/user/model"
	"ProjectHub/tools/errs"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rt *middleware.Routes, api *gin.RouterGroup) {
	g := api.Group("/projects")
	rt.GET(g, "", h.List, middleware.Authed)
	rt.POST(g, "", h.Create, middleware.Roles(umodel.RoleStudent))
	rt.GET(g, "/stats/summary", h.Stats, middleware.Authed)
	rt.GET(g, "/teacher/:teacher_id/assigned", h.Assigned, middleware.Authed)
	rt.GET(g, "/:id", h.Get, middleware.Authed)
	rt.PUT(g, "/:id/evaluation/grade", h.Grade, middleware.Roles(umodel.RoleTeacher, umodel.RoleCoordinator))
	rt.GET(g, "/:id/evaluation/grade", h.GetGrade, middleware.Authed)

	coord := api.Group("/coordinator/projects")
	onlyCoord := middleware.Roles(umodel.RoleCoordinator)
	rt.GET(coord, "/approved", h.Approved, onlyCoord)
	rt.GET(coord, "/published", h.Published, onlyCoord)
	rt.PUT(coord, "/:id/publish", h.Publish, onlyCoord)
	rt.DELETE(coord, "/:id/unpublish", h.Unpublish, onlyCoord)
	rt.PUT(coord, "/:id/reject", h.Reject, onlyCoord)
}

func list(c *gin.Context, items any, n int, err error) {
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"projects": items, "total": n})
}

func (h *Handler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), service.ListParams{
		Status:    c.Query("status"),
		StudentID: c.Query("student_id"),
		TeacherID: c.Query("teacher_id"),
	})
	list(c, items, len(items), err)
}

type createReq struct {
	Title         string   `json:"title" binding:"required,notblank"`
	Description   string   `json:"description"`
	TeacherID     string   `json:"teacher_id"`
	Collaborators []string `json:"collaborators"`
}

func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	p, err := h.svc.Create(c.Request.Context(), midsec.UserID(c), service.CreateParams(req))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Created(c, p)
}

func (h *Handler) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, st)
}

func (h *Handler) Assigned(c *gin.Context) {
	items, err := h.svc.Assigned(c.Request.Context(), c.Param("teacher_id"), c.Query("status"))
	list(c, items, len(items), err)
}

func (h *Handler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, p)
}

type gradeReq struct {
	Grade     *float64 `json:"grade" binding:"required"`
	GradeType string   `json:"grade_type" binding:"required"`
	Status    string   `json:"status" binding:"required"`
	TeacherID string   `json:"teacher_id"`
}

func (h *Handler) Grade(c *gin.Context) {
	var req gradeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	// 教师只能以自己的名义评分
	if req.TeacherID == "" || midsec.Role(c) == umodel.RoleTeacher {
		req.TeacherID = midsec.UserID(c)
	}
	out, err := h.svc.Grade(c.Request.Context(), c.Param("id"), service.GradeParams{
		Grade:     *req.Grade,
		GradeType: req.GradeType,
		Status:    req.Status,
		TeacherID: req.TeacherID,
	})
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, out)
}

func (h *Handler) GetGrade(c *gin.Context) {
	v, err := h.svc.GetGrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, v)
}

func (h *Handler) Approved(c *gin.Context) {
	items, err := h.svc.Approved(c.Request.Context())
	list(c, items, len(items), err)
}

func (h *Handler) Published(c *gin.Context) {
	items, err := h.svc.Published(c.Request.Context())
	list(c, items, len(items), err)
}

func (h *Handler) Publish(c *gin.Context) {
	h.transition(c, h.svc.Publish)
}

func (h *Handler) Unpublish(c *gin.Context) {
	h.transition(c, h.svc.Unpublish)
}

func (h *Handler) Reject(c *gin.Context) {
	h.transition(c, h.svc.Reject)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id, actor string) (*service.Outcome, error)) {
	out, err := fn(c.Request.Context(), c.Param("id"), midsec.UserID(c))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, out)
}
