package handler

import (
	"ProjectHub/global"
	"ProjectHub/middleware"
	"ProjectHub/module/notification/service"
	"ProjectHub/tools/decode"
	"ProjectHub/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rt *middleware.Routes, api *gin.RouterGroup) {
	g := api.Group("/notifications")
	rt.POST(g, "", h.Create, middleware.Authed)
	// GET /:id、read-all、unread-count 的 :id 是 user_id；read、DELETE 的是通知 id
	rt.GET(g, "/:id", h.List, middleware.Authed)
	rt.PUT(g, "/:id/read", h.MarkRead, middleware.Authed)
	rt.DELETE(g, "/:id", h.Delete, middleware.Authed)
	rt.PUT(g, "/:id/read-all", h.MarkAllRead, middleware.Authed)
	rt.GET(g, "/:id/unread-count", h.UnreadCount, middleware.Authed)
}

type createReq struct {
	Type         string `json:"type" binding:"required,notblank"`
	RecipientID  string `json:"recipient_id" binding:"required,notblank"`
	Title        string `json:"title" binding:"required"`
	Message      string `json:"message" binding:"required"`
	ProjectID    string `json:"project_id"`
	ProjectTitle string `json:"project_title"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
}

// Create 前端有时把 project_id 当数字发，按宽松模式解码后再校验
func (h *Handler) Create(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	req, err := decode.Object[createReq](raw, decode.Loose)
	if err != nil {
		global.Fail(c, err)
		return
	}
	if err := binding.Validator.ValidateStruct(req); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	n, res, err := h.svc.Send(c.Request.Context(), service.CreateParams(*req))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Created(c, gin.H{"notification": n, "delivered": res.Delivered()})
}

func (h *Handler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"notifications": items, "total": len(items)})
}

func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.svc.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"id": c.Param("id"), "read": true})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.svc.MarkAllRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"updated": n})
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"id": c.Param("id"), "deleted": true})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.svc.UnreadCount(c.Request.Context(), c.Param("id"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"unread_count": n})
}
