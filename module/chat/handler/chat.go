package handler

import (
	"strconv"

	"ProjectHub/global"
	"ProjectHub/middleware"
	midsec "ProjectHub/middleware/security"
	"ProjectHub/module/chat/service"
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

// Register 挂 /chat 和 /simple-chat；ws 路由在 router 里单独挂
func (h *Handler) Register(rt *middleware.Routes, api *gin.RouterGroup) {
	g := api.Group("/chat")
	rt.POST(g, "/send-message", h.SendMessage, middleware.Authed)
	rt.GET(g, "/conversations/:user_id", h.Conversations, middleware.Authed)
	rt.GET(g, "/messages/:conversation_id", h.Messages, middleware.Authed)
	rt.PUT(g, "/mark-as-read/:conversation_id", h.MarkAsRead, middleware.Authed)
	rt.GET(g, "/unread-count/:user_id", h.UnreadCount, middleware.Authed)
	rt.GET(g, "/chat-id/:user_id", h.ChatID, middleware.Authed)

	sg := api.Group("/simple-chat")
	rt.POST(sg, "/send-message", h.SendSimple, middleware.Authed)
	rt.GET(sg, "/messages/:user1/:user2", h.SimpleMessages, middleware.Authed)
	rt.PUT(sg, "/mark-read/:room_id", h.MarkSimpleRead, middleware.Authed)
	rt.GET(sg, "/online-users", h.OnlineUsers, middleware.Authed)
	rt.GET(sg, "/coordinator-documents/:coordinator_id", h.CoordinatorDocuments, middleware.Authed)
	rt.POST(sg, "/upload", h.Upload, middleware.Authed)
	rt.GET(sg, "/download/:filename", h.Download, middleware.Authed)
}

// sender 只能是自己
func sameUser(c *gin.Context, id string) error {
	if id != midsec.UserID(c) {
		return errs.ErrNoPermission.WrapMsg("sender_id must be the caller")
	}
	return nil
}

type sendReq struct {
	SenderID       string `json:"sender_id" binding:"required,notblank"`
	SenderName     string `json:"sender_name"`
	SenderRole     string `json:"sender_role" binding:"omitempty,role"`
	ReceiverID     string `json:"receiver_id" binding:"required,notblank"`
	ReceiverName   string `json:"receiver_name"`
	Message        string `json:"message" binding:"required,notblank"`
	ConversationID string `json:"conversation_id"`
	ProjectID      string `json:"project_id"`
	ProjectTitle   string `json:"project_title"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := sameUser(c, req.SenderID); err != nil {
		global.Fail(c, err)
		return
	}
	if req.SenderRole == "" {
		req.SenderRole = midsec.Role(c)
	}
	res, err := h.svc.SendMessage(c.Request.Context(), service.SendParams(req))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Created(c, res)
}

func (h *Handler) Conversations(c *gin.Context) {
	convs, err := h.svc.Conversations(c.Request.Context(), c.Param("user_id"), c.Query("role"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"conversations": convs, "total": len(convs)})
}

func (h *Handler) Messages(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
	msgs, err := h.svc.Messages(c.Request.Context(), c.Param("conversation_id"), limit)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"messages": msgs, "total": len(msgs)})
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	id := c.Param("conversation_id")
	uid := c.Query("user_id")
	if uid == "" {
		uid = midsec.UserID(c)
	}
	if err := h.svc.MarkAsRead(c.Request.Context(), id, uid, c.Query("user_role")); err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"conversation_id": id, "read": true})
}

func (h *Handler) UnreadCount(c *gin.Context) {
	n, err := h.svc.UnreadCount(c.Request.Context(), c.Param("user_id"), c.Query("role"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"unread_count": n})
}

func (h *Handler) ChatID(c *gin.Context) {
	uid := c.Param("user_id")
	rooms, err := h.svc.ChatIDs(c.Request.Context(), uid)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"user_id": uid, "room_ids": rooms})
}

type simpleReq struct {
	SenderID   string `json:"sender_id" binding:"required,notblank"`
	SenderName string `json:"sender_name"`
	SenderRole string `json:"sender_role" binding:"omitempty,role"`
	ReceiverID string `json:"receiver_id" binding:"required,notblank"`
	Message    string `json:"message"`
	FileURL    string `json:"file_url"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size"`
}

func (h *Handler) SendSimple(c *gin.Context) {
	var req simpleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	if err := sameUser(c, req.SenderID); err != nil {
		global.Fail(c, err)
		return
	}
	res, err := h.svc.SendSimple(c.Request.Context(), service.SimpleParams(req))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Created(c, res)
}

func (h *Handler) SimpleMessages(c *gin.Context) {
	msgs, err := h.svc.SimpleMessages(c.Request.Context(), c.Param("user1"), c.Param("user2"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"messages": msgs, "total": len(msgs)})
}

func (h *Handler) MarkSimpleRead(c *gin.Context) {
	uid := c.Query("user_id")
	if uid == "" {
		uid = midsec.UserID(c)
	}
	n, err := h.svc.MarkSimpleRead(c.Request.Context(), c.Param("room_id"), uid)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, gin.H{"room_id": c.Param("room_id"), "updated": n})
}

func (h *Handler) OnlineUsers(c *gin.Context) {
	global.OK(c, h.svc.OnlineUsers())
}

// CoordinatorDocuments 协调员只能看自己的
func (h *Handler) CoordinatorDocuments(c *gin.Context) {
	id := c.Param("coordinator_id")
	if midsec.Role(c) != umodel.RoleCoordinator || id != midsec.UserID(c) {
		global.Fail(c, errs.ErrNoPermission.WrapMsg("only the coordinator can list their documents"))
		return
	}
	docs, err := h.svc.CoordinatorDocuments(c.Request.Context(), id)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.OK(c, docs)
}

func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		global.Fail(c, errs.ErrArgs.WrapMsg("file required"))
		return
	}
	info, err := h.svc.Upload(fh)
	if err != nil {
		global.Fail(c, err)
		return
	}
	global.Created(c, info)
}

func (h *Handler) Download(c *gin.Context) {
	path, ct, err := h.svc.Download(c.Param("filename"))
	if err != nil {
		global.Fail(c, err)
		return
	}
	c.Header("Content-Type", ct)
	c.File(path)
}
