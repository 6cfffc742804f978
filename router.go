package main

import (
	"context"
	"net/http"
	"time"

	"ProjectHub/middleware"
	midsec "ProjectHub/middleware/security"
	chathandler "ProjectHub/module/chat/handler"
	nhandler "ProjectHub/module/notification/handler"
	phandler "ProjectHub/module/project/handler"
	uhandler "ProjectHub/module/user/handler"
	"ProjectHub/service/mgo"
	"ProjectHub/service/realtime"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	user         *uhandler.Handler
	chat         *chathandler.Handler
	notification *nhandler.Handler
	project      *phandler.Handler
	ws           *realtime.Endpoint
}

func newRouter(auth *midsec.Options, reg *realtime.Registry, origins []string, h handlers) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 16 << 20

	// 包裹型中间件直接挂 engine；前置处理交给 Manager
	r.Use(middleware.Recovery(), middleware.AccessLog())
	mm := middleware.Manager()
	mm.Add("request_id", middleware.RequestID())
	mm.Add("cors", middleware.CORS(origins))
	r.Use(mm.Use())

	r.GET("/health", health(reg))

	api := r.Group("/api/v1")
	// ws 路由不走 JWT 中间件，token 由 Endpoint 自己校验
	api.GET("/chat/ws/:user_id", h.ws.HandleWS)
	api.GET("/simple-chat/ws/:user_id", h.ws.HandleWS)

	rt := middleware.NewRoutes(auth)
	h.user.Register(rt, api)
	h.chat.Register(rt, api)
	h.notification.Register(rt, api)
	h.project.Register(rt, api)
	return r
}

func health(reg *realtime.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := mgo.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
				"error":    err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"database": "connected",
			"online":   reg.Len(),
		})
	}
}
