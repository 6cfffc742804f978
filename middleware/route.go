package middleware

import (
	midsec "ProjectHub/middleware/security"

	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	IsAuth bool
	Roles  []string // 非空时隐含 IsAuth
}

var (
	Public = RouteOpt{}
	Authed = RouteOpt{IsAuth: true}
)

func Roles(roles ...string) RouteOpt {
	return RouteOpt{IsAuth: true, Roles: roles}
}

// Routes 按 RouteOpt 给路由拼上鉴权链
type Routes struct {
	auth gin.HandlerFunc
}

func NewRoutes(opts *midsec.Options) *Routes {
	return &Routes{auth: midsec.Middleware(opts)}
}

func (rt *Routes) chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	var hs []gin.HandlerFunc
	if opt.IsAuth || len(opt.Roles) > 0 {
		hs = append(hs, rt.auth)
	}
	if len(opt.Roles) > 0 {
		hs = append(hs, midsec.RequireRoles(opt.Roles...))
	}
	return append(hs, handler)
}

func (rt *Routes) GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, rt.chain(handler, opt)...)
}

func (rt *Routes) POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, rt.chain(handler, opt)...)
}

func (rt *Routes) PUT(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.PUT(path, rt.chain(handler, opt)...)
}

func (rt *Routes) DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.DELETE(path, rt.chain(handler, opt)...)
}
