package handler

import (
	"ProjectHub/middleware"
	"ProjectHub/module/user/model"

	"github.com/gin-gonic/gin"
)

// Register 挂到 /api/v1 下
func (h *Handler) Register(rt *middleware.Routes, api *gin.RouterGroup) {
	rt.POST(api, "/auth/login", h.Login, middleware.Public)

	users := api.Group("/users")
	rt.GET(users, "/me", h.Me, middleware.Authed)
	rt.GET(users, "", h.List, middleware.Authed)
	rt.POST(users, "", h.Create, middleware.Roles(model.RoleCoordinator))
	rt.POST(users, "/assign-teacher", h.AssignTeacher, middleware.Roles(model.RoleCoordinator))
	rt.POST(users, "/unassign-teacher", h.UnassignTeacher, middleware.Roles(model.RoleCoordinator))
	rt.GET(users, "/teachers-available", h.TeachersAvailable, middleware.Authed)
	rt.GET(users, "/students-with-assignments", h.StudentsWithAssignments, middleware.Roles(model.RoleCoordinator))
	rt.GET(users, "/stats/summary", h.Summary, middleware.Roles(model.RoleCoordinator))
	rt.GET(users, "/:id", h.Get, middleware.Authed)
	rt.PUT(users, "/:id", h.Update, middleware.Roles(model.RoleCoordinator))
	rt.DELETE(users, "/:id", h.Delete, middleware.Roles(model.RoleCoordinator))
	rt.PUT(users, "/:id/profile", h.UpdateProfile, middleware.Authed)
	rt.GET(users, "/:id/presence", h.Presence, middleware.Authed)
}
