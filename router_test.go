package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ProjectHub/middleware"
	midsec "ProjectHub/middleware/security"
	chathandler "ProjectHub/module/chat/handler"
	chatservice "ProjectHub/module/chat/service"
	chatstore "ProjectHub/module/chat/store"
	nhandler "ProjectHub/module/notification/handler"
	nservice "ProjectHub/module/notification/service"
	nstore "ProjectHub/module/notification/store"
	phandler "ProjectHub/module/project/handler"
	pservice "ProjectHub/module/project/service"
	pstore "ProjectHub/module/project/store"
	uhandler "ProjectHub/module/user/handler"
	uservice "ProjectHub/module/user/service"
	ustore "ProjectHub/module/user/store"
	"ProjectHub/service/realtime"
	jwtlib "ProjectHub/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	jwtOpts := jwtlib.DefaultOptions([]byte("router-secret"))
	reg := realtime.NewRegistry()
	t.Cleanup(reg.Close)
	rooms := realtime.NewRoomTable()
	disp := realtime.NewDispatcher(reg, rooms)

	userSvc := uservice.New(uservice.Deps{Store: ustore.NewMemory(), JWT: jwtOpts, Local: reg})
	notifSvc := nservice.New(nstore.NewMemory(), disp, nil)
	chatSvc := chatservice.New(chatservice.Deps{
		Store: chatstore.NewMemory(), Push: disp, Rooms: rooms, Names: userSvc, Online: reg,
		UploadDir: t.TempDir(),
	})
	projSvc := pservice.New(pservice.Deps{Store: pstore.NewMemory(), Notifier: notifSvc, Push: disp, Names: userSvc})

	ws := realtime.NewEndpoint(disp, realtime.EndpointConf{}, nil)
	return newRouter(midsec.DefaultOptions(jwtOpts), reg, nil, handlers{
		user:         uhandler.New(userSvc),
		chat:         chathandler.New(chatSvc),
		notification: nhandler.New(notifSvc),
		project:      phandler.New(projSvc),
		ws:           ws,
	})
}

func TestHealthWithoutMongo(t *testing.T) {
	r := testEngine(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"disconnected"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := testEngine(t)
	for _, path := range []string{
		"/api/v1/chat/conversations/u1",
		"/api/v1/simple-chat/online-users",
		"/api/v1/notifications/u1",
		"/api/v1/projects",
		"/api/v1/coordinator/projects/approved",
		"/api/v1/users/me",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestWebSocketRouteRejectsPlainHTTP(t *testing.T) {
	r := testEngine(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/simple-chat/ws/u1", nil))
	// 没有 Upgrade 头，握手失败但路由存在
	assert.NotEqual(t, http.StatusNotFound, w.Code)
}
