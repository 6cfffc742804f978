package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ProjectHub/middleware"
	midsec "ProjectHub/middleware/security"
	nservice "ProjectHub/module/notification/service"
	nstore "ProjectHub/module/notification/store"
	"ProjectHub/module/project/service"
	"ProjectHub/module/project/store"
	"ProjectHub/service/realtime"
	jwtlib "ProjectHub/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWT = jwtlib.DefaultOptions([]byte("test-secret"))

type offline struct{}

func (offline) Notify(_ context.Context, key string, _ any) realtime.Result {
	return realtime.Result{Key: key, Status: realtime.NotRegistered}
}

type env struct {
	r                      *gin.Engine
	student, teacher, coor string
}

func token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, _, err := jwtlib.Generate(testJWT, uid, role)
	require.NoError(t, err)
	return tok
}

func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	svc := service.New(service.Deps{
		Store:    store.NewMemory(),
		Notifier: nservice.New(nstore.NewMemory(), offline{}, nil),
	})
	r := gin.New()
	New(svc).Register(middleware.NewRoutes(midsec.DefaultOptions(testJWT)), r.Group("/api/v1"))
	return &env{
		r:       r,
		student: token(t, "s1", "student"),
		teacher: token(t, "t1", "teacher"),
		coor:    token(t, "c1", "coordinator"),
	}
}

func (e *env) do(method, path, tok, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func TestProjectEndpoints(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, "/api/v1/projects", e.teacher, `{"title":"x"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, "/api/v1/projects", e.student, `{"title":"Tesis","teacher_id":"t1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.ID
	require.NotEmpty(t, id)

	w = e.do(http.MethodGet, "/api/v1/projects?student_id=s1", e.student, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = e.do(http.MethodGet, "/api/v1/projects/teacher/t1/assigned", e.teacher, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = e.do(http.MethodPut, "/api/v1/projects/"+id+"/evaluation/grade", e.student,
		`{"grade":18,"grade_type":"definitiva","status":"aprobado"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPut, "/api/v1/projects/"+id+"/evaluation/grade", e.teacher,
		`{"grade":18,"grade_type":"definitiva","status":"aprobado","teacher_id":"someone-else"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"notified":1`)

	w = e.do(http.MethodGet, "/api/v1/projects/"+id+"/evaluation/grade", e.student, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"graded_by":"t1"`)
	assert.Contains(t, w.Body.String(), `"status":"aprobado"`)

	w = e.do(http.MethodPut, "/api/v1/projects/"+id+"/evaluation/grade", e.teacher, `{"grade_type":"parcial"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/v1/projects/stats/summary", e.coor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"aprobado":1`)
}

func TestCoordinatorEndpoints(t *testing.T) {
	e := setup(t)

	w := e.do(http.MethodPost, "/api/v1/projects", e.student, `{"title":"Tesis"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.ID

	w = e.do(http.MethodGet, "/api/v1/coordinator/projects/approved", e.teacher, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodDelete, "/api/v1/coordinator/projects/"+id+"/unpublish", e.coor, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPut, "/api/v1/projects/"+id+"/evaluation/grade", e.coor,
		`{"grade":16,"grade_type":"definitiva","status":"aprobado","teacher_id":"t1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodGet, "/api/v1/coordinator/projects/approved", e.coor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = e.do(http.MethodPut, "/api/v1/coordinator/projects/"+id+"/publish", e.coor, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"published"`)

	w = e.do(http.MethodGet, "/api/v1/coordinator/projects/published", e.coor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = e.do(http.MethodDelete, "/api/v1/coordinator/projects/"+id+"/unpublish", e.coor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"published_at":null`)

	w = e.do(http.MethodPut, "/api/v1/coordinator/projects/"+id+"/reject", e.coor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"reprobado"`)

	w = e.do(http.MethodPut, "/api/v1/coordinator/projects/0123456789abcdef01234567/reject", e.coor, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(http.MethodPut, "/api/v1/coordinator/projects/bad/reject", e.coor, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
