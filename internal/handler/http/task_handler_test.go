package httphandler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/domain/uuid"
	httphandler "github.com/lllypuk/taskflow/internal/handler/http"
	"github.com/lllypuk/taskflow/internal/middleware"
	"github.com/lllypuk/taskflow/tests/testutil"
)

func taskPath(id string, action string) string {
	path := "/api/v1/tasks/" + id
	if action != "" {
		path += "/" + action
	}
	return path
}

func TestTaskHandler_Create(t *testing.T) {
	t.Run("with assignee", func(t *testing.T) {
		a := newAPI(t)

		task := a.createTask(garthToken, httphandler.CreateTaskRequest{Name: "  review  ", Assignee: "salaboy"})

		assert.NotEmpty(t, task.ID)
		assert.Equal(t, "review", task.Name)
		assert.Equal(t, "ASSIGNED", task.Status)
		require.NotNil(t, task.Assignee)
		assert.Equal(t, "salaboy", *task.Assignee)
		assert.Nil(t, task.Group)
		assert.Equal(t, "garth", task.Owner)
		assert.Equal(t, 1, task.Version)
	})

	t.Run("with group", func(t *testing.T) {
		a := newAPI(t)

		task := a.createTask(garthToken, httphandler.CreateTaskRequest{Name: "triage", Group: "doctor"})

		assert.Equal(t, "CREATED", task.Status)
		assert.Nil(t, task.Assignee)
		require.NotNil(t, task.Group)
		assert.Equal(t, "doctor", *task.Group)
	})

	tests := []struct {
		name   string
		token  string
		body   any
		status int
		code   string
	}{
		{"anonymous", "", httphandler.CreateTaskRequest{Name: "t", Assignee: "garth"},
			http.StatusUnauthorized, "UNAUTHORIZED"},
		{"empty name", garthToken, httphandler.CreateTaskRequest{Name: " ", Assignee: "garth"},
			http.StatusBadRequest, "EMPTY_NAME"},
		{"neither assignee nor group", garthToken, httphandler.CreateTaskRequest{Name: "t"},
			http.StatusBadRequest, "ASSIGNEE_OR_GROUP_REQUIRED"},
		{"both assignee and group", garthToken, httphandler.CreateTaskRequest{Name: "t", Assignee: "garth", Group: "doctor"},
			http.StatusBadRequest, "ASSIGNEE_AND_GROUP"},
		{"malformed body", garthToken, "not an object", http.StatusBadRequest, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAPI(t)

			rec := a.do(http.MethodPost, "/api/v1/tasks", tt.token, tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestTaskHandler_HandlerWithoutPrincipal(t *testing.T) {
	rt := testutil.NewInMemoryRuntimes(t)
	handler := httphandler.NewTaskHandler(rt.Tasks)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, handler.List(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", errorCode(t, rec))
}

func TestTaskHandler_SalaboyScenario(t *testing.T) {
	a := newAPI(t)
	task := a.createTask(garthToken, httphandler.CreateTaskRequest{Name: "for salaboy", Assignee: "salaboy"})

	// salaboy sees it
	list := a.listTasks(salaboyToken, "/api/v1/tasks")
	require.Equal(t, 1, list.TotalItems)
	assert.Equal(t, task.ID, list.Tasks[0].ID)

	// garth, the creator, does not
	assert.Zero(t, a.listTasks(garthToken, "/api/v1/tasks").TotalItems)
	rec := a.do(http.MethodGet, taskPath(task.ID, ""), garthToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TASK_NOT_FOUND", errorCode(t, rec))

	// salaboy deletes it with a reason in the query string
	rec = a.do(http.MethodDelete, taskPath(task.ID, "")+"?reason=obsolete", salaboyToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result httphandler.TaskResultResponse
	decode(t, rec, &result)
	assert.Equal(t, "DELETED", result.Status)
	assert.Equal(t, 2, result.Version)

	assert.Zero(t, a.listTasks(salaboyToken, "/api/v1/tasks").TotalItems)

	// the admin still sees it with the reason
	rec = a.do(http.MethodGet, "/api/v1/admin/tasks/"+task.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted httphandler.TaskResponse
	decode(t, rec, &deleted)
	assert.Equal(t, "DELETED", deleted.Status)
	assert.Equal(t, "obsolete", deleted.DeleteReason)
}

func TestTaskHandler_GroupScenario(t *testing.T) {
	a := newAPI(t)
	task := a.createTask(garthToken, httphandler.CreateTaskRequest{Name: "triage", Group: "doctor"})

	// salaboy is not a doctor
	assert.Zero(t, a.listTasks(salaboyToken, "/api/v1/tasks").TotalItems)
	rec := a.do(http.MethodPost, taskPath(task.ID, "claim"), salaboyToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// garth claims
	rec = a.do(http.MethodPost, taskPath(task.ID, "claim"), garthToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var claimed httphandler.TaskResultResponse
	decode(t, rec, &claimed)
	assert.Equal(t, "ASSIGNED", claimed.Status)
	require.NotNil(t, claimed.Assignee)
	assert.Equal(t, "garth", *claimed.Assignee)

	// claiming again is an illegal state
	rec = a.do(http.MethodPost, taskPath(task.ID, "claim"), garthToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ILLEGAL_STATE", errorCode(t, rec))

	// release returns it to the group
	rec = a.do(http.MethodPost, taskPath(task.ID, "release"), garthToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var released httphandler.TaskResultResponse
	decode(t, rec, &released)
	assert.Equal(t, "CREATED", released.Status)
	assert.Nil(t, released.Assignee)

	// claim again and complete with variables
	rec = a.do(http.MethodPost, taskPath(task.ID, "claim"), garthToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodPost, taskPath(task.ID, "complete"), garthToken,
		httphandler.CompleteTaskRequest{Variables: map[string]any{"approved": true}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var completed httphandler.TaskResultResponse
	decode(t, rec, &completed)
	assert.Equal(t, "COMPLETED", completed.Status)

	// completed tasks leave the ordinary view
	assert.Zero(t, a.listTasks(garthToken, "/api/v1/tasks").TotalItems)

	rec = a.do(http.MethodGet, "/api/v1/admin/tasks/"+task.ID, adminToken, nil)
	var stored httphandler.TaskResponse
	decode(t, rec, &stored)
	assert.Equal(t, map[string]any{"approved": true}, stored.Variables)
}

func TestTaskHandler_CompleteWithoutBody(t *testing.T) {
	a := newAPI(t)
	task := a.createTask(garthToken, httphandler.CreateTaskRequest{Name: "mine", Assignee: "garth"})

	rec := a.do(http.MethodPost, taskPath(task.ID, "complete"), garthToken, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestTaskHandler_DeleteWithJSONReason(t *testing.T) {
	a := newAPI(t)
	task := a.createTask(garthToken, httphandler.CreateTaskRequest{Name: "mine", Assignee: "garth"})

	rec := a.do(http.MethodDelete, taskPath(task.ID, ""), garthToken, httphandler.DeleteTaskRequest{Reason: "dup"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rm, err := a.runtimes.Admin.Task(testutil.NewTestContext(t), testutil.Admin, uuid.MustParseUUID(task.ID))
	require.NoError(t, err)
	assert.Equal(t, "dup", rm.DeleteReason)
}

func TestTaskHandler_InvalidTaskID(t *testing.T) {
	a := newAPI(t)

	for _, path := range []string{
		taskPath("not-a-uuid", ""),
		taskPath("not-a-uuid", "claim"),
		taskPath("00000000-0000-0000-0000-000000000000", "release"),
	} {
		method := http.MethodGet
		if strings.HasSuffix(path, "claim") || strings.HasSuffix(path, "release") {
			method = http.MethodPost
		}

		rec := a.do(method, path, garthToken, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "INVALID_TASK_ID", errorCode(t, rec), path)
	}
}

func TestTaskHandler_ListPaging(t *testing.T) {
	a := newAPI(t)
	names := []string{"one", "two", "three"}
	for _, name := range names {
		a.createTask(garthToken, httphandler.CreateTaskRequest{Name: name, Assignee: "garth"})
	}

	tests := []struct {
		name   string
		query  string
		expect []string
		offset int
		limit  int
	}{
		{"defaults", "", names, 0, 100},
		{"window", "?offset=1&limit=1", []string{"two"}, 1, 1},
		{"offset past the end", "?offset=10", []string{}, 10, 100},
		{"negative offset clamps", "?offset=-5&limit=2", []string{"one", "two"}, 0, 2},
		{"oversized limit caps", "?limit=5000", names, 0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := a.listTasks(garthToken, "/api/v1/tasks"+tt.query)

			got := make([]string, 0, len(list.Tasks))
			for _, task := range list.Tasks {
				got = append(got, task.Name)
			}
			assert.Equal(t, tt.expect, got)
			assert.Equal(t, len(tt.expect), list.TotalItems)
			assert.Equal(t, tt.offset, list.Offset)
			assert.Equal(t, tt.limit, list.Limit)
		})
	}

	t.Run("non numeric limit", func(t *testing.T) {
		rec := a.do(http.MethodGet, "/api/v1/tasks?limit=ten", garthToken, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	})
}

func TestTaskHandler_CustomPageLimits(t *testing.T) {
	rt := testutil.NewInMemoryRuntimes(t)
	ctx := testutil.NewTestContext(t)
	for range 5 {
		_, err := rt.Tasks.Create(ctx, testutil.Garth, testutil.CreateTaskCommandFixture("garth"))
		require.NoError(t, err)
	}

	h := httphandler.NewTaskHandler(rt.Tasks).
		WithPageLimits(httphandler.PageLimits{Default: 2, Max: 3})

	tests := []struct {
		name      string
		query     string
		wantLimit int
		wantCount int
	}{
		{"default applies", "", 2, 2},
		{"explicit within bounds", "?limit=1", 1, 1},
		{"capped at max", "?limit=50", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks"+tt.query, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			middleware.SetPrincipal(c, "garth", testutil.Garth)

			require.NoError(t, h.List(c))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var list httphandler.TaskListResponse
			decode(t, rec, &list)
			assert.Equal(t, tt.wantLimit, list.Limit)
			assert.Len(t, list.Tasks, tt.wantCount)
		})
	}
}
