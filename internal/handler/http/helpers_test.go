package httphandler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	httphandler "github.com/lllypuk/taskflow/internal/handler/http"
	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
	"github.com/lllypuk/taskflow/internal/middleware"
	"github.com/lllypuk/taskflow/tests/testutil"
)

const (
	garthToken   = "garth-token"
	salaboyToken = "salaboy-token"
	adminToken   = "admin-token"
)

// api is an Echo instance wired like cmd/api, backed by in-memory runtimes.
type api struct {
	t        *testing.T
	e        *echo.Echo
	runtimes *testutil.Runtimes
}

func newAPI(t *testing.T) *api {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	rt := testutil.NewInMemoryRuntimes(t)

	authConfig := middleware.DefaultAuthConfig()
	authConfig.Logger = logger
	authConfig.TokenValidator = middleware.NewStaticTokenValidator([]middleware.StaticUser{
		{Token: garthToken, Username: "garth", Groups: []string{"doctor", "activitiTeam"}},
		{Token: salaboyToken, Username: "salaboy", Groups: []string{"activitiTeam"}},
		{Token: adminToken, Username: "admin", Groups: []string{"admins"}, Admin: true},
	})

	routerConfig := httpserver.DefaultRouterConfig()
	routerConfig.Logger = logger
	routerConfig.LoggingConfig.Logger = logger
	routerConfig.RecoveryConfig.Logger = logger
	routerConfig.AuthMiddleware = middleware.Auth(authConfig)

	e := echo.New()
	router := httpserver.NewRouter(e, routerConfig)
	router.RegisterAll(
		httphandler.NewTaskHandler(rt.Tasks),
		httphandler.NewAdminHandler(rt.Admin),
		httphandler.NewPrincipalHandler(),
	)

	return &api{t: t, e: e, runtimes: rt}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals the envelope and its data into out.
func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) httpserver.Response {
	t.Helper()

	var envelope struct {
		httpserver.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	if out != nil {
		require.NotEmpty(t, envelope.Data, rec.Body.String())
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope.Response
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	resp := decode(t, rec, nil)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error, rec.Body.String())
	return resp.Error.Code
}

func (a *api) createTask(token string, req httphandler.CreateTaskRequest) httphandler.TaskResponse {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/api/v1/tasks", token, req)
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var task httphandler.TaskResponse
	decode(a.t, rec, &task)
	return task
}

func (a *api) listTasks(token, path string) httphandler.TaskListResponse {
	a.t.Helper()

	rec := a.do(http.MethodGet, path, token, nil)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	var list httphandler.TaskListResponse
	decode(a.t, rec, &list)
	return list
}
