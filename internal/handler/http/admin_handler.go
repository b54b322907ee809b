package httphandler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
)

// AssignTaskRequest represents the request to assign a task.
type AssignTaskRequest struct {
	Assignee string `json:"assignee"`
}

// PurgeResponse reports the outcome of a bulk delete.
type PurgeResponse struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// TaskAdminRuntime defines the administrative operations.
type TaskAdminRuntime interface {
	Assign(ctx context.Context, p principal.Principal, taskID uuid.UUID, assignee string) (taskapp.TaskResult, error)
	Release(ctx context.Context, p principal.Principal, taskID uuid.UUID) (taskapp.TaskResult, error)
	Delete(ctx context.Context, p principal.Principal, taskID uuid.UUID, reason string) (taskapp.TaskResult, error)
	DeleteAll(ctx context.Context, p principal.Principal, reason string) (taskapp.PurgeResult, error)
	Task(ctx context.Context, p principal.Principal, taskID uuid.UUID) (*taskapp.ReadModel, error)
	Tasks(ctx context.Context, p principal.Principal, pageable taskapp.Pageable) (taskapp.Page[*taskapp.ReadModel], error)
}

// AdminHandler handles administrative task requests.
type AdminHandler struct {
	runtime TaskAdminRuntime
	limits  PageLimits
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(runtime TaskAdminRuntime) *AdminHandler {
	return &AdminHandler{runtime: runtime, limits: DefaultPageLimits()}
}

// WithPageLimits overrides the list paging bounds.
func (h *AdminHandler) WithPageLimits(limits PageLimits) *AdminHandler {
	h.limits = limits
	return h
}

// RegisterRoutes registers admin routes. The admin group enforces the capability.
func (h *AdminHandler) RegisterRoutes(r *httpserver.Router) {
	r.Admin().GET("/tasks", h.List)
	r.Admin().DELETE("/tasks", h.DeleteAll)
	r.Admin().GET("/tasks/:id", h.Get)
	r.Admin().POST("/tasks/:id/assign", h.Assign)
	r.Admin().POST("/tasks/:id/release", h.Release)
	r.Admin().DELETE("/tasks/:id", h.Delete)
}

// List handles GET /api/v1/admin/tasks.
func (h *AdminHandler) List(c echo.Context) error {
	p, ok := requirePrincipal(c)
	if !ok {
		return httpserver.RespondError(c, taskapp.ErrUnauthenticated)
	}

	pageable, err := h.limits.parsePageable(c)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	page, err := h.runtime.Tasks(c.Request().Context(), p, pageable)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToTaskListResponse(page, pageable))
}

// Get handles GET /api/v1/admin/tasks/:id.
func (h *AdminHandler) Get(c echo.Context) error {
	p, ok := requirePrincipal(c)
	if !ok {
		return httpserver.RespondError(c, taskapp.ErrUnauthenticated)
	}

	taskID, err := parseTaskID(c)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	rm, err := h.runtime.Task(c.Request().Context(), p, taskID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToTaskResponse(rm))
}

// Assign handles POST /api/v1/admin/tasks/:id/assign.
func (h *AdminHandler) Assign(c echo.Context) error {
	var req AssignTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	return runTransition(c, func(ctx context.Context, p principal.Principal, id uuid.UUID) (taskapp.TaskResult, error) {
		return h.runtime.Assign(ctx, p, id, req.Assignee)
	})
}

// Release handles POST /api/v1/admin/tasks/:id/release.
func (h *AdminHandler) Release(c echo.Context) error {
	return runTransition(c, h.runtime.Release)
}

// Delete handles DELETE /api/v1/admin/tasks/:id.
func (h *AdminHandler) Delete(c echo.Context) error {
	var req DeleteTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	return runTransition(c, func(ctx context.Context, p principal.Principal, id uuid.UUID) (taskapp.TaskResult, error) {
		return h.runtime.Delete(ctx, p, id, req.Reason)
	})
}

// DeleteAll handles DELETE /api/v1/admin/tasks.
func (h *AdminHandler) DeleteAll(c echo.Context) error {
	p, ok := requirePrincipal(c)
	if !ok {
		return httpserver.RespondError(c, taskapp.ErrUnauthenticated)
	}

	var req DeleteTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	result, err := h.runtime.DeleteAll(c.Request().Context(), p, req.Reason)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, PurgeResponse{Deleted: result.Deleted, Failed: result.Failed})
}
