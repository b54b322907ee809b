// Package httphandler exposes the task lifecycle engine over REST.
package httphandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/taskflow/internal/application/appcore"
	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/domain/uuid"
	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
	"github.com/lllypuk/taskflow/internal/middleware"
)

// CreateTaskRequest represents the request to create a task.
// Exactly one of Assignee and Group must be set.
type CreateTaskRequest struct {
	Name     string `json:"name"`
	Assignee string `json:"assignee"`
	Group    string `json:"group"`
}

// CompleteTaskRequest represents the optional body of a completion.
type CompleteTaskRequest struct {
	Variables map[string]any `json:"variables"`
}

// DeleteTaskRequest carries the delete reason from the query string or a JSON body.
type DeleteTaskRequest struct {
	Reason string `json:"reason" query:"reason"`
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Assignee     *string        `json:"assignee"`
	Group        *string        `json:"group"`
	Status       string         `json:"status"`
	Owner        string         `json:"owner,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
	DeleteReason string         `json:"delete_reason,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
	Version      int            `json:"version"`
}

// TaskListResponse represents a page of tasks in API responses.
// TotalItems is the size of this page, not the number of stored tasks.
type TaskListResponse struct {
	Tasks      []TaskResponse `json:"tasks"`
	TotalItems int            `json:"total_items"`
	Offset     int            `json:"offset"`
	Limit      int            `json:"limit"`
}

// TaskResultResponse is returned by lifecycle operations.
type TaskResultResponse struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Assignee *string `json:"assignee"`
	Version  int     `json:"version"`
}

// TaskRuntime defines the lifecycle operations available to any principal.
// Declared on the consumer side.
type TaskRuntime interface {
	Create(ctx context.Context, p principal.Principal, cmd taskapp.CreateTaskCommand) (taskapp.TaskResult, error)
	Claim(ctx context.Context, p principal.Principal, taskID uuid.UUID) (taskapp.TaskResult, error)
	Release(ctx context.Context, p principal.Principal, taskID uuid.UUID) (taskapp.TaskResult, error)
	Complete(
		ctx context.Context,
		p principal.Principal,
		taskID uuid.UUID,
		variables map[string]any,
	) (taskapp.TaskResult, error)
	Delete(ctx context.Context, p principal.Principal, taskID uuid.UUID, reason string) (taskapp.TaskResult, error)
	Task(ctx context.Context, p principal.Principal, taskID uuid.UUID) (*taskapp.ReadModel, error)
	Tasks(ctx context.Context, p principal.Principal, pageable taskapp.Pageable) (taskapp.Page[*taskapp.ReadModel], error)
}

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	runtime TaskRuntime
	limits  PageLimits
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(runtime TaskRuntime) *TaskHandler {
	return &TaskHandler{
		runtime: runtime,
		limits:  DefaultPageLimits(),
	}
}

// WithPageLimits overrides the list paging bounds.
func (h *TaskHandler) WithPageLimits(limits PageLimits) *TaskHandler {
	h.limits = limits
	return h
}

// RegisterRoutes registers task routes with the router.
func (h *TaskHandler) RegisterRoutes(r *httpserver.Router) {
	r.Auth().POST("/tasks", h.Create)
	r.Auth().GET("/tasks", h.List)
	r.Auth().GET("/tasks/:id", h.Get)
	r.Auth().POST("/tasks/:id/claim", h.Claim)
	r.Auth().POST("/tasks/:id/release", h.Release)
	r.Auth().POST("/tasks/:id/complete", h.Complete)
	r.Auth().DELETE("/tasks/:id", h.Delete)
}

// Create handles POST /api/v1/tasks.
func (h *TaskHandler) Create(c echo.Context) error {
	p, ok := requirePrincipal(c)
	if !ok {
		return httpserver.RespondError(c, taskapp.ErrUnauthenticated)
	}

	var req CreateTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	cmd := taskapp.CreateTaskCommand{
		Name:     strings.TrimSpace(req.Name),
		Assignee: strings.TrimSpace(req.Assignee),
		Group:    strings.TrimSpace(req.Group),
	}

	result, err := h.runtime.Create(c.Request().Context(), p, cmd)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, ToTaskResponseFromResult(result, cmd, p))
}

// Get handles GET /api/v1/tasks/:id.
func (h *TaskHandler) Get(c echo.Context) error {
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

// List handles GET /api/v1/tasks?offset=&limit=.
func (h *TaskHandler) List(c echo.Context) error {
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

// Claim handles POST /api/v1/tasks/:id/claim.
func (h *TaskHandler) Claim(c echo.Context) error {
	return runTransition(c, h.runtime.Claim)
}

// Release handles POST /api/v1/tasks/:id/release.
func (h *TaskHandler) Release(c echo.Context) error {
	return runTransition(c, h.runtime.Release)
}

// Complete handles POST /api/v1/tasks/:id/complete.
func (h *TaskHandler) Complete(c echo.Context) error {
	var req CompleteTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	return runTransition(c, func(ctx context.Context, p principal.Principal, id uuid.UUID) (taskapp.TaskResult, error) {
		return h.runtime.Complete(ctx, p, id, req.Variables)
	})
}

// Delete handles DELETE /api/v1/tasks/:id.
func (h *TaskHandler) Delete(c echo.Context) error {
	var req DeleteTaskRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	return runTransition(c, func(ctx context.Context, p principal.Principal, id uuid.UUID) (taskapp.TaskResult, error) {
		return h.runtime.Delete(ctx, p, id, req.Reason)
	})
}

type transitionFunc func(ctx context.Context, p principal.Principal, taskID uuid.UUID) (taskapp.TaskResult, error)

// runTransition resolves the principal and task id, runs op and renders its result.
func runTransition(c echo.Context, op transitionFunc) error {
	p, ok := requirePrincipal(c)
	if !ok {
		return httpserver.RespondError(c, taskapp.ErrUnauthenticated)
	}

	taskID, err := parseTaskID(c)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	result, err := op(c.Request().Context(), p, taskID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, ToTaskResultResponse(result))
}

func requirePrincipal(c echo.Context) (principal.Principal, bool) {
	p := middleware.GetPrincipal(c)
	return p, !p.IsZero()
}

func parseTaskID(c echo.Context) (uuid.UUID, error) {
	taskID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return "", taskapp.ErrInvalidTaskID
	}
	return taskID, nil
}

// PageLimits bounds the limit query parameter of list endpoints.
type PageLimits struct {
	Default int
	Max     int
}

// DefaultPageLimits returns the application paging bounds.
func DefaultPageLimits() PageLimits {
	return PageLimits{Default: taskapp.DefaultPageLimit, Max: taskapp.MaxPageLimit}
}

// parsePageable reads offset and limit. An absent limit takes the default,
// an oversized one is capped.
func (l PageLimits) parsePageable(c echo.Context) (taskapp.Pageable, error) {
	offset, err := parseIntParam(c, "offset")
	if err != nil {
		return taskapp.Pageable{}, err
	}
	limit, err := parseIntParam(c, "limit")
	if err != nil {
		return taskapp.Pageable{}, err
	}
	if limit <= 0 && l.Default > 0 {
		limit = l.Default
	}
	if l.Max > 0 && limit > l.Max {
		limit = l.Max
	}
	return taskapp.PageOf(offset, limit), nil
}

func parseIntParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appcore.NewValidationError(name, "must be an integer")
	}
	return value, nil
}

// ToTaskResponse converts a read model to a TaskResponse.
func ToTaskResponse(rm *taskapp.ReadModel) TaskResponse {
	resp := TaskResponse{
		ID:           rm.ID.String(),
		Name:         rm.Name,
		Assignee:     rm.Assignee,
		Group:        rm.Group,
		Status:       string(rm.Status),
		Owner:        rm.Owner,
		Variables:    rm.Variables,
		DeleteReason: rm.DeleteReason,
		Version:      rm.Version,
	}
	if !rm.CreatedAt.IsZero() {
		resp.CreatedAt = rm.CreatedAt.Format(time.RFC3339)
	}
	if !rm.UpdatedAt.IsZero() {
		resp.UpdatedAt = rm.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

// ToTaskListResponse converts a page of read models.
func ToTaskListResponse(page taskapp.Page[*taskapp.ReadModel], pageable taskapp.Pageable) TaskListResponse {
	tasks := make([]TaskResponse, 0, len(page.Content))
	for _, rm := range page.Content {
		tasks = append(tasks, ToTaskResponse(rm))
	}
	return TaskListResponse{
		Tasks:      tasks,
		TotalItems: page.TotalItems,
		Offset:     pageable.Offset,
		Limit:      pageable.Limit,
	}
}

// ToTaskResponseFromResult builds the response for a freshly created task.
func ToTaskResponseFromResult(result taskapp.TaskResult, cmd taskapp.CreateTaskCommand, owner principal.Principal) TaskResponse {
	return TaskResponse{
		ID:       result.TaskID.String(),
		Name:     cmd.Name,
		Assignee: optional(result.Assignee),
		Group:    optional(cmd.Group),
		Status:   string(result.Status),
		Owner:    owner.Username(),
		Version:  result.Version,
	}
}

// ToTaskResultResponse converts the outcome of a lifecycle operation.
func ToTaskResultResponse(result taskapp.TaskResult) TaskResultResponse {
	return TaskResultResponse{
		ID:       result.TaskID.String(),
		Status:   string(result.Status),
		Assignee: optional(result.Assignee),
		Version:  result.Version,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
