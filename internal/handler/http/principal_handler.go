package httphandler

import (
	"sort"

	"github.com/labstack/echo/v4"

	taskapp "github.com/lllypuk/taskflow/internal/application/task"
	"github.com/lllypuk/taskflow/internal/domain/principal"
	"github.com/lllypuk/taskflow/internal/infrastructure/httpserver"
	"github.com/lllypuk/taskflow/internal/middleware"
)

// PrincipalResponse describes the authenticated caller.
type PrincipalResponse struct {
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
	Admin    bool     `json:"admin"`
}

// PrincipalHandler reports who the bearer token resolves to.
type PrincipalHandler struct{}

// NewPrincipalHandler creates a new PrincipalHandler.
func NewPrincipalHandler() *PrincipalHandler {
	return &PrincipalHandler{}
}

// RegisterRoutes registers principal routes with the router.
func (h *PrincipalHandler) RegisterRoutes(r *httpserver.Router) {
	r.Auth().GET("/me", h.GetMe)
}

// GetMe handles GET /api/v1/me.
func (h *PrincipalHandler) GetMe(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	if p.IsZero() {
		return httpserver.RespondError(c, taskapp.ErrUnauthenticated)
	}

	return httpserver.RespondOK(c, ToPrincipalResponse(p))
}

// ToPrincipalResponse converts a principal; groups are sorted.
func ToPrincipalResponse(p principal.Principal) PrincipalResponse {
	groups := append([]string{}, p.Groups()...)
	sort.Strings(groups)
	return PrincipalResponse{
		Username: p.Username(),
		Groups:   groups,
		Admin:    p.IsAdmin(),
	}
}
