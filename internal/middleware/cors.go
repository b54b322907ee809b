package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// corsMaxAge lets browsers cache preflight answers for a day.
const corsMaxAge = 86400

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	corsHeaders = []string{
		echo.HeaderOrigin,
		echo.HeaderContentType,
		echo.HeaderAccept,
		echo.HeaderAuthorization,
		RequestIDHeader,
		CorrelationIDHeader,
	}
)

// CORS lets browser clients call the task API from origins.
// No origins or a "*" entry admits any origin, but then credentials are not
// allowed since browsers reject the combination.
func CORS(origins ...string) echo.MiddlewareFunc {
	wildcard := len(origins) == 0 || slices.Contains(origins, "*")
	if wildcard {
		origins = []string{"*"}
	}

	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     origins,
		AllowMethods:     corsMethods,
		AllowHeaders:     corsHeaders,
		ExposeHeaders:    []string{RequestIDHeader, CorrelationIDHeader},
		AllowCredentials: !wildcard,
		MaxAge:           corsMaxAge,
	})
}
