package http

import (
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/user"
	"github.com/cmlabs-hris/hris-timekeeping/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/jwt"
)

func canViewAll(claims jwt.Claims) bool {
	return user.HasPermission(claims.Role, user.PermissionAttendanceViewAll)
}

func isManager(claims jwt.Claims) bool {
	return claims.Role == user.RoleManager || claims.Role == user.RoleOwner
}

// parseDuration reads a Go duration query parameter, falling back to def
// when absent. Negative values are rejected.
func parseDuration(w http.ResponseWriter, r *http.Request, key string, def time.Duration) (time.Duration, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		response.BadRequest(w, key+" must be a non-negative duration such as 24h", map[string]string{key: raw})
		return 0, false
	}
	return d, true
}
