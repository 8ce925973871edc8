package api

import (
	"net/http"

	"github.com/ignite/warmlane/internal/pkg/httputil"
)

// HealthCheck is a liveness probe endpoint, matching the teacher's
// convention of an unauthenticated `/health` route ahead of everything else.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}
