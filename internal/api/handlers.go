// Package api implements the campaign lifecycle HTTP surface §6 names as
// "consumed by the excluded HTTP layer" — thin chi handlers over the
// Orchestrator (internal/service/campaign) and Analytics Aggregator
// (internal/service/analytics), grounded on the teacher's internal/api
// handler/response-envelope idiom.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/warmlane/internal/pkg/httputil"
	"github.com/ignite/warmlane/internal/pkg/logger"
	"github.com/ignite/warmlane/internal/service/analytics"
	"github.com/ignite/warmlane/internal/service/campaign"
	"github.com/ignite/warmlane/internal/service/message"
)

// Handlers holds the services the campaign lifecycle surface is a thin
// wrapper over.
type Handlers struct {
	campaigns *campaign.Service
	analytics *analytics.Service
}

// New builds the campaign lifecycle API handlers.
func New(campaigns *campaign.Service, analyticsService *analytics.Service) *Handlers {
	return &Handlers{campaigns: campaigns, analytics: analyticsService}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, message.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, campaign.ErrInvalidTransition),
		errors.Is(err, campaign.ErrDeleteWhileRunning),
		errors.Is(err, campaign.ErrLockHeld):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.Error("api: unhandled error", "error", err.Error())
	}
	httputil.Error(w, status, err.Error())
}

func campaignID(r *http.Request) string {
	return chi.URLParam(r, "campaignId")
}
