package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/pkg/httputil"
	"github.com/ignite/warmlane/internal/service/campaign"
)

// createCampaignRequest is the createCampaign request body (§6).
type createCampaignRequest struct {
	Name          string               `json:"name"`
	CreatedBy     string               `json:"created_by"`
	TemplateNames []string             `json:"template_names"`
	Configuration domain.Configuration `json:"configuration"`
}

// CreateCampaign implements `createCampaign` (§6).
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" || len(req.TemplateNames) == 0 {
		httputil.BadRequest(w, "name and template_names are required")
		return
	}

	c := &domain.Campaign{
		Name:          req.Name,
		CreatedBy:     req.CreatedBy,
		TemplateNames: req.TemplateNames,
		Configuration: req.Configuration,
	}
	if err := h.campaigns.Create(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	httputil.Created(w, c)
}

// GetCampaign returns the full campaign document.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), campaignID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

// StartCampaign implements `start` (§4.4 row 1).
func (h *Handlers) StartCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Start(r.Context(), campaignID(r)); err != nil {
		writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, nil)
}

// PauseCampaign implements `pause` (§4.4 row 2).
func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Pause(r.Context(), campaignID(r)); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ResumeCampaign implements `resume` (§4.4 row 3).
func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Resume(r.Context(), campaignID(r)); err != nil {
		writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, nil)
}

// DeleteCampaign implements `delete` (§4.4: rejected while running).
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), campaignID(r)); err != nil {
		writeError(w, err)
		return
	}
	httputil.NoContent(w)
}

// RegeneratePlan implements `regeneratePlan` (§6).
func (h *Handlers) RegeneratePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.RegeneratePlan(r.Context(), campaignID(r)); err != nil {
		writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, nil)
}

// GetStats implements `getRealtimeStats` (§4.10, §6).
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		httputil.BadRequest(w, "invalid day")
		return
	}
	if day == 0 {
		c, err := h.campaigns.Get(r.Context(), campaignID(r))
		if err != nil {
			writeError(w, err)
			return
		}
		day = c.Progress.CurrentDay
	}
	stats, err := h.analytics.GetRealtimeStats(r.Context(), campaignID(r), day)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// GetTodaysPlan implements `getTodaysPlan` (§6).
func (h *Handlers) GetTodaysPlan(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), campaignID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePlan(w, c, c.Progress.CurrentDay)
}

// GetCampaignPlan implements `getCampaignPlan`/`getCurrentExecutionPlan` (§6).
func (h *Handlers) GetCampaignPlan(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		httputil.BadRequest(w, "invalid day")
		return
	}
	c, err := h.campaigns.Get(r.Context(), campaignID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePlan(w, c, day)
}

func (h *Handlers) writePlan(w http.ResponseWriter, c *domain.Campaign, day int) {
	plan, ok := campaign.PlanForDay(c, day)
	if !ok {
		httputil.NotFound(w, "no plan for that day")
		return
	}
	httputil.OK(w, plan)
}

// dayParam reads the day from the {day} route segment (plan/{day}) or,
// failing that, a ?day= query parameter (stats), defaulting to 0 (the
// Orchestrator's "current day" is resolved by the caller in that case).
func dayParam(r *http.Request) (int, error) {
	v := chi.URLParam(r, "day")
	if v == "" {
		v = r.URL.Query().Get("day")
	}
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
