// internal/controller/campaign_controller.go
package controller

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    appErrors "github.com/unclebandit/outreach-backend/internal/errors"
    "github.com/unclebandit/outreach-backend/internal/model"
    "github.com/unclebandit/outreach-backend/internal/service"
)

type CampaignController struct {
    CampaignService *service.CampaignService
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
    var notFound *appErrors.ErrCampaignNotFound
    var leadNotFound *appErrors.ErrLeadNotFound
    var invalidState *appErrors.ErrInvalidState
    var alreadyRunning *appErrors.ErrAlreadyRunning

    switch {
    case errors.As(err, &notFound), errors.As(err, &leadNotFound):
        http.Error(w, err.Error(), http.StatusNotFound)
    case errors.As(err, &invalidState), errors.As(err, &alreadyRunning):
        http.Error(w, err.Error(), http.StatusConflict)
    default:
        http.Error(w, err.Error(), http.StatusInternalServerError)
    }
}

func campaignID(r *http.Request) (int, error) {
    return strconv.Atoi(chi.URLParam(r, "id"))
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
    var body struct {
        OrgID        int                  `json:"org_id"`
        Name         string               `json:"name"`
        CampaignType string               `json:"campaign_type"`
        Channel      string               `json:"channel"`
        Objective    string               `json:"objective"`
        Target       model.TargetConfig   `json:"target_config"`
        Schedule     model.ScheduleConfig `json:"schedule_config"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }

    campaign, err := c.CampaignService.CreateCampaign(&model.Campaign{
        OrgID:        body.OrgID,
        Name:         body.Name,
        CampaignType: body.CampaignType,
        Channel:      body.Channel,
        Objective:    body.Objective,
        Target:       body.Target,
        Schedule:     body.Schedule,
    })
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
    orgID, _ := strconv.Atoi(r.URL.Query().Get("org_id"))
    status := r.URL.Query().Get("status")

    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }

    campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, orgID, status)
    if err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "data":       campaigns,
        "pagination": pagination,
    })
}

// GetCampaignStatus returns the campaign record plus the lead-queue
// breakdown, worker flag and recent outcomes.
func (c *CampaignController) GetCampaignStatus(w http.ResponseWriter, r *http.Request) {
    id, err := campaignID(r)
    if err != nil {
        http.Error(w, "invalid campaign id", http.StatusBadRequest)
        return
    }

    status, err := c.CampaignService.GetCampaignStatus(id)
    if err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(status)
}

func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
    c.lifecycleOp(w, r, c.CampaignService.StartCampaign, "started")
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
    c.lifecycleOp(w, r, c.CampaignService.PauseCampaign, "pause_requested")
}

func (c *CampaignController) StopCampaign(w http.ResponseWriter, r *http.Request) {
    c.lifecycleOp(w, r, c.CampaignService.StopCampaign, "stopped")
}

func (c *CampaignController) CancelCampaign(w http.ResponseWriter, r *http.Request) {
    c.lifecycleOp(w, r, c.CampaignService.CancelCampaign, "cancelled")
}

func (c *CampaignController) lifecycleOp(w http.ResponseWriter, r *http.Request, op func(int) error, result string) {
    id, err := campaignID(r)
    if err != nil {
        http.Error(w, "invalid campaign id", http.StatusBadRequest)
        return
    }

    if err := op(id); err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "campaign_id": id,
        "result":      result,
    })
}

// MarkResponded is the inbound-message hook: the lead behind this campaign
// replied on the channel.
func (c *CampaignController) MarkResponded(w http.ResponseWriter, r *http.Request) {
    c.outcomeOp(w, r, c.CampaignService.MarkResponded, model.LeadStatusResponded)
}

func (c *CampaignController) MarkConverted(w http.ResponseWriter, r *http.Request) {
    c.outcomeOp(w, r, c.CampaignService.MarkConverted, model.LeadStatusConverted)
}

func (c *CampaignController) outcomeOp(w http.ResponseWriter, r *http.Request, op func(int, int) error, status string) {
    id, err := campaignID(r)
    if err != nil {
        http.Error(w, "invalid campaign id", http.StatusBadRequest)
        return
    }
    leadID, err := strconv.Atoi(chi.URLParam(r, "leadID"))
    if err != nil {
        http.Error(w, "invalid lead id", http.StatusBadRequest)
        return
    }

    if err := op(id, leadID); err != nil {
        writeError(w, err)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "campaign_id": id,
        "lead_id":     leadID,
        "status":      status,
    })
}
