// internal/service/campaign_service.go
package service

import (
    "fmt"
    "log"
    "time"

    appErrors "github.com/unclebandit/outreach-backend/internal/errors"
    "github.com/unclebandit/outreach-backend/internal/metrics"
    "github.com/unclebandit/outreach-backend/internal/model"
    "github.com/unclebandit/outreach-backend/internal/repository"
    "github.com/unclebandit/outreach-backend/internal/scheduler"
)

type CampaignService struct {
    CampaignRepo repository.CampaignRepositoryInterface
    LeadRepo     repository.LeadRepositoryInterface
    Supervisor   *scheduler.Supervisor
}

// CampaignStatus is the operator-facing view: campaign record, lead-queue
// breakdown, whether a worker is registered, and the latest outcomes.
type CampaignStatus struct {
    Campaign       *model.Campaign      `json:"campaign"`
    LeadCounts     map[string]int       `json:"lead_counts"`
    WorkerRunning  bool                 `json:"worker_running"`
    RecentOutcomes []model.CampaignLead `json:"recent_outcomes"`
}

func (s *CampaignService) CreateCampaign(c *model.Campaign) (*model.Campaign, error) {
    if c.Name == "" {
        return nil, fmt.Errorf("campaign name is required")
    }
    if c.Channel == "" {
        return nil, fmt.Errorf("campaign channel is required")
    }
    if err := validateSchedule(c.Schedule); err != nil {
        return nil, err
    }

    c.Status = model.CampaignStatusDraft
    if err := s.CampaignRepo.Create(c); err != nil {
        return nil, err
    }
    return c, nil
}

func validateSchedule(cfg model.ScheduleConfig) error {
    if cfg.DailyContactLimit <= 0 {
        return fmt.Errorf("daily_contact_limit must be positive")
    }
    if cfg.HourlyContactLimit <= 0 {
        return fmt.Errorf("hourly_contact_limit must be positive")
    }
    h := cfg.ContactHours
    if h.Start < 0 || h.Start > 23 || h.End < 1 || h.End > 24 || h.Start >= h.End {
        return fmt.Errorf("contact_hours must satisfy 0 <= start < end <= 24")
    }
    if h.Timezone != "" {
        if _, err := time.LoadLocation(h.Timezone); err != nil {
            return fmt.Errorf("invalid contact_hours timezone %q", h.Timezone)
        }
    }
    if len(cfg.ContactDays) == 0 {
        return fmt.Errorf("contact_days must not be empty")
    }
    return nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize, orgID int, status string) ([]model.Campaign, map[string]int, error) {
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if pageSize > 100 {
        pageSize = 100
    }
    offset := (page - 1) * pageSize

    ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, orgID, status)
    if err != nil {
        return nil, nil, err
    }

    campaigns := make([]model.Campaign, len(ptrs))
    for i, c := range ptrs {
        campaigns[i] = *c
    }

    totalPages := (total + pageSize - 1) / pageSize
    pagination := map[string]int{
        "page":        page,
        "page_size":   pageSize,
        "total_count": total,
        "total_pages": totalPages,
    }

    return campaigns, pagination, nil
}

// GetCampaignStatus assembles the campaign record, its lead status counts,
// and the worker registration flag.
func (s *CampaignService) GetCampaignStatus(campaignID int) (*CampaignStatus, error) {
    campaign, err := s.CampaignRepo.GetByID(campaignID)
    if err != nil {
        return nil, err
    }

    counts, err := s.LeadRepo.CountByStatus(campaignID)
    if err != nil {
        return nil, err
    }

    recent, err := s.LeadRepo.RecentOutcomes(campaignID, 10)
    if err != nil {
        return nil, err
    }

    return &CampaignStatus{
        Campaign:       campaign,
        LeadCounts:     counts,
        WorkerRunning:  s.Supervisor.IsRunning(campaignID),
        RecentOutcomes: recent,
    }, nil
}

func (s *CampaignService) StartCampaign(campaignID int) error {
    return s.Supervisor.Start(campaignID)
}

func (s *CampaignService) PauseCampaign(campaignID int) error {
    return s.Supervisor.Pause(campaignID)
}

func (s *CampaignService) StopCampaign(campaignID int) error {
    return s.Supervisor.Stop(campaignID)
}

func (s *CampaignService) CancelCampaign(campaignID int) error {
    return s.Supervisor.Cancel(campaignID)
}

// MarkResponded is the update hook for inbound-message collaborators: a
// contacted lead replied. Only contacted leads can be marked responded.
func (s *CampaignService) MarkResponded(campaignID, leadID int) error {
    return s.markOutcome(campaignID, leadID, model.LeadStatusResponded,
        map[string]bool{model.LeadStatusContacted: true})
}

// MarkConverted records a conversion on a lead that was contacted or had
// already responded.
func (s *CampaignService) MarkConverted(campaignID, leadID int) error {
    return s.markOutcome(campaignID, leadID, model.LeadStatusConverted,
        map[string]bool{model.LeadStatusContacted: true, model.LeadStatusResponded: true})
}

func (s *CampaignService) markOutcome(campaignID, leadID int, status string, allowedFrom map[string]bool) error {
    lead, err := s.LeadRepo.GetByID(leadID)
    if err != nil {
        return err
    }
    if lead.CampaignID != campaignID {
        return appErrors.NewLeadNotFound(leadID)
    }
    if !allowedFrom[lead.Status] {
        return fmt.Errorf("cannot mark lead %d %s from status %q", leadID, status, lead.Status)
    }

    if err := s.LeadRepo.UpdateStatus(leadID, status, ""); err != nil {
        return err
    }

    agg := &metrics.Aggregator{CampaignRepo: s.CampaignRepo, LeadRepo: s.LeadRepo}
    if _, err := agg.Recompute(campaignID); err != nil {
        log.Printf("⚠️ Metrics recompute failed for campaign %d: %v\n", campaignID, err)
    }
    return nil
}
