package scheduler

import (
    "context"
    "log"
    "sync"
    "time"

    appErrors "github.com/unclebandit/outreach-backend/internal/errors"
    "github.com/unclebandit/outreach-backend/internal/initiator"
    "github.com/unclebandit/outreach-backend/internal/metrics"
    "github.com/unclebandit/outreach-backend/internal/model"
    "github.com/unclebandit/outreach-backend/internal/repository"
)

// Supervisor is the single authority on which campaigns have a running
// worker. Registration is a check-and-insert under one mutex, so two
// concurrent Starts cannot both spawn a worker.
type Supervisor struct {
    CampaignRepo repository.CampaignRepositoryInterface
    LeadRepo     repository.LeadRepositoryInterface
    ContactRepo  repository.ContactRepositoryInterface
    Initiator    initiator.ContactInitiator
    Metrics      *metrics.Aggregator

    // Worker tuning, applied to every spawned worker. Zero values mean the
    // worker defaults.
    InterContactDelay time.Duration
    MaxThrottleWait   time.Duration
    DispatchTimeout   time.Duration
    Now               func() time.Time
    Sleep             func(ctx context.Context, d time.Duration)

    mu      sync.Mutex
    workers map[int]context.CancelFunc
    wg      sync.WaitGroup
}

func NewSupervisor(campaignRepo repository.CampaignRepositoryInterface,
    leadRepo repository.LeadRepositoryInterface,
    contactRepo repository.ContactRepositoryInterface,
    ci initiator.ContactInitiator) *Supervisor {
    return &Supervisor{
        CampaignRepo: campaignRepo,
        LeadRepo:     leadRepo,
        ContactRepo:  contactRepo,
        Initiator:    ci,
        Metrics:      &metrics.Aggregator{CampaignRepo: campaignRepo, LeadRepo: leadRepo},
        workers:      make(map[int]context.CancelFunc),
    }
}

// Start seeds the campaign's lead queue, marks it active, and spawns its
// worker. Allowed from draft and paused; also from active when no worker is
// registered, which recovers a campaign whose worker died.
func (s *Supervisor) Start(campaignID int) error {
    campaign, err := s.CampaignRepo.GetByID(campaignID)
    if err != nil {
        return err
    }

    switch campaign.Status {
    case model.CampaignStatusDraft, model.CampaignStatusPaused, model.CampaignStatusActive:
    default:
        return appErrors.NewInvalidState(campaignID, campaign.Status, "start")
    }

    s.mu.Lock()
    if _, running := s.workers[campaignID]; running {
        s.mu.Unlock()
        return appErrors.NewAlreadyRunning(campaignID)
    }
    ctx, cancel := context.WithCancel(context.Background())
    s.workers[campaignID] = cancel
    s.mu.Unlock()

    if err := s.seedLeads(campaign); err != nil {
        cancel()
        s.deregister(campaignID)
        return err
    }

    if err := s.CampaignRepo.MarkStarted(campaignID); err != nil {
        cancel()
        s.deregister(campaignID)
        return err
    }

    // total_leads becomes visible before the first dispatch.
    if _, err := s.Metrics.Recompute(campaignID); err != nil {
        log.Printf("⚠️ Supervisor: initial metrics recompute failed for campaign %d: %v\n", campaignID, err)
    }

    w := NewWorker(campaignID, s.CampaignRepo, s.LeadRepo, s.Initiator, s.Metrics)
    if s.InterContactDelay > 0 {
        w.InterContactDelay = s.InterContactDelay
    }
    if s.MaxThrottleWait > 0 {
        w.MaxThrottleWait = s.MaxThrottleWait
    }
    if s.DispatchTimeout > 0 {
        w.DispatchTimeout = s.DispatchTimeout
    }
    if s.Now != nil {
        w.Now = s.Now
    }
    if s.Sleep != nil {
        w.Sleep = s.Sleep
    }

    s.wg.Add(1)
    go func() {
        defer s.wg.Done()
        defer s.deregister(campaignID)
        w.Run(ctx)
    }()

    log.Printf("🚀 Supervisor: started worker for campaign %d\n", campaignID)
    return nil
}

// seedLeads populates the lead queue from the campaign's target criteria.
// Contacts flagged do-not-call are seeded skipped so the audit trail still
// covers them. Idempotent through the repository's conflict handling.
func (s *Supervisor) seedLeads(campaign *model.Campaign) error {
    contacts, err := s.ContactRepo.ListByTarget(campaign.OrgID, campaign.Target)
    if err != nil {
        return err
    }
    for i := range contacts {
        c := &contacts[i]
        status := model.LeadStatusQueued
        if c.DoNotCall {
            status = model.LeadStatusSkipped
        }
        lead := &model.CampaignLead{
            CampaignID: campaign.ID,
            OrgID:      campaign.OrgID,
            ContactID:  c.ID,
            ContactInfo: model.ContactInfo{
                Phone:       c.Phone,
                DisplayName: c.DisplayName(),
            },
            Status: status,
        }
        if err := s.LeadRepo.SeedLead(lead); err != nil {
            return err
        }
    }
    return nil
}

// Pause requests the worker to stop after any in-flight attempt. It returns
// once the status is written; the worker observes it at the top of its loop.
func (s *Supervisor) Pause(campaignID int) error {
    campaign, err := s.CampaignRepo.GetByID(campaignID)
    if err != nil {
        return err
    }
    if campaign.Status != model.CampaignStatusActive {
        return appErrors.NewInvalidState(campaignID, campaign.Status, "pause")
    }

    if err := s.CampaignRepo.UpdateStatus(campaignID, model.CampaignStatusPaused); err != nil {
        return err
    }
    s.signal(campaignID)
    return nil
}

// Stop completes the campaign and deregisters its worker. At most one
// in-flight dispatch can still land after Stop returns: the worker checks
// for cancellation at the top of each iteration, never mid-dispatch.
func (s *Supervisor) Stop(campaignID int) error {
    return s.terminate(campaignID, model.CampaignStatusCompleted, "stop")
}

// Cancel is Stop with a cancelled terminal status.
func (s *Supervisor) Cancel(campaignID int) error {
    return s.terminate(campaignID, model.CampaignStatusCancelled, "cancel")
}

func (s *Supervisor) terminate(campaignID int, status, op string) error {
    campaign, err := s.CampaignRepo.GetByID(campaignID)
    if err != nil {
        return err
    }
    if campaign.Terminal() {
        return appErrors.NewInvalidState(campaignID, campaign.Status, op)
    }

    if err := s.CampaignRepo.MarkCompleted(campaignID, status); err != nil {
        return err
    }
    s.signal(campaignID)
    return nil
}

// IsRunning reports whether a worker is registered for the campaign.
func (s *Supervisor) IsRunning(campaignID int) bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    _, ok := s.workers[campaignID]
    return ok
}

// RunningCount returns how many workers are registered.
func (s *Supervisor) RunningCount() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return len(s.workers)
}

// Shutdown cancels every worker and waits for them to exit.
func (s *Supervisor) Shutdown() {
    s.mu.Lock()
    for id, cancel := range s.workers {
        log.Printf("Supervisor: shutting down worker for campaign %d\n", id)
        cancel()
    }
    s.mu.Unlock()
    s.wg.Wait()
}

func (s *Supervisor) signal(campaignID int) {
    s.mu.Lock()
    cancel, ok := s.workers[campaignID]
    s.mu.Unlock()
    if ok {
        cancel()
    }
}

func (s *Supervisor) deregister(campaignID int) {
    s.mu.Lock()
    delete(s.workers, campaignID)
    s.mu.Unlock()
}
