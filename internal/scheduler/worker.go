// Package scheduler drives campaign lead queues: one worker goroutine per
// active campaign, owned by the Supervisor.
package scheduler

import (
    "context"
    "log"
    "time"

    "github.com/unclebandit/outreach-backend/internal/initiator"
    "github.com/unclebandit/outreach-backend/internal/metrics"
    "github.com/unclebandit/outreach-backend/internal/model"
    "github.com/unclebandit/outreach-backend/internal/repository"
    "github.com/unclebandit/outreach-backend/internal/throttle"
)

const (
    defaultInterContactDelay = 2 * time.Second
    defaultMaxThrottleWait   = 5 * time.Minute
    defaultDispatchTimeout   = 30 * time.Second
    defaultMaxAttempts       = 3

    // Consecutive store failures before the worker gives up and deregisters.
    fatalErrorThreshold = 3
)

// Worker processes one campaign's lead queue sequentially: at most one lead
// is ever in processing for the campaign. Pause/stop are observed at the top
// of the loop, so an in-flight dispatch always completes.
type Worker struct {
    CampaignID   int
    CampaignRepo repository.CampaignRepositoryInterface
    LeadRepo     repository.LeadRepositoryInterface
    Initiator    initiator.ContactInitiator
    Metrics      *metrics.Aggregator

    InterContactDelay time.Duration
    MaxThrottleWait   time.Duration
    DispatchTimeout   time.Duration

    // Injectable for tests, like the send hook on the dispatch side.
    Now   func() time.Time
    Sleep func(ctx context.Context, d time.Duration)
}

func NewWorker(campaignID int, campaignRepo repository.CampaignRepositoryInterface,
    leadRepo repository.LeadRepositoryInterface, ci initiator.ContactInitiator,
    agg *metrics.Aggregator) *Worker {
    return &Worker{
        CampaignID:        campaignID,
        CampaignRepo:      campaignRepo,
        LeadRepo:          leadRepo,
        Initiator:         ci,
        Metrics:           agg,
        InterContactDelay: defaultInterContactDelay,
        MaxThrottleWait:   defaultMaxThrottleWait,
        DispatchTimeout:   defaultDispatchTimeout,
        Now:               time.Now,
        Sleep:             sleepCtx,
    }
}

func sleepCtx(ctx context.Context, d time.Duration) {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-t.C:
    case <-ctx.Done():
    }
}

// Run loops until the campaign leaves active, the queue is exhausted, ctx is
// cancelled, or the store becomes unreachable. It never returns an error:
// individual lead failures are recorded on the lead and the loop continues.
func (w *Worker) Run(ctx context.Context) {
    storeErrs := 0
    for {
        if ctx.Err() != nil {
            return
        }

        campaign, err := w.CampaignRepo.GetByID(w.CampaignID)
        if err != nil {
            storeErrs++
            log.Printf("⚠️ Worker %d: failed to read campaign (%d/%d): %v\n", w.CampaignID, storeErrs, fatalErrorThreshold, err)
            if storeErrs >= fatalErrorThreshold {
                log.Printf("❌ Worker %d: store unreachable, exiting; campaign stays active for re-start\n", w.CampaignID)
                return
            }
            w.Sleep(ctx, time.Second)
            continue
        }
        if campaign.Status != model.CampaignStatusActive {
            log.Printf("Worker %d: campaign is %s, exiting\n", w.CampaignID, campaign.Status)
            return
        }

        now := w.Now()
        sentToday, sentThisHour, err := w.throttleCounters(campaign.Schedule, now)
        if err != nil {
            storeErrs++
            log.Printf("⚠️ Worker %d: failed to read throttle counters (%d/%d): %v\n", w.CampaignID, storeErrs, fatalErrorThreshold, err)
            if storeErrs >= fatalErrorThreshold {
                log.Printf("❌ Worker %d: store unreachable, exiting; campaign stays active for re-start\n", w.CampaignID)
                return
            }
            w.Sleep(ctx, time.Second)
            continue
        }
        storeErrs = 0

        if !throttle.CanContactNow(campaign.Schedule, now, sentToday, sentThisHour) {
            wait := throttle.NextEligibleTime(campaign.Schedule, now, sentToday, sentThisHour).Sub(now)
            if wait < time.Second {
                wait = time.Second
            }
            if wait > w.MaxThrottleWait {
                wait = w.MaxThrottleWait
            }
            log.Printf("Worker %d: throttled, waiting %s\n", w.CampaignID, wait)
            w.Sleep(ctx, wait)
            continue
        }

        if w.processNext(campaign) {
            return
        }
        w.Sleep(ctx, w.InterContactDelay)
    }
}

func (w *Worker) throttleCounters(cfg model.ScheduleConfig, now time.Time) (sentToday, sentThisHour int, err error) {
    sentToday, err = w.LeadRepo.CountAttemptsSince(w.CampaignID, throttle.MidnightLocal(cfg, now))
    if err != nil {
        return 0, 0, err
    }
    sentThisHour, err = w.LeadRepo.CountAttemptsSince(w.CampaignID, throttle.HourStartLocal(cfg, now))
    if err != nil {
        return 0, 0, err
    }
    return sentToday, sentThisHour, nil
}

// processNext selects and dispatches one lead. It returns true when the
// queue is exhausted and the worker should exit.
func (w *Worker) processNext(campaign *model.Campaign) bool {
    lead, err := w.LeadRepo.NextQueued(w.CampaignID)
    if err != nil {
        log.Printf("⚠️ Worker %d: failed to select next lead: %v\n", w.CampaignID, err)
        return false
    }
    if lead == nil {
        if w.requeueFailed(campaign) > 0 {
            return false
        }
        if campaign.Schedule.AutoComplete {
            log.Printf("✅ Worker %d: queue exhausted, completing campaign\n", w.CampaignID)
            if err := w.CampaignRepo.MarkCompleted(w.CampaignID, model.CampaignStatusCompleted); err != nil {
                log.Printf("⚠️ Worker %d: failed to complete campaign: %v\n", w.CampaignID, err)
            }
        } else {
            log.Printf("Worker %d: queue exhausted, campaign stays active\n", w.CampaignID)
        }
        return true
    }

    ok, err := w.LeadRepo.MarkProcessing(lead.ID)
    if err != nil {
        log.Printf("⚠️ Worker %d: failed to mark lead %d processing: %v\n", w.CampaignID, lead.ID, err)
        return false
    }
    if !ok {
        // Lead changed status underneath us; pick again next iteration.
        return false
    }

    // The dispatch deliberately ignores the worker's cancellation: a pause or
    // stop lets the in-flight attempt finish, bounded by its own deadline.
    dispatchCtx, cancel := context.WithTimeout(context.Background(), w.DispatchTimeout)
    err = w.Initiator.Dispatch(dispatchCtx, initiator.DispatchRequest{
        OrgID:       campaign.OrgID,
        CampaignID:  campaign.ID,
        LeadID:      lead.ID,
        ContactInfo: lead.ContactInfo,
        Channel:     campaign.Channel,
        Objective:   campaign.Objective,
    })
    cancel()

    if err != nil {
        log.Printf("⚠️ Worker %d: dispatch failed for lead %d: %v\n", w.CampaignID, lead.ID, err)
        if uerr := w.LeadRepo.UpdateStatus(lead.ID, model.LeadStatusFailed, err.Error()); uerr != nil {
            log.Printf("⚠️ Worker %d: failed to mark lead %d failed: %v\n", w.CampaignID, lead.ID, uerr)
        }
    } else {
        if uerr := w.LeadRepo.UpdateStatus(lead.ID, model.LeadStatusContacted, ""); uerr != nil {
            log.Printf("⚠️ Worker %d: failed to mark lead %d contacted: %v\n", w.CampaignID, lead.ID, uerr)
        }
    }

    if _, err := w.Metrics.Recompute(w.CampaignID); err != nil {
        log.Printf("⚠️ Worker %d: metrics recompute failed: %v\n", w.CampaignID, err)
    }
    return false
}

// requeueFailed re-queues failed leads whose retry window has elapsed, up to
// the campaign's attempt ceiling. Retries are off when the window is zero.
func (w *Worker) requeueFailed(campaign *model.Campaign) int {
    if campaign.Schedule.RetryFailedAfterHours <= 0 {
        return 0
    }
    maxAttempts := campaign.Schedule.MaxAttempts
    if maxAttempts <= 0 {
        maxAttempts = defaultMaxAttempts
    }
    cutoff := w.Now().Add(-time.Duration(campaign.Schedule.RetryFailedAfterHours) * time.Hour)
    n, err := w.LeadRepo.RequeueRetryable(w.CampaignID, cutoff, maxAttempts)
    if err != nil {
        log.Printf("⚠️ Worker %d: failed to re-queue retryable leads: %v\n", w.CampaignID, err)
        return 0
    }
    if n > 0 {
        log.Printf("Worker %d: re-queued %d failed leads for retry\n", w.CampaignID, n)
    }
    return n
}
