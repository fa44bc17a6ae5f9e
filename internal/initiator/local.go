package initiator

import (
    "context"
    "fmt"
    "log"
    "math/rand"
    "sync"
)

// LocalInitiator is an in-process stand-in for the real channel, used when no
// broker is configured and by tests. Dispatches succeed at SuccessRate unless
// the lead's number is forced to fail.
type LocalInitiator struct {
    mu          sync.Mutex
    rng         *rand.Rand
    SuccessRate float64
    failNumbers map[string]bool
    dispatched  []DispatchRequest
}

// NewLocalInitiator creates a simulated channel with a 90% success rate.
func NewLocalInitiator(seed int64) *LocalInitiator {
    return &LocalInitiator{
        rng:         rand.New(rand.NewSource(seed)),
        SuccessRate: 0.9,
        failNumbers: make(map[string]bool),
    }
}

// FailNumber forces every dispatch to the given phone number to fail.
func (l *LocalInitiator) FailNumber(phone string) {
    l.mu.Lock()
    defer l.mu.Unlock()
    l.failNumbers[phone] = true
}

func (l *LocalInitiator) Dispatch(ctx context.Context, req DispatchRequest) error {
    if err := ctx.Err(); err != nil {
        return err
    }

    l.mu.Lock()
    defer l.mu.Unlock()

    if l.failNumbers[req.ContactInfo.Phone] {
        return fmt.Errorf("simulated channel failure for %s", req.ContactInfo.Phone)
    }
    if l.rng.Float64() >= l.SuccessRate {
        return fmt.Errorf("simulated channel failure for lead %d", req.LeadID)
    }

    l.dispatched = append(l.dispatched, req)
    log.Printf("📩 Dispatched %s contact to %s (campaign %d, lead %d)\n",
        req.Channel, req.ContactInfo.Phone, req.CampaignID, req.LeadID)
    return nil
}

// Dispatched returns a copy of the successfully dispatched requests, in order.
func (l *LocalInitiator) Dispatched() []DispatchRequest {
    l.mu.Lock()
    defer l.mu.Unlock()
    out := make([]DispatchRequest, len(l.dispatched))
    copy(out, l.dispatched)
    return out
}

var _ ContactInitiator = (*LocalInitiator)(nil)
