// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle statuses. Terminal: completed, cancelled.
const (
    CampaignStatusDraft     = "draft"
    CampaignStatusActive    = "active"
    CampaignStatusPaused    = "paused"
    CampaignStatusCompleted = "completed"
    CampaignStatusCancelled = "cancelled"
)

type Campaign struct {
    ID           int             `db:"id" json:"id"`
    OrgID        int             `db:"org_id" json:"org_id"`
    Name         string          `db:"name" json:"name"`
    CampaignType string          `db:"campaign_type" json:"campaign_type"`
    Channel      string          `db:"channel" json:"channel"`
    Objective    string          `db:"objective" json:"objective"`
    Status       string          `db:"status" json:"status"`
    Target       TargetConfig    `db:"target_config" json:"target_config"`
    Schedule     ScheduleConfig  `db:"schedule_config" json:"schedule_config"`
    Metrics      CampaignMetrics `db:"metrics" json:"metrics"`
    CreatedAt    time.Time       `db:"created_at" json:"created_at"`
    UpdatedAt    *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
    StartedAt    *time.Time      `db:"started_at" json:"started_at,omitempty"`
    CompletedAt  *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// TargetConfig selects which contacts seed the lead queue.
// EstimatedLeads is advisory only; the seeded count is authoritative.
type TargetConfig struct {
    Locations         []string `json:"locations,omitempty"`
    PreferredProducts []string `json:"preferred_products,omitempty"`
    MaxLeads          int      `json:"max_leads,omitempty"`
    EstimatedLeads    int      `json:"estimated_leads,omitempty"`
}

// ContactHours is the allowed local calling window, [Start, End) in clock
// hours of Timezone.
type ContactHours struct {
    Start    int    `json:"start"`
    End      int    `json:"end"`
    Timezone string `json:"timezone"`
}

type ScheduleConfig struct {
    DailyContactLimit     int            `json:"daily_contact_limit"`
    HourlyContactLimit    int            `json:"hourly_contact_limit"`
    ContactHours          ContactHours   `json:"contact_hours"`
    ContactDays           []time.Weekday `json:"contact_days"`
    RetryFailedAfterHours int            `json:"retry_failed_after_hours,omitempty"`
    MaxAttempts           int            `json:"max_attempts,omitempty"`
    AutoComplete          bool           `json:"auto_complete,omitempty"`
}

// ContactDay reports whether d is an allowed contact day.
func (s ScheduleConfig) ContactDay(d time.Weekday) bool {
    for _, wd := range s.ContactDays {
        if wd == d {
            return true
        }
    }
    return false
}

// CampaignMetrics are derived counters, recomputed from lead status counts.
// They are a cache, never the source of truth.
type CampaignMetrics struct {
    TotalLeads     int     `json:"total_leads"`
    LeadsContacted int     `json:"leads_contacted"`
    LeadsResponded int     `json:"leads_responded"`
    LeadsConverted int     `json:"leads_converted"`
    ResponseRate   float64 `json:"response_rate"`
    ConversionRate float64 `json:"conversion_rate"`
}

// Terminal reports whether the campaign can no longer change status.
func (c *Campaign) Terminal() bool {
    return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusCancelled
}
