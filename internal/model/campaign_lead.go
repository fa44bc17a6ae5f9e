// internal/model/campaign_lead.go
package model

import "time"

// Lead processing statuses. contacted, failed and skipped are terminal for
// the worker; responded/converted are set by inbound-message collaborators.
const (
    LeadStatusQueued     = "queued"
    LeadStatusProcessing = "processing"
    LeadStatusContacted  = "contacted"
    LeadStatusResponded  = "responded"
    LeadStatusConverted  = "converted"
    LeadStatusFailed     = "failed"
    LeadStatusSkipped    = "skipped"
)

// ContactInfo is the minimal slice of a contact the dispatcher needs.
type ContactInfo struct {
    Phone       string `json:"phone"`
    DisplayName string `json:"display_name"`
}

// CampaignLead is the per-lead processing record. It is created when the
// campaign starts and never deleted while the campaign lives; it is the
// audit trail the campaign metrics are recomputed from.
type CampaignLead struct {
    ID            int         `db:"id" json:"id"`
    CampaignID    int         `db:"campaign_id" json:"campaign_id"`
    OrgID         int         `db:"org_id" json:"org_id"`
    ContactID     int         `db:"contact_id" json:"contact_id"`
    ContactInfo   ContactInfo `db:"contact_info" json:"contact_info"`
    Status        string      `db:"status" json:"status"`
    Attempts      int         `db:"attempts" json:"attempts"`
    LastAttemptAt *time.Time  `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
    ScheduledAt   *time.Time  `db:"scheduled_contact_time" json:"scheduled_contact_time,omitempty"`
    LastError     string      `db:"last_error" json:"last_error,omitempty"`
    CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}
