package repository

import (
    "database/sql"
    "encoding/json"
    "time"

    appErrors "github.com/unclebandit/outreach-backend/internal/errors"
    "github.com/unclebandit/outreach-backend/internal/model"
)

type LeadRepositoryInterface interface {
    SeedLead(lead *model.CampaignLead) error
    GetByID(id int) (*model.CampaignLead, error)
    NextQueued(campaignID int) (*model.CampaignLead, error)
    MarkProcessing(leadID int) (bool, error)
    UpdateStatus(leadID int, status, lastError string) error
    CountByStatus(campaignID int) (map[string]int, error)
    CountAttemptsSince(campaignID int, since time.Time) (int, error)
    RequeueRetryable(campaignID int, cutoff time.Time, maxAttempts int) (int, error)
    RecentOutcomes(campaignID, limit int) ([]model.CampaignLead, error)
}

type LeadRepository struct {
    DB *sql.DB
}

const leadColumns = `id, campaign_id, org_id, contact_id, contact_info, status,
        attempts, last_attempt_at, scheduled_contact_time, last_error, created_at`

// SeedLead inserts a lead record for a campaign. Idempotent: a contact
// already seeded for this campaign is left untouched, so re-starting a
// paused campaign never duplicates queue entries.
func (r *LeadRepository) SeedLead(lead *model.CampaignLead) error {
    lead.CreatedAt = time.Now()
    if lead.Status == "" {
        lead.Status = model.LeadStatusQueued
    }
    info, err := json.Marshal(lead.ContactInfo)
    if err != nil {
        return err
    }
    query := `
        INSERT INTO campaign_leads (campaign_id, org_id, contact_id, contact_info, status, attempts, created_at)
        VALUES ($1, $2, $3, $4, $5, 0, $6)
        ON CONFLICT (campaign_id, contact_id) DO NOTHING
        RETURNING id
    `
    err = r.DB.QueryRow(query, lead.CampaignID, lead.OrgID, lead.ContactID, info, lead.Status, lead.CreatedAt).Scan(&lead.ID)
    if err == sql.ErrNoRows {
        // Already seeded for this campaign.
        return nil
    }
    return err
}

func scanLead(row interface{ Scan(...any) error }) (*model.CampaignLead, error) {
    var l model.CampaignLead
    var info []byte
    err := row.Scan(&l.ID, &l.CampaignID, &l.OrgID, &l.ContactID, &info, &l.Status,
        &l.Attempts, &l.LastAttemptAt, &l.ScheduledAt, &l.LastError, &l.CreatedAt)
    if err != nil {
        return nil, err
    }
    if err := json.Unmarshal(info, &l.ContactInfo); err != nil {
        return nil, err
    }
    return &l, nil
}

func (r *LeadRepository) GetByID(id int) (*model.CampaignLead, error) {
    query := `SELECT ` + leadColumns + ` FROM campaign_leads WHERE id=$1`
    l, err := scanLead(r.DB.QueryRow(query, id))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewLeadNotFound(id)
        }
        return nil, err
    }
    return l, nil
}

// NextQueued returns the oldest queued lead for the campaign, FIFO by
// creation time with id as tiebreak. Returns nil, nil when the queue is empty.
func (r *LeadRepository) NextQueued(campaignID int) (*model.CampaignLead, error) {
    query := `SELECT ` + leadColumns + `
        FROM campaign_leads
        WHERE campaign_id=$1 AND status=$2
        ORDER BY created_at ASC, id ASC
        LIMIT 1`
    l, err := scanLead(r.DB.QueryRow(query, campaignID, model.LeadStatusQueued))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, nil
        }
        return nil, err
    }
    return l, nil
}

// MarkProcessing moves a queued lead to processing, incrementing its attempt
// counter and stamping last_attempt_at. The status guard in the WHERE clause
// makes the transition atomic: it reports false if the lead was no longer
// queued, which keeps at most one lead in processing per campaign worker.
func (r *LeadRepository) MarkProcessing(leadID int) (bool, error) {
    query := `
        UPDATE campaign_leads
        SET status=$1, attempts=attempts+1, last_attempt_at=NOW()
        WHERE id=$2 AND status=$3
    `
    res, err := r.DB.Exec(query, model.LeadStatusProcessing, leadID, model.LeadStatusQueued)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

func (r *LeadRepository) UpdateStatus(leadID int, status, lastError string) error {
    query := `UPDATE campaign_leads SET status=$1, last_error=$2 WHERE id=$3`
    _, err := r.DB.Exec(query, status, lastError, leadID)
    return err
}

func (r *LeadRepository) CountByStatus(campaignID int) (map[string]int, error) {
    query := `SELECT status, COUNT(*) FROM campaign_leads WHERE campaign_id=$1 GROUP BY status`
    rows, err := r.DB.Query(query, campaignID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    counts := map[string]int{
        model.LeadStatusQueued:     0,
        model.LeadStatusProcessing: 0,
        model.LeadStatusContacted:  0,
        model.LeadStatusResponded:  0,
        model.LeadStatusConverted:  0,
        model.LeadStatusFailed:     0,
        model.LeadStatusSkipped:    0,
    }
    for rows.Next() {
        var status string
        var count int
        if err := rows.Scan(&status, &count); err != nil {
            return nil, err
        }
        counts[status] = count
    }
    return counts, rows.Err()
}

// CountAttemptsSince counts leads whose last dispatch attempt happened at or
// after since. Failed attempts count too: they consumed channel capacity, so
// the throttle limits treat them the same as successful contacts.
func (r *LeadRepository) CountAttemptsSince(campaignID int, since time.Time) (int, error) {
    query := `
        SELECT COUNT(*) FROM campaign_leads
        WHERE campaign_id=$1 AND last_attempt_at IS NOT NULL AND last_attempt_at >= $2
    `
    var count int
    err := r.DB.QueryRow(query, campaignID, since).Scan(&count)
    return count, err
}

// RequeueRetryable moves failed leads whose last attempt is older than cutoff
// back to queued, as long as they have attempts left. Returns how many were
// re-queued.
func (r *LeadRepository) RequeueRetryable(campaignID int, cutoff time.Time, maxAttempts int) (int, error) {
    query := `
        UPDATE campaign_leads
        SET status=$1, last_error=''
        WHERE campaign_id=$2 AND status=$3 AND last_attempt_at < $4 AND attempts < $5
    `
    res, err := r.DB.Exec(query, model.LeadStatusQueued, campaignID, model.LeadStatusFailed, cutoff, maxAttempts)
    if err != nil {
        return 0, err
    }
    n, err := res.RowsAffected()
    return int(n), err
}

// RecentOutcomes returns the most recently attempted leads that reached an
// outcome, for the status endpoint.
func (r *LeadRepository) RecentOutcomes(campaignID, limit int) ([]model.CampaignLead, error) {
    query := `SELECT ` + leadColumns + `
        FROM campaign_leads
        WHERE campaign_id=$1 AND status IN ($2, $3, $4, $5)
        ORDER BY last_attempt_at DESC NULLS LAST, id DESC
        LIMIT $6`
    rows, err := r.DB.Query(query, campaignID,
        model.LeadStatusContacted, model.LeadStatusResponded, model.LeadStatusConverted, model.LeadStatusFailed, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    leads := []model.CampaignLead{}
    for rows.Next() {
        l, err := scanLead(rows)
        if err != nil {
            return nil, err
        }
        leads = append(leads, *l)
    }
    return leads, rows.Err()
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
