package repository

import (
    "database/sql"
    "encoding/json"
    "fmt"
    "time"

    appErrors "github.com/unclebandit/outreach-backend/internal/errors"
    "github.com/unclebandit/outreach-backend/internal/model"
)

type CampaignRepositoryInterface interface {
    Create(c *model.Campaign) error
    GetByID(id int) (*model.Campaign, error)
    Update(c *model.Campaign) error
    UpdateStatus(campaignID int, status string) error
    MarkStarted(campaignID int) error
    MarkCompleted(campaignID int, status string) error
    UpdateMetrics(campaignID int, m model.CampaignMetrics) error
    ListCampaigns(offset, limit, orgID int, status string) ([]*model.Campaign, int, error)
}

type CampaignRepository struct {
    DB *sql.DB
}

const campaignColumns = `id, org_id, name, campaign_type, channel, objective, status,
        target_config, schedule_config, metrics, created_at, updated_at, started_at, completed_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
    c.CreatedAt = time.Now()
    if c.Status == "" {
        c.Status = model.CampaignStatusDraft
    }
    target, err := json.Marshal(c.Target)
    if err != nil {
        return err
    }
    schedule, err := json.Marshal(c.Schedule)
    if err != nil {
        return err
    }
    metrics, err := json.Marshal(c.Metrics)
    if err != nil {
        return err
    }
    query := `
        INSERT INTO campaigns (org_id, name, campaign_type, channel, objective, status, target_config, schedule_config, metrics, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `
    return r.DB.QueryRow(query, c.OrgID, c.Name, c.CampaignType, c.Channel, c.Objective,
        c.Status, target, schedule, metrics, c.CreatedAt).Scan(&c.ID)
}

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
    var c model.Campaign
    var target, schedule, metrics []byte
    err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.CampaignType, &c.Channel, &c.Objective,
        &c.Status, &target, &schedule, &metrics,
        &c.CreatedAt, &c.UpdatedAt, &c.StartedAt, &c.CompletedAt)
    if err != nil {
        return nil, err
    }
    if err := json.Unmarshal(target, &c.Target); err != nil {
        return nil, err
    }
    if err := json.Unmarshal(schedule, &c.Schedule); err != nil {
        return nil, err
    }
    if err := json.Unmarshal(metrics, &c.Metrics); err != nil {
        return nil, err
    }
    return &c, nil
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
    query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
    c, err := scanCampaign(r.DB.QueryRow(query, id))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewCampaignNotFound(id)
        }
        return nil, err
    }
    return c, nil
}

func (r *CampaignRepository) Update(c *model.Campaign) error {
    target, err := json.Marshal(c.Target)
    if err != nil {
        return err
    }
    schedule, err := json.Marshal(c.Schedule)
    if err != nil {
        return err
    }
    query := `
        UPDATE campaigns
        SET name=$1, objective=$2, target_config=$3, schedule_config=$4, status=$5, updated_at=NOW()
        WHERE id=$6
    `
    _, err = r.DB.Exec(query, c.Name, c.Objective, target, schedule, c.Status, c.ID)
    return err
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status string) error {
    query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
    _, err := r.DB.Exec(query, status, time.Now(), campaignID)
    return err
}

// MarkStarted sets the campaign active and records started_at on first start
// only (re-starting a paused campaign keeps the original timestamp).
func (r *CampaignRepository) MarkStarted(campaignID int) error {
    query := `
        UPDATE campaigns
        SET status=$1, started_at=COALESCE(started_at, NOW()), updated_at=NOW()
        WHERE id=$2
    `
    _, err := r.DB.Exec(query, model.CampaignStatusActive, campaignID)
    return err
}

// MarkCompleted moves the campaign to a terminal status and stamps completed_at.
func (r *CampaignRepository) MarkCompleted(campaignID int, status string) error {
    query := `UPDATE campaigns SET status=$1, completed_at=NOW(), updated_at=NOW() WHERE id=$2`
    _, err := r.DB.Exec(query, status, campaignID)
    return err
}

func (r *CampaignRepository) UpdateMetrics(campaignID int, m model.CampaignMetrics) error {
    metrics, err := json.Marshal(m)
    if err != nil {
        return err
    }
    query := `UPDATE campaigns SET metrics=$1, updated_at=NOW() WHERE id=$2`
    _, err = r.DB.Exec(query, metrics, campaignID)
    return err
}

func (r *CampaignRepository) ListCampaigns(offset, limit, orgID int, status string) ([]*model.Campaign, int, error) {
    campaigns := []*model.Campaign{}
    query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
    args := []interface{}{}
    argPos := 1

    if orgID > 0 {
        query += fmt.Sprintf(" AND org_id=$%d", argPos)
        args = append(args, orgID)
        argPos++
    }
    if status != "" {
        query += fmt.Sprintf(" AND status=$%d", argPos)
        args = append(args, status)
        argPos++
    }

    query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
    args = append(args, limit, offset)

    rows, err := r.DB.Query(query, args...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    for rows.Next() {
        c, err := scanCampaign(rows)
        if err != nil {
            return nil, 0, err
        }
        campaigns = append(campaigns, c)
    }

    // Count total
    countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
    argsCount := []interface{}{}
    argPosCount := 1
    if orgID > 0 {
        countQuery += fmt.Sprintf(" AND org_id=$%d", argPosCount)
        argsCount = append(argsCount, orgID)
        argPosCount++
    }
    if status != "" {
        countQuery += fmt.Sprintf(" AND status=$%d", argPosCount)
        argsCount = append(argsCount, status)
    }

    var total int
    if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
        return nil, 0, err
    }

    return campaigns, total, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
