package repository

import (
    "database/sql"
    "fmt"

    "github.com/lib/pq"

    "github.com/unclebandit/outreach-backend/internal/model"
)

// ContactRepositoryInterface defines methods used for seeding lead queues
type ContactRepositoryInterface interface {
    GetByID(id int) (*model.Contact, error)
    ListByTarget(orgID int, target model.TargetConfig) ([]model.Contact, error)
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
    DB *sql.DB
}

// GetByID fetches a contact by ID
func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
    query := `
        SELECT id, org_id, phone, first_name, last_name, location, preferred_product, do_not_call
        FROM contacts
        WHERE id = $1
    `
    row := r.DB.QueryRow(query, id)

    var c model.Contact
    if err := row.Scan(&c.ID, &c.OrgID, &c.Phone, &c.FirstName, &c.LastName, &c.Location, &c.PreferredProduct, &c.DoNotCall); err != nil {
        if err == sql.ErrNoRows {
            return nil, nil // not found
        }
        return nil, err
    }
    return &c, nil
}

// ListByTarget fetches the contacts matching a campaign's target criteria,
// oldest first so queue seeding order is stable across restarts.
func (r *ContactRepository) ListByTarget(orgID int, target model.TargetConfig) ([]model.Contact, error) {
    query := `
        SELECT id, org_id, phone, first_name, last_name, location, preferred_product, do_not_call
        FROM contacts
        WHERE org_id = $1
    `
    args := []interface{}{orgID}
    argPos := 2

    if len(target.Locations) > 0 {
        query += fmt.Sprintf(" AND location = ANY($%d)", argPos)
        args = append(args, pq.Array(target.Locations))
        argPos++
    }
    if len(target.PreferredProducts) > 0 {
        query += fmt.Sprintf(" AND preferred_product = ANY($%d)", argPos)
        args = append(args, pq.Array(target.PreferredProducts))
        argPos++
    }

    query += " ORDER BY id ASC"
    if target.MaxLeads > 0 {
        query += fmt.Sprintf(" LIMIT $%d", argPos)
        args = append(args, target.MaxLeads)
    }

    rows, err := r.DB.Query(query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    contacts := []model.Contact{}
    for rows.Next() {
        var c model.Contact
        if err := rows.Scan(&c.ID, &c.OrgID, &c.Phone, &c.FirstName, &c.LastName, &c.Location, &c.PreferredProduct, &c.DoNotCall); err != nil {
            return nil, err
        }
        contacts = append(contacts, c)
    }
    return contacts, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
