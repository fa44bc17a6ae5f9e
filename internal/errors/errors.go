// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
    CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
    return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
    return &ErrCampaignNotFound{CampaignID: id}
}

// ErrLeadNotFound is returned when a lead id does not exist or belongs to a
// different campaign/organization.
type ErrLeadNotFound struct {
    LeadID int
}

func (e *ErrLeadNotFound) Error() string {
    return fmt.Sprintf("campaign lead with ID %d not found", e.LeadID)
}

func NewLeadNotFound(id int) error {
    return &ErrLeadNotFound{LeadID: id}
}

// ErrInvalidState is returned when a lifecycle operation is requested on a
// campaign whose current status forbids it.
type ErrInvalidState struct {
    CampaignID int
    Status     string
    Op         string
}

func (e *ErrInvalidState) Error() string {
    return fmt.Sprintf("cannot %s campaign %d in status %q", e.Op, e.CampaignID, e.Status)
}

func NewInvalidState(id int, status, op string) error {
    return &ErrInvalidState{CampaignID: id, Status: status, Op: op}
}

// ErrAlreadyRunning is returned when Start finds a worker already registered
// for the campaign.
type ErrAlreadyRunning struct {
    CampaignID int
}

func (e *ErrAlreadyRunning) Error() string {
    return fmt.Sprintf("campaign %d already has a running worker", e.CampaignID)
}

func NewAlreadyRunning(id int) error {
    return &ErrAlreadyRunning{CampaignID: id}
}
