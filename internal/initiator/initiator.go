// Package initiator abstracts the outbound side of a contact attempt. The
// scheduler only sees success or failure; rendering and delivery live behind
// this interface.
package initiator

import (
    "context"

    "github.com/unclebandit/outreach-backend/internal/model"
)

// DispatchRequest is the minimal context a channel needs to contact a lead.
type DispatchRequest struct {
    OrgID       int               `json:"org_id"`
    CampaignID  int               `json:"campaign_id"`
    LeadID      int               `json:"lead_id"`
    ContactInfo model.ContactInfo `json:"contact_info"`
    Channel     string            `json:"channel"`
    Objective   string            `json:"objective"`
}

// ContactInitiator performs one outbound contact attempt. A nil return means
// the attempt was handed to the channel successfully; any error (including
// ctx deadline) is a dispatch failure.
type ContactInitiator interface {
    Dispatch(ctx context.Context, req DispatchRequest) error
}
