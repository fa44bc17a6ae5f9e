// Package metrics recomputes campaign counters from lead status counts.
package metrics

import (
    "github.com/unclebandit/outreach-backend/internal/model"
    "github.com/unclebandit/outreach-backend/internal/repository"
)

type Aggregator struct {
    CampaignRepo repository.CampaignRepositoryInterface
    LeadRepo     repository.LeadRepositoryInterface
}

// Derive computes campaign metrics from a status-count breakdown. Responded
// and converted leads were necessarily contacted first, so they count toward
// leads_contacted as well.
func Derive(counts map[string]int) model.CampaignMetrics {
    total := 0
    for _, n := range counts {
        total += n
    }

    m := model.CampaignMetrics{
        TotalLeads: total,
        LeadsContacted: counts[model.LeadStatusContacted] +
            counts[model.LeadStatusResponded] +
            counts[model.LeadStatusConverted],
        LeadsResponded: counts[model.LeadStatusResponded] + counts[model.LeadStatusConverted],
        LeadsConverted: counts[model.LeadStatusConverted],
    }
    if total > 0 {
        m.ResponseRate = float64(m.LeadsResponded) / float64(total)
        m.ConversionRate = float64(m.LeadsConverted) / float64(total)
    }
    return m
}

// Recompute re-derives the campaign's metrics from the lead queue and writes
// them back. Always a full recomputation, so the cache cannot drift.
func (a *Aggregator) Recompute(campaignID int) (model.CampaignMetrics, error) {
    counts, err := a.LeadRepo.CountByStatus(campaignID)
    if err != nil {
        return model.CampaignMetrics{}, err
    }
    m := Derive(counts)
    if err := a.CampaignRepo.UpdateMetrics(campaignID, m); err != nil {
        return model.CampaignMetrics{}, err
    }
    return m, nil
}
