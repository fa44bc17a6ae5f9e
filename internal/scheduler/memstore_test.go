package scheduler_test

import (
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
)

// memStore is a mutex-guarded in-memory stand-in for the Postgres stores,
// shared by the campaign, lead and contact repo mocks.
type memStore struct {
	mu         sync.Mutex
	campaigns  map[int]*model.Campaign
	leads      map[int]*model.CampaignLead
	contacts   []model.Contact
	nextCampID int
	nextLeadID int
	now        func() time.Time

	// Highest number of leads observed in processing at once, across all
	// mutating calls. The sequential-dispatch guarantee keeps this at 1.
	maxProcessing int
}

func newMemStore(now func() time.Time) *memStore {
	if now == nil {
		now = time.Now
	}
	return &memStore{
		campaigns:  make(map[int]*model.Campaign),
		leads:      make(map[int]*model.CampaignLead),
		nextCampID: 1,
		nextLeadID: 1,
		now:        now,
	}
}

func (s *memStore) observeProcessing() {
	n := 0
	for _, l := range s.leads {
		if l.Status == model.LeadStatusProcessing {
			n++
		}
	}
	if n > s.maxProcessing {
		s.maxProcessing = n
	}
}

type memCampaignRepo struct{ s *memStore }

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.nextCampID
	r.s.nextCampID++
	c.CreatedAt = r.s.now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	cp := *c
	r.s.campaigns[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) Update(c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.campaigns[c.ID] = &cp
	return nil
}

func (r *memCampaignRepo) UpdateStatus(campaignID int, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = status
	return nil
}

func (r *memCampaignRepo) MarkStarted(campaignID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = model.CampaignStatusActive
	if c.StartedAt == nil {
		t := r.s.now()
		c.StartedAt = &t
	}
	return nil
}

func (r *memCampaignRepo) MarkCompleted(campaignID int, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = status
	t := r.s.now()
	c.CompletedAt = &t
	return nil
}

func (r *memCampaignRepo) UpdateMetrics(campaignID int, m model.CampaignMetrics) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Metrics = m
	return nil
}

func (r *memCampaignRepo) ListCampaigns(offset, limit, orgID int, status string) ([]*model.Campaign, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := []*model.Campaign{}
	for _, c := range r.s.campaigns {
		if orgID > 0 && c.OrgID != orgID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if offset >= len(all) {
		return []*model.Campaign{}, total, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

type memLeadRepo struct{ s *memStore }

func (r *memLeadRepo) SeedLead(lead *model.CampaignLead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.leads {
		if l.CampaignID == lead.CampaignID && l.ContactID == lead.ContactID {
			return nil
		}
	}
	lead.ID = r.s.nextLeadID
	r.s.nextLeadID++
	lead.CreatedAt = r.s.now()
	if lead.Status == "" {
		lead.Status = model.LeadStatusQueued
	}
	cp := *lead
	r.s.leads[lead.ID] = &cp
	return nil
}

func (r *memLeadRepo) GetByID(id int) (*model.CampaignLead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok {
		return nil, appErrors.NewLeadNotFound(id)
	}
	cp := *l
	return &cp, nil
}

func (r *memLeadRepo) NextQueued(campaignID int) (*model.CampaignLead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var next *model.CampaignLead
	for _, l := range r.s.leads {
		if l.CampaignID != campaignID || l.Status != model.LeadStatusQueued {
			continue
		}
		if next == nil || l.CreatedAt.Before(next.CreatedAt) ||
			(l.CreatedAt.Equal(next.CreatedAt) && l.ID < next.ID) {
			next = l
		}
	}
	if next == nil {
		return nil, nil
	}
	cp := *next
	return &cp, nil
}

func (r *memLeadRepo) MarkProcessing(leadID int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[leadID]
	if !ok || l.Status != model.LeadStatusQueued {
		return false, nil
	}
	l.Status = model.LeadStatusProcessing
	l.Attempts++
	t := r.s.now()
	l.LastAttemptAt = &t
	r.s.observeProcessing()
	return true, nil
}

func (r *memLeadRepo) UpdateStatus(leadID int, status, lastError string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[leadID]
	if !ok {
		return appErrors.NewLeadNotFound(leadID)
	}
	l.Status = status
	l.LastError = lastError
	return nil
}

func (r *memLeadRepo) CountByStatus(campaignID int) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[string]int{}
	for _, l := range r.s.leads {
		if l.CampaignID == campaignID {
			counts[l.Status]++
		}
	}
	return counts, nil
}

func (r *memLeadRepo) CountAttemptsSince(campaignID int, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, l := range r.s.leads {
		if l.CampaignID == campaignID && l.LastAttemptAt != nil && !l.LastAttemptAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memLeadRepo) RequeueRetryable(campaignID int, cutoff time.Time, maxAttempts int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, l := range r.s.leads {
		if l.CampaignID == campaignID && l.Status == model.LeadStatusFailed &&
			l.LastAttemptAt != nil && l.LastAttemptAt.Before(cutoff) && l.Attempts < maxAttempts {
			l.Status = model.LeadStatusQueued
			l.LastError = ""
			n++
		}
	}
	return n, nil
}

func (r *memLeadRepo) RecentOutcomes(campaignID, limit int) ([]model.CampaignLead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.CampaignLead{}
	for _, l := range r.s.leads {
		switch l.Status {
		case model.LeadStatusContacted, model.LeadStatusResponded, model.LeadStatusConverted, model.LeadStatusFailed:
			if l.CampaignID == campaignID {
				out = append(out, *l)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memContactRepo struct{ s *memStore }

func (r *memContactRepo) GetByID(id int) (*model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contacts {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memContactRepo) ListByTarget(orgID int, target model.TargetConfig) ([]model.Contact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Contact{}
	for _, c := range r.s.contacts {
		if c.OrgID != orgID {
			continue
		}
		if len(target.Locations) > 0 && !containsStr(target.Locations, c.Location) {
			continue
		}
		if len(target.PreferredProducts) > 0 && !containsStr(target.PreferredProducts, c.PreferredProduct) {
			continue
		}
		out = append(out, c)
		if target.MaxLeads > 0 && len(out) >= target.MaxLeads {
			break
		}
	}
	return out, nil
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
