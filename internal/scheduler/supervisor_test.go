package scheduler_test

import (
	"errors"
	"testing"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/initiator"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/scheduler"
)

func newTestSupervisor(store *memStore, ci initiator.ContactInitiator) *scheduler.Supervisor {
	sup := scheduler.NewSupervisor(
		&memCampaignRepo{s: store},
		&memLeadRepo{s: store},
		&memContactRepo{s: store},
		ci,
	)
	sup.Now = fixedNow
	sup.InterContactDelay = time.Millisecond
	return sup
}

func draftCampaign(store *memStore, schedule model.ScheduleConfig) *model.Campaign {
	c := &model.Campaign{OrgID: 1, Name: "test", Channel: "sms", Objective: "say hi", Schedule: schedule}
	(&memCampaignRepo{s: store}).Create(c)
	return c
}

func addContacts(store *memStore, contacts ...model.Contact) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.contacts = append(store.contacts, contacts...)
}

func waitUntil(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestSupervisorStartSeedsAndRuns(t *testing.T) {
	store := newMemStore(fixedNow)
	addContacts(store,
		model.Contact{ID: 1, OrgID: 1, Phone: "+100", FirstName: "Alice"},
		model.Contact{ID: 2, OrgID: 1, Phone: "+101", FirstName: "Bob"},
		model.Contact{ID: 3, OrgID: 1, Phone: "+102", FirstName: "Dan", DoNotCall: true},
	)
	ci := newRecordingInitiator()
	sup := newTestSupervisor(store, ci)
	c := draftCampaign(store, permissiveSchedule())

	if err := sup.Start(c.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitUntil(t, "worker to drain the queue", func() bool { return !sup.IsRunning(c.ID) })

	counts, _ := (&memLeadRepo{s: store}).CountByStatus(c.ID)
	if counts[model.LeadStatusContacted] != 2 {
		t.Errorf("expected 2 contacted, got %+v", counts)
	}
	if counts[model.LeadStatusSkipped] != 1 {
		t.Errorf("expected the do-not-call contact skipped, got %+v", counts)
	}

	camp, _ := (&memCampaignRepo{s: store}).GetByID(c.ID)
	if camp.Status != model.CampaignStatusCompleted {
		t.Errorf("expected completed after exhaustion with auto_complete, got %s", camp.Status)
	}
	if camp.StartedAt == nil {
		t.Error("expected started_at to be set")
	}
}

func TestSupervisorRejectsDuplicateStart(t *testing.T) {
	store := newMemStore(fixedNow)
	addContacts(store, model.Contact{ID: 1, OrgID: 1, Phone: "+100"})

	// Block the worker inside its first dispatch so it stays registered.
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	ci := newRecordingInitiator()
	ci.onDispatch = func() {
		entered <- struct{}{}
		<-release
	}
	defer close(release)

	sup := newTestSupervisor(store, ci)
	c := draftCampaign(store, permissiveSchedule())

	if err := sup.Start(c.ID); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	<-entered

	err := sup.Start(c.ID)
	var already *appErrors.ErrAlreadyRunning
	if err == nil {
		t.Fatal("second Start should fail")
	}
	if !errorsAs(err, &already) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if sup.RunningCount() != 1 {
		t.Errorf("expected exactly 1 registered worker, got %d", sup.RunningCount())
	}
}

func TestSupervisorStartInvalidStates(t *testing.T) {
	store := newMemStore(fixedNow)
	ci := newRecordingInitiator()
	sup := newTestSupervisor(store, ci)
	c := draftCampaign(store, permissiveSchedule())
	(&memCampaignRepo{s: store}).MarkCompleted(c.ID, model.CampaignStatusCompleted)

	err := sup.Start(c.ID)
	var invalid *appErrors.ErrInvalidState
	if !errorsAs(err, &invalid) {
		t.Fatalf("expected ErrInvalidState for completed campaign, got %v", err)
	}

	var notFound *appErrors.ErrCampaignNotFound
	if !errorsAs(sup.Start(999), &notFound) {
		t.Fatal("expected ErrCampaignNotFound for unknown campaign")
	}
}

func TestSupervisorPauseLetsInFlightDispatchFinish(t *testing.T) {
	store := newMemStore(fixedNow)
	addContacts(store,
		model.Contact{ID: 1, OrgID: 1, Phone: "+100"},
		model.Contact{ID: 2, OrgID: 1, Phone: "+101"},
	)

	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	ci := newRecordingInitiator()
	ci.onDispatch = func() {
		entered <- struct{}{}
		<-release
	}

	sup := newTestSupervisor(store, ci)
	c := draftCampaign(store, permissiveSchedule())
	if err := sup.Start(c.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Pause while the first dispatch is in flight, then let it finish.
	<-entered
	if err := sup.Pause(c.ID); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	close(release)

	waitUntil(t, "worker to observe the pause", func() bool { return !sup.IsRunning(c.ID) })

	leadRepo := &memLeadRepo{s: store}
	first, _ := leadRepo.GetByID(1)
	if first.Status != model.LeadStatusContacted {
		t.Errorf("in-flight lead should still reach contacted, got %s", first.Status)
	}
	second, _ := leadRepo.GetByID(2)
	if second.Status != model.LeadStatusQueued {
		t.Errorf("no lead should enter processing after pause, got %s", second.Status)
	}

	camp, _ := (&memCampaignRepo{s: store}).GetByID(c.ID)
	if camp.Status != model.CampaignStatusPaused {
		t.Errorf("expected paused, got %s", camp.Status)
	}
}

func TestSupervisorResumeAfterPauseDoesNotReseed(t *testing.T) {
	store := newMemStore(fixedNow)
	addContacts(store,
		model.Contact{ID: 1, OrgID: 1, Phone: "+100"},
		model.Contact{ID: 2, OrgID: 1, Phone: "+101"},
	)
	ci := newRecordingInitiator()
	sup := newTestSupervisor(store, ci)

	schedule := permissiveSchedule()
	schedule.ContactHours = model.ContactHours{Start: 12, End: 17, Timezone: "UTC"} // blocked at 10:00
	c := draftCampaign(store, schedule)

	if err := sup.Start(c.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sup.Pause(c.ID); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	waitUntil(t, "worker exit", func() bool { return !sup.IsRunning(c.ID) })

	if err := sup.Start(c.ID); err != nil {
		t.Fatalf("re-Start after pause failed: %v", err)
	}
	defer sup.Shutdown()

	store.mu.Lock()
	leadCount := len(store.leads)
	store.mu.Unlock()
	if leadCount != 2 {
		t.Errorf("re-seeding duplicated leads: got %d records", leadCount)
	}
}

func TestSupervisorStopCompletesCampaign(t *testing.T) {
	store := newMemStore(fixedNow)
	addContacts(store, model.Contact{ID: 1, OrgID: 1, Phone: "+100"})
	ci := newRecordingInitiator()
	sup := newTestSupervisor(store, ci)

	schedule := permissiveSchedule()
	schedule.ContactHours = model.ContactHours{Start: 12, End: 17, Timezone: "UTC"}
	c := draftCampaign(store, schedule)

	if err := sup.Start(c.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sup.Stop(c.ID); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	waitUntil(t, "worker deregistration", func() bool { return !sup.IsRunning(c.ID) })

	camp, _ := (&memCampaignRepo{s: store}).GetByID(c.ID)
	if camp.Status != model.CampaignStatusCompleted {
		t.Errorf("expected completed, got %s", camp.Status)
	}
	if camp.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	var invalid *appErrors.ErrInvalidState
	if !errorsAs(sup.Stop(c.ID), &invalid) {
		t.Error("stopping a terminal campaign should be InvalidState")
	}
}

func TestSupervisorCancelMarksCancelled(t *testing.T) {
	store := newMemStore(fixedNow)
	ci := newRecordingInitiator()
	sup := newTestSupervisor(store, ci)
	c := draftCampaign(store, permissiveSchedule())

	if err := sup.Cancel(c.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	camp, _ := (&memCampaignRepo{s: store}).GetByID(c.ID)
	if camp.Status != model.CampaignStatusCancelled {
		t.Errorf("expected cancelled, got %s", camp.Status)
	}
}

func TestSupervisorShutdownStopsAllWorkers(t *testing.T) {
	store := newMemStore(fixedNow)
	addContacts(store, model.Contact{ID: 1, OrgID: 1, Phone: "+100"})
	ci := newRecordingInitiator()
	sup := newTestSupervisor(store, ci)

	schedule := permissiveSchedule()
	schedule.ContactHours = model.ContactHours{Start: 12, End: 17, Timezone: "UTC"}
	c1 := draftCampaign(store, schedule)
	c2 := draftCampaign(store, schedule)

	if err := sup.Start(c1.ID); err != nil {
		t.Fatalf("Start c1 failed: %v", err)
	}
	if err := sup.Start(c2.ID); err != nil {
		t.Fatalf("Start c2 failed: %v", err)
	}

	sup.Shutdown()
	if sup.RunningCount() != 0 {
		t.Errorf("expected no workers after shutdown, got %d", sup.RunningCount())
	}
}

func errorsAs(err error, target any) bool {
	return err != nil && errors.As(err, target)
}
