// Package storetest is a behavioural suite every store.Store implementation
// backed by a real database must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("Organizations", func(t *testing.T) { testOrganizations(t, newStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("Campaigns", func(t *testing.T) { testCampaigns(t, newStore(t)) })
	t.Run("OrphanAdoption", func(t *testing.T) { testOrphans(t, newStore(t)) })
	t.Run("Tasks", func(t *testing.T) { testTasks(t, newStore(t)) })
	t.Run("AuditLifecycle", func(t *testing.T) { testAudits(t, newStore(t)) })
	t.Run("FinalizeClaim", func(t *testing.T) { testClaim(t, newStore(t)) })
	t.Run("Migrations", func(t *testing.T) { testMigrations(t, newStore(t)) })
}

// SeedCampaign creates an organization and a campaign for tests that need
// a valid foreign key.
func SeedCampaign(t *testing.T, s store.Store, domain string) *model.Campaign {
	t.Helper()
	ctx := context.Background()
	org := &model.Organization{Name: "Acme", Slug: "acme-" + domain, OwnerID: "u1"}
	if err := s.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	c := &model.Campaign{OrganizationID: org.ID, Name: domain, Domain: domain}
	if err := s.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	return c
}

func testOrganizations(t *testing.T, s store.Store) {
	ctx := context.Background()
	org := &model.Organization{Name: "Acme's Org", Slug: "acmes-org-1", OwnerID: "u1"}
	if err := s.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if org.ID == "" {
		t.Fatal("expected id assigned")
	}

	dup := &model.Organization{Name: "Other", Slug: "acmes-org-1"}
	if err := s.CreateOrganization(ctx, dup); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate slug, got %v", err)
	}

	orgs, err := s.ListOrganizations(ctx)
	if err != nil {
		t.Fatalf("ListOrganizations: %v", err)
	}
	if len(orgs) != 1 || orgs[0].Slug != "acmes-org-1" {
		t.Errorf("unexpected organizations: %+v", orgs)
	}
}

func testProfiles(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetProfile(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	p := &model.Profile{ID: "u1", Email: "ann@example.com", FullName: "Ann"}
	if err := s.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	got, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Role != "viewer" || got.OrganizationID != "" {
		t.Errorf("expected default viewer without org, got %+v", got)
	}

	org := &model.Organization{Name: "Ann's Org", Slug: "anns-org", OwnerID: "u1"}
	if err := s.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	updated, err := s.SetProfileOrganization(ctx, "u1", org.ID, "admin")
	if err != nil {
		t.Fatalf("SetProfileOrganization: %v", err)
	}
	if updated.OrganizationID != org.ID || updated.Role != "admin" {
		t.Errorf("unexpected profile after update: %+v", updated)
	}

	if _, err := s.SetProfileOrganization(ctx, "nobody", org.ID, "admin"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown profile, got %v", err)
	}

	all, err := s.ListProfiles(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("ListProfiles = %v, %v", all, err)
	}
}

func testCampaigns(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := SeedCampaign(t, s, "a.example")
	b := SeedCampaign(t, s, "b.example")

	got, err := s.GetCampaign(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetCampaign: %v", err)
	}
	if got.Domain != "a.example" || got.Status != "active" || got.Settings == nil {
		t.Errorf("unexpected campaign: %+v", got)
	}

	scoped, err := s.ListCampaigns(ctx, b.OrganizationID)
	if err != nil {
		t.Fatalf("ListCampaigns: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != b.ID {
		t.Errorf("expected only campaign b, got %+v", scoped)
	}

	all, err := s.ListCampaigns(ctx, "")
	if err != nil || len(all) != 2 {
		t.Errorf("ListCampaigns(all) = %d, %v", len(all), err)
	}

	name := "Renamed"
	upd, err := s.UpdateCampaign(ctx, a.ID, model.CampaignUpdate{
		Name:     &name,
		Settings: map[string]any{"competitors": []any{"c.example"}},
	})
	if err != nil {
		t.Fatalf("UpdateCampaign: %v", err)
	}
	if upd.Name != "Renamed" {
		t.Errorf("expected renamed, got %q", upd.Name)
	}
	if comps, ok := upd.Settings["competitors"].([]any); !ok || len(comps) != 1 {
		t.Errorf("expected settings round trip, got %v", upd.Settings)
	}

	if _, err := s.UpdateCampaign(ctx, "missing", model.CampaignUpdate{Name: &name}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testOrphans(t *testing.T, s store.Store) {
	ctx := context.Background()
	owned := SeedCampaign(t, s, "owned.example")
	for _, d := range []string{"o1.example", "o2.example"} {
		if err := s.CreateCampaign(ctx, &model.Campaign{Name: d, Domain: d}); err != nil {
			t.Fatalf("CreateCampaign: %v", err)
		}
	}

	orphans, err := s.ListOrphanCampaigns(ctx)
	if err != nil {
		t.Fatalf("ListOrphanCampaigns: %v", err)
	}
	if len(orphans) != 2 {
		t.Fatalf("expected 2 orphans, got %d", len(orphans))
	}

	n, err := s.AdoptOrphanCampaigns(ctx, owned.OrganizationID)
	if err != nil {
		t.Fatalf("AdoptOrphanCampaigns: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 adopted, got %d", n)
	}

	n, err = s.AdoptOrphanCampaigns(ctx, owned.OrganizationID)
	if err != nil || n != 0 {
		t.Errorf("second adoption = %d, %v; want 0, nil", n, err)
	}

	scoped, _ := s.ListCampaigns(ctx, owned.OrganizationID)
	if len(scoped) != 3 {
		t.Errorf("expected 3 campaigns in org, got %d", len(scoped))
	}
}

func testTasks(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := SeedCampaign(t, s, "tasks.example")

	t1 := &model.Task{
		CampaignID:   c.ID,
		Type:         "technical",
		Title:        "Add H1 headings (2 pages)",
		Checklist:    []model.ChecklistItem{{Item: "https://tasks.example/a"}, {Item: "https://tasks.example/b"}},
		AssignedRole: "optimization_specialist",
		Priority:     1,
	}
	t2 := &model.Task{CampaignID: c.ID, Type: "content", Title: "Expand thin content pages (1 pages)", AssignedTo: "u2", Priority: 1}
	for _, task := range []*model.Task{t1, t2} {
		if err := s.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
	if t1.Status != model.TaskPending {
		t.Errorf("expected default pending status, got %q", t1.Status)
	}

	got, err := s.GetTask(ctx, t1.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if len(got.Checklist) != 2 || got.Checklist[1].Item != "https://tasks.example/b" {
		t.Errorf("unexpected checklist: %+v", got.Checklist)
	}
	if got.Campaign == nil || got.Campaign.Domain != "tasks.example" {
		t.Errorf("expected joined campaign, got %+v", got.Campaign)
	}

	mine, err := s.ListTasks(ctx, model.TaskFilter{AssignedTo: "u2"})
	if err != nil || len(mine) != 1 || mine[0].ID != t2.ID {
		t.Errorf("ListTasks(assigned) = %+v, %v", mine, err)
	}
	byCampaign, _ := s.ListTasks(ctx, model.TaskFilter{CampaignID: c.ID, Status: model.TaskPending})
	if len(byCampaign) != 2 {
		t.Errorf("expected 2 pending tasks, got %d", len(byCampaign))
	}

	done := model.TaskDone
	upd, err := s.UpdateTask(ctx, t1.ID, model.TaskUpdate{
		Status:    &done,
		Checklist: []model.ChecklistItem{{Item: "https://tasks.example/a", Completed: true}},
	})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if upd.Status != model.TaskDone || len(upd.Checklist) != 1 || !upd.Checklist[0].Completed {
		t.Errorf("unexpected task after update: %+v", upd)
	}

	if _, err := s.UpdateTask(ctx, "missing", model.TaskUpdate{Status: &done}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testAudits(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := SeedCampaign(t, s, "audit.example")

	a := &model.Audit{CampaignID: c.ID, Status: model.AuditCrawling, DataForSEOTaskID: "T1", Domain: c.Domain}
	if err := s.SaveAudit(ctx, a); err != nil {
		t.Fatalf("SaveAudit: %v", err)
	}
	if a.ID == "" || a.Type != "technical" {
		t.Errorf("expected id and default type, got %+v", a)
	}

	done := *a
	done.Status = model.AuditCompleted
	done.Summary = model.Summary{"pages_crawled": float64(10)}
	done.Results = model.AuditResults{
		Summary: done.Summary,
		Pages:   []model.PageFinding{{URL: "https://audit.example/", Issues: model.IssueFlags{NoTitle: true}}},
	}

	ok, err := s.TransitionAudit(ctx, &done, model.AuditFinalizing)
	if err != nil {
		t.Fatalf("TransitionAudit: %v", err)
	}
	if ok {
		t.Fatal("transition from the wrong status must not apply")
	}

	ok, err = s.TransitionAudit(ctx, &done, model.AuditCrawling)
	if err != nil || !ok {
		t.Fatalf("TransitionAudit(crawling) = %v, %v", ok, err)
	}

	got, err := s.GetAudit(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAudit: %v", err)
	}
	if got.Status != model.AuditCompleted || got.Summary["pages_crawled"] != float64(10) {
		t.Errorf("unexpected audit: %+v", got)
	}
	if len(got.Results.Pages) != 1 || !got.Results.Pages[0].Issues.NoTitle {
		t.Errorf("unexpected pages: %+v", got.Results.Pages)
	}
	if got.Campaign == nil || got.Campaign.Domain != "audit.example" {
		t.Errorf("expected joined campaign, got %+v", got.Campaign)
	}

	list, err := s.ListAudits(ctx, c.ID)
	if err != nil || len(list) != 1 {
		t.Errorf("ListAudits = %d, %v", len(list), err)
	}
	if _, err := s.GetAudit(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testClaim(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := SeedCampaign(t, s, "claim.example")
	a := &model.Audit{CampaignID: c.ID, Status: model.AuditCrawling, DataForSEOTaskID: "T9"}
	if err := s.SaveAudit(ctx, a); err != nil {
		t.Fatalf("SaveAudit: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	lease := 10 * time.Minute

	won, err := s.ClaimAuditFinalize(ctx, a.ID, now, now.Add(-lease))
	if err != nil || !won {
		t.Fatalf("first claim = %v, %v", won, err)
	}
	won, err = s.ClaimAuditFinalize(ctx, a.ID, now, now.Add(-lease))
	if err != nil || won {
		t.Fatalf("second claim = %v, %v; want lost", won, err)
	}

	later := now.Add(lease + time.Minute)
	won, err = s.ClaimAuditFinalize(ctx, a.ID, later, later.Add(-lease))
	if err != nil || !won {
		t.Fatalf("stale reclaim = %v, %v; want won", won, err)
	}

	// The first worker's claim was taken over; it may neither release nor
	// complete the audit.
	if err := s.ReleaseAuditFinalize(ctx, a.ID, now); err != nil {
		t.Fatalf("ReleaseAuditFinalize(old claim): %v", err)
	}
	got, _ := s.GetAudit(ctx, a.ID)
	if got.Status != model.AuditFinalizing {
		t.Fatalf("old claim released the audit, got %q", got.Status)
	}
	stale := *got
	stale.Status = model.AuditCompleted
	stale.ClaimedAt = &now
	if ok, err := s.TransitionAudit(ctx, &stale, model.AuditFinalizing); err != nil || ok {
		t.Fatalf("complete with old claim = %v, %v; want refused", ok, err)
	}

	if err := s.ReleaseAuditFinalize(ctx, a.ID, later); err != nil {
		t.Fatalf("ReleaseAuditFinalize: %v", err)
	}
	got, _ = s.GetAudit(ctx, a.ID)
	if got.Status != model.AuditCrawling {
		t.Errorf("expected crawling after release, got %q", got.Status)
	}

	got.Status = model.AuditCompleted
	if ok, err := s.TransitionAudit(ctx, got, model.AuditCrawling); err != nil || !ok {
		t.Fatalf("complete = %v, %v", ok, err)
	}
	won, err = s.ClaimAuditFinalize(ctx, a.ID, later, later)
	if err != nil || won {
		t.Errorf("claim on completed audit = %v, %v; want lost", won, err)
	}
}

func testMigrations(t *testing.T, s store.Store) {
	ctx := context.Background()
	has, err := s.HasMigration(ctx, "adopt-orphans:o1")
	if err != nil || has {
		t.Fatalf("HasMigration before = %v, %v", has, err)
	}
	if err := s.RecordMigration(ctx, "adopt-orphans:o1", "3 campaigns"); err != nil {
		t.Fatalf("RecordMigration: %v", err)
	}
	has, _ = s.HasMigration(ctx, "adopt-orphans:o1")
	if !has {
		t.Error("expected migration recorded")
	}
	if err := s.RecordMigration(ctx, "adopt-orphans:o1", "again"); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict on re-record, got %v", err)
	}
}
