// Package store defines the persistence contract for tenants, campaigns,
// tasks and audits. Implementations live in the sqlite and postgres
// sub-packages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/raysh454/rankdesk/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Organizations persists tenants.
type Organizations interface {
	CreateOrganization(ctx context.Context, org *model.Organization) error
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
}

// Profiles persists application user profiles.
type Profiles interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p *model.Profile) error
	SetProfileOrganization(ctx context.Context, userID, orgID, role string) (*model.Profile, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)
}

// Campaigns persists campaigns. An empty orgID in ListCampaigns lists all.
type Campaigns interface {
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, orgID string) ([]model.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, upd model.CampaignUpdate) (*model.Campaign, error)
	ListOrphanCampaigns(ctx context.Context) ([]model.Campaign, error)
	AdoptOrphanCampaigns(ctx context.Context, orgID string) (int, error)
}

// Tasks persists work items.
type Tasks interface {
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error)
	UpdateTask(ctx context.Context, id string, upd model.TaskUpdate) (*model.Task, error)
}

// Audits persists audit lifecycle snapshots.
type Audits interface {
	// SaveAudit inserts the audit, or overwrites the stored snapshot when
	// a.ID already exists. An empty ID is assigned.
	SaveAudit(ctx context.Context, a *model.Audit) error
	GetAudit(ctx context.Context, id string) (*model.Audit, error)
	ListAudits(ctx context.Context, campaignID string) ([]model.Audit, error)

	// TransitionAudit overwrites the snapshot only if the stored status is
	// still from. When a.ClaimedAt is set the stored claim must match it too.
	// It reports whether the write happened.
	TransitionAudit(ctx context.Context, a *model.Audit, from model.AuditStatus) (bool, error)

	// ClaimAuditFinalize atomically moves a crawling audit to finalizing.
	// A finalizing audit whose claim is older than staleBefore may be
	// claimed again. It reports whether this caller won the claim.
	ClaimAuditFinalize(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)

	// ReleaseAuditFinalize returns a finalizing audit to crawling, provided
	// the claim taken at claimedAt is still the current one.
	ReleaseAuditFinalize(ctx context.Context, id string, claimedAt time.Time) error
}

// Migrations records one-shot data repairs.
type Migrations interface {
	HasMigration(ctx context.Context, name string) (bool, error)
	RecordMigration(ctx context.Context, name, detail string) error
}

// Store is the full persistence surface.
type Store interface {
	Organizations
	Profiles
	Campaigns
	Tasks
	Audits
	Migrations

	Ping(ctx context.Context) error
	Close() error
}
