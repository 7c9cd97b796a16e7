// Package migrate holds one-shot data repairs. Every repair previews by
// default and records a marker when applied so it cannot run twice.
package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/store"
)

var (
	ErrAlreadyApplied      = errors.New("migration already applied")
	ErrUnknownOrganization = errors.New("unknown organization")
)

// Store is the persistence repairs read and write.
type Store interface {
	store.Organizations
	store.Profiles
	store.Campaigns
	store.Migrations
	ListAudits(ctx context.Context, campaignID string) ([]model.Audit, error)
}

// AdoptOrphans assigns every campaign without an organization to TargetOrg.
type AdoptOrphans struct {
	TargetOrg string
	Logger    logging.Logger
}

// AdoptPlan is the preview of an AdoptOrphans run.
type AdoptPlan struct {
	Marker         string           `json:"marker"`
	TargetOrg      string           `json:"target_org"`
	Campaigns      []model.Campaign `json:"campaigns"`
	AlreadyApplied bool             `json:"already_applied"`
}

// Marker names the record that guards this repair.
func (m AdoptOrphans) Marker() string {
	return "adopt-orphans:" + m.TargetOrg
}

func (m AdoptOrphans) logger() logging.Logger {
	if m.Logger == nil {
		return logging.Nop{}
	}
	return m.Logger.With(logging.F("migration", m.Marker()))
}

func (m AdoptOrphans) check(ctx context.Context, st Store) error {
	if m.TargetOrg == "" {
		return fmt.Errorf("target organization is required")
	}
	orgs, err := st.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, o := range orgs {
		if o.ID == m.TargetOrg {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownOrganization, m.TargetOrg)
}

// Plan lists the campaigns Apply would adopt. It writes nothing.
func (m AdoptOrphans) Plan(ctx context.Context, st Store) (*AdoptPlan, error) {
	if err := m.check(ctx, st); err != nil {
		return nil, err
	}
	applied, err := st.HasMigration(ctx, m.Marker())
	if err != nil {
		return nil, err
	}
	orphans, err := st.ListOrphanCampaigns(ctx)
	if err != nil {
		return nil, err
	}
	if orphans == nil {
		orphans = []model.Campaign{}
	}
	return &AdoptPlan{Marker: m.Marker(), TargetOrg: m.TargetOrg, Campaigns: orphans, AlreadyApplied: applied}, nil
}

// Apply adopts the orphans and records the marker. It refuses to run when
// the marker already exists.
func (m AdoptOrphans) Apply(ctx context.Context, st Store) (int, error) {
	log := m.logger()
	if err := m.check(ctx, st); err != nil {
		return 0, err
	}
	applied, err := st.HasMigration(ctx, m.Marker())
	if err != nil {
		return 0, err
	}
	if applied {
		return 0, fmt.Errorf("%s: %w", m.Marker(), ErrAlreadyApplied)
	}

	n, err := st.AdoptOrphanCampaigns(ctx, m.TargetOrg)
	if err != nil {
		return 0, err
	}
	if err := st.RecordMigration(ctx, m.Marker(), fmt.Sprintf("adopted %d campaigns", n)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return n, fmt.Errorf("%s: %w", m.Marker(), ErrAlreadyApplied)
		}
		return n, fmt.Errorf("record marker: %w", err)
	}
	log.Info("migrated orphaned campaigns", logging.F("campaigns", n), logging.F("organization_id", m.TargetOrg))
	return n, nil
}
