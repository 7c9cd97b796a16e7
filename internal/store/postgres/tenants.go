package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/store"
)

// --- organizations ---

type orgRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	Slug      string         `db:"slug"`
	OwnerID   sql.NullString `db:"owner_id"`
	CreatedAt time.Time      `db:"created_at"`
}

func (s *Store) CreateOrganization(ctx context.Context, org *model.Organization) error {
	if org.ID == "" {
		org.ID = newID()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, slug, owner_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		org.ID, org.Name, org.Slug, nullString(org.OwnerID), org.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert organization %s: %w", org.Slug, store.ErrConflict)
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *Store) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	var rows []orgRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, slug, owner_id, created_at FROM organizations ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	out := make([]model.Organization, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Organization{
			ID: r.ID, Name: r.Name, Slug: r.Slug, OwnerID: r.OwnerID.String, CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// --- profiles ---

const profileColumns = `id, email, full_name, role, organization_id`

type profileRow struct {
	ID             string         `db:"id"`
	Email          sql.NullString `db:"email"`
	FullName       sql.NullString `db:"full_name"`
	Role           sql.NullString `db:"role"`
	OrganizationID sql.NullString `db:"organization_id"`
}

func (r profileRow) model() *model.Profile {
	role := r.Role.String
	if role == "" {
		role = "viewer"
	}
	return &model.Profile{
		ID: r.ID, Email: r.Email.String, FullName: r.FullName.String,
		Role: role, OrganizationID: r.OrganizationID.String,
	}
}

func (s *Store) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var row profileRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "profile", id)
	}
	return row.model(), nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *model.Profile) error {
	if p.Role == "" {
		p.Role = "viewer"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, role, organization_id) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, full_name = EXCLUDED.full_name`,
		p.ID, p.Email, p.FullName, p.Role, nullString(p.OrganizationID))
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) SetProfileOrganization(ctx context.Context, userID, orgID, role string) (*model.Profile, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET organization_id = $1, role = $2 WHERE id = $3`,
		nullString(orgID), role, userID)
	if err != nil {
		return nil, fmt.Errorf("update profile %s: %w", userID, err)
	}
	if err := execRequireRows(res, nil, fmt.Errorf("profile %s: %w", userID, store.ErrNotFound)); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

func (s *Store) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+profileColumns+` FROM profiles ORDER BY email`); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]model.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.model())
	}
	return out, nil
}

// --- campaigns ---

const campaignColumns = `id, organization_id, name, domain, settings, status, created_at`

type campaignRow struct {
	ID             string         `db:"id"`
	OrganizationID sql.NullString `db:"organization_id"`
	Name           string         `db:"name"`
	Domain         string         `db:"domain"`
	Settings       []byte         `db:"settings"`
	Status         sql.NullString `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r campaignRow) model() (*model.Campaign, error) {
	c := &model.Campaign{
		ID: r.ID, OrganizationID: r.OrganizationID.String, Name: r.Name, Domain: r.Domain,
		Settings: map[string]any{}, Status: r.Status.String, CreatedAt: r.CreatedAt.UTC(),
	}
	if err := decodeJSON(r.Settings, &c.Settings); err != nil {
		return nil, fmt.Errorf("decode campaign %s settings: %w", r.ID, err)
	}
	return c, nil
}

func (s *Store) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = "active"
	}
	if c.Settings == nil {
		c.Settings = map[string]any{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	settings, err := jsonParam(c.Settings, "{}")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, nullString(c.OrganizationID), c.Name, c.Domain, settings, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var row campaignRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "campaign", id)
	}
	return row.model()
}

func (s *Store) listCampaigns(ctx context.Context, where string, args ...any) ([]model.Campaign, error) {
	var rows []campaignRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+campaignColumns+` FROM campaigns `+where+` ORDER BY created_at DESC`, args...); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	out := make([]model.Campaign, 0, len(rows))
	for _, r := range rows {
		c, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *Store) ListCampaigns(ctx context.Context, orgID string) ([]model.Campaign, error) {
	if orgID == "" {
		return s.listCampaigns(ctx, "")
	}
	return s.listCampaigns(ctx, "WHERE organization_id = $1", orgID)
}

func (s *Store) ListOrphanCampaigns(ctx context.Context) ([]model.Campaign, error) {
	return s.listCampaigns(ctx, "WHERE organization_id IS NULL")
}

func (s *Store) AdoptOrphanCampaigns(ctx context.Context, orgID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET organization_id = $1 WHERE organization_id IS NULL`, orgID)
	if err != nil {
		return 0, fmt.Errorf("adopt orphan campaigns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("adopt orphan campaigns: %w", err)
	}
	return int(n), nil
}

func (s *Store) UpdateCampaign(ctx context.Context, id string, upd model.CampaignUpdate) (*model.Campaign, error) {
	var sets setList
	if upd.Name != nil {
		sets.add("name", *upd.Name)
	}
	if upd.Domain != nil {
		sets.add("domain", *upd.Domain)
	}
	if upd.Settings != nil {
		settings, err := jsonParam(upd.Settings, "{}")
		if err != nil {
			return nil, fmt.Errorf("encode settings: %w", err)
		}
		sets.add("settings", settings)
	}
	if upd.Status != nil {
		sets.add("status", *upd.Status)
	}
	if sets.empty() {
		return s.GetCampaign(ctx, id)
	}

	query, args := sets.update("campaigns", id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update campaign %s: %w", id, err)
	}
	if err := execRequireRows(res, nil, fmt.Errorf("campaign %s: %w", id, store.ErrNotFound)); err != nil {
		return nil, err
	}
	return s.GetCampaign(ctx, id)
}

// setList builds a numbered-placeholder UPDATE.
type setList struct {
	cols []string
	args []any
}

func (l *setList) add(col string, v any) {
	l.args = append(l.args, v)
	l.cols = append(l.cols, fmt.Sprintf("%s = $%d", col, len(l.args)))
}

func (l *setList) empty() bool { return len(l.cols) == 0 }

func (l *setList) update(table, id string) (string, []any) {
	args := append(l.args, id)
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(l.cols, ", "), len(args)), args
}
