package sqlite

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

func (s *Store) CreateOrganization(ctx context.Context, org *model.Organization) error {
	if org.ID == "" {
		org.ID = newID()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, slug, owner_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Slug, org.OwnerID, toUnix(org.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("insert organization %s: %w", org.Slug, store.ErrConflict)
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *Store) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, slug, owner_id, created_at FROM organizations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []model.Organization
	for rows.Next() {
		var o model.Organization
		var created int64
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.OwnerID, &created); err != nil {
			return nil, err
		}
		o.CreatedAt = fromUnix(created)
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- profiles ---

const profileColumns = `id, email, full_name, role, organization_id`

func scanProfile(sc interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var org sql.NullString
	if err := sc.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &org); err != nil {
		return nil, err
	}
	p.OrganizationID = org.String
	return &p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, notFound(err, "profile", id)
	}
	return p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p *model.Profile) error {
	if p.Role == "" {
		p.Role = "viewer"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, role, organization_id) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET email = excluded.email, full_name = excluded.full_name`,
		p.ID, p.Email, p.FullName, p.Role, nullString(p.OrganizationID))
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) SetProfileOrganization(ctx context.Context, userID, orgID, role string) (*model.Profile, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET organization_id = ?, role = ? WHERE id = ?`,
		nullString(orgID), role, userID)
	if err != nil {
		return nil, fmt.Errorf("update profile %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("profile %s: %w", userID, store.ErrNotFound)
	}
	return s.GetProfile(ctx, userID)
}

func (s *Store) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// --- campaigns ---

const campaignColumns = `id, organization_id, name, domain, settings, status, created_at`

func scanCampaign(sc interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	var org sql.NullString
	var settings string
	var created int64
	if err := sc.Scan(&c.ID, &org, &c.Name, &c.Domain, &settings, &c.Status, &created); err != nil {
		return nil, err
	}
	c.OrganizationID = org.String
	c.CreatedAt = fromUnix(created)
	c.Settings = map[string]any{}
	if err := decodeJSON(settings, &c.Settings); err != nil {
		return nil, fmt.Errorf("decode campaign %s settings: %w", c.ID, err)
	}
	return &c, nil
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
	settings, err := encodeJSON(c.Settings, "{}")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (`+campaignColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nullString(c.OrganizationID), c.Name, c.Domain, settings, c.Status, toUnix(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
	c, err := scanCampaign(row)
	if err != nil {
		return nil, notFound(err, "campaign", id)
	}
	return c, nil
}

func (s *Store) listCampaigns(ctx context.Context, where string, args ...any) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) ListCampaigns(ctx context.Context, orgID string) ([]model.Campaign, error) {
	if orgID == "" {
		return s.listCampaigns(ctx, "")
	}
	return s.listCampaigns(ctx, "WHERE organization_id = ?", orgID)
}

func (s *Store) ListOrphanCampaigns(ctx context.Context) ([]model.Campaign, error) {
	return s.listCampaigns(ctx, "WHERE organization_id IS NULL OR organization_id = ''")
}

func (s *Store) AdoptOrphanCampaigns(ctx context.Context, orgID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET organization_id = ? WHERE organization_id IS NULL OR organization_id = ''`,
		orgID)
	if err != nil {
		return 0, fmt.Errorf("adopt orphan campaigns: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) UpdateCampaign(ctx context.Context, id string, upd model.CampaignUpdate) (*model.Campaign, error) {
	var sets []string
	var args []any
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Domain != nil {
		sets = append(sets, "domain = ?")
		args = append(args, *upd.Domain)
	}
	if upd.Settings != nil {
		settings, err := encodeJSON(upd.Settings, "{}")
		if err != nil {
			return nil, fmt.Errorf("encode settings: %w", err)
		}
		sets = append(sets, "settings = ?")
		args = append(args, settings)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if len(sets) == 0 {
		return s.GetCampaign(ctx, id)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update campaign %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("campaign %s: %w", id, store.ErrNotFound)
	}
	return s.GetCampaign(ctx, id)
}
