package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/raysh454/rankdesk/internal/model"
)

const auditSelect = `SELECT a.id, a.campaign_id, a.type, a.status, a.dataforseo_task_id, a.domain,
	a.max_pages, a.cost, a.results, a.summary, a.reason, a.error, a.claimed_at,
	a.created_at, a.updated_at, c.name AS campaign_name, c.domain AS campaign_domain
	FROM audits a LEFT JOIN campaigns c ON c.id = a.campaign_id`

type auditRow struct {
	ID             string         `db:"id"`
	CampaignID     sql.NullString `db:"campaign_id"`
	Type           string         `db:"type"`
	Status         string         `db:"status"`
	TaskID         sql.NullString `db:"dataforseo_task_id"`
	Domain         string         `db:"domain"`
	MaxPages       int            `db:"max_pages"`
	Cost           float64        `db:"cost"`
	Results        []byte         `db:"results"`
	Summary        []byte         `db:"summary"`
	Reason         string         `db:"reason"`
	Error          string         `db:"error"`
	ClaimedAt      sql.NullTime   `db:"claimed_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	CampaignName   sql.NullString `db:"campaign_name"`
	CampaignDomain sql.NullString `db:"campaign_domain"`
}

func (r auditRow) model() (*model.Audit, error) {
	a := &model.Audit{
		ID:               r.ID,
		CampaignID:       r.CampaignID.String,
		Type:             r.Type,
		Status:           model.AuditStatus(r.Status),
		DataForSEOTaskID: r.TaskID.String,
		Domain:           r.Domain,
		MaxPages:         r.MaxPages,
		Cost:             r.Cost,
		Reason:           model.FailureReason(r.Reason),
		Error:            r.Error,
		ClaimedAt:        timePtr(r.ClaimedAt),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
	if err := decodeJSON(r.Results, &a.Results); err != nil {
		return nil, fmt.Errorf("decode audit %s results: %w", r.ID, err)
	}
	if err := decodeJSON(r.Summary, &a.Summary); err != nil {
		return nil, fmt.Errorf("decode audit %s summary: %w", r.ID, err)
	}
	if r.CampaignName.Valid || r.CampaignDomain.Valid {
		a.Campaign = &model.CampaignRef{Name: r.CampaignName.String, Domain: r.CampaignDomain.String}
	}
	return a, nil
}

func auditDocs(a *model.Audit) (results, summary string, err error) {
	if results, err = jsonParam(a.Results, "{}"); err != nil {
		return "", "", fmt.Errorf("encode results: %w", err)
	}
	if summary, err = jsonParam(a.Summary, "{}"); err != nil {
		return "", "", fmt.Errorf("encode summary: %w", err)
	}
	return results, summary, nil
}

func (s *Store) SaveAudit(ctx context.Context, a *model.Audit) error {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = newID()
	}
	if a.Type == "" {
		a.Type = "technical"
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	results, summary, err := auditDocs(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audits (id, campaign_id, type, status, dataforseo_task_id, domain, max_pages,
			cost, results, summary, reason, error, claimed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULL, $13, $14)
		 ON CONFLICT (id) DO UPDATE SET
			campaign_id = EXCLUDED.campaign_id, type = EXCLUDED.type, status = EXCLUDED.status,
			dataforseo_task_id = EXCLUDED.dataforseo_task_id, domain = EXCLUDED.domain,
			max_pages = EXCLUDED.max_pages, cost = EXCLUDED.cost, results = EXCLUDED.results,
			summary = EXCLUDED.summary, reason = EXCLUDED.reason, error = EXCLUDED.error,
			claimed_at = NULL, updated_at = EXCLUDED.updated_at`,
		a.ID, nullString(a.CampaignID), a.Type, string(a.Status), nullString(a.DataForSEOTaskID),
		a.Domain, a.MaxPages, a.Cost, results, summary, string(a.Reason), a.Error,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save audit %s: %w", a.ID, err)
	}
	a.ClaimedAt = nil
	return nil
}

func (s *Store) GetAudit(ctx context.Context, id string) (*model.Audit, error) {
	var row auditRow
	if err := s.db.GetContext(ctx, &row, auditSelect+` WHERE a.id = $1`, id); err != nil {
		return nil, notFound(err, "audit", id)
	}
	return row.model()
}

func (s *Store) ListAudits(ctx context.Context, campaignID string) ([]model.Audit, error) {
	query := auditSelect
	var args []any
	if campaignID != "" {
		query += ` WHERE a.campaign_id = $1`
		args = append(args, campaignID)
	}
	query += ` ORDER BY a.created_at DESC`

	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	out := make([]model.Audit, 0, len(rows))
	for _, r := range rows {
		a, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *Store) TransitionAudit(ctx context.Context, a *model.Audit, from model.AuditStatus) (bool, error) {
	results, summary, err := auditDocs(a)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	query := `UPDATE audits SET status = $1, dataforseo_task_id = $2, cost = $3, results = $4, summary = $5,
			reason = $6, error = $7, claimed_at = NULL, updated_at = $8
		 WHERE id = $9 AND status = $10`
	args := []any{string(a.Status), nullString(a.DataForSEOTaskID), a.Cost, results, summary,
		string(a.Reason), a.Error, now, a.ID, string(from)}
	if a.ClaimedAt != nil {
		query += ` AND claimed_at = $11`
		args = append(args, *a.ClaimedAt)
	}
	ok, err := affected(s.db.ExecContext(ctx, query, args...))
	if err != nil {
		return false, fmt.Errorf("transition audit %s: %w", a.ID, err)
	}
	if ok {
		a.UpdatedAt = now
		a.ClaimedAt = nil
	}
	return ok, nil
}

func (s *Store) ClaimAuditFinalize(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	ok, err := affected(s.db.ExecContext(ctx,
		`UPDATE audits SET status = $1, claimed_at = $2, updated_at = $2
		 WHERE id = $3 AND (status = $4 OR (status = $1 AND claimed_at < $5))`,
		string(model.AuditFinalizing), now, id, string(model.AuditCrawling), staleBefore))
	if err != nil {
		return false, fmt.Errorf("claim audit %s: %w", id, err)
	}
	return ok, nil
}

func (s *Store) ReleaseAuditFinalize(ctx context.Context, id string, claimedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE audits SET status = $1, claimed_at = NULL, updated_at = NOW()
		 WHERE id = $2 AND status = $3 AND claimed_at = $4`,
		string(model.AuditCrawling), id, string(model.AuditFinalizing), claimedAt)
	if err != nil {
		return fmt.Errorf("release audit %s: %w", id, err)
	}
	return nil
}
