package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/raysh454/rankdesk/internal/model"
)

const auditSelect = `SELECT a.id, a.campaign_id, a.type, a.status, a.dataforseo_task_id, a.domain,
        a.max_pages, a.cost, a.results, a.summary, a.reason, a.error, a.claimed_at,
        a.created_at, a.updated_at, c.name, c.domain
    FROM audits a LEFT JOIN campaigns c ON c.id = a.campaign_id`

func scanAudit(sc interface{ Scan(...any) error }) (*model.Audit, error) {
	var a model.Audit
	var campaignID, cName, cDomain sql.NullString
	var results, summary string
	var claimed sql.NullInt64
	var created, updated int64
	if err := sc.Scan(&a.ID, &campaignID, &a.Type, &a.Status, &a.DataForSEOTaskID, &a.Domain,
		&a.MaxPages, &a.Cost, &results, &summary, &a.Reason, &a.Error, &claimed,
		&created, &updated, &cName, &cDomain); err != nil {
		return nil, err
	}
	a.CampaignID = campaignID.String
	a.ClaimedAt = timePtr(claimed)
	a.CreatedAt = fromUnix(created)
	a.UpdatedAt = fromUnix(updated)
	if err := decodeJSON(results, &a.Results); err != nil {
		return nil, fmt.Errorf("decode audit %s results: %w", a.ID, err)
	}
	if err := decodeJSON(summary, &a.Summary); err != nil {
		return nil, fmt.Errorf("decode audit %s summary: %w", a.ID, err)
	}
	if cName.Valid || cDomain.Valid {
		a.Campaign = &model.CampaignRef{Name: cName.String, Domain: cDomain.String}
	}
	return &a, nil
}

type auditRow struct {
	results string
	summary string
}

func encodeAudit(a *model.Audit) (auditRow, error) {
	results, err := encodeJSON(a.Results, "{}")
	if err != nil {
		return auditRow{}, fmt.Errorf("encode results: %w", err)
	}
	summary, err := encodeJSON(a.Summary, "{}")
	if err != nil {
		return auditRow{}, fmt.Errorf("encode summary: %w", err)
	}
	return auditRow{results: results, summary: summary}, nil
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

	row, err := encodeAudit(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audits (id, campaign_id, type, status, dataforseo_task_id, domain, max_pages,
             cost, results, summary, reason, error, claimed_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             campaign_id = excluded.campaign_id, type = excluded.type, status = excluded.status,
             dataforseo_task_id = excluded.dataforseo_task_id, domain = excluded.domain,
             max_pages = excluded.max_pages, cost = excluded.cost, results = excluded.results,
             summary = excluded.summary, reason = excluded.reason, error = excluded.error,
             claimed_at = NULL, updated_at = excluded.updated_at`,
		a.ID, nullString(a.CampaignID), a.Type, string(a.Status), a.DataForSEOTaskID, a.Domain,
		a.MaxPages, a.Cost, row.results, row.summary, string(a.Reason), a.Error,
		toUnix(a.CreatedAt), toUnix(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save audit %s: %w", a.ID, err)
	}
	a.ClaimedAt = nil
	return nil
}

func (s *Store) GetAudit(ctx context.Context, id string) (*model.Audit, error) {
	row := s.db.QueryRowContext(ctx, auditSelect+` WHERE a.id = ?`, id)
	a, err := scanAudit(row)
	if err != nil {
		return nil, notFound(err, "audit", id)
	}
	return a, nil
}

func (s *Store) ListAudits(ctx context.Context, campaignID string) ([]model.Audit, error) {
	query := auditSelect
	var args []any
	if campaignID != "" {
		query += ` WHERE a.campaign_id = ?`
		args = append(args, campaignID)
	}
	query += ` ORDER BY a.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var out []model.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) TransitionAudit(ctx context.Context, a *model.Audit, from model.AuditStatus) (bool, error) {
	row, err := encodeAudit(a)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	query := `UPDATE audits SET status = ?, dataforseo_task_id = ?, cost = ?, results = ?, summary = ?,
             reason = ?, error = ?, claimed_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`
	args := []any{string(a.Status), a.DataForSEOTaskID, a.Cost, row.results, row.summary,
		string(a.Reason), a.Error, toUnix(now), a.ID, string(from)}
	if a.ClaimedAt != nil {
		query += ` AND claimed_at = ?`
		args = append(args, toUnix(*a.ClaimedAt))
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition audit %s: %w", a.ID, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		a.UpdatedAt = now
		a.ClaimedAt = nil
	}
	return n > 0, nil
}

func (s *Store) ClaimAuditFinalize(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audits SET status = ?, claimed_at = ?, updated_at = ?
         WHERE id = ? AND (status = ? OR (status = ? AND claimed_at < ?))`,
		string(model.AuditFinalizing), toUnix(now), toUnix(now),
		id, string(model.AuditCrawling), string(model.AuditFinalizing), toUnix(staleBefore))
	if err != nil {
		return false, fmt.Errorf("claim audit %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) ReleaseAuditFinalize(ctx context.Context, id string, claimedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE audits SET status = ?, claimed_at = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND claimed_at = ?`,
		string(model.AuditCrawling), toUnix(time.Now()), id, string(model.AuditFinalizing), toUnix(claimedAt))
	if err != nil {
		return fmt.Errorf("release audit %s: %w", id, err)
	}
	return nil
}
