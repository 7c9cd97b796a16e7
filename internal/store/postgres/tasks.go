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

const taskSelect = `SELECT t.id, t.campaign_id, t.type, t.title, t.description, t.checklist,
	t.assigned_to, t.assigned_role, t.priority, t.status, t.due_date, t.created_at,
	c.name AS campaign_name, c.domain AS campaign_domain
	FROM tasks t LEFT JOIN campaigns c ON c.id = t.campaign_id`

type taskRow struct {
	ID             string         `db:"id"`
	CampaignID     string         `db:"campaign_id"`
	Type           string         `db:"type"`
	Title          string         `db:"title"`
	Description    sql.NullString `db:"description"`
	Checklist      []byte         `db:"checklist"`
	AssignedTo     sql.NullString `db:"assigned_to"`
	AssignedRole   sql.NullString `db:"assigned_role"`
	Priority       int            `db:"priority"`
	Status         string         `db:"status"`
	DueDate        sql.NullTime   `db:"due_date"`
	CreatedAt      time.Time      `db:"created_at"`
	CampaignName   sql.NullString `db:"campaign_name"`
	CampaignDomain sql.NullString `db:"campaign_domain"`
}

func (r taskRow) model() (*model.Task, error) {
	t := &model.Task{
		ID:           r.ID,
		CampaignID:   r.CampaignID,
		Type:         r.Type,
		Title:        r.Title,
		Description:  r.Description.String,
		Checklist:    []model.ChecklistItem{},
		AssignedTo:   r.AssignedTo.String,
		AssignedRole: r.AssignedRole.String,
		Priority:     r.Priority,
		Status:       model.TaskStatus(r.Status),
		DueDate:      timePtr(r.DueDate),
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if err := decodeJSON(r.Checklist, &t.Checklist); err != nil {
		return nil, fmt.Errorf("decode task %s checklist: %w", r.ID, err)
	}
	if r.CampaignName.Valid || r.CampaignDomain.Valid {
		t.Campaign = &model.CampaignRef{Name: r.CampaignName.String, Domain: r.CampaignDomain.String}
	}
	return t, nil
}

func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Status == "" {
		t.Status = model.TaskPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Checklist == nil {
		t.Checklist = []model.ChecklistItem{}
	}
	checklist, err := jsonParam(t.Checklist, "[]")
	if err != nil {
		return fmt.Errorf("encode checklist: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, campaign_id, type, title, description, checklist,
			assigned_to, assigned_role, priority, status, due_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.CampaignID, t.Type, t.Title, t.Description, checklist,
		nullString(t.AssignedTo), t.AssignedRole, t.Priority, string(t.Status),
		nullTime(t.DueDate), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task %q: %w", t.Title, err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var row taskRow
	if err := s.db.GetContext(ctx, &row, taskSelect+` WHERE t.id = $1`, id); err != nil {
		return nil, notFound(err, "task", id)
	}
	return row.model()
}

func (s *Store) ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CampaignID != "" {
		add("t.campaign_id = $%d", f.CampaignID)
	}
	if f.Status != "" {
		add("t.status = $%d", string(f.Status))
	}
	if f.AssignedTo != "" {
		add("t.assigned_to = $%d", f.AssignedTo)
	}

	query := taskSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.created_at DESC"

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	out := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.model()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *Store) UpdateTask(ctx context.Context, id string, upd model.TaskUpdate) (*model.Task, error) {
	var sets setList
	if upd.Status != nil {
		sets.add("status", string(*upd.Status))
	}
	if upd.Checklist != nil {
		checklist, err := jsonParam(upd.Checklist, "[]")
		if err != nil {
			return nil, fmt.Errorf("encode checklist: %w", err)
		}
		sets.add("checklist", checklist)
	}
	if upd.AssignedTo != nil {
		sets.add("assigned_to", nullString(*upd.AssignedTo))
	}
	if sets.empty() {
		return s.GetTask(ctx, id)
	}

	query, args := sets.update("tasks", id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	if err := execRequireRows(res, nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}
