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

const taskSelect = `SELECT t.id, t.campaign_id, t.type, t.title, t.description, t.checklist,
        t.assigned_to, t.assigned_role, t.priority, t.status, t.due_date, t.created_at,
        c.name, c.domain
    FROM tasks t LEFT JOIN campaigns c ON c.id = t.campaign_id`

func scanTask(sc interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var checklist string
	var assignedTo, cName, cDomain sql.NullString
	var due sql.NullInt64
	var created int64
	if err := sc.Scan(&t.ID, &t.CampaignID, &t.Type, &t.Title, &t.Description, &checklist,
		&assignedTo, &t.AssignedRole, &t.Priority, &t.Status, &due, &created,
		&cName, &cDomain); err != nil {
		return nil, err
	}
	t.AssignedTo = assignedTo.String
	t.DueDate = timePtr(due)
	t.CreatedAt = fromUnix(created)
	if err := decodeJSON(checklist, &t.Checklist); err != nil {
		return nil, fmt.Errorf("decode task %s checklist: %w", t.ID, err)
	}
	if cName.Valid || cDomain.Valid {
		t.Campaign = &model.CampaignRef{Name: cName.String, Domain: cDomain.String}
	}
	return &t, nil
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
	checklist, err := encodeJSON(t.Checklist, "[]")
	if err != nil {
		return fmt.Errorf("encode checklist: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, campaign_id, type, title, description, checklist,
             assigned_to, assigned_role, priority, status, due_date, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CampaignID, t.Type, t.Title, t.Description, checklist,
		nullString(t.AssignedTo), t.AssignedRole, t.Priority, string(t.Status),
		nullTime(t.DueDate), toUnix(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert task %q: %w", t.Title, err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, taskSelect+` WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error) {
	var where []string
	var args []any
	if f.CampaignID != "" {
		where = append(where, "t.campaign_id = ?")
		args = append(args, f.CampaignID)
	}
	if f.Status != "" {
		where = append(where, "t.status = ?")
		args = append(args, string(f.Status))
	}
	if f.AssignedTo != "" {
		where = append(where, "t.assigned_to = ?")
		args = append(args, f.AssignedTo)
	}

	query := taskSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, id string, upd model.TaskUpdate) (*model.Task, error) {
	var sets []string
	var args []any
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.Checklist != nil {
		checklist, err := encodeJSON(upd.Checklist, "[]")
		if err != nil {
			return nil, fmt.Errorf("encode checklist: %w", err)
		}
		sets = append(sets, "checklist = ?")
		args = append(args, checklist)
	}
	if upd.AssignedTo != nil {
		sets = append(sets, "assigned_to = ?")
		args = append(args, nullString(*upd.AssignedTo))
	}
	if len(sets) == 0 {
		return s.GetTask(ctx, id)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("task %s: %w", id, store.ErrNotFound)
	}
	return s.GetTask(ctx, id)
}
