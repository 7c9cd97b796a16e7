package model

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// ChecklistItem is one line of a task checklist, usually an affected URL.
type ChecklistItem struct {
	Item      string `json:"item"`
	Completed bool   `json:"completed"`
}

// Task is one work item assigned to a human role.
type Task struct {
	ID           string          `json:"id,omitempty"`
	CampaignID   string          `json:"campaign_id"`
	Type         string          `json:"type"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Checklist    []ChecklistItem `json:"checklist"`
	AssignedTo   string          `json:"assigned_to,omitempty"`
	AssignedRole string          `json:"assigned_role"`
	Priority     int             `json:"priority"`
	Status       TaskStatus      `json:"status"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`

	Campaign *CampaignRef `json:"campaigns,omitempty"`
}

// TaskFilter narrows task listings. Empty fields do not filter.
type TaskFilter struct {
	CampaignID string
	Status     TaskStatus
	AssignedTo string
}

// TaskUpdate carries the mutable task fields; nil means unchanged.
type TaskUpdate struct {
	Status     *TaskStatus
	Checklist  []ChecklistItem
	AssignedTo *string
}
