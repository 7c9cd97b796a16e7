package audit

import "github.com/raysh454/rankdesk/internal/model"

// Result is the structured outcome of one audit run. Failures never escape
// the runner as errors; they are reported here.
type Result struct {
	Success      bool                `json:"success"`
	Error        string              `json:"error,omitempty"`
	Reason       model.FailureReason `json:"reason,omitempty"`
	TaskID       string              `json:"task_id,omitempty"`
	AuditID      string              `json:"audit_id,omitempty"`
	Status       model.AuditStatus   `json:"status,omitempty"`
	Summary      model.Summary       `json:"summary,omitempty"`
	PagesCount   int                 `json:"pages_count"`
	TasksCreated int                 `json:"tasks_created"`
	TasksPlanned int                 `json:"tasks_planned,omitempty"`
	Cost         float64             `json:"cost,omitempty"`
}

func failure(reason model.FailureReason, msg string) Result {
	return Result{Success: false, Error: msg, Reason: reason, Status: model.AuditFailed}
}
