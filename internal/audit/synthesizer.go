package audit

import (
	"context"
	"fmt"

	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
)

// TaskCreator persists one task, assigning its ID.
type TaskCreator interface {
	CreateTask(ctx context.Context, t *model.Task) error
}

// Synthesizer turns page findings into one task per non-empty category.
type Synthesizer struct {
	templates      Templates
	checklistLimit int
	tasks          TaskCreator
	logger         logging.Logger
	metrics        Metrics
}

func NewSynthesizer(templates Templates, checklistLimit int, tasks TaskCreator, logger logging.Logger, metrics Metrics) *Synthesizer {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Synthesizer{
		templates:      templates,
		checklistLimit: checklistLimit,
		tasks:          tasks,
		logger:         logger.With(logging.Field{Key: "component", Value: "synthesizer"}),
		metrics:        metrics,
	}
}

func (s *Synthesizer) task(campaignID string, b Bucket) model.Task {
	tpl := s.templates[b.Category]
	if tpl.Type == "" {
		tpl.Type = "technical"
	}
	if tpl.Role == "" {
		tpl.Role = "optimization_specialist"
	}

	urls := b.URLs
	if s.checklistLimit > 0 && len(urls) > s.checklistLimit {
		urls = urls[:s.checklistLimit]
	}
	checklist := make([]model.ChecklistItem, len(urls))
	for i, u := range urls {
		checklist[i] = model.ChecklistItem{Item: u}
	}

	return model.Task{
		CampaignID:   campaignID,
		Type:         tpl.Type,
		Title:        fmt.Sprintf("%s (%d pages)", tpl.Title, len(b.URLs)),
		Description:  tpl.Description,
		Checklist:    checklist,
		AssignedRole: tpl.Role,
		Priority:     tpl.Priority,
		Status:       model.TaskPending,
	}
}

// Build returns the tasks pages would produce without persisting them.
func (s *Synthesizer) Build(campaignID string, pages []model.PageFinding) []model.Task {
	buckets := Group(pages)
	out := make([]model.Task, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, s.task(campaignID, b))
	}
	return out
}

// Synthesize persists the tasks pages produce. A task that fails to persist
// is logged and skipped. Only a done context aborts the run.
func (s *Synthesizer) Synthesize(ctx context.Context, campaignID string, pages []model.PageFinding) ([]model.Task, error) {
	if s.tasks == nil {
		return nil, fmt.Errorf("synthesizer has no task store")
	}

	var created []model.Task
	for _, b := range Group(pages) {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		t := s.task(campaignID, b)
		if err := s.tasks.CreateTask(ctx, &t); err != nil {
			s.logger.Error("error creating task",
				logging.Field{Key: "category", Value: string(b.Category)},
				logging.Field{Key: "campaign_id", Value: campaignID},
				logging.Err(err))
			continue
		}
		s.metrics.TaskCreated(b.Category)
		created = append(created, t)
	}
	return created, nil
}
