package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/provider"
)

// RunRequest describes one batch audit.
type RunRequest struct {
	Domain string
	Pages  int
	// CampaignID enables persistence. Empty means results are only reported.
	CampaignID string
	// DryRun skips persistence even when CampaignID is set.
	DryRun bool
}

// Runner drives one audit synchronously from submit to completion.
type Runner struct {
	finalizer
	Poller Poller
}

// NewRunner builds a batch runner. st may be nil, in which case nothing is
// persisted regardless of the request.
func NewRunner(cfg Config, p provider.Provider, synth *Synthesizer, st Store, logger logging.Logger, metrics Metrics) *Runner {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Runner{
		finalizer: newFinalizer(cfg, p, synth, st,
			logger.With(logging.Field{Key: "component", Value: "audit-runner"}), metrics),
		Poller: cfg.Poller(),
	}
}

func (r *Runner) Run(ctx context.Context, req RunRequest) Result {
	domain := strings.TrimSpace(req.Domain)
	if domain == "" {
		return failure(model.ReasonSubmitError, "domain is required")
	}
	pages := req.Pages
	if pages <= 0 {
		pages = r.cfg.DefaultPages
	}
	persist := req.CampaignID != "" && !req.DryRun && r.store != nil
	log := r.logger.With(logging.Field{Key: "domain", Value: domain})

	log.Info("starting audit", logging.Field{Key: "pages", Value: pages}, logging.Field{Key: "persist", Value: persist})

	sub, err := r.provider.Submit(ctx, domain, pages)
	if err != nil {
		log.Error("failed to start audit", logging.Err(err))
		r.metrics.AuditFinished(model.AuditFailed, model.ReasonSubmitError)
		return failure(model.ReasonSubmitError, err.Error())
	}
	r.metrics.AuditStarted()
	log = log.With(logging.Field{Key: "task_id", Value: sub.TaskID})
	log.Info("audit started", logging.Field{Key: "cost", Value: fmt.Sprintf("$%.4f", sub.Cost)})

	a := &model.Audit{
		CampaignID:       req.CampaignID,
		Type:             "technical",
		Status:           model.AuditCrawling,
		DataForSEOTaskID: sub.TaskID,
		Domain:           domain,
		MaxPages:         pages,
		Cost:             sub.Cost,
		CreatedAt:        r.Now(),
	}
	if persist {
		if err := r.store.SaveAudit(ctx, a); err != nil {
			log.Error("failed to record audit", logging.Err(err))
			return Result{Error: fmt.Sprintf("save audit: %v", err), TaskID: sub.TaskID, Cost: sub.Cost}
		}
	}

	log.Info("waiting for crawl to complete")
	attempts, ready, err := r.Poller.Wait(ctx,
		func(ctx context.Context) (bool, error) { return r.provider.Status(ctx, sub.TaskID) },
		func(attempt, max int, err error) {
			if err != nil {
				log.Warn("status check failed", logging.Field{Key: "attempt", Value: attempt}, logging.Err(err))
			}
			log.Info(fmt.Sprintf("still crawling... (attempt %d/%d)", attempt, max))
		})
	if err != nil {
		log.Warn("audit interrupted", logging.Err(err))
		return r.result(a, outcome{audit: a, err: fmt.Errorf("audit interrupted: %w", err)})
	}
	if !ready {
		log.Error("timeout waiting for audit", logging.Field{Key: "attempts", Value: attempts})
		if err := r.timeOut(ctx, a, persist); err != nil {
			log.Error("could not record timeout", logging.Err(err))
		}
		res := failure(model.ReasonTimeout, "Audit timeout")
		res.TaskID, res.AuditID, res.Cost = sub.TaskID, a.ID, sub.Cost
		return res
	}
	log.Info("crawl complete", logging.Field{Key: "attempts", Value: attempts})

	out := r.finalize(ctx, a, persist)
	if errors.Is(out.err, ErrNotCrawling) {
		// Someone else (an API read) finalized this audit meanwhile.
		if cur, err := r.store.GetAudit(ctx, a.ID); err == nil && cur.Status == model.AuditCompleted {
			out = outcome{audit: cur}
		}
	}
	return r.result(a, out)
}

func (r *Runner) result(a *model.Audit, out outcome) Result {
	fin := out.audit
	res := Result{
		Success:      out.err == nil && fin.Status == model.AuditCompleted,
		TaskID:       a.DataForSEOTaskID,
		AuditID:      fin.ID,
		Status:       fin.PublicStatus(),
		Summary:      fin.Summary,
		PagesCount:   len(fin.Results.Pages),
		TasksCreated: out.tasksCreated,
		TasksPlanned: out.tasksPlanned,
		Cost:         a.Cost,
	}
	if out.err != nil {
		res.Error = out.err.Error()
		res.Reason = fin.Reason
	}
	return res
}
