package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/provider"
	"github.com/raysh454/rankdesk/internal/store"
)

// ErrNotCrawling is returned when another caller holds or has completed the
// finalize step for an audit.
var ErrNotCrawling = errors.New("audit is not crawling")

// Store is the persistence the orchestrator writes through.
type Store interface {
	TaskCreator
	store.Audits
}

// finalizer runs the fetch, synthesize and persist steps shared by the batch
// runner and the on-read refresh.
type finalizer struct {
	cfg      Config
	provider provider.Provider
	synth    *Synthesizer
	store    Store
	logger   logging.Logger
	metrics  Metrics

	// Now is the clock used for claims and crawl deadlines.
	Now func() time.Time
}

type outcome struct {
	audit        *model.Audit
	tasksCreated int
	tasksPlanned int
	err          error
}

func newFinalizer(cfg Config, p provider.Provider, synth *Synthesizer, st Store, logger logging.Logger, metrics Metrics) finalizer {
	if logger == nil {
		logger = logging.Nop{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return finalizer{
		cfg:      cfg,
		provider: p,
		synth:    synth,
		store:    st,
		logger:   logger,
		metrics:  metrics,
		Now:      time.Now,
	}
}

// finalize fetches results for a ready crawl and completes a. With persist
// set it first claims the audit, so at most one caller synthesizes tasks.
// On return a reflects the persisted state: completed, failed, or crawling
// when the attempt was abandoned and may be retried.
func (f *finalizer) finalize(ctx context.Context, a *model.Audit, persist bool) outcome {
	log := f.logger.With(
		logging.Field{Key: "audit_id", Value: a.ID},
		logging.Field{Key: "task_id", Value: a.DataForSEOTaskID})

	if persist {
		// Claims are compared on write; keep them at a precision every store
		// round-trips.
		now := f.Now().UTC().Truncate(time.Microsecond)
		won, err := f.store.ClaimAuditFinalize(ctx, a.ID, now, now.Add(-f.cfg.FinalizeLease))
		if err != nil {
			return outcome{audit: a, err: fmt.Errorf("claim finalize: %w", err)}
		}
		if !won {
			log.Debug("finalize already claimed")
			return outcome{audit: a, err: ErrNotCrawling}
		}
		a.Status = model.AuditFinalizing
		a.ClaimedAt = &now
		// A won claim runs to completion or release even if the caller goes
		// away; an abandoned synthesis would be repeated by the next check.
		ctx = context.WithoutCancel(ctx)
	}

	log.Info("fetching audit summary")
	summary, err := f.provider.Summary(ctx, a.DataForSEOTaskID)
	if err != nil {
		return f.fail(ctx, log, a, persist, err)
	}

	log.Info("fetching page issues", logging.Field{Key: "limit", Value: f.cfg.FindingsLimit})
	pages, err := f.provider.Findings(ctx, a.DataForSEOTaskID, f.cfg.FindingsLimit)
	if err != nil {
		return f.fail(ctx, log, a, persist, err)
	}
	if pages == nil {
		pages = []model.PageFinding{}
	}
	log.Info("got pages", logging.Field{Key: "pages", Value: len(pages)})

	if summary == nil {
		summary = model.Summary{}
	}
	a.Summary = summary
	a.Results = model.AuditResults{Summary: summary, Pages: pages}
	out := outcome{audit: a}

	if persist && a.CampaignID != "" {
		created, err := f.synth.Synthesize(ctx, a.CampaignID, pages)
		out.tasksCreated = len(created)
		if err != nil {
			return f.release(ctx, log, out, fmt.Errorf("synthesize tasks: %w", err))
		}
		log.Info("created tasks", logging.Field{Key: "tasks", Value: len(created)})
	} else {
		out.tasksPlanned = len(f.synth.Build(a.CampaignID, pages))
	}

	a.Status = model.AuditCompleted
	a.Reason = model.ReasonNone
	a.Error = ""
	if persist {
		ok, err := f.store.TransitionAudit(ctx, a, model.AuditFinalizing)
		if err != nil {
			return f.release(ctx, log, out, fmt.Errorf("save completed audit: %w", err))
		}
		if !ok {
			// The claim expired and another caller took the audit over.
			log.Warn("finalize claim lost before completion")
			a.Status = model.AuditCrawling
			a.ClaimedAt = nil
			out.err = ErrNotCrawling
			return out
		}
		log.Info("saved audit to database")
	}

	f.metrics.AuditFinished(model.AuditCompleted, model.ReasonNone)
	return out
}

// fail records a provider fetch error. A cancelled context is not a provider
// failure. Only unpersisted runs can see one; a claimed run is detached.
func (f *finalizer) fail(ctx context.Context, log logging.Logger, a *model.Audit, persist bool, cause error) outcome {
	if ctx.Err() != nil {
		return outcome{audit: a, err: cause}
	}

	log.Error("provider fetch failed", logging.Err(cause))
	a.Status = model.AuditFailed
	a.Reason = model.ReasonProviderError
	a.Error = cause.Error()

	if persist {
		ok, err := f.store.TransitionAudit(context.WithoutCancel(ctx), a, model.AuditFinalizing)
		if err != nil || !ok {
			if err == nil {
				err = ErrNotCrawling
			}
			a.Reason = model.ReasonNone
			a.Error = ""
			return f.release(ctx, log, outcome{audit: a}, fmt.Errorf("save failed audit: %w", err))
		}
	}
	f.metrics.AuditFinished(model.AuditFailed, model.ReasonProviderError)
	return outcome{audit: a, err: cause}
}

// release hands the audit back to crawling so a later check can retry.
func (f *finalizer) release(ctx context.Context, log logging.Logger, out outcome, cause error) outcome {
	log.Error("finalize abandoned, audit left crawling", logging.Err(cause))
	if claim := out.audit.ClaimedAt; claim != nil {
		if err := f.store.ReleaseAuditFinalize(context.WithoutCancel(ctx), out.audit.ID, *claim); err != nil {
			log.Error("release finalize claim", logging.Err(err))
		}
	}
	out.audit.Status = model.AuditCrawling
	out.audit.ClaimedAt = nil
	out.err = cause
	return out
}

// timeOut marks a crawling audit failed with the timeout reason.
func (f *finalizer) timeOut(ctx context.Context, a *model.Audit, persist bool) error {
	a.Status = model.AuditFailed
	a.Reason = model.ReasonTimeout
	a.Error = "Audit timeout"
	if persist {
		ok, err := f.store.TransitionAudit(context.WithoutCancel(ctx), a, model.AuditCrawling)
		if err != nil {
			return fmt.Errorf("save timed out audit: %w", err)
		}
		if !ok {
			return ErrNotCrawling
		}
	}
	f.metrics.AuditFinished(model.AuditFailed, model.ReasonTimeout)
	return nil
}
