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

// ServiceStore is the persistence the interactive service needs.
type ServiceStore interface {
	Store
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
}

// SubmitError reports that the provider refused a new audit. Nothing is
// persisted when it is returned.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return "failed to start audit: " + e.Err.Error() }
func (e *SubmitError) Unwrap() error { return e.Err }

// StartRequest starts an audit for a campaign's domain.
type StartRequest struct {
	CampaignID string `json:"campaign_id"`
	Type       string `json:"type"`
	MaxPages   int    `json:"max_pages"`
}

// Service starts audits on behalf of API callers and finalizes them lazily
// when they are read.
type Service struct {
	finalizer
	campaigns ServiceStore
}

func NewService(cfg Config, p provider.Provider, synth *Synthesizer, st ServiceStore, logger logging.Logger, metrics Metrics) *Service {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Service{
		finalizer: newFinalizer(cfg, p, synth, st,
			logger.With(logging.Field{Key: "component", Value: "audit-service"}), metrics),
		campaigns: st,
	}
}

// Start submits a crawl for the campaign's domain and records the audit as
// crawling.
func (s *Service) Start(ctx context.Context, req StartRequest) (*model.Audit, error) {
	if strings.TrimSpace(req.CampaignID) == "" {
		return nil, fmt.Errorf("campaign_id is required")
	}
	c, err := s.campaigns.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign %s: %w", req.CampaignID, err)
	}
	typ := req.Type
	if typ == "" {
		typ = "technical"
	}
	pages := req.MaxPages
	if pages <= 0 {
		pages = s.cfg.DefaultPages
	}

	log := s.logger.With(
		logging.Field{Key: "campaign_id", Value: c.ID},
		logging.Field{Key: "domain", Value: c.Domain})

	sub, err := s.provider.Submit(ctx, c.Domain, pages)
	if err != nil {
		log.Error("failed to start audit", logging.Err(err))
		s.metrics.AuditFinished(model.AuditFailed, model.ReasonSubmitError)
		return nil, &SubmitError{Err: err}
	}
	s.metrics.AuditStarted()

	a := &model.Audit{
		CampaignID:       c.ID,
		Type:             typ,
		Status:           model.AuditCrawling,
		DataForSEOTaskID: sub.TaskID,
		Domain:           c.Domain,
		MaxPages:         pages,
		Cost:             sub.Cost,
		Results:          model.AuditResults{Summary: model.Summary{}, Pages: []model.PageFinding{}},
		Summary:          model.Summary{},
		CreatedAt:        s.Now(),
	}
	if err := s.store.SaveAudit(ctx, a); err != nil {
		return nil, fmt.Errorf("record audit: %w", err)
	}
	a.Campaign = &model.CampaignRef{Name: c.Name, Domain: c.Domain}
	log.Info("audit started",
		logging.Field{Key: "audit_id", Value: a.ID},
		logging.Field{Key: "task_id", Value: sub.TaskID})
	return a, nil
}

// Refresh returns the audit, first finalizing it when its crawl is done.
// Provider and store trouble during the check is logged and the last
// persisted state is returned, so a later read can retry.
func (s *Service) Refresh(ctx context.Context, id string) (*model.Audit, error) {
	a, err := s.store.GetAudit(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() || a.DataForSEOTaskID == "" {
		return a, nil
	}
	now := s.Now()
	if a.Status == model.AuditFinalizing && a.ClaimedAt != nil && now.Sub(*a.ClaimedAt) < s.cfg.FinalizeLease {
		return a, nil
	}

	log := s.logger.With(
		logging.Field{Key: "audit_id", Value: a.ID},
		logging.Field{Key: "task_id", Value: a.DataForSEOTaskID})

	ready, err := s.provider.Status(ctx, a.DataForSEOTaskID)
	if err != nil {
		log.Warn("status check failed", logging.Err(err))
		return a, nil
	}
	if !ready {
		if now.Sub(a.CreatedAt) > s.cfg.CrawlDeadline() {
			log.Error("timeout waiting for audit")
			if err := s.timeOut(ctx, a, true); err != nil {
				log.Warn("could not record timeout", logging.Err(err))
				return s.reload(ctx, a)
			}
		}
		return a, nil
	}

	out := s.finalize(ctx, a, true)
	switch {
	case out.err == nil:
		log.Info("audit finalized", logging.Field{Key: "tasks", Value: out.tasksCreated})
	case errors.Is(out.err, ErrNotCrawling):
		return s.reload(ctx, a)
	default:
		log.Warn("audit not finalized", logging.Err(out.err))
	}
	return out.audit, nil
}

func (s *Service) reload(ctx context.Context, a *model.Audit) (*model.Audit, error) {
	cur, err := s.store.GetAudit(ctx, a.ID)
	if err != nil {
		return a, nil
	}
	return cur, nil
}
