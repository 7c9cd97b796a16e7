package audit

import "github.com/raysh454/rankdesk/internal/model"

// Metrics receives audit lifecycle counters.
type Metrics interface {
	AuditStarted()
	AuditFinished(status model.AuditStatus, reason model.FailureReason)
	TaskCreated(category Category)
}

type nopMetrics struct{}

func (nopMetrics) AuditStarted()                                        {}
func (nopMetrics) AuditFinished(model.AuditStatus, model.FailureReason) {}
func (nopMetrics) TaskCreated(Category)                                 {}
