// Package provider defines the contract with third-party crawl-and-audit
// services. Concrete clients live in sub-packages.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/raysh454/rankdesk/internal/model"
)

// Submission is the provider's acknowledgement of a new crawl job.
type Submission struct {
	TaskID string
	Cost   float64
}

// Provider submits a domain crawl and later serves its results.
type Provider interface {
	Submit(ctx context.Context, domain string, maxPages int) (*Submission, error)
	// Status reports whether the crawl identified by taskID has finished.
	Status(ctx context.Context, taskID string) (bool, error)
	Summary(ctx context.Context, taskID string) (model.Summary, error)
	// Findings returns at most limit per-page results.
	Findings(ctx context.Context, taskID string, limit int) ([]model.PageFinding, error)
}

// RankOverview serves domain-level ranking metrics.
type RankOverview interface {
	DomainOverview(ctx context.Context, domain string) (map[string]any, error)
}

// ErrUnknownTask is returned when a provider has no record of a task id.
var ErrUnknownTask = errors.New("unknown task")

// APIError is a request the provider answered but rejected.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}
