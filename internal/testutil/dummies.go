// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/provider"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorCount returns the number of recorded error lines.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// ─── Provider ──────────────────────────────────────────────────────────

// FakeProvider implements provider.Provider with scripted answers.
// Status returns NotReadyFor false answers before reporting ready.
// Every call is counted so tests can assert on provider traffic.
type FakeProvider struct {
	TaskID      string
	Cost        float64
	NotReadyFor int
	SummaryData model.Summary
	Pages       []model.PageFinding
	Overviews   map[string]map[string]any

	SubmitErr   error
	StatusErr   error
	SummaryErr  error
	FindingsErr error
	OverviewErr error

	mu            sync.Mutex
	Submits       int
	StatusCalls   int
	SummaryCalls  int
	FindingsCalls int
	LastLimit     int
	OverviewCalls []string
}

func (f *FakeProvider) Submit(_ context.Context, domain string, maxPages int) (*provider.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Submits++
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	id := f.TaskID
	if id == "" {
		id = fmt.Sprintf("fake-%s-%d", domain, f.Submits)
	}
	return &provider.Submission{TaskID: id, Cost: f.Cost}, nil
}

func (f *FakeProvider) Status(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatusCalls++
	if f.StatusErr != nil {
		return false, f.StatusErr
	}
	return f.StatusCalls > f.NotReadyFor, nil
}

func (f *FakeProvider) Summary(_ context.Context, _ string) (model.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SummaryCalls++
	if f.SummaryErr != nil {
		return nil, f.SummaryErr
	}
	if f.SummaryData == nil {
		return model.Summary{}, nil
	}
	return f.SummaryData, nil
}

func (f *FakeProvider) Findings(_ context.Context, _ string, limit int) ([]model.PageFinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FindingsCalls++
	f.LastLimit = limit
	if f.FindingsErr != nil {
		return nil, f.FindingsErr
	}
	pages := f.Pages
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	return append([]model.PageFinding(nil), pages...), nil
}

func (f *FakeProvider) DomainOverview(_ context.Context, domain string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OverviewCalls = append(f.OverviewCalls, domain)
	if f.OverviewErr != nil {
		return nil, f.OverviewErr
	}
	if o, ok := f.Overviews[domain]; ok {
		return o, nil
	}
	return map[string]any{"domain": domain}, nil
}

// Calls returns a snapshot of the call counters.
func (f *FakeProvider) Calls() (submits, status, summary, findings int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Submits, f.StatusCalls, f.SummaryCalls, f.FindingsCalls
}

// ─── Clock ─────────────────────────────────────────────────────────────

// NoSleep records requested sleeps without blocking. It satisfies the
// poller's Sleep hook.
type NoSleep struct {
	mu    sync.Mutex
	Slept []time.Duration
}

func (s *NoSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Slept = append(s.Slept, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Count returns how many sleeps were requested.
func (s *NoSleep) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Slept)
}
