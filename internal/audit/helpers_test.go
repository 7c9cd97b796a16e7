package audit_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/raysh454/rankdesk/internal/audit"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/store/sqlite"
	"github.com/raysh454/rankdesk/internal/testutil"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "audit.db"), &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testConfig is the default config with a fast, short poll.
func testConfig() audit.Config {
	cfg := audit.DefaultConfig()
	cfg.MaxPollAttempts = 5
	return cfg
}

func page(url string, flags model.IssueFlags) model.PageFinding {
	return model.PageFinding{URL: url, Issues: flags}
}

// examplePages returns ten pages: three without a title and two 4xx, with
// one page in both groups.
func examplePages() []model.PageFinding {
	pages := make([]model.PageFinding, 10)
	for i := range pages {
		pages[i] = page(fmt.Sprintf("https://example.com/p%d", i), model.IssueFlags{})
	}
	pages[1].Issues.NoTitle = true
	pages[4].Issues.NoTitle = true
	pages[7].Issues.NoTitle = true
	pages[7].Issues.Is4xx = true
	pages[8].Issues.Is4xx = true
	return pages
}

func exampleProvider(notReady int) *testutil.FakeProvider {
	return &testutil.FakeProvider{
		TaskID:      "T-example",
		Cost:        0.0125,
		NotReadyFor: notReady,
		SummaryData: model.Summary{"pages_crawled": 10},
		Pages:       examplePages(),
	}
}

// recordingMetrics counts metric events.
type recordingMetrics struct {
	mu       sync.Mutex
	started  int
	finished map[string]int
	tasks    map[audit.Category]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{finished: map[string]int{}, tasks: map[audit.Category]int{}}
}

func (m *recordingMetrics) AuditStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) AuditFinished(status model.AuditStatus, reason model.FailureReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[string(status)+"/"+string(reason)]++
}

func (m *recordingMetrics) TaskCreated(c audit.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[c]++
}

func (m *recordingMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished[key]
}

// memTasks is an in-memory TaskCreator that can be told to reject
// specific titles.
type memTasks struct {
	mu     sync.Mutex
	tasks  []model.Task
	reject func(t *model.Task) bool
}

func (m *memTasks) CreateTask(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reject != nil && m.reject(t) {
		return errors.New("insert rejected")
	}
	t.ID = fmt.Sprintf("task-%d", len(m.tasks)+1)
	m.tasks = append(m.tasks, *t)
	return nil
}

func (m *memTasks) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// flakyStore fails the next N conditional audit writes.
type flakyStore struct {
	*sqlite.Store
	mu              sync.Mutex
	transitionFails int
}

func (f *flakyStore) TransitionAudit(ctx context.Context, a *model.Audit, from model.AuditStatus) (bool, error) {
	f.mu.Lock()
	if f.transitionFails > 0 {
		f.transitionFails--
		f.mu.Unlock()
		return false, errors.New("database is unavailable")
	}
	f.mu.Unlock()
	return f.Store.TransitionAudit(ctx, a, from)
}

func countTasks(t *testing.T, s *sqlite.Store, campaignID string) int {
	t.Helper()
	tasks, err := s.ListTasks(context.Background(), model.TaskFilter{CampaignID: campaignID})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	return len(tasks)
}
