// Package crawl is a provider.Provider that audits a site by crawling it
// directly instead of calling a hosted service.
package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/rankdesk/internal/enumerator"
	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/provider"
	"github.com/raysh454/rankdesk/internal/utils"
	"github.com/raysh454/rankdesk/internal/webclient"
)

type Config struct {
	MaxDepth      int           `yaml:"max_depth"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	MinWords      int           `yaml:"min_words"`
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:      5,
		SlowThreshold: 3 * time.Second,
		MinWords:      300,
	}
}

type job struct {
	domain  string
	done    bool
	err     error
	pages   []model.PageFinding
	summary model.Summary
}

var _ provider.Provider = (*Provider)(nil)

type Provider struct {
	cfg    Config
	wc     webclient.WebClient
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	jobsMu sync.Mutex
	jobs   map[string]*job
}

func New(cfg Config, wc webclient.WebClient, logger logging.Logger) *Provider {
	if logger == nil {
		logger = logging.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		cfg:    cfg,
		wc:     wc,
		logger: logger.With(logging.Field{Key: "component", Value: "crawl-provider"}),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}
}

// Submit starts a background crawl. It outlives ctx; Close stops it.
func (p *Provider) Submit(_ context.Context, domain string, maxPages int) (*provider.Submission, error) {
	root, err := utils.SiteRoot(domain)
	if err != nil {
		return nil, fmt.Errorf("crawl root for %q: %w", domain, err)
	}

	id := uuid.New().String()
	p.jobsMu.Lock()
	p.jobs[id] = &job{domain: domain}
	p.jobsMu.Unlock()

	p.wg.Add(1)
	go p.run(id, root, maxPages)

	p.logger.Info("crawl submitted",
		logging.Field{Key: "task_id", Value: id},
		logging.Field{Key: "root", Value: root},
		logging.Field{Key: "max_pages", Value: maxPages})
	return &provider.Submission{TaskID: id}, nil
}

func (p *Provider) run(id, root string, maxPages int) {
	defer p.wg.Done()
	start := time.Now()

	var pages []model.PageFinding
	spider := enumerator.NewSpider(p.cfg.MaxDepth, maxPages, p.wc, p.logger)
	_, err := spider.Crawl(p.ctx, root, func(pg enumerator.Page) {
		pages = append(pages, inspect(pg, p.cfg.SlowThreshold, p.cfg.MinWords))
	})

	p.jobsMu.Lock()
	defer p.jobsMu.Unlock()
	j := p.jobs[id]
	j.done = true
	j.err = err
	j.pages = pages
	j.summary = summarize(j.domain, pages, time.Since(start))

	if err != nil {
		p.logger.Warn("crawl ended early",
			logging.Field{Key: "task_id", Value: id},
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	p.logger.Info("crawl finished",
		logging.Field{Key: "task_id", Value: id},
		logging.Field{Key: "pages", Value: len(pages)})
}

func (p *Provider) get(taskID string) (*job, error) {
	p.jobsMu.Lock()
	defer p.jobsMu.Unlock()
	j, ok := p.jobs[taskID]
	if !ok {
		return nil, fmt.Errorf("crawl task %s: %w", taskID, provider.ErrUnknownTask)
	}
	cp := *j
	return &cp, nil
}

func (p *Provider) Status(_ context.Context, taskID string) (bool, error) {
	j, err := p.get(taskID)
	if err != nil {
		return false, err
	}
	return j.done, nil
}

func (p *Provider) Summary(_ context.Context, taskID string) (model.Summary, error) {
	j, err := p.get(taskID)
	if err != nil {
		return nil, err
	}
	if !j.done {
		return model.Summary{"crawl_progress": "in_progress"}, nil
	}
	if j.err != nil {
		return nil, fmt.Errorf("crawl task %s: %w", taskID, j.err)
	}
	return j.summary, nil
}

func (p *Provider) Findings(_ context.Context, taskID string, limit int) ([]model.PageFinding, error) {
	j, err := p.get(taskID)
	if err != nil {
		return nil, err
	}
	if j.err != nil {
		return nil, fmt.Errorf("crawl task %s: %w", taskID, j.err)
	}
	pages := j.pages
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	return append([]model.PageFinding(nil), pages...), nil
}

// Close cancels running crawls and waits for them to return.
func (p *Provider) Close() error {
	p.cancel()
	p.wg.Wait()
	return nil
}
