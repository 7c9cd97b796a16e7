// Package dataforseo is a provider.Provider backed by the DataForSEO v3
// On-Page and Labs APIs.
package dataforseo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/provider"
	"github.com/raysh454/rankdesk/internal/webclient"
)

const DefaultBaseURL = "https://api.dataforseo.com"

type Config struct {
	BaseURL  string `yaml:"base_url"`
	Login    string `yaml:"login"`
	Password string `yaml:"-"`

	// LocationCode and LanguageCode scope domain rank lookups.
	LocationCode int    `yaml:"location_code"`
	LanguageCode string `yaml:"language_code"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		LocationCode: 2840,
		LanguageCode: "en",
	}
}

var (
	_ provider.Provider     = (*Client)(nil)
	_ provider.RankOverview = (*Client)(nil)
)

type Client struct {
	cfg    Config
	wc     webclient.WebClient
	auth   string
	logger logging.Logger
}

func New(cfg Config, wc webclient.WebClient, logger logging.Logger) (*Client, error) {
	if wc == nil {
		return nil, fmt.Errorf("dataforseo: webclient is nil")
	}
	if cfg.Login == "" || cfg.Password == "" {
		return nil, fmt.Errorf("dataforseo: login and password are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	cred := base64.StdEncoding.EncodeToString([]byte(cfg.Login + ":" + cfg.Password))
	return &Client{
		cfg:    cfg,
		wc:     wc,
		auth:   "Basic " + cred,
		logger: logger.With(logging.Field{Key: "component", Value: "dataforseo"}),
	}, nil
}

// call posts body (or GETs when body is nil) and unwraps the first task of
// the v3 envelope. Both the envelope and the task must report success.
func call[R any](ctx context.Context, c *Client, method, path string, body any) (*taskEntry[R], error) {
	req := &model.Request{
		Method:  method,
		URL:     strings.TrimRight(c.cfg.BaseURL, "/") + path,
		Headers: http.Header{"Authorization": {c.auth}},
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		req.Body = raw
		req.Headers.Set("Content-Type", "application/json")
	}

	resp, err := c.wc.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("dataforseo %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &provider.APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var env envelope[R]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	if env.StatusCode != codeOK {
		return nil, &provider.APIError{Code: env.StatusCode, Message: env.StatusMessage}
	}
	if len(env.Tasks) == 0 {
		return nil, &provider.APIError{Code: env.StatusCode, Message: "response contained no tasks"}
	}
	task := env.Tasks[0]
	if task.StatusCode != codeOK && task.StatusCode != codeTaskCreated {
		return nil, &provider.APIError{Code: task.StatusCode, Message: task.StatusMessage}
	}
	return &task, nil
}

func (c *Client) Submit(ctx context.Context, domain string, maxPages int) (*provider.Submission, error) {
	task, err := call[json.RawMessage](ctx, c, http.MethodPost, "/v3/on_page/task_post", []taskPostItem{{
		Target:        domain,
		MaxCrawlPages: maxPages,
	}})
	if err != nil {
		return nil, err
	}
	if task.ID == "" {
		return nil, &provider.APIError{Code: task.StatusCode, Message: "task id missing"}
	}
	c.logger.Info("on-page task posted",
		logging.Field{Key: "domain", Value: domain},
		logging.Field{Key: "task_id", Value: task.ID},
		logging.Field{Key: "cost", Value: task.Cost})
	return &provider.Submission{TaskID: task.ID, Cost: task.Cost}, nil
}

func (c *Client) summary(ctx context.Context, taskID string) (*summaryResult, error) {
	task, err := call[summaryResult](ctx, c, http.MethodGet, "/v3/on_page/summary/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}
	if len(task.Result) == 0 {
		return &summaryResult{}, nil
	}
	return &task.Result[0], nil
}

func (c *Client) Status(ctx context.Context, taskID string) (bool, error) {
	res, err := c.summary(ctx, taskID)
	if err != nil {
		return false, err
	}
	return res.CrawlProgress == "finished", nil
}

func (c *Client) Summary(ctx context.Context, taskID string) (model.Summary, error) {
	res, err := c.summary(ctx, taskID)
	if err != nil {
		return nil, err
	}
	out := model.Summary{"crawl_progress": res.CrawlProgress}
	for key, raw := range map[string]json.RawMessage{
		"crawl_status": res.CrawlStatus,
		"domain_info":  res.DomainInfo,
		"page_metrics": res.PageMetrics,
	} {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode summary %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func (c *Client) Findings(ctx context.Context, taskID string, limit int) ([]model.PageFinding, error) {
	task, err := call[pagesResult](ctx, c, http.MethodPost, "/v3/on_page/pages", []pagesRequest{{
		ID:    taskID,
		Limit: limit,
	}})
	if err != nil {
		return nil, err
	}
	if len(task.Result) == 0 {
		return []model.PageFinding{}, nil
	}
	items := task.Result[0].Items
	out := make([]model.PageFinding, 0, len(items))
	for _, it := range items {
		out = append(out, toFinding(it))
	}
	return out, nil
}

// toFinding maps the provider's checks object onto IssueFlags. Checks the
// provider omits stay false.
func toFinding(it pageItem) model.PageFinding {
	ch := it.Checks
	f := model.PageFinding{
		URL:        it.URL,
		StatusCode: it.StatusCode,
		Issues: model.IssueFlags{
			NoTitle:       ch["no_title"],
			NoDescription: ch["no_description"],
			NoH1:          ch["no_h1_tag"],
			SlowLoad:      ch["high_loading_time"],
			LowContent:    ch["low_content_rate"],
			IsBroken:      ch["is_broken"],
			Is4xx:         ch["is_4xx_code"],
			Is5xx:         ch["is_5xx_code"],
		},
	}
	if canonical, ok := ch["canonical"]; ok {
		f.Issues.NoCanonical = !canonical
	}
	if it.PageTiming != nil {
		f.LoadTimeMs = int64(it.PageTiming.DurationTime)
	}
	if it.Meta != nil && it.Meta.Content != nil {
		f.WordCount = int(it.Meta.Content.PlainTextWordCount)
	}
	return f
}

func (c *Client) DomainOverview(ctx context.Context, domain string) (map[string]any, error) {
	task, err := call[rankResult](ctx, c, http.MethodPost,
		"/v3/dataforseo_labs/google/domain_rank_overview/live", []rankRequest{{
			Target:       domain,
			LocationCode: c.cfg.LocationCode,
			LanguageCode: c.cfg.LanguageCode,
		}})
	if err != nil {
		return nil, err
	}
	out := map[string]any{"domain": domain}
	if len(task.Result) > 0 && len(task.Result[0].Items) > 0 {
		item := task.Result[0].Items[0]
		if metrics, ok := item["metrics"]; ok {
			out["metrics"] = metrics
		}
	}
	return out, nil
}
