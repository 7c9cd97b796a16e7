package dataforseo

import "encoding/json"

// Status codes from the v3 envelope.
const (
	codeOK          = 20000
	codeTaskCreated = 20100
)

// envelope is the outer shape of every v3 response.
type envelope[R any] struct {
	StatusCode    int            `json:"status_code"`
	StatusMessage string         `json:"status_message"`
	Cost          float64        `json:"cost"`
	Tasks         []taskEntry[R] `json:"tasks"`
}

type taskEntry[R any] struct {
	ID            string  `json:"id"`
	StatusCode    int     `json:"status_code"`
	StatusMessage string  `json:"status_message"`
	Cost          float64 `json:"cost"`
	Result        []R     `json:"result"`
}

type taskPostItem struct {
	Target           string `json:"target"`
	MaxCrawlPages    int    `json:"max_crawl_pages"`
	LoadResources    bool   `json:"load_resources"`
	EnableJavascript bool   `json:"enable_javascript"`
}

type summaryResult struct {
	CrawlProgress string          `json:"crawl_progress"`
	CrawlStatus   json.RawMessage `json:"crawl_status"`
	DomainInfo    json.RawMessage `json:"domain_info"`
	PageMetrics   json.RawMessage `json:"page_metrics"`
}

type pagesRequest struct {
	ID    string `json:"id"`
	Limit int    `json:"limit"`
}

type pagesResult struct {
	CrawlProgress string     `json:"crawl_progress"`
	TotalItems    int        `json:"total_items_count"`
	Items         []pageItem `json:"items"`
}

type pageItem struct {
	URL        string          `json:"url"`
	StatusCode int             `json:"status_code"`
	Checks     map[string]bool `json:"checks"`
	PageTiming *struct {
		DurationTime float64 `json:"duration_time"`
	} `json:"page_timing"`
	Meta *struct {
		Content *struct {
			PlainTextWordCount float64 `json:"plain_text_word_count"`
		} `json:"content"`
	} `json:"meta"`
}

type rankRequest struct {
	Target       string `json:"target"`
	LocationCode int    `json:"location_code"`
	LanguageCode string `json:"language_code"`
}

type rankResult struct {
	Target string           `json:"target"`
	Items  []map[string]any `json:"items"`
}
