package model

import "time"

// IssueFlags are the per-page boolean checks reported by an audit provider.
// Absent keys decode to false.
type IssueFlags struct {
	NoTitle       bool `json:"no_title,omitempty"`
	NoDescription bool `json:"no_description,omitempty"`
	NoH1          bool `json:"no_h1,omitempty"`
	SlowLoad      bool `json:"slow_load,omitempty"`
	LowContent    bool `json:"low_content,omitempty"`
	IsBroken      bool `json:"is_broken,omitempty"`
	Is4xx         bool `json:"is_4xx,omitempty"`
	Is5xx         bool `json:"is_5xx,omitempty"`
	NoCanonical   bool `json:"no_canonical,omitempty"`
}

// PageFinding is one crawled page's audit result.
type PageFinding struct {
	URL        string     `json:"url"`
	Issues     IssueFlags `json:"issues"`
	StatusCode int        `json:"status_code,omitempty"`
	LoadTimeMs int64      `json:"load_time_ms,omitempty"`
	WordCount  int        `json:"word_count,omitempty"`
}

// Summary holds provider-reported audit metrics keyed by metric name.
type Summary map[string]any

type AuditStatus string

const (
	AuditPending   AuditStatus = "pending"
	AuditCrawling  AuditStatus = "crawling"
	AuditCompleted AuditStatus = "completed"
	AuditFailed    AuditStatus = "failed"

	// AuditFinalizing is persisted only while one caller holds the finalize
	// claim. Clients see it as crawling.
	AuditFinalizing AuditStatus = "finalizing"
)

// Terminal reports whether no further transition is defined.
func (s AuditStatus) Terminal() bool {
	return s == AuditCompleted || s == AuditFailed
}

// FailureReason distinguishes why an audit ended in AuditFailed.
type FailureReason string

const (
	ReasonNone          FailureReason = ""
	ReasonSubmitError   FailureReason = "submit_error"
	ReasonTimeout       FailureReason = "timeout"
	ReasonProviderError FailureReason = "provider_error"
)

// AuditResults is the persisted results document.
type AuditResults struct {
	Summary Summary       `json:"summary"`
	Pages   []PageFinding `json:"pages"`
}

// Audit is one crawl-and-analyze run tracked through its lifecycle.
type Audit struct {
	ID               string        `json:"id"`
	CampaignID       string        `json:"campaign_id"`
	Type             string        `json:"type"`
	Status           AuditStatus   `json:"status"`
	DataForSEOTaskID string        `json:"dataforseo_task_id,omitempty"`
	Domain           string        `json:"domain,omitempty"`
	MaxPages         int           `json:"max_pages,omitempty"`
	Cost             float64       `json:"cost,omitempty"`
	Results          AuditResults  `json:"results"`
	Summary          Summary       `json:"summary"`
	Reason           FailureReason `json:"reason,omitempty"`
	Error            string        `json:"error,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	ClaimedAt        *time.Time    `json:"-"`

	// Campaign is filled on reads that join the owning campaign.
	Campaign *CampaignRef `json:"campaigns,omitempty"`
}

// PublicStatus hides the internal finalize claim from API consumers.
func (a *Audit) PublicStatus() AuditStatus {
	if a.Status == AuditFinalizing {
		return AuditCrawling
	}
	return a.Status
}
