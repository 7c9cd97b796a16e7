// Package competitor compares a campaign's domain with its competitors and
// caches the comparison in the campaign settings.
package competitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/provider"
)

var ErrCampaignRequired = errors.New("campaign ID required")

// Campaigns is the campaign persistence the analyzer reads and updates.
type Campaigns interface {
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, upd model.CampaignUpdate) (*model.Campaign, error)
}

// Analysis is one comparison run.
type Analysis struct {
	Target      map[string]any   `json:"target"`
	Competitors []map[string]any `json:"competitors"`
	AnalyzedAt  time.Time        `json:"analyzed_at"`
}

type Analyzer struct {
	campaigns Campaigns
	overview  provider.RankOverview
	logger    logging.Logger

	Now func() time.Time
}

func New(campaigns Campaigns, overview provider.RankOverview, logger logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Analyzer{
		campaigns: campaigns,
		overview:  overview,
		logger:    logger.With(logging.F("component", "competitor")),
		Now:       time.Now,
	}
}

// Analyze fetches the rank overview of the campaign's domain and of every
// non-empty competitor, in order. A competitor lookup that fails is kept
// in the result with its error. The run is cached under the campaign's
// settings.
func (a *Analyzer) Analyze(ctx context.Context, campaignID string, competitors []string) (*Analysis, error) {
	if strings.TrimSpace(campaignID) == "" {
		return nil, ErrCampaignRequired
	}
	c, err := a.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	log := a.logger.With(logging.F("campaign_id", c.ID), logging.F("domain", c.Domain))

	target, err := a.overview.DomainOverview(ctx, c.Domain)
	if err != nil {
		log.Error("target overview failed", logging.Err(err))
		return nil, fmt.Errorf("rank overview for %s: %w", c.Domain, err)
	}

	res := &Analysis{Target: target, Competitors: []map[string]any{}, AnalyzedAt: a.Now().UTC()}
	for _, d := range competitors {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		stats, err := a.overview.DomainOverview(ctx, d)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("competitor overview failed", logging.F("competitor", d), logging.Err(err))
			stats = map[string]any{"domain": d, "error": err.Error()}
		}
		res.Competitors = append(res.Competitors, stats)
	}

	settings := make(map[string]any, len(c.Settings)+2)
	for k, v := range c.Settings {
		settings[k] = v
	}
	if competitors == nil {
		competitors = []string{}
	}
	settings["competitors"] = competitors
	settings["last_competitor_analysis"] = map[string]any{
		"target":      res.Target,
		"competitors": res.Competitors,
		"analyzed_at": res.AnalyzedAt.Format(time.RFC3339),
	}
	if _, err := a.campaigns.UpdateCampaign(ctx, c.ID, model.CampaignUpdate{Settings: settings}); err != nil {
		return nil, fmt.Errorf("cache analysis: %w", err)
	}
	log.Info("competitor analysis cached", logging.F("competitors", len(res.Competitors)))
	return res, nil
}
