package audit

import (
	"fmt"
	"sort"
	"strings"
)

// Template is the fixed wording and routing for one category's task.
type Template struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Role        string `json:"role"`
	Priority    int    `json:"priority"`
}

type Templates map[Category]Template

func DefaultTemplates() Templates {
	return Templates{
		MissingTitle: {
			Title:       "Fix pages with missing title tags",
			Description: "These pages have no title tag, which hurts SEO and CTR.",
			Type:        "technical",
			Role:        "optimization_specialist",
			Priority:    2,
		},
		MissingDescription: {
			Title:       "Add meta descriptions",
			Description: "These pages have no meta description.",
			Type:        "technical",
			Role:        "optimization_specialist",
			Priority:    1,
		},
		MissingH1: {
			Title:       "Add H1 headings",
			Description: "These pages have no H1 tag.",
			Type:        "technical",
			Role:        "optimization_specialist",
			Priority:    1,
		},
		SlowPages: {
			Title:       "Improve slow loading pages",
			Description: "These pages take > 3 seconds to load.",
			Type:        "technical",
			Role:        "optimization_specialist",
			Priority:    2,
		},
		LowContent: {
			Title:       "Expand thin content pages",
			Description: "These pages have < 300 words.",
			Type:        "content",
			Role:        "content_creator",
			Priority:    1,
		},
		BrokenPages: {
			Title:       "Fix broken pages (4xx/5xx errors)",
			Description: "These pages return error status codes.",
			Type:        "technical",
			Role:        "optimization_specialist",
			Priority:    3,
		},
		NoCanonical: {
			Title:       "Add canonical tags",
			Description: "These pages have no canonical URL specified.",
			Type:        "technical",
			Role:        "optimization_specialist",
			Priority:    1,
		},
	}
}

// WithPriorities returns a copy of t with priorities overridden by
// category name. Unknown names are rejected.
func (t Templates) WithPriorities(overrides map[string]int) (Templates, error) {
	out := make(Templates, len(t))
	for k, v := range t {
		out[k] = v
	}
	var unknown []string
	for name, prio := range overrides {
		c := Category(name)
		tpl, ok := out[c]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		tpl.Priority = prio
		out[c] = tpl
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown issue categories: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
