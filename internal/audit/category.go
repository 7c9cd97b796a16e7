// Package audit turns a provider crawl into persisted audits and tasks.
package audit

import "github.com/raysh454/rankdesk/internal/model"

// Category is a named issue bucket a page can fall into.
type Category string

const (
	MissingTitle       Category = "missing_title"
	MissingDescription Category = "missing_description"
	MissingH1          Category = "missing_h1"
	SlowPages          Category = "slow_pages"
	LowContent         Category = "low_content"
	BrokenPages        Category = "broken_pages"
	NoCanonical        Category = "no_canonical"
)

var categoryOrder = []Category{
	MissingTitle,
	MissingDescription,
	MissingH1,
	SlowPages,
	LowContent,
	BrokenPages,
	NoCanonical,
}

// Categories returns every category in declaration order. Task synthesis
// iterates in this order.
func Categories() []Category {
	return append([]Category(nil), categoryOrder...)
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, k := range categoryOrder {
		if k == c {
			return true
		}
	}
	return false
}

// Classify returns the categories a page triggers, in declaration order.
func Classify(p model.PageFinding) []Category {
	is := p.Issues
	var out []Category
	if is.NoTitle {
		out = append(out, MissingTitle)
	}
	if is.NoDescription {
		out = append(out, MissingDescription)
	}
	if is.NoH1 {
		out = append(out, MissingH1)
	}
	if is.SlowLoad {
		out = append(out, SlowPages)
	}
	if is.LowContent {
		out = append(out, LowContent)
	}
	if is.IsBroken || is.Is4xx || is.Is5xx {
		out = append(out, BrokenPages)
	}
	if is.NoCanonical {
		out = append(out, NoCanonical)
	}
	return out
}

// Bucket is the ordered list of URLs sharing one category.
type Bucket struct {
	Category Category
	URLs     []string
}

// Group buckets pages by category. Only non-empty buckets are returned, in
// declaration order; URLs keep page order.
func Group(pages []model.PageFinding) []Bucket {
	byCat := make(map[Category][]string, len(categoryOrder))
	for _, p := range pages {
		for _, c := range Classify(p) {
			byCat[c] = append(byCat[c], p.URL)
		}
	}
	var out []Bucket
	for _, c := range categoryOrder {
		if urls := byCat[c]; len(urls) > 0 {
			out = append(out, Bucket{Category: c, URLs: urls})
		}
	}
	return out
}
