package crawl

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/raysh454/rankdesk/internal/enumerator"
	"github.com/raysh454/rankdesk/internal/model"
)

// inspect derives a PageFinding from one fetched page.
func inspect(p enumerator.Page, slow time.Duration, minWords int) model.PageFinding {
	f := model.PageFinding{URL: p.URL}
	if p.Err != nil || p.Response == nil {
		f.Issues.IsBroken = true
		return f
	}

	resp := p.Response
	f.StatusCode = resp.StatusCode
	f.LoadTimeMs = resp.Elapsed.Milliseconds()
	f.Issues.SlowLoad = slow > 0 && resp.Elapsed > slow

	switch {
	case resp.StatusCode >= 500:
		f.Issues.Is5xx = true
		f.Issues.IsBroken = true
		return f
	case resp.StatusCode >= 400:
		f.Issues.Is4xx = true
		f.Issues.IsBroken = true
		return f
	}

	if ct := resp.Headers.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/html") {
		return f
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return f
	}

	f.Issues.NoTitle = strings.TrimSpace(doc.Find("title").First().Text()) == ""
	f.Issues.NoDescription = metaContent(doc, "description") == ""
	f.Issues.NoH1 = strings.TrimSpace(doc.Find("h1").Text()) == ""
	f.Issues.NoCanonical = canonicalHref(doc) == ""

	body := doc.Find("body")
	body.Find("script, style, noscript, template").Remove()
	f.WordCount = len(strings.Fields(body.Text()))
	f.Issues.LowContent = minWords > 0 && f.WordCount < minWords

	return f
}

func metaContent(doc *goquery.Document, name string) string {
	var content string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if n, _ := s.Attr("name"); strings.EqualFold(strings.TrimSpace(n), name) {
			content, _ = s.Attr("content")
			content = strings.TrimSpace(content)
			return false
		}
		return true
	})
	return content
}

func canonicalHref(doc *goquery.Document) string {
	var href string
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		for _, r := range strings.Fields(rel) {
			if strings.EqualFold(r, "canonical") {
				href, _ = s.Attr("href")
				href = strings.TrimSpace(href)
				return false
			}
		}
		return true
	})
	return href
}

// summarize counts flagged pages per check, keyed like the page issues.
func summarize(domain string, pages []model.PageFinding, elapsed time.Duration) model.Summary {
	counts := map[string]int{
		"no_title": 0, "no_description": 0, "no_h1": 0, "slow_load": 0,
		"low_content": 0, "is_broken": 0, "is_4xx": 0, "is_5xx": 0, "no_canonical": 0,
	}
	for _, p := range pages {
		is := p.Issues
		for key, on := range map[string]bool{
			"no_title": is.NoTitle, "no_description": is.NoDescription, "no_h1": is.NoH1,
			"slow_load": is.SlowLoad, "low_content": is.LowContent, "is_broken": is.IsBroken,
			"is_4xx": is.Is4xx, "is_5xx": is.Is5xx, "no_canonical": is.NoCanonical,
		} {
			if on {
				counts[key]++
			}
		}
	}
	return model.Summary{
		"domain":         domain,
		"crawl_progress": "finished",
		"pages_crawled":  len(pages),
		"checks":         counts,
		"duration_ms":    elapsed.Milliseconds(),
	}
}
