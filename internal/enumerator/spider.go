package enumerator

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/utils"
	"github.com/raysh454/rankdesk/internal/webclient"
)

// Spider walks a site breadth-first, staying on the root's host.
type Spider struct {
	MaxDepth int
	// MaxPages caps fetched pages. Zero means no cap.
	MaxPages int
	wc       webclient.WebClient
	logger   logging.Logger
}

type spiderHelper struct {
	spider  *Spider
	root    *utils.URLTools
	depth   map[string]int
	results []string
	visit   Visitor
}

func NewSpider(maxDepth, maxPages int, wc webclient.WebClient, logger logging.Logger) *Spider {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Spider{
		MaxDepth: maxDepth,
		MaxPages: maxPages,
		wc:       wc,
		logger:   logger.With(logging.Field{Key: "component", Value: "spider"}),
	}
}

func newSpiderHelper(spider *Spider, root string, visit Visitor) (*spiderHelper, error) {
	rootURL, err := utils.NewURLTools(root)
	if err != nil {
		return nil, err
	}
	if rootURL.URL.Host == "" {
		return nil, fmt.Errorf("crawl root %q has no host", root)
	}
	start := rootURL.String()

	return &spiderHelper{
		spider:  spider,
		root:    rootURL,
		depth:   map[string]int{start: 0},
		results: []string{start},
		visit:   visit,
	}, nil
}

func (sh *spiderHelper) extractLinksHTML(node *html.Node, base *utils.URLTools, links *[]string) {
	if node.Type == html.ElementNode && node.Data == "a" {
		for _, attr := range node.Attr {
			if attr.Key != "href" {
				continue
			}
			resolved, err := base.Resolve(attr.Val)
			if err != nil {
				continue
			}
			*links = append(*links, resolved.String())
		}
	}

	for c := node.FirstChild; c != nil; c = c.NextSibling {
		sh.extractLinksHTML(c, base, links)
	}
}

func (sh *spiderHelper) crawlPage(ctx context.Context, target string, depth int) []string {
	req := &model.Request{
		Method:  http.MethodGet,
		URL:     target,
		Headers: http.Header{"Accept": {"text/html"}},
	}

	resp, err := sh.spider.wc.Do(ctx, req)
	if sh.visit != nil {
		sh.visit(Page{URL: target, Depth: depth, Response: resp, Err: err})
	}
	if err != nil {
		sh.spider.logger.Warn("error while crawling page",
			logging.Field{Key: "url", Value: target},
			logging.Field{Key: "error", Value: err.Error()})
		return nil
	}
	if resp.StatusCode >= 400 {
		return nil
	}
	if ct := resp.Headers.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "text/html") {
		return nil
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		sh.spider.logger.Warn("couldn't parse page",
			logging.Field{Key: "url", Value: target},
			logging.Field{Key: "error", Value: err.Error()})
		return nil
	}

	base, err := utils.NewURLTools(target)
	if err != nil {
		return nil
	}
	var links []string
	sh.extractLinksHTML(doc, base, &links)
	return links
}

func (sh *spiderHelper) appendPages(pages []string, lastDepth int) {
	for _, page := range pages {
		pageURL, err := utils.NewURLTools(page)
		if err != nil {
			sh.spider.logger.Warn("error parsing page url",
				logging.Field{Key: "url", Value: page},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}

		if !sh.root.SameSite(pageURL) {
			continue
		}

		pageStr := pageURL.String()
		if _, exists := sh.depth[pageStr]; !exists {
			sh.depth[pageStr] = lastDepth + 1
			sh.results = append(sh.results, pageStr)
		}
	}
}

func (sh *spiderHelper) run(ctx context.Context) error {
	fetched := 0

	for curr := 0; curr < len(sh.results); curr++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := sh.results[curr]
		depth := sh.depth[page]
		if depth > sh.spider.MaxDepth {
			break
		}
		if sh.spider.MaxPages > 0 && fetched >= sh.spider.MaxPages {
			break
		}

		links := sh.crawlPage(ctx, page, depth)
		fetched++
		sh.appendPages(links, depth)
	}

	// Only fetched pages are reported; the frontier beyond the budget is dropped.
	if fetched < len(sh.results) {
		sh.results = sh.results[:fetched]
	}
	return nil
}

// Crawl walks target and calls visit for every fetched page.
func (s *Spider) Crawl(ctx context.Context, target string, visit Visitor) ([]string, error) {
	helper, err := newSpiderHelper(s, target, visit)
	if err != nil {
		return nil, err
	}

	if err := helper.run(ctx); err != nil {
		return helper.results, err
	}
	s.logger.Debug("crawl finished",
		logging.Field{Key: "target", Value: target},
		logging.Field{Key: "pages", Value: len(helper.results)})
	return helper.results, nil
}

func (s *Spider) Enumerate(ctx context.Context, target string) ([]string, error) {
	return s.Crawl(ctx, target, nil)
}
