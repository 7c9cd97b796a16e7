package crawl_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/provider"
	"github.com/raysh454/rankdesk/internal/provider/crawl"
	"github.com/raysh454/rankdesk/internal/testutil"
	"github.com/raysh454/rankdesk/internal/webclient"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("lorem ", n))
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><head><title>Home</title>
			<meta name="Description" content="Welcome">
			<link rel="canonical" href="/"></head>
			<body><h1>Home</h1><p>%s</p>
			<a href="/thin">thin</a><a href="/gone">gone</a><a href="/oops">oops</a></body></html>`, words(320))
	})
	mux.HandleFunc("/thin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><head><title> </title></head>
			<body><p>short page</p><script>var a = "`+words(400)+`";</script></body></html>`)
	})
	mux.HandleFunc("/oops", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newProvider(t *testing.T) *crawl.Provider {
	t.Helper()
	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, &testutil.DummyLogger{}, nil)
	if err != nil {
		t.Fatalf("webclient: %v", err)
	}
	p := crawl.New(crawl.DefaultConfig(), wc, &testutil.DummyLogger{})
	t.Cleanup(func() { p.Close() })
	return p
}

func waitReady(t *testing.T, p *crawl.Provider, id string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		ready, err := p.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if ready {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("crawl did not finish in time")
}

func byURL(pages []model.PageFinding) map[string]model.PageFinding {
	out := make(map[string]model.PageFinding, len(pages))
	for _, p := range pages {
		out[p.URL] = p
	}
	return out
}

// ─── Crawl and inspect ─────────────────────────────────────────────────

func TestProvider_FlagsPageDefects(t *testing.T) {
	t.Parallel()
	ts := newSite(t)
	p := newProvider(t)
	ctx := context.Background()

	sub, err := p.Submit(ctx, ts.URL, 50)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitReady(t, p, sub.TaskID)

	pages, err := p.Findings(ctx, sub.TaskID, 100)
	if err != nil {
		t.Fatalf("Findings: %v", err)
	}
	got := byURL(pages)
	if len(got) != 4 {
		t.Fatalf("expected 4 pages, got %v", pages)
	}

	home := got[ts.URL]
	if home.Issues != (model.IssueFlags{}) {
		t.Errorf("expected clean home page, got %+v", home.Issues)
	}
	if home.WordCount < 300 {
		t.Errorf("expected home word count >= 300, got %d", home.WordCount)
	}

	thin := got[ts.URL+"/thin"]
	want := model.IssueFlags{NoTitle: true, NoDescription: true, NoH1: true, LowContent: true, NoCanonical: true}
	if thin.Issues != want {
		t.Errorf("thin: got %+v, want %+v", thin.Issues, want)
	}
	if thin.WordCount != 2 {
		t.Errorf("script text must not count as words, got %d", thin.WordCount)
	}

	gone := got[ts.URL+"/gone"]
	if !gone.Issues.Is4xx || !gone.Issues.IsBroken || gone.StatusCode != 404 {
		t.Errorf("gone: unexpected %+v", gone)
	}
	oops := got[ts.URL+"/oops"]
	if !oops.Issues.Is5xx || !oops.Issues.IsBroken {
		t.Errorf("oops: unexpected %+v", oops)
	}
}

func TestProvider_SummaryCountsChecks(t *testing.T) {
	t.Parallel()
	ts := newSite(t)
	p := newProvider(t)

	sub, _ := p.Submit(context.Background(), ts.URL, 50)
	waitReady(t, p, sub.TaskID)

	s, err := p.Summary(context.Background(), sub.TaskID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s["pages_crawled"] != 4 || s["crawl_progress"] != "finished" {
		t.Errorf("unexpected summary: %v", s)
	}
	counts := s["checks"].(map[string]int)
	if counts["is_broken"] != 2 || counts["no_h1"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestProvider_FindingsLimit(t *testing.T) {
	t.Parallel()
	ts := newSite(t)
	p := newProvider(t)

	sub, _ := p.Submit(context.Background(), ts.URL, 50)
	waitReady(t, p, sub.TaskID)

	pages, err := p.Findings(context.Background(), sub.TaskID, 2)
	if err != nil {
		t.Fatalf("Findings: %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("expected limit 2 honoured, got %d", len(pages))
	}
}

func TestProvider_UnknownTask(t *testing.T) {
	t.Parallel()
	p := newProvider(t)
	if _, err := p.Status(context.Background(), "nope"); !errors.Is(err, provider.ErrUnknownTask) {
		t.Errorf("expected ErrUnknownTask, got %v", err)
	}
}

func TestProvider_SubmitRejectsEmptyDomain(t *testing.T) {
	t.Parallel()
	p := newProvider(t)
	if _, err := p.Submit(context.Background(), "", 10); err == nil {
		t.Fatal("expected error for empty domain")
	}
}
