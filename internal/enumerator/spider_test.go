package enumerator_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/raysh454/rankdesk/internal/enumerator"
	"github.com/raysh454/rankdesk/internal/testutil"
	"github.com/raysh454/rankdesk/internal/webclient"
)

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

// site serves:
//
//	/            depth 0 -> /example, /blog, external, mailto
//	/example     depth 1 -> /example/a, /example/b, /example
//	/example/a   depth 2 -> /example/a/1, /blog
//	/example/b   depth 2 -> ../example
//	/example/a/1 depth 3
//	/blog        depth 1 -> /gone
//	/gone        404
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeHTML(w, `<a href="/example">example</a><a href="/blog">blog</a>
			<a href="https://elsewhere.test/x">external</a><a href="mailto:hi@example.com">mail</a>`)
	})
	mux.HandleFunc("/example", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<a href="/example/a">a</a><a href="/example/b">b</a><a href="/example">self</a>`)
	})
	mux.HandleFunc("/example/a", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<a href="/example/a/1">a1</a><a href="/blog">blog</a>`)
	})
	mux.HandleFunc("/example/b", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<a href="../example">up</a>`)
	})
	mux.HandleFunc("/example/a/1", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `leaf`)
	})
	mux.HandleFunc("/blog", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<a href="/gone">gone</a>`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newSpider(t *testing.T, maxDepth, maxPages int) *enumerator.Spider {
	t.Helper()
	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, &testutil.DummyLogger{}, nil)
	if err != nil {
		t.Fatalf("Failed to create webclient: %v", err)
	}
	t.Cleanup(func() { wc.Close() })
	return enumerator.NewSpider(maxDepth, maxPages, wc, &testutil.DummyLogger{})
}

// ─── Depth limits ──────────────────────────────────────────────────────

func TestSpider_Depths(t *testing.T) {
	t.Parallel()
	ts := newSite(t)
	addr := ts.URL

	tests := []struct {
		depth int
		want  []string
	}{
		{0, []string{addr}},
		{1, []string{addr, addr + "/example", addr + "/blog"}},
		{2, []string{
			addr, addr + "/example", addr + "/blog",
			addr + "/example/a", addr + "/example/b", addr + "/gone",
		}},
		{3, []string{
			addr, addr + "/example", addr + "/blog",
			addr + "/example/a", addr + "/example/b", addr + "/gone",
			addr + "/example/a/1",
		}},
	}

	for _, tt := range tests {
		got, err := newSpider(t, tt.depth, 0).Enumerate(context.Background(), addr)
		if err != nil {
			t.Fatalf("depth %d: %v", tt.depth, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("depth %d: got %v, want %v", tt.depth, got, tt.want)
		}
	}
}

// ─── Page budget and visitor ───────────────────────────────────────────

func TestSpider_MaxPagesCapsFetches(t *testing.T) {
	t.Parallel()
	ts := newSite(t)

	var mu sync.Mutex
	var visited []string
	got, err := newSpider(t, 10, 2).Crawl(context.Background(), ts.URL, func(p enumerator.Page) {
		mu.Lock()
		visited = append(visited, p.URL)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(got) != 2 || len(visited) != 2 {
		t.Errorf("expected 2 pages, got results=%v visited=%v", got, visited)
	}
}

func TestSpider_VisitorSeesBrokenPages(t *testing.T) {
	t.Parallel()
	ts := newSite(t)

	statuses := map[string]int{}
	_, err := newSpider(t, 2, 0).Crawl(context.Background(), ts.URL, func(p enumerator.Page) {
		if p.Response != nil {
			statuses[p.URL] = p.Response.StatusCode
		}
	})
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if statuses[ts.URL+"/gone"] != http.StatusNotFound {
		t.Errorf("expected /gone to be visited with 404, got %v", statuses)
	}
	if statuses[ts.URL] != http.StatusOK {
		t.Errorf("expected root 200, got %d", statuses[ts.URL])
	}
}

func TestSpider_CanceledContext(t *testing.T) {
	t.Parallel()
	ts := newSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newSpider(t, 3, 0).Enumerate(ctx, ts.URL); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSpider_RejectsHostlessRoot(t *testing.T) {
	t.Parallel()
	if _, err := newSpider(t, 1, 0).Enumerate(context.Background(), "/relative"); err == nil {
		t.Fatal("expected error for hostless root")
	}
}
