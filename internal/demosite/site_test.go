package demosite_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/rankdesk/internal/demosite"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/provider/crawl"
	"github.com/raysh454/rankdesk/internal/testutil"
	"github.com/raysh454/rankdesk/internal/webclient"
)

func newSite(t *testing.T) (*demosite.Site, *httptest.Server) {
	t.Helper()
	cfg := demosite.DefaultConfig()
	cfg.SlowDelay = 400 * time.Millisecond
	site := demosite.New(cfg, &testutil.DummyLogger{})
	ts := httptest.NewServer(site.Handler())
	t.Cleanup(ts.Close)
	return site, ts
}

func get(t *testing.T, u string) (int, string) {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

// ─── Pages and versions ────────────────────────────────────────────────

func TestSite_ServesBeforeVersionByDefault(t *testing.T) {
	t.Parallel()
	_, ts := newSite(t)

	if code, _ := get(t, ts.URL+"/spring-offer"); code != http.StatusNotFound {
		t.Errorf("spring-offer: expected 404, got %d", code)
	}
	if code, _ := get(t, ts.URL+"/order"); code != http.StatusInternalServerError {
		t.Errorf("order: expected 500, got %d", code)
	}
	_, body := get(t, ts.URL+"/about")
	if strings.Contains(body, "<title>") {
		t.Errorf("about v1 must not have a title:\n%s", body)
	}
}

func TestSite_SetVersionSwitchesOnePage(t *testing.T) {
	t.Parallel()
	site, ts := newSite(t)

	resp, err := http.PostForm(ts.URL+"/demo/set-version", url.Values{"path": {"/spring-offer"}, "version": {"2"}})
	if err != nil {
		t.Fatalf("set-version: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set-version: expected 200, got %d", resp.StatusCode)
	}

	if code, _ := get(t, ts.URL+"/spring-offer"); code != http.StatusOK {
		t.Errorf("spring-offer v2: expected 200, got %d", code)
	}
	if v, _ := site.Version("/order"); v != demosite.Before {
		t.Errorf("other pages must stay on v1, got %d", v)
	}
}

func TestSite_SetVersionRejectsUnknown(t *testing.T) {
	t.Parallel()
	site, ts := newSite(t)

	for _, form := range []url.Values{
		{"path": {"/nope"}, "version": {"2"}},
		{"path": {"/about"}, "version": {"7"}},
		{"path": {"/about"}, "version": {"two"}},
	} {
		resp, err := http.PostForm(ts.URL+"/demo/set-version", form)
		if err != nil {
			t.Fatalf("set-version: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%v: expected 400, got %d", form, resp.StatusCode)
		}
	}
	if v, _ := site.Version("/about"); v != demosite.Before {
		t.Errorf("about must be unchanged, got %d", v)
	}
}

func TestSite_FixAllAndReset(t *testing.T) {
	t.Parallel()
	site, ts := newSite(t)

	for _, tc := range []struct {
		endpoint string
		want     int
	}{
		{"/demo/fix-all", demosite.After},
		{"/demo/reset", demosite.Before},
	} {
		resp, err := http.Post(ts.URL+tc.endpoint, "", nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.endpoint, err)
		}
		resp.Body.Close()
		for _, p := range demosite.GetAllPages() {
			if v, _ := site.Version(p.Path); v != tc.want {
				t.Errorf("after %s: %s at v%d, want v%d", tc.endpoint, p.Path, v, tc.want)
			}
		}
	}
}

func TestSite_VersionsListsEveryPage(t *testing.T) {
	t.Parallel()
	_, ts := newSite(t)

	_, body := get(t, ts.URL+"/demo/versions")
	var pages []struct {
		Path              string `json:"path"`
		CurrentVersion    int    `json:"current_version"`
		AvailableVersions []int  `json:"available_versions"`
	}
	if err := json.Unmarshal([]byte(body), &pages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pages) != len(demosite.GetAllPages()) {
		t.Fatalf("expected %d pages, got %d", len(demosite.GetAllPages()), len(pages))
	}
	if pages[0].Path != "/" || len(pages[0].AvailableVersions) != 2 {
		t.Errorf("unexpected first entry %+v", pages[0])
	}

	code, panel := get(t, ts.URL+"/demo/control")
	if code != http.StatusOK || !strings.Contains(panel, "/blog/first-post") {
		t.Errorf("control panel: %d\n%s", code, panel)
	}
}

// ─── Crawled by the crawl provider ─────────────────────────────────────

func crawlSite(t *testing.T, root string) map[string]model.PageFinding {
	t.Helper()
	wc, err := webclient.NewNetHTTPClient(webclient.Config{}, &testutil.DummyLogger{}, nil)
	if err != nil {
		t.Fatalf("webclient: %v", err)
	}
	cfg := crawl.DefaultConfig()
	cfg.SlowThreshold = 200 * time.Millisecond
	p := crawl.New(cfg, wc, &testutil.DummyLogger{})
	t.Cleanup(func() { p.Close() })

	ctx := context.Background()
	sub, err := p.Submit(ctx, root, 50)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	deadline := time.Now().Add(10 * time.Second)
	for {
		ready, err := p.Status(ctx, sub.TaskID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("crawl did not finish")
		}
		time.Sleep(20 * time.Millisecond)
	}
	pages, err := p.Findings(ctx, sub.TaskID, 100)
	if err != nil {
		t.Fatalf("Findings: %v", err)
	}
	out := make(map[string]model.PageFinding, len(pages))
	for _, f := range pages {
		out[strings.TrimPrefix(f.URL, root)] = f
	}
	return out
}

func TestSite_CrawlFindsEachDefectThenNone(t *testing.T) {
	t.Parallel()
	_, ts := newSite(t)

	before := crawlSite(t, ts.URL)
	want := map[string]func(model.IssueFlags) bool{
		"/about":           func(i model.IssueFlags) bool { return i.NoTitle && i.NoDescription },
		"/services":        func(i model.IssueFlags) bool { return i.NoH1 && i.NoCanonical },
		"/blog/first-post": func(i model.IssueFlags) bool { return i.LowContent },
		"/spring-offer":    func(i model.IssueFlags) bool { return i.Is4xx },
		"/order":           func(i model.IssueFlags) bool { return i.Is5xx },
		"/gallery":         func(i model.IssueFlags) bool { return i.SlowLoad },
	}
	for path, check := range want {
		f, ok := before[path]
		if !ok {
			t.Errorf("%s was not crawled; got %v", path, before)
			continue
		}
		if !check(f.Issues) {
			t.Errorf("%s: defect not flagged, got %+v", path, f.Issues)
		}
	}

	resp, err := http.Post(ts.URL+"/demo/fix-all", "", nil)
	if err != nil {
		t.Fatalf("fix-all: %v", err)
	}
	resp.Body.Close()

	for path, f := range crawlSite(t, ts.URL) {
		if f.Issues != (model.IssueFlags{}) {
			t.Errorf("%s after fix: expected no issues, got %+v", path, f.Issues)
		}
	}
}
