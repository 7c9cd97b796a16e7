package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/rankdesk/internal/cli"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/store/sqlite"
	"github.com/raysh454/rankdesk/internal/testutil"
)

// ─── Helpers ───────────────────────────────────────────────────────────────

// setupEnv points the command line at a fresh sqlite file and the crawl
// provider, and returns the database path.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "cli.db")
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", db)
	t.Setenv("AUDIT_PROVIDER", "crawl")
	t.Setenv("LOG_FORMAT", "text")
	return db
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rankdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := cli.NewRootCommand("1.2.3")
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func seed(t *testing.T, db string) (model.Organization, model.Campaign) {
	t.Helper()
	st, err := sqlite.Open(db, &testutil.DummyLogger{})
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	org := model.Organization{Name: "Acme", Slug: "acme"}
	require.NoError(t, st.CreateOrganization(ctx, &org))
	c := model.Campaign{Name: "Lost", Domain: "lost.test"}
	require.NoError(t, st.CreateCampaign(ctx, &c))
	return org, c
}

// ─── version ───────────────────────────────────────────────────────────────

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "rankdesk 1.2.3\n", out)
}

func TestExecute_UnknownCommandExitsOne(t *testing.T) {
	assert.Equal(t, 1, cli.Execute("dev", []string{"no-such-command"}))
}

// ─── audit ─────────────────────────────────────────────────────────────────

func TestAudit_RequiresDomain(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "audit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"domain"`)
}

func TestAudit_DryRunWithCrawlProvider(t *testing.T) {
	setupEnv(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head></head><body><p>hello</p><a href="/gone">gone</a></body></html>`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	cfg := writeConfig(t, "audit:\n  poll_interval: 20ms\n  max_poll_attempts: 250\n")
	out, stderr, err := run(t, "--config", cfg, "audit", "--domain", ts.URL, "--pages", "10", "--dry-run")
	require.NoError(t, err, stderr)

	var res struct {
		Success    bool   `json:"success"`
		Status     string `json:"status"`
		PagesCount int    `json:"pages_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.True(t, res.Success)
	assert.Equal(t, "completed", res.Status)
	assert.GreaterOrEqual(t, res.PagesCount, 1)
	assert.NotContains(t, out, "starting audit", "logs must stay on stderr")
}

func TestAudit_SetupFailureIsReportedAsJSON(t *testing.T) {
	setupEnv(t)
	out, _, err := run(t, "audit", "--domain", "example.com", "--provider", "magic")
	require.Error(t, err)

	var res struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.False(t, res.Success)
	assert.Equal(t, `unknown audit provider "magic"`, res.Error)
	assert.Equal(t, "failed", res.Status)
}

// ─── migrate ───────────────────────────────────────────────────────────────

func TestMigrateAdoptOrphans_PreviewThenApply(t *testing.T) {
	db := setupEnv(t)
	org, c := seed(t, db)

	out, _, err := run(t, "migrate", "adopt-orphans", "--org", org.ID)
	require.NoError(t, err)
	var plan struct {
		TargetOrg      string           `json:"target_org"`
		Campaigns      []model.Campaign `json:"campaigns"`
		AlreadyApplied bool             `json:"already_applied"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &plan))
	assert.Equal(t, org.ID, plan.TargetOrg)
	require.Len(t, plan.Campaigns, 1)
	assert.Equal(t, c.ID, plan.Campaigns[0].ID)
	assert.False(t, plan.AlreadyApplied)

	out, _, err = run(t, "migrate", "adopt-orphans", "--org", org.ID, "--apply")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("adopted 1 campaigns into %s\n", org.ID), out)

	_, _, err = run(t, "migrate", "adopt-orphans", "--org", org.ID, "--apply")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already applied")
}

func TestMigrateAdoptOrphans_UnknownOrg(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "migrate", "adopt-orphans", "--org", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown organization")
}

func TestMigrateInspect(t *testing.T) {
	db := setupEnv(t)
	seed(t, db)

	out, _, err := run(t, "migrate", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "Organizations (1)")
	assert.Contains(t, out, "Campaigns (1, 1 orphaned)")
	assert.True(t, strings.Contains(out, "lost.test"))
}

// ─── serve ─────────────────────────────────────────────────────────────────

func TestServe_RequiresSessionSecret(t *testing.T) {
	setupEnv(t)
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("FLASK_SECRET_KEY", "")
	_, _, err := run(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET is required")
}
