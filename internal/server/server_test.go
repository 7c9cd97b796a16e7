package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raysh454/rankdesk/internal/accounts"
	"github.com/raysh454/rankdesk/internal/audit"
	"github.com/raysh454/rankdesk/internal/auth"
	"github.com/raysh454/rankdesk/internal/competitor"
	"github.com/raysh454/rankdesk/internal/metrics"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/server"
	"github.com/raysh454/rankdesk/internal/store/sqlite"
	"github.com/raysh454/rankdesk/internal/testutil"
)

type fixture struct {
	srv      *server.Server
	store    *sqlite.Store
	tokens   *auth.TokenManager
	provider *testutil.FakeProvider
	authn    *auth.StaticAuthenticator
	org      *model.Organization
	campaign *model.Campaign
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := &testutil.DummyLogger{}

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "server.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	prov := &testutil.FakeProvider{
		TaskID:      "T-1",
		SummaryData: model.Summary{"pages_crawled": 2},
		Pages: []model.PageFinding{
			{URL: "https://acme.test/a", Issues: model.IssueFlags{NoTitle: true}},
			{URL: "https://acme.test/b", Issues: model.IssueFlags{Is4xx: true}},
		},
	}
	authn := auth.NewStaticAuthenticator()
	m := metrics.New()

	cfg := audit.DefaultConfig()
	synth := audit.NewSynthesizer(audit.DefaultTemplates(), cfg.ChecklistLimit, st, logger, m)

	srv, err := server.New(server.Config{WatchInterval: 10 * time.Millisecond}, server.Deps{
		Store:       st,
		Accounts:    accounts.New(authn, st, tokens, logger),
		Tokens:      tokens,
		Audits:      audit.NewService(cfg, prov, synth, st, logger, m),
		Competitors: competitor.New(st, prov, logger),
		Metrics:     m,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	ctx := context.Background()
	org := &model.Organization{Name: "Acme", Slug: "acme", OwnerID: "u-admin"}
	if err := st.CreateOrganization(ctx, org); err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	c := &model.Campaign{OrganizationID: org.ID, Name: "Acme", Domain: "acme.test"}
	if err := st.CreateCampaign(ctx, c); err != nil {
		t.Fatalf("CreateCampaign: %v", err)
	}
	return &fixture{srv: srv, store: st, tokens: tokens, provider: prov, authn: authn, org: org, campaign: c}
}

// token issues a session for a user in the fixture's organization.
func (f *fixture) token(t *testing.T, userID, role string) string {
	t.Helper()
	return f.tokenIn(t, userID, role, f.org.ID)
}

func (f *fixture) tokenIn(t *testing.T, userID, role, orgID string) string {
	t.Helper()
	tok, err := f.tokens.Issue(auth.Identity{UserID: userID, Email: userID + "@acme.test", Role: role, OrganizationID: orgID})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, code int, msg string) {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected %d, got %d (body: %s)", code, rec.Code, rec.Body.String())
	}
	var body server.ErrorResponse
	decodeJSON(t, rec, &body)
	if body.Error != msg {
		t.Errorf("error = %q, want %q", body.Error, msg)
	}
}

// ─── Health & CORS ─────────────────────────────────────────────────────

func TestServer_CORS_HeaderPresent(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv, "GET", "/ping", "", "")

	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_Preflight(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv, "OPTIONS", "/api/campaigns", "", "")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PUT") {
		t.Errorf("allow methods = %q", got)
	}
}

func TestServer_Ping(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv, "GET", "/ping", "", "")

	var body server.PingResponse
	decodeJSON(t, rec, &body)
	if body.Status != "ok" || !body.StoreConnected {
		t.Errorf("unexpected ping: %+v", body)
	}
}

func TestServer_MetricsExposeRoutePatterns(t *testing.T) {
	f := newFixture(t)
	do(t, f.srv, "GET", "/api/campaigns/"+f.campaign.ID, f.token(t, "u-admin", auth.RoleAdmin), "")

	rec := do(t, f.srv, "GET", "/metrics", "", "")

	out, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(out), `route="/api/campaigns/{id}"`) {
		t.Errorf("metrics missing route pattern:\n%s", out)
	}
}

// ─── Auth ──────────────────────────────────────────────────────────────

func TestServer_RequiresAuthentication(t *testing.T) {
	f := newFixture(t)

	expectError(t, do(t, f.srv, "GET", "/api/campaigns", "", ""), http.StatusUnauthorized, "Authentication required")
	expectError(t, do(t, f.srv, "GET", "/api/campaigns", "garbage", ""), http.StatusUnauthorized, "Authentication required")
}

func TestServer_InsufficientPermissions(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "u-viewer", auth.RoleViewer)

	rec := do(t, f.srv, "POST", "/api/campaigns", tok, `{"name":"x","domain":"x.test"}`)

	expectError(t, rec, http.StatusForbidden, "Insufficient permissions")
}

func TestServer_LoginSetsSessionCookie(t *testing.T) {
	f := newFixture(t)
	f.authn.Add("u-jo", "jo@acme.test", "secret1", "Jo")

	rec := do(t, f.srv, "POST", "/api/auth/login", "", `{"email":"jo@acme.test","password":"secret1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("expected an http-only session cookie, got %+v", cookie)
	}

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	f.srv.ServeHTTP(me, req)

	var body server.SessionResponse
	decodeJSON(t, me, &body)
	if body.User.UserID != "u-jo" {
		t.Errorf("me = %+v", body.User)
	}
	if body.User.Role != auth.RoleAdmin || body.User.OrganizationID == "" {
		t.Errorf("login should backfill an organization with admin role, got %+v", body.User)
	}
	if body.RoleInfo.Name != "Administrator" {
		t.Errorf("role info = %+v", body.RoleInfo)
	}
}

func TestServer_LoginErrors(t *testing.T) {
	f := newFixture(t)
	f.authn.Add("u-jo", "jo@acme.test", "secret1", "Jo")

	expectError(t, do(t, f.srv, "POST", "/api/auth/login", "", `{"email":"jo@acme.test"}`),
		http.StatusBadRequest, "Email and password required")

	rec := do(t, f.srv, "POST", "/api/auth/login", "", `{"email":"jo@acme.test","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: expected 401, got %d", rec.Code)
	}
}

func TestServer_SignupThenDuplicate(t *testing.T) {
	f := newFixture(t)
	body := `{"email":"new@acme.test","password":"secret1","full_name":"New User"}`

	rec := do(t, f.srv, "POST", "/api/auth/signup", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}

	expectError(t, do(t, f.srv, "POST", "/api/auth/signup", "", body),
		http.StatusBadRequest, "An account with this email already exists. Please sign in.")
}

func TestServer_LogoutClearsCookie(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv, "POST", "/api/auth/logout", "", "")

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "session" || cookies[0].MaxAge >= 0 {
		t.Errorf("expected an expired session cookie, got %+v", cookies)
	}
}

// ─── Organizations ─────────────────────────────────────────────────────

func TestServer_OrganizationsAdminOnly(t *testing.T) {
	f := newFixture(t)

	expectError(t, do(t, f.srv, "GET", "/api/organizations", f.token(t, "u-m", auth.RoleCampaignManager), ""),
		http.StatusForbidden, "Insufficient permissions")

	admin := f.token(t, "u-admin", auth.RoleAdmin)
	rec := do(t, f.srv, "POST", "/api/organizations", admin, `{"name":"Beta Agency"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create org: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Organization model.Organization `json:"organization"`
	}
	decodeJSON(t, rec, &created)
	if !strings.HasPrefix(created.Organization.Slug, "beta-agency-") || created.Organization.OwnerID != "u-admin" {
		t.Errorf("unexpected organization: %+v", created.Organization)
	}

	var list struct {
		Organizations []model.Organization `json:"organizations"`
	}
	decodeJSON(t, do(t, f.srv, "GET", "/api/organizations", admin, ""), &list)
	if len(list.Organizations) != 2 {
		t.Errorf("expected 2 organizations, got %d", len(list.Organizations))
	}
}

// ─── Campaigns ─────────────────────────────────────────────────────────

type campaignsBody struct {
	Campaigns []model.Campaign `json:"campaigns"`
}

func TestServer_CampaignsScopedToOrganization(t *testing.T) {
	f := newFixture(t)
	other := &model.Organization{Name: "Other", Slug: "other"}
	if err := f.store.CreateOrganization(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	foreign := &model.Campaign{OrganizationID: other.ID, Name: "Foreign", Domain: "foreign.test"}
	if err := f.store.CreateCampaign(context.Background(), foreign); err != nil {
		t.Fatal(err)
	}

	var mine campaignsBody
	decodeJSON(t, do(t, f.srv, "GET", "/api/campaigns", f.token(t, "u-v", auth.RoleViewer), ""), &mine)
	if len(mine.Campaigns) != 1 || mine.Campaigns[0].ID != f.campaign.ID {
		t.Errorf("viewer should see only their organization's campaign, got %+v", mine.Campaigns)
	}

	var all campaignsBody
	decodeJSON(t, do(t, f.srv, "GET", "/api/campaigns", f.token(t, "u-admin", auth.RoleAdmin), ""), &all)
	if len(all.Campaigns) != 2 {
		t.Errorf("admin should see every campaign, got %d", len(all.Campaigns))
	}

	expectError(t, do(t, f.srv, "GET", "/api/campaigns/"+foreign.ID, f.token(t, "u-v", auth.RoleViewer), ""),
		http.StatusNotFound, "Campaign not found")
}

func TestServer_CampaignsWithoutOrganizationAreEmpty(t *testing.T) {
	f := newFixture(t)
	tok := f.tokenIn(t, "u-lost", auth.RoleCampaignManager, "")

	rec := do(t, f.srv, "GET", "/api/campaigns", tok, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"campaigns":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestServer_CreateAndUpdateCampaign(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "u-m", auth.RoleCampaignManager)

	rec := do(t, f.srv, "POST", "/api/campaigns", tok, `{"name":"Shop","domain":"shop.test"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Campaign model.Campaign `json:"campaign"`
	}
	decodeJSON(t, rec, &created)
	if created.Campaign.OrganizationID != f.org.ID || created.Campaign.Status != "active" {
		t.Errorf("unexpected campaign: %+v", created.Campaign)
	}

	expectError(t, do(t, f.srv, "PUT", "/api/campaigns/"+created.Campaign.ID, tok, `{}`),
		http.StatusBadRequest, "No fields to update")

	rec = do(t, f.srv, "PUT", "/api/campaigns/"+created.Campaign.ID, tok, `{"status":"paused"}`)
	var updated struct {
		Campaign model.Campaign `json:"campaign"`
	}
	decodeJSON(t, rec, &updated)
	if updated.Campaign.Status != "paused" || updated.Campaign.Name != "Shop" {
		t.Errorf("unexpected update: %+v", updated.Campaign)
	}
}

// ─── Tasks ─────────────────────────────────────────────────────────────

func (f *fixture) seedTask(t *testing.T, assignedTo string) *model.Task {
	t.Helper()
	task := &model.Task{CampaignID: f.campaign.ID, Type: "technical", Title: "Fix titles", AssignedTo: assignedTo}
	if err := f.store.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task
}

type tasksBody struct {
	Tasks []model.Task `json:"tasks"`
}

func TestServer_TasksVisibleToAssigneeOnly(t *testing.T) {
	f := newFixture(t)
	f.seedTask(t, "u-writer")
	f.seedTask(t, "u-other")

	var writer tasksBody
	decodeJSON(t, do(t, f.srv, "GET", "/api/tasks", f.token(t, "u-writer", auth.RoleContentCreator), ""), &writer)
	if len(writer.Tasks) != 1 || writer.Tasks[0].AssignedTo != "u-writer" {
		t.Errorf("content creator should see only assigned tasks, got %+v", writer.Tasks)
	}

	var manager tasksBody
	decodeJSON(t, do(t, f.srv, "GET", "/api/tasks?status=pending", f.token(t, "u-m", auth.RoleCampaignManager), ""), &manager)
	if len(manager.Tasks) != 2 {
		t.Errorf("manager should see every task, got %d", len(manager.Tasks))
	}
}

func TestServer_TasksScopedToOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := &model.Organization{Name: "Other", Slug: "other"}
	if err := f.store.CreateOrganization(ctx, other); err != nil {
		t.Fatal(err)
	}
	foreign := &model.Campaign{OrganizationID: other.ID, Name: "Foreign", Domain: "foreign.test"}
	if err := f.store.CreateCampaign(ctx, foreign); err != nil {
		t.Fatal(err)
	}
	theirs := &model.Task{CampaignID: foreign.ID, Type: "technical", Title: "Their titles"}
	if err := f.store.CreateTask(ctx, theirs); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	mine := f.seedTask(t, "u-writer")
	manager := f.token(t, "u-m", auth.RoleCampaignManager)

	var listed tasksBody
	decodeJSON(t, do(t, f.srv, "GET", "/api/tasks", manager, ""), &listed)
	if len(listed.Tasks) != 1 || listed.Tasks[0].ID != mine.ID {
		t.Errorf("manager should see only their organization's tasks, got %+v", listed.Tasks)
	}
	expectError(t, do(t, f.srv, "GET", "/api/tasks?campaign_id="+foreign.ID, manager, ""),
		http.StatusNotFound, "Campaign not found")
	expectError(t, do(t, f.srv, "PUT", "/api/tasks/"+theirs.ID, manager, `{"status":"done"}`),
		http.StatusNotFound, "Task not found")

	got, err := f.store.GetTask(ctx, theirs.ID)
	if err != nil || got.Status != model.TaskPending {
		t.Errorf("foreign task must be untouched: %v %+v", err, got)
	}

	var all tasksBody
	decodeJSON(t, do(t, f.srv, "GET", "/api/tasks", f.token(t, "u-admin", auth.RoleAdmin), ""), &all)
	if len(all.Tasks) != 2 {
		t.Errorf("admin should see every task, got %d", len(all.Tasks))
	}
}

func TestServer_UpdateTaskPermissions(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(t, "u-writer")

	expectError(t, do(t, f.srv, "PUT", "/api/tasks/"+task.ID, f.token(t, "u-other", auth.RoleContentCreator), `{"status":"done"}`),
		http.StatusForbidden, "Not authorized")
	expectError(t, do(t, f.srv, "PUT", "/api/tasks/missing", f.token(t, "u-m", auth.RoleCampaignManager), `{"status":"done"}`),
		http.StatusNotFound, "Task not found")
	expectError(t, do(t, f.srv, "PUT", "/api/tasks/"+task.ID, f.token(t, "u-writer", auth.RoleContentCreator), `{"status":"archived"}`),
		http.StatusBadRequest, "Invalid status")
}

func TestServer_AssigneeCannotReassign(t *testing.T) {
	f := newFixture(t)
	task := f.seedTask(t, "u-writer")

	rec := do(t, f.srv, "PUT", "/api/tasks/"+task.ID, f.token(t, "u-writer", auth.RoleContentCreator),
		`{"status":"in_progress","assigned_to":"u-writer-2"}`)

	var body struct {
		Task model.Task `json:"task"`
	}
	decodeJSON(t, rec, &body)
	if body.Task.Status != model.TaskInProgress {
		t.Errorf("status = %q", body.Task.Status)
	}
	if body.Task.AssignedTo != "u-writer" {
		t.Errorf("assignee must not reassign, got %q", body.Task.AssignedTo)
	}

	rec = do(t, f.srv, "PUT", "/api/tasks/"+task.ID, f.token(t, "u-m", auth.RoleCampaignManager), `{"assigned_to":"u-writer-2"}`)
	decodeJSON(t, rec, &body)
	if body.Task.AssignedTo != "u-writer-2" {
		t.Errorf("manager reassign failed, got %q", body.Task.AssignedTo)
	}
}

func TestServer_CreateTaskNeedsAssignPermission(t *testing.T) {
	f := newFixture(t)
	payload := `{"campaign_id":"` + f.campaign.ID + `","title":"Write brief","type":"content","priority":2}`

	expectError(t, do(t, f.srv, "POST", "/api/tasks", f.token(t, "u-r", auth.RoleReportingManager), payload),
		http.StatusForbidden, "Insufficient permissions")

	rec := do(t, f.srv, "POST", "/api/tasks", f.token(t, "u-m", auth.RoleCampaignManager), payload)
	var body struct {
		Task model.Task `json:"task"`
	}
	decodeJSON(t, rec, &body)
	if body.Task.Status != model.TaskPending || body.Task.Priority != 2 || body.Task.ID == "" {
		t.Errorf("unexpected task: %+v", body.Task)
	}
}

// ─── Audits ────────────────────────────────────────────────────────────

type auditBody struct {
	Audit   model.Audit `json:"audit"`
	Message string      `json:"message"`
}

func (f *fixture) startAudit(t *testing.T) model.Audit {
	t.Helper()
	rec := do(t, f.srv, "POST", "/api/audits", f.token(t, "u-m", auth.RoleCampaignManager),
		`{"campaign_id":"`+f.campaign.ID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start audit: %d %s", rec.Code, rec.Body.String())
	}
	var body auditBody
	decodeJSON(t, rec, &body)
	return body.Audit
}

func TestServer_StartAuditThenLazyFinalize(t *testing.T) {
	f := newFixture(t)
	f.provider.NotReadyFor = 1
	tok := f.token(t, "u-v", auth.RoleViewer)

	a := f.startAudit(t)
	if a.Status != model.AuditCrawling || a.DataForSEOTaskID != "T-1" {
		t.Fatalf("unexpected started audit: %+v", a)
	}

	var first auditBody
	decodeJSON(t, do(t, f.srv, "GET", "/api/audits/"+a.ID, tok, ""), &first)
	if first.Audit.Status != model.AuditCrawling {
		t.Errorf("first read: status = %q, want crawling", first.Audit.Status)
	}

	var second auditBody
	decodeJSON(t, do(t, f.srv, "GET", "/api/audits/"+a.ID, tok, ""), &second)
	if second.Audit.Status != model.AuditCompleted {
		t.Fatalf("second read: status = %q, want completed", second.Audit.Status)
	}
	if len(second.Audit.Results.Pages) != 2 {
		t.Errorf("expected 2 stored pages, got %d", len(second.Audit.Results.Pages))
	}

	tasks, err := f.store.ListTasks(context.Background(), model.TaskFilter{CampaignID: f.campaign.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 2 {
		t.Errorf("expected 2 synthesized tasks, got %d", len(tasks))
	}
}

func TestServer_FinalizingIsReportedAsCrawling(t *testing.T) {
	f := newFixture(t)
	a := f.startAudit(t)
	now := time.Now()
	if won, err := f.store.ClaimAuditFinalize(context.Background(), a.ID, now, now.Add(-time.Hour)); err != nil || !won {
		t.Fatalf("claim: won=%v err=%v", won, err)
	}

	var body auditBody
	decodeJSON(t, do(t, f.srv, "GET", "/api/audits/"+a.ID, f.token(t, "u-v", auth.RoleViewer), ""), &body)

	if body.Audit.Status != model.AuditCrawling {
		t.Errorf("status = %q, want crawling", body.Audit.Status)
	}
}

func TestServer_StartAuditErrors(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "u-m", auth.RoleCampaignManager)

	expectError(t, do(t, f.srv, "POST", "/api/audits", tok, `{}`), http.StatusBadRequest, "Campaign ID required")
	expectError(t, do(t, f.srv, "POST", "/api/audits", tok, `{"campaign_id":"nope"}`), http.StatusNotFound, "Campaign not found")

	f.provider.SubmitErr = errors.New("insufficient funds")
	expectError(t, do(t, f.srv, "POST", "/api/audits", tok, `{"campaign_id":"`+f.campaign.ID+`"}`),
		http.StatusInternalServerError, "Failed to start audit: insufficient funds")

	as, err := f.store.ListAudits(context.Background(), f.campaign.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(as) != 0 {
		t.Errorf("a refused submit must not be recorded, got %d audits", len(as))
	}
}

func TestServer_ListAuditsScoped(t *testing.T) {
	f := newFixture(t)
	f.startAudit(t)

	var mine struct {
		Audits []model.Audit `json:"audits"`
	}
	decodeJSON(t, do(t, f.srv, "GET", "/api/audits", f.token(t, "u-v", auth.RoleViewer), ""), &mine)
	if len(mine.Audits) != 1 {
		t.Errorf("expected 1 audit, got %d", len(mine.Audits))
	}

	var outsider struct {
		Audits []model.Audit `json:"audits"`
	}
	decodeJSON(t, do(t, f.srv, "GET", "/api/audits", f.tokenIn(t, "u-x", auth.RoleViewer, "elsewhere"), ""), &outsider)
	if len(outsider.Audits) != 0 {
		t.Errorf("outsider should see no audits, got %d", len(outsider.Audits))
	}
}

func TestServer_WatchAuditUntilTerminal(t *testing.T) {
	f := newFixture(t)
	f.provider.NotReadyFor = 2
	a := f.startAudit(t)

	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+f.token(t, "u-v", auth.RoleViewer))
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/audits/"+a.ID, header)
	if err != nil {
		t.Fatalf("dial: %v (resp: %+v)", err, resp)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var statuses []model.AuditStatus
	for {
		var msg auditBody
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read: %v", err)
			}
			break
		}
		statuses = append(statuses, msg.Audit.Status)
	}

	if len(statuses) < 2 {
		t.Fatalf("expected several snapshots, got %v", statuses)
	}
	if statuses[0] != model.AuditCrawling || statuses[len(statuses)-1] != model.AuditCompleted {
		t.Errorf("unexpected snapshot sequence %v", statuses)
	}
}

// ─── Competitors ───────────────────────────────────────────────────────

func TestServer_AnalyzeCompetitors(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "u-m", auth.RoleCampaignManager)

	expectError(t, do(t, f.srv, "POST", "/api/competitors/analyze", tok, `{"competitors":["rival.test"]}`),
		http.StatusBadRequest, "Campaign ID required")

	rec := do(t, f.srv, "POST", "/api/competitors/analyze", tok,
		`{"campaign_id":"`+f.campaign.ID+`","competitors":["rival.test",""]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze: %d %s", rec.Code, rec.Body.String())
	}
	var body server.AnalyzeCompetitorsResponse
	decodeJSON(t, rec, &body)
	if !body.Success || body.Target["domain"] != "acme.test" || len(body.Competitors) != 1 {
		t.Errorf("unexpected analysis: %+v", body)
	}

	c, err := f.store.GetCampaign(context.Background(), f.campaign.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Settings["last_competitor_analysis"]; !ok {
		t.Errorf("analysis not cached in settings: %+v", c.Settings)
	}
}
