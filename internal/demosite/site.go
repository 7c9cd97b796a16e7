// Package demosite serves a small website with known SEO defects. Each page
// has a Before version with a defect and an After version with it fixed, so
// an audit can be run, the site repaired from the control panel, and the
// audit run again.
package demosite

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/rankdesk/internal/logging"
)

// Site is the demo HTTP site.
type Site struct {
	cfg      Config
	logger   logging.Logger
	pages    map[string]PageDefinition
	versions map[string]int // path -> current version
	mu       sync.RWMutex
}

// New creates a demo site with every page at cfg.InitialVersion.
func New(cfg Config, logger logging.Logger) *Site {
	if logger == nil {
		logger = logging.Nop{}
	}
	if cfg.InitialVersion == 0 {
		cfg.InitialVersion = Before
	}
	s := &Site{
		cfg:      cfg,
		logger:   logger.With(logging.F("component", "demosite")),
		pages:    make(map[string]PageDefinition),
		versions: make(map[string]int),
	}
	for _, p := range GetAllPages() {
		s.pages[p.Path] = p
		s.versions[p.Path] = cfg.InitialVersion
	}
	return s
}

// Handler returns the site's routes.
func (s *Site) Handler() http.Handler {
	r := chi.NewRouter()
	for path := range s.pages {
		r.Get(path, s.pageHandler(path))
	}

	r.Get("/demo/control", s.controlPanelHandler)
	r.Get("/demo/versions", s.getVersionsHandler)
	r.Post("/demo/set-version", s.setVersionHandler)
	r.Post("/demo/fix-all", s.setAllHandler(After))
	r.Post("/demo/reset", s.setAllHandler(Before))
	return r
}

// Run serves until ctx is cancelled.
func (s *Site) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("demo site listening",
			logging.F("addr", s.cfg.Addr),
			logging.F("control_panel", "/demo/control"))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Version reports the version path is currently served at.
func (s *Site) Version(path string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[path]
	return v, ok
}

// SetVersion switches one page. It fails for unknown pages and versions.
func (s *Site) SetVersion(path string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[path]
	if !ok {
		return errors.New("unknown page " + path)
	}
	if _, ok := p.Versions[version]; !ok {
		return errors.New("page " + path + " has no version " + strconv.Itoa(version))
	}
	s.versions[path] = version
	return nil
}

func (s *Site) setAll(version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path := range s.versions {
		s.versions[path] = version
	}
}

func (s *Site) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		pv := s.pages[path].Versions[s.versions[path]]
		s.mu.RUnlock()

		if pv.Delay && s.cfg.SlowDelay > 0 {
			select {
			case <-time.After(s.cfg.SlowDelay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(pv.Status)
		_, _ = w.Write([]byte(pv.HTML))
	}
}

type pageInfo struct {
	Path              string `json:"path"`
	Description       string `json:"description"`
	CurrentVersion    int    `json:"current_version"`
	AvailableVersions []int  `json:"available_versions"`
}

func (s *Site) snapshot() []pageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make([]pageInfo, 0, len(s.pages))
	for path, def := range s.pages {
		versions := make([]int, 0, len(def.Versions))
		for v := range def.Versions {
			versions = append(versions, v)
		}
		sort.Ints(versions)
		pages = append(pages, pageInfo{
			Path:              path,
			Description:       def.Description,
			CurrentVersion:    s.versions[path],
			AvailableVersions: versions,
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Site) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Site) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid version number"})
		return
	}
	if err := s.SetVersion(path, version); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	s.logger.Info("page version changed", logging.F("path", path), logging.F("version", version))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "path": path, "version": version})
}

func (s *Site) setAllHandler(version int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.setAll(version)
		s.logger.Info("all pages switched", logging.F("version", version))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "version": version})
	}
}

var controlPanel = template.Must(template.New("control").Parse(controlPanelHTML))

func (s *Site) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := controlPanel.Execute(w, s.snapshot()); err != nil {
		s.logger.Warn("render control panel", logging.Err(err))
	}
}

const controlPanelHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Demo Site Control Panel</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 960px; margin: 0 auto; padding: 20px; }
        table { border-collapse: collapse; width: 100%; }
        td, th { border-bottom: 1px solid #ddd; padding: 8px; text-align: left; }
        .fixed { color: #28a745; font-weight: bold; }
        .broken { color: #dc3545; font-weight: bold; }
    </style>
</head>
<body>
    <h1>Demo Site Control Panel</h1>
    <p>Version 1 carries the defect, version 2 has it fixed.</p>
    <form method="post" action="/demo/fix-all" style="display:inline"><button>Fix all</button></form>
    <form method="post" action="/demo/reset" style="display:inline"><button>Reset</button></form>
    <table>
        <tr><th>Page</th><th>Defect</th><th>Version</th><th></th></tr>
        {{range .}}
        <tr>
            <td><a href="{{.Path}}">{{.Path}}</a></td>
            <td>{{.Description}}</td>
            <td class="{{if eq .CurrentVersion 1}}broken{{else}}fixed{{end}}">{{.CurrentVersion}}</td>
            <td>{{$p := .Path}}{{range .AvailableVersions}}
                <form method="post" action="/demo/set-version" style="display:inline">
                    <input type="hidden" name="path" value="{{$p}}">
                    <input type="hidden" name="version" value="{{.}}">
                    <button>v{{.}}</button>
                </form>{{end}}
            </td>
        </tr>
        {{end}}
    </table>
</body>
</html>
`
