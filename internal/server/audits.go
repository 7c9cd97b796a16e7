package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raysh454/rankdesk/internal/audit"
	"github.com/raysh454/rankdesk/internal/competitor"
	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
	"github.com/raysh454/rankdesk/internal/store"
)

// Audits

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := identity(r)
	campaignID := r.URL.Query().Get("campaign_id")

	if campaignID != "" && s.visibleCampaign(w, r, campaignID) == nil {
		return
	}
	as, err := s.deps.Store.ListAudits(ctx, campaignID)
	if err != nil {
		s.writeStoreError(w, err, "listing audits", "Audit not found")
		return
	}

	if campaignID == "" && !id.IsAdmin() {
		owned, err := s.ownedCampaigns(ctx, id)
		if err != nil {
			s.writeStoreError(w, err, "listing campaigns", "Campaign not found")
			return
		}
		kept := as[:0]
		for _, a := range as {
			if owned[a.CampaignID] {
				kept = append(kept, a)
			}
		}
		as = kept
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": publicAudits(as)})
}

func (s *Server) handleStartAudit(w http.ResponseWriter, r *http.Request) {
	var body audit.StartRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.CampaignID) == "" {
		writeError(w, http.StatusBadRequest, "Campaign ID required")
		return
	}
	if s.visibleCampaign(w, r, body.CampaignID) == nil {
		return
	}

	a, err := s.deps.Audits.Start(r.Context(), body)
	var submitErr *audit.SubmitError
	switch {
	case errors.As(err, &submitErr):
		writeError(w, http.StatusInternalServerError, "Failed to start audit: "+submitErr.Err.Error())
		return
	case err != nil:
		s.writeStoreError(w, err, "starting audit", "Campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, StartAuditResponse{Audit: publicAudit(a), Message: "Audit started successfully"})
}

// visibleAudit checks the caller may see the audit's campaign, then
// refreshes it. It writes the response and returns nil otherwise.
func (s *Server) visibleAudit(w http.ResponseWriter, r *http.Request, id string) *model.Audit {
	a, err := s.deps.Store.GetAudit(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "getting audit", "Audit not found")
		return nil
	}
	if caller := identity(r); !caller.IsAdmin() {
		c, err := s.deps.Store.GetCampaign(r.Context(), a.CampaignID)
		if err != nil || !canSeeCampaign(caller, c) {
			writeError(w, http.StatusNotFound, "Audit not found")
			return nil
		}
	}
	a, err = s.deps.Audits.Refresh(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "refreshing audit", "Audit not found")
		return nil
	}
	return a
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	a := s.visibleAudit(w, r, chi.URLParam(r, "id"))
	if a == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": publicAudit(a)})
}

// WebSockets

// handleWatchAudit pushes the audit after every refresh until it reaches
// a terminal status or the client goes away.
func (s *Server) handleWatchAudit(w http.ResponseWriter, r *http.Request) {
	auditID := chi.URLParam(r, "id")
	a := s.visibleAudit(w, r, auditID)
	if a == nil {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// Reads only surface the close; the client sends nothing.
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	log := s.logger.With(logging.F("audit_id", auditID))
	ticker := time.NewTicker(s.cfg.WatchInterval)
	defer ticker.Stop()
	for {
		if err := conn.WriteJSON(map[string]any{"audit": publicAudit(a)}); err != nil {
			log.Debug("audit watcher went away", logging.Err(err))
			return
		}
		if a.Status.Terminal() {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(a.Status)))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next, err := s.deps.Audits.Refresh(ctx, auditID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Warn("refreshing watched audit", logging.Err(err))
			}
			_ = conn.WriteJSON(ErrorResponse{Error: err.Error()})
			return
		}
		a = next
	}
}

// Competitors

func (s *Server) handleAnalyzeCompetitors(w http.ResponseWriter, r *http.Request) {
	if s.deps.Competitors == nil {
		writeError(w, http.StatusServiceUnavailable, "Competitor analysis is not configured")
		return
	}
	var body AnalyzeCompetitorsRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.CampaignID) == "" {
		writeError(w, http.StatusBadRequest, "Campaign ID required")
		return
	}
	if s.visibleCampaign(w, r, body.CampaignID) == nil {
		return
	}
	res, err := s.deps.Competitors.Analyze(r.Context(), body.CampaignID, body.Competitors)
	switch {
	case errors.Is(err, competitor.ErrCampaignRequired):
		writeError(w, http.StatusBadRequest, "Campaign ID required")
		return
	case err != nil:
		s.writeStoreError(w, err, "analyzing competitors", "Campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeCompetitorsResponse{
		Success:     true,
		Target:      res.Target,
		Competitors: res.Competitors,
	})
}
