package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/rankdesk/internal/auth"
	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := identity(r)
	q := r.URL.Query()
	f := model.TaskFilter{
		CampaignID: q.Get("campaign_id"),
		Status:     model.TaskStatus(q.Get("status")),
	}
	if !auth.CanManageTasks(id.Role) {
		f.AssignedTo = id.UserID
	}
	if f.CampaignID != "" && s.visibleCampaign(w, r, f.CampaignID) == nil {
		return
	}
	ts, err := s.deps.Store.ListTasks(ctx, f)
	if err != nil {
		s.writeStoreError(w, err, "listing tasks", "Task not found")
		return
	}

	// Only admins see tasks across organizations.
	if f.CampaignID == "" && !id.IsAdmin() {
		owned, err := s.ownedCampaigns(ctx, id)
		if err != nil {
			s.writeStoreError(w, err, "listing campaigns", "Campaign not found")
			return
		}
		kept := ts[:0]
		for _, t := range ts {
			if owned[t.CampaignID] {
				kept = append(kept, t)
			}
		}
		ts = kept
	}
	if ts == nil {
		ts = []model.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": ts})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body CreateTaskRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(body.CampaignID) == "" || strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "Campaign ID and title required")
		return
	}
	c := s.visibleCampaign(w, r, body.CampaignID)
	if c == nil {
		return
	}
	t := &model.Task{
		CampaignID:   c.ID,
		Type:         body.Type,
		Title:        body.Title,
		Description:  body.Description,
		Checklist:    body.Checklist,
		AssignedTo:   body.AssignedTo,
		AssignedRole: body.AssignedRole,
		Priority:     body.Priority,
		Status:       model.TaskPending,
		DueDate:      body.DueDate,
	}
	if err := s.deps.Store.CreateTask(r.Context(), t); err != nil {
		s.writeStoreError(w, err, "creating task", "Campaign not found")
		return
	}
	t.Campaign = &model.CampaignRef{Name: c.Name, Domain: c.Domain}
	s.logger.Info("created task", logging.F("task_id", t.ID), logging.F("campaign_id", c.ID))
	writeJSON(w, http.StatusOK, map[string]any{"task": t})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	var body UpdateTaskRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Status != nil && !body.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	t, err := s.deps.Store.GetTask(r.Context(), taskID)
	if err != nil {
		s.writeStoreError(w, err, "getting task", "Task not found")
		return
	}
	id := identity(r)
	c, err := s.deps.Store.GetCampaign(r.Context(), t.CampaignID)
	if err != nil {
		s.writeStoreError(w, err, "getting campaign", "Task not found")
		return
	}
	if !canSeeCampaign(id, c) {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	manager := auth.CanManageTasks(id.Role)
	if !manager && t.AssignedTo != id.UserID {
		writeError(w, http.StatusForbidden, "Not authorized")
		return
	}

	upd := model.TaskUpdate{Status: body.Status, Checklist: body.Checklist}
	if manager {
		upd.AssignedTo = body.AssignedTo
	}
	updated, err := s.deps.Store.UpdateTask(r.Context(), taskID, upd)
	if err != nil {
		s.writeStoreError(w, err, "updating task", "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": updated})
}
