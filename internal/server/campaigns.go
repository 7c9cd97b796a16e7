package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/rankdesk/internal/accounts"
	"github.com/raysh454/rankdesk/internal/auth"
	"github.com/raysh454/rankdesk/internal/logging"
	"github.com/raysh454/rankdesk/internal/model"
)

// Organizations

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.deps.Store.ListOrganizations(r.Context())
	if err != nil {
		s.writeStoreError(w, err, "listing organizations", "Organization not found")
		return
	}
	if orgs == nil {
		orgs = []model.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var body CreateOrganizationRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "Name required")
		return
	}
	if body.Slug == "" {
		body.Slug = accounts.Slug(body.Name, time.Now())
	}
	org := &model.Organization{Name: body.Name, Slug: body.Slug, OwnerID: identity(r).UserID}
	if err := s.deps.Store.CreateOrganization(r.Context(), org); err != nil {
		s.writeStoreError(w, err, "creating organization", "Organization not found")
		return
	}
	s.logger.Info("created organization", logging.F("organization_id", org.ID))
	writeJSON(w, http.StatusOK, map[string]any{"organization": org})
}

// Campaigns

// visibleCampaign loads a campaign and hides it from callers outside its
// organization. It writes the response and returns nil when the caller
// may not see it.
func (s *Server) visibleCampaign(w http.ResponseWriter, r *http.Request, id string) *model.Campaign {
	c, err := s.deps.Store.GetCampaign(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "getting campaign", "Campaign not found")
		return nil
	}
	if !canSeeCampaign(identity(r), c) {
		writeError(w, http.StatusNotFound, "Campaign not found")
		return nil
	}
	return c
}

func canSeeCampaign(id auth.Identity, c *model.Campaign) bool {
	if id.IsAdmin() {
		return true
	}
	return id.OrganizationID != "" && c.OrganizationID == id.OrganizationID
}

// ownedCampaigns returns the IDs of the campaigns in id's organization.
func (s *Server) ownedCampaigns(ctx context.Context, id auth.Identity) (map[string]bool, error) {
	owned := map[string]bool{}
	if id.OrganizationID == "" {
		return owned, nil
	}
	cs, err := s.deps.Store.ListCampaigns(ctx, id.OrganizationID)
	if err != nil {
		return nil, err
	}
	for _, c := range cs {
		owned[c.ID] = true
	}
	return owned, nil
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	orgID := ""
	if !id.IsAdmin() {
		if id.OrganizationID == "" {
			writeJSON(w, http.StatusOK, map[string]any{"campaigns": []model.Campaign{}})
			return
		}
		orgID = id.OrganizationID
	}
	cs, err := s.deps.Store.ListCampaigns(r.Context(), orgID)
	if err != nil {
		s.writeStoreError(w, err, "listing campaigns", "Campaign not found")
		return
	}
	if cs == nil {
		cs = []model.Campaign{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": cs})
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c := s.visibleCampaign(w, r, chi.URLParam(r, "id"))
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign": c})
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body CreateCampaignRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Domain = strings.TrimSpace(body.Domain)
	if body.Name == "" || body.Domain == "" {
		writeError(w, http.StatusBadRequest, "Name and domain required")
		return
	}
	if body.Settings == nil {
		body.Settings = map[string]any{}
	}
	c := &model.Campaign{
		OrganizationID: identity(r).OrganizationID,
		Name:           body.Name,
		Domain:         body.Domain,
		Settings:       body.Settings,
		Status:         "active",
	}
	if err := s.deps.Store.CreateCampaign(r.Context(), c); err != nil {
		s.writeStoreError(w, err, "creating campaign", "Campaign not found")
		return
	}
	s.logger.Info("created campaign", logging.F("campaign_id", c.ID), logging.F("domain", c.Domain))
	writeJSON(w, http.StatusOK, map[string]any{"campaign": c})
}

func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var body UpdateCampaignRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	upd := model.CampaignUpdate{Name: body.Name, Domain: body.Domain, Settings: body.Settings, Status: body.Status}
	if upd.Empty() {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	c := s.visibleCampaign(w, r, chi.URLParam(r, "id"))
	if c == nil {
		return
	}
	updated, err := s.deps.Store.UpdateCampaign(r.Context(), c.ID, upd)
	if err != nil {
		s.writeStoreError(w, err, "updating campaign", "Campaign not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign": updated})
}
