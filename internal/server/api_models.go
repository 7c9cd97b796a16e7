package server

import (
	"time"

	"github.com/raysh454/rankdesk/internal/auth"
	"github.com/raysh454/rankdesk/internal/model"
)

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"Campaign not found"`
}

// PingResponse reports liveness and store connectivity.
type PingResponse struct {
	Status         string `json:"status" example:"ok"`
	Message        string `json:"message"`
	StoreConnected bool   `json:"store_connected"`
}

// CredentialsRequest is the login payload.
type CredentialsRequest struct {
	Email    string `json:"email" example:"jo@agency.test"`
	Password string `json:"password"`
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Email    string `json:"email" example:"jo@agency.test"`
	Password string `json:"password"`
	FullName string `json:"full_name" example:"Jo Doe"`
}

// SessionResponse is returned by login and /me. Token is only set on login.
type SessionResponse struct {
	Success  bool          `json:"success,omitempty"`
	User     auth.Identity `json:"user"`
	RoleInfo auth.Role     `json:"role_info"`
	Token    string        `json:"token,omitempty"`
}

// MessageResponse is a bare success acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CreateOrganizationRequest creates a tenant. An empty slug is derived
// from the name.
type CreateOrganizationRequest struct {
	Name string `json:"name" example:"Acme SEO"`
	Slug string `json:"slug" example:"acme-seo"`
}

// CreateCampaignRequest creates a campaign in the caller's organization.
type CreateCampaignRequest struct {
	Name     string         `json:"name" example:"Example Inc"`
	Domain   string         `json:"domain" example:"example.com"`
	Settings map[string]any `json:"settings"`
}

// UpdateCampaignRequest carries only the fields to change.
type UpdateCampaignRequest struct {
	Name     *string        `json:"name"`
	Domain   *string        `json:"domain"`
	Settings map[string]any `json:"settings"`
	Status   *string        `json:"status"`
}

// CreateTaskRequest creates a task by hand.
type CreateTaskRequest struct {
	CampaignID   string                `json:"campaign_id"`
	Type         string                `json:"type" example:"technical"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Checklist    []model.ChecklistItem `json:"checklist"`
	AssignedTo   string                `json:"assigned_to"`
	AssignedRole string                `json:"assigned_role" example:"optimization_specialist"`
	Priority     int                   `json:"priority"`
	DueDate      *time.Time            `json:"due_date"`
}

// UpdateTaskRequest carries only the fields to change. AssignedTo is
// ignored unless the caller manages tasks.
type UpdateTaskRequest struct {
	Status     *model.TaskStatus     `json:"status"`
	Checklist  []model.ChecklistItem `json:"checklist"`
	AssignedTo *string               `json:"assigned_to"`
}

// StartAuditResponse is returned once the provider accepted the crawl.
type StartAuditResponse struct {
	Audit   *model.Audit `json:"audit"`
	Message string       `json:"message"`
}

// AnalyzeCompetitorsRequest compares a campaign with competitor domains.
type AnalyzeCompetitorsRequest struct {
	CampaignID  string   `json:"campaign_id"`
	Competitors []string `json:"competitors" example:"[\"rival.com\"]"`
}

// AnalyzeCompetitorsResponse echoes the cached comparison.
type AnalyzeCompetitorsResponse struct {
	Success     bool             `json:"success"`
	Target      map[string]any   `json:"target"`
	Competitors []map[string]any `json:"competitors"`
}
