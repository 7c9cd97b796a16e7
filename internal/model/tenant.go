package model

import "time"

// Organization is the tenant boundary.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the application-side record of an authenticated user.
type Profile struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name,omitempty"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// Campaign is one client website an organization works on.
type Campaign struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Name           string         `json:"name"`
	Domain         string         `json:"domain"`
	Settings       map[string]any `json:"settings"`
	Status         string         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CampaignRef is the joined projection returned alongside tasks and audits.
type CampaignRef struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// CampaignUpdate carries the mutable campaign fields; nil means unchanged.
type CampaignUpdate struct {
	Name     *string
	Domain   *string
	Settings map[string]any
	Status   *string
}

// Empty reports whether no field is set.
func (u CampaignUpdate) Empty() bool {
	return u.Name == nil && u.Domain == nil && u.Settings == nil && u.Status == nil
}
