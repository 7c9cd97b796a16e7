// Package auth holds the role table, the request-scoped identity and the
// session tokens that carry it.
package auth

const (
	RoleAdmin                  = "admin"
	RoleCampaignManager        = "campaign_manager"
	RoleContentStrategist      = "content_strategist"
	RoleContentCreator         = "content_creator"
	RoleOptimizationSpecialist = "optimization_specialist"
	RoleLinkBuilder            = "link_builder"
	RoleReportingManager       = "reporting_manager"
	RoleViewer                 = "viewer"

	// PermAll grants every permission.
	PermAll = "all"

	PermViewAllCampaigns = "view_all_campaigns"
	PermAssignTasks      = "assign_tasks"
)

// Role is a named permission set.
type Role struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

var roles = map[string]Role{
	RoleAdmin: {Name: "Administrator", Permissions: []string{PermAll}},
	RoleCampaignManager: {Name: "Campaign Manager",
		Permissions: []string{PermViewAllCampaigns, PermAssignTasks, "view_reports", "manage_team"}},
	RoleContentStrategist: {Name: "Content Strategist",
		Permissions: []string{"view_campaigns", "manage_keywords", "manage_content_calendar", "create_briefs"}},
	RoleContentCreator: {Name: "Content Creator",
		Permissions: []string{"view_assigned_tasks", "create_content", "submit_drafts"}},
	RoleOptimizationSpecialist: {Name: "Optimization Specialist",
		Permissions: []string{"view_assigned_tasks", "view_audits", "fix_issues"}},
	RoleLinkBuilder: {Name: "Link Builder",
		Permissions: []string{"view_assigned_tasks", "manage_links", "track_placements"}},
	RoleReportingManager: {Name: "Reporting Manager",
		Permissions: []string{PermViewAllCampaigns, "create_reports", "export_data"}},
	RoleViewer: {Name: "Client Viewer", Permissions: []string{"view_own_campaign"}},
}

// RoleInfo returns the role's definition. Unknown roles yield the zero Role.
func RoleInfo(role string) Role {
	r, ok := roles[role]
	if !ok {
		return Role{}
	}
	r.Permissions = append([]string(nil), r.Permissions...)
	return r
}

// KnownRole reports whether role is in the table.
func KnownRole(role string) bool {
	_, ok := roles[role]
	return ok
}

// HasPermission reports whether role grants perm.
func HasPermission(role, perm string) bool {
	for _, p := range roles[role].Permissions {
		if p == PermAll || p == perm {
			return true
		}
	}
	return false
}

// HasRole reports whether role is one of allowed. Admin always passes.
func HasRole(role string, allowed ...string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

// CanManageTasks reports whether role sees and reassigns every task.
func CanManageTasks(role string) bool {
	return role == RoleAdmin || role == RoleCampaignManager
}
