package migrate

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/raysh454/rankdesk/internal/model"
)

// Report is a read-only snapshot of tenant ownership.
type Report struct {
	Profiles      []model.Profile      `json:"profiles"`
	Organizations []model.Organization `json:"organizations"`
	Campaigns     []model.Campaign     `json:"campaigns"`
	Audits        []model.Audit        `json:"audits"`
	Orphans       int                  `json:"orphans"`
}

// Inspect loads the snapshot.
func Inspect(ctx context.Context, st Store) (*Report, error) {
	var r Report
	var err error
	if r.Profiles, err = st.ListProfiles(ctx); err != nil {
		return nil, err
	}
	if r.Organizations, err = st.ListOrganizations(ctx); err != nil {
		return nil, err
	}
	if r.Campaigns, err = st.ListCampaigns(ctx, ""); err != nil {
		return nil, err
	}
	if r.Audits, err = st.ListAudits(ctx, ""); err != nil {
		return nil, err
	}
	for _, c := range r.Campaigns {
		if c.OrganizationID == "" {
			r.Orphans++
		}
	}
	return &r, nil
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	if id == "" {
		return "-"
	}
	return id
}

// Write prints the report as aligned tables.
func (r *Report) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Profiles (%d)\n", len(r.Profiles))
	fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tORG")
	for _, p := range r.Profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", short(p.ID), p.Email, p.Role, short(p.OrganizationID))
	}

	fmt.Fprintf(tw, "\nOrganizations (%d)\n", len(r.Organizations))
	fmt.Fprintln(tw, "ID\tNAME\tOWNER")
	for _, o := range r.Organizations {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", short(o.ID), o.Name, short(o.OwnerID))
	}

	fmt.Fprintf(tw, "\nCampaigns (%d, %d orphaned)\n", len(r.Campaigns), r.Orphans)
	fmt.Fprintln(tw, "ID\tDOMAIN\tORG")
	for _, c := range r.Campaigns {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", short(c.ID), c.Domain, short(c.OrganizationID))
	}

	fmt.Fprintf(tw, "\nAudits (%d)\n", len(r.Audits))
	fmt.Fprintln(tw, "ID\tCAMPAIGN\tSTATUS")
	for _, a := range r.Audits {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", short(a.ID), short(a.CampaignID), a.PublicStatus())
	}
	return tw.Flush()
}
