package catalog

// Selection picks periods × roles out of a catalog. An empty list selects everything
// on that axis.
type Selection struct {
	Periods []string
	Roles   []Role
}

// Apply keeps selected entries, grouped by period in selection order and by role in
// selection order inside each period.
func (s Selection) Apply(c *Catalog) *Catalog {
	periods := s.Periods
	if len(periods) == 0 {
		periods = c.Periods()
	}
	roles := s.Roles
	if len(roles) == 0 {
		roles = Roles()
	}

	out := New()
	for _, p := range periods {
		byPeriod := c.FilterByPeriod(p)
		for _, r := range roles {
			out = out.Merge(byPeriod.FilterByRole(r))
		}
	}
	return out
}
