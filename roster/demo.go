package roster

// DemoRoster is the dashboard's seed roster, extended so every payout role
// has a holder. Records are untagged so roles resolve through title aliases.
func DemoRoster() []Employee {
	return []Employee{
		{ID: "emp-meech", Name: "Meech", JobTitle: "CEO", Team: CSuite},
		{ID: "emp-nya", Name: "Nya", JobTitle: "COO", Team: CSuite},
		{ID: "emp-dre", Name: "Dre", JobTitle: "CFO", Team: CSuite},
		{ID: "emp-company", Name: "Company", JobTitle: "Company", Team: CSuite},
		{ID: "emp-tosh", Name: "Tosh", JobTitle: "Content Manager", Team: ContentTeam},
		{ID: "emp-rae", Name: "Rae", JobTitle: "VP of Content Operations", Team: ContentTeam},
		{ID: "emp-chris", Name: "Chris", JobTitle: "Streamer", Team: StreamerTeam},
		{ID: "emp-jesy", Name: "Jesy", JobTitle: "Streaming Growth & Partnerships Lead", Team: StreamerTeam},
		{ID: "emp-kai", Name: "Kai", JobTitle: "VP of Video Content Distribution", Team: StreamerTeam},
		{ID: "emp-bri", Name: "Bri", JobTitle: "Sales Lead", Team: SalesTeam},
		{ID: "emp-caylin", Name: "Caylin", JobTitle: "Sales Coordinator", Team: SalesTeam},
		{ID: "emp-sm3", Name: "sales manager 3", JobTitle: "Sales Manager", Team: SalesTeam},
		{ID: "emp-sm4", Name: "Sales manager 4", JobTitle: "Sales Manager", Team: SalesTeam},
	}
}
