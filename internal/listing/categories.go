// Package listing filters job postings against user-chosen criteria.
package listing

import "strings"

// Category is one entry of the category table: a display name and the job
// titles that belong to it.
type Category struct {
	Name   string   `json:"name"`
	Titles []string `json:"titles"`
}

// Categories is the shared category lookup. Version changes whenever the
// set of categories or titles changes so cached criteria can be re-derived.
type Categories struct {
	Version int        `json:"version"`
	Entries []Category `json:"categories"`
}

// Lookup resolves name case-insensitively and returns its title list.
func (c Categories) Lookup(name string) ([]string, bool) {
	for _, e := range c.Entries {
		if strings.EqualFold(e.Name, name) {
			return e.Titles, true
		}
	}
	return nil, false
}

// Names returns the category names in table order.
func (c Categories) Names() []string {
	names := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		names[i] = e.Name
	}
	return names
}

// DefaultCategories is the category table used by the filter, the API and
// the MCP tools.
var DefaultCategories = Categories{
	Version: 1,
	Entries: []Category{
		{Name: "Technology", Titles: []string{"Software Development", "Cybersecurity", "Data Science", "IT Support", "AI & Machine Learning"}},
		{Name: "Healthcare", Titles: []string{"Nursing", "Pharmacy", "Medical Assistants", "Physical Therapy"}},
		{Name: "Construction & Trades", Titles: []string{"Plumbing", "Electrical Work", "Carpentry", "HVAC"}},
		{Name: "Finance & Business", Titles: []string{"Accounting", "Financial Advising", "Banking", "Insurance"}},
		{Name: "Education & Training", Titles: []string{"K-12 Teaching", "Tutoring", "Corporate Training"}},
		{Name: "Retail & Sales", Titles: []string{"Retail Management", "Cashiers", "Sales Representatives"}},
		{Name: "Hospitality & Tourism", Titles: []string{"Hotel Management", "Restaurant Services", "Event Planning"}},
		{Name: "Transportation & Logistics", Titles: []string{"Truck Driving", "Delivery Services", "Warehouse & Distribution"}},
		{Name: "Manufacturing & Industrial", Titles: []string{"Factory Work", "Machinists", "Quality Control"}},
		{Name: "Marketing & Media", Titles: []string{"Digital Marketing", "Graphic Design", "Social Media Management"}},
		{Name: "Legal & Government", Titles: []string{"Lawyers", "Paralegals", "Court Reporting", "Law Enforcement"}},
		{Name: "Science & Engineering", Titles: []string{"Civil Engineering", "Electrical Engineering", "Physics"}},
		{Name: "Energy & Utilities", Titles: []string{"Renewable Energy", "Oil & Gas", "Solar & Wind Installation"}},
		{Name: "Agriculture & Farming", Titles: []string{"Crop Farming", "Livestock & Dairy", "Forestry"}},
		{Name: "Creative & Performing Arts", Titles: []string{"Music", "Acting", "Writing", "Film Production"}},
		{Name: "Non-Profit & Social Services", Titles: []string{"Community Outreach", "Fundraising", "Counseling"}},
		{Name: "Telecommunications", Titles: []string{"Cable Installation", "Broadcasting", "Call Centers"}},
		{Name: "Local & Gig Jobs", Titles: []string{"Handyman Services", "Lawn Care", "Freelance Writing", "Delivery"}},
		{Name: "Other", Titles: []string{"Other"}},
	},
}

// EmploymentTypes are the employment types offered when posting or
// filtering. Postings store whatever was entered.
var EmploymentTypes = []string{"Full-time", "Part-time", "Contract", "Temporary", "Weekend", "Day"}
