package listing

// Criteria are the user-chosen filter parameters. An empty string means the
// field is not set.
type Criteria struct {
	EmploymentType string   `json:"employment_type,omitempty"`
	Location       string   `json:"location,omitempty"`
	MinSalary      string   `json:"min_salary,omitempty"`
	MaxSalary      string   `json:"max_salary,omitempty"`
	Company        string   `json:"company,omitempty"`
	Category       string   `json:"category,omitempty"`
	JobTitles      []string `json:"job_titles,omitempty"`
	Keyword        string   `json:"keyword,omitempty"`
}

// Normalize returns a copy of c with JobTitles derived from Category.
// Titles of an unknown or empty category are cleared.
func (c Criteria) Normalize(table Categories) Criteria {
	c.JobTitles = nil
	if c.Category == "" {
		return c
	}
	if titles, ok := table.Lookup(c.Category); ok {
		c.JobTitles = append([]string(nil), titles...)
	}
	return c
}

// IsEmpty reports whether no field constrains the result.
func (c Criteria) IsEmpty() bool {
	return c.EmploymentType == "" &&
		c.Location == "" &&
		c.MinSalary == "" &&
		c.MaxSalary == "" &&
		c.Company == "" &&
		c.Category == "" &&
		c.Keyword == ""
}
