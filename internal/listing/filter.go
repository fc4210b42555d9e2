package listing

import (
	"slices"
	"strings"

	"github.com/kalambet/jobboard/internal/storage"
)

// Filter returns the postings that satisfy every set field of c, in their
// original order. It never modifies postings.
func Filter(postings []storage.Posting, c Criteria, table Categories) []storage.Posting {
	if c.IsEmpty() {
		return slices.Clone(postings)
	}
	c = c.Normalize(table)

	minSalary, hasMin := parseBound(c.MinSalary)
	maxSalary, hasMax := parseBound(c.MaxSalary)
	keyword := strings.ToLower(c.Keyword)
	location := strings.ToLower(c.Location)
	company := strings.ToLower(c.Company)

	out := make([]storage.Posting, 0, len(postings))
	for _, p := range postings {
		if c.Category != "" && !matchesCategory(p, c) {
			continue
		}
		if keyword != "" && !matchesKeyword(p, keyword) {
			continue
		}
		if c.EmploymentType != "" && !strings.EqualFold(p.EmploymentType, c.EmploymentType) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(p.Location), location) {
			continue
		}
		if hasMin || hasMax {
			salary, ok := postingSalary(p.Salary)
			if !ok {
				continue
			}
			if hasMin && salary < minSalary {
				continue
			}
			if hasMax && salary > maxSalary {
				continue
			}
		}
		if company != "" && !strings.Contains(strings.ToLower(p.Company), company) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// matchesCategory expects c to be normalized. Title comparison is exact;
// the category field comparison ignores case.
func matchesCategory(p storage.Posting, c Criteria) bool {
	return slices.Contains(c.JobTitles, p.Title) || strings.EqualFold(p.Category, c.Category)
}

func matchesKeyword(p storage.Posting, keyword string) bool {
	return strings.Contains(strings.ToLower(p.Title), keyword) ||
		strings.Contains(strings.ToLower(p.Company), keyword) ||
		strings.Contains(strings.ToLower(p.Description), keyword)
}
