package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/jobboard/internal/storage"
)

func ids(ps []storage.Posting) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func samplePostings() []storage.Posting {
	return []storage.Posting{
		{ID: "1", Title: "Software Development", Company: "Acme", Description: "Build APIs", EmploymentType: "Full-time", Location: "Austin, TX", Salary: "$120,000", Category: "Technology"},
		{ID: "2", Title: "Plumbing", Company: "PipeCo", Description: "Fix leaks", EmploymentType: "Part-time", Location: "Dallas, TX", Hourly: "35", Salary: "0", Category: "Other"},
		{ID: "3", Title: "Data Science", Company: "Numbers Inc", Description: "Models", EmploymentType: "full-time", Location: "austin", Salary: "95000", Category: "Other"},
		{ID: "4", Title: "Barista", Company: "Bean There", Description: "Coffee", EmploymentType: "Contract", Location: "Remote", Category: "technology"},
	}
}

func TestFilter_EmptyCriteriaIsIdentity(t *testing.T) {
	in := samplePostings()
	out := Filter(in, Criteria{}, DefaultCategories)
	assert.Equal(t, in, out)

	// Result is a distinct slice.
	out[0].Title = "changed"
	assert.Equal(t, "Software Development", in[0].Title)
}

func TestFilter_NilInput(t *testing.T) {
	assert.Empty(t, Filter(nil, Criteria{Keyword: "x"}, DefaultCategories))
	assert.Nil(t, Filter(nil, Criteria{}, DefaultCategories))
}

func TestFilter_KeywordSubstring(t *testing.T) {
	in := samplePostings()
	cases := map[string][]string{
		"DEVELOP": {"1"},     // title
		"pipeco":  {"2"},     // company
		"model":   {"3"},     // description
		"e":       {"1", "2", "3", "4"},
		"zzz":     {},
	}
	for kw, want := range cases {
		t.Run(kw, func(t *testing.T) {
			assert.Equal(t, want, ids(Filter(in, Criteria{Keyword: kw}, DefaultCategories)))
		})
	}
}

func TestFilter_KeywordInclusionProperty(t *testing.T) {
	in := samplePostings()
	for _, p := range in {
		for _, field := range []string{p.Title, p.Company, p.Description} {
			for i := 0; i+3 <= len(field); i++ {
				kw := field[i : i+3]
				assert.Contains(t, ids(Filter(in, Criteria{Keyword: kw}, DefaultCategories)), p.ID, "keyword %q", kw)
			}
		}
	}
}

func TestFilter_Category(t *testing.T) {
	in := []storage.Posting{
		{ID: "ds", Title: "Data Science", Category: "Other"},
		{ID: "pl", Title: "Plumbing", Category: "Other"},
	}
	assert.Equal(t, []string{"ds"}, ids(Filter(in, Criteria{Category: "Technology"}, DefaultCategories)))
	assert.Equal(t, []string{"ds"}, ids(Filter(in, Criteria{Category: "technology"}, DefaultCategories)))
}

func TestFilter_CategoryFieldMatchIgnoresCase(t *testing.T) {
	got := Filter(samplePostings(), Criteria{Category: "Technology"}, DefaultCategories)
	assert.Equal(t, []string{"1", "3", "4"}, ids(got))
}

func TestFilter_UnknownCategoryMatchesFieldOnly(t *testing.T) {
	in := []storage.Posting{
		{ID: "a", Title: "Data Science", Category: "Space"},
		{ID: "b", Title: "Space", Category: "Other"},
	}
	assert.Equal(t, []string{"a"}, ids(Filter(in, Criteria{Category: "space"}, DefaultCategories)))
}

func TestFilter_TitleMatchIsExact(t *testing.T) {
	in := []storage.Posting{{ID: "a", Title: "data science", Category: "Other"}}
	assert.Empty(t, Filter(in, Criteria{Category: "Technology"}, DefaultCategories))
}

func TestFilter_SalaryBounds(t *testing.T) {
	in := []storage.Posting{
		{ID: "50", Salary: "50000"},
		{ID: "80", Salary: "80000"},
		{ID: "none"},
	}
	assert.Equal(t, []string{"80"}, ids(Filter(in, Criteria{MinSalary: "60000"}, DefaultCategories)))
	assert.Equal(t, []string{"50"}, ids(Filter(in, Criteria{MaxSalary: "60000"}, DefaultCategories)))
	assert.Equal(t, []string{"50", "80"}, ids(Filter(in, Criteria{MinSalary: "50000", MaxSalary: "80000"}, DefaultCategories)))
}

func TestFilter_InactiveBounds(t *testing.T) {
	in := samplePostings()
	for _, bound := range []string{"abc", "0", "$0.00"} {
		assert.Len(t, Filter(in, Criteria{MinSalary: bound}, DefaultCategories), len(in), "bound %q", bound)
	}
}

// Edits store an empty salary as "0", so it never satisfies an active bound,
// even a max-only one.
func TestFilter_ZeroSalaryIsUnspecified(t *testing.T) {
	in := []storage.Posting{
		{ID: "a", Salary: "0"},
		{ID: "b", Salary: "50000"},
		{ID: "c", Salary: "$0.00"},
	}
	assert.Equal(t, []string{"b"}, ids(Filter(in, Criteria{MaxSalary: "60000"}, DefaultCategories)))
	assert.Equal(t, []string{"b"}, ids(Filter(in, Criteria{MinSalary: "1000"}, DefaultCategories)))
	assert.Len(t, Filter(in, Criteria{}, DefaultCategories), 3)
}

func TestFilter_HourlyOnlyExcludedByActiveBound(t *testing.T) {
	got := Filter(samplePostings(), Criteria{MaxSalary: "200000"}, DefaultCategories)
	assert.Equal(t, []string{"1", "3"}, ids(got))
}

func TestFilter_EndToEnd(t *testing.T) {
	in := []storage.Posting{
		{ID: "a", EmploymentType: "Full-time", Location: "Austin, TX"},
		{ID: "b", EmploymentType: "Part-time", Location: "Austin, TX"},
		{ID: "c", EmploymentType: "FULL-TIME", Location: "South Austin"},
	}
	got := Filter(in, Criteria{EmploymentType: "full-time", Location: "Austin"}, DefaultCategories)
	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func TestFilter_Company(t *testing.T) {
	got := Filter(samplePostings(), Criteria{Company: "INC"}, DefaultCategories)
	assert.Equal(t, []string{"3"}, ids(got))
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	in := samplePostings()
	before := samplePostings()
	_ = Filter(in, Criteria{Category: "Technology", Keyword: "a", MinSalary: "1"}, DefaultCategories)
	require.Equal(t, before, in)
}

func TestParseSalary(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"80000", 80000, true},
		{"$80,000/yr", 80000, true},
		{"1.2.3", 1.2, true},
		{".5", 0.5, true},
		{"12.", 12, true},
		{"", 0, false},
		{"negotiable", 0, false},
		{"...", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseSalary(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.InDelta(t, c.want, got, 1e-9, c.in)
	}
}

func TestCriteriaNormalize(t *testing.T) {
	c := Criteria{Category: "healthcare", JobTitles: []string{"stale"}}.Normalize(DefaultCategories)
	assert.Equal(t, []string{"Nursing", "Pharmacy", "Medical Assistants", "Physical Therapy"}, c.JobTitles)

	c = Criteria{Category: "nope", JobTitles: []string{"stale"}}.Normalize(DefaultCategories)
	assert.Nil(t, c.JobTitles)

	// Derived titles do not alias the table.
	c = Criteria{Category: "Other"}.Normalize(DefaultCategories)
	c.JobTitles[0] = "x"
	titles, _ := DefaultCategories.Lookup("Other")
	assert.Equal(t, "Other", titles[0])
}

func TestDefaultCategories(t *testing.T) {
	assert.Equal(t, 1, DefaultCategories.Version)
	names := DefaultCategories.Names()
	assert.Len(t, names, 19)
	assert.Equal(t, "Technology", names[0])
	assert.Equal(t, "Other", names[len(names)-1])

	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate category %q", n)
		seen[n] = true
	}
}
