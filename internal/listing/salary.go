package listing

import (
	"regexp"
	"strconv"
)

var (
	nonNumeric    = regexp.MustCompile(`[^0-9.]`)
	leadingNumber = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
)

// ParseSalary extracts the amount from free-text compensation such as
// "$80,000/yr". Everything except digits and '.' is dropped and the leading
// decimal number is parsed, so "1.2.3" yields 1.2.
func ParseSalary(s string) (float64, bool) {
	m := leadingNumber.FindString(nonNumeric.ReplaceAllString(s, ""))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseBound returns the bound and whether it constrains anything. Empty,
// unparseable and zero bounds are inactive.
func parseBound(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, ok := ParseSalary(s)
	if !ok || v == 0 {
		return 0, false
	}
	return v, true
}

// postingSalary treats a zero amount as unspecified; edits persist an empty
// salary as "0".
func postingSalary(s string) (float64, bool) {
	v, ok := ParseSalary(s)
	if !ok || v == 0 {
		return 0, false
	}
	return v, true
}
