// Package watchlist keeps a live, per-user list of watched postings in sync
// with the store and provides the watch toggle.
package watchlist

import (
	"time"

	"github.com/kalambet/jobboard/internal/storage"
)

// Placeholders used when a watched posting is missing a field.
const (
	DefaultTitle          = "Untitled Job"
	DefaultCompany        = "Unknown Company"
	DefaultDescription    = "No description available"
	DefaultEmploymentType = "Unknown"
	DefaultLocation       = "Location unknown"
	DefaultBenefits       = "No benefits listed"
	DefaultCategory       = storage.DefaultCategory
	DefaultProfileID      = "unknown-profile"
)

// WatchedJob is a posting as shown in a user's watch list.
type WatchedJob struct {
	storage.Posting
	IsFollowed bool      `json:"is_followed"`
	FollowedAt time.Time `json:"followed_at"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// newView hydrates a posting for display, filling blanks with placeholders.
func newView(p storage.Posting, rec storage.WatchRecord) WatchedJob {
	p.Title = orDefault(p.Title, DefaultTitle)
	p.Company = orDefault(p.Company, DefaultCompany)
	p.Description = orDefault(p.Description, DefaultDescription)
	p.EmploymentType = orDefault(p.EmploymentType, DefaultEmploymentType)
	p.Location = orDefault(p.Location, DefaultLocation)
	p.Benefits = orDefault(p.Benefits, DefaultBenefits)
	p.Category = orDefault(p.Category, DefaultCategory)
	p.ProfileID = orDefault(p.ProfileID, DefaultProfileID)
	if p.Skills == nil {
		p.Skills = []string{}
	} else {
		p.Skills = append([]string(nil), p.Skills...)
	}
	return WatchedJob{Posting: p, IsFollowed: true, FollowedAt: rec.CreatedAt}
}

func cloneViews(in []WatchedJob) []WatchedJob {
	if in == nil {
		return []WatchedJob{}
	}
	out := make([]WatchedJob, len(in))
	for i, v := range in {
		v.Skills = append([]string(nil), v.Skills...)
		out[i] = v
	}
	return out
}

func indexOf(items []WatchedJob, jobID string) int {
	for i, v := range items {
		if v.ID == jobID {
			return i
		}
	}
	return -1
}
