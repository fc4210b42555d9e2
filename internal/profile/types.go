package profile

import "time"

// UserProfile is the public and private information a user keeps about
// themselves. Only its owner may change it.
type UserProfile struct {
	UserID         string        `json:"user_id"`
	ProfileID      string        `json:"profile_id"`
	FirstName      string        `json:"first_name"`
	LastName       string        `json:"last_name"`
	Email          string        `json:"email,omitempty"`
	Phone          string        `json:"phone,omitempty"`
	Bio            string        `json:"bio,omitempty"`
	ProfilePicture string        `json:"profile_picture,omitempty"`
	Education      []Education   `json:"education,omitempty"`
	WorkHistory    []WorkEntry   `json:"work_history,omitempty"`
	Skills         []string      `json:"skills,omitempty"`
	Certifications []string      `json:"certifications,omitempty"`
	Links          []string      `json:"links,omitempty"`
	Licenses       []string      `json:"licenses,omitempty"`
	Companies      []CompanyInfo `json:"companies,omitempty"`
	ResumeText     string        `json:"resume_text,omitempty"`
	Verified       bool          `json:"verified"`
	CreatedAt      time.Time     `json:"created_at"`
}

type Education struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
	Field  string `json:"field,omitempty"`
	Year   string `json:"year,omitempty"`
}

type WorkEntry struct {
	Company string `json:"company"`
	Title   string `json:"title,omitempty"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// CompanyInfo describes a company the user hires for.
type CompanyInfo struct {
	Name     string `json:"name"`
	Website  string `json:"website,omitempty"`
	Location string `json:"location,omitempty"`
	About    string `json:"about,omitempty"`
}

// FullName joins first and last name.
func (p UserProfile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// SignupRequest is the registration form. Only a bcrypt hash of Password
// is stored.
type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// LoginRequest exchanges credentials for the user's identity.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Card is the profile summary sent to a posting author on apply.
type Card struct {
	ProfileID string   `json:"profile_id"`
	Name      string   `json:"name"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	Summary   string   `json:"summary"`
}
