package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kalambet/jobboard/internal/storage"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store and pgstore.Store.
type ProfileStore interface {
	GetUser(ctx context.Context, id string) (storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (storage.User, error)
	SaveUser(ctx context.Context, u storage.User) error
}

// ErrInvalidCredentials is returned by Authenticate for an unknown email or
// a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	profile  *UserProfile
	cachedAt time.Time
}

// Manager provides cached access to user profiles.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

func (m *Manager) cached(userID string) (UserProfile, bool) {
	e, ok := m.cache[userID]
	if !ok || !m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		return UserProfile{}, false
	}
	return deepCopyProfile(e.profile), true
}

// Get returns the profile of userID. It returns storage.ErrNotFound when the
// user has never signed up.
func (m *Manager) Get(ctx context.Context, userID string) (UserProfile, error) {
	m.mu.RLock()
	if p, ok := m.cached(userID); ok {
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.cached(userID); ok {
		return p, nil
	}

	u, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}
	p, err := decodeUser(u)
	if err != nil {
		return UserProfile{}, err
	}
	m.cache[userID] = cacheEntry{profile: &p, cachedAt: m.clock.Now()}
	return deepCopyProfile(&p), nil
}

// Save replaces the editable fields of userID's profile. Identity fields
// (ProfileID, Verified, CreatedAt) are kept from the stored profile, and so
// are Email and ResumeText when p leaves them empty.
func (m *Manager) Save(ctx context.Context, userID string, p UserProfile) (UserProfile, error) {
	return m.update(ctx, userID, func(cur *UserProfile) {
		p.UserID = cur.UserID
		p.ProfileID = cur.ProfileID
		p.Verified = cur.Verified
		p.CreatedAt = cur.CreatedAt
		if p.Email == "" {
			p.Email = cur.Email
		}
		if p.ResumeText == "" {
			p.ResumeText = cur.ResumeText
		}
		*cur = p
	})
}

// MarkVerified records that the identity service verified the user's email.
func (m *Manager) MarkVerified(ctx context.Context, userID string) (UserProfile, error) {
	return m.update(ctx, userID, func(cur *UserProfile) { cur.Verified = true })
}

// SetResumeText stores text extracted from an uploaded résumé.
func (m *Manager) SetResumeText(ctx context.Context, userID, text string) (UserProfile, error) {
	return m.update(ctx, userID, func(cur *UserProfile) { cur.ResumeText = text })
}

func (m *Manager) update(ctx context.Context, userID string, fn func(*UserProfile)) (UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return UserProfile{}, err
	}
	p, err := decodeUser(u)
	if err != nil {
		return UserProfile{}, err
	}
	fn(&p)
	if err := m.saveLocked(ctx, p, ""); err != nil {
		return UserProfile{}, err
	}
	return deepCopyProfile(&p), nil
}

// Signup creates the user document for a newly registered user. Both the
// user ID and the email must be unused.
func (m *Manager) Signup(ctx context.Context, userID string, req SignupRequest) (UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.store.GetUser(ctx, userID); err == nil {
		return UserProfile{}, storage.ErrConflict
	} else if !errors.Is(err, storage.ErrNotFound) {
		return UserProfile{}, fmt.Errorf("checking existing user: %w", err)
	}
	if _, err := m.store.GetUserByEmail(ctx, req.Email); err == nil {
		return UserProfile{}, storage.ErrConflict
	} else if !errors.Is(err, storage.ErrNotFound) {
		return UserProfile{}, fmt.Errorf("checking existing email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserProfile{}, fmt.Errorf("hashing password: %w", err)
	}

	p := UserProfile{
		UserID:    userID,
		ProfileID: uuid.NewString(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: m.clock.Now().UTC(),
	}
	if err := m.saveLocked(ctx, p, string(hash)); err != nil {
		return UserProfile{}, err
	}
	return deepCopyProfile(&p), nil
}

// Authenticate checks email and password against the stored hash and
// returns the matching profile.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (UserProfile, error) {
	u, err := m.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return UserProfile{}, ErrInvalidCredentials
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("looking up %s: %w", email, err)
	}
	if u.PasswordHash == "" {
		return UserProfile{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return UserProfile{}, ErrInvalidCredentials
	}
	return decodeUser(u)
}

// saveLocked writes p. An empty passwordHash keeps the stored one.
func (m *Manager) saveLocked(ctx context.Context, p UserProfile, passwordHash string) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshalling profile: %w", err)
	}
	u := storage.User{
		ID:           p.UserID,
		ProfileID:    p.ProfileID,
		Email:        p.Email,
		Verified:     p.Verified,
		ProfileJSON:  string(data),
		PasswordHash: passwordHash,
		CreatedAt:    p.CreatedAt,
	}
	if err := m.store.SaveUser(ctx, u); err != nil {
		return fmt.Errorf("saving profile for %s: %w", p.UserID, err)
	}
	delete(m.cache, p.UserID)
	return nil
}

// Invalidate drops userID from the cache.
func (m *Manager) Invalidate(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, userID)
}

func decodeUser(u storage.User) (UserProfile, error) {
	var p UserProfile
	if u.ProfileJSON != "" {
		if err := json.Unmarshal([]byte(u.ProfileJSON), &p); err != nil {
			return UserProfile{}, fmt.Errorf("decoding profile for %s: %w", u.ID, err)
		}
	}
	// Columns win over the document.
	p.UserID = u.ID
	p.ProfileID = u.ProfileID
	p.Verified = u.Verified
	if p.Email == "" {
		p.Email = u.Email
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = u.CreatedAt
	}
	return p, nil
}

// CardFor builds the card sent to a posting author when p applies.
func CardFor(p UserProfile) Card {
	return Card{
		ProfileID: p.ProfileID,
		Name:      p.FullName(),
		Email:     p.Email,
		Phone:     p.Phone,
		Skills:    append([]string(nil), p.Skills...),
		Summary:   Summarize(p),
	}
}

// maxSummaryChars caps a card summary.
const maxSummaryChars = 2000

// Summarize renders a compact plain-text description of a profile.
func Summarize(p UserProfile) string {
	var parts []string

	if name := p.FullName(); name != "" {
		parts = append(parts, name+".")
	}
	if p.Bio != "" {
		parts = append(parts, p.Bio)
	}
	if len(p.WorkHistory) > 0 {
		var jobs []string
		for _, w := range p.WorkHistory {
			if w.Title != "" {
				jobs = append(jobs, fmt.Sprintf("%s at %s", w.Title, w.Company))
			} else {
				jobs = append(jobs, w.Company)
			}
		}
		parts = append(parts, fmt.Sprintf("Experience: %s.", strings.Join(jobs, "; ")))
	}
	if len(p.Education) > 0 {
		var schools []string
		for _, e := range p.Education {
			s := e.School
			if e.Degree != "" {
				s = e.Degree + ", " + s
			}
			schools = append(schools, s)
		}
		parts = append(parts, fmt.Sprintf("Education: %s.", strings.Join(schools, "; ")))
	}
	if len(p.Skills) > 0 {
		parts = append(parts, fmt.Sprintf("Skills: %s.", strings.Join(p.Skills, ", ")))
	}
	if len(p.Certifications) > 0 {
		parts = append(parts, fmt.Sprintf("Certifications: %s.", strings.Join(p.Certifications, ", ")))
	}
	if len(p.Licenses) > 0 {
		parts = append(parts, fmt.Sprintf("Licenses: %s.", strings.Join(p.Licenses, ", ")))
	}

	if len(parts) == 0 {
		return "Profile not yet filled in."
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func deepCopyProfile(p *UserProfile) UserProfile {
	if p == nil {
		return UserProfile{}
	}
	cp := *p
	cp.Skills = cloneStrings(p.Skills)
	cp.Certifications = cloneStrings(p.Certifications)
	cp.Links = cloneStrings(p.Links)
	cp.Licenses = cloneStrings(p.Licenses)
	if p.Education != nil {
		cp.Education = append([]Education(nil), p.Education...)
	}
	if p.WorkHistory != nil {
		cp.WorkHistory = append([]WorkEntry(nil), p.WorkHistory...)
	}
	if p.Companies != nil {
		cp.Companies = append([]CompanyInfo(nil), p.Companies...)
	}
	return cp
}
