package profile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/jobboard/internal/storage"
)

// --- Mock store ---

type mockStore struct {
	mu    sync.Mutex
	users map[string]storage.User

	getCalls int
	saveErr  error
}

func newMockStore() *mockStore {
	return &mockStore{users: make(map[string]storage.User)}
}

func (m *mockStore) GetUser(_ context.Context, id string) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	u, ok := m.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if email != "" && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (m *mockStore) SaveUser(_ context.Context, u storage.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if prev, ok := m.users[u.ID]; ok && u.PasswordHash == "" {
		u.PasswordHash = prev.PasswordHash
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Tests ---

var ctx = context.Background()

func signup(t *testing.T, mgr *Manager, userID string) UserProfile {
	t.Helper()
	p, err := mgr.Signup(ctx, userID, SignupRequest{
		Email: "ann@example.com", Password: "secret123",
		FirstName: "Ann", LastName: "Lee", Phone: "5125550100",
	})
	if err != nil {
		t.Fatalf("Signup error: %v", err)
	}
	return p
}

func TestGet_NotFound(t *testing.T) {
	mgr := NewManager(newMockStore())

	_, err := mgr.Get(ctx, "nobody")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSignup(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	mgr := NewManagerWithClock(store, clock, time.Minute)

	p := signup(t, mgr, "u1")
	if p.ProfileID == "" {
		t.Error("expected a generated ProfileID")
	}
	if !p.CreatedAt.Equal(clock.now) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, clock.now)
	}
	if p.Verified {
		t.Error("new profile should not be verified")
	}

	stored := store.users["u1"]
	if stored.ProfileID != p.ProfileID || stored.Email != "ann@example.com" {
		t.Errorf("stored user = %+v", stored)
	}
	if strings.Contains(stored.ProfileJSON, "secret123") || stored.PasswordHash == "secret123" {
		t.Error("password must not be persisted in clear")
	}
	if stored.PasswordHash == "" {
		t.Error("expected a password hash")
	}

	if _, err := mgr.Signup(ctx, "u1", SignupRequest{}); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("second signup err = %v, want ErrConflict", err)
	}
}

func TestSignup_EmailTaken(t *testing.T) {
	mgr := NewManager(newMockStore())
	signup(t, mgr, "u1")

	_, err := mgr.Signup(ctx, "u2", SignupRequest{Email: "ANN@example.com", Password: "other-pass"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestAuthenticate(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)
	want := signup(t, mgr, "u1")

	// Later profile edits must not drop the credentials.
	if _, err := mgr.Save(ctx, "u1", UserProfile{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := mgr.Authenticate(ctx, "Ann@Example.com", "secret123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.UserID != "u1" || got.ProfileID != want.ProfileID {
		t.Errorf("profile = %+v", got)
	}

	tests := []struct {
		name, email, password string
	}{
		{"wrong password", "ann@example.com", "secret124"},
		{"unknown email", "bob@example.com", "secret123"},
		{"empty email", "", "secret123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := mgr.Authenticate(ctx, tt.email, tt.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestSaveKeepsIdentityFields(t *testing.T) {
	mgr := NewManager(newMockStore())
	orig := signup(t, mgr, "u1")
	if _, err := mgr.MarkVerified(ctx, "u1"); err != nil {
		t.Fatalf("MarkVerified error: %v", err)
	}

	saved, err := mgr.Save(ctx, "u1", UserProfile{
		ProfileID: "forged",
		FirstName: "Ann",
		LastName:  "Lee-Park",
		Skills:    []string{"welding"},
	})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if saved.ProfileID != orig.ProfileID {
		t.Errorf("ProfileID = %q, want %q", saved.ProfileID, orig.ProfileID)
	}
	if !saved.Verified {
		t.Error("Save must not clear Verified")
	}

	got, err := mgr.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.LastName != "Lee-Park" || len(got.Skills) != 1 {
		t.Errorf("Get = %+v", got)
	}
}

func TestSetResumeText(t *testing.T) {
	mgr := NewManager(newMockStore())
	signup(t, mgr, "u1")

	if _, err := mgr.SetResumeText(ctx, "u1", "Ten years of carpentry."); err != nil {
		t.Fatalf("SetResumeText error: %v", err)
	}
	// A later profile edit without résumé text keeps the stored one.
	if _, err := mgr.Save(ctx, "u1", UserProfile{FirstName: "Ann", LastName: "Lee"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, _ := mgr.Get(ctx, "u1")
	if got.ResumeText != "Ten years of carpentry." {
		t.Errorf("ResumeText = %q", got.ResumeText)
	}
}

func TestSaveError(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)
	signup(t, mgr, "u1")

	store.saveErr = errors.New("disk full")
	_, err := mgr.MarkVerified(ctx, "u1")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want wrapped save error", err)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	mgr := NewManager(newMockStore())
	signup(t, mgr, "u1")
	mgr.Save(ctx, "u1", UserProfile{FirstName: "Ann", LastName: "Lee", Skills: []string{"go"}})

	p, _ := mgr.Get(ctx, "u1")
	p.Skills[0] = "mutated"

	again, _ := mgr.Get(ctx, "u1")
	if again.Skills[0] != "go" {
		t.Errorf("cache was mutated through a returned profile: %v", again.Skills)
	}
}

func TestCacheTTL(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, 60*time.Second)
	signup(t, mgr, "u1")
	base := store.calls()

	mgr.Get(ctx, "u1")
	mgr.Get(ctx, "u1")

	if calls := store.calls() - base; calls != 1 {
		t.Errorf("expected 1 store call (cache hit on second), got %d", calls)
	}
}

func TestCacheInvalidation(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	ttl := 60 * time.Second
	mgr := NewManagerWithClock(store, clock, ttl)
	signup(t, mgr, "u1")
	base := store.calls()

	mgr.Get(ctx, "u1")

	// Advance past TTL
	clock.Advance(ttl + time.Second)

	mgr.Get(ctx, "u1")

	if calls := store.calls() - base; calls != 2 {
		t.Errorf("expected 2 store calls (cache expired), got %d", calls)
	}

	mgr.Invalidate("u1")
	mgr.Get(ctx, "u1")
	if calls := store.calls() - base; calls != 3 {
		t.Errorf("expected 3 store calls after Invalidate, got %d", calls)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if got := Summarize(UserProfile{}); got == "" {
		t.Error("expected non-empty summary for empty profile")
	}
}

func TestSummarize_Full(t *testing.T) {
	p := UserProfile{
		FirstName:   "Ann",
		LastName:    "Lee",
		Bio:         "Licensed electrician.",
		WorkHistory: []WorkEntry{{Company: "Sparks LLC", Title: "Journeyman"}},
		Education:   []Education{{School: "ACC", Degree: "AAS"}},
		Skills:      []string{"wiring", "conduit"},
		Licenses:    []string{"TX Journeyman"},
	}
	summary := Summarize(p)

	for _, want := range []string{"Ann Lee", "Journeyman at Sparks LLC", "AAS, ACC", "wiring, conduit", "TX Journeyman"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q: %s", want, summary)
		}
	}
}

func TestSummarize_Budget(t *testing.T) {
	skills := make([]string, 200)
	for i := range skills {
		skills[i] = "very specific and detailed skill description"
	}
	summary := Summarize(UserProfile{FirstName: "Ann", Skills: skills})
	if len(summary) > maxSummaryChars {
		t.Errorf("summary too long: %d chars", len(summary))
	}
}

func TestCardFor(t *testing.T) {
	p := UserProfile{ProfileID: "pid", FirstName: "Ann", Email: "a@b.co", Skills: []string{"go"}}
	c := CardFor(p)
	if c.ProfileID != "pid" || c.Name != "Ann" || c.Summary == "" {
		t.Errorf("CardFor = %+v", c)
	}
	c.Skills[0] = "x"
	if p.Skills[0] != "go" {
		t.Error("card shares skills with profile")
	}
}

func TestFullName(t *testing.T) {
	cases := map[string]UserProfile{
		"Ann Lee": {FirstName: "Ann", LastName: "Lee"},
		"Ann":     {FirstName: "Ann"},
		"Lee":     {LastName: "Lee"},
		"":        {},
	}
	for want, p := range cases {
		if got := p.FullName(); got != want {
			t.Errorf("FullName(%+v) = %q, want %q", p, got, want)
		}
	}
}
