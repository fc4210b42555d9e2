package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/jobboard/internal/listing"
	"github.com/kalambet/jobboard/internal/outbox"
	"github.com/kalambet/jobboard/internal/profile"
	"github.com/kalambet/jobboard/internal/session"
	"github.com/kalambet/jobboard/internal/storage"
	"github.com/kalambet/jobboard/internal/watchlist"
)

const testToken = "test-token-12345"

const (
	author    = "author-1"
	applicant = "seeker-1"
)

func setupAppHandler(t *testing.T, token string) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	hub := watchlist.NewHub(store, watchlist.NewLocalFeed(), watchlist.Options{})
	t.Cleanup(hub.Close)

	handler := NewAppHandler(AppDeps{
		Repo:       store,
		Profiles:   profile.NewManager(store),
		Hub:        hub,
		Cache:      listing.NewMemoryCache(),
		Categories: listing.DefaultCategories,
		Token:      token,
	})
	return handler, store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func userReq(method, url, body, userID string) *http.Request {
	req := authReq(method, url, body, testToken)
	if userID != "" {
		req.Header.Set(session.HeaderUserID, userID)
	}
	return req
}

func serve(t *testing.T, h http.Handler, req *http.Request, wantCode int) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != wantCode {
		t.Fatalf("%s %s: status = %d, want %d; body = %s", req.Method, req.URL, rr.Code, wantCode, rr.Body.String())
	}
	return rr
}

func signupBody(first string) string {
	return `{"email":"` + strings.ToLower(first) + `@example.com","password":"hunter22!","first_name":"` + first +
		`","last_name":"Smith","phone":"5551234567"}`
}

func signupUser(t *testing.T, h http.Handler, userID, first string) {
	t.Helper()
	serve(t, h, userReq(http.MethodPost, "/signup", signupBody(first), userID), http.StatusCreated)
}

const postingBody = `{"title":"Backend Developer","company":"Acme","description":"Build APIs",` +
	`"salary":"$120,000","location":"Remote","category":"Technology"}`

func createPosting(t *testing.T, h http.Handler, body string) storage.Posting {
	t.Helper()
	rr := serve(t, h, userReq(http.MethodPost, "/postings", body, author), http.StatusCreated)
	var p storage.Posting
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatalf("decoding posting: %v", err)
	}
	return p
}

func TestHealth_NoAuth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	rr := serve(t, h, httptest.NewRequest(http.MethodGet, "/health", nil), http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestNoAuth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	serve(t, h, authReq(http.MethodGet, "/postings", "", ""), http.StatusUnauthorized)
	rr := serve(t, h, authReq(http.MethodGet, "/postings", "", "wrong-token"), http.StatusUnauthorized)
	if got := rr.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q", got)
	}

	req := authReq(http.MethodGet, "/postings", "", "")
	req.Header.Set("Authorization", "Bearer ")
	serve(t, h, req, http.StatusUnauthorized)
}

func TestMissingSession(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	for _, path := range []string{"/profile", "/postings/mine", "/watchlist", "/messages", "/filters/last"} {
		serve(t, h, userReq(http.MethodGet, path, "", ""), http.StatusUnauthorized)
	}
}

func TestCategories(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	rr := serve(t, h, userReq(http.MethodGet, "/categories", "", ""), http.StatusOK)

	var got listing.Categories
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Version != listing.DefaultCategories.Version || len(got.Entries) != len(listing.DefaultCategories.Entries) {
		t.Errorf("categories = v%d with %d entries", got.Version, len(got.Entries))
	}
}

func TestSignupAndProfile(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	serve(t, h, userReq(http.MethodGet, "/profile", "", applicant), http.StatusNotFound)
	signupUser(t, h, applicant, "Ada")
	serve(t, h, userReq(http.MethodPost, "/signup", signupBody("Ada"), applicant), http.StatusConflict)

	rr := serve(t, h, userReq(http.MethodGet, "/profile", "", applicant), http.StatusOK)
	var p profile.UserProfile
	json.NewDecoder(rr.Body).Decode(&p)
	if p.FirstName != "Ada" || p.ProfileID == "" || p.Verified {
		t.Errorf("profile = %+v", p)
	}

	body := `{"first_name":"Ada","last_name":"Lovelace","phone":"5550001111","skills":["go","sql"]}`
	rr = serve(t, h, userReq(http.MethodPut, "/profile", body, applicant), http.StatusOK)
	var saved profile.UserProfile
	json.NewDecoder(rr.Body).Decode(&saved)
	if saved.LastName != "Lovelace" || saved.ProfileID != p.ProfileID {
		t.Errorf("saved = %+v", saved)
	}
}

func TestLogin(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, applicant, "Ada")
	serve(t, h, userReq(http.MethodPut, "/profile", `{"first_name":"Ada","last_name":"Lovelace"}`, applicant), http.StatusOK)

	rr := serve(t, h, authReq(http.MethodPost, "/login", `{"email":"ADA@example.com","password":"hunter22!"}`, testToken), http.StatusOK)
	var p profile.UserProfile
	json.NewDecoder(rr.Body).Decode(&p)
	if p.UserID != applicant || p.LastName != "Lovelace" {
		t.Errorf("login profile = %+v", p)
	}

	serve(t, h, authReq(http.MethodPost, "/login", `{"email":"ada@example.com","password":"wrong-pass"}`, testToken), http.StatusUnauthorized)
	serve(t, h, authReq(http.MethodPost, "/login", `{"email":"ada@example.com"}`, testToken), http.StatusBadRequest)
	serve(t, h, authReq(http.MethodPost, "/login", `{"email":"ada@example.com","password":"hunter22!"}`, ""), http.StatusUnauthorized)
}

func TestSignup_EmailTaken(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, applicant, "Ada")
	serve(t, h, userReq(http.MethodPost, "/signup", signupBody("Ada"), "someone-else"), http.StatusConflict)
}

func TestSignup_Invalid(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	cases := map[string]string{
		"short password": `{"email":"a@b.co","password":"short","first_name":"A","last_name":"B","phone":"5551234567"}`,
		"bad phone":      `{"email":"a@b.co","password":"longenough","first_name":"A","last_name":"B","phone":"555-1234"}`,
		"bad email":      `{"email":"nope","password":"longenough","first_name":"A","last_name":"B","phone":"5551234567"}`,
		"malformed":      `{"email":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			serve(t, h, userReq(http.MethodPost, "/signup", body, applicant), http.StatusBadRequest)
		})
	}
}

func TestPutProfile_Invalid(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, applicant, "Ada")

	serve(t, h, userReq(http.MethodPut, "/profile", `{"first_name":"Ada","last_name":"L","phone":"12"}`, applicant), http.StatusBadRequest)
	serve(t, h, userReq(http.MethodPut, "/profile", `{"first_name":"Ada"}`, applicant), http.StatusBadRequest)
}

func TestVerifyProfile(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, applicant, "Ada")

	serve(t, h, userReq(http.MethodPost, "/profile/verify", "", applicant), http.StatusForbidden)

	req := userReq(http.MethodPost, "/profile/verify", "", applicant)
	req.Header.Set(session.HeaderVerified, "true")
	rr := serve(t, h, req, http.StatusOK)
	var p profile.UserProfile
	json.NewDecoder(rr.Body).Decode(&p)
	if !p.Verified {
		t.Error("profile not verified")
	}
}

func TestUploadResume_NotPDF(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, applicant, "Ada")
	serve(t, h, userReq(http.MethodPost, "/profile/resume", "plain text", applicant), http.StatusBadRequest)
}

func TestCreatePosting_RequiresProfile(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	serve(t, h, userReq(http.MethodPost, "/postings", postingBody, author), http.StatusForbidden)
}

func TestCreatePosting(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, author, "Grace")

	p := createPosting(t, h, postingBody)
	if p.ID == "" || p.ProfileID == "" || p.AuthorID != author {
		t.Errorf("posting identity = %+v", p)
	}
	if p.EmploymentType != defaultEmploymentType {
		t.Errorf("EmploymentType = %q, want %q", p.EmploymentType, defaultEmploymentType)
	}

	rr := serve(t, h, userReq(http.MethodGet, "/postings/"+p.ID, "", ""), http.StatusOK)
	var got storage.Posting
	json.NewDecoder(rr.Body).Decode(&got)
	if got.Title != "Backend Developer" {
		t.Errorf("Title = %q", got.Title)
	}

	serve(t, h, userReq(http.MethodGet, "/postings/nope", "", ""), http.StatusNotFound)
}

func TestCreatePosting_Invalid(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, author, "Grace")

	cases := map[string]string{
		"no compensation":   `{"title":"T","company":"C","description":"D","location":"L","category":"Other"}`,
		"both compensation": `{"title":"T","company":"C","description":"D","location":"L","category":"Other","salary":"100","hourly":"20"}`,
		"zero salary":       `{"title":"T","company":"C","description":"D","location":"L","category":"Other","salary":"0"}`,
		"missing title":     `{"company":"C","description":"D","location":"L","category":"Other","salary":"100"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			serve(t, h, userReq(http.MethodPost, "/postings", body, author), http.StatusBadRequest)
		})
	}
}

func TestListPostings_FilterAndSave(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, author, "Grace")

	createPosting(t, h, postingBody)
	createPosting(t, h, `{"title":"Nurse","company":"Clinic","description":"Care","hourly":"45","location":"Boston","category":"Healthcare"}`)

	rr := serve(t, h, userReq(http.MethodGet, "/postings", "", ""), http.StatusOK)
	var all []storage.Posting
	json.NewDecoder(rr.Body).Decode(&all)
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}

	rr = serve(t, h, userReq(http.MethodGet, "/postings?keyword=Developer&min_salary=100000&save=true", "", applicant), http.StatusOK)
	var filtered []storage.Posting
	json.NewDecoder(rr.Body).Decode(&filtered)
	if len(filtered) != 1 || filtered[0].Title != "Backend Developer" {
		t.Fatalf("filtered = %+v", filtered)
	}

	rr = serve(t, h, userReq(http.MethodGet, "/filters/last", "", applicant), http.StatusOK)
	var c listing.Criteria
	json.NewDecoder(rr.Body).Decode(&c)
	if c.Keyword != "Developer" || c.MinSalary != "100000" {
		t.Errorf("saved criteria = %+v", c)
	}

	// Saving needs a user.
	serve(t, h, userReq(http.MethodGet, "/postings?keyword=x&save=true", "", ""), http.StatusUnauthorized)
}

func TestMyPostings(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, author, "Grace")
	createPosting(t, h, postingBody)

	rr := serve(t, h, userReq(http.MethodGet, "/postings/mine", "", author), http.StatusOK)
	var mine []storage.Posting
	json.NewDecoder(rr.Body).Decode(&mine)
	if len(mine) != 1 {
		t.Errorf("len(mine) = %d, want 1", len(mine))
	}

	rr = serve(t, h, userReq(http.MethodGet, "/postings/mine", "", applicant), http.StatusOK)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("other user's postings = %s, want []", rr.Body.String())
	}
}

func TestUpdatePosting(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, author, "Grace")
	p := createPosting(t, h, postingBody)

	serve(t, h, userReq(http.MethodPut, "/postings/"+p.ID, `{"title":"Hijacked"}`, applicant), http.StatusForbidden)

	rr := serve(t, h, userReq(http.MethodPut, "/postings/"+p.ID, `{"title":"Senior Backend Developer","hourly":"80"}`, author), http.StatusOK)
	var got storage.Posting
	json.NewDecoder(rr.Body).Decode(&got)
	if got.Title != "Senior Backend Developer" || got.Company != "Acme" {
		t.Errorf("updated = %+v", got)
	}
	if got.Salary != "0" || got.Hourly != "80" {
		t.Errorf("compensation = salary %q hourly %q, want 0 and 80", got.Salary, got.Hourly)
	}
}

func TestDeletePosting_QueuesWatcherNotification(t *testing.T) {
	h, store := setupAppHandler(t, testToken)
	signupUser(t, h, author, "Grace")
	p := createPosting(t, h, postingBody)

	serve(t, h, userReq(http.MethodPost, "/watchlist/"+p.ID+"/toggle", "", applicant), http.StatusOK)

	serve(t, h, userReq(http.MethodDelete, "/postings/"+p.ID, "", applicant), http.StatusForbidden)
	serve(t, h, userReq(http.MethodDelete, "/postings/"+p.ID, "", author), http.StatusOK)
	serve(t, h, userReq(http.MethodGet, "/postings/"+p.ID, "", ""), http.StatusNotFound)

	job, err := store.ClaimNextJob(context.Background(), []string{storage.JobPostingRemoved})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob = %v, %v", job, err)
	}
	var payload outbox.PostingRemoved
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.JobID != p.ID || len(payload.Watchers) != 1 || payload.Watchers[0] != applicant {
		t.Errorf("payload = %+v", payload)
	}
}

func TestToggleWatch(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, author, "Grace")
	p := createPosting(t, h, postingBody)

	rr := serve(t, h, userReq(http.MethodPost, "/watchlist/"+p.ID+"/toggle", "", ""), http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"ignored"`) {
		t.Errorf("no-session toggle = %s", rr.Body.String())
	}

	rr = serve(t, h, userReq(http.MethodPost, "/watchlist/"+p.ID+"/toggle", "", applicant), http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"added"`) {
		t.Errorf("first toggle = %s", rr.Body.String())
	}

	rr = serve(t, h, userReq(http.MethodGet, "/watchlist", "", applicant), http.StatusOK)
	var items []watchlist.WatchedJob
	json.NewDecoder(rr.Body).Decode(&items)
	if len(items) != 1 || items[0].ID != p.ID || !items[0].IsFollowed {
		t.Fatalf("watch list = %+v", items)
	}

	rr = serve(t, h, userReq(http.MethodPost, "/watchlist/"+p.ID+"/toggle", "", applicant), http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"removed"`) {
		t.Errorf("second toggle = %s", rr.Body.String())
	}
	rr = serve(t, h, userReq(http.MethodGet, "/watchlist", "", applicant), http.StatusOK)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("watch list after unwatch = %s", rr.Body.String())
	}
}

func TestWatchStream(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)
	signupUser(t, h, author, "Grace")
	p := createPosting(t, h, postingBody)

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/watchlist/stream", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set(session.HeaderUserID, applicant)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := make(chan string, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "data: ") {
				events <- strings.TrimPrefix(line, "data: ")
			}
		}
		close(events)
	}()

	next := func() string {
		t.Helper()
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("stream closed")
			}
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
		}
		return ""
	}

	if first := next(); first != "[]" {
		t.Fatalf("first event = %s, want []", first)
	}

	serve(t, h, userReq(http.MethodPost, "/watchlist/"+p.ID+"/toggle", "", applicant), http.StatusOK)
	for {
		ev := next()
		if strings.Contains(ev, p.ID) {
			break
		}
	}
}

func TestFilters(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	serve(t, h, userReq(http.MethodGet, "/filters/last", "", applicant), http.StatusNotFound)

	rr := serve(t, h, userReq(http.MethodPut, "/filters/last", `{"category":"healthcare","location":"Boston"}`, applicant), http.StatusOK)
	var c listing.Criteria
	json.NewDecoder(rr.Body).Decode(&c)
	if len(c.JobTitles) == 0 {
		t.Errorf("JobTitles not derived: %+v", c)
	}

	serve(t, h, userReq(http.MethodGet, "/filters/last", "", applicant), http.StatusOK)
	serve(t, h, userReq(http.MethodDelete, "/filters/last", "", applicant), http.StatusOK)
	serve(t, h, userReq(http.MethodGet, "/filters/last", "", applicant), http.StatusNotFound)
}

func TestApplyAndInbox(t *testing.T) {
	h, store := setupAppHandler(t, testToken)
	signupUser(t, h, author, "Grace")
	signupUser(t, h, applicant, "Ada")
	p := createPosting(t, h, postingBody)

	serve(t, h, userReq(http.MethodPost, "/postings/"+p.ID+"/apply", "", author), http.StatusBadRequest)
	serve(t, h, userReq(http.MethodPost, "/postings/"+p.ID+"/apply", "", "stranger"), http.StatusForbidden)
	serve(t, h, userReq(http.MethodPost, "/postings/"+p.ID+"/apply", "", applicant), http.StatusCreated)

	rr := serve(t, h, userReq(http.MethodGet, "/messages", "", author), http.StatusOK)
	var msgs []storage.Message
	json.NewDecoder(rr.Body).Decode(&msgs)
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Type != MessageTypeProfileCard || m.SenderID != applicant || m.JobTitle != p.Title || m.SenderName != "Ada Smith" {
		t.Errorf("message = %+v", m)
	}
	var card profile.Card
	if err := json.Unmarshal([]byte(m.ProfileCard), &card); err != nil || card.Name != "Ada Smith" {
		t.Errorf("card = %+v, err = %v", card, err)
	}

	job, err := store.ClaimNextJob(context.Background(), []string{storage.JobMessageSent})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob = %v, %v", job, err)
	}
	if !strings.Contains(job.PayloadJSON, m.ID) {
		t.Errorf("payload = %s", job.PayloadJSON)
	}

	rr = serve(t, h, userReq(http.MethodGet, "/messages", "", applicant), http.StatusOK)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("applicant inbox = %s", rr.Body.String())
	}
}
