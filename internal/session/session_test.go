package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tome/internal/api"
	"tome/internal/cache"
)

func newTestStore(t *testing.T, handler http.Handler) (*Store, *cache.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := api.NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	cacheStore, err := cache.Open(filepath.Join(t.TempDir(), "tome.db"))
	if err != nil {
		t.Fatalf("cache.Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = cacheStore.Close() })

	store := New(client, cacheStore, nil)
	client.SetCredentialSource(store)
	return store, cacheStore
}

func authHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/users/login/":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["username"] != "maria" || body["password"] != "Secret123!" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, `{"access":"a1","refresh":"r1","user":{"id":7,"username":"maria"}}`)
		case "/api/users/register/":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["username"] == "taken" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"username":["a user with that username already exists"]}`)
				return
			}
			_, _ = io.WriteString(w, `{"id":8,"username":"`+body["username"]+`"}`)
		case "/api/token/verify/":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["token"] == "a1" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		case "/api/token/refresh/":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["refresh"] == "r1" {
				_, _ = io.WriteString(w, `{"access":"a2"}`)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.NotFound(w, r)
		}
	})
}

func TestLogin_Success(t *testing.T) {
	s, _ := newTestStore(t, authHandler(t))

	if err := s.Login(context.Background(), "maria", "Secret123!"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	snap := s.Snapshot()
	if !snap.IsAuthenticated {
		t.Fatal("IsAuthenticated = false after successful login")
	}
	if snap.User == nil || snap.User.ID != 7 {
		t.Fatalf("User = %#v, want id 7", snap.User)
	}
	if snap.Credential.Access != "a1" || snap.Credential.Refresh != "r1" {
		t.Fatalf("Credential = %#v", snap.Credential)
	}
	if snap.IsLoading || snap.Err != "" {
		t.Fatalf("snapshot = %#v, want settled without error", snap)
	}
}

func TestLogin_FailureLeavesStateUntouched(t *testing.T) {
	s, _ := newTestStore(t, authHandler(t))

	err := s.Login(context.Background(), "maria", "wrong")
	if !api.IsUnauthenticated(err) {
		t.Fatalf("Login error = %v, want Unauthenticated", err)
	}

	snap := s.Snapshot()
	if snap.IsAuthenticated || snap.User != nil || snap.Credential.Access != "" {
		t.Fatalf("snapshot = %#v, want untouched unauthenticated state", snap)
	}
	if snap.Err == "" {
		t.Fatal("Err empty after failed login, want message")
	}
}

func TestSignUp_RegistersThenLogsIn(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/users/register/":
			_, _ = io.WriteString(w, `{"id":9,"username":"nico"}`)
		case "/api/users/login/":
			_, _ = io.WriteString(w, `{"access":"n1","refresh":"nr1","user":{"id":9,"username":"nico"}}`)
		default:
			http.NotFound(w, r)
		}
	})
	s, _ := newTestStore(t, handler)

	err := s.SignUp(context.Background(), api.RegisterInput{Username: "nico", Password: "pw"})
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}
	snap := s.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil || snap.User.ID != 9 {
		t.Fatalf("snapshot = %#v, want authenticated user 9", snap)
	}
}

func TestSignUp_ValidationErrorSurfacesFields(t *testing.T) {
	s, _ := newTestStore(t, authHandler(t))

	err := s.SignUp(context.Background(), api.RegisterInput{Username: "taken", Password: "pw"})
	if !api.IsKind(err, api.Validation) {
		t.Fatalf("SignUp error = %v, want Validation", err)
	}
	if s.IsAuthenticated() {
		t.Fatal("authenticated after failed registration")
	}
}

func TestSignUp_AutoLoginFailureIsSurfaced(t *testing.T) {
	// Registration succeeds but the follow-up login is rejected; the login
	// error wins and the account is not rolled back.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/users/register/":
			_, _ = io.WriteString(w, `{"id":10,"username":"zoe"}`)
		case "/api/users/login/":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.NotFound(w, r)
		}
	})
	s, _ := newTestStore(t, handler)

	err := s.SignUp(context.Background(), api.RegisterInput{Username: "zoe", Password: "pw"})
	if !api.IsUnauthenticated(err) {
		t.Fatalf("SignUp error = %v, want the login error", err)
	}
	if s.Snapshot().Err == "" {
		t.Fatal("Err empty, want surfaced login error")
	}
}

func TestLogout_ClearsStateAndCache(t *testing.T) {
	s, cacheStore := newTestStore(t, authHandler(t))

	if err := s.Login(context.Background(), "maria", "Secret123!"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	s.Logout()

	snap := s.Snapshot()
	if snap.IsAuthenticated || snap.User != nil || snap.Credential.Access != "" {
		t.Fatalf("snapshot = %#v, want cleared", snap)
	}
	var saved persisted
	if _, ok := cacheStore.Get(cache.KeySession, &saved); ok {
		t.Fatal("persisted session still present after logout")
	}
}

func TestCheckAuth_NoPersistedSessionFinishesInitializing(t *testing.T) {
	s, _ := newTestStore(t, authHandler(t))

	if !s.Snapshot().IsInitializing {
		t.Fatal("IsInitializing = false before CheckAuth")
	}
	s.CheckAuth(context.Background())
	snap := s.Snapshot()
	if snap.IsInitializing {
		t.Fatal("IsInitializing = true after CheckAuth")
	}
	if snap.IsAuthenticated {
		t.Fatal("authenticated without a persisted session")
	}
}

func TestCheckAuth_RestoresVerifiedSession(t *testing.T) {
	s, cacheStore := newTestStore(t, authHandler(t))
	seed := persisted{
		User:            &api.User{ID: 7, Username: "maria"},
		Credential:      api.Credential{Access: "a1", Refresh: "r1"},
		IsAuthenticated: true,
	}
	if err := cacheStore.Put(cache.KeySession, seed); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	s.CheckAuth(context.Background())
	snap := s.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil || snap.User.ID != 7 {
		t.Fatalf("snapshot = %#v, want restored session", snap)
	}
}

func TestCheckAuth_RefreshesRejectedAccessToken(t *testing.T) {
	s, cacheStore := newTestStore(t, authHandler(t))
	seed := persisted{
		Credential:      api.Credential{Access: "stale", Refresh: "r1"},
		IsAuthenticated: true,
	}
	if err := cacheStore.Put(cache.KeySession, seed); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	s.CheckAuth(context.Background())
	snap := s.Snapshot()
	if !snap.IsAuthenticated {
		t.Fatal("not authenticated after successful refresh")
	}
	if snap.Credential.Access != "a2" {
		t.Fatalf("access = %q, want refreshed a2", snap.Credential.Access)
	}
}

func TestCheckAuth_InvalidSessionIsCleared(t *testing.T) {
	s, cacheStore := newTestStore(t, authHandler(t))
	seed := persisted{
		Credential:      api.Credential{Access: "stale", Refresh: "dead"},
		IsAuthenticated: true,
	}
	if err := cacheStore.Put(cache.KeySession, seed); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	s.CheckAuth(context.Background())
	snap := s.Snapshot()
	if snap.IsAuthenticated {
		t.Fatal("authenticated with a dead refresh token")
	}
	var saved persisted
	if _, ok := cacheStore.Get(cache.KeySession, &saved); ok {
		t.Fatal("rejected session still persisted")
	}
}

func TestCheckAuth_RunsOnce(t *testing.T) {
	verifications := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token/verify/" {
			verifications++
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
	s, cacheStore := newTestStore(t, handler)
	seed := persisted{Credential: api.Credential{Access: "a1"}, IsAuthenticated: true}
	if err := cacheStore.Put(cache.KeySession, seed); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	s.CheckAuth(context.Background())
	s.CheckAuth(context.Background())
	if verifications != 1 {
		t.Fatalf("verify calls = %d, want 1", verifications)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestToken_ProactivelyRefreshesExpiringAccessToken(t *testing.T) {
	refreshes := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/users/login/":
			expiring := signedToken(t, time.Now().Add(5*time.Second))
			resp := map[string]any{"access": expiring, "refresh": "r1", "user": map[string]any{"id": 7}}
			_ = json.NewEncoder(w).Encode(resp)
		case "/api/token/refresh/":
			refreshes++
			_, _ = io.WriteString(w, `{"access":"fresh"}`)
		default:
			http.NotFound(w, r)
		}
	})
	s, _ := newTestStore(t, handler)

	if err := s.Login(context.Background(), "maria", "Secret123!"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	token, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "fresh" {
		t.Fatalf("token = %q, want refreshed token", token)
	}
	if refreshes != 1 {
		t.Fatalf("refresh calls = %d, want 1", refreshes)
	}
	if s.Snapshot().Credential.Access != "fresh" {
		t.Fatal("refreshed access token not stored")
	}
}

func TestToken_LongLivedTokenSkipsRefresh(t *testing.T) {
	s, _ := newTestStore(t, authHandler(t))
	longLived := signedToken(t, time.Now().Add(time.Hour))
	s.storeCredential(api.Credential{Access: longLived, Refresh: "r1"})

	token, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != longLived {
		t.Fatalf("token = %q, want the stored access token", token)
	}
}

func TestRefresh_FailureForcesLogout(t *testing.T) {
	s, _ := newTestStore(t, authHandler(t))
	s.storeCredential(api.Credential{Access: "a1", Refresh: "dead"})

	_, err := s.Refresh(context.Background())
	if !api.IsUnauthenticated(err) {
		t.Fatalf("Refresh error = %v, want Unauthenticated", err)
	}
	snap := s.Snapshot()
	if snap.Credential.Access != "" || snap.IsAuthenticated {
		t.Fatalf("snapshot = %#v, want logged out", snap)
	}
}

func TestExpiresWithin(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name  string
		token string
		want  bool
	}{
		{"expired", signedToken(t, now.Add(-time.Minute)), true},
		{"expiring", signedToken(t, now.Add(10*time.Second)), true},
		{"live", signedToken(t, now.Add(time.Hour)), false},
		{"opaque", "not-a-jwt", false},
	}
	for _, tc := range cases {
		if got := expiresWithin(tc.token, now, refreshLeeway); got != tc.want {
			t.Fatalf("%s: expiresWithin = %v, want %v", tc.name, got, tc.want)
		}
	}
}
