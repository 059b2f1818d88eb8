package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	sharedauth "docchat-backend/internal/shared/auth"
	"docchat-backend/internal/users"
)

func fakeProviderServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"login": "octocat", "email": "", "avatar_url": "https://img/octo.png"})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "Octo@Example.com", "primary": true, "verified": true},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuth(t *testing.T, srv *httptest.Server) (*gin.Engine, *Service, *users.Service) {
	t.Helper()
	t.Setenv("JWT_SECRET", "oauth-secret")
	gin.SetMode(gin.TestMode)
	accounts := users.NewService(users.NewMemoryRepo())
	accounts.Cost = bcrypt.MinCost
	provider := Provider{
		Name: "github",
		Config: &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			RedirectURL:  "http://api.local/api/auth/github/callback",
			Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"},
		},
		Profile: githubProfile(srv.URL+"/user", srv.URL+"/user/emails"),
	}
	svc := NewService(accounts, "http://ui.local/auth/done", provider, Google("", "", ""))
	router := gin.New()
	svc.RegisterRoutes(router.Group("/api"))
	return router, svc, accounts
}

func get(router *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestOAuthFlowIssuesSessionToken(t *testing.T) {
	srv := fakeProviderServer(t)
	router, _, accounts := newTestAuth(t, srv)

	resp := get(router, "/api/auth/github/start")
	if resp.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", resp.Code)
	}
	loc, err := url.Parse(resp.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	state := loc.Query().Get("state")
	if !strings.HasPrefix(loc.String(), srv.URL+"/authorize") || state == "" {
		t.Fatalf("unexpected authorize url %s", loc)
	}

	resp = get(router, "/api/auth/github/callback?code=abc&state="+state)
	if resp.Code != http.StatusFound {
		t.Fatalf("expected redirect to UI, got %d: %s", resp.Code, resp.Body.String())
	}
	back, err := url.Parse(resp.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if back.Host != "ui.local" {
		t.Fatalf("unexpected redirect host %q", back.Host)
	}
	claims, err := sharedauth.VerifyJWT(back.Query().Get("token"))
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Email != "octo@example.com" || claims.Name != "octocat" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if ok, _ := accounts.Exists(context.Background(), claims.Sub); !ok {
		t.Fatalf("token subject must be the stored account id")
	}

	resp = get(router, "/api/auth/github/callback?code=abc&state="+state)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected state to be single-use, got %d", resp.Code)
	}
}

func TestOAuthRejectsUnknownOrUnconfigured(t *testing.T) {
	srv := fakeProviderServer(t)
	router, _, _ := newTestAuth(t, srv)

	if resp := get(router, "/api/auth/myspace/start"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown provider, got %d", resp.Code)
	}
	if resp := get(router, "/api/auth/google/start"); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unconfigured provider, got %d", resp.Code)
	}
	if resp := get(router, "/api/auth/github/callback?code=abc"); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without state, got %d", resp.Code)
	}
}

func TestStateStoreExpires(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	store := newStateStore()
	store.now = func() time.Time { return now }

	store.put("a", now.Add(stateTTL))
	now = now.Add(stateTTL + time.Second)
	if store.consume("a") {
		t.Fatalf("expired state must be rejected")
	}
}
