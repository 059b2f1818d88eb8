package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"docchat-backend/internal/shared/auth"
	"docchat-backend/internal/shared/server/middleware"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	t.Setenv("JWT_SECRET", "users-secret")
	gin.SetMode(gin.TestMode)
	svc := newTestService()
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Auth(auth.HMACVerifier{}, "/api/auth/"))
	NewHandler(svc).RegisterRoutes(router.Group("/api"))
	return router, svc
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRegisterEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	body := map[string]string{"name": "Ada", "email": "Ada@Example.com", "password": "12345678"}

	resp := postJSON(router, "/api/auth/register", body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload struct {
		Message string     `json:"message"`
		User    PublicUser `json:"user"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Message != "Account created successfully" || payload.User.Email != "ada@example.com" || payload.User.ID == "" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("password")) {
		t.Fatalf("response must not mention the password")
	}

	resp = postJSON(router, "/api/auth/register", body)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}

	resp = postJSON(router, "/api/auth/register", map[string]string{"name": "B", "email": "b@example.com", "password": "short"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestLoginThenMe(t *testing.T) {
	router, _ := newTestRouter(t)
	postJSON(router, "/api/auth/register", map[string]string{"name": "Ada", "email": "ada@example.com", "password": "12345678"})

	resp := postJSON(router, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "nope-nope"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	resp = postJSON(router, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "12345678"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var login struct {
		Token string     `json:"token"`
		User  PublicUser `json:"user"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &login); err != nil || login.Token == "" {
		t.Fatalf("expected token, got %s (%v)", resp.Body.String(), err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	me := httptest.NewRecorder()
	router.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", me.Code)
	}
	var profile struct {
		User PublicUser `json:"user"`
	}
	if err := json.Unmarshal(me.Body.Bytes(), &profile); err != nil || profile.User.ID != login.User.ID {
		t.Fatalf("unexpected profile %s", me.Body.String())
	}
}

func TestMeRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
