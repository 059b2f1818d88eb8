package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthReportsDatabaseState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		svc    *Service
		code   int
		marker string
	}{
		{"memory", NewService(nil), http.StatusOK, `"database":"memory"`},
		{"up", &Service{Ping: func(context.Context) error { return nil }}, http.StatusOK, `"database":"up"`},
		{"down", &Service{Ping: func(context.Context) error { return errors.New("refused") }}, http.StatusServiceUnavailable, `"database":"down"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			tc.svc.RegisterRoutes(router.Group("/api"))
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			if resp.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, resp.Code)
			}
			if !strings.Contains(resp.Body.String(), tc.marker) {
				t.Fatalf("expected %s in %s", tc.marker, resp.Body.String())
			}
		})
	}
}
