package health

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docchat-backend/internal/shared/server/respond"
	"docchat-backend/internal/shared/storage/db"
)

const pingTimeout = 2 * time.Second

// Pinger checks a dependency.
type Pinger func(ctx context.Context) error

// Service reports liveness and database reachability.
type Service struct {
	Ping Pinger
}

// NewService constructs a health service. A nil database means in-memory repos.
func NewService(sqlDB *sql.DB) *Service {
	if sqlDB == nil {
		return &Service{}
	}
	return &Service{Ping: func(ctx context.Context) error {
		return db.Ping(ctx, sqlDB, pingTimeout)
	}}
}

// Status returns the health payload and whether every dependency is up.
func (s *Service) Status(ctx context.Context) (gin.H, bool) {
	if s.Ping == nil {
		return gin.H{"ok": true, "database": "memory"}, true
	}
	if err := s.Ping(ctx); err != nil {
		return gin.H{"ok": false, "database": "down"}, false
	}
	return gin.H{"ok": true, "database": "up"}, true
}

// RegisterRoutes attaches GET /health.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		body, ok := s.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, body)
	})
}
