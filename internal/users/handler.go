package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docchat-backend/internal/shared/auth"
	"docchat-backend/internal/shared/server/middleware"
	"docchat-backend/internal/shared/server/respond"
	"docchat-backend/internal/shared/telemetry"
)

// Handler serves registration, credentials login and the session profile.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches user routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
	rg.GET("/me", h.me)
}

func (h *Handler) register(c *gin.Context) {
	var in RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "Invalid request body", nil)
		return
	}
	user, err := h.Svc.Register(c.Request.Context(), in)
	if err != nil {
		var verr ValidationError
		switch {
		case errors.As(err, &verr):
			respond.Error(c, http.StatusBadRequest, respond.CodeValidation, verr.Message, nil)
		case errors.Is(err, ErrEmailTaken):
			respond.Error(c, http.StatusConflict, respond.CodeConflict, "An account with this email already exists", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "An error occurred during registration", nil)
		}
		return
	}
	telemetry.Info("user.registered", map[string]any{
		"request_id": middleware.RequestIDFromContext(c),
		"user_id":    user.ID,
	})
	respond.Created(c, gin.H{
		"message": "Account created successfully",
		"user":    toPublic(user),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "Invalid request body", nil)
		return
	}
	user, err := h.Svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid email or password", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to sign in", nil)
		return
	}
	token, err := auth.SignJWT(auth.Claims{Sub: user.ID, Email: user.Email, Name: user.Name, Picture: user.Image})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to issue token", nil)
		return
	}
	respond.OK(c, gin.H{"token": token, "user": toPublic(user)})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "User not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Failed to load user", nil)
		return
	}
	respond.OK(c, gin.H{"user": toPublic(user)})
}
