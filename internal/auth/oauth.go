package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	sharedauth "docchat-backend/internal/shared/auth"
	"docchat-backend/internal/shared/server/respond"
	"docchat-backend/internal/shared/telemetry"
	"docchat-backend/internal/users"
)

const stateTTL = 5 * time.Minute

// ProfileFetcher loads the signed-in identity with an authorized client.
type ProfileFetcher func(ctx context.Context, client *http.Client) (users.Profile, error)

// Provider is one OAuth identity provider.
type Provider struct {
	Name    string
	Config  *oauth2.Config
	Profile ProfileFetcher
}

func (p Provider) configured() bool {
	return p.Config != nil && p.Config.ClientID != "" && p.Config.ClientSecret != "" && p.Config.RedirectURL != ""
}

// AccountLinker creates or finds the account for an OAuth profile.
type AccountLinker interface {
	UpsertOAuth(ctx context.Context, profile users.Profile) (users.User, error)
}

// Service runs the authorization-code flow for every provider and hands the
// UI a session token.
type Service struct {
	providers  map[string]Provider
	accounts   AccountLinker
	uiRedirect string
	states     *stateStore
}

// NewService builds a Service for the given providers.
func NewService(accounts AccountLinker, uiRedirect string, providers ...Provider) *Service {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name] = p
	}
	return &Service{
		providers:  byName,
		accounts:   accounts,
		uiRedirect: uiRedirect,
		states:     newStateStore(),
	}
}

// RegisterRoutes attaches OAuth routes.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/:provider/start", s.start)
	rg.GET("/auth/:provider/callback", s.callback)
}

func (s *Service) provider(c *gin.Context) (Provider, bool) {
	p, ok := s.providers[c.Param("provider")]
	if !ok {
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Unknown auth provider", nil)
		return Provider{}, false
	}
	if !p.configured() {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", p.Name+" auth not configured", nil)
		return Provider{}, false
	}
	return p, true
}

func (s *Service) start(c *gin.Context) {
	p, ok := s.provider(c)
	if !ok {
		return
	}
	state := uuid.NewString()
	s.states.put(p.Name+":"+state, time.Now().Add(stateTTL))
	c.Redirect(http.StatusFound, p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

func (s *Service) callback(c *gin.Context) {
	p, ok := s.provider(c)
	if !ok {
		return
	}
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "missing state or code", nil)
		return
	}
	if !s.states.consume(p.Name + ":" + state) {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "failed to exchange code", nil)
		return
	}
	profile, err := p.Profile(ctx, p.Config.Client(ctx, token))
	if err != nil || profile.Email == "" {
		telemetry.Warn("auth.profile_failed", map[string]any{"provider": p.Name, "error": err})
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}
	profile.Provider = p.Name

	user, err := s.accounts.UpsertOAuth(ctx, profile)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to sign in", nil)
		return
	}
	jwt, err := sharedauth.SignJWT(sharedauth.Claims{
		Sub:     user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Image,
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to issue token", nil)
		return
	}
	redirectURL, err := appendToken(s.uiRedirect, jwt)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to redirect", nil)
		return
	}
	telemetry.Info("auth.signed_in", map[string]any{"provider": p.Name, "user_id": user.ID})
	c.Redirect(http.StatusFound, redirectURL)
}

type stateStore struct {
	items map[string]time.Time
	mu    sync.Mutex
	now   func() time.Time
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time), now: time.Now}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.items {
		if now.After(v) {
			delete(s.items, k)
		}
	}
	s.items[state] = exp
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	exp, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()
	return ok && !s.now().After(exp)
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
