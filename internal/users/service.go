package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxNameLength     = 100
	minPasswordLength = 8
	maxPasswordBytes  = 72
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

// ErrInvalidCredentials is returned by Authenticate for any mismatch.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ValidationError carries a client-facing message.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// RegisterInput is the credentials signup payload.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in RegisterInput) normalized() RegisterInput {
	return RegisterInput{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: in.Password,
	}
}

func (in RegisterInput) validate() error {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return ValidationError{Message: "Name, email, and password are required"}
	}
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.RuneLength(1, maxNameLength).Error("Name cannot be more than 100 characters"),
		),
		validation.Field(&in.Email,
			validation.Match(emailPattern).Error("Please enter a valid email address"),
		),
		validation.Field(&in.Password,
			validation.RuneLength(minPasswordLength, 0).Error("Password must be at least 8 characters"),
			validation.By(func(any) error {
				if len(in.Password) > maxPasswordBytes {
					return ValidationError{Message: "Password cannot be longer than 72 bytes"}
				}
				return nil
			}),
		),
	)
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, field := range []string{"name", "email", "password"} {
			if fieldErr, ok := errs[field]; ok {
				return ValidationError{Message: fieldErr.Error()}
			}
		}
	}
	return err
}

// Service manages accounts.
type Service struct {
	Repo Repo
	// Cost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	Cost int
	Now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Register creates a credentials account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in = in.normalized()
	if err := in.validate(); err != nil {
		return User{}, err
	}
	if _, err := s.Repo.GetByEmail(ctx, in.Email); err == nil {
		return User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	user := User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate checks an email and password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !user.HasPassword() {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UpsertOAuth returns the account for profile's email, creating it on first sign-in.
func (s *Service) UpsertOAuth(ctx context.Context, profile Profile) (User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return User{}, errors.New("oauth profile has no email")
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	now := s.now()
	user = User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Image:     profile.Image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return s.Repo.GetByEmail(ctx, email)
		}
		return User{}, err
	}
	return user, nil
}

// Exists reports whether userID is a known account.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := s.Repo.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// GetByID returns the account for userID.
func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) cost() int {
	if s.Cost > 0 {
		return s.Cost
	}
	return bcrypt.DefaultCost
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
