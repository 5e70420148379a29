package service

import (
	"context"
	"regexp"
	"strings"

	"circles/internal/middleware"
	"circles/internal/models"
	"circles/internal/repository"
	"circles/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uint, username string) (string, error)
}

// AuthService handles local signup and login plus federated Google login.
type AuthService struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	hashCost int
}

type SignupInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
}

type LocalLoginInput struct {
	Username string
	Password string
}

// GoogleLoginInput carries the identity asserted by the client after the
// Google sign-in flow.
type GoogleLoginInput struct {
	GoogleID   string
	Username   string
	FirstName  string
	LastName   string
	ProfileImg string
}

// AuthResult is returned by every successful authentication.
type AuthResult struct {
	Token   string             `json:"token"`
	User    models.UserSummary `json:"user"`
	Created bool               `json:"created"`
}

func NewAuthService(userRepo repository.UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{userRepo: userRepo, tokens: tokens, hashCost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.hashCost = cost
	return s
}

// Signup creates a local account and signs the user in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateName("first name", in.FirstName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateName("last name", in.LastName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.FindLocalByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := models.NewUser(in.Username, strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName),
		models.LocalIdentity(string(hash)))
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "local user created", "user_id", user.ID)

	return s.issue(user, true)
}

// LoginLocal verifies a username and password. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *AuthService) LoginLocal(ctx context.Context, in LocalLoginInput) (*AuthResult, error) {
	if in.Username == "" || in.Password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}
	user, err := s.userRepo.FindLocalByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user, false)
}

// LoginGoogle finds the federated user by Google id, creating it on first
// login.
func (s *AuthService) LoginGoogle(ctx context.Context, in GoogleLoginInput) (*AuthResult, error) {
	googleID := strings.TrimSpace(in.GoogleID)
	if googleID == "" {
		return nil, models.NewValidationError("googleId is required")
	}

	user, err := s.userRepo.FindByExternalID(ctx, googleID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return s.issue(user, false)
	}

	user = models.NewUser(normalizeUsername(in.Username), truncateName(in.FirstName), truncateName(in.LastName),
		models.FederatedIdentity(googleID))
	user.Profile = &models.Profile{}
	if img := strings.TrimSpace(in.ProfileImg); img != "" {
		user.Profile.AvatarURL = &img
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !models.IsCode(err, models.CodeConflict) {
			return nil, err
		}
		// Lost a race with a concurrent first login for the same id.
		user, err = s.userRepo.FindByExternalID(ctx, googleID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, models.NewConflictError("Google account is already linked")
		}
		return s.issue(user, false)
	}
	middleware.Logger.InfoContext(ctx, "federated user created", "user_id", user.ID)

	return s.issue(user, true)
}

func (s *AuthService) issue(user *models.User, created bool) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user.Summary(), Created: created}, nil
}

var usernameReplacer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// normalizeUsername coerces a provider display name into the local
// username alphabet and length.
func normalizeUsername(name string) string {
	u := usernameReplacer.ReplaceAllString(strings.TrimSpace(name), "_")
	u = strings.Trim(u, "_-")
	if len(u) > 30 {
		u = strings.TrimRight(u[:30], "_-")
	}
	if len(u) < 3 {
		u = strings.TrimLeft(u+"_user", "_")
	}
	return u
}

func truncateName(name string) string {
	name = strings.TrimSpace(name)
	r := []rune(name)
	if len(r) > validation.MaxNameLength {
		return string(r[:validation.MaxNameLength])
	}
	return name
}
