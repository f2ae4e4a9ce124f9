package services

import (
	"context"
	"errors"
	"fmt"

	"collabspace/logging"
	"collabspace/models"
	"collabspace/utils"
)

// AuthResult is returned by registration and sign-in.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type AuthService struct {
	users  *UserService
	tokens *utils.TokenManager
}

func NewAuthService(users *UserService, tokens *utils.TokenManager) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, data models.NewUser) (*AuthResult, error) {
	user, err := s.users.Create(ctx, data)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// SignIn checks the credentials. Unknown email and wrong password produce the
// same error so callers cannot tell which accounts exist.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	invalid := fmt.Errorf("%w: Login et mot de passe invalides", ErrInvalidCredentials)
	if normalizeEmail(email) == "" || password == "" {
		return nil, invalid
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		logging.Logger.Warnf("Event ID: LOGIN_FAILED, Description: Sign-in attempt for unknown email")
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user, password) {
		logging.Logger.Warnf("Event ID: LOGIN_FAILED, Description: Wrong password for user %s", user.ID)
		return nil, invalid
	}
	if !user.IsActive() {
		return nil, forbiddenf("account is inactive")
	}
	logging.Logger.Infof("Event ID: LOGIN_SUCCESS, Description: User %s signed in", user.ID)
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// Authenticate resolves a bearer token to the current, still existing user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, forbiddenf("account is inactive")
	}
	return user, nil
}
