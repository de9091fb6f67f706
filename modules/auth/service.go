package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tasklink/chat-server/domain/user"
	"github.com/tasklink/chat-server/modules/store"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnverifiedAccount is returned when the account has not been verified yet.
	ErrUnverifiedAccount = errors.New("account is not verified")
	// ErrUnknownUser is returned when a valid token names a user that no longer exists.
	ErrUnknownUser = errors.New("user not found")
)

// UserLookup is the slice of the store the auth service needs.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*user.User, error)
	FindUserByEmail(ctx context.Context, email string) (*user.User, string, error)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string
	ExpiresIn   int64
	Identity    *user.Identity
}

// Service verifies access tokens and logs users in.
type Service struct {
	users  UserLookup
	hasher *PasswordHasher
	jwt    *JWTManager
}

// NewService creates a new auth Service.
func NewService(users UserLookup, hasher *PasswordHasher, jwt *JWTManager) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		jwt:    jwt,
	}
}

// Verify validates an access token and resolves the identity it names.
// Only verified accounts are accepted.
func (s *Service) Verify(ctx context.Context, token string) (*user.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !u.IsVerified {
		return nil, ErrUnverifiedAccount
	}
	return identityOf(u), nil
}

// Login checks the credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, hash, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !s.hasher.Verify(password, hash) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsVerified {
		return nil, ErrUnverifiedAccount
	}

	token, err := s.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   s.jwt.AccessTokenDuration(),
		Identity:    identityOf(u),
	}, nil
}

func identityOf(u *user.User) *user.Identity {
	return &user.Identity{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        u.Role,
		DisplayName: u.DisplayName(),
		IsVerified:  u.IsVerified,
	}
}
