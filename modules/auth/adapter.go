package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/tasklink/chat-server/domain/user"
)

// AuthPort is what other modules use to authenticate callers.
type AuthPort interface {
	Verify(ctx context.Context, token string) (*user.Identity, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

var _ AuthPort = (*AuthAdapter)(nil)

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// Verify validates an access token and returns the identity it belongs to.
func (a *AuthAdapter) Verify(ctx context.Context, token string) (*user.Identity, error) {
	req := VerifyTokenRequest{Token: token}
	var resp VerifyTokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceVerifyToken,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceVerifyToken, err)
	}

	if !resp.Valid || resp.Identity == nil {
		return nil, errorOf(resp.Reason)
	}
	return resp.Identity, nil
}

// Login exchanges credentials for an access token.
func (a *AuthAdapter) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp LoginResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceLogin,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceLogin, err)
	}

	if !resp.OK {
		return nil, errorOf(resp.Reason)
	}
	return &LoginResult{
		AccessToken: resp.AccessToken,
		ExpiresIn:   resp.ExpiresIn,
		Identity:    resp.Identity,
	}, nil
}
