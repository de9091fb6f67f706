package auth

import "github.com/tasklink/chat-server/domain/user"

// Service names registered by the auth module.
const (
	ServiceVerifyToken = "verify-token"
	ServiceLogin       = "login"
)

// Failure reasons carried across the service boundary, where error values are lost.
const (
	ReasonInvalidToken       = "invalid_token"
	ReasonExpiredToken       = "expired_token"
	ReasonUnverified         = "unverified"
	ReasonUnknownUser        = "unknown_user"
	ReasonInvalidCredentials = "invalid_credentials"
)

// VerifyTokenRequest is the request for verify-token.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse is the response for verify-token.
type VerifyTokenResponse struct {
	Valid    bool           `json:"valid"`
	Identity *user.Identity `json:"identity,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// LoginRequest is the request for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the response for login.
type LoginResponse struct {
	OK          bool           `json:"ok"`
	AccessToken string         `json:"access_token,omitempty"`
	ExpiresIn   int64          `json:"expires_in,omitempty"`
	TokenType   string         `json:"token_type,omitempty"`
	Identity    *user.Identity `json:"identity,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

var reasonErrors = map[string]error{
	ReasonInvalidToken:       ErrInvalidToken,
	ReasonExpiredToken:       ErrExpiredToken,
	ReasonUnverified:         ErrUnverifiedAccount,
	ReasonUnknownUser:        ErrUnknownUser,
	ReasonInvalidCredentials: ErrInvalidCredentials,
}

// reasonOf maps a domain error to its reason code. The second result is false for
// infrastructure failures, which travel as service errors instead.
func reasonOf(err error) (string, bool) {
	for reason, target := range reasonErrors {
		if err == target {
			return reason, true
		}
	}
	return "", false
}

// errorOf maps a reason code back to its domain error.
func errorOf(reason string) error {
	if err, ok := reasonErrors[reason]; ok {
		return err
	}
	return ErrInvalidToken
}
