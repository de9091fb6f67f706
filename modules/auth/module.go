package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/tasklink/chat-server/modules/store"
)

// Module verifies access tokens and serves logins on top of the store module.
type Module struct {
	jwtConfig  JWTConfig
	bcryptCost int
	users      UserLookup
	service    *Service
	logger     types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new auth module.
func NewModule(jwtConfig JWTConfig, bcryptCost int, logger types.Logger) *Module {
	return &Module{
		jwtConfig:  jwtConfig,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"store"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "store" {
		m.users = store.NewAdapter(container)
	}
}

// Start builds the auth service.
func (m *Module) Start(_ context.Context) error {
	if m.users == nil {
		return fmt.Errorf("store dependency not set")
	}
	if m.jwtConfig.SecretKey == "" {
		return fmt.Errorf("jwt secret key is empty")
	}

	m.service = NewService(m.users, NewPasswordHasher(m.bcryptCost), NewJWTManager(m.jwtConfig))
	m.logger.Info("Auth module started", "issuer", m.jwtConfig.Issuer, "accessTTL", m.jwtConfig.AccessTokenDuration.String())
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Auth module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "service not initialized"}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceVerifyToken,
		json.Unmarshal,
		json.Marshal,
		m.handleVerifyToken,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceVerifyToken, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceLogin,
		json.Unmarshal,
		json.Marshal,
		m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLogin, err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceVerifyToken, ServiceLogin})
	return nil
}

// handleVerifyToken answers token failures in the response, not as an error.
func (m *Module) handleVerifyToken(ctx context.Context, req VerifyTokenRequest, _ *mono.Msg) (VerifyTokenResponse, error) {
	identity, err := m.service.Verify(ctx, req.Token)
	if err != nil {
		if reason, ok := reasonOf(err); ok {
			return VerifyTokenResponse{Valid: false, Reason: reason}, nil
		}
		return VerifyTokenResponse{}, err
	}
	return VerifyTokenResponse{Valid: true, Identity: identity}, nil
}

func (m *Module) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	result, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		if reason, ok := reasonOf(err); ok {
			m.logger.Debug("Login rejected", "reason", reason)
			return LoginResponse{OK: false, Reason: reason}, nil
		}
		return LoginResponse{}, err
	}
	return LoginResponse{
		OK:          true,
		AccessToken: result.AccessToken,
		ExpiresIn:   result.ExpiresIn,
		TokenType:   "Bearer",
		Identity:    result.Identity,
	}, nil
}
