package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module provides the job, message and notification store via GORM + SQLite.
type Module struct {
	db       *gorm.DB
	repo     *Repository
	service  *Service
	dbPath   string
	dbDebug  bool
	seedDemo bool
	logger   types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.ServiceProviderModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new store module.
func NewModule(dbPath string, dbDebug, seedDemo bool, logger types.Logger) *Module {
	return &Module{
		dbPath:   dbPath,
		dbDebug:  dbDebug,
		seedDemo: seedDemo,
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start opens the database, runs migrations and optionally seeds demo data.
func (m *Module) Start(_ context.Context) error {
	logLevel := logger.Silent
	if m.dbDebug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	m.repo = NewRepository(db)
	if err := m.repo.Migrate(); err != nil {
		return err
	}
	m.service = NewService(m.repo)

	if m.seedDemo {
		if err := Seed(m.repo); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
		m.logger.Info("Seeded demo users and jobs")
	}

	m.logger.Info("Store module started", "database", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.logger.Info("Store module stopped")
	return nil
}

// Health performs a health check on the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetUser, json.Unmarshal, json.Marshal, m.getUser,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetUser, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceFindUserByEmail, json.Unmarshal, json.Marshal, m.findUserByEmail,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceFindUserByEmail, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetJob, json.Unmarshal, json.Marshal, m.getJob,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetJob, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateMessage, json.Unmarshal, json.Marshal, m.createMessage,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateMessage, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMarkRead, json.Unmarshal, json.Marshal, m.markRead,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceMarkRead, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListMessages, json.Unmarshal, json.Marshal, m.listMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListMessages, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateNotification, json.Unmarshal, json.Marshal, m.createNotification,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateNotification, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListNotifications, json.Unmarshal, json.Marshal, m.listNotifications,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListNotifications, err)
	}

	m.logger.Info("Registered store services",
		"services", []string{
			ServiceGetUser, ServiceFindUserByEmail, ServiceGetJob, ServiceCreateMessage,
			ServiceMarkRead, ServiceListMessages, ServiceCreateNotification, ServiceListNotifications,
		})
	return nil
}

// Not-found outcomes are answered with Found=false so callers can tell them apart from
// infrastructure failures.

func (m *Module) getUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	u, err := m.service.GetUser(ctx, req.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return GetUserResponse{Found: false}, nil
	}
	if err != nil {
		return GetUserResponse{}, err
	}
	return GetUserResponse{Found: true, User: u}, nil
}

func (m *Module) findUserByEmail(ctx context.Context, req FindUserByEmailRequest, _ *mono.Msg) (FindUserByEmailResponse, error) {
	u, err := m.service.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, ErrUserNotFound) {
		return FindUserByEmailResponse{Found: false}, nil
	}
	if err != nil {
		return FindUserByEmailResponse{}, err
	}
	return FindUserByEmailResponse{Found: true, User: u, PasswordHash: u.PasswordHash}, nil
}

func (m *Module) getJob(ctx context.Context, req GetJobRequest, _ *mono.Msg) (GetJobResponse, error) {
	j, err := m.service.GetJob(ctx, req.JobID)
	if errors.Is(err, ErrJobNotFound) {
		return GetJobResponse{Found: false}, nil
	}
	if err != nil {
		return GetJobResponse{}, err
	}
	return GetJobResponse{Found: true, Job: j}, nil
}

func (m *Module) createMessage(ctx context.Context, req CreateMessageRequest, _ *mono.Msg) (CreateMessageResponse, error) {
	msg, err := m.service.CreateMessage(ctx, req)
	if err != nil {
		return CreateMessageResponse{}, err
	}
	return CreateMessageResponse{Message: msg}, nil
}

func (m *Module) markRead(ctx context.Context, req MarkReadRequest, _ *mono.Msg) (MarkReadResponse, error) {
	receipts, err := m.service.MarkRead(ctx, req.MessageIDs, req.ReaderID)
	if err != nil {
		return MarkReadResponse{}, err
	}
	return MarkReadResponse{Receipts: receipts}, nil
}

func (m *Module) listMessages(ctx context.Context, req ListMessagesRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	messages, err := m.service.ListMessages(ctx, req.JobID, req.Limit)
	if err != nil {
		return ListMessagesResponse{}, err
	}
	return ListMessagesResponse{Messages: messages}, nil
}

func (m *Module) createNotification(ctx context.Context, req CreateNotificationRequest, _ *mono.Msg) (CreateNotificationResponse, error) {
	n, err := m.service.CreateNotification(ctx, req)
	if err != nil {
		return CreateNotificationResponse{}, err
	}
	return CreateNotificationResponse{Notification: n}, nil
}

func (m *Module) listNotifications(ctx context.Context, req ListNotificationsRequest, _ *mono.Msg) (ListNotificationsResponse, error) {
	notifications, err := m.service.ListNotifications(ctx, req.UserID, req.UnreadOnly, req.Limit)
	if err != nil {
		return ListNotificationsResponse{}, err
	}
	return ListNotificationsResponse{Notifications: notifications}, nil
}
