package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
	"github.com/tasklink/chat-server/config"
	"github.com/tasklink/chat-server/modules/api"
	"github.com/tasklink/chat-server/modules/auth"
	"github.com/tasklink/chat-server/modules/notification"
	"github.com/tasklink/chat-server/modules/presence"
	"github.com/tasklink/chat-server/modules/realtime"
	"github.com/tasklink/chat-server/modules/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== TaskLink Chat Server - Fiber WebSocket + Presence ===")

	cfg, err := config.Load()
	if err != nil {
		// Unparsable values keep their defaults.
		log.Printf("Configuration warning: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	storeModule := store.NewModule(cfg.DBPath, cfg.DBDebug, cfg.SeedDemo, logger)
	authModule := auth.NewModule(auth.JWTConfig{
		SecretKey:           cfg.JWTSecretKey,
		AccessTokenDuration: cfg.AccessTokenTTL,
		Issuer:              cfg.JWTIssuer,
	}, auth.DefaultBcryptCost, logger)
	presenceModule := presence.NewModule(cfg.PresenceBackend, cfg.RedisAddr, cfg.RedisPassword, cfg.PresenceTTL, logger)
	notificationModule := notification.NewModule(logger)
	realtimeModule := realtime.NewModule(cfg.HeartbeatInterval, realtime.Options{
		MessageRate:  cfg.MessageRate,
		MessageBurst: cfg.MessageBurst,
	}, logger)
	apiModule := api.NewModule(cfg.Port, cfg.CORSAllowedOrigins, logger)

	// The presence store and the session manager hold live state, so they are handed over
	// directly instead of through the ServiceContainer.
	realtimeModule.SetPresenceStore(presenceModule.Store())
	apiModule.SetSessions(realtimeModule.Manager())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - store: GORM persistence (ServiceProviderModule)
	// - auth: token verification and login (depends on store)
	// - presence: presence registry (ServiceProviderModule)
	// - notification: NotificationRequested consumer (depends on store)
	// - realtime: chat session manager (depends on auth, store; emits NotificationRequested)
	// - api: Fiber HTTP/WebSocket server (depends on auth, store, presence)
	app.Register(storeModule)
	app.Register(authModule)
	app.Register(presenceModule)
	app.Register(notificationModule)
	app.Register(realtimeModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - Database: %s", cfg.DBPath)
	log.Printf("  - Presence backend: %s", cfg.PresenceBackend)
	log.Printf("  - Heartbeat: %s", cfg.HeartbeatInterval)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                      - Health check")
	log.Println("  POST   /api/v1/auth/login           - Obtain an access token")
	log.Println("  GET    /api/v1/jobs/:id/messages    - Message history (Bearer)")
	log.Println("  GET    /api/v1/notifications        - Notifications (Bearer)")
	log.Println("  GET    /api/v1/presence/:userId     - User presence (Bearer)")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Println(`  Frames: {"event": "<name>", "data": {...}}; send "authenticate" with {"token"} first`)
	log.Println("  Events: join_job_room, leave_job_room, send_message, typing_start, typing_stop,")
	log.Println("          mark_messages_read, update_status, ping")
	if cfg.SeedDemo {
		log.Printf("  Demo users: poster@tasklink.test / doer@tasklink.test (password %q)", store.DemoPassword)
	}
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
