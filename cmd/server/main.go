package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"glucotrack/internal/adapter"
	"glucotrack/internal/auth"
	"glucotrack/internal/codec"
	"glucotrack/internal/config"
	"glucotrack/internal/domain"
	"glucotrack/internal/handler"
	"glucotrack/internal/hub"
	"glucotrack/internal/registry"
	"glucotrack/internal/service"
	"glucotrack/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "Config file path (overrides discovery)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	secure := flag.Bool("secure-cookies", false, "Mark session cookies HTTPS only")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting glucotrack server...")

	// A missing .env is not an error
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to read .env: %v", err)
	}

	if *configPath != "" {
		os.Setenv(config.EnvConfigPath, *configPath)
	}
	cfg, path, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", path, err)
	}
	if path == "" {
		log.Println("No config file found, using defaults")
	} else {
		log.Printf("Config loaded: %s", path)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	log.Print(cfg.Summary())
	if cfg.Auth.PasswordScheme == string(auth.SchemePlain) {
		log.Println("Warning: passwords are stored as plain text; set auth.password_scheme to bcrypt")
	}

	// Storage backend
	fsys, err := adapter.Open(cfg.AdapterConfig())
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	if c, ok := fsys.(interface{ Close() error }); ok {
		defer c.Close()
	}

	// Event bus, logged and relayed to SSE clients
	eventBus := hub.NewEventBus()
	logChan := make(chan hub.Event, 100)
	eventBus.Subscribe(logChan)
	go func() {
		for event := range logChan {
			switch event.Type {
			case hub.EventDataDegraded, hub.EventAuthFailed:
				log.Printf("Event %s session=%s key=%s: %v", event.Type, event.SessionID, event.Key, event.Payload)
			}
		}
	}()

	sseHub := hub.New()
	go sseHub.Run()
	sseHub.Forward(eventBus)

	// Sessions, credentials, measurements
	manager := registry.NewManager(codec.NewStore(fsys), eventBus)

	scheme, err := auth.ParseScheme(cfg.Auth.PasswordScheme)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	authOpts := []auth.Option{auth.WithScheme(scheme), auth.WithFile(cfg.Auth.CredentialsFile)}
	if cfg.Auth.BcryptCost > 0 {
		authOpts = append(authOpts, auth.WithBcryptCost(cfg.Auth.BcryptCost))
	}
	credentials := auth.NewStore(authOpts...)

	loc, err := time.LoadLocation(cfg.Measurements.Zone)
	if err != nil {
		log.Fatalf("Invalid zone: %v", err)
	}
	measurements, err := service.NewMeasurementService(loc)
	if err != nil {
		log.Fatalf("Failed to create measurement service: %v", err)
	}

	sessions := handler.NewSessions(manager, cfg.Server.SessionCookie, cfg.Server.SessionIdle.Duration())
	sessions.SetSecure(*secure)
	api := handler.NewAPIHandler(sessions, credentials, measurements, sseHub)

	mux := http.NewServeMux()
	api.Routes(mux)

	finalHandler := handler.Chain(mux,
		handler.Recover,
		handler.Logger,
	)

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     finalHandler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: /events streams
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())

	// Files edited outside this process are re-read on next load
	if domain.BackendKind(cfg.Storage.Backend) == domain.BackendLocal {
		w := watcher.New(fsys.Root(), func(rel string) {
			if n := manager.Invalidate(rel); n > 0 {
				log.Printf("%s changed, evicted from %d sessions", rel, n)
			}
		})
		go func() {
			if err := w.Watch(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Warning: storage watcher stopped: %v", err)
			}
		}()
	}

	// Drop idle sessions
	go func() {
		ticker := time.NewTicker(cfg.Server.SweepInterval.Duration())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := manager.Sweep(cfg.Server.SessionIdle.Duration()); n > 0 {
					log.Printf("Dropped %d idle sessions", n)
				}
			case <-bgCtx.Done():
				return
			}
		}
	}()

	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
