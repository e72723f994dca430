package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"equity_monitor/internal/aggregator"
	"equity_monitor/internal/auth"
	"equity_monitor/internal/cache"
	"equity_monitor/internal/config"
	"equity_monitor/internal/database"
	"equity_monitor/internal/exchange"
	"equity_monitor/internal/fx"
	"equity_monitor/internal/handlers"
	"equity_monitor/internal/middleware"
	"equity_monitor/internal/repository"
	"equity_monitor/internal/scheduler"
	"equity_monitor/internal/secrets"
	"equity_monitor/internal/session"
	"equity_monitor/internal/upstream"
	"equity_monitor/internal/websocket"
)

// App holds the application dependencies.
type App struct {
	config          *config.Config
	db              *database.DB
	router          *chi.Mux
	store           *session.Store
	snapshot        *cache.SnapshotCache
	history         *cache.HistoryCache
	aggregator      *aggregator.Aggregator
	hub             *websocket.Hub
	accountsHandler *handlers.AccountsHandler
	statusHandler   *handlers.StatusHandler
	equityHandler   *handlers.EquityHandler
	tradesHandler   *handlers.TradesHandler
	sessionHandler  *handlers.SessionHandler
	systemHandler   *handlers.SystemHandler
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	encryptor, err := secrets.NewEncryptor(cfg.Secrets.EncryptionSecret)
	if err != nil {
		log.Fatalf("Failed to initialize encryption: %v", err)
	}

	// Repositories
	sessionRepo := repository.NewSessionRepository(db, encryptor)
	tickRepo := repository.NewEquityTickRepository(db)

	// Session store, restored from the previous run when possible
	store := session.NewStore(sessionRepo)
	if err := store.Load(); err != nil {
		log.Printf("Could not restore persisted session: %v", err)
	}

	// Upstream access
	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.UserAgent)
	authenticator := auth.NewAuthenticator(client, store, cfg.Upstream.Email, cfg.Upstream.Password, auth.Options{
		MinLoginInterval: cfg.MinLoginInterval(),
		ShortBackoff:     cfg.ShortBackoff(),
		LongBackoff:      cfg.LongBackoff(),
	})
	snapshot := cache.NewSnapshotCache(store, authenticator, client, cfg.SnapshotTTL(), cfg.ShortBackoff(), cfg.LongBackoff())
	history := cache.NewHistoryCache(store, authenticator, client, cfg.HistoryTTL(), cfg.ShortBackoff(), cfg.LongBackoff())

	// Aggregation
	rates := fx.NewTable(cfg.FX.Target, cfg.FX.Rates)
	var exchangeClient *exchange.Client
	if cfg.Exchange.BaseURL != "" {
		exchangeClient = exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	}
	var exchangeSource aggregator.ExchangeSource
	if exchangeClient != nil {
		exchangeSource = exchangeClient
	}
	agg := aggregator.New(snapshot, rates, exchangeSource, cfg.Tracking.Indices)

	// WebSocket fan-out
	hub := websocket.NewHub(agg)
	go hub.Run()

	// Scheduler
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(ctx, agg, hub, tickRepo)
	if err := sched.RegisterAll(cfg.Schedule.TickCron, cfg.Schedule.PruneCron); err != nil {
		log.Fatalf("Failed to register scheduled tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Seed the dashboard before the first scheduled tick fires
	go sched.RunTickNow()

	app := &App{
		config:          cfg,
		db:              db,
		store:           store,
		snapshot:        snapshot,
		history:         history,
		aggregator:      agg,
		hub:             hub,
		accountsHandler: handlers.NewAccountsHandler(snapshot),
		statusHandler:   handlers.NewStatusHandler(store, snapshot),
		equityHandler:   handlers.NewEquityHandler(agg, tickRepo),
		tradesHandler:   handlers.NewTradesHandler(snapshot, history, cfg.Tracking.Indices),
		sessionHandler:  handlers.NewSessionHandler(store),
		systemHandler:   handlers.NewSystemHandler(cfg.Server.PublicURL),
	}
	app.setupRouter()

	server := &http.Server{
		Addr:        cfg.Address(),
		Handler:     app.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://%s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func (app *App) setupRouter() {
	r := chi.NewRouter()

	// Chi middleware (aliased as chimw to avoid conflict with our middleware package)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)

	// Security headers for all responses
	r.Use(middleware.SecurityHeaders)

	// Static dashboard files
	workDir, _ := os.Getwd()
	staticPath := filepath.Join(workDir, "web", "static")
	fileServer := http.FileServer(http.Dir(staticPath))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// Health check
	r.Get("/health", app.systemHandler.Health)

	// Dashboard read endpoints, all backed by cached state
	r.Group(func(r chi.Router) {
		r.Use(middleware.LimitAPI)
		r.Get("/api/accounts", app.accountsHandler.List)
		r.Get("/api/status", app.statusHandler.Get)
		r.Get("/api/equity", app.equityHandler.Get)
		r.Get("/api/equity-history", app.equityHandler.History)
		r.Get("/api/last-trades", app.tradesHandler.List)
		r.Get("/api/mobile-qr", app.systemHandler.MobileQR)
	})

	// Long-lived streams sit outside the per-IP limiter
	r.Get("/api/stream-equity", app.equityHandler.Stream)
	r.Get("/ws/equity", app.hub.ServeWs)

	// Manual session override, strictly limited
	r.Group(func(r chi.Router) {
		r.Use(middleware.LimitSession)
		r.Post("/api/set-session", app.sessionHandler.Set)
	})

	app.router = r
}
