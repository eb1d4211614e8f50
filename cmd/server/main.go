package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AnshRaj112/kokoro-journal/internal/config"
	"github.com/AnshRaj112/kokoro-journal/internal/database"
	"github.com/AnshRaj112/kokoro-journal/internal/handlers"
	"github.com/AnshRaj112/kokoro-journal/internal/logger"
	"github.com/AnshRaj112/kokoro-journal/internal/middleware"
	"github.com/AnshRaj112/kokoro-journal/internal/routes"
	"github.com/AnshRaj112/kokoro-journal/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := cfg.Validate(); err != nil {
		zlog.Fatal("invalid configuration", zap.Error(err))
	}

	// Redis holds sessions and pub/sub for every driver
	if err := database.ConnectRedis(cfg.RedisURI, zlog); err != nil {
		zlog.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer database.DisconnectRedis()

	sessions := services.NewSessionStore(database.RedisClient)

	var verifier services.CredentialVerifier
	switch cfg.AuthProvider {
	case config.AuthProviderFirebase:
		verifier = services.NewFirebaseVerifier(cfg.Firebase.APIKey, cfg.Firebase.AuthURL, 10*time.Second)
		zlog.Info("using Firebase credential verification", zap.String("project_id", cfg.Firebase.ProjectID))
	case config.AuthProviderLocal:
		if err := database.ConnectPostgres(cfg.PostgresURI, zlog); err != nil {
			zlog.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		defer database.DisconnectPostgres()

		local := services.NewLocalVerifier(
			services.NewUserService(database.PostgresDB),
			services.NewLoginAttempts(database.RedisClient),
		)
		if cfg.SeedUserEmail != "" {
			if _, err := local.CreateUser(context.Background(), cfg.SeedUserEmail, cfg.SeedUserBirthday); err != nil {
				zlog.Fatal("failed to seed user", zap.String("email", cfg.SeedUserEmail), zap.Error(err))
			}
			zlog.Info("seed user ready", zap.String("email", cfg.SeedUserEmail))
		}
		verifier = local
	}
	auth := services.NewAuth(verifier, sessions, zlog)

	var store services.EntryStore
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		if err := database.Connect(cfg.MongoURI, zlog); err != nil {
			zlog.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer database.Disconnect()

		records := database.DB.Collection(services.RecordsCollection)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := services.EnsureRecordIndexes(ctx, records); err != nil {
			zlog.Warn("failed to ensure record indexes", zap.Error(err))
		}
		cancel()
		store = services.NewMongoEntryStore(records, database.RedisClient, zlog)
	case config.StoreDriverMemory:
		zlog.Warn("using in-memory entry store; entries are lost on restart")
		store = services.NewMemoryEntryStore()
	}

	prompt, err := services.LoadPromptTemplate(cfg.Feedback.TemplatePath, cfg.Feedback.Tone, cfg.Feedback.Closing)
	if err != nil {
		zlog.Fatal("failed to load prompt template", zap.Error(err))
	}
	completion := services.NewOpenAIClient(cfg.Feedback.APIKey, cfg.Feedback.BaseURL, cfg.Feedback.Timeout)
	feedback := services.NewFeedbackGenerator(completion, prompt, cfg.Feedback.Model, cfg.Feedback.Temperature, zlog)
	journal := services.NewJournal(store, feedback, zlog)

	h := handlers.New(auth, journal, store, zlog, cfg.IsProduction())

	// Setup router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(zlog))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → LoginRateLimit
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost, http.HandlerFunc(h.SignInThrottled)) {
			r.Use(mw)
		}
		zlog.Info("production security enabled", zap.String("allowed_host", cfg.AllowedHost))
	} else {
		r.Use(middleware.LoginRateLimit(http.HandlerFunc(h.SignInThrottled)))
	}

	// Health check and metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	routes.SetupRoutes(r, h, auth, zlog)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(h.CloseSockets)

	go func() {
		zlog.Info("kokoro journal running",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Environment),
			zap.String("auth_provider", cfg.AuthProvider),
			zap.String("store_driver", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
	// RegisterOnShutdown hooks run asynchronously; make sure they fired.
	h.CloseSockets()
	if err := h.WaitSockets(ctx); err != nil {
		zlog.Warn("live connections still open at exit", zap.Error(err))
	}
	zlog.Info("server stopped")
}
