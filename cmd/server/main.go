package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regulie/therapy-app/internal/api"
	"regulie/therapy-app/internal/billing"
	"regulie/therapy-app/internal/config"
	"regulie/therapy-app/internal/domain"
	"regulie/therapy-app/internal/email"
	"regulie/therapy-app/internal/oauth"
	"regulie/therapy-app/internal/platform/logging"
	"regulie/therapy-app/internal/repository/mongo"
	"regulie/therapy-app/internal/service"
	"regulie/therapy-app/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Could not load config", "error", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.Log.Level, cfg.Log.Format)
	logger := logging.Logger
	logger.Info("Starting therapy practice server", "address", cfg.Server.Address, "mode", cfg.Server.Mode)

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Error("Could not connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("Failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("Database connection established", "database", cfg.Database.Name)

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, appDB)
		logger.Info("Index creation process completed")
	}()

	// --- Initialize Storage ---
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 30*time.Second)
	fileStorage, err := storage.NewS3Storage(storageCtx, cfg.S3)
	storageCancel()
	if err != nil {
		logger.Error("Failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}

	// --- Initialize Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	clientRepo := mongo.NewMongoClientRepository(appDB)
	sessionRepo := mongo.NewMongoSessionRepository(appDB)
	templateRepo := mongo.NewMongoTemplateRepository(appDB)
	requestRepo := mongo.NewMongoAccessRequestRepository(appDB)
	mediaRepo := mongo.NewMongoMediaRepository(appDB)

	// --- Integrations ---
	var mailer email.Sender
	if cfg.Email.ResendAPIKey != "" {
		mailer = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, logger)
	} else {
		logger.Warn("RESEND API key not set, emails will only be logged")
		mailer = email.NewLogSender(logger)
	}
	templates := email.Templates{AppName: cfg.Email.AppName, PublicURL: cfg.Server.PublicURL}

	if cfg.Stripe.SecretKey == "" {
		logger.Warn("Stripe secret key not set, checkout and portal calls will fail")
	}
	gateway := billing.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	prices := map[domain.Tier]string{
		domain.TierProfessional: cfg.Stripe.ProfessionalPrice,
		domain.TierPremium:      cfg.Stripe.PremiumPrice,
	}
	google := oauth.NewGoogleVerifier(cfg.Google.ClientID)
	clock := clockwork.NewRealClock()

	// --- Initialize Services ---
	tokens := service.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration, cfg.JWT.MFAExpiration, clock)
	usageService := service.NewUsageService(userRepo, clock, logger)
	mfaService := service.NewMFAService(userRepo, cfg.Email.AppName, clock)
	authService := service.NewAuthService(service.AuthDeps{
		UserRepo:  userRepo,
		Tokens:    tokens,
		MFA:       mfaService,
		Google:    google,
		Mailer:    mailer,
		Templates: templates,
		Clock:     clock,
		Logger:    logger,
	})
	mediaService := service.NewMediaService(mediaRepo, sessionRepo, clientRepo, fileStorage, usageService, clock, logger)
	clientService := service.NewClientService(clientRepo, sessionRepo, userRepo, mediaService, usageService, clock, logger)
	sessionService := service.NewSessionService(sessionRepo, clientRepo, templateRepo, mediaService, usageService, logger)
	templateService := service.NewTemplateService(templateRepo)
	requestService := service.NewAccessRequestService(requestRepo, userRepo, clientRepo, mailer, templates, clock, logger)
	parentService := service.NewParentService(clientRepo, sessionRepo)
	subscriptionService := service.NewSubscriptionService(userRepo, gateway, usageService, prices, cfg.Server.PublicURL, logger)
	reportService := service.NewReportService(clientRepo, sessionRepo, userRepo, usageService, cfg.Email.AppName, clock)

	// --- Initialize Gin Engine ---
	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := api.NewRouter(api.Services{
		Auth:           authService,
		MFA:            mfaService,
		Clients:        clientService,
		Sessions:       sessionService,
		Templates:      templateService,
		Usage:          usageService,
		AccessRequests: requestService,
		Parents:        parentService,
		Subscriptions:  subscriptionService,
		Media:          mediaService,
		Reports:        reportService,
	}, api.RouterOptions{
		Tokens:         tokens,
		Logger:         logger,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		AuthLimiter:    api.NewIPRateLimiter(cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst),
		HealthChecks: []api.HealthCheck{
			{Name: "mongodb", Check: func(ctx context.Context) error { return mongo.Ping(ctx, dbClient) }},
		},
	})
	if err != nil {
		logger.Error("Failed to build router", "error", err)
		os.Exit(1)
	}

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ListenAndServe error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exiting")
}
