package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/mediaforge/mediaforge-api/internal/config"
	"github.com/mediaforge/mediaforge-api/internal/domain/credit"
	"github.com/mediaforge/mediaforge-api/internal/domain/generation"
	"github.com/mediaforge/mediaforge-api/internal/domain/notification"
	"github.com/mediaforge/mediaforge-api/internal/domain/pricing"
	"github.com/mediaforge/mediaforge-api/internal/domain/purchase"
	"github.com/mediaforge/mediaforge-api/internal/domain/referral"
	"github.com/mediaforge/mediaforge-api/internal/middleware"
	"github.com/mediaforge/mediaforge-api/internal/pkg/database"
	"github.com/mediaforge/mediaforge-api/internal/pkg/imaging"
	"github.com/mediaforge/mediaforge-api/internal/pkg/jwt"
	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
	"github.com/mediaforge/mediaforge-api/internal/pkg/metrics"
	"github.com/mediaforge/mediaforge-api/internal/pkg/payment"
	"github.com/mediaforge/mediaforge-api/internal/pkg/render"
	pkgresponse "github.com/mediaforge/mediaforge-api/internal/pkg/response"
	"github.com/mediaforge/mediaforge-api/internal/pkg/storage"
)

const (
	version                 = "1.0.0"
	notificationCleanupTick = time.Hour
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting MediaForge API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if cfg.AutoMigrate {
		if err := database.ApplySchema(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply database schema")
		}
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		// limits fail open and realtime stays instance-local without Redis
		log.Warn().Err(err).Msg("Redis unavailable, continuing without it")
		redis = nil
	}
	defer database.CloseRedis(redis)

	jwtService, err := jwt.NewService(cfg.JWTPublicKeyPEM, cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure session token verification")
	}

	// ---------- Pricing ----------
	pricingService := pricing.NewService(pricing.NewRepository(db))
	if err := pricingService.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load pricing")
	}

	// ---------- Notifications ----------
	hub := notification.NewHub(redis)
	go hub.Run()
	defer hub.Shutdown()

	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo, notification.NewWSPublisher(hub))
	go notification.NewCleanupJob(notificationRepo, cfg.NotificationRetention).Start(ctx, notificationCleanupTick)

	// ---------- Ledgers ----------
	creditService := credit.NewService(credit.NewRepository(db), pricingService.Table())
	referralService := referral.NewService(referral.NewRepository(db), creditService, notificationService, cfg.ReferralBonusCredits)

	// ---------- Checkout ----------
	// a nil *StripeProvider must not become a non-nil interface
	var provider payment.Provider
	if sp := payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret); sp != nil {
		provider = sp
	} else {
		log.Warn().Msg("Stripe is not configured, checkout is disabled")
	}
	frontend := strings.TrimRight(cfg.FrontendURL, "/")
	purchaseService := purchase.NewService(purchase.NewRepository(db), provider, pricingService, creditService, notificationService, purchase.Config{
		SuccessURL: frontend + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  frontend + "/billing/cancel",
		Currency:   cfg.StripeCurrency,
	})

	// ---------- Generations ----------
	store, err := storage.New(ctx, storage.Config{
		Driver:              cfg.StorageDriver,
		LocalPath:           cfg.LocalStoragePath,
		LocalURL:            cfg.LocalStorageURL,
		S3Endpoint:          cfg.S3Endpoint,
		S3Region:            cfg.S3Region,
		S3AccessKey:         cfg.S3AccessKeyID,
		S3SecretKey:         cfg.S3AccessKeySecret,
		S3Bucket:            cfg.S3BucketName,
		S3PublicURL:         cfg.S3PublicURL,
		CloudinaryCloudName: cfg.CloudinaryCloudName,
		CloudinaryAPIKey:    cfg.CloudinaryAPIKey,
		CloudinaryAPISecret: cfg.CloudinaryAPISecret,
		CloudinaryFolder:    cfg.CloudinaryFolder,
	})
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("Failed to create output storage")
	}
	renderer := render.NewClient(cfg.RendererBaseURL, cfg.RendererToken, time.Duration(cfg.RendererTimeoutSeconds)*time.Second, "MediaForge/"+version)
	generationService := generation.NewService(
		generation.NewRepository(db),
		creditService,
		renderer,
		store,
		imaging.NewProcessor(imaging.DefaultConfig()),
		notificationService,
	)

	// ---------- Handlers ----------
	pricingHandler := pricing.NewHandler(pricingService)
	creditHandler := credit.NewHandler(creditService, pricingService)
	purchaseHandler := purchase.NewHandler(purchaseService)
	notificationHandler := notification.NewHandler(notificationService, hub, cfg.AllowedOrigins)
	referralHandler := referral.NewHandler(referralService)
	generationHandler := generation.NewHandler(generationService)

	authMiddleware := middleware.Auth(jwtService)
	checkoutLimit := middleware.RateLimit(redis, "checkout", cfg.RateLimitRequests, cfg.RateLimitWindow)
	generationLimit := middleware.RateLimit(redis, "generation", cfg.RateLimitRequests, cfg.RateLimitWindow)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.ReferralCapture(cfg.IsProduction()))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	r.Handle("/metrics", metrics.Handler())

	if _, ok := store.(*storage.LocalStorage); ok {
		fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.LocalStoragePath)))
		r.Handle("/uploads/*", fs)
	}

	r.Route("/api", func(r chi.Router) {
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/stripe", purchaseHandler.StripeRoutes(authMiddleware, checkoutLimit))
		r.Mount("/purchases", purchaseHandler.Routes(authMiddleware))
		r.Mount("/notifications", notificationHandler.Routes(authMiddleware))
		r.Mount("/referrals", referralHandler.Routes(authMiddleware))
		r.Mount("/generations", generationHandler.Routes(authMiddleware, generationLimit))

		mountAdminRoutes(r, authMiddleware, pricingHandler.Routes, creditHandler.AdminRoutes)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("Server exited properly")
}

// mountAdminRoutes puts every admin router behind auth and the admin role.
func mountAdminRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler, mounts ...func(chi.Router)) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin())
		for _, mount := range mounts {
			mount(r)
		}
	})
}
