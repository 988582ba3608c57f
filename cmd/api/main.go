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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/lfgraphics/khadimemillat-sub007/api/routes"
	"github.com/lfgraphics/khadimemillat-sub007/internal/config"
	"github.com/lfgraphics/khadimemillat-sub007/internal/handlers"
	"github.com/lfgraphics/khadimemillat-sub007/internal/logger"
	"github.com/lfgraphics/khadimemillat-sub007/internal/metrics"
	mongorepo "github.com/lfgraphics/khadimemillat-sub007/internal/repositories/mongodb"
	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/jwt"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/mongodb"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/razorpay"
)

func main() {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if cfg.JWT.Secret == "" {
		log.Error("JWT secret is not configured")
		os.Exit(1)
	}
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	mongoClient, err := mongodb.NewClient(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		log.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error("Error disconnecting from MongoDB", "error", err)
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)
	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), cfg.MongoDB.Timeout)
	if err := mongorepo.EnsureIndexes(indexCtx, db); err != nil {
		log.Warn("Failed to ensure indexes", "error", err)
	}
	cancelIndexes()

	m := metrics.NewMetrics(nil)
	tokens := jwt.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiresIn)*time.Second)

	// Repositories
	userRepo := mongorepo.NewUserRepository(db)
	segmentRepo := mongorepo.NewSegmentRepository(db)
	campaignRepo := mongorepo.NewCampaignRepository(db)
	jobRepo := mongorepo.NewDeliveryJobRepository(db)
	notificationRepo := mongorepo.NewNotificationRepository(db)
	donationRepo := mongorepo.NewDonationRepository(db)
	staffRepo := mongorepo.NewStaffAccountRepository(db)
	preferenceRepo := mongorepo.NewPreferenceRepository(db)

	// Services
	audienceService := services.NewAudienceService(userRepo, cfg.Audience.CacheSize, cfg.Audience.CacheTTL, m)
	segmentService := services.NewSegmentService(segmentRepo, audienceService)
	campaignService := services.NewCampaignService(campaignRepo, segmentRepo, jobRepo, services.NewWeightedEstimator(cfg.Estimator), m)
	progressService := services.NewProgressService(campaignService)
	notificationService := services.NewNotificationLogService(campaignRepo, notificationRepo)
	recheckService := services.NewRecheckService(donationRepo, paymentGateway(cfg.Razorpay, log), m)
	authService := services.NewAuthService(staffRepo, tokens)
	userService := services.NewUserService(userRepo, preferenceRepo)

	deps := routes.HandlerDependencies{
		AuthHandler:         handlers.NewAuthHandler(authService),
		HealthHandler:       handlers.NewHealthHandler(mongoClient),
		AudienceHandler:     handlers.NewAudienceHandler(audienceService),
		SegmentHandler:      handlers.NewSegmentHandler(segmentService),
		CampaignHandler:     handlers.NewCampaignHandler(campaignService, progressService),
		NotificationHandler: handlers.NewNotificationHandler(notificationService),
		RecheckHandler:      handlers.NewRecheckHandler(recheckService),
		UserHandler:         handlers.NewUserHandler(userService),
	}
	router := routes.SetupRouter(cfg, deps, tokens, m, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	log.Info("Server exiting")
}

// paymentGateway returns nil when no credentials are configured and mock mode is off.
func paymentGateway(cfg config.RazorpayConfig, log *slog.Logger) services.PaymentGateway {
	if !cfg.Mock && (cfg.KeyID == "" || cfg.KeySecret == "") {
		log.Warn("Razorpay credentials missing, payment recheck is disabled")
		return nil
	}
	return razorpay.NewClient(cfg.BaseURL, cfg.KeyID, cfg.KeySecret, cfg.Mock, cfg.Timeout)
}
