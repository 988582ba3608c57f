package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lfgraphics/khadimemillat-sub007/internal/config"
	"github.com/lfgraphics/khadimemillat-sub007/internal/logger"
	"github.com/lfgraphics/khadimemillat-sub007/internal/metrics"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	mongorepo "github.com/lfgraphics/khadimemillat-sub007/internal/repositories/mongodb"
	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/gateway"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/mongodb"
)

const gatewayTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

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

	m := metrics.NewMetrics(nil)
	campaignRepo := mongorepo.NewCampaignRepository(db)
	segmentRepo := mongorepo.NewSegmentRepository(db)
	jobRepo := mongorepo.NewDeliveryJobRepository(db)
	tracker := services.NewCampaignService(campaignRepo, segmentRepo, jobRepo, services.NewWeightedEstimator(cfg.Estimator), m)

	worker := services.NewDeliveryWorker(
		jobRepo,
		tracker,
		mongorepo.NewUserRepository(db),
		mongorepo.NewNotificationRepository(db),
		channelGateways(cfg.Gateways, log),
		cfg.Worker,
		m,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := worker.Run(ctx); err != nil {
		log.Error("Delivery worker exited with error", "workerId", worker.ID(), "error", err)
		os.Exit(1)
	}
}

// channelGateways builds one provider per channel. Channels without a base
// URL fall back to the logging mock.
func channelGateways(cfg config.GatewaysConfig, log *slog.Logger) map[models.Channel]gateway.Gateway {
	providers := map[models.Channel]config.GatewayConfig{
		models.ChannelSMS:      cfg.SMS,
		models.ChannelWhatsApp: cfg.WhatsApp,
		models.ChannelEmail:    cfg.Email,
		models.ChannelWebPush:  cfg.WebPush,
	}

	gateways := make(map[models.Channel]gateway.Gateway, len(providers))
	for channel, provider := range providers {
		if provider.Mock || provider.BaseURL == "" {
			if !provider.Mock {
				log.Warn("No gateway URL configured, using mock", "channel", channel)
			}
			gateways[channel] = gateway.NewMockGateway(string(channel))
			continue
		}
		gateways[channel] = gateway.NewHTTPGateway(string(channel), provider.BaseURL, provider.APIKey, gatewayTimeout)
	}
	return gateways
}
