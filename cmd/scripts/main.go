package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lfgraphics/khadimemillat-sub007/internal/config"
	"github.com/lfgraphics/khadimemillat-sub007/internal/logger"
	"github.com/lfgraphics/khadimemillat-sub007/internal/metrics"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	mongorepo "github.com/lfgraphics/khadimemillat-sub007/internal/repositories/mongodb"
	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/jwt"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/mongodb"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/razorpay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scripts",
		Short:         "Operational tasks for the notification campaign backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(importUsersCmd(), refreshSegmentsCmd(), recheckPaymentsCmd(), createStaffCmd())
	return root
}

// withDatabase loads configuration, connects to MongoDB and runs fn.
func withDatabase(ctx context.Context, fn func(cfg *config.Config, db *mongo.Database) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Log))

	client, err := mongodb.NewClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Error("Error disconnecting from MongoDB", "error", err)
		}
	}()

	return fn(cfg, client.Database(cfg.MongoDB.Database))
}

func importUsersCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import-users",
		Short: "Create or update users and channel preferences from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open CSV file: %w", err)
			}
			defer f.Close()

			return withDatabase(cmd.Context(), func(cfg *config.Config, db *mongo.Database) error {
				importer := utils.NewUserImporter(mongorepo.NewUserRepository(db), mongorepo.NewPreferenceRepository(db))
				result, err := importer.Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the CSV file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func refreshSegmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-segments",
		Short: "Recount every segment whose user count has expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(cfg *config.Config, db *mongo.Database) error {
				audience := services.NewAudienceService(mongorepo.NewUserRepository(db), cfg.Audience.CacheSize, cfg.Audience.CacheTTL, nil)
				segments := services.NewSegmentService(mongorepo.NewSegmentRepository(db), audience)
				refreshed, err := segments.RefreshStale(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d segment(s)\n", refreshed)
				return nil
			})
		},
	}
}

func recheckPaymentsCmd() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "recheck-payments",
		Short: "Re-verify donations of a status against Razorpay, printing one JSON line per event",
		RunE: func(cmd *cobra.Command, args []string) error {
			donationStatus := models.DonationStatus(status)
			if !donationStatus.IsValid() {
				return fmt.Errorf("invalid donation status %q", status)
			}

			return withDatabase(cmd.Context(), func(cfg *config.Config, db *mongo.Database) error {
				donationRepo := mongorepo.NewDonationRepository(db)
				donations, err := donationRepo.FindByStatus(cmd.Context(), donationStatus, limit)
				if err != nil {
					return err
				}
				ids := make([]string, len(donations))
				for i, d := range donations {
					ids[i] = d.ID.Hex()
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No donations to recheck")
					return nil
				}

				if !cfg.Razorpay.Mock && (cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "") {
					return errors.New("razorpay credentials are not configured")
				}
				gw := razorpay.NewClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.Mock, cfg.Razorpay.Timeout)
				recheck := services.NewRecheckService(donationRepo, gw, metrics.NewMetrics(nil))
				encoder := json.NewEncoder(cmd.OutOrStdout())
				return recheck.Recheck(cmd.Context(), ids, func(event models.RecheckEvent) error {
					return encoder.Encode(event)
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(models.DonationPending), "donation status to recheck")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum donations to recheck")
	return cmd
}

func createStaffCmd() *cobra.Command {
	var name, email, password, role string
	cmd := &cobra.Command{
		Use:   "create-staff",
		Short: "Create a back-office login",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(cfg *config.Config, db *mongo.Database) error {
				tokens := jwt.NewTokenService(cfg.JWT.Secret, 0)
				auth := services.NewAuthService(mongorepo.NewStaffAccountRepository(db), tokens)
				account, err := auth.CreateStaff(cmd.Context(), name, email, password, models.Role(role))
				if err != nil {
					return err
				}
				return printJSON(cmd, account)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleModerator), "admin or moderator")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
