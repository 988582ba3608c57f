package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/metrics"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/razorpay"
)

const recheckSource = "recheck"

var errNoGatewayReference = errors.New("donation has no payment gateway reference")

// PaymentGateway is the payment provider lookup used by rechecks
type PaymentGateway interface {
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	LatestOrderPayment(ctx context.Context, orderID string) (*razorpay.Payment, error)
}

// Compile-time check to ensure RecheckServiceImpl implements RecheckService
var _ RecheckService = (*RecheckServiceImpl)(nil)

// RecheckServiceImpl re-verifies donation statuses against the payment gateway
type RecheckServiceImpl struct {
	donationRepo repositories.DonationRepository
	gateway      PaymentGateway
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewRecheckService creates a new RecheckServiceImpl
func NewRecheckService(donationRepo repositories.DonationRepository, gateway PaymentGateway, m *metrics.Metrics) *RecheckServiceImpl {
	return &RecheckServiceImpl{
		donationRepo: donationRepo,
		gateway:      gateway,
		metrics:      m,
		now:          time.Now,
	}
}

// MapGatewayStatus translates a gateway payment status into a donation status.
func MapGatewayStatus(status string) (models.DonationStatus, bool) {
	switch status {
	case razorpay.StatusCaptured:
		return models.DonationCompleted, true
	case razorpay.StatusFailed:
		return models.DonationFailed, true
	case razorpay.StatusRefunded:
		return models.DonationRefunded, true
	case razorpay.StatusCreated, razorpay.StatusAuthorized:
		return models.DonationPending, true
	}
	return "", false
}

// Recheck processes ids one at a time in input order. A failing item is
// recorded in its result and never stops the batch. emit receives one
// progress event per item and then a single complete event; when the run
// cannot start it receives a single error event instead.
func (s *RecheckServiceImpl) Recheck(ctx context.Context, ids []string, emit func(models.RecheckEvent) error) error {
	if s.gateway == nil {
		err := errors.New("payment gateway is not configured")
		if emitErr := emit(models.RecheckEvent{Type: models.RecheckEventError, Error: "Payment gateway is not configured"}); emitErr != nil {
			return emitErr
		}
		return err
	}

	total := len(ids)
	results := make([]models.PaymentRecheckResult, 0, total)
	summary := models.RecheckSummary{Total: total}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := s.recheckOne(ctx, id)
		results = append(results, result)
		if result.RecheckSuccess {
			summary.Successful++
		} else {
			summary.Failed++
		}

		event := models.RecheckEvent{
			Type:      models.RecheckEventProgress,
			Completed: i + 1,
			Total:     total,
			Message:   fmt.Sprintf("Rechecked %d of %d payments", i+1, total),
			Result:    &results[i],
		}
		if err := emit(event); err != nil {
			return err
		}
	}

	slog.Info("Payment recheck finished", "total", summary.Total, "successful", summary.Successful, "failed", summary.Failed)
	return emit(models.RecheckEvent{
		Type:    models.RecheckEventComplete,
		Results: results,
		Summary: &summary,
	})
}

func (s *RecheckServiceImpl) recheckOne(ctx context.Context, id string) models.PaymentRecheckResult {
	result := models.PaymentRecheckResult{PaymentID: id}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return s.failed(result, "Invalid donation id")
	}
	donation, err := s.donationRepo.FindByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return s.failed(result, "Donation not found")
		}
		slog.Error("Failed to load donation for recheck", "donationId", id, "error", err)
		return s.failed(result, "Failed to load donation")
	}
	result.PreviousStatus = donation.Status

	payment, err := s.lookup(ctx, donation)
	if err != nil {
		appErr := errs.ExternalService("payment gateway", err)
		slog.Warn("Payment gateway lookup failed", "donationId", id, "error", appErr)
		return s.failed(result, describeGatewayError(err))
	}
	result.GatewayPaymentID = payment.ID

	status, ok := MapGatewayStatus(payment.Status)
	if !ok {
		return s.failed(result, "Unknown gateway payment status: "+payment.Status)
	}
	result.CurrentStatus = status

	if status != donation.Status {
		change := models.DonationStatusChange{
			From:   donation.Status,
			To:     status,
			At:     s.now(),
			Source: recheckSource,
		}
		if err := s.donationRepo.UpdateStatus(ctx, donation.ID, change, payment.ID); err != nil {
			if errors.Is(err, repositories.ErrStateChanged) {
				return s.failed(result, "Donation status changed during recheck")
			}
			slog.Error("Failed to store rechecked donation status", "donationId", id, "error", err)
			return s.failed(result, "Failed to update donation status")
		}
		result.Updated = true
		slog.Info("Donation status corrected", "donationId", id, "from", change.From, "to", change.To)
	}

	result.RecheckSuccess = true
	if result.Updated {
		s.metrics.ObserveRecheck("updated")
	} else {
		s.metrics.ObserveRecheck("unchanged")
	}
	return result
}

func (s *RecheckServiceImpl) failed(result models.PaymentRecheckResult, message string) models.PaymentRecheckResult {
	result.RecheckSuccess = false
	result.ErrorMessage = message
	s.metrics.ObserveRecheck("failed")
	return result
}

// lookup prefers the stored payment id and falls back to the latest payment
// attempt of the order.
func (s *RecheckServiceImpl) lookup(ctx context.Context, donation *models.Donation) (*razorpay.Payment, error) {
	switch {
	case donation.RazorpayPaymentID != "":
		return s.gateway.FetchPayment(ctx, donation.RazorpayPaymentID)
	case donation.RazorpayOrderID != "":
		return s.gateway.LatestOrderPayment(ctx, donation.RazorpayOrderID)
	}
	return nil, errNoGatewayReference
}

func describeGatewayError(err error) string {
	var apiErr *razorpay.APIError
	switch {
	case errors.Is(err, errNoGatewayReference):
		return "Donation has no payment gateway reference"
	case errors.Is(err, razorpay.ErrNotFound):
		return "Payment not found at gateway"
	case errors.Is(err, razorpay.ErrRateLimited):
		return "Payment gateway rate limit exceeded"
	case errors.Is(err, razorpay.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "Payment gateway request timed out"
	case errors.As(err, &apiErr):
		return "Payment gateway error: " + apiErr.Description
	}
	return "Payment gateway request failed"
}
