package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-payments/internal/models"
	"marketplace-payments/internal/store"
	"marketplace-payments/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WithdrawalService accepts seller payout requests. At most one request
// may be in flight per user, and the balance check plus the inserts run
// inside one row-locked transaction in the store so concurrent requests
// cannot both pass.
type WithdrawalService struct {
	store     Datastore
	publisher Notifier
	minAmount decimal.Decimal
	logger    *zap.Logger
}

func NewWithdrawalService(st Datastore, publisher Notifier, minAmount decimal.Decimal) *WithdrawalService {
	return &WithdrawalService{
		store:     st,
		publisher: publisher,
		minAmount: minAmount,
		logger:    util.GetLogger().With(zap.String("component", "withdrawal_service")),
	}
}

type WithdrawalRequestInput struct {
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"paymentMethod"`
	PaymentDetails *string         `json:"paymentDetails,omitempty"`
}

// WithdrawalSummary is the response view of a recorded request. Only
// the caller-relevant fields are exposed; payment details stay private.
type WithdrawalSummary struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

type WithdrawalResponse struct {
	Success           bool               `json:"success"`
	WithdrawalRequest *WithdrawalSummary `json:"withdrawalRequest"`
}

// RequestWithdrawal validates and records a payout request. Checks run
// in a fixed order so the caller always gets the most actionable error
// first. Wallet balance is untouched here; the withdrawal only appears
// as a pending negative ledger entry until operations settles it.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID string, input *WithdrawalRequestInput) (*WithdrawalResponse, error) {
	ctx, span := util.StartSpan(ctx, "withdrawal.RequestWithdrawal")
	defer span.End()

	if input.Amount.LessThanOrEqual(decimal.Zero) {
		util.WithdrawalRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, errors.New("Invalid withdrawal amount")
	}
	if input.Amount.LessThan(s.minAmount) {
		util.WithdrawalRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("Minimum withdrawal amount is $%s", s.minAmount.StringFixed(2))
	}
	if input.PaymentMethod == "" {
		util.WithdrawalRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, errors.New("Payment method is required")
	}

	profile, err := s.store.GetProfileByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return nil, errors.New("User profile not found")
		}
		return nil, err
	}
	if profile.KYCStatus != models.KYCStatusVerified {
		util.WithdrawalRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, errors.New("KYC verification is required before making withdrawals. Please complete your identity verification first.")
	}
	if input.Amount.GreaterThan(profile.WalletBalance) {
		util.WithdrawalRequestsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("Insufficient balance. Available: $%s", profile.WalletBalance.StringFixed(2))
	}

	request, err := s.store.CreateWithdrawalRequest(ctx, userID, input.Amount, input.PaymentMethod, input.PaymentDetails)
	if err != nil {
		util.WithdrawalRequestsTotal.WithLabelValues("rejected").Inc()
		switch {
		case errors.Is(err, store.ErrWithdrawalPending):
			return nil, errors.New("You have a pending withdrawal request. Please wait for it to be processed.")
		case errors.Is(err, store.ErrInsufficientBalance):
			return nil, fmt.Errorf("Insufficient balance. Available: $%s", profile.WalletBalance.StringFixed(2))
		default:
			s.logger.Error("failed to create withdrawal request",
				zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
	}

	util.WithdrawalRequestsTotal.WithLabelValues("accepted").Inc()
	s.logger.Info("withdrawal requested",
		zap.String("withdrawal_id", request.ID),
		zap.String("user_id", userID),
		zap.String("amount", input.Amount.String()))

	if s.publisher != nil {
		if err := s.publisher.PublishWithdrawalRequested(ctx, &models.WithdrawalRequestedEvent{
			WithdrawalID: request.ID,
			UserEmail:    profile.Email,
			Amount:       input.Amount.StringFixed(2),
		}); err != nil {
			s.logger.Error("failed to publish withdrawal notification",
				zap.String("withdrawal_id", request.ID), zap.Error(err))
		}
	}

	return &WithdrawalResponse{
		Success: true,
		WithdrawalRequest: &WithdrawalSummary{
			ID:        request.ID,
			Amount:    request.Amount,
			Status:    request.Status,
			CreatedAt: request.CreatedAt,
		},
	}, nil
}
