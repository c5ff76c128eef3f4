package store

import (
	"context"
	"fmt"

	"marketplace-payments/internal/models"

	"github.com/shopspring/decimal"
)

// CreateWithdrawalRequest records a pending payout and its ledger entry.
// The profile row is locked FOR UPDATE so the balance check and the
// one-in-flight-request check hold against concurrent requests. The
// wallet balance itself is untouched: it is debited on approval, which
// is why only one request may be in flight per user.
func (s *Store) CreateWithdrawalRequest(ctx context.Context, userID string, amount decimal.Decimal, paymentMethod string, paymentDetails *string) (*models.WithdrawalRequest, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	err = tx.GetContext(ctx, &balance,
		"SELECT wallet_balance FROM profiles WHERE id = $1 FOR UPDATE", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}

	if amount.GreaterThan(balance) {
		return nil, ErrInsufficientBalance
	}

	var pending bool
	err = tx.GetContext(ctx, &pending,
		`SELECT EXISTS(
		   SELECT 1 FROM withdrawal_requests
		   WHERE user_id = $1 AND status IN ('pending', 'processing', 'approved'))`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending requests: %w", err)
	}
	if pending {
		return nil, ErrWithdrawalPending
	}

	request := &models.WithdrawalRequest{
		UserID:         userID,
		Amount:         amount,
		PaymentMethod:  paymentMethod,
		PaymentDetails: paymentDetails,
		Status:         models.WithdrawalStatusPending,
	}
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO withdrawal_requests (user_id, amount, payment_method, payment_details, status)
		 VALUES ($1, $2, $3, $4, 'pending')
		 RETURNING id, created_at, updated_at`,
		userID, amount, paymentMethod, paymentDetails).
		Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	description := fmt.Sprintf("Withdrawal request #%s", shortID(request.ID))
	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, amount, status, payment_method, description)
		 VALUES ($1, 'withdrawal', $2, 'pending', $3, $4)`,
		userID, amount.Neg(), paymentMethod, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return request, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
