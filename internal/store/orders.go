package store

import (
	"context"
	"database/sql"

	"marketplace-payments/internal/models"
)

// CreateOrder inserts an order keyed by its payment intent reference.
// Completed orders conflict on the partial unique index over
// payment_intent_id, so redelivered webhook events and racing
// reconciler calls insert at most one row. Returns false when an order
// for the same reference already exists.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) (bool, error) {
	query := `
		INSERT INTO orders (product_id, buyer_id, seller_id, total_amount, currency, status,
		                    stripe_session_id, payment_intent_id, customer_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (payment_intent_id) WHERE status IN ('completed', 'refunded') DO NOTHING
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		order.ProductID, order.BuyerID, order.SellerID, order.TotalAmount, order.Currency,
		order.Status, order.StripeSessionID, order.PaymentIntentID, order.CustomerEmail).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByPaymentIntent retrieves the completed or refunded order
// recorded for a payment intent. Returns nil when none exists.
func (s *Store) GetOrderByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		`SELECT * FROM orders
		 WHERE payment_intent_id = $1 AND status IN ('completed', 'refunded')
		 ORDER BY created_at DESC LIMIT 1`,
		paymentIntentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkOrderRefunded flips the order for a payment intent to refunded
func (s *Store) MarkOrderRefunded(ctx context.Context, paymentIntentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = 'refunded', updated_at = NOW()
		 WHERE payment_intent_id = $1 AND status = 'completed'`,
		paymentIntentID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
}

// CreateSaleTransaction appends a sale ledger entry. A partial unique
// index over payment_reference for type=sale makes this the arbitration
// point between the webhook and reconciler paths: exactly one caller
// observes inserted=true and goes on to credit the wallet.
func (s *Store) CreateSaleTransaction(ctx context.Context, tx *models.Transaction) (bool, error) {
	query := `
		INSERT INTO transactions (user_id, type, amount, status, payment_reference, payment_method, description)
		VALUES ($1, 'sale', $2, $3, $4, $5, $6)
		ON CONFLICT (payment_reference) WHERE type = 'sale' DO NOTHING
		RETURNING id, created_at`

	err := s.db.QueryRowxContext(ctx, query,
		tx.UserID, tx.Amount, tx.Status, tx.PaymentReference, tx.PaymentMethod, tx.Description).
		Scan(&tx.ID, &tx.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetSaleTransactionByReference retrieves the sale ledger entry for a
// payment reference. Returns nil when none exists.
func (s *Store) GetSaleTransactionByReference(ctx context.Context, paymentReference string) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.db.GetContext(ctx, &tx,
		"SELECT * FROM transactions WHERE payment_reference = $1 AND type = 'sale'",
		paymentReference)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// IsEventProcessed checks if a webhook event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks a webhook event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
