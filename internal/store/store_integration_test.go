package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"marketplace-payments/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Run with INTEGRATION_TESTS=1; requires Docker.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("Integration test - set INTEGRATION_TESTS=1 to run")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = postgres.Terminate(ctx)
	})

	host, err := postgres.Host(ctx)
	require.NoError(t, err)
	port, err := postgres.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	st, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runMigrations(t, st)
	return st
}

func runMigrations(t *testing.T, st *Store) {
	t.Helper()
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".up.sql") {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(migrationDir, name))
		require.NoError(t, err)
		_, err = st.GetDB().Exec(string(content))
		require.NoError(t, err, "migration %s", name)
	}
}

func seedSellerAndProduct(t *testing.T, st *Store) (sellerID, productID string) {
	t.Helper()
	err := st.GetDB().QueryRowx(
		`INSERT INTO profiles (email, kyc_status, wallet_balance) VALUES ('seller@example.com', 'verified', 0) RETURNING id`,
	).Scan(&sellerID)
	require.NoError(t, err)
	err = st.GetDB().QueryRowx(
		`INSERT INTO products (seller_id, title, price_cents) VALUES ($1, 'Icon Pack', 2000) RETURNING id`, sellerID,
	).Scan(&productID)
	require.NoError(t, err)
	return sellerID, productID
}

func TestCreateOrder_ConflictOnSettledIntent(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	_, productID := seedSellerAndProduct(t, st)

	order := &models.Order{
		ProductID:       productID,
		TotalAmount:     decimal.RequireFromString("20.00"),
		Currency:        "usd",
		Status:          models.OrderStatusCompleted,
		PaymentIntentID: "pi_1",
	}
	inserted, err := st.CreateOrder(ctx, order)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, order.ID)

	dup := &models.Order{
		ProductID:       productID,
		TotalAmount:     decimal.RequireFromString("20.00"),
		Currency:        "usd",
		Status:          models.OrderStatusCompleted,
		PaymentIntentID: "pi_1",
	}
	inserted, err = st.CreateOrder(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted, "second settled order for the same intent must not insert")

	found, err := st.GetOrderByPaymentIntent(ctx, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.ID, found.ID)
}

func TestCreateOrder_FailedDoesNotBlockCompleted(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	_, productID := seedSellerAndProduct(t, st)

	failed := &models.Order{
		ProductID:       productID,
		Currency:        "usd",
		Status:          models.OrderStatusFailed,
		PaymentIntentID: "pi_retry",
	}
	inserted, err := st.CreateOrder(ctx, failed)
	require.NoError(t, err)
	assert.True(t, inserted)

	completed := &models.Order{
		ProductID:       productID,
		TotalAmount:     decimal.RequireFromString("20.00"),
		Currency:        "usd",
		Status:          models.OrderStatusCompleted,
		PaymentIntentID: "pi_retry",
	}
	inserted, err = st.CreateOrder(ctx, completed)
	require.NoError(t, err)
	assert.True(t, inserted, "completed order after a failed attempt must insert")
}

func TestCreateSaleTransaction_Arbitration(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	sellerID, _ := seedSellerAndProduct(t, st)

	tx := &models.Transaction{
		UserID:           sellerID,
		Amount:           decimal.RequireFromString("20.00"),
		Status:           models.TransactionStatusCompleted,
		PaymentReference: "pi_1",
		PaymentMethod:    "stripe",
		Description:      "Sale of Icon Pack",
	}
	inserted, err := st.CreateSaleTransaction(ctx, tx)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &models.Transaction{
		UserID:           sellerID,
		Amount:           decimal.RequireFromString("20.00"),
		Status:           models.TransactionStatusCompleted,
		PaymentReference: "pi_1",
	}
	inserted, err = st.CreateSaleTransaction(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	existing, err := st.GetSaleTransactionByReference(ctx, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, tx.ID, existing.ID)
}

func TestWalletAndStats(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	sellerID, productID := seedSellerAndProduct(t, st)

	require.NoError(t, st.CreditWallet(ctx, sellerID, decimal.RequireFromString("18.00")))
	require.NoError(t, st.CreditWallet(ctx, sellerID, decimal.RequireFromString("9.00")))

	profile, err := st.GetProfileByID(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, profile.WalletBalance.Equal(decimal.RequireFromString("27.00")),
		"balance %s", profile.WalletBalance)

	require.NoError(t, st.IncrementProductSales(ctx, productID, decimal.RequireFromString("20.00")))
	product, err := st.GetProductByID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), product.SalesCount)
	assert.True(t, product.TotalRevenue.Equal(decimal.RequireFromString("20.00")))
}

func TestDownloadTokenLifecycle(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	_, productID := seedSellerAndProduct(t, st)

	var fileID string
	err := st.GetDB().QueryRowx(
		`INSERT INTO product_files (product_id, name, storage_path) VALUES ($1, 'pack.zip', 'p/pack.zip') RETURNING id`,
		productID,
	).Scan(&fileID)
	require.NoError(t, err)

	order := &models.Order{
		ProductID:       productID,
		Currency:        "usd",
		Status:          models.OrderStatusCompleted,
		PaymentIntentID: "pi_dl",
	}
	_, err = st.CreateOrder(ctx, order)
	require.NoError(t, err)

	token := &models.DownloadToken{
		OrderID:      order.ID,
		FileID:       fileID,
		Token:        strings.Repeat("ab", 32),
		ExpiresAt:    time.Now().Add(time.Hour),
		MaxDownloads: 2,
	}
	require.NoError(t, st.UpsertDownloadToken(ctx, token))

	// Redeem up to the bound, then the atomic update refuses.
	for i := 1; i <= 2; i++ {
		redeemed, err := st.RedeemDownloadToken(ctx, token.Token, fileID)
		require.NoError(t, err)
		assert.Equal(t, i, redeemed.DownloadCount)
	}
	_, err = st.RedeemDownloadToken(ctx, token.Token, fileID)
	assert.ErrorIs(t, err, ErrDownloadLimitReached)

	// Upsert on the same (order, file) resets the quota with a new token.
	fresh := &models.DownloadToken{
		OrderID:      order.ID,
		FileID:       fileID,
		Token:        strings.Repeat("cd", 32),
		ExpiresAt:    time.Now().Add(time.Hour),
		MaxDownloads: 5,
	}
	require.NoError(t, st.UpsertDownloadToken(ctx, fresh))
	assert.Equal(t, 0, fresh.DownloadCount)

	_, err = st.RedeemDownloadToken(ctx, token.Token, fileID)
	assert.ErrorIs(t, err, ErrTokenNotFound, "replaced token must stop working")
}

func TestRedeemDownloadToken_Expired(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	_, productID := seedSellerAndProduct(t, st)

	var fileID string
	err := st.GetDB().QueryRowx(
		`INSERT INTO product_files (product_id, name, storage_path) VALUES ($1, 'pack.zip', 'p/pack.zip') RETURNING id`,
		productID,
	).Scan(&fileID)
	require.NoError(t, err)

	order := &models.Order{
		ProductID: productID, Currency: "usd",
		Status: models.OrderStatusCompleted, PaymentIntentID: "pi_exp",
	}
	_, err = st.CreateOrder(ctx, order)
	require.NoError(t, err)

	token := &models.DownloadToken{
		OrderID:      order.ID,
		FileID:       fileID,
		Token:        strings.Repeat("ef", 32),
		ExpiresAt:    time.Now().Add(-time.Minute),
		MaxDownloads: 5,
	}
	require.NoError(t, st.UpsertDownloadToken(ctx, token))

	_, err = st.RedeemDownloadToken(ctx, token.Token, fileID)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCreateWithdrawalRequest(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	sellerID, _ := seedSellerAndProduct(t, st)
	require.NoError(t, st.CreditWallet(ctx, sellerID, decimal.RequireFromString("100.00")))

	request, err := st.CreateWithdrawalRequest(ctx, sellerID, decimal.RequireFromString("50.00"), "paypal", nil)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, request.Status)

	// One in-flight request per user.
	_, err = st.CreateWithdrawalRequest(ctx, sellerID, decimal.RequireFromString("10.00"), "paypal", nil)
	assert.ErrorIs(t, err, ErrWithdrawalPending)

	// The pending negative ledger entry exists; the wallet is untouched.
	var count int
	require.NoError(t, st.GetDB().Get(&count,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND type = 'withdrawal' AND status = 'pending' AND amount < 0`,
		sellerID))
	assert.Equal(t, 1, count)

	profile, err := st.GetProfileByID(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, profile.WalletBalance.Equal(decimal.RequireFromString("100.00")))
}

func TestCreateWithdrawalRequest_InsufficientBalance(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	sellerID, _ := seedSellerAndProduct(t, st)
	require.NoError(t, st.CreditWallet(ctx, sellerID, decimal.RequireFromString("20.00")))

	_, err := st.CreateWithdrawalRequest(ctx, sellerID, decimal.RequireFromString("20.01"), "paypal", nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestEventDedup(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	processed, err := st.IsEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, st.MarkEventProcessed(ctx, "evt_1", "checkout.session.completed"))
	require.NoError(t, st.MarkEventProcessed(ctx, "evt_1", "checkout.session.completed"))

	processed, err = st.IsEventProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestGetCouponByCode_CaseInsensitive(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	_, err := st.GetDB().Exec(
		`INSERT INTO coupons (code, type, value, is_active) VALUES ('SAVE20', 'percentage', 20, TRUE)`)
	require.NoError(t, err)

	coupon, err := st.GetCouponByCode(ctx, "save20")
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", coupon.Code)

	_, err = st.GetCouponByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrCouponNotFound)

	// A code stored lowercase is still reachable through the
	// case-insensitive lookup.
	_, err = st.GetDB().Exec(
		`INSERT INTO coupons (code, type, value, is_active) VALUES ('winter10', 'fixed', 10, TRUE)`)
	require.NoError(t, err)

	coupon, err = st.GetCouponByCode(ctx, "WINTER10")
	require.NoError(t, err)
	assert.Equal(t, "winter10", coupon.Code)

	// Uniqueness is case-insensitive too.
	_, err = st.GetDB().Exec(
		`INSERT INTO coupons (code, type, value, is_active) VALUES ('Save20', 'percentage', 20, TRUE)`)
	assert.Error(t, err)
}
