package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace-payments/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	var got Message
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "re_test_key", "Marketplace <noreply@example.com>")
	err := c.Send(context.Background(), "buyer@example.com", "Your order", "<p>hi</p>")
	require.NoError(t, err)

	assert.Equal(t, "Bearer re_test_key", gotAuth)
	assert.Equal(t, []string{"buyer@example.com"}, got.To)
	assert.Equal(t, "Marketplace <noreply@example.com>", got.From)
	assert.Equal(t, "Your order", got.Subject)
	assert.Equal(t, "<p>hi</p>", got.HTML)
}

func TestSend_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "invalid to address"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "re_test_key", "noreply@example.com")
	err := c.Send(context.Background(), "nope", "subject", "<p>hi</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid to address")
}

func TestSend_NoAPIKeyIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without an API key")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "noreply@example.com")
	assert.NoError(t, c.Send(context.Background(), "buyer@example.com", "subject", "<p>hi</p>"))
}

func TestRenderTemplates(t *testing.T) {
	html, err := RenderOrderConfirmation(&models.OrderConfirmationEvent{
		OrderID:       "order-1",
		ProductName:   "Icon Pack",
		Amount:        "20.00",
		DownloadLinks: []string{"https://shop.example.com/api/download/abc"},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Icon Pack")
	assert.Contains(t, html, "20.00")
	assert.Contains(t, html, "https://shop.example.com/api/download/abc")

	html, err = RenderSaleNotification(&models.SaleNotificationEvent{
		ProductName: "Icon Pack",
		Amount:      "20.00",
		Earnings:    "18.00",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "18.00")
	// The fee share is configurable, so the copy never states a percent.
	assert.NotContains(t, html, "%")

	html, err = RenderPaymentFailed(&models.PaymentFailedEvent{ProductName: "Icon Pack"})
	require.NoError(t, err)
	assert.Contains(t, html, "Icon Pack")

	html, err = RenderOrderRefunded(&models.OrderRefundedEvent{OrderID: "order-1", Amount: "20.00"})
	require.NoError(t, err)
	assert.Contains(t, html, "20.00")

	html, err = RenderWithdrawalRequested(&models.WithdrawalRequestedEvent{WithdrawalID: "w-1", Amount: "50.00"})
	require.NoError(t, err)
	assert.Contains(t, html, "50.00")
}
