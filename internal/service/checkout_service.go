package service

import (
	"context"
	"errors"

	"marketplace-payments/internal/stripeclient"
	"marketplace-payments/internal/util"

	"go.uber.org/zap"
)

// CheckoutService opens hosted checkout sessions with the payment
// provider. Prices are passed through in minor units; the webhook and
// reconciler revalidate amounts against the catalog before any money
// moves, so a tampered price here only produces a sale that will never
// be fulfilled.
type CheckoutService struct {
	provider PaymentProvider
	siteURL  string
	logger   *zap.Logger
}

func NewCheckoutService(provider PaymentProvider, siteURL string) *CheckoutService {
	return &CheckoutService{
		provider: provider,
		siteURL:  siteURL,
		logger:   util.GetLogger().With(zap.String("component", "checkout_service")),
	}
}

type CreateCheckoutSessionRequest struct {
	ProductID    string `json:"productId"`
	ProductPrice int64  `json:"productPrice"`
	ProductName  string `json:"productName"`
	ProductImage string `json:"productImage,omitempty"`
	BuyerID      string `json:"buyerId,omitempty"`
	SellerID     string `json:"sellerId,omitempty"`
	CouponCode   string `json:"couponCode,omitempty"`
	SuccessURL   string `json:"successUrl,omitempty"`
	CancelURL    string `json:"cancelUrl,omitempty"`
}

type CreateCheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateSession validates the request and opens a session. The product
// identity and parties ride along as session metadata so the webhook
// can fulfill without a second round trip.
func (s *CheckoutService) CreateSession(ctx context.Context, req *CreateCheckoutSessionRequest) (*CreateCheckoutSessionResponse, error) {
	ctx, span := util.StartSpan(ctx, "checkout.CreateSession")
	defer span.End()

	if req.ProductID == "" {
		return nil, errors.New("productId is required")
	}
	if req.ProductPrice <= 0 {
		return nil, errors.New("productPrice is required")
	}
	if req.ProductName == "" {
		return nil, errors.New("productName is required")
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = s.siteURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = s.siteURL + "/marketplace"
	}

	metadata := map[string]string{
		"productId": req.ProductID,
	}
	if req.BuyerID != "" {
		metadata["buyerId"] = req.BuyerID
	}
	if req.SellerID != "" {
		metadata["sellerId"] = req.SellerID
	}
	if req.CouponCode != "" {
		metadata["couponCode"] = req.CouponCode
	}

	session, err := s.provider.CreateCheckoutSession(ctx, stripeclient.CheckoutSessionParams{
		ProductName:       req.ProductName,
		ProductImage:      req.ProductImage,
		PriceCents:        req.ProductPrice,
		Currency:          "usd",
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		ClientReferenceID: req.BuyerID,
		Metadata:          metadata,
	})
	if err != nil {
		s.logger.Error("failed to create checkout session",
			zap.String("product_id", req.ProductID), zap.Error(err))
		return nil, err
	}

	util.CheckoutSessionsCreatedTotal.Inc()
	s.logger.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("product_id", req.ProductID))

	return &CreateCheckoutSessionResponse{SessionID: session.ID, URL: session.URL}, nil
}
