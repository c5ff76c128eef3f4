package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"marketplace-payments/internal/models"
	"marketplace-payments/internal/storage"
	"marketplace-payments/internal/util"

	"go.uber.org/zap"
)

const (
	downloadRateLimit  = 30
	downloadRateWindow = time.Minute
)

// DownloadService mints and redeems expiring download tokens for paid
// orders. Tokens are reused while still live so re-requesting links
// does not reset a buyer's download quota.
type DownloadService struct {
	store        Datastore
	signer       storage.Signer
	limiter      RateLimiter
	siteURL      string
	expiresDays  int
	maxDownloads int
	logger       *zap.Logger
}

func NewDownloadService(st Datastore, signer storage.Signer, limiter RateLimiter, siteURL string, expiresDays, maxDownloads int) *DownloadService {
	return &DownloadService{
		store:        st,
		signer:       signer,
		limiter:      limiter,
		siteURL:      siteURL,
		expiresDays:  expiresDays,
		maxDownloads: maxDownloads,
		logger:       util.GetLogger().With(zap.String("component", "download_service")),
	}
}

// DownloadLink is one issued link, ready for the response payload.
type DownloadLink struct {
	FileID        string    `json:"fileId"`
	FileName      string    `json:"fileName"`
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expiresAt"`
	DownloadCount int       `json:"downloadCount"`
	MaxDownloads  int       `json:"maxDownloads"`
}

// GenerateLinks issues one link per file of the order's product and
// returns the expiry applied to this request. Zero values for
// expiresInDays and maxDownloads take the configured defaults. Live
// tokens are reused with their download count intact; expired or
// exhausted tokens are replaced by a fresh mint.
func (s *DownloadService) GenerateLinks(ctx context.Context, orderID string, expiresInDays, maxDownloads int) ([]DownloadLink, time.Time, error) {
	ctx, span := util.StartSpan(ctx, "download.GenerateLinks")
	defer span.End()

	if expiresInDays <= 0 {
		expiresInDays = s.expiresDays
	}
	if maxDownloads <= 0 {
		maxDownloads = s.maxDownloads
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, fmt.Sprintf("downloads:%s", orderID), downloadRateLimit, downloadRateWindow)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, allowing request",
				zap.String("order_id", orderID), zap.Error(err))
		} else if !allowed {
			return nil, time.Time{}, errors.New("too many download link requests, try again later")
		}
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if order.Status != models.OrderStatusCompleted {
		return nil, time.Time{}, errors.New("order is not completed")
	}

	files, err := s.store.GetProductFiles(ctx, order.ProductID)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, errors.New("no files found for this product")
	}

	expiresAt := time.Now().Add(time.Duration(expiresInDays) * 24 * time.Hour)

	links := make([]DownloadLink, 0, len(files))
	for _, file := range files {
		token, err := s.tokenForFile(ctx, order.ID, file.ID, expiresAt, maxDownloads)
		if err != nil {
			return nil, time.Time{}, err
		}
		links = append(links, DownloadLink{
			FileID:        file.ID,
			FileName:      file.Name,
			URL:           s.downloadURL(file.StoragePath, token),
			ExpiresAt:     token.ExpiresAt,
			DownloadCount: token.DownloadCount,
			MaxDownloads:  token.MaxDownloads,
		})
	}

	util.DownloadLinksIssuedTotal.Add(float64(len(links)))
	s.logger.Info("download links issued",
		zap.String("order_id", orderID),
		zap.Int("count", len(links)))
	return links, expiresAt, nil
}

func (s *DownloadService) tokenForFile(ctx context.Context, orderID, fileID string, expiresAt time.Time, maxDownloads int) (*models.DownloadToken, error) {
	existing, err := s.store.GetDownloadToken(ctx, orderID, fileID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ExpiresAt.After(time.Now()) && existing.DownloadCount < existing.MaxDownloads {
		return existing, nil
	}

	token := &models.DownloadToken{
		OrderID:      orderID,
		FileID:       fileID,
		Token:        mintToken(),
		ExpiresAt:    expiresAt,
		MaxDownloads: maxDownloads,
	}
	if err := s.store.UpsertDownloadToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// downloadURL prefers a signed storage URL and falls back to the
// token-gated application route when signing is not configured.
func (s *DownloadService) downloadURL(storagePath string, token *models.DownloadToken) string {
	if s.signer != nil {
		if signed, err := s.signer.SignURL(storagePath, time.Until(token.ExpiresAt)); err == nil {
			return signed
		} else if !errors.Is(err, storage.ErrNoSigningSecret) {
			s.logger.Warn("failed to sign storage url",
				zap.String("storage_path", storagePath), zap.Error(err))
		}
	}
	return fmt.Sprintf("%s/api/download/%s", s.siteURL, token.Token)
}

// TrackDownload redeems one use of a token. The store performs the
// expiry and quota checks atomically, so concurrent redemptions cannot
// exceed MaxDownloads.
func (s *DownloadService) TrackDownload(ctx context.Context, token, fileID string) (*models.DownloadToken, error) {
	ctx, span := util.StartSpan(ctx, "download.TrackDownload")
	defer span.End()

	redeemed, err := s.store.RedeemDownloadToken(ctx, token, fileID)
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementFileDownloads(ctx, redeemed.FileID); err != nil {
		s.logger.Error("failed to update file download count",
			zap.String("file_id", redeemed.FileID), zap.Error(err))
	}

	util.DownloadsTrackedTotal.Inc()
	return redeemed, nil
}

// mintToken returns a 64-character hex token from 32 bytes of entropy.
func mintToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}
