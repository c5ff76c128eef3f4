package store

import (
	"context"
	"database/sql"
	"time"

	"marketplace-payments/internal/models"
)

// GetDownloadToken retrieves the token for an (order, file) pair.
// Returns nil when none exists.
func (s *Store) GetDownloadToken(ctx context.Context, orderID, fileID string) (*models.DownloadToken, error) {
	var token models.DownloadToken
	err := s.db.GetContext(ctx, &token,
		"SELECT * FROM download_tokens WHERE order_id = $1 AND file_id = $2",
		orderID, fileID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// UpsertDownloadToken installs a fresh token for an (order, file) pair,
// replacing any expired or exhausted one. The unique (order_id, file_id)
// index guarantees at most one live token per pair.
func (s *Store) UpsertDownloadToken(ctx context.Context, token *models.DownloadToken) error {
	query := `
		INSERT INTO download_tokens (order_id, file_id, token, expires_at, download_count, max_downloads)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (order_id, file_id) DO UPDATE
		SET token = EXCLUDED.token,
		    expires_at = EXCLUDED.expires_at,
		    download_count = 0,
		    max_downloads = EXCLUDED.max_downloads,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		token.OrderID, token.FileID, token.Token, token.ExpiresAt, token.MaxDownloads).
		Scan(&token.ID, &token.CreatedAt, &token.UpdatedAt)
}

// RedeemDownloadToken consumes one download from a token. The bound
// check and the increment happen in one statement, so the count can
// never pass max_downloads no matter how many redemptions race.
func (s *Store) RedeemDownloadToken(ctx context.Context, token, fileID string) (*models.DownloadToken, error) {
	var redeemed models.DownloadToken
	err := s.db.GetContext(ctx, &redeemed,
		`UPDATE download_tokens
		 SET download_count = download_count + 1, updated_at = NOW()
		 WHERE token = $1 AND file_id = $2
		   AND expires_at > NOW()
		   AND download_count < max_downloads
		 RETURNING *`,
		token, fileID)
	if err == nil {
		return &redeemed, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// Nothing updated: report why.
	var existing models.DownloadToken
	err = s.db.GetContext(ctx, &existing,
		"SELECT * FROM download_tokens WHERE token = $1 AND file_id = $2", token, fileID)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(existing.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return nil, ErrDownloadLimitReached
}
