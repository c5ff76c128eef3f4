package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketplace-payments/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductFiles retrieves the downloadable files attached to a product
func (s *Store) GetProductFiles(ctx context.Context, productID string) ([]models.ProductFile, error) {
	var files []models.ProductFile
	err := s.db.SelectContext(ctx, &files,
		"SELECT * FROM product_files WHERE product_id = $1 ORDER BY name", productID)
	return files, err
}

// IncrementProductSales bumps a product's sales counters in a single
// additive statement so concurrent sales never clobber each other.
func (s *Store) IncrementProductSales(ctx context.Context, productID string, amount decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products
		 SET sales_count = sales_count + 1,
		     total_revenue = total_revenue + $1
		 WHERE id = $2`,
		amount, productID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProductNotFound
	}
	return nil
}

// IncrementFileDownloads bumps the lifetime download counter of a file
func (s *Store) IncrementFileDownloads(ctx context.Context, fileID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE product_files SET download_count = download_count + 1 WHERE id = $1", fileID)
	return err
}

// GetProfileByID retrieves a user profile by ID
func (s *Store) GetProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.GetContext(ctx, &profile, "SELECT * FROM profiles WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreditWallet adds to a seller's wallet balance. Additive single
// statement: two concurrent credits both land.
func (s *Store) CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles
		 SET wallet_balance = wallet_balance + $1, updated_at = NOW()
		 WHERE id = $2`,
		amount, userID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProfileNotFound
	}
	return nil
}
