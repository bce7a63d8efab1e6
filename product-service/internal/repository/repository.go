package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"

	"github.com/ecozbite/ecozbite/product-service/internal/domain"
)

const productColumns = `id, store_id, store_name, name, description, category, unit,
	original_price, discounted_price, discount_percentage, stock, expiry_date, created_at`

type Repository struct {
	db *sql.DB
}

// Filter narrows ListProducts. Empty fields match everything.
type Filter struct {
	StoreID  string
	Category string
}

type RepoInterface interface {
	ListProducts(ctx context.Context, f Filter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdatePricing(ctx context.Context, id string, discountedPrice float64, discountPercentage int) error
	Close() error
	RunMigrations(string) error
}

type WishlistRepository interface {
	// AddWishlistItem returns domain.ErrAlreadyInWishlist when the user already
	// saved the product.
	AddWishlistItem(ctx context.Context, item domain.WishlistItem) error
	RemoveWishlistItem(ctx context.Context, userID, productID string) error
	// ListWishlist skips items whose product no longer exists.
	ListWishlist(ctx context.Context, userID string) ([]*domain.WishlistEntry, error)
	CountWishlist(ctx context.Context, userID string) (int, error)
	InWishlist(ctx context.Context, userID, productID string) (bool, error)
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite serialises writers anyway; one connection also keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) ListProducts(ctx context.Context, f Filter) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE (? = '' OR store_id = ?) AND (? = '' OR category = ?)
		ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, f.StoreID, f.StoreID, f.Category, f.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdatePricing(ctx context.Context, id string, discountedPrice float64, discountPercentage int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET discounted_price = ?, discount_percentage = ? WHERE id = ?`,
		discountedPrice, discountPercentage, id)
	if err != nil {
		return fmt.Errorf("failed to update pricing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update pricing: %w", err)
	}
	if n == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var expiry, created time.Time
	err := row.Scan(
		&p.ID,
		&p.StoreID,
		&p.StoreName,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Unit,
		&p.OriginalPrice,
		&p.DiscountedPrice,
		&p.DiscountPercentage,
		&p.Stock,
		&expiry,
		&created,
	)
	if err != nil {
		return nil, err
	}
	p.ExpiryDate = expiry.UTC()
	p.CreatedAt = created.UTC()
	return p, nil
}
