package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ecozbite/ecozbite/product-service/internal/domain"
)

func (r *Repository) AddWishlistItem(ctx context.Context, item domain.WishlistItem) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO wishlist_items (user_id, product_id, price_when_added, added_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, product_id) DO NOTHING`,
		item.UserID, item.ProductID, item.PriceWhenAdded, item.AddedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert wishlist item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert wishlist item: %w", err)
	}
	if n == 0 {
		return domain.ErrAlreadyInWishlist
	}
	return nil
}

func (r *Repository) RemoveWishlistItem(ctx context.Context, userID, productID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete wishlist item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete wishlist item: %w", err)
	}
	if n == 0 {
		return domain.ErrNotInWishlist
	}
	return nil
}

func (r *Repository) ListWishlist(ctx context.Context, userID string) ([]*domain.WishlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT w.user_id, w.product_id, w.price_when_added, w.added_at, `+productColumns+`
		 FROM wishlist_items w JOIN products p ON p.id = w.product_id
		 WHERE w.user_id = ?
		 ORDER BY w.added_at DESC, w.product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wishlist: %w", err)
	}
	defer rows.Close()

	entries := []*domain.WishlistEntry{}
	for rows.Next() {
		var e domain.WishlistEntry
		var added time.Time
		p, err := scanProduct(leadingScanner{row: rows, head: []any{&e.UserID, &e.ProductID, &e.PriceWhenAdded, &added}})
		if err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		e.AddedAt = added.UTC()
		e.Product = p
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// leadingScanner scans extra columns that precede the product columns.
type leadingScanner struct {
	row  rowScanner
	head []any
}

func (s leadingScanner) Scan(dest ...any) error {
	return s.row.Scan(append(s.head, dest...)...)
}

func (r *Repository) CountWishlist(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wishlist_items w JOIN products p ON p.id = w.product_id WHERE w.user_id = ?`,
		userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count wishlist: %w", err)
	}
	return n, nil
}

func (r *Repository) InWishlist(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM wishlist_items WHERE user_id = ? AND product_id = ?)`,
		userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist: %w", err)
	}
	return exists, nil
}
