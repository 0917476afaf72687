package storage

import (
	"context"

	"github.com/sevahq/seva/libs/db"
	"github.com/sevahq/seva/services/booking-service/internal/model"
)

type CartRepository struct {
	pool *db.Pool
}

func NewCartRepository(pool *db.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Add upserts a provider into the user's cart. A service can sit in the
// cart once; re-adding refreshes the price snapshot.
func (r *CartRepository) Add(ctx context.Context, item model.CartItem) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO cart_items (user_id, provider_id, service_type, price_paise)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, provider_id)
		DO UPDATE SET price_paise = EXCLUDED.price_paise, created_at = now()
		RETURNING id
	`, item.UserID, item.ProviderID, item.ServiceType, item.PricePaise).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *CartRepository) List(ctx context.Context, userID string) ([]model.CartItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, provider_id, service_type, price_paise, created_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProviderID, &item.ServiceType, &item.PricePaise, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// Remove deletes one item; returns false when nothing matched.
func (r *CartRepository) Remove(ctx context.Context, userID, itemID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM cart_items
		WHERE id = $1 AND user_id = $2
	`, itemID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1
	`, userID)
	return err
}
