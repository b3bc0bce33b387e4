package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/andeantrade/cotiza-api/internal/cart"
)

const cartItemColumns = `
	id, cart_id, product_id, company_id, company_name, description,
	quantity, unit_price::text, promo_price::text, updated_at`

// CartByID loads a cart with its items in insertion order.
func (s *Store) CartByID(ctx context.Context, id uuid.UUID) (cart.Cart, error) {
	pool, err := s.pool()
	if err != nil {
		return cart.Cart{}, err
	}
	var c cart.Cart
	row := pool.QueryRow(ctx, `SELECT id, reference, updated_at FROM carts WHERE id = $1`, id)
	if err := row.Scan(&c.ID, &c.Reference, &c.UpdatedAt); err != nil {
		if noRows(err) {
			return cart.Cart{}, cart.ErrNotFound
		}
		return cart.Cart{}, fmt.Errorf("store: load cart: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT`+cartItemColumns+`
		FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return cart.Cart{}, fmt.Errorf("store: list cart items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		item, err := scanCartItem(rows.Scan)
		if err != nil {
			return cart.Cart{}, err
		}
		c.Items = append(c.Items, item)
	}
	return c, rows.Err()
}

// ItemByID loads a single cart item scoped to its cart.
func (s *Store) ItemByID(ctx context.Context, cartID, itemID uuid.UUID) (cart.Item, error) {
	pool, err := s.pool()
	if err != nil {
		return cart.Item{}, err
	}
	row := pool.QueryRow(ctx, `SELECT`+cartItemColumns+`
		FROM cart_items WHERE cart_id = $1 AND id = $2`, cartID, itemID)
	item, err := scanCartItem(row.Scan)
	if err != nil {
		if noRows(err) {
			return cart.Item{}, cart.ErrNotFound
		}
		return cart.Item{}, err
	}
	return item, nil
}

// UpdateItemQuantity commits a quantity change.
func (s *Store) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, qty int) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = now()
		WHERE cart_id = $1 AND id = $2`, cartID, itemID, qty)
	if err != nil {
		return fmt.Errorf("store: update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// RemoveItem deletes a cart item.
func (s *Store) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`, cartID, itemID)
	if err != nil {
		return fmt.Errorf("store: remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func scanCartItem(scan func(...any) error) (cart.Item, error) {
	var (
		item       cart.Item
		unitPrice  *string
		promoPrice *string
	)
	if err := scan(
		&item.ID, &item.CartID, &item.ProductID, &item.CompanyID,
		&item.CompanyName, &item.Description, &item.Quantity,
		&unitPrice, &promoPrice, &item.UpdatedAt,
	); err != nil {
		return cart.Item{}, fmt.Errorf("store: scan cart item: %w", err)
	}
	var err error
	if item.UnitPrice, err = scanDecimal(unitPrice); err != nil {
		return cart.Item{}, err
	}
	if item.PromoPrice, err = scanDecimal(promoPrice); err != nil {
		return cart.Item{}, err
	}
	return item, nil
}
