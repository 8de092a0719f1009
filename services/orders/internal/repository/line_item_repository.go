package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dealcart/deals-platform/services/orders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LineItemRepository interface {
	AddOne(ctx context.Context, orderID, dealID int64, price float64) (*domain.LineItem, error)
	DecrementOne(ctx context.Context, orderID, dealID int64) (*domain.LineItem, error)
	Remove(ctx context.Context, orderID, dealID int64) error
	GetByID(ctx context.Context, id int64) (*domain.LineItem, error)
}

type lineItemRepository struct {
	pool *pgxpool.Pool
}

func NewLineItemRepository(pool *pgxpool.Pool) LineItemRepository {
	return &lineItemRepository{pool: pool}
}

const lineItemCols = `id, order_id, deal_id, price, quantity, created_at, updated_at`

func scanLineItem(row pgx.Row, li *domain.LineItem) error {
	return row.Scan(
		&li.ID, &li.OrderID, &li.DealID, &li.Price, &li.Quantity,
		&li.CreatedAt, &li.UpdatedAt,
	)
}

// AddOne inserts a line item for the deal, or bumps the quantity when
// the order already holds one. The (order_id, deal_id) unique key makes
// the upsert race-safe.
func (r *lineItemRepository) AddOne(ctx context.Context, orderID, dealID int64, price float64) (*domain.LineItem, error) {
	const q = `
		INSERT INTO line_items (order_id, deal_id, price, quantity)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (order_id, deal_id)
		DO UPDATE SET quantity = line_items.quantity + 1, updated_at = now()
		RETURNING ` + lineItemCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var li domain.LineItem
	if err := scanLineItem(r.pool.QueryRow(ctx, q, orderID, dealID, price), &li); err != nil {
		return nil, err
	}
	return &li, nil
}

// DecrementOne lowers the quantity by one and destroys the line item
// when it reaches zero. Returns nil when the item was destroyed or was
// never there.
func (r *lineItemRepository) DecrementOne(ctx context.Context, orderID, dealID int64) (*domain.LineItem, error) {
	const updateQ = `
		UPDATE line_items SET quantity = quantity - 1, updated_at = now()
		WHERE order_id = $1 AND deal_id = $2
		RETURNING ` + lineItemCols
	const deleteQ = `DELETE FROM line_items WHERE order_id = $1 AND deal_id = $2 AND quantity <= 0`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var li domain.LineItem
	if err := scanLineItem(tx.QueryRow(ctx, updateQ, orderID, dealID), &li); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if li.Quantity <= 0 {
		if _, err := tx.Exec(ctx, deleteQ, orderID, dealID); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &li, nil
}

func (r *lineItemRepository) Remove(ctx context.Context, orderID, dealID int64) error {
	const q = `DELETE FROM line_items WHERE order_id = $1 AND deal_id = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, orderID, dealID)
	return err
}

func (r *lineItemRepository) GetByID(ctx context.Context, id int64) (*domain.LineItem, error) {
	const q = `SELECT ` + lineItemCols + ` FROM line_items WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var li domain.LineItem
	if err := scanLineItem(r.pool.QueryRow(ctx, q, id), &li); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &li, nil
}
