package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dealcart/deals-platform/services/orders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DealReader is the read-only view of the catalog the orders side
// needs: pricing a line item, gating cart adds on sellability, and
// listing candidates for finalization.
type DealReader interface {
	GetByID(ctx context.Context, id int64) (*domain.DealInfo, error)
	ListExpiredPublished(ctx context.Context, now time.Time) ([]domain.DealInfo, error)
	QuantityByCustomer(ctx context.Context, dealID, userID int64) (int, error)
}

type dealReader struct {
	pool *pgxpool.Pool
}

func NewDealReader(pool *pgxpool.Pool) DealReader {
	return &dealReader{pool: pool}
}

const dealInfoCols = `id, title, price, minimum_purchases_required, maximum_purchases_allowed,
	maximum_purchases_per_customer, start_at, expire_at, published_at`

func scanDealInfo(row pgx.Row, d *domain.DealInfo) error {
	return row.Scan(
		&d.ID, &d.Title, &d.Price, &d.MinimumPurchasesRequired, &d.MaximumPurchasesAllowed,
		&d.MaxPurchasesPerCustomer, &d.StartAt, &d.ExpireAt, &d.PublishedAt,
	)
}

func (r *dealReader) GetByID(ctx context.Context, id int64) (*domain.DealInfo, error) {
	const q = `SELECT ` + dealInfoCols + ` FROM deals WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var deal domain.DealInfo
	if err := scanDealInfo(r.pool.QueryRow(ctx, q, id), &deal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &deal, nil
}

// ListExpiredPublished returns published deals whose expire_at has
// passed. These still hold undelivered paid orders to settle.
func (r *dealReader) ListExpiredPublished(ctx context.Context, now time.Time) ([]domain.DealInfo, error) {
	const q = `
		SELECT ` + dealInfoCols + ` FROM deals
		WHERE published_at IS NOT NULL AND expire_at <= $1
		ORDER BY expire_at`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deals := []domain.DealInfo{}
	for rows.Next() {
		var d domain.DealInfo
		if err := scanDealInfo(rows, &d); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// QuantityByCustomer counts units of a deal the user already bought,
// pending cart included. Backs the per-customer purchase cap.
func (r *dealReader) QuantityByCustomer(ctx context.Context, dealID, userID int64) (int, error) {
	const q = `
		SELECT COALESCE(SUM(li.quantity), 0)
		FROM line_items li
		JOIN orders o ON o.id = li.order_id
		WHERE li.deal_id = $1 AND o.user_id = $2 AND o.status IN ('pending', 'completed', 'delivered')`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var count int
	if err := r.pool.QueryRow(ctx, q, dealID, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
