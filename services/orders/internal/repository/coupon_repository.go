package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dealcart/deals-platform/pkg/token"
	"github.com/dealcart/deals-platform/services/orders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type CouponRepository interface {
	Issue(ctx context.Context, lineItemID int64) (*domain.Coupon, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.Coupon, error)
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	Redeem(ctx context.Context, code string, userID int64) (*domain.Coupon, error)
}

type couponRepository struct {
	pool *pgxpool.Pool
}

func NewCouponRepository(pool *pgxpool.Pool) CouponRepository {
	return &couponRepository{pool: pool}
}

const couponCols = `id, line_item_id, code, redeemed_by, redeemed_at, created_at`

func scanCoupon(row pgx.Row, c *domain.Coupon) error {
	return row.Scan(
		&c.ID, &c.LineItemID, &c.Code, &c.RedeemedBy, &c.RedeemedAt, &c.CreatedAt,
	)
}

// Issue mints a coupon with a fresh random code. The unique index on
// code is the collision check: a duplicate insert fails with a unique
// violation and we retry with a new code, up to the shared attempt cap.
func (r *couponRepository) Issue(ctx context.Context, lineItemID int64) (*domain.Coupon, error) {
	const q = `INSERT INTO coupons (line_item_id, code) VALUES ($1, $2) RETURNING ` + couponCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	for attempt := 0; attempt < token.MaxAttempts; attempt++ {
		code, err := token.New()
		if err != nil {
			return nil, err
		}

		var coupon domain.Coupon
		err = scanCoupon(r.pool.QueryRow(ctx, q, lineItemID, code), &coupon)
		if err == nil {
			return &coupon, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			continue
		}
		return nil, err
	}
	return nil, token.ErrExhausted
}

func (r *couponRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.Coupon, error) {
	const q = `
		SELECT c.id, c.line_item_id, c.code, c.redeemed_by, c.redeemed_at, c.created_at
		FROM coupons c
		JOIN line_items li ON li.id = c.line_item_id
		WHERE li.order_id = $1
		ORDER BY c.id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coupons := []domain.Coupon{}
	for rows.Next() {
		var c domain.Coupon
		if err := scanCoupon(rows, &c); err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}

func (r *couponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	const q = `SELECT ` + couponCols + ` FROM coupons WHERE code = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var coupon domain.Coupon
	if err := scanCoupon(r.pool.QueryRow(ctx, q, code), &coupon); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// Redeem marks an unredeemed coupon as used. Returns nil when the code
// is unknown or already redeemed.
func (r *couponRepository) Redeem(ctx context.Context, code string, userID int64) (*domain.Coupon, error) {
	const q = `
		UPDATE coupons SET redeemed_by = $2, redeemed_at = now()
		WHERE code = $1 AND redeemed_at IS NULL
		RETURNING ` + couponCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var coupon domain.Coupon
	if err := scanCoupon(r.pool.QueryRow(ctx, q, code, userID), &coupon); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}
