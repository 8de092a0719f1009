package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dealcart/deals-platform/services/orders/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository interface {
	Create(ctx context.Context, userID *int64) (*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]domain.Order, error)
	ListCompletedByDeal(ctx context.Context, dealID int64) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error
	SetPaymentIntent(ctx context.Context, id int64, paymentIntentID string) error
	AttachUser(ctx context.Context, id, userID int64) error
	QuantitySold(ctx context.Context, dealID int64) (int, error)
	BuyerEmail(ctx context.Context, orderID int64) (string, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderCols = `id, status, user_id, payment_intent_id, created_at, updated_at`

func scanOrder(row pgx.Row, o *domain.Order) error {
	return row.Scan(
		&o.ID, &o.Status, &o.UserID, &o.PaymentIntentID,
		&o.CreatedAt, &o.UpdatedAt,
	)
}

func (r *orderRepository) Create(ctx context.Context, userID *int64) (*domain.Order, error) {
	const q = `INSERT INTO orders (status, user_id) VALUES ('pending', $1) RETURNING ` + orderCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var order domain.Order
	if err := scanOrder(r.pool.QueryRow(ctx, q, userID), &order); err != nil {
		return nil, err
	}
	order.LineItems = []domain.LineItem{}
	return &order, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var order domain.Order
	if err := scanOrder(r.pool.QueryRow(ctx, q, id), &order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.lineItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.LineItems = items
	return &order, nil
}

func (r *orderRepository) lineItems(ctx context.Context, orderID int64) ([]domain.LineItem, error) {
	const q = `
		SELECT li.id, li.order_id, li.deal_id, d.title, li.price, li.quantity, li.created_at, li.updated_at
		FROM line_items li
		JOIN deals d ON d.id = li.deal_id
		WHERE li.order_id = $1
		ORDER BY li.id`

	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.LineItem{}
	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(
			&li.ID, &li.OrderID, &li.DealID, &li.DealTitle,
			&li.Price, &li.Quantity, &li.CreatedAt, &li.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func (r *orderRepository) List(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]domain.Order, error) {
	const q = `
		SELECT ` + orderCols + ` FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListCompletedByDeal returns paid orders holding the given deal, with
// line items loaded. Deal finalization walks these.
func (r *orderRepository) ListCompletedByDeal(ctx context.Context, dealID int64) ([]domain.Order, error) {
	const q = `
		SELECT DISTINCT o.id, o.status, o.user_id, o.payment_intent_id, o.created_at, o.updated_at
		FROM orders o
		JOIN line_items li ON li.order_id = o.id
		WHERE li.deal_id = $1 AND o.status = 'completed'
		ORDER BY o.id`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := r.lineItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].LineItems = items
	}
	return orders, nil
}

// UpdateStatus moves an order between statuses. The WHERE clause pins
// the expected current status so concurrent movers cannot both win.
func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error {
	const q = `UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *orderRepository) SetPaymentIntent(ctx context.Context, id int64, paymentIntentID string) error {
	const q = `UPDATE orders SET payment_intent_id = $2, updated_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, paymentIntentID)
	return err
}

func (r *orderRepository) AttachUser(ctx context.Context, id, userID int64) error {
	const q = `UPDATE orders SET user_id = $2, updated_at = now() WHERE id = $1 AND user_id IS NULL`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, userID)
	return err
}

// QuantitySold counts units of a deal across paid and delivered orders.
func (r *orderRepository) QuantitySold(ctx context.Context, dealID int64) (int, error) {
	const q = `
		SELECT COALESCE(SUM(li.quantity), 0)
		FROM line_items li
		JOIN orders o ON o.id = li.order_id
		WHERE li.deal_id = $1 AND o.status IN ('completed', 'delivered')`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var sold int
	if err := r.pool.QueryRow(ctx, q, dealID).Scan(&sold); err != nil {
		return 0, err
	}
	return sold, nil
}

// BuyerEmail returns the email of the user who owns the order, or ""
// for guest orders.
func (r *orderRepository) BuyerEmail(ctx context.Context, orderID int64) (string, error) {
	const q = `
		SELECT u.email FROM users u
		JOIN orders o ON o.user_id = u.id
		WHERE o.id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var email string
	if err := r.pool.QueryRow(ctx, q, orderID).Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return email, nil
}
