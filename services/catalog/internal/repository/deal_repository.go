package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dealcart/deals-platform/services/catalog/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RollbackError signals that a create was undone by the post-create
// start_at guard; the validation errors ride along.
type RollbackError struct {
	Errs *domain.ValidationErrors
}

func (e *RollbackError) Error() string {
	return "deal creation rolled back: " + e.Errs.Error()
}

type DealRepository interface {
	Create(ctx context.Context, d *domain.Deal) (*domain.Deal, error)
	GetByID(ctx context.Context, id int64) (*domain.Deal, error)
	List(ctx context.Context, limit, offset int) ([]domain.Deal, error)
	Update(ctx context.Context, d *domain.Deal) (*domain.Deal, error)
	Delete(ctx context.Context, id int64) error
	TitleTaken(ctx context.Context, title string, excludeID int64) (bool, error)
	SetPublishedAt(ctx context.Context, id int64, ts *time.Time) (*time.Time, error)
	QuantitySold(ctx context.Context, dealID int64) (int, error)
}

type dealRepository struct {
	pool *pgxpool.Pool
}

func NewDealRepository(pool *pgxpool.Pool) DealRepository {
	return &dealRepository{pool: pool}
}

const dealCols = `id, title, description, instructions, price,
minimum_purchases_required, maximum_purchases_allowed, maximum_purchases_per_customer,
start_at, expire_at, published_at, category_id, collection_id, created_at, updated_at`

func scanDeal(row pgx.Row, d *domain.Deal) error {
	return row.Scan(
		&d.ID, &d.Title, &d.Description, &d.Instructions, &d.Price,
		&d.MinimumPurchasesRequired, &d.MaximumPurchasesAllowed, &d.MaximumPurchasesPerCustomer,
		&d.StartAt, &d.ExpireAt, &d.PublishedAt, &d.CategoryID, &d.CollectionID,
		&d.CreatedAt, &d.UpdatedAt,
	)
}

// Create inserts the deal with its images and location links in one
// transaction. If the persisted created_at ends up after start_at (clock
// drift between validation and insert), the whole insert is rolled back.
func (r *dealRepository) Create(ctx context.Context, d *domain.Deal) (*domain.Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `
		INSERT INTO deals (
			title, description, instructions, price,
			minimum_purchases_required, maximum_purchases_allowed, maximum_purchases_per_customer,
			start_at, expire_at, category_id, collection_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING ` + dealCols

	var created domain.Deal
	err = scanDeal(tx.QueryRow(ctx, q,
		d.Title, d.Description, d.Instructions, d.Price,
		d.MinimumPurchasesRequired, d.MaximumPurchasesAllowed, d.MaximumPurchasesPerCustomer,
		d.StartAt, d.ExpireAt, d.CategoryID, d.CollectionID,
	), &created)
	if err != nil {
		return nil, err
	}

	if errs := domain.ValidateCreated(&created); errs.Any() {
		return nil, &RollbackError{Errs: errs}
	}

	if err := replaceLocations(ctx, tx, created.ID, d.LocationIDs); err != nil {
		return nil, err
	}
	created.LocationIDs = d.LocationIDs

	for _, img := range d.Images {
		var saved domain.DealImage
		err := tx.QueryRow(ctx,
			`INSERT INTO deal_images (deal_id, filename, byte_size) VALUES ($1,$2,$3)
			 RETURNING id, filename, byte_size`,
			created.ID, img.Filename, img.ByteSize,
		).Scan(&saved.ID, &saved.Filename, &saved.ByteSize)
		if err != nil {
			return nil, err
		}
		created.Images = append(created.Images, saved)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *dealRepository) GetByID(ctx context.Context, id int64) (*domain.Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var d domain.Deal
	err := scanDeal(r.pool.QueryRow(ctx, `SELECT `+dealCols+` FROM deals WHERE id=$1`, id), &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadAssociations(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *dealRepository) loadAssociations(ctx context.Context, d *domain.Deal) error {
	rows, err := r.pool.Query(ctx,
		`SELECT location_id FROM deals_locations WHERE deal_id=$1 ORDER BY location_id`, d.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		d.LocationIDs = append(d.LocationIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	imgRows, err := r.pool.Query(ctx,
		`SELECT id, filename, byte_size FROM deal_images WHERE deal_id=$1 ORDER BY id`, d.ID)
	if err != nil {
		return err
	}
	defer imgRows.Close()
	for imgRows.Next() {
		var img domain.DealImage
		if err := imgRows.Scan(&img.ID, &img.Filename, &img.ByteSize); err != nil {
			return err
		}
		d.Images = append(d.Images, img)
	}
	return imgRows.Err()
}

func (r *dealRepository) List(ctx context.Context, limit, offset int) ([]domain.Deal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT `+dealCols+` FROM deals ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []domain.Deal
	for rows.Next() {
		var d domain.Deal
		if err := scanDeal(rows, &d); err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// Update rewrites the deal row, its location links and its image set in one
// transaction. Images marked for removal are deleted here; purging the
// stored blobs is deferred to the event bus by the caller.
func (r *dealRepository) Update(ctx context.Context, d *domain.Deal) (*domain.Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	const q = `
		UPDATE deals SET
			title=$2, description=$3, instructions=$4, price=$5,
			minimum_purchases_required=$6, maximum_purchases_allowed=$7, maximum_purchases_per_customer=$8,
			start_at=$9, expire_at=$10, published_at=$11, category_id=$12, collection_id=$13,
			updated_at=now()
		WHERE id=$1
		RETURNING ` + dealCols

	var updated domain.Deal
	err = scanDeal(tx.QueryRow(ctx, q,
		d.ID, d.Title, d.Description, d.Instructions, d.Price,
		d.MinimumPurchasesRequired, d.MaximumPurchasesAllowed, d.MaximumPurchasesPerCustomer,
		d.StartAt, d.ExpireAt, d.PublishedAt, d.CategoryID, d.CollectionID,
	), &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := replaceLocations(ctx, tx, d.ID, d.LocationIDs); err != nil {
		return nil, err
	}
	updated.LocationIDs = d.LocationIDs

	for _, img := range d.Images {
		switch {
		case img.Remove && img.ID != 0:
			if _, err := tx.Exec(ctx, `DELETE FROM deal_images WHERE id=$1 AND deal_id=$2`, img.ID, d.ID); err != nil {
				return nil, err
			}
		case img.ID == 0:
			var saved domain.DealImage
			err := tx.QueryRow(ctx,
				`INSERT INTO deal_images (deal_id, filename, byte_size) VALUES ($1,$2,$3)
				 RETURNING id, filename, byte_size`,
				d.ID, img.Filename, img.ByteSize,
			).Scan(&saved.ID, &saved.Filename, &saved.ByteSize)
			if err != nil {
				return nil, err
			}
			updated.Images = append(updated.Images, saved)
		default:
			updated.Images = append(updated.Images, img)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

func replaceLocations(ctx context.Context, tx pgx.Tx, dealID int64, locationIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM deals_locations WHERE deal_id=$1`, dealID); err != nil {
		return err
	}
	for _, locID := range locationIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO deals_locations (deal_id, location_id) VALUES ($1,$2)`, dealID, locID); err != nil {
			return err
		}
	}
	return nil
}

func (r *dealRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, `DELETE FROM deals WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *dealRepository) TitleTaken(ctx context.Context, title string, excludeID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM deals WHERE lower(title)=lower($1) AND id<>$2)`,
		title, excludeID,
	).Scan(&taken)
	return taken, err
}

// SetPublishedAt writes the publish timestamp and returns the stored value.
// Callers run the transition validator first; this is only the persistence
// step of the publish/unpublish actions.
func (r *dealRepository) SetPublishedAt(ctx context.Context, id int64, ts *time.Time) (*time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var result *time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE deals SET published_at=$2, updated_at=now() WHERE id=$1 RETURNING published_at`,
		id, ts,
	).Scan(&result)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pgx.ErrNoRows
	}
	return result, err
}

// QuantitySold sums line item quantities over orders that reached a
// completed state.
func (r *dealRepository) QuantitySold(ctx context.Context, dealID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var sold int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(li.quantity), 0)
		FROM line_items li
		JOIN orders o ON o.id = li.order_id
		WHERE li.deal_id = $1 AND o.status IN ('completed', 'delivered')`,
		dealID,
	).Scan(&sold)
	return sold, err
}
