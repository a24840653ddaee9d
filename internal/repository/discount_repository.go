package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-pricing-engine/internal/model"
	"github.com/fairyhunter13/order-pricing-engine/internal/service"
	"github.com/fairyhunter13/order-pricing-engine/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	database.TxQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
}

const discountColumns = `id, code, kind, value, min_order_value, max_discount, usage_limit,
	usage_count, categories, active, valid_from, valid_until, created_at, updated_at`

// DiscountRepository provides data access for discounts using pgx.
type DiscountRepository struct {
	pool PoolInterface
}

// NewDiscountRepository creates a new DiscountRepository with the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// NewDiscountRepositoryWithPool creates a new DiscountRepository with a custom pool interface.
// This is primarily used for testing.
func NewDiscountRepositoryWithPool(pool PoolInterface) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

func scanDiscount(row pgx.Row) (*model.DiscountRecord, error) {
	var (
		d             model.DiscountRecord
		minOrderValue decimal.NullDecimal
		maxDiscount   decimal.NullDecimal
	)
	err := row.Scan(
		&d.ID,
		&d.Code,
		&d.Kind,
		&d.Value,
		&minOrderValue,
		&maxDiscount,
		&d.UsageLimit,
		&d.UsageCount,
		&d.Categories,
		&d.Active,
		&d.ValidFrom,
		&d.ValidUntil,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if minOrderValue.Valid {
		d.MinOrderValue = &minOrderValue.Decimal
	}
	if maxDiscount.Valid {
		d.MaxDiscount = &maxDiscount.Decimal
	}
	if d.Categories == nil {
		d.Categories = []string{}
	}
	return &d, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetByCode retrieves a live (not soft-deleted) discount by its normalized code.
// Returns nil, nil if the discount is not found (service layer handles this).
func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*model.DiscountRecord, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE code = $1 AND deleted_at IS NULL`

	d, err := scanDiscount(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get discount by code %s: %w", code, err)
	}
	return d, nil
}

// List retrieves every discount that has not been soft-deleted, ordered by code.
// On success, returns an empty slice (not nil) when no discounts exist.
func (r *DiscountRepository) List(ctx context.Context) ([]model.DiscountRecord, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE deleted_at IS NULL ORDER BY code`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	defer rows.Close()

	discounts := []model.DiscountRecord{}
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discount: %w", err)
		}
		discounts = append(discounts, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discount rows: %w", err)
	}

	return discounts, nil
}

// Insert inserts a new discount and fills in the database timestamps.
// Returns service.ErrDiscountExists if a live discount with the same code already exists.
func (r *DiscountRepository) Insert(ctx context.Context, d *model.DiscountRecord) error {
	query := `INSERT INTO discounts
		(id, code, kind, value, min_order_value, max_discount, usage_limit, categories, active, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING usage_count, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		d.ID, d.Code, d.Kind, d.Value, d.MinOrderValue, d.MaxDiscount,
		d.UsageLimit, d.Categories, d.Active, d.ValidFrom, d.ValidUntil,
	).Scan(&d.UsageCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return service.ErrDiscountExists
		}
		return fmt.Errorf("insert discount: %w", err)
	}
	return nil
}

// Update replaces the editable columns of the discount with d.ID. usage_count is left alone
// and its current value is read back into d.
// Returns service.ErrDiscountNotFound if the row is missing or soft-deleted and
// service.ErrDiscountExists if the new code collides with another live discount.
func (r *DiscountRepository) Update(ctx context.Context, d *model.DiscountRecord) error {
	query := `UPDATE discounts SET
		code = $2, kind = $3, value = $4, min_order_value = $5, max_discount = $6,
		usage_limit = $7, categories = $8, active = $9, valid_from = $10, valid_until = $11,
		updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING usage_count, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		d.ID, d.Code, d.Kind, d.Value, d.MinOrderValue, d.MaxDiscount,
		d.UsageLimit, d.Categories, d.Active, d.ValidFrom, d.ValidUntil,
	).Scan(&d.UsageCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.ErrDiscountNotFound
		}
		if isUniqueViolation(err) {
			return service.ErrDiscountExists
		}
		return fmt.Errorf("update discount %s: %w", d.ID, err)
	}
	return nil
}

// SoftDelete marks the live discount with code as deleted. The row and its usage
// history are kept.
// Returns service.ErrDiscountNotFound if no live discount uses the code.
func (r *DiscountRepository) SoftDelete(ctx context.Context, code string) error {
	query := `UPDATE discounts SET deleted_at = now(), updated_at = now() WHERE code = $1 AND deleted_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("delete discount %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrDiscountNotFound
	}
	return nil
}

// IncrementUsage adds n to the usage counter of the discount with id and records
// the batch, both in one transaction.
// Returns service.ErrDiscountNotFound if no row has that id.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, id uuid.UUID, n int) error {
	if n <= 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // Safe: no-op if committed

	tag, err := tx.Exec(ctx,
		`UPDATE discounts SET usage_count = usage_count + $2, updated_at = now() WHERE id = $1`,
		id, n)
	if err != nil {
		return fmt.Errorf("increment usage for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrDiscountNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO discount_usage_batches (discount_id, count) VALUES ($1, $2)`,
		id, n)
	if err != nil {
		return fmt.Errorf("record usage batch for %s: %w", id, err)
	}

	return tx.Commit(ctx)
}
