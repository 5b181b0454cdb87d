package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/daap14/billstore/internal/store"
)

// PostgresRepository implements Repository on any store.DBTX.
type PostgresRepository struct {
	db store.DBTX
}

// NewRepository creates a Repository running its queries on db.
func NewRepository(db store.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *PostgresRepository) WithTx(tx pgx.Tx) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

const couponColumns = `id, code, description, tenant_id, discount, expires_at,
	redemption_limit, recurring_value, reusable, created_at, updated_at`

// scanCoupon scans a row and decodes it. A decoding failure is reported as
// store.ErrDecoding, never as not found.
func scanCoupon(row pgx.Row) (*Coupon, error) {
	var c couponRow
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &c.TenantID, &c.Discount, &c.ExpiresAt,
		&c.RedemptionLimit, &c.RecurringValue, &c.Reusable, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("scanning coupon row: %w", err)
	}
	return c.toDomain()
}

// Create encodes and inserts a new coupon with a fresh UUIDv7 id.
func (r *PostgresRepository) Create(ctx context.Context, c CouponNew) (*Coupon, error) {
	row, err := c.toRow()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO coupon (id, code, description, tenant_id, discount, expires_at,
		                    redemption_limit, recurring_value, reusable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + couponColumns

	created, err := scanCoupon(r.db.QueryRow(ctx, query,
		row.ID, row.Code, row.Description, row.TenantID, row.Discount, row.ExpiresAt,
		row.RedemptionLimit, row.RecurringValue, row.Reusable,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("inserting coupon: %w", err)
	}
	return created, nil
}

// GetByID retrieves a tenant's coupon by id.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupon WHERE id = $1 AND tenant_id = $2`
	return scanCoupon(r.db.QueryRow(ctx, query, id, tenantID))
}

// GetByCode retrieves a tenant's coupon by its code.
func (r *PostgresRepository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupon WHERE tenant_id = $1 AND code = $2`
	return scanCoupon(r.db.QueryRow(ctx, query, tenantID, code))
}

// List retrieves a page of a tenant's coupons, newest first. One
// undecodable row fails the whole page.
func (r *PostgresRepository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) (*ListResult, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM coupon WHERE tenant_id = $1`, tenantID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("counting coupons: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	query := `
		SELECT ` + couponColumns + `
		FROM coupon
		WHERE tenant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, tenantID, filter.Limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	defer rows.Close()

	coupons := []Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating coupon rows: %w", err)
	}

	return &ListResult{
		Coupons: coupons,
		Total:   total,
		Page:    filter.Page,
		Limit:   filter.Limit,
	}, nil
}

// Update applies a partial update. The discount column is written only when
// the patch carries a discount, and then replaced as a whole.
func (r *PostgresRepository) Update(ctx context.Context, patch CouponPatch) (*Coupon, error) {
	row, err := patch.toRow()
	if err != nil {
		return nil, err
	}

	var setClauses []string
	var args []any
	argIdx := 1

	if row.Description != nil {
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *row.Description)
		argIdx++
	}
	if row.Discount != nil {
		setClauses = append(setClauses, fmt.Sprintf("discount = $%d", argIdx))
		args = append(args, row.Discount)
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, row.TenantID, row.ID)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, row.ID, row.TenantID)

	query := fmt.Sprintf(`
		UPDATE coupon
		SET %s
		WHERE id = $%d AND tenant_id = $%d
		RETURNING `+couponColumns,
		strings.Join(setClauses, ", "), argIdx, argIdx+1)

	return scanCoupon(r.db.QueryRow(ctx, query, args...))
}
