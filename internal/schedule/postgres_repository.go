package schedule

import (
	"context"
	"errors"
	"fmt"

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

// scheduleColumns is the ordered column list for the s alias.
const scheduleColumns = `s.id, s.billing_period::text, s.plan_version_id, s.ramps`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s scheduleRow
	err := row.Scan(&s.ID, &s.BillingPeriod, &s.PlanVersionID, &s.Ramps)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scanning schedule row: %w", err)
	}
	return s.toDomain()
}

// Create inserts a schedule for a plan version owned by tenantID.
func (r *PostgresRepository) Create(ctx context.Context, tenantID uuid.UUID, n ScheduleNew) (*Schedule, error) {
	row, err := n.toRow()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO schedule AS s (id, billing_period, plan_version_id, ramps)
		SELECT $1::uuid, $2::billing_period_enum, pv.id, $4::jsonb
		FROM plan_version pv
		WHERE pv.id = $3 AND pv.tenant_id = $5
		RETURNING ` + scheduleColumns

	created, err := scanSchedule(r.db.QueryRow(ctx, query,
		row.ID, row.BillingPeriod, row.PlanVersionID, row.Ramps, tenantID,
	))
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, ErrPlanVersionNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return nil, ErrDuplicatePeriod
			case "23503":
				return nil, ErrPlanVersionNotFound
			}
		}
		return nil, fmt.Errorf("inserting schedule: %w", err)
	}
	return created, nil
}

// GetByID retrieves a schedule whose plan version belongs to tenantID.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedule s
		JOIN plan_version pv ON pv.id = s.plan_version_id
		WHERE s.id = $1 AND pv.tenant_id = $2`

	return scanSchedule(r.db.QueryRow(ctx, query, id, tenantID))
}

// ListByPlanVersion retrieves all schedules of a plan version, ordered by
// billing period.
func (r *PostgresRepository) ListByPlanVersion(ctx context.Context, tenantID, planVersionID uuid.UUID) ([]Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedule s
		JOIN plan_version pv ON pv.id = s.plan_version_id
		WHERE s.plan_version_id = $1 AND pv.tenant_id = $2
		ORDER BY s.billing_period`

	rows, err := r.db.Query(ctx, query, planVersionID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	schedules := []Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedule rows: %w", err)
	}
	return schedules, nil
}

// Update replaces the ramps document when the patch carries one.
func (r *PostgresRepository) Update(ctx context.Context, tenantID uuid.UUID, patch SchedulePatch) (*Schedule, error) {
	row, err := patch.toRow()
	if err != nil {
		return nil, err
	}
	if row.Ramps == nil {
		return r.GetByID(ctx, tenantID, row.ID)
	}

	query := `
		UPDATE schedule s
		SET ramps = $1::jsonb
		FROM plan_version pv
		WHERE s.id = $2 AND pv.id = s.plan_version_id AND pv.tenant_id = $3
		RETURNING ` + scheduleColumns

	return scanSchedule(r.db.QueryRow(ctx, query, row.Ramps, row.ID, tenantID))
}
