package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

// ActivityRepository stores the cross-ticket activity feed.
type ActivityRepository interface {
	Record(ctx context.Context, record *domain.ActivityRecord) error
	List(ctx context.Context, limit int) ([]domain.ActivityRecord, error)
}

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository builds repository.
func NewActivityRepository(pool *pgxpool.Pool) ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) Record(ctx context.Context, record *domain.ActivityRecord) error {
	const query = `
        INSERT INTO activity_log (ticket_id, customer_name, service_line, message)
        VALUES ($1,$2,$3,$4)
        RETURNING id::text, created_at`
	return r.pool.QueryRow(ctx, query,
		record.TicketID,
		record.CustomerName,
		string(record.ServiceLine),
		record.Message,
	).Scan(&record.ID, &record.CreatedAt)
}

// List returns the newest records first.
func (r *activityRepository) List(ctx context.Context, limit int) ([]domain.ActivityRecord, error) {
	const query = `
        SELECT id::text, ticket_id, customer_name, service_line, message, created_at
        FROM activity_log ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActivityRecord
	for rows.Next() {
		var (
			record domain.ActivityRecord
			line   string
		)
		if err := rows.Scan(
			&record.ID,
			&record.TicketID,
			&record.CustomerName,
			&line,
			&record.Message,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		record.ServiceLine = domain.ServiceLine(line)
		result = append(result, record)
	}
	return result, rows.Err()
}
