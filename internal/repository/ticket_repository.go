package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

// ErrStatusChanged is returned by ApplyChange when the stored status no
// longer matches the expected one.
var ErrStatusChanged = errors.New("ticket status changed concurrently")

// TicketChange is one atomic mutation of a ticket. Nil detail fields are
// left untouched.
type TicketChange struct {
	ExpectedStatus domain.TicketStatus
	Status         domain.TicketStatus
	Entry          domain.LogEntry
	CompletedAt    *time.Time

	CustomerName *string
	Note         *string
	Phone        *string
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ApplyChange(ctx context.Context, id string, change TicketChange) (*domain.Ticket, error)
	ListLive(ctx context.Context, line domain.ServiceLine) ([]domain.Ticket, error)
	ListScheduledBetween(ctx context.Context, from, to time.Time, line *domain.ServiceLine) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, customer_name, phone, service_line, scheduled_date, scheduled_time,
               note, status, completed_at, log, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, customer_name, phone, service_line, scheduled_date, scheduled_time, note, status, completed_at, log)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb)
        RETURNING created_at, updated_at`
	logJSON, err := json.Marshal(ticket.Log)
	if err != nil {
		return fmt.Errorf("encode ticket log: %w", err)
	}
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.CustomerName,
		ticket.Phone,
		string(ticket.ServiceLine),
		ticket.ScheduledDate,
		ticket.ScheduledTime,
		ticket.Note,
		string(ticket.Status),
		ticket.CompletedAt,
		string(logJSON),
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// ApplyChange updates status and details only while the stored status is
// still change.ExpectedStatus. The log entry is appended by the database
// so concurrent writers never overwrite each other's entries.
func (r *ticketRepository) ApplyChange(ctx context.Context, id string, change TicketChange) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET
            status=$2,
            log = log || $3::jsonb,
            completed_at = COALESCE($4, completed_at),
            customer_name = COALESCE($5, customer_name),
            note = COALESCE($6, note),
            phone = COALESCE($7, phone),
            updated_at = NOW()
        WHERE id=$1 AND status = ANY($8)
        RETURNING ` + ticketColumns
	entry, err := json.Marshal([]domain.LogEntry{change.Entry})
	if err != nil {
		return nil, fmt.Errorf("encode log entry: %w", err)
	}
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query,
		id,
		string(change.Status),
		string(entry),
		change.CompletedAt,
		change.CustomerName,
		change.Note,
		change.Phone,
		storedLiterals(change.ExpectedStatus),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatusChanged
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListLive(ctx context.Context, line domain.ServiceLine) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
             FROM tickets
             WHERE service_line=$1 AND status = ANY($2)
             ORDER BY scheduled_date, scheduled_time, created_at`
	live := append(storedLiterals(domain.StatusWaiting), storedLiterals(domain.StatusActive)...)
	return r.list(ctx, query, string(line), live)
}

// ListScheduledBetween returns tickets scheduled in [from, to), optionally
// restricted to one line.
func (r *ticketRepository) ListScheduledBetween(ctx context.Context, from, to time.Time, line *domain.ServiceLine) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
             FROM tickets
             WHERE scheduled_date >= $1 AND scheduled_date < $2`
	args := []any{from, to}
	if line != nil {
		args = append(args, string(*line))
		query += fmt.Sprintf(" AND service_line=$%d", len(args))
	}
	query += " ORDER BY scheduled_date, scheduled_time, created_at"
	return r.list(ctx, query, args...)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

// storedLiterals lists every column value that means status. Rows written
// before the ACTIVE rename still hold the legacy literal.
func storedLiterals(status domain.TicketStatus) []string {
	if status == domain.StatusActive {
		return []string{string(domain.StatusActive), "IN_SERVICE"}
	}
	return []string{string(status)}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		line   string
		status string
		logRaw []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.CustomerName,
		&ticket.Phone,
		&line,
		&ticket.ScheduledDate,
		&ticket.ScheduledTime,
		&ticket.Note,
		&status,
		&ticket.CompletedAt,
		&logRaw,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if ticket.ServiceLine, err = domain.ParseServiceLine(line); err != nil {
		return nil, err
	}
	if ticket.Status, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}
	if len(logRaw) > 0 {
		if err := json.Unmarshal(logRaw, &ticket.Log); err != nil {
			return nil, fmt.Errorf("decode ticket log: %w", err)
		}
	}
	return &ticket, nil
}
