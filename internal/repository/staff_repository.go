package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

// StaffRepository handles persistence for staff logins.
type StaffRepository interface {
	Create(ctx context.Context, account *domain.StaffAccount) error
	GetByUsername(ctx context.Context, username string) (*domain.StaffAccount, error)
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

func (r *staffRepository) Create(ctx context.Context, account *domain.StaffAccount) error {
	const query = `
        INSERT INTO staff_accounts (username, password_hash, role, service_line, active_flag)
        VALUES ($1,$2,$3,NULLIF($4,''),$5)
        ON CONFLICT (username) DO UPDATE
            SET password_hash=EXCLUDED.password_hash, role=EXCLUDED.role,
                service_line=EXCLUDED.service_line, active_flag=EXCLUDED.active_flag
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		strings.ToLower(strings.TrimSpace(account.Username)),
		account.PasswordHash,
		string(account.Role),
		string(account.Line),
		account.Active,
	).Scan(&account.ID, &account.CreatedAt)
}

func (r *staffRepository) GetByUsername(ctx context.Context, username string) (*domain.StaffAccount, error) {
	const query = `
        SELECT id, username, password_hash, role, COALESCE(service_line, ''), active_flag, created_at
        FROM staff_accounts WHERE username=$1`
	var (
		account domain.StaffAccount
		role    string
		line    string
	)
	if err := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(username))).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&role,
		&line,
		&account.Active,
		&account.CreatedAt,
	); err != nil {
		return nil, err
	}
	account.Role = domain.Role(role)
	account.Line = domain.ServiceLine(line)
	return &account, nil
}
