package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/petcare-queue/internal/auth"
	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/repository"
	"github.com/spec-kit/petcare-queue/pkg/util"
)

// LoginResult is a successful staff login.
type LoginResult struct {
	Account   *domain.StaffAccount
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates staff login.
type AuthService struct {
	staff    repository.StaffRepository
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(staff repository.StaffRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{staff: staff, tokenMgr: tokens, logger: logger}
}

// Login verifies credentials and issues a token. Unknown users, inactive
// accounts and wrong passwords all report the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	invalid := util.NewUnauthenticated("invalid credentials")

	account, err := s.staff.GetByUsername(ctx, username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, invalid
	}
	if err != nil {
		return nil, util.NewPersistenceFailure(err, nil)
	}
	if !account.Active {
		s.logger.Info("login for inactive account", zap.String("username", account.Username))
		return nil, invalid
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, invalid
	}

	token, exp, err := s.tokenMgr.GenerateToken(account.Actor())
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	s.logger.Info("staff login", zap.String("username", account.Username), zap.String("role", string(account.Role)))
	return &LoginResult{Account: account, Token: token, ExpiresAt: exp}, nil
}
