package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/spec-kit/petcare-queue/internal/auth"
	"github.com/spec-kit/petcare-queue/internal/config"
	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/repository"
)

type memStaff struct {
	saved []domain.StaffAccount
}

func (m *memStaff) Create(_ context.Context, a *domain.StaffAccount) error {
	a.ID = "generated"
	m.saved = append(m.saved, *a)
	return nil
}

func (m *memStaff) GetByUsername(context.Context, string) (*domain.StaffAccount, error) {
	return nil, errors.New("not used")
}

func newCLI(store *memStaff) (*cli, *bytes.Buffer) {
	var out bytes.Buffer
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "cli-secret", AccessTokenTTLMinutes: 30, BcryptCost: 4}}
	return &cli{
		out: &out,
		cfg: cfg,
		openStaff: func(context.Context, *config.Config) (repository.StaffRepository, func(), error) {
			return store, func() {}, nil
		},
	}, &out
}

func TestHashPassword(t *testing.T) {
	c, out := newCLI(nil)
	if err := c.run(context.Background(), []string{"hash-password", "--cost", "4", "correct horse"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	hash := strings.TrimSpace(out.String())
	if err := auth.ComparePassword(hash, "correct horse"); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}

func TestTokenCommand(t *testing.T) {
	c, out := newCLI(nil)
	if err := c.run(context.Background(), []string{"token", "--subject", "kiosk", "operator", "clinic"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	token := strings.SplitN(out.String(), "\n", 2)[0]
	claims, err := auth.NewTokenManager("cli-secret", 30).ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Actor() != (domain.Actor{ID: "kiosk", Role: domain.RoleOperator, Line: domain.LineClinic}) {
		t.Fatalf("claims %+v", claims.Actor())
	}

	for _, args := range [][]string{
		{"token", "requester"},
		{"token", "operator"},
		{"token", "janitor"},
		{"token", "admin", "clinic", "extra"},
	} {
		if err := c.run(context.Background(), args); err == nil {
			t.Fatalf("%v accepted", args)
		}
	}
}

func TestAddStaff(t *testing.T) {
	store := &memStaff{}
	c, out := newCLI(store)
	err := c.run(context.Background(), []string{"add-staff", "--cost", "4", "--line", "grooming", "Rina", "s3cret-pass", "operator"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d", len(store.saved))
	}
	got := store.saved[0]
	if got.Role != domain.RoleOperator || got.Line != domain.LineGrooming || !got.Active {
		t.Fatalf("account %+v", got)
	}
	if err := auth.ComparePassword(got.PasswordHash, "s3cret-pass"); err != nil {
		t.Fatalf("stored hash: %v", err)
	}
	if !strings.Contains(out.String(), "OPERATOR(GROOMING)") {
		t.Fatalf("output %q", out.String())
	}

	if err := c.run(context.Background(), []string{"add-staff", "--cost", "4", "Budi", "s3cret-pass", "operator"}); err == nil {
		t.Fatalf("operator without line accepted")
	}
	if len(store.saved) != 1 {
		t.Fatalf("invalid account saved")
	}
}

func TestUsage(t *testing.T) {
	c, out := newCLI(nil)
	if err := c.run(context.Background(), nil); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(out.String(), "hash-password") {
		t.Fatalf("usage %q", out.String())
	}
	if err := c.run(context.Background(), []string{"rotate-keys"}); err == nil {
		t.Fatalf("unknown command accepted")
	}
}
