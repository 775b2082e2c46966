// staffctl manages staff credentials for the queue service: it hashes
// passwords, upserts staff accounts and issues bearer tokens for scripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/petcare-queue/internal/auth"
	"github.com/spec-kit/petcare-queue/internal/config"
	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/persistence"
	"github.com/spec-kit/petcare-queue/internal/repository"
)

const usage = `Usage: staffctl <command> [flags] [args]

Commands:
  hash-password [--cost N] <password>
  token [--subject ID] [--ttl MINUTES] <role> [line]
  add-staff [--cost N] [--line LINE] [--inactive] <username> <password> <role>
`

// openStaffFunc connects to the staff store; the returned func releases it.
type openStaffFunc func(ctx context.Context, cfg *config.Config) (repository.StaffRepository, func(), error)

type cli struct {
	out       io.Writer
	cfg       *config.Config
	openStaff openStaffFunc
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	c := &cli{out: os.Stdout, cfg: cfg, openStaff: openPostgresStaff}
	if err := c.run(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return pflag.ErrHelp
	}
	switch args[0] {
	case "hash-password":
		return c.hashPassword(args[1:])
	case "token":
		return c.token(args[1:])
	case "add-staff":
		return c.addStaff(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return pflag.ErrHelp
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func (c *cli) hashPassword(args []string) error {
	cost := c.cfg.Auth.BcryptCost
	flags := pflag.NewFlagSet("hash-password", pflag.ContinueOnError)
	flags.SetOutput(c.out)
	flags.IntVar(&cost, "cost", cost, "bcrypt cost")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("hash-password takes exactly one password")
	}
	hash, err := auth.HashPassword(flags.Arg(0), cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, hash)
	return nil
}

func (c *cli) token(args []string) error {
	var subject string
	ttl := c.cfg.Auth.AccessTokenTTLMinutes
	flags := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flags.SetOutput(c.out)
	flags.StringVar(&subject, "subject", "staffctl", "token subject (staff id)")
	flags.IntVar(&ttl, "ttl", ttl, "token lifetime in minutes")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() < 1 || flags.NArg() > 2 {
		return errors.New("token takes a role and an optional service line")
	}
	actor, err := staffActor(subject, flags.Arg(0), flags.Arg(1))
	if err != nil {
		return err
	}
	token, expiresAt, err := auth.NewTokenManager(c.cfg.Auth.JWTSecret, ttl).GenerateToken(actor)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, token)
	fmt.Fprintf(c.out, "# %s, expires %s\n", actor, expiresAt.Format("2006-01-02 15:04 MST"))
	return nil
}

func (c *cli) addStaff(ctx context.Context, args []string) error {
	cost := c.cfg.Auth.BcryptCost
	var line string
	var inactive bool
	flags := pflag.NewFlagSet("add-staff", pflag.ContinueOnError)
	flags.SetOutput(c.out)
	flags.IntVar(&cost, "cost", cost, "bcrypt cost")
	flags.StringVar(&line, "line", "", "service line (operators only)")
	flags.BoolVar(&inactive, "inactive", false, "create the account disabled")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 3 {
		return errors.New("add-staff takes a username, a password and a role")
	}
	username := strings.TrimSpace(flags.Arg(0))
	if username == "" {
		return errors.New("username is required")
	}
	actor, err := staffActor("", flags.Arg(2), line)
	if err != nil {
		return err
	}
	if actor.Role == domain.RoleOperator && actor.Line == "" {
		return errors.New("operators need --line")
	}
	hash, err := auth.HashPassword(flags.Arg(1), cost)
	if err != nil {
		return err
	}

	staff, release, err := c.openStaff(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer release()

	account := &domain.StaffAccount{
		Username:     username,
		PasswordHash: hash,
		Role:         actor.Role,
		Line:         actor.Line,
		Active:       !inactive,
	}
	if err := staff.Create(ctx, account); err != nil {
		return fmt.Errorf("save staff account: %w", err)
	}
	fmt.Fprintf(c.out, "saved %s (%s) id=%s\n", account.Username, account.Actor(), account.ID)
	return nil
}

func staffActor(id, rawRole, rawLine string) (domain.Actor, error) {
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.Actor{}, err
	}
	if role == domain.RoleRequester {
		return domain.Actor{}, errors.New("requesters do not get credentials")
	}
	actor := domain.Actor{ID: id, Role: role}
	if rawLine != "" {
		if actor.Line, err = domain.ParseServiceLine(rawLine); err != nil {
			return domain.Actor{}, err
		}
	}
	return actor, nil
}

func openPostgresStaff(ctx context.Context, cfg *config.Config) (repository.StaffRepository, func(), error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, err
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.DefaultMigrationsDir, logger); err != nil {
			pg.Close()
			return nil, nil, err
		}
	}
	return repository.NewStaffRepository(pg.Pool), func() {
		pg.Close()
		_ = logger.Sync()
	}, nil
}
