package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dues-dev/dues/internal/config"
	"github.com/dues-dev/dues/internal/importer"
	"github.com/dues-dev/dues/internal/ledger"
	"github.com/dues-dev/dues/internal/logging"
	"github.com/dues-dev/dues/internal/model"
	"github.com/dues-dev/dues/internal/store"
	"github.com/dues-dev/dues/internal/telemetry"
)

// backend is what the commands need from a store.
type backend interface {
	ledger.Reader
	importer.Store
	FindMember(ctx context.Context, id uuid.UUID) (model.Member, error)
	FindMemberByUsername(ctx context.Context, username string) (model.Member, error)
	FindMembershipKinds(ctx context.Context) ([]model.MembershipKind, error)
	FindAllMembershipPeriods(ctx context.Context) ([]model.MembershipPeriod, error)
	FindPaymentInfos(ctx context.Context) ([]model.PaymentInfo, error)
}

// project is an opened project directory: config, logger and store.
type project struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	store    backend
	close    func() error
	shutdown telemetry.Shutdown
}

func openProject(cmd *cobra.Command) (*project, error) {
	dir, err := cmd.Flags().GetString("project")
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no %s in %s, run 'dues init' first", config.FileName, root)
	}
	if err != nil {
		return nil, err
	}

	p := &project{
		root:   root,
		cfg:    cfg,
		logger: logging.New(cmd.ErrOrStderr(), cfg.Logging),
	}

	p.shutdown, err = setupTelemetry(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	if p.store, p.close, err = openStore(cmd.Context(), cfg, root); err != nil {
		if serr := p.shutdown(cmd.Context()); serr != nil {
			p.logger.Warn("flushing telemetry", "err", serr)
		}
		return nil, err
	}
	return p, nil
}

// setupTelemetry is replaced in tests.
var setupTelemetry = telemetry.Setup

func openStore(ctx context.Context, cfg *config.Config, root string) (backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Driver {
	case "", config.DriverFiles:
		s, err := store.OpenFiles(cfg.StoreDir(root))
		if err != nil {
			return nil, nil, fmt.Errorf("opening store: %w", err)
		}
		return s, noop, nil
	case config.DriverPostgres:
		dsn, err := cfg.DatabaseURL()
		if err != nil {
			return nil, nil, err
		}
		s, err := store.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("opening store: %w", err)
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Close releases the store and flushes telemetry.
func (p *project) Close(ctx context.Context) error {
	err := p.close()
	if serr := p.shutdown(ctx); serr != nil {
		p.logger.Warn("flushing telemetry", "err", serr)
	}
	return err
}

func (p *project) member(ctx context.Context, username string) (model.Member, error) {
	m, err := p.store.FindMemberByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return model.Member{}, fmt.Errorf("no member with username %q", username)
	}
	return m, err
}

// withProject opens the project, runs fn and closes it again.
func withProject(cmd *cobra.Command, fn func(context.Context, *project) error) error {
	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	err = fn(ctx, p)
	if cerr := p.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

const dateFormat = "2006-01-02"

// dateFlag parses an optional YYYY-MM-DD flag, defaulting to today.
func dateFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(dateFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	return t, nil
}

// clock returns a ledger clock pinned to asOf.
func clock(asOf time.Time) func() time.Time {
	return func() time.Time { return asOf }
}

// ledgerAsOf returns a ledger pinned to today. An explicit --as-of date
// also leaves out payments made after it.
func (p *project) ledgerAsOf(today time.Time, asOf string) *ledger.Service {
	svc := ledger.NewService(p.store, clock(today))
	if asOf != "" {
		svc = svc.Until(today)
	}
	return svc
}
