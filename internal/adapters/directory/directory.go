// Package directory is the SQL-backed rule directory. Each configured
// account is its own database holding the fax2email and forwarder tables.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bunotel"

	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/platform/config"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"

	tableFax     = "fax2email"
	tableForward = "forwarder"
)

// Directory implements ports.Directory over one bun.DB per account.
type Directory struct {
	accounts map[string]*bun.DB
	logger   *slog.Logger
}

// Open connects every configured account. Connections are lazy; use the
// health checkers to verify reachability.
func Open(dbs map[string]config.DatabaseConfig, logger *slog.Logger) (*Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Directory{
		accounts: make(map[string]*bun.DB, len(dbs)),
		logger:   logger.With(slog.String("component", "directory")),
	}

	for _, name := range slices.Sorted(maps.Keys(dbs)) {
		db, err := open(name, dbs[name])
		if err != nil {
			_ = d.Close()
			return nil, err
		}

		d.accounts[name] = db
	}

	return d, nil
}

// New wraps already opened databases. Tests use it with in-memory sqlite.
func New(accounts map[string]*bun.DB, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}

	return &Directory{
		accounts: maps.Clone(accounts),
		logger:   logger.With(slog.String("component", "directory")),
	}
}

func open(name string, cfg config.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening account %q: %w", name, err)
	}

	var db *bun.DB

	switch cfg.Driver {
	case driverSQLite:
		// One writer; sqlite serializes anyway and shared-cache memory
		// databases vanish when their last connection closes.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	case driverPostgres:
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		_ = sqldb.Close()
		return nil, fmt.Errorf("opening account %q: unsupported driver %q", name, cfg.Driver)
	}

	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName(name)))

	return db, nil
}

// FaxRule implements ports.Directory.
func (d *Directory) FaxRule(ctx context.Context, account, number string) (*ports.FaxRule, error) {
	db, err := d.account(account)
	if err != nil {
		return nil, err
	}

	record := &faxRuleRecord{}
	err = db.NewSelect().
		Model(record).
		Where("?TableAlias.number = ?", number).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, d.lookupError(ctx, account, tableFax, number, err)
	}

	return record.toPort(), nil
}

// ForwardRule implements ports.Directory.
func (d *Directory) ForwardRule(ctx context.Context, account, source string) (*ports.ForwardRule, error) {
	db, err := d.account(account)
	if err != nil {
		return nil, err
	}

	record := &forwardRuleRecord{}
	err = db.NewSelect().
		Model(record).
		Where("?TableAlias.source_number = ?", source).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, d.lookupError(ctx, account, tableForward, source, err)
	}

	return record.toPort(), nil
}

func (d *Directory) account(name string) (*bun.DB, error) {
	db, ok := d.accounts[name]
	if !ok {
		return nil, domain.NewUnavailableError("directory", fmt.Sprintf("account %q is not configured", name))
	}

	return db, nil
}

func (d *Directory) lookupError(ctx context.Context, account, table, key string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNoRuleError(table, key)
	}

	d.logger.WarnContext(ctx, "directory query failed",
		slog.String("account", account),
		slog.String("table", table),
		slog.String("error", err.Error()),
	)

	return fmt.Errorf("querying %s: %w", table, domain.NewUnavailableError("directory."+account, err.Error()))
}

// EnsureSchema creates the rule tables in every account if they are missing.
func (d *Directory) EnsureSchema(ctx context.Context) error {
	for _, name := range slices.Sorted(maps.Keys(d.accounts)) {
		db := d.accounts[name]

		for _, model := range []any{(*faxRuleRecord)(nil), (*forwardRuleRecord)(nil)} {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("creating schema in account %q: %w", name, err)
			}
		}
	}

	return nil
}

// SaveFaxRule inserts or replaces a fax rule.
func (d *Directory) SaveFaxRule(ctx context.Context, account string, rule ports.FaxRule) error {
	db, err := d.account(account)
	if err != nil {
		return err
	}

	record := &faxRuleRecord{Number: rule.Number, Email: rule.DeliveryAddress, Limit: nullInt(rule.Limit)}

	_, err = db.NewInsert().
		Model(record).
		On("CONFLICT (number) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set(`"limit" = EXCLUDED."limit"`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("saving %s rule %q: %w", tableFax, rule.Number, err)
	}

	return nil
}

// SaveForwardRule inserts or replaces a forwarding rule.
func (d *Directory) SaveForwardRule(ctx context.Context, account string, rule ports.ForwardRule) error {
	db, err := d.account(account)
	if err != nil {
		return err
	}

	record := &forwardRuleRecord{SourceNumber: rule.SourceNumber, ForwardTo: rule.ForwardTarget, Delay: nullInt(rule.Delay)}

	_, err = db.NewInsert().
		Model(record).
		On("CONFLICT (source_number) DO UPDATE").
		Set("forward_to = EXCLUDED.forward_to").
		Set("delay = EXCLUDED.delay").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("saving %s rule %q: %w", tableForward, rule.SourceNumber, err)
	}

	return nil
}

// Checkers returns one health checker per account, ordered by name.
func (d *Directory) Checkers() []ports.HealthChecker {
	names := slices.Sorted(maps.Keys(d.accounts))

	out := make([]ports.HealthChecker, 0, len(names))
	for _, name := range names {
		out = append(out, &accountChecker{name: name, db: d.accounts[name]})
	}

	return out
}

// Close closes every account.
func (d *Directory) Close() error {
	var errs []error
	for name, db := range d.accounts {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing account %q: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

type accountChecker struct {
	name string
	db   *bun.DB
}

func (c *accountChecker) Name() string { return "directory." + c.name }

func (c *accountChecker) Check(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

var _ ports.Directory = (*Directory)(nil)
