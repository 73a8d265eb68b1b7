package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridoystarlord/discontented/generator"
)

// Migration is one file of the migrations directory.
type Migration struct {
	Version string
	File    string
}

// Runner applies migration files in filename order and records each applied
// version in the history table.
type Runner struct {
	pool   *pgxpool.Pool
	dir    string
	logger *slog.Logger
}

func New(pool *pgxpool.Pool, dir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{pool: pool, dir: dir, logger: logger}
}

func ensureMigrationsTable(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s ("version" VARCHAR(256) UNIQUE)`, generator.HistoryTable))
	if err != nil {
		return fmt.Errorf("failed to create %s table: %w", generator.HistoryTable, err)
	}
	return nil
}

func (r *Runner) applied(ctx context.Context) (map[string]bool, error) {
	applied := map[string]bool{}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := ensureMigrationsTable(ctx, tx); err != nil {
			return err
		}
		rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT "version" FROM %s`, generator.HistoryTable))
		if err != nil {
			return fmt.Errorf("query applied migrations: %w", err)
		}
		versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("scan version: %w", err)
		}
		for _, v := range versions {
			applied[v] = true
		}
		return nil
	})
	return applied, err
}

// MigrationFiles lists the .sql files of dir in filename order. A missing
// directory holds no migrations.
func MigrationFiles(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migrations = append(migrations, Migration{
			Version: strings.TrimSuffix(e.Name(), ".sql"),
			File:    filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Pending returns the migrations whose version is not in applied.
func Pending(all []Migration, applied map[string]bool) []Migration {
	var pending []Migration
	for _, m := range all {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Status returns the applied and pending migrations.
func (r *Runner) Status(ctx context.Context) (applied, pending []Migration, err error) {
	versions, err := r.applied(ctx)
	if err != nil {
		return nil, nil, err
	}
	all, err := MigrationFiles(r.dir)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range all {
		if versions[m.Version] {
			applied = append(applied, m)
		}
	}
	return applied, Pending(all, versions), nil
}

// Apply runs every pending migration, each in its own transaction together
// with its history row, and returns the versions applied. It stops at the
// first failure.
func (r *Runner) Apply(ctx context.Context) ([]string, error) {
	_, pending, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, m := range pending {
		start := time.Now()
		if err := r.applyMigration(ctx, m); err != nil {
			return done, err
		}
		r.logger.Info("migration applied", "version", m.Version, "elapsed", time.Since(start))
		done = append(done, m.Version)
	}
	return done, nil
}

func (r *Runner) applyMigration(ctx context.Context, m Migration) error {
	content, err := os.ReadFile(m.File)
	if err != nil {
		return fmt.Errorf("read file %s: %w", m.File, err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if strings.TrimSpace(string(content)) != "" {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return fmt.Errorf("executing migration %s: %w", m.Version, err)
			}
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`INSERT INTO %s ("version") VALUES ($1)`, generator.HistoryTable), m.Version); err != nil {
			return fmt.Errorf("recording migration %s: %w", m.Version, err)
		}
		return nil
	})
}

// Preview returns the SQL of every pending migration, keyed by version.
func (r *Runner) Preview(ctx context.Context) ([]Migration, map[string]string, error) {
	_, pending, err := r.Status(ctx)
	if err != nil {
		return nil, nil, err
	}
	sql := make(map[string]string, len(pending))
	for _, m := range pending {
		content, err := os.ReadFile(m.File)
		if err != nil {
			return nil, nil, fmt.Errorf("read file %s: %w", m.File, err)
		}
		sql[m.Version] = string(content)
	}
	return pending, sql, nil
}
