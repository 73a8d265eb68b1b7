package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridoystarlord/discontented/codec"
)

// Gateway executes SQL against PostgreSQL through a connection pool.
type Gateway struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	PrintSQL bool
}

// Connect opens a pool for url and verifies it with a ping. An empty url
// falls back to DATABASE_URL.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*Gateway, error) {
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, errors.New("DATABASE_URL not set in environment")
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return NewGateway(pool, logger), nil
}

func NewGateway(pool *pgxpool.Pool, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{pool: pool, logger: logger}
}

func (g *Gateway) Pool() *pgxpool.Pool {
	return g.pool
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

// Close closes the connection pool (should be called on application shutdown)
func (g *Gateway) Close() {
	g.pool.Close()
}

// Exec runs one statement. Statements without arguments go through the
// simple protocol, so a single string may hold several statements.
func (g *Gateway) Exec(ctx context.Context, sql string, args ...any) error {
	if g.PrintSQL {
		g.logger.Info("exec", "sql", sql)
	}
	if _, err := g.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// ExecAll runs statements one at a time, stopping at the first failure.
func (g *Gateway) ExecAll(ctx context.Context, statements []string) error {
	for i, stmt := range statements {
		if err := g.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d of %d: %w", i+1, len(statements), err)
		}
	}
	return nil
}

// QueryRowByUniqueKey returns the row of table whose column equals key, or
// nil when there is none.
func (g *Gateway) QueryRowByUniqueKey(ctx context.Context, table, column, key string) (map[string]any, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1 LIMIT 1`, codec.QuoteIdent(table), codec.QuoteIdent(column))
	rows, err := g.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return row, nil
}

// QueryLinkTableTargets returns the items linked from owner in link order.
func (g *Gateway) QueryLinkTableTargets(ctx context.Context, table, owner string) ([]string, error) {
	query := fmt.Sprintf(`SELECT "item_cfid" FROM %s WHERE "owner_cfid" = $1 ORDER BY "order" NULLS LAST, "item_cfid"`,
		codec.QuoteIdent(table))
	rows, err := g.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return items, nil
}

// PruneLinks deletes the links of owner whose item is not in keep.
func (g *Gateway) PruneLinks(ctx context.Context, table, owner string, keep []string) error {
	if keep == nil {
		keep = []string{}
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE "owner_cfid" = $1 AND NOT ("item_cfid" = ANY($2))`, codec.QuoteIdent(table))
	tag, err := g.pool.Exec(ctx, query, owner, keep)
	if err != nil {
		return fmt.Errorf("prune %s: %w", table, err)
	}
	if n := tag.RowsAffected(); n > 0 {
		g.logger.Debug("pruned stale links", "table", table, "owner", owner, "rows", n)
	}
	return nil
}

// MarkDeleted flags the row for cfid as deleted.
func (g *Gateway) MarkDeleted(ctx context.Context, table, cfid string) error {
	query := fmt.Sprintf(`UPDATE %s SET "is_deleted" = TRUE, "is_published" = FALSE WHERE "cfid" = $1`, codec.QuoteIdent(table))
	if _, err := g.pool.Exec(ctx, query, cfid); err != nil {
		return fmt.Errorf("mark deleted in %s: %w", table, err)
	}
	return nil
}
