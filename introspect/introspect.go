package introspect

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ridoystarlord/discontented/generator"
)

type ExistingTable struct {
	TableName string
	Columns   []ExistingColumn
	Indexes   []ExistingIndex
}

type ExistingColumn struct {
	ColumnName    string
	DataType      string
	IsNullable    bool
	ColumnDefault *string
}

type ExistingIndex struct {
	IndexName string
	IsUnique  bool
}

// IntrospectDatabase reads the tables of the public schema.
func IntrospectDatabase(ctx context.Context, pool *pgxpool.Pool) ([]ExistingTable, error) {
	tablesQuery := `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_type='BASE TABLE'
	ORDER BY table_name;
	`

	rows, err := pool.Query(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	defer rows.Close()

	var tableNames []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		tableNames = append(tableNames, tableName)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating table rows: %w", rows.Err())
	}

	var tables []ExistingTable
	for _, tableName := range tableNames {
		columns, err := getColumns(ctx, pool, tableName)
		if err != nil {
			return nil, fmt.Errorf("getting columns for table %s: %w", tableName, err)
		}

		indexes, err := getIndexes(ctx, pool, tableName)
		if err != nil {
			return nil, fmt.Errorf("getting indexes for table %s: %w", tableName, err)
		}

		tables = append(tables, ExistingTable{
			TableName: tableName,
			Columns:   columns,
			Indexes:   indexes,
		})
	}

	return tables, nil
}

func getColumns(ctx context.Context, pool *pgxpool.Pool, tableName string) ([]ExistingColumn, error) {
	columnsQuery := `
	SELECT column_name, data_type, (is_nullable = 'YES'), column_default
	FROM information_schema.columns
	WHERE table_schema = 'public' AND table_name = $1
	ORDER BY ordinal_position;
	`

	rows, err := pool.Query(ctx, columnsQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer rows.Close()

	var columns []ExistingColumn
	for rows.Next() {
		var col ExistingColumn
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsNullable, &col.ColumnDefault); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		columns = append(columns, col)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating column rows: %w", rows.Err())
	}

	return columns, nil
}

func getIndexes(ctx context.Context, pool *pgxpool.Pool, tableName string) ([]ExistingIndex, error) {
	indexesQuery := `
	SELECT c.relname, idx.indisunique
	FROM pg_index idx
	JOIN pg_class c ON c.oid = idx.indexrelid
	JOIN pg_class t ON t.oid = idx.indrelid
	JOIN pg_namespace n ON n.oid = t.relnamespace
	WHERE n.nspname = 'public' AND t.relname = $1
	ORDER BY c.relname;
	`

	rows, err := pool.Query(ctx, indexesQuery, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %w", err)
	}
	defer rows.Close()

	var indexes []ExistingIndex
	for rows.Next() {
		var idx ExistingIndex
		if err := rows.Scan(&idx.IndexName, &idx.IsUnique); err != nil {
			return nil, fmt.Errorf("scanning index: %w", err)
		}
		indexes = append(indexes, idx)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating index rows: %w", rows.Err())
	}

	return indexes, nil
}

// DriftKind classifies a mismatch between the expected and live schema.
type DriftKind string

const (
	MissingTable  DriftKind = "missing_table"
	MissingColumn DriftKind = "missing_column"
	ExtraColumn   DriftKind = "extra_column"
	MissingIndex  DriftKind = "missing_index"
)

type Drift struct {
	Kind   DriftKind
	Table  string
	Column string
}

func (d Drift) String() string {
	if d.Column == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Table)
	}
	return fmt.Sprintf("%s: %s.%s", d.Kind, d.Table, d.Column)
}

// Compare reports where existing differs from the expected table shapes.
// Tables not in expected are ignored. Link tables are expected to carry the
// unique (owner_cfid, item_cfid) index.
func Compare(expected []generator.TableShape, existing []ExistingTable) []Drift {
	byName := make(map[string]ExistingTable, len(existing))
	for _, t := range existing {
		byName[t.TableName] = t
	}

	var drifts []Drift
	for _, shape := range expected {
		table, ok := byName[shape.Name]
		if !ok {
			drifts = append(drifts, Drift{Kind: MissingTable, Table: shape.Name})
			continue
		}

		live := map[string]bool{}
		for _, c := range table.Columns {
			live[c.ColumnName] = true
		}
		want := map[string]bool{}
		for _, c := range shape.Columns {
			want[c] = true
			if !live[c] {
				drifts = append(drifts, Drift{Kind: MissingColumn, Table: shape.Name, Column: c})
			}
		}
		var extra []string
		for c := range live {
			if !want[c] {
				extra = append(extra, c)
			}
		}
		sort.Strings(extra)
		for _, c := range extra {
			drifts = append(drifts, Drift{Kind: ExtraColumn, Table: shape.Name, Column: c})
		}

		if isLinkTable(shape) && !hasUniqueIndex(table, shape.Name+"_owner_item_idx") {
			drifts = append(drifts, Drift{Kind: MissingIndex, Table: shape.Name, Column: shape.Name + "_owner_item_idx"})
		}
	}
	return drifts
}

func isLinkTable(shape generator.TableShape) bool {
	return len(shape.Columns) == 3 && shape.Columns[0] == "owner_cfid"
}

func hasUniqueIndex(table ExistingTable, name string) bool {
	for _, idx := range table.Indexes {
		if idx.IndexName == name && idx.IsUnique {
			return true
		}
	}
	return false
}
