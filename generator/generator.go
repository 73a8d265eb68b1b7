package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/diff"
	"github.com/ridoystarlord/discontented/schema"
)

// HistoryTable records applied migration versions.
const HistoryTable = "dcf_migrations"

// UnsupportedFieldTypeError is returned for a field type with no column mapping.
type UnsupportedFieldTypeError struct {
	ContentType string
	Field       string
	Type        string
}

func (e *UnsupportedFieldTypeError) Error() string {
	return fmt.Sprintf("field '%s' of type '%s' has unsupported type '%s'", e.Field, e.ContentType, e.Type)
}

var simpleTypes = map[schema.FieldType]string{
	schema.Boolean:  "BOOLEAN",
	schema.Integer:  "BIGINT",
	schema.Number:   "DOUBLE PRECISION",
	schema.Date:     "TIMESTAMPTZ",
	schema.Symbol:   "VARCHAR(256)",
	schema.Text:     "TEXT",
	schema.RichText: "TEXT",
	schema.Location: "JSONB",
	schema.Object:   "JSONB",
}

// Column is the SQL column backing a field. A field stored in a link table
// has no column.
type Column struct {
	Name      string
	Type      string
	LinkTable string
}

// Generator renders diff operations as PostgreSQL DDL.
type Generator struct {
	Naming     codec.Naming
	Serializer codec.Serializer
}

func New(naming codec.Naming) Generator {
	return Generator{Naming: naming, Serializer: codec.Serializer{DefaultLocale: naming.Locale()}}
}

// ColumnFor maps a field to its column.
func (g Generator) ColumnFor(ct schema.ContentType, f schema.Field) (Column, error) {
	name := g.Naming.ColumnName(f.ID)
	elem, linkType, isArray := f.ElementType()

	if elem == schema.Link {
		if isArray {
			return Column{LinkTable: g.Naming.LinkTableName(ct.ID(), f.ID)}, nil
		}
		switch linkType {
		case schema.EntryLink:
			return Column{Name: name + "_cfid", Type: "VARCHAR(64)"}, nil
		case schema.AssetLink:
			return Column{Name: name + "_cfurl", Type: "VARCHAR(1024)"}, nil
		}
		return Column{}, &UnsupportedFieldTypeError{ContentType: ct.ID(), Field: f.ID, Type: "Link<" + string(linkType) + ">"}
	}

	if f.Type == schema.Array && f.Items == nil {
		return Column{}, &UnsupportedFieldTypeError{ContentType: ct.ID(), Field: f.ID, Type: string(f.Type)}
	}

	sqlType, ok := simpleTypes[elem]
	if !ok {
		return Column{}, &UnsupportedFieldTypeError{ContentType: ct.ID(), Field: f.ID, Type: string(elem)}
	}
	if isArray {
		sqlType += "[]"
	}
	return Column{Name: name, Type: sqlType}, nil
}

// GenerateSQL converts a list of Operations into SQL statements. Comment
// banners are emitted as separate entries so Render can lay them out.
func (g Generator) GenerateSQL(ops []diff.Operation) ([]string, error) {
	var sqlStatements []string

	for _, op := range ops {
		switch op.Type {
		case diff.CreateHistoryTable:
			sqlStatements = append(sqlStatements, g.historyTable())

		case diff.CreateTable:
			stmts, err := g.generateCreateTable(op.ContentType)
			if err != nil {
				return nil, fmt.Errorf("generate CREATE TABLE: %w", err)
			}
			sqlStatements = append(sqlStatements, banner("NEW CONTENT TYPE", op.ContentType))
			sqlStatements = append(sqlStatements, stmts...)

		case diff.CreateLinkTable:
			sqlStatements = append(sqlStatements, banner("MODIFIED CONTENT TYPE", op.ContentType))
			sqlStatements = append(sqlStatements, g.generateLinkTable(op.ContentType, *op.Field)...)

		case diff.AddColumns:
			stmt, err := g.generateAddColumns(op.ContentType, op.Fields)
			if err != nil {
				return nil, fmt.Errorf("generate ALTER TABLE: %w", err)
			}
			sqlStatements = append(sqlStatements, banner("MODIFIED CONTENT TYPE", op.ContentType), stmt)

		case diff.AddLinkOrder:
			table := g.Naming.LinkTableName(op.ContentType.ID(), op.Field.ID)
			sqlStatements = append(sqlStatements, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS "order" INTEGER;`,
				codec.QuoteIdent(table)))

		case diff.CreateLinkUniqueIndex:
			table := g.Naming.LinkTableName(op.ContentType.ID(), op.Field.ID)
			sqlStatements = append(sqlStatements, linkIndex(table))

		case diff.WidenColumn:
			col, err := g.ColumnFor(op.ContentType, *op.Field)
			if err != nil {
				return nil, fmt.Errorf("generate ALTER COLUMN: %w", err)
			}
			sqlStatements = append(sqlStatements, banner("MODIFIED CONTENT TYPE", op.ContentType),
				fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;",
					codec.QuoteIdent(g.Naming.TableName(op.ContentType.ID())), codec.QuoteIdent(col.Name), col.Type))

		default:
			return nil, fmt.Errorf("unsupported operation: %s", op.Type)
		}
	}

	return sqlStatements, nil
}

// Render joins statements into the text of one migration.
func Render(statements []string) string {
	if len(statements) == 0 {
		return ""
	}
	return strings.Join(statements, "\n") + "\n"
}

func (g Generator) historyTable() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    \"version\" VARCHAR(256) UNIQUE\n);", HistoryTable)
}

func banner(kind string, ct schema.ContentType) string {
	return "\n-- *************************************************************\n" +
		"-- *\n" +
		fmt.Sprintf("-- * %s: %s [%s]\n", kind, ct.Name, ct.ID()) +
		"-- *\n" +
		"-- **\n"
}

func (g Generator) systemColumns() []string {
	no := g.Serializer.Literal(codec.Bool(false))
	return []string{
		`"id" BIGSERIAL PRIMARY KEY`,
		`"cfid" VARCHAR(64) UNIQUE`,
		`"environment_cfid" VARCHAR(64)`,
		`"created_at" TIMESTAMPTZ`,
		`"updated_at" TIMESTAMPTZ`,
		`"published_at" TIMESTAMPTZ`,
		`"first_published_at" TIMESTAMPTZ`,
		`"is_published" BOOLEAN NOT NULL DEFAULT ` + no,
		`"is_archived" BOOLEAN NOT NULL DEFAULT ` + no,
		`"is_deleted" BOOLEAN NOT NULL DEFAULT ` + no,
		`"published_version" INTEGER`,
	}
}

func (g Generator) generateCreateTable(ct schema.ContentType) ([]string, error) {
	tableName := g.Naming.TableName(ct.ID())
	columnDefs := g.systemColumns()
	var linkTables []string

	for _, f := range ct.Fields {
		col, err := g.ColumnFor(ct, f)
		if err != nil {
			return nil, err
		}
		if col.LinkTable != "" {
			linkTables = append(linkTables, g.generateLinkTable(ct, f)...)
			continue
		}
		columnDefs = append(columnDefs, fmt.Sprintf("%s %s", codec.QuoteIdent(col.Name), col.Type))
	}
	columnDefs = append(columnDefs, `"raw" JSONB`)

	stmt := fmt.Sprintf("CREATE TABLE %s (\n    %s\n);", codec.QuoteIdent(tableName), strings.Join(columnDefs, ",\n    "))
	return append([]string{stmt}, linkTables...), nil
}

func (g Generator) generateLinkTable(ct schema.ContentType, f schema.Field) []string {
	table := g.Naming.LinkTableName(ct.ID(), f.ID)
	create := fmt.Sprintf("CREATE TABLE %s (\n    \"owner_cfid\" VARCHAR(64),\n    \"item_cfid\" VARCHAR(64),\n    \"order\" INTEGER\n);",
		codec.QuoteIdent(table))
	return []string{create, linkIndex(table)}
}

func linkIndex(table string) string {
	return fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ("owner_cfid", "item_cfid");`,
		codec.QuoteIdent(table+"_owner_item_idx"), codec.QuoteIdent(table))
}

func (g Generator) generateAddColumns(ct schema.ContentType, fields []schema.Field) (string, error) {
	var adds []string
	for _, f := range fields {
		col, err := g.ColumnFor(ct, f)
		if err != nil {
			return "", err
		}
		if col.LinkTable != "" {
			continue
		}
		adds = append(adds, fmt.Sprintf("  ADD COLUMN %s %s", codec.QuoteIdent(col.Name), col.Type))
	}
	return fmt.Sprintf("ALTER TABLE %s\n%s;", codec.QuoteIdent(g.Naming.TableName(ct.ID())), strings.Join(adds, ",\n")), nil
}

// MigrationFileName returns the timestamped file name for a migration.
func MigrationFileName(now time.Time) string {
	return now.UTC().Format("20060102_150405") + ".sql"
}

// WriteMigrationFile saves the DDL into a timestamped .sql file under dir.
func WriteMigrationFile(dir, ddl string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating migrations folder: %w", err)
	}

	name := MigrationFileName(now)
	filename := filepath.Join(dir, name)
	if _, err := os.Stat(filename); err == nil {
		return "", fmt.Errorf("migration file %s already exists", filename)
	}

	content := "-- Migration: " + strings.TrimSuffix(name, ".sql") + "\n"
	content += "-- Description: Auto-generated migration\n"
	content += ddl

	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing migration file: %w", err)
	}
	return filename, nil
}

// TableShape names a table and the columns the generated DDL gives it.
type TableShape struct {
	Name    string
	Columns []string
}

var systemColumnNames = []string{
	"id", "cfid", "environment_cfid", "created_at", "updated_at", "published_at",
	"first_published_at", "is_published", "is_archived", "is_deleted", "published_version",
}

// Tables lists the tables a database migrated up to snap is expected to hold.
func (g Generator) Tables(snap schema.Snapshot) ([]TableShape, error) {
	shapes := []TableShape{{Name: HistoryTable, Columns: []string{"version"}}}
	for _, ct := range snap.ContentTypes {
		own := TableShape{Name: g.Naming.TableName(ct.ID()), Columns: append([]string{}, systemColumnNames...)}
		var links []TableShape
		for _, f := range ct.Fields {
			col, err := g.ColumnFor(ct, f)
			if err != nil {
				return nil, err
			}
			if col.LinkTable != "" {
				links = append(links, TableShape{Name: col.LinkTable, Columns: []string{"owner_cfid", "item_cfid", "order"}})
				continue
			}
			own.Columns = append(own.Columns, col.Name)
		}
		own.Columns = append(own.Columns, "raw")
		shapes = append(shapes, own)
		shapes = append(shapes, links...)
	}
	return shapes, nil
}
