package generator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/diff"
	"github.com/ridoystarlord/discontented/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func article() schema.ContentType {
	return schema.ContentType{
		Sys:  schema.ContentTypeSys{ID: "article"},
		Name: "Article",
		Fields: []schema.Field{
			{ID: "title", Type: schema.Symbol},
			{ID: "publishDate", Type: schema.Date},
			{ID: "author", Type: schema.Link, LinkType: schema.EntryLink},
			{ID: "cover", Type: schema.Link, LinkType: schema.AssetLink},
			{ID: "scores", Type: schema.Array, Items: &schema.Items{Type: schema.Number}},
			{ID: "gallery", Type: schema.Array, Items: &schema.Items{Type: schema.Link, LinkType: schema.AssetLink}},
		},
	}
}

func TestColumnFor(t *testing.T) {
	g := New(codec.Naming{})
	ct := article()

	tests := []struct {
		field string
		want  Column
	}{
		{field: "title", want: Column{Name: "title", Type: "VARCHAR(256)"}},
		{field: "publishDate", want: Column{Name: "publish_date", Type: "TIMESTAMPTZ"}},
		{field: "author", want: Column{Name: "author_cfid", Type: "VARCHAR(64)"}},
		{field: "cover", want: Column{Name: "cover_cfurl", Type: "VARCHAR(1024)"}},
		{field: "scores", want: Column{Name: "scores", Type: "DOUBLE PRECISION[]"}},
		{field: "gallery", want: Column{LinkTable: "articles_gallery"}},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, ok := ct.Field(tt.field)
			require.True(t, ok)
			col, err := g.ColumnFor(ct, f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, col)
		})
	}
}

func TestGenerateSQLWidenColumn(t *testing.T) {
	g := New(codec.Naming{TablePrefix: "cms_"})
	ct := article()
	title := schema.Field{ID: "title", Type: schema.Text}
	tags := schema.Field{ID: "tags", Type: schema.Array, Items: &schema.Items{Type: schema.RichText}}

	stmts, err := g.GenerateSQL([]diff.Operation{
		{Type: diff.WidenColumn, ContentType: ct, Field: &title},
		{Type: diff.WidenColumn, ContentType: ct, Field: &tags},
	})
	require.NoError(t, err)
	require.Len(t, stmts, 4)
	assert.Equal(t, `ALTER TABLE "cms_articles" ALTER COLUMN "title" TYPE TEXT;`, stmts[1])
	assert.Equal(t, `ALTER TABLE "cms_articles" ALTER COLUMN "tags" TYPE TEXT[];`, stmts[3])
}

func TestColumnForUnsupported(t *testing.T) {
	g := New(codec.Naming{})
	ct := article()

	_, err := g.ColumnFor(ct, schema.Field{ID: "geo", Type: "Polygon"})
	var unsupported *UnsupportedFieldTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "Polygon", unsupported.Type)

	_, err = g.ColumnFor(ct, schema.Field{ID: "list", Type: schema.Array})
	assert.True(t, errors.As(err, &unsupported))
}

func TestTables(t *testing.T) {
	g := New(codec.Naming{TablePrefix: "cf_"})

	shapes, err := g.Tables(schema.Snapshot{ContentTypes: []schema.ContentType{article()}})
	require.NoError(t, err)
	require.Len(t, shapes, 3)

	assert.Equal(t, TableShape{Name: HistoryTable, Columns: []string{"version"}}, shapes[0])

	own := shapes[1]
	assert.Equal(t, "cf_articles", own.Name)
	assert.Equal(t, "id", own.Columns[0])
	assert.Equal(t, "raw", own.Columns[len(own.Columns)-1])
	assert.Contains(t, own.Columns, "author_cfid")
	assert.Contains(t, own.Columns, "cover_cfurl")
	assert.NotContains(t, own.Columns, "gallery")

	assert.Equal(t, TableShape{Name: "cf_articles_gallery", Columns: []string{"owner_cfid", "item_cfid", "order"}}, shapes[2])
}

func TestWriteMigrationFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	file, err := WriteMigrationFile(dir, "CREATE TABLE x ();\n", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20240506_070809.sql"), file)

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- Migration: 20240506_070809\n")
	assert.Contains(t, string(content), "CREATE TABLE x ();")

	_, err = WriteMigrationFile(dir, "SELECT 1;", now)
	assert.ErrorContains(t, err, "already exists")
}

func TestRenderEmpty(t *testing.T) {
	assert.Equal(t, "", Render(nil))
}
