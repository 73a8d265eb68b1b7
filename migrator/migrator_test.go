package migrator

import (
	"errors"
	"strings"
	"testing"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/diff"
	"github.com/ridoystarlord/discontented/generator"
	"github.com/ridoystarlord/discontented/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blogPost() schema.ContentType {
	return schema.ContentType{
		Sys:  schema.ContentTypeSys{ID: "blogPost"},
		Name: "Blog Post",
		Fields: []schema.Field{
			{ID: "title", Type: schema.Symbol},
			{ID: "body", Type: schema.Text},
			{ID: "views", Type: schema.Integer},
			{ID: "author", Type: schema.Link, LinkType: schema.EntryLink},
			{ID: "hero", Type: schema.Link, LinkType: schema.AssetLink},
			{ID: "tags", Type: schema.Array, Items: &schema.Items{Type: schema.Symbol}},
			{ID: "related", Type: schema.Array, Items: &schema.Items{Type: schema.Link, LinkType: schema.EntryLink}},
		},
	}
}

func snapshot(types ...schema.ContentType) schema.Snapshot {
	return schema.Snapshot{ContentTypes: types}
}

func migrated(types ...schema.ContentType) *schema.Snapshot {
	s := schema.Snapshot{ContentTypes: types, Metadata: schema.Metadata{HasLinkOrder: true, HasUniqueLinkIndices: true}}
	return &s
}

func TestMigrateFirstMigration(t *testing.T) {
	m := New(codec.Naming{})

	ddl, next, err := m.Migrate(nil, snapshot(blogPost()))
	require.NoError(t, err)

	assert.True(t, strings.Index(ddl, generator.HistoryTable) < strings.Index(ddl, `CREATE TABLE "blog_posts"`),
		"history table must come first")
	assert.Contains(t, ddl, `"version" VARCHAR(256) UNIQUE`)
	assert.Contains(t, ddl, `"id" BIGSERIAL PRIMARY KEY`)
	assert.Contains(t, ddl, `"cfid" VARCHAR(64) UNIQUE`)
	assert.Contains(t, ddl, `"title" VARCHAR(256)`)
	assert.Contains(t, ddl, `"body" TEXT`)
	assert.Contains(t, ddl, `"views" BIGINT`)
	assert.Contains(t, ddl, `"author_cfid" VARCHAR(64)`)
	assert.Contains(t, ddl, `"hero_cfurl" VARCHAR(1024)`)
	assert.Contains(t, ddl, `"tags" VARCHAR(256)[]`)
	assert.Contains(t, ddl, `"raw" JSONB`)
	assert.Contains(t, ddl, `CREATE TABLE "blog_posts_related"`)
	assert.Contains(t, ddl, `ON "blog_posts_related" ("owner_cfid", "item_cfid")`)
	assert.NotContains(t, ddl, `"related"`)

	assert.True(t, next.Metadata.HasLinkOrder)
	assert.True(t, next.Metadata.HasUniqueLinkIndices)
	assert.Len(t, next.ContentTypes, 1)
}

func TestMigrateIsIdempotent(t *testing.T) {
	m := New(codec.Naming{})

	_, next, err := m.Migrate(nil, snapshot(blogPost()))
	require.NoError(t, err)

	ddl, again, err := m.Migrate(&next, snapshot(blogPost()))
	require.NoError(t, err)
	assert.Empty(t, ddl)
	assert.Equal(t, next, again)
}

func TestMigrateAddsColumn(t *testing.T) {
	m := New(codec.Naming{})
	updated := blogPost()
	updated.Fields = append(updated.Fields, schema.Field{ID: "readingTime", Type: schema.Number})

	ddl, _, err := m.Migrate(migrated(blogPost()), snapshot(updated))
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(ddl, "ALTER TABLE"))
	assert.Equal(t, 1, strings.Count(ddl, "ADD COLUMN"))
	assert.Contains(t, ddl, `ADD COLUMN "reading_time" DOUBLE PRECISION`)
	assert.NotContains(t, ddl, "CREATE TABLE")
}

func TestMigrateGroupsNewColumns(t *testing.T) {
	m := New(codec.Naming{})
	updated := blogPost()
	updated.Fields = append(updated.Fields,
		schema.Field{ID: "publishDate", Type: schema.Date},
		schema.Field{ID: "featured", Type: schema.Boolean},
		schema.Field{ID: "gallery", Type: schema.Array, Items: &schema.Items{Type: schema.Link, LinkType: schema.AssetLink}},
	)

	ddl, _, err := m.Migrate(migrated(blogPost()), snapshot(updated))
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(ddl, "ALTER TABLE"))
	assert.Contains(t, ddl, `ADD COLUMN "publish_date" TIMESTAMPTZ`)
	assert.Contains(t, ddl, `ADD COLUMN "featured" BOOLEAN`)
	assert.Contains(t, ddl, `CREATE TABLE "blog_posts_gallery"`)
}

func TestMigrateNewContentType(t *testing.T) {
	m := New(codec.Naming{TablePrefix: "cf_"})
	category := schema.ContentType{
		Sys:    schema.ContentTypeSys{ID: "category"},
		Name:   "Category",
		Fields: []schema.Field{{ID: "location", Type: schema.Location}, {ID: "meta", Type: schema.Object}},
	}

	ddl, next, err := m.Migrate(migrated(blogPost()), snapshot(blogPost(), category))
	require.NoError(t, err)

	assert.Contains(t, ddl, "NEW CONTENT TYPE: Category [category]")
	assert.Contains(t, ddl, `CREATE TABLE "cf_categorys"`)
	assert.Contains(t, ddl, `"location" JSONB`)
	assert.NotContains(t, ddl, generator.HistoryTable)
	assert.Len(t, next.ContentTypes, 2)
}

func TestMigrateRejectsIncompatibleChange(t *testing.T) {
	m := New(codec.Naming{})
	changed := blogPost()
	changed.Fields[2].Type = schema.Boolean

	ddl, _, err := m.Migrate(migrated(blogPost()), snapshot(changed))
	require.Error(t, err)
	assert.Empty(t, ddl)

	var incompatible *diff.SchemaIncompatibilityError
	require.True(t, errors.As(err, &incompatible))
	assert.Equal(t, "views", incompatible.Field)
	assert.Equal(t, "Integer", incompatible.From)
	assert.Equal(t, "Boolean", incompatible.To)
}

func TestMigrateRejectsLinkTypeChange(t *testing.T) {
	m := New(codec.Naming{})

	scalar := blogPost()
	scalar.Fields[3].LinkType = schema.AssetLink
	_, _, err := m.Migrate(migrated(blogPost()), snapshot(scalar))
	var incompatible *diff.SchemaIncompatibilityError
	require.True(t, errors.As(err, &incompatible))
	assert.True(t, incompatible.LinkChange)

	array := blogPost()
	array.Fields[6].Items = &schema.Items{Type: schema.Link, LinkType: schema.AssetLink}
	_, _, err = m.Migrate(migrated(blogPost()), snapshot(array))
	require.True(t, errors.As(err, &incompatible))
	assert.Equal(t, "related", incompatible.Field)
}

func TestMigrateAllowsCompatibleSubstitution(t *testing.T) {
	m := New(codec.Naming{})

	tests := []struct {
		name  string
		field int
		from  schema.FieldType
		to    schema.FieldType
		want  string
	}{
		{"text to symbol", 1, schema.Text, schema.Symbol, ""},
		{"symbol to text", 1, schema.Symbol, schema.Text, `ALTER TABLE "blog_posts" ALTER COLUMN "body" TYPE TEXT;`},
		{"symbol to rich text", 1, schema.Symbol, schema.RichText, `ALTER TABLE "blog_posts" ALTER COLUMN "body" TYPE TEXT;`},
		{"text to rich text", 1, schema.Text, schema.RichText, ""},
		{"rich text to text", 1, schema.RichText, schema.Text, ""},
		{"symbol array to text array", 5, schema.Symbol, schema.Text, `ALTER TABLE "blog_posts" ALTER COLUMN "tags" TYPE TEXT[];`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, after := blogPost(), blogPost()
			if items := before.Fields[tt.field].Items; items != nil {
				before.Fields[tt.field].Items = &schema.Items{Type: tt.from}
				after.Fields[tt.field].Items = &schema.Items{Type: tt.to}
			} else {
				before.Fields[tt.field].Type = tt.from
				after.Fields[tt.field].Type = tt.to
			}

			ddl, _, err := m.Migrate(migrated(before), snapshot(after))
			require.NoError(t, err)
			if tt.want == "" {
				assert.Empty(t, ddl)
				return
			}
			assert.Contains(t, ddl, tt.want)
			assert.Equal(t, 1, strings.Count(ddl, "ALTER TABLE"))
		})
	}
}

func TestMigrateBackfillsLinkTables(t *testing.T) {
	m := New(codec.Naming{})
	legacy := snapshot(blogPost())

	ddl, next, err := m.Migrate(&legacy, snapshot(blogPost()))
	require.NoError(t, err)
	assert.Contains(t, ddl, `ALTER TABLE "blog_posts_related" ADD COLUMN IF NOT EXISTS "order" INTEGER;`)
	assert.Contains(t, ddl, `CREATE UNIQUE INDEX IF NOT EXISTS "blog_posts_related_owner_item_idx"`)

	ddl, _, err = m.Migrate(&next, snapshot(blogPost()))
	require.NoError(t, err)
	assert.Empty(t, ddl, "backfills are emitted once")
}

func TestMigrateUnsupportedFieldType(t *testing.T) {
	m := New(codec.Naming{})
	odd := schema.ContentType{
		Sys:    schema.ContentTypeSys{ID: "odd"},
		Fields: []schema.Field{{ID: "shape", Type: "Polygon"}},
	}

	ddl, _, err := m.Migrate(nil, snapshot(odd))
	require.Error(t, err)
	assert.Empty(t, ddl)

	var unsupported *generator.UnsupportedFieldTypeError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "Polygon", unsupported.Type)
}
