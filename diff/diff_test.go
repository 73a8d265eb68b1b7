package diff

import (
	"errors"
	"testing"

	"github.com/ridoystarlord/discontented/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func author(fields ...schema.Field) schema.ContentType {
	return schema.ContentType{Sys: schema.ContentTypeSys{ID: "author"}, Name: "Author", Fields: fields}
}

func opTypes(ops []Operation) []OperationType {
	var types []OperationType
	for _, op := range ops {
		types = append(types, op.Type)
	}
	return types
}

func TestDiffSchemasFirstMigration(t *testing.T) {
	ops, err := DiffSchemas(nil, schema.Snapshot{ContentTypes: []schema.ContentType{author(schema.Field{ID: "name", Type: schema.Symbol})}})
	require.NoError(t, err)
	assert.Equal(t, []OperationType{CreateHistoryTable, CreateTable}, opTypes(ops))
}

func TestDiffSchemasFieldChanges(t *testing.T) {
	old := &schema.Snapshot{
		ContentTypes: []schema.ContentType{author(schema.Field{ID: "name", Type: schema.Text})},
		Metadata:     schema.Metadata{HasLinkOrder: true, HasUniqueLinkIndices: true},
	}
	next := schema.Snapshot{ContentTypes: []schema.ContentType{author(
		schema.Field{ID: "name", Type: schema.Symbol},
		schema.Field{ID: "bio", Type: schema.Text},
		schema.Field{ID: "age", Type: schema.Integer},
		schema.Field{ID: "books", Type: schema.Array, Items: &schema.Items{Type: schema.Link, LinkType: schema.EntryLink}},
	)}}

	ops, err := DiffSchemas(old, next)
	require.NoError(t, err)
	require.Equal(t, []OperationType{CreateLinkTable, AddColumns}, opTypes(ops))
	assert.Equal(t, "books", ops[0].Field.ID)
	require.Len(t, ops[1].Fields, 2)
	assert.Equal(t, "bio", ops[1].Fields[0].ID)
	assert.Equal(t, "age", ops[1].Fields[1].ID)
}

func TestDiffSchemasWidensSymbolColumns(t *testing.T) {
	old := &schema.Snapshot{
		ContentTypes: []schema.ContentType{author(
			schema.Field{ID: "name", Type: schema.Symbol},
			schema.Field{ID: "bio", Type: schema.Symbol},
			schema.Field{ID: "aliases", Type: schema.Array, Items: &schema.Items{Type: schema.Symbol}},
			schema.Field{ID: "summary", Type: schema.Text},
		)},
		Metadata: schema.Metadata{HasLinkOrder: true, HasUniqueLinkIndices: true},
	}
	next := schema.Snapshot{ContentTypes: []schema.ContentType{author(
		schema.Field{ID: "name", Type: schema.Symbol},
		schema.Field{ID: "bio", Type: schema.Text},
		schema.Field{ID: "aliases", Type: schema.Array, Items: &schema.Items{Type: schema.Text}},
		schema.Field{ID: "summary", Type: schema.Symbol},
	)}}

	ops, err := DiffSchemas(old, next)
	require.NoError(t, err)
	require.Equal(t, []OperationType{WidenColumn, WidenColumn}, opTypes(ops))
	assert.Equal(t, "bio", ops[0].Field.ID)
	assert.Equal(t, schema.Text, ops[0].Field.Type)
	assert.Equal(t, "aliases", ops[1].Field.ID)
}

func TestDiffSchemasIncompatible(t *testing.T) {
	old := &schema.Snapshot{ContentTypes: []schema.ContentType{author(schema.Field{ID: "age", Type: schema.Symbol})}}
	next := schema.Snapshot{ContentTypes: []schema.ContentType{author(schema.Field{ID: "age", Type: schema.Integer})}}

	ops, err := DiffSchemas(old, next)
	assert.Nil(t, ops)
	var incompatible *SchemaIncompatibilityError
	require.True(t, errors.As(err, &incompatible))
	assert.Equal(t, "field 'age' of type 'Author' changed from type 'Symbol' to 'Integer'. This is not supported", err.Error())
}

func TestDiffSchemasBackfillsLegacyLinkTables(t *testing.T) {
	books := schema.Field{ID: "books", Type: schema.Array, Items: &schema.Items{Type: schema.Link, LinkType: schema.EntryLink}}
	old := &schema.Snapshot{ContentTypes: []schema.ContentType{author(books)}}

	ops, err := DiffSchemas(old, schema.Snapshot{ContentTypes: []schema.ContentType{author(books)}})
	require.NoError(t, err)
	assert.Equal(t, []OperationType{AddLinkOrder, CreateLinkUniqueIndex}, opTypes(ops))
}
