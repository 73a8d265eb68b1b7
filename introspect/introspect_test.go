package introspect

import (
	"testing"

	"github.com/ridoystarlord/discontented/generator"
	"github.com/stretchr/testify/assert"
)

func columns(names ...string) []ExistingColumn {
	var cols []ExistingColumn
	for _, n := range names {
		cols = append(cols, ExistingColumn{ColumnName: n})
	}
	return cols
}

func TestCompareInSync(t *testing.T) {
	expected := []generator.TableShape{
		{Name: "posts", Columns: []string{"id", "title"}},
		{Name: "posts_tags", Columns: []string{"owner_cfid", "item_cfid", "order"}},
	}
	existing := []ExistingTable{
		{TableName: "posts", Columns: columns("id", "title")},
		{TableName: "posts_tags", Columns: columns("owner_cfid", "item_cfid", "order"),
			Indexes: []ExistingIndex{{IndexName: "posts_tags_owner_item_idx", IsUnique: true}}},
		{TableName: "unrelated", Columns: columns("x")},
	}

	assert.Empty(t, Compare(expected, existing))
}

func TestCompareReportsDrift(t *testing.T) {
	expected := []generator.TableShape{
		{Name: "posts", Columns: []string{"id", "title", "body"}},
		{Name: "posts_tags", Columns: []string{"owner_cfid", "item_cfid", "order"}},
		{Name: "authors", Columns: []string{"id"}},
	}
	existing := []ExistingTable{
		{TableName: "posts", Columns: columns("id", "title", "legacy")},
		{TableName: "posts_tags", Columns: columns("owner_cfid", "item_cfid", "order")},
	}

	drifts := Compare(expected, existing)

	assert.Equal(t, []Drift{
		{Kind: MissingColumn, Table: "posts", Column: "body"},
		{Kind: ExtraColumn, Table: "posts", Column: "legacy"},
		{Kind: MissingIndex, Table: "posts_tags", Column: "posts_tags_owner_item_idx"},
		{Kind: MissingTable, Table: "authors"},
	}, drifts)
	assert.Equal(t, "missing_table: authors", drifts[3].String())
	assert.Equal(t, "extra_column: posts.legacy", drifts[1].String())
}
