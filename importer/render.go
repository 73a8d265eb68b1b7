package importer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ridoystarlord/discontented/codec"
)

// DefaultPageSize is the number of rows rendered into one INSERT.
const DefaultPageSize = 1000

// RenderTable renders the rows of one table as paged upsert statements.
func RenderTable(tr TableRows, pageSize int, ser codec.Serializer) []string {
	if len(tr.Rows) == 0 {
		return nil
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	pages := (len(tr.Rows) + pageSize - 1) / pageSize
	out := make([]string, 0, pages)
	for page := 0; page < pages; page++ {
		start := page * pageSize
		end := min(start+pageSize, len(tr.Rows))
		out = append(out, renderPage(tr.Table, tr.Rows[start:end], page+1, pages, len(tr.Rows), ser))
	}
	return out
}

func renderPage(table string, rows []RowUpdate, page, pages, total int, ser codec.Serializer) string {
	exemplar := rows[0]
	names := exemplar.ColumnNames()

	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = codec.QuoteIdent(n)
	}

	var b strings.Builder
	b.WriteString("\n-- *********************************************\n")
	b.WriteString("-- *\n")
	fmt.Fprintf(&b, "-- * %s [Page %d / %d, Total: %d]\n", table, page, pages, total)
	b.WriteString("-- *\n")
	b.WriteString("-- **\n")
	fmt.Fprintf(&b, "INSERT INTO %s (%s)\n", codec.QuoteIdent(table), strings.Join(quoted, ", "))
	b.WriteString("VALUES\n")

	for i, row := range rows {
		values := make([]string, len(row.Columns))
		for j, c := range row.Columns {
			values[j] = ser.Literal(c.Value)
		}
		b.WriteString("  (" + strings.Join(values, ", ") + ")")
		if i < len(rows)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}

	keys := make([]string, len(exemplar.UniqueKey))
	for i, k := range exemplar.UniqueKey {
		keys[i] = codec.QuoteIdent(k)
	}
	fmt.Fprintf(&b, "ON CONFLICT (%s)", strings.Join(keys, ", "))

	var sets []string
	if exemplar.OnConflict == OnConflictUpdate {
		for _, n := range names {
			if slices.Contains(exemplar.UniqueKey, n) {
				continue
			}
			q := codec.QuoteIdent(n)
			sets = append(sets, fmt.Sprintf("  %s = EXCLUDED.%s", q, q))
		}
	}
	if len(sets) == 0 {
		b.WriteString(" DO NOTHING")
	} else {
		b.WriteString(" DO UPDATE SET\n")
		b.WriteString(strings.Join(sets, ",\n"))
	}
	return b.String()
}
