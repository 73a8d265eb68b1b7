package codec

import (
	"strings"

	"github.com/ettle/strcase"
)

const DefaultLocale = "en-US"

// Naming derives SQL identifiers from content type and field ids.
type Naming struct {
	TablePrefix   string
	TableMap      map[string]string
	DefaultLocale string
}

// Locale returns the configured default locale, falling back to en-US.
func (n Naming) Locale() string {
	if n.DefaultLocale == "" {
		return DefaultLocale
	}
	return n.DefaultLocale
}

// Identifier converts a CMS identifier into snake_case.
func (n Naming) Identifier(id string) string {
	return strcase.ToSnake(id)
}

func (n Naming) ColumnName(fieldID string) string {
	return n.Identifier(fieldID)
}

// TableName returns the table for a content type: an explicit table map
// entry wins, otherwise the pluralized snake_case id. The prefix is always
// applied.
func (n Naming) TableName(typeID string) string {
	name, ok := n.TableMap[typeID]
	if !ok || name == "" {
		name = Pluralize(n.Identifier(typeID))
	}
	return n.TablePrefix + name
}

// LinkTableName returns the table backing an array-of-links field.
func (n Naming) LinkTableName(typeID, fieldID string) string {
	return n.TableName(typeID) + "_" + n.Identifier(fieldID)
}

// TypeIDForTable finds the content type whose table is tableName.
func (n Naming) TypeIDForTable(tableName string, typeIDs []string) (string, bool) {
	for _, id := range typeIDs {
		if n.TableName(id) == tableName {
			return id, true
		}
	}
	return "", false
}

func Pluralize(name string) string {
	if strings.HasSuffix(name, "s") {
		return name + "es"
	}
	return name + "s"
}

// QuoteIdent quotes a SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
