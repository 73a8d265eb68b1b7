package diff

import (
	"fmt"

	"github.com/ridoystarlord/discontented/schema"
)

type OperationType string

const (
	CreateHistoryTable    OperationType = "CREATE_HISTORY_TABLE"
	CreateTable           OperationType = "CREATE_TABLE"
	CreateLinkTable       OperationType = "CREATE_LINK_TABLE"
	AddColumns            OperationType = "ADD_COLUMNS"
	AddLinkOrder          OperationType = "ADD_LINK_ORDER"
	CreateLinkUniqueIndex OperationType = "CREATE_LINK_UNIQUE_INDEX"
	WidenColumn           OperationType = "WIDEN_COLUMN"
)

type Operation struct {
	Type        OperationType
	ContentType schema.ContentType // owning content type
	Fields      []schema.Field     // for ADD_COLUMNS
	Field       *schema.Field      // for CREATE_LINK_TABLE, WIDEN_COLUMN and backfills
}

// SchemaIncompatibilityError reports a field change that cannot be
// expressed as additive DDL.
type SchemaIncompatibilityError struct {
	ContentType string
	Field       string
	From        string
	To          string
	LinkChange  bool
}

func (e *SchemaIncompatibilityError) Error() string {
	kind := "type"
	if e.LinkChange {
		kind = "link type"
	}
	return fmt.Sprintf("field '%s' of type '%s' changed from %s '%s' to '%s'. This is not supported",
		e.Field, e.ContentType, kind, e.From, e.To)
}

// compatible lists type substitutions that keep the same column shape.
var compatible = map[schema.FieldType]map[schema.FieldType]bool{
	schema.Text:     {schema.Symbol: true, schema.RichText: true},
	schema.Symbol:   {schema.Text: true},
	schema.RichText: {schema.Text: true},
}

func compatibleTypes(from, to schema.FieldType) bool {
	return from == to || compatible[from][to]
}

// DiffSchemas compares two snapshots and returns the operations needed to
// bring the database from old to new. A nil old snapshot is the first
// migration. Any incompatible change aborts the whole diff.
func DiffSchemas(old *schema.Snapshot, next schema.Snapshot) ([]Operation, error) {
	var ops []Operation

	firstMigration := old == nil
	if firstMigration {
		old = &schema.Snapshot{Metadata: schema.Metadata{HasLinkOrder: true, HasUniqueLinkIndices: true}}
		ops = append(ops, Operation{Type: CreateHistoryTable})
	}

	oldTypeMap := map[string]schema.ContentType{}
	for _, ct := range old.ContentTypes {
		oldTypeMap[ct.Sys.ID] = ct
	}

	for _, ct := range next.ContentTypes {
		oldType, exists := oldTypeMap[ct.Sys.ID]
		if !exists {
			ops = append(ops, Operation{
				Type:        CreateTable,
				ContentType: ct,
			})
			continue
		}

		fieldOps, err := diffFields(oldType, ct)
		if err != nil {
			return nil, err
		}
		ops = append(ops, fieldOps...)
	}

	// Link tables created before the order column and unique index existed
	// are backfilled once; the metadata flags record that it happened.
	for _, ct := range old.ContentTypes {
		for _, f := range ct.Fields {
			if !f.IsLinkArray() {
				continue
			}
			field := f
			if !old.Metadata.HasLinkOrder {
				ops = append(ops, Operation{Type: AddLinkOrder, ContentType: ct, Field: &field})
			}
			if !old.Metadata.HasUniqueLinkIndices {
				ops = append(ops, Operation{Type: CreateLinkUniqueIndex, ContentType: ct, Field: &field})
			}
		}
	}

	return ops, nil
}

func diffFields(oldType, newType schema.ContentType) ([]Operation, error) {
	var ops []Operation
	var added []schema.Field

	for _, field := range newType.Fields {
		existing, exists := oldType.Field(field.ID)
		if exists {
			if err := checkCompatible(newType, existing, field); err != nil {
				return nil, err
			}
			if widens(existing, field) {
				f := field
				ops = append(ops, Operation{Type: WidenColumn, ContentType: newType, Field: &f})
			}
			continue
		}

		if field.IsLinkArray() {
			f := field
			ops = append(ops, Operation{Type: CreateLinkTable, ContentType: newType, Field: &f})
			continue
		}
		added = append(added, field)
	}

	if len(added) > 0 {
		ops = append(ops, Operation{Type: AddColumns, ContentType: newType, Fields: added})
	}
	return ops, nil
}

func checkCompatible(ct schema.ContentType, from, to schema.Field) error {
	if !compatibleTypes(from.Type, to.Type) {
		return &SchemaIncompatibilityError{ContentType: ct.Name, Field: to.ID, From: string(from.Type), To: string(to.Type)}
	}
	if from.LinkType != to.LinkType {
		return &SchemaIncompatibilityError{ContentType: ct.Name, Field: to.ID, From: string(from.LinkType), To: string(to.LinkType), LinkChange: true}
	}

	fromItem, fromLink, fromArray := from.ElementType()
	toItem, toLink, toArray := to.ElementType()
	if fromArray && toArray {
		if !compatibleTypes(fromItem, toItem) {
			return &SchemaIncompatibilityError{ContentType: ct.Name, Field: to.ID, From: "Array<" + string(fromItem) + ">", To: "Array<" + string(toItem) + ">"}
		}
		if fromLink != toLink {
			return &SchemaIncompatibilityError{ContentType: ct.Name, Field: to.ID, From: string(fromLink), To: string(toLink), LinkChange: true}
		}
	}
	return nil
}

// widens reports whether a compatible change moves a bounded Symbol column
// to unbounded text.
func widens(from, to schema.Field) bool {
	fromElem, _, _ := from.ElementType()
	toElem, _, _ := to.ElementType()
	return fromElem == schema.Symbol && (toElem == schema.Text || toElem == schema.RichText)
}
