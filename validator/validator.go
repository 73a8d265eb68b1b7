package validator

import (
	"errors"
	"fmt"

	"github.com/ridoystarlord/discontented/generator"
	"github.com/ridoystarlord/discontented/schema"
)

// maxIdentifier is the PostgreSQL identifier length limit.
const maxIdentifier = 63

// ValidationError represents a validation error with details
type ValidationError struct {
	Type        string `json:"type"`
	ContentType string `json:"contentType,omitempty"`
	Field       string `json:"field,omitempty"`
	Table       string `json:"table,omitempty"`
	Column      string `json:"column,omitempty"`
	Message     string `json:"message"`
	Severity    string `json:"severity"` // "error", "warning", "info"
}

// ValidationResult contains all validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
	Info     []ValidationError `json:"info"`
}

func (r *ValidationResult) add(e ValidationError) {
	switch e.Severity {
	case "error":
		r.Errors = append(r.Errors, e)
	case "warning":
		r.Warnings = append(r.Warnings, e)
	default:
		r.Info = append(r.Info, e)
	}
}

// SchemaValidator checks that a snapshot can be migrated and imported.
type SchemaValidator struct {
	gen generator.Generator
}

func NewSchemaValidator(gen generator.Generator) *SchemaValidator {
	return &SchemaValidator{gen: gen}
}

// ValidateSnapshot validates every content type of snap and the tables they
// map to.
func (v *SchemaValidator) ValidateSnapshot(snap schema.Snapshot) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
		Info:     []ValidationError{},
	}

	typeIDs := map[string]bool{}
	tables := map[string]string{}
	for _, ct := range snap.ContentTypes {
		if ct.ID() == "" {
			result.add(ValidationError{Type: "content_type_id", Message: fmt.Sprintf("content type %q has no id", ct.Name), Severity: "error"})
			continue
		}
		if typeIDs[ct.ID()] {
			result.add(ValidationError{Type: "duplicate_content_type", ContentType: ct.ID(),
				Message: fmt.Sprintf("content type '%s' is defined more than once", ct.ID()), Severity: "error"})
			continue
		}
		typeIDs[ct.ID()] = true

		v.validateContentType(ct, tables, result)
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (v *SchemaValidator) validateContentType(ct schema.ContentType, tables map[string]string, result *ValidationResult) {
	table := v.gen.Naming.TableName(ct.ID())
	v.claimTable(ct, table, tables, result)

	columns := map[string]string{}
	for _, name := range []string{"id", "cfid", "environment_cfid", "created_at", "updated_at", "published_at",
		"first_published_at", "is_published", "is_archived", "is_deleted", "published_version", "raw"} {
		columns[name] = "system column"
	}

	fieldIDs := map[string]bool{}
	for _, f := range ct.Fields {
		if fieldIDs[f.ID] {
			result.add(ValidationError{Type: "duplicate_field", ContentType: ct.ID(), Field: f.ID,
				Message: fmt.Sprintf("field '%s' is defined more than once in '%s'", f.ID, ct.ID()), Severity: "error"})
			continue
		}
		fieldIDs[f.ID] = true

		if err := validateFieldShape(f); err != nil {
			result.add(ValidationError{Type: "field_shape", ContentType: ct.ID(), Field: f.ID, Message: err.Error(), Severity: "error"})
			continue
		}

		col, err := v.gen.ColumnFor(ct, f)
		if err != nil {
			var unsupported *generator.UnsupportedFieldTypeError
			kind := "field_type"
			if !errors.As(err, &unsupported) {
				kind = "field"
			}
			result.add(ValidationError{Type: kind, ContentType: ct.ID(), Field: f.ID, Message: err.Error(), Severity: "error"})
			continue
		}

		if f.Disabled || f.Omitted {
			result.add(ValidationError{Type: "field_hidden", ContentType: ct.ID(), Field: f.ID,
				Message: fmt.Sprintf("field '%s' is disabled or omitted in the CMS but still gets a column", f.ID), Severity: "info"})
		}

		if col.LinkTable != "" {
			v.claimTable(ct, col.LinkTable, tables, result)
			if idx := col.LinkTable + "_owner_item_idx"; len(idx) > maxIdentifier {
				result.add(ValidationError{Type: "index_name", ContentType: ct.ID(), Table: col.LinkTable,
					Message: fmt.Sprintf("index name '%s' is too long (max %d characters) and will be truncated", idx, maxIdentifier), Severity: "warning"})
			}
			continue
		}

		if len(col.Name) > maxIdentifier {
			result.add(ValidationError{Type: "column_name", ContentType: ct.ID(), Table: table, Column: col.Name,
				Message: fmt.Sprintf("column name '%s' is too long (max %d characters)", col.Name, maxIdentifier), Severity: "error"})
		}
		if owner, taken := columns[col.Name]; taken {
			result.add(ValidationError{Type: "column_conflict", ContentType: ct.ID(), Field: f.ID, Table: table, Column: col.Name,
				Message: fmt.Sprintf("field '%s' maps to column '%s' which is already used by %s", f.ID, col.Name, owner), Severity: "error"})
			continue
		}
		columns[col.Name] = "field '" + f.ID + "'"
	}
}

func (v *SchemaValidator) claimTable(ct schema.ContentType, table string, tables map[string]string, result *ValidationResult) {
	if len(table) > maxIdentifier {
		result.add(ValidationError{Type: "table_name", ContentType: ct.ID(), Table: table,
			Message: fmt.Sprintf("table name '%s' is too long (max %d characters)", table, maxIdentifier), Severity: "error"})
	}
	if owner, taken := tables[table]; taken {
		result.add(ValidationError{Type: "table_conflict", ContentType: ct.ID(), Table: table,
			Message: fmt.Sprintf("table '%s' is claimed by both '%s' and '%s'", table, owner, ct.ID()), Severity: "error"})
		return
	}
	tables[table] = ct.ID()
}

func validateFieldShape(f schema.Field) error {
	if f.ID == "" {
		return errors.New("field has no id")
	}
	switch f.Type {
	case schema.Array:
		if f.Items == nil {
			return fmt.Errorf("array field '%s' has no items", f.ID)
		}
		if f.Items.Type == schema.Link && !validLinkType(f.Items.LinkType) {
			return fmt.Errorf("array field '%s' links to unknown type '%s'", f.ID, f.Items.LinkType)
		}
	case schema.Link:
		if !validLinkType(f.LinkType) {
			return fmt.Errorf("link field '%s' links to unknown type '%s'", f.ID, f.LinkType)
		}
	}
	return nil
}

func validLinkType(t schema.LinkType) bool {
	return t == schema.EntryLink || t == schema.AssetLink
}
