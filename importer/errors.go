package importer

import (
	"fmt"
	"strings"

	"github.com/ridoystarlord/discontented/codec"
)

// MissingDefinitionError means an entry refers to a content type or field
// that the loaded schema does not know about.
type MissingDefinitionError struct {
	ContentType string
	Field       string
}

func (e *MissingDefinitionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("no definition for content type %q", e.ContentType)
	}
	return fmt.Sprintf("failed to find field %q in content type %q", e.Field, e.ContentType)
}

// MalformedLinkError means a link value has no sys.id.
type MalformedLinkError struct {
	Entry string
	Field string
}

func (e *MalformedLinkError) Error() string {
	return fmt.Sprintf("entry %s: field %s: malformed link", e.Entry, e.Field)
}

func (e *MalformedLinkError) Unwrap() error {
	return codec.ErrMalformedLink
}

// HeterogeneousRowsError means two rows for the same table disagree on
// their columns or conflict handling.
type HeterogeneousRowsError struct {
	Table string
	Want  []string
	Got   []string
}

func (e *HeterogeneousRowsError) Error() string {
	return fmt.Sprintf("table %s: row columns (%s) do not match (%s)",
		e.Table, strings.Join(e.Got, ", "), strings.Join(e.Want, ", "))
}
