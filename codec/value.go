package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ridoystarlord/discontented/schema"
)

// ErrMalformedLink is returned when a link value has no sys.id.
var ErrMalformedLink = errors.New("link value has no sys.id")

// Value is a decoded CMS field value. The concrete type is chosen by the
// field's declared type, never by the shape of the JSON.
type Value interface {
	isValue()
}

type (
	Null   struct{}
	String string
	Int    int64
	Float  float64
	Bool   bool
	Time   time.Time
	// JSON holds Object, Location and RichText values verbatim.
	JSON  json.RawMessage
	Array []Value
	Link  struct {
		ID   string
		Type schema.LinkType
	}
	// Localized holds one value per locale.
	Localized map[string]Value
)

func (Null) isValue()      {}
func (String) isValue()    {}
func (Int) isValue()       {}
func (Float) isValue()     {}
func (Bool) isValue()      {}
func (Time) isValue()      {}
func (JSON) isValue()      {}
func (Array) isValue()     {}
func (Link) isValue()      {}
func (Localized) isValue() {}

// Of converts a plain Go value into a Value. Unknown types are JSON-encoded.
func Of(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null{}
	case Value:
		return x
	case string:
		return String(x)
	case *string:
		if x == nil {
			return Null{}
		}
		return String(*x)
	case int:
		return Int(x)
	case int64:
		return Int(x)
	case float64:
		return Float(x)
	case bool:
		return Bool(x)
	case time.Time:
		return Time(x)
	case *time.Time:
		if x == nil {
			return Null{}
		}
		return Time(*x)
	case json.RawMessage:
		return JSON(x)
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			return String(fmt.Sprint(x))
		}
		return JSON(raw)
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses the date formats the CMS accepts for Date fields.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Decode converts the raw JSON of one locale into a Value according to the
// declared field type.
func Decode(field schema.Field, raw json.RawMessage) (Value, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Null{}, nil
	}

	switch field.Type {
	case schema.Symbol, schema.Text:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("field %s: %w", field.ID, err)
		}
		return String(s), nil

	case schema.Boolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("field %s: %w", field.ID, err)
		}
		return Bool(b), nil

	case schema.Integer:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("field %s: %w", field.ID, err)
		}
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.ID, err)
		}
		return Int(int64(f)), nil

	case schema.Number:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("field %s: %w", field.ID, err)
		}
		return Float(f), nil

	case schema.Date:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("field %s: %w", field.ID, err)
		}
		if t, ok := ParseDate(s); ok {
			return Time(t), nil
		}
		return String(s), nil

	case schema.Location, schema.Object, schema.RichText:
		return JSON(append(json.RawMessage(nil), raw...)), nil

	case schema.Link:
		var link schema.LinkRef
		if err := json.Unmarshal(raw, &link); err != nil {
			return nil, fmt.Errorf("field %s: %w", field.ID, err)
		}
		if link.Sys.ID == "" {
			return nil, fmt.Errorf("field %s: %w", field.ID, ErrMalformedLink)
		}
		linkType := link.Sys.LinkType
		if linkType == "" {
			linkType = field.LinkType
		}
		return Link{ID: link.Sys.ID, Type: linkType}, nil

	case schema.Array:
		if field.Items == nil {
			return nil, fmt.Errorf("field %s: array without items", field.ID)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("field %s: %w", field.ID, err)
		}
		item := schema.Field{ID: field.ID, Type: field.Items.Type, LinkType: field.Items.LinkType}
		arr := make(Array, 0, len(items))
		for _, it := range items {
			v, err := Decode(item, it)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	}

	return nil, fmt.Errorf("field %s: unsupported field type %q", field.ID, field.Type)
}

// DecodeLocalized decodes every locale of a field value.
func DecodeLocalized(field schema.Field, lv schema.LocalizedValue) (Localized, error) {
	out := make(Localized, len(lv))
	for locale, raw := range lv {
		v, err := Decode(field, raw)
		if err != nil {
			return nil, fmt.Errorf("locale %s: %w", locale, err)
		}
		out[locale] = v
	}
	return out, nil
}

// Serializer renders Values as SQL literals.
type Serializer struct {
	DefaultLocale string
}

func (s Serializer) locale() string {
	if s.DefaultLocale == "" {
		return DefaultLocale
	}
	return s.DefaultLocale
}

// Literal renders v as a SQL literal.
func (s Serializer) Literal(v Value) string {
	switch x := v.(type) {
	case nil, Null:
		return "NULL"
	case String:
		return quote(string(x))
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return quote(strconv.FormatFloat(f, 'g', -1, 64))
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case Bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case Time:
		return quote(time.Time(x).UTC().Format(time.RFC3339Nano))
	case JSON:
		return quote(string(x))
	case Link:
		return quote(x.ID)
	case Array:
		return quote(s.arrayLiteral(x))
	case Localized:
		inner, ok := x[s.locale()]
		if !ok {
			return "NULL"
		}
		return s.Literal(inner)
	}
	return quote(fmt.Sprint(v))
}

// arrayLiteral renders the text form of a PostgreSQL array, with elements
// double-quoted.
func (s Serializer) arrayLiteral(arr Array) string {
	parts := make([]string, 0, len(arr))
	for _, el := range arr {
		parts = append(parts, s.element(el))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (s Serializer) element(v Value) string {
	switch x := v.(type) {
	case nil, Null:
		return "NULL"
	case String:
		return quoteElement(string(x))
	case Int, Float:
		return s.Literal(x)
	case Bool:
		if x {
			return "true"
		}
		return "false"
	case Time:
		return quoteElement(time.Time(x).UTC().Format(time.RFC3339Nano))
	case JSON:
		return quoteElement(string(x))
	case Link:
		return quoteElement(x.ID)
	case Array:
		return s.arrayLiteral(x)
	case Localized:
		inner, ok := x[s.locale()]
		if !ok {
			return "NULL"
		}
		return s.element(inner)
	}
	return quoteElement(fmt.Sprint(v))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteElement(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
