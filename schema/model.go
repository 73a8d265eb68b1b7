package schema

import (
	"encoding/json"
	"time"
)

type FieldType string

const (
	Symbol   FieldType = "Symbol"
	Text     FieldType = "Text"
	RichText FieldType = "RichText"
	Boolean  FieldType = "Boolean"
	Integer  FieldType = "Integer"
	Number   FieldType = "Number"
	Date     FieldType = "Date"
	Location FieldType = "Location"
	Object   FieldType = "Object"
	Array    FieldType = "Array"
	Link     FieldType = "Link"
)

type LinkType string

const (
	EntryLink LinkType = "Entry"
	AssetLink LinkType = "Asset"
)

// LinkRef is the wire form of a reference to another resource.
type LinkRef struct {
	Sys LinkSys `json:"sys"`
}

type LinkSys struct {
	Type     string   `json:"type"`
	LinkType LinkType `json:"linkType"`
	ID       string   `json:"id"`
}

// NewLink builds a link to the resource with the given id.
func NewLink(linkType LinkType, id string) *LinkRef {
	return &LinkRef{Sys: LinkSys{Type: "Link", LinkType: linkType, ID: id}}
}

type Items struct {
	Type     FieldType `json:"type"`
	LinkType LinkType  `json:"linkType,omitempty"`
}

type Field struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Type      FieldType `json:"type"`
	LinkType  LinkType  `json:"linkType,omitempty"`
	Items     *Items    `json:"items,omitempty"`
	Localized bool      `json:"localized"`
	Required  bool      `json:"required"`
	Disabled  bool      `json:"disabled,omitempty"`
	Omitted   bool      `json:"omitted,omitempty"`
}

// ElementType returns the declared type of the field, looking through arrays.
func (f Field) ElementType() (FieldType, LinkType, bool) {
	if f.Type == Array && f.Items != nil {
		return f.Items.Type, f.Items.LinkType, true
	}
	return f.Type, f.LinkType, false
}

// IsLinkArray reports whether the field is stored in a link table.
func (f Field) IsLinkArray() bool {
	t, _, isArray := f.ElementType()
	return isArray && t == Link
}

type ContentTypeSys struct {
	ID      string `json:"id"`
	Type    string `json:"type,omitempty"`
	Version int    `json:"version,omitempty"`
}

type ContentType struct {
	Sys          ContentTypeSys `json:"sys"`
	Name         string         `json:"name"`
	DisplayField string         `json:"displayField,omitempty"`
	Description  string         `json:"description,omitempty"`
	Fields       []Field        `json:"fields"`
}

func (ct ContentType) ID() string {
	return ct.Sys.ID
}

// Field returns the field with the given id.
func (ct ContentType) Field(id string) (Field, bool) {
	for _, f := range ct.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

type EntrySys struct {
	ID               string     `json:"id"`
	Type             string     `json:"type,omitempty"`
	Space            *LinkRef   `json:"space,omitempty"`
	Environment      *LinkRef   `json:"environment,omitempty"`
	ContentType      *LinkRef   `json:"contentType,omitempty"`
	Version          int        `json:"version,omitempty"`
	CreatedAt        *time.Time `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
	PublishedAt      *time.Time `json:"publishedAt,omitempty"`
	FirstPublishedAt *time.Time `json:"firstPublishedAt,omitempty"`
	PublishedVersion int        `json:"publishedVersion,omitempty"`
	ArchivedVersion  int        `json:"archivedVersion,omitempty"`
	// Revision is set by the delivery API, which only serves published content.
	Revision int `json:"revision,omitempty"`
}

// LocalizedValue maps a locale code to the raw value of a field in that locale.
type LocalizedValue map[string]json.RawMessage

type Entry struct {
	Sys    EntrySys                  `json:"sys"`
	Fields map[string]LocalizedValue `json:"fields"`
}

func (e Entry) ContentTypeID() string {
	if e.Sys.ContentType == nil {
		return ""
	}
	return e.Sys.ContentType.Sys.ID
}

func (e Entry) SpaceID() string {
	if e.Sys.Space == nil {
		return ""
	}
	return e.Sys.Space.Sys.ID
}

func (e Entry) EnvironmentID() string {
	if e.Sys.Environment == nil {
		return ""
	}
	return e.Sys.Environment.Sys.ID
}

// IsPublished reports whether the entry carries a published version.
func (e Entry) IsPublished() bool {
	return e.Sys.PublishedVersion > 0 || e.Sys.PublishedAt != nil || e.Sys.Revision > 0
}

func (e Entry) IsArchived() bool {
	return e.Sys.ArchivedVersion > 0
}

type AssetFile struct {
	URL         string `json:"url"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

type AssetFields struct {
	Title map[string]string    `json:"title,omitempty"`
	File  map[string]AssetFile `json:"file,omitempty"`
}

type Asset struct {
	Sys    EntrySys    `json:"sys"`
	Fields AssetFields `json:"fields"`
}

func (a Asset) SpaceID() string {
	if a.Sys.Space == nil {
		return ""
	}
	return a.Sys.Space.Sys.ID
}

type Locale struct {
	Code    string `json:"code"`
	Name    string `json:"name,omitempty"`
	Default bool   `json:"default,omitempty"`
}

// Metadata tracks one-time structural backfills applied to the database.
type Metadata struct {
	HasLinkOrder         bool `json:"hasLinkOrder"`
	HasUniqueLinkIndices bool `json:"hasUniqueLinkIndices"`
}

// Snapshot is the persisted schema used as the "old" side of the next diff.
type Snapshot struct {
	ContentTypes []ContentType `json:"contentTypes"`
	Metadata     Metadata      `json:"metadata"`
}

// ContentType returns the content type with the given id.
func (s Snapshot) ContentType(id string) (ContentType, bool) {
	for _, ct := range s.ContentTypes {
		if ct.Sys.ID == id {
			return ct, true
		}
	}
	return ContentType{}, false
}

// Store is a fully materialized export of a space.
type Store struct {
	ContentTypes []ContentType `json:"contentTypes"`
	Entries      []Entry       `json:"entries,omitempty"`
	Assets       []Asset       `json:"assets,omitempty"`
	Locales      []Locale      `json:"locales,omitempty"`
}

// Snapshot returns the schema portion of the store.
func (s Store) Snapshot() Snapshot {
	return Snapshot{ContentTypes: s.ContentTypes}
}
