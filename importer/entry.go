// Package importer converts CMS entries into batched SQL upserts.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/locator"
	"github.com/ridoystarlord/discontented/schema"
)

// LinkPruner removes link table rows whose item is no longer linked.
type LinkPruner interface {
	PruneLinks(ctx context.Context, table, ownerCfid string, keep []string) error
}

// Result is the output of converting entries: rows grouped by table and the
// link prunes to apply after those rows are written.
type Result struct {
	Tables []TableRows
	Prunes []LinkPrune
}

// Config holds what the importers need to map entries to rows.
type Config struct {
	Naming       codec.Naming
	ContentTypes []schema.ContentType
	Locator      locator.Locator
	Logger       *slog.Logger
}

// EntryImporter maps a single entry to row updates.
type EntryImporter struct {
	naming  codec.Naming
	types   map[string]schema.ContentType
	locator locator.Locator
	logger  *slog.Logger
}

func NewEntryImporter(cfg Config) *EntryImporter {
	types := make(map[string]schema.ContentType, len(cfg.ContentTypes))
	for _, ct := range cfg.ContentTypes {
		types[ct.ID()] = ct
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &EntryImporter{
		naming:  cfg.Naming,
		types:   types,
		locator: cfg.Locator,
		logger:  logger,
	}
}

// GenerateData returns the rows for an entry keyed by table. The published
// version wins when present, otherwise latest is stored as a draft.
func (ei *EntryImporter) GenerateData(ctx context.Context, published, latest *schema.Entry) (map[string][]RowUpdate, error) {
	set, err := ei.generate(ctx, published, latest)
	if err != nil {
		return nil, err
	}
	return set.asMap(), nil
}

// Generate is GenerateData with tables in a stable order: the entry's own
// table first, then its link tables in field order. Every array link field
// yields a prune that drops the owner's items that are no longer linked.
func (ei *EntryImporter) Generate(ctx context.Context, published, latest *schema.Entry) (*Result, error) {
	set, err := ei.generate(ctx, published, latest)
	if err != nil {
		return nil, err
	}
	return &Result{Tables: set.tables(), Prunes: set.prunes}, nil
}

func (ei *EntryImporter) generate(ctx context.Context, published, latest *schema.Entry) (*tableSet, error) {
	entry, isPublished := published, true
	if entry == nil {
		entry, isPublished = latest, false
	}
	if entry == nil {
		return nil, errors.New("no entry to import")
	}

	typeID := entry.ContentTypeID()
	ct, ok := ei.types[typeID]
	if !ok {
		return nil, &MissingDefinitionError{ContentType: typeID}
	}
	for fieldID := range entry.Fields {
		if _, ok := ct.Field(fieldID); !ok {
			return nil, &MissingDefinitionError{ContentType: typeID, Field: fieldID}
		}
	}

	tableName := ei.naming.TableName(typeID)
	log := ei.logger.With("entry", entry.Sys.ID, "contentType", typeID)

	row := RowUpdate{Table: tableName, UniqueKey: []string{"cfid"}, OnConflict: OnConflictUpdate}
	row.Set("cfid", codec.String(entry.Sys.ID))
	row.Set("environment_cfid", optionalString(entry.EnvironmentID()))

	var (
		linkRows []RowUpdate
		prunes   []LinkPrune
	)

	for _, field := range ct.Fields {
		column := ei.naming.ColumnName(field.ID)
		raw := ei.localeValue(log, field, entry.Fields[field.ID])

		value, err := codec.Decode(field, raw)
		if errors.Is(err, codec.ErrMalformedLink) {
			return nil, &MalformedLinkError{Entry: entry.Sys.ID, Field: field.ID}
		}
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", entry.Sys.ID, err)
		}

		elem, linkType, isArray := field.ElementType()
		if elem != schema.Link {
			row.Set(column, value)
			continue
		}

		if isArray {
			rows := ei.linkRows(entry, field, value)
			linkRows = append(linkRows, rows...)
			prunes = append(prunes, linkPrune(ei.naming.LinkTableName(typeID, field.ID), entry.Sys.ID, rows))
			continue
		}

		switch linkType {
		case schema.AssetLink:
			url, err := ei.assetURL(ctx, log, entry, field, value)
			if err != nil {
				return nil, err
			}
			row.Set(column+"_cfurl", url)
		default:
			if link, ok := value.(codec.Link); ok {
				row.Set(column+"_cfid", codec.String(link.ID))
			} else {
				row.Set(column+"_cfid", codec.Null{})
			}
		}
	}

	rawJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("entry %s: encode raw: %w", entry.Sys.ID, err)
	}

	row.Set("created_at", codec.Of(entry.Sys.CreatedAt))
	row.Set("updated_at", codec.Of(entry.Sys.UpdatedAt))
	row.Set("published_at", codec.Of(entry.Sys.PublishedAt))
	row.Set("first_published_at", codec.Of(entry.Sys.FirstPublishedAt))
	row.Set("is_published", codec.Bool(isPublished))
	row.Set("is_archived", codec.Bool(entry.IsArchived()))
	row.Set("is_deleted", codec.Bool(false))
	row.Set("published_version", optionalInt(publishedVersion(entry, isPublished)))
	row.Set("raw", codec.JSON(rawJSON))

	set := newTableSet()
	if err := set.add(row); err != nil {
		return nil, err
	}
	for _, lr := range linkRows {
		if err := set.add(lr); err != nil {
			return nil, err
		}
	}
	set.prunes = prunes
	return set, nil
}

// publishedVersion reads the version from the management API's metadata,
// falling back to the delivery API's revision.
func publishedVersion(entry *schema.Entry, isPublished bool) int {
	if entry.Sys.PublishedVersion == 0 && isPublished {
		return entry.Sys.Revision
	}
	return entry.Sys.PublishedVersion
}

// localeValue unwraps the default locale.
func (ei *EntryImporter) localeValue(log *slog.Logger, field schema.Field, lv schema.LocalizedValue) json.RawMessage {
	if len(lv) == 0 {
		return nil
	}
	raw, ok := lv[ei.naming.Locale()]
	if !ok {
		log.Warn("field has no value for the default locale, storing NULL",
			"field", field.ID, "locale", ei.naming.Locale())
		return nil
	}
	return raw
}

func (ei *EntryImporter) linkRows(entry *schema.Entry, field schema.Field, value codec.Value) []RowUpdate {
	arr, _ := value.(codec.Array)
	table := ei.naming.LinkTableName(entry.ContentTypeID(), field.ID)

	rows := make([]RowUpdate, 0, len(arr))
	seen := make(map[string]bool, len(arr))
	for i, item := range arr {
		link, ok := item.(codec.Link)
		if !ok || seen[link.ID] {
			continue
		}
		seen[link.ID] = true
		r := RowUpdate{Table: table, UniqueKey: []string{"owner_cfid", "item_cfid"}, OnConflict: OnConflictUpdate}
		r.Set("owner_cfid", codec.String(entry.Sys.ID))
		r.Set("item_cfid", codec.String(link.ID))
		r.Set("order", codec.Int(i))
		rows = append(rows, r)
	}
	return rows
}

func linkPrune(table, owner string, rows []RowUpdate) LinkPrune {
	keep := make([]string, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.Get("item_cfid"); ok {
			keep = append(keep, string(v.(codec.String)))
		}
	}
	return LinkPrune{Table: table, Owner: owner, Keep: keep}
}

// ApplyPrunes runs prunes in order. Failures are logged and skipped, leaving
// the stale rows in place.
func ApplyPrunes(ctx context.Context, pruner LinkPruner, prunes []LinkPrune, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, p := range prunes {
		if err := pruner.PruneLinks(ctx, p.Table, p.Owner, p.Keep); err != nil {
			logger.Warn("failed to prune stale links", "table", p.Table, "owner", p.Owner, "error", err)
		}
	}
}

// assetURL resolves an asset link to its absolute URL, or a sentinel when
// the asset or its file is missing.
func (ei *EntryImporter) assetURL(ctx context.Context, log *slog.Logger, entry *schema.Entry, field schema.Field, value codec.Value) (codec.Value, error) {
	link, ok := value.(codec.Link)
	if !ok {
		return codec.Null{}, nil
	}
	if ei.locator == nil {
		return nil, fmt.Errorf("entry %s: field %s: no locator configured for asset links", entry.Sys.ID, field.ID)
	}

	asset, err := ei.locator.Asset(ctx, entry.SpaceID(), link.ID)
	if err != nil {
		return nil, fmt.Errorf("entry %s: field %s: locate asset %s: %w", entry.Sys.ID, field.ID, link.ID, err)
	}
	if asset == nil {
		log.Warn("linked asset is missing", "field", field.ID, "asset", link.ID)
		return codec.String("cf-asset-missing:" + link.ID), nil
	}

	file, ok := asset.Fields.File[ei.naming.Locale()]
	if !ok || file.URL == "" {
		log.Warn("linked asset has no file", "field", field.ID, "asset", link.ID)
		return codec.String("cf-asset-file-missing:" + link.ID), nil
	}
	return codec.String(AssetURL(file.URL)), nil
}

// AssetURL makes a protocol-relative asset URL absolute.
func AssetURL(url string) string {
	if strings.HasPrefix(url, "//") {
		return "https:" + url
	}
	return url
}

func optionalString(s string) codec.Value {
	if s == "" {
		return codec.Null{}
	}
	return codec.String(s)
}

func optionalInt(n int) codec.Value {
	if n == 0 {
		return codec.Null{}
	}
	return codec.Int(n)
}
