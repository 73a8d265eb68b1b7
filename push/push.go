// Package push writes database rows back to CMS entries.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/contentful"
	"github.com/ridoystarlord/discontented/schema"
)

// Version accepts a JSON number or a numeric string.
type Version int

func (v *Version) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("cfVersion: %w", err)
	}
	*v = Version(n)
	return nil
}

// Update identifies the row to push and the entry version it was read at.
type Update struct {
	TableName string  `json:"tableName"`
	Cfid      string  `json:"cfid"`
	CfVersion Version `json:"cfVersion"`
}

type Database interface {
	QueryRowByUniqueKey(ctx context.Context, table, column, key string) (map[string]any, error)
	QueryLinkTableTargets(ctx context.Context, table, owner string) ([]string, error)
}

type Management interface {
	Entry(ctx context.Context, id string) (*schema.Entry, error)
	UpdateEntry(ctx context.Context, entry schema.Entry) (*schema.Entry, error)
}

type Service struct {
	Naming     codec.Naming
	Snapshot   *schema.Snapshot
	SpaceID    string
	DB         Database
	Management Management
	Logger     *slog.Logger
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Push rebuilds the entry's fields from its row and link tables and writes
// them to the CMS. Asset links are not stored in a form that can be written
// back, so their existing CMS values are kept. Locales other than the
// default are carried over from the existing entry.
func (s *Service) Push(ctx context.Context, u Update) (*schema.Entry, error) {
	if s.Snapshot == nil {
		return nil, errors.New("no schema loaded")
	}

	typeIDs := make([]string, 0, len(s.Snapshot.ContentTypes))
	for _, ct := range s.Snapshot.ContentTypes {
		typeIDs = append(typeIDs, ct.ID())
	}
	typeID, ok := s.Naming.TypeIDForTable(u.TableName, typeIDs)
	if !ok {
		return nil, fmt.Errorf("could not find a content type for table %s", u.TableName)
	}
	ct, _ := s.Snapshot.ContentType(typeID)

	existing, err := s.Management.Entry(ctx, u.Cfid)
	if err != nil && !contentful.IsNotFound(err) {
		return nil, fmt.Errorf("fetching entry %s: %w", u.Cfid, err)
	}

	table := s.Naming.TableName(typeID)
	row, err := s.DB.QueryRowByUniqueKey(ctx, table, "cfid", u.Cfid)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("no row in %s with cfid %s", table, u.Cfid)
	}

	fields := map[string]schema.LocalizedValue{}
	for _, field := range ct.Fields {
		value, keep, err := s.fieldValue(ctx, ct, field, row, u.Cfid)
		if err != nil {
			return nil, err
		}
		if keep {
			if existing != nil {
				if lv, ok := existing.Fields[field.ID]; ok {
					fields[field.ID] = lv
				}
			}
			continue
		}

		lv := schema.LocalizedValue{}
		if existing != nil {
			for locale, raw := range existing.Fields[field.ID] {
				lv[locale] = raw
			}
		}
		if value == nil {
			delete(lv, s.Naming.Locale())
		} else {
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.ID, err)
			}
			lv[s.Naming.Locale()] = raw
		}
		if len(lv) > 0 {
			fields[field.ID] = lv
		}
	}

	version := int(u.CfVersion)
	if version == 0 && existing != nil {
		version = existing.Sys.Version
	}
	entry := schema.Entry{
		Sys: schema.EntrySys{
			ID:          u.Cfid,
			Space:       schema.NewLink("Space", s.SpaceID),
			Version:     version,
			ContentType: schema.NewLink("ContentType", typeID),
		},
		Fields: fields,
	}

	s.logger().Info("updating entry", "entry", entry.Sys.ID, "version", entry.Sys.Version, "contentType", typeID)
	updated, err := s.Management.UpdateEntry(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("putting entry %s to the CMS: %w", entry.Sys.ID, err)
	}
	return updated, nil
}

// fieldValue returns the default-locale value of field. keep reports that
// the existing CMS value should be used instead.
func (s *Service) fieldValue(ctx context.Context, ct schema.ContentType, field schema.Field, row map[string]any, cfid string) (value any, keep bool, err error) {
	column := s.Naming.ColumnName(field.ID)
	elem, linkType, isArray := field.ElementType()

	if elem != schema.Link {
		return row[column], false, nil
	}

	if isArray {
		items, err := s.DB.QueryLinkTableTargets(ctx, s.Naming.LinkTableName(ct.ID(), field.ID), cfid)
		if err != nil {
			return nil, false, err
		}
		links := make([]*schema.LinkRef, 0, len(items))
		for _, id := range items {
			links = append(links, schema.NewLink(linkType, id))
		}
		return links, false, nil
	}

	if linkType == schema.AssetLink {
		s.logger().Warn("asset links cannot be pushed, keeping the existing value", "field", field.ID)
		return nil, true, nil
	}

	id, _ := row[column+"_cfid"].(string)
	if id == "" {
		return nil, false, nil
	}
	return schema.NewLink(schema.EntryLink, id), false, nil
}
