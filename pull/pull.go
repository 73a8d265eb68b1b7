// Package pull imports CMS content into the database.
package pull

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/importer"
	"github.com/ridoystarlord/discontented/locator"
	"github.com/ridoystarlord/discontented/schema"
)

// ErrNoSchema is returned when no schema snapshot has been generated yet.
var ErrNoSchema = errors.New("no schema loaded: run `dcf generate` and `dcf apply` first")

// Database is the part of the database gateway that imports write through.
type Database interface {
	ExecAll(ctx context.Context, statements []string) error
	MarkDeleted(ctx context.Context, table, cfid string) error
	PruneLinks(ctx context.Context, table, owner string, keep []string) error
}

// Management reads the latest state of the space.
type Management interface {
	FetchStore(ctx context.Context) (*schema.Store, error)
	Entry(ctx context.Context, id string) (*schema.Entry, error)
	Asset(ctx context.Context, id string) (*schema.Asset, error)
	Assets(ctx context.Context) ([]schema.Asset, error)
}

// Delivery reads published content.
type Delivery interface {
	Entries(ctx context.Context) ([]schema.Entry, error)
}

// AssetTransfer copies asset files to object storage.
type AssetTransfer interface {
	TransferAll(ctx context.Context, assets []schema.Asset, concurrency int) error
}

// Service runs full and incremental imports.
type Service struct {
	Naming     codec.Naming
	Snapshot   *schema.Snapshot
	Management Management
	Delivery   Delivery
	// Locator is the read path for published versions during incremental
	// imports.
	Locator locator.Locator
	DB      Database
	// Assets is optional. Without it asset files are not transferred.
	Assets  AssetTransfer
	Options importer.BatchOptions
	Logger  *slog.Logger
}

// Result summarizes an import.
type Result struct {
	Entries    int
	Statements []string
	Assets     int
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) importerConfig(loc locator.Locator) (importer.Config, error) {
	if s.Snapshot == nil {
		return importer.Config{}, ErrNoSchema
	}
	return importer.Config{
		Naming:       s.Naming,
		ContentTypes: s.Snapshot.ContentTypes,
		Locator:      loc,
		Logger:       s.logger(),
	}, nil
}

func (s *Service) run(ctx context.Context, cfg importer.Config, store *schema.Store, sources []importer.Source, dryRun bool) (*Result, error) {
	batch, err := importer.NewBatchImporter(cfg, store, s.Options).GenerateBatch(ctx, sources)
	if err != nil {
		return nil, err
	}

	n := len(sources)
	if sources == nil && store != nil {
		n = len(store.Entries)
	}
	result := &Result{Entries: n, Statements: batch.Statements}
	if dryRun || len(batch.Statements) == 0 {
		return result, nil
	}
	if err := s.DB.ExecAll(ctx, batch.Statements); err != nil {
		return nil, fmt.Errorf("importing into database: %w", err)
	}
	importer.ApplyPrunes(ctx, s.DB, batch.Prunes, s.logger())
	return result, nil
}

// ImportAll exports the whole space and upserts every entry. Published
// versions come from the delivery API, everything else is stored as a draft.
// Asset files are transferred afterwards when a transfer is configured.
func (s *Service) ImportAll(ctx context.Context, dryRun bool) (*Result, error) {
	if s.Snapshot == nil {
		return nil, ErrNoSchema
	}

	s.logger().Info("exporting content from the CMS")
	store, err := s.Management.FetchStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching store: %w", err)
	}
	published, err := s.Delivery.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching published entries: %w", err)
	}
	return s.importStore(ctx, store, locator.NewOffline(published, store.Assets), dryRun)
}

// ImportStore upserts every entry of an exported store. Published versions
// are looked up in the store itself.
func (s *Service) ImportStore(ctx context.Context, store *schema.Store, dryRun bool) (*Result, error) {
	// An export holds only the latest version of each entry, so an entry with
	// unpublished changes is stored with is_published TRUE and its draft
	// fields. Use ImportAll to keep the published fields.
	return s.importStore(ctx, store, locator.FromStore(store), dryRun)
}

func (s *Service) importStore(ctx context.Context, store *schema.Store, loc locator.Locator, dryRun bool) (*Result, error) {
	cfg, err := s.importerConfig(loc)
	if err != nil {
		return nil, err
	}

	s.logger().Info("creating SQL for entries", "entries", len(store.Entries))
	result, err := s.run(ctx, cfg, store, nil, dryRun)
	if err != nil {
		return nil, err
	}

	if !dryRun && s.Assets != nil {
		if err := s.Assets.TransferAll(ctx, store.Assets, s.Options.Concurrency); err != nil {
			return nil, fmt.Errorf("transferring assets: %w", err)
		}
		result.Assets = len(store.Assets)
	}
	return result, nil
}

// ImportEntries imports the latest version of each entry id, looking up
// published versions through the read path.
func (s *Service) ImportEntries(ctx context.Context, ids []string, dryRun bool) (*Result, error) {
	cfg, err := s.importerConfig(s.Locator)
	if err != nil {
		return nil, err
	}

	sources := make([]importer.Source, 0, len(ids))
	for _, id := range ids {
		entry, err := s.Management.Entry(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetching entry %s: %w", id, err)
		}
		sources = append(sources, importer.Source{Entry: *entry})
	}
	return s.run(ctx, cfg, nil, sources, dryRun)
}

// ImportEntry imports an entry delivered by a webhook. A publish payload is
// stored as published. Any other payload is stored as a draft unless the
// entry already has a published version.
func (s *Service) ImportEntry(ctx context.Context, entry schema.Entry, published bool) (*Result, error) {
	cfg, err := s.importerConfig(s.Locator)
	if err != nil {
		return nil, err
	}
	src := importer.Source{Entry: entry, FromWebhook: true, Published: published}
	return s.run(ctx, cfg, nil, []importer.Source{src}, false)
}

// RefreshEntry re-reads an entry from the management API and imports it as
// a webhook draft. Used for events whose payload carries no fields.
func (s *Service) RefreshEntry(ctx context.Context, id string) (*Result, error) {
	entry, err := s.Management.Entry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching entry %s: %w", id, err)
	}
	return s.ImportEntry(ctx, *entry, false)
}

// Delete flags the entry's row as deleted.
func (s *Service) Delete(ctx context.Context, entry schema.Entry) error {
	if s.Snapshot == nil {
		return ErrNoSchema
	}
	typeID := entry.ContentTypeID()
	if typeID == "" {
		return fmt.Errorf("entry %s has no content type", entry.Sys.ID)
	}
	if _, ok := s.Snapshot.ContentType(typeID); !ok {
		return &importer.MissingDefinitionError{ContentType: typeID}
	}
	table := s.Naming.TableName(typeID)
	if err := s.DB.MarkDeleted(ctx, table, entry.Sys.ID); err != nil {
		return err
	}
	s.logger().Info("entry marked deleted", "entry", entry.Sys.ID, "table", table)
	return nil
}

// ImportAssets transfers asset files for ids, or for every asset when ids
// is empty.
func (s *Service) ImportAssets(ctx context.Context, ids []string) (int, error) {
	if s.Assets == nil {
		return 0, errors.New("no asset buckets configured")
	}

	var list []schema.Asset
	if len(ids) == 0 {
		all, err := s.Management.Assets(ctx)
		if err != nil {
			return 0, fmt.Errorf("fetching assets: %w", err)
		}
		list = all
	} else {
		for _, id := range ids {
			a, err := s.Management.Asset(ctx, id)
			if err != nil {
				return 0, fmt.Errorf("fetching asset %s: %w", id, err)
			}
			list = append(list, *a)
		}
	}

	if err := s.Assets.TransferAll(ctx, list, s.Options.Concurrency); err != nil {
		return 0, err
	}
	return len(list), nil
}
