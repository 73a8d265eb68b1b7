package migrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ridoystarlord/discontented/generator"
	"github.com/ridoystarlord/discontented/loader"
	"github.com/ridoystarlord/discontented/schema"
)

// SchemaSource supplies the current content types of the CMS.
type SchemaSource interface {
	ContentTypes(ctx context.Context) ([]schema.ContentType, error)
}

// Service wires the migrator to the CMS and the migrations directory.
type Service struct {
	Source        SchemaSource
	Migrator      *Migrator
	SchemaFile    string
	MigrationsDir string
	Logger        *slog.Logger
	Now           func() time.Time
}

// Result describes a generated migration.
type Result struct {
	DDL      string
	File     string
	Snapshot schema.Snapshot
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Preview computes the pending migration without writing anything.
func (s *Service) Preview(ctx context.Context) (*Result, error) {
	old, err := loader.LoadSnapshot(s.SchemaFile)
	if err != nil {
		return nil, err
	}

	types, err := s.Source.ContentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch content types: %w", err)
	}

	ddl, next, err := s.Migrator.Migrate(old, schema.Snapshot{ContentTypes: types})
	if err != nil {
		return nil, err
	}
	return &Result{DDL: ddl, Snapshot: next}, nil
}

// Generate writes a migration file for the pending changes and then saves
// the new snapshot. Nothing is written when there are no changes or when
// the diff fails.
func (s *Service) Generate(ctx context.Context) (*Result, error) {
	res, err := s.Preview(ctx)
	if err != nil {
		return nil, err
	}
	if res.DDL == "" {
		s.logger().Info("schema unchanged, no migration generated")
		return res, nil
	}

	file, err := generator.WriteMigrationFile(s.MigrationsDir, res.DDL, s.now())
	if err != nil {
		return nil, err
	}
	res.File = file

	if err := loader.SaveSnapshot(s.SchemaFile, res.Snapshot); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	s.logger().Info("migration generated", "file", file, "contentTypes", len(res.Snapshot.ContentTypes))
	return res, nil
}
