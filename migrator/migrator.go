// Package migrator turns two schema snapshots into a forward-only migration.
package migrator

import (
	"fmt"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/diff"
	"github.com/ridoystarlord/discontented/generator"
	"github.com/ridoystarlord/discontented/schema"
)

type Migrator struct {
	generator generator.Generator
}

func New(naming codec.Naming) *Migrator {
	return &Migrator{generator: generator.New(naming)}
}

// Migrate returns the DDL that moves a database from old to next along with
// the snapshot to persist once the DDL is written. An empty string means
// there is nothing to do. A nil old snapshot is treated as the first
// migration.
func (m *Migrator) Migrate(old *schema.Snapshot, next schema.Snapshot) (string, schema.Snapshot, error) {
	ops, err := diff.DiffSchemas(old, next)
	if err != nil {
		return "", schema.Snapshot{}, err
	}

	stmts, err := m.generator.GenerateSQL(ops)
	if err != nil {
		return "", schema.Snapshot{}, fmt.Errorf("generate SQL: %w", err)
	}

	next.Metadata = schema.Metadata{HasLinkOrder: true, HasUniqueLinkIndices: true}
	return generator.Render(stmts), next, nil
}
