package migrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/loader"
	"github.com/ridoystarlord/discontented/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	types []schema.ContentType
	err   error
}

func (f *fakeSource) ContentTypes(context.Context) ([]schema.ContentType, error) {
	return f.types, f.err
}

func newService(t *testing.T, src SchemaSource) *Service {
	dir := t.TempDir()
	return &Service{
		Source:        src,
		Migrator:      New(codec.Naming{}),
		SchemaFile:    filepath.Join(dir, "migrations", "schema.json"),
		MigrationsDir: filepath.Join(dir, "migrations"),
		Now:           func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) },
	}
}

func TestServiceGenerate(t *testing.T) {
	src := &fakeSource{types: []schema.ContentType{blogPost()}}
	svc := newService(t, src)

	res, err := svc.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(svc.MigrationsDir, "20240309_140507.sql"), res.File)

	content, err := os.ReadFile(res.File)
	require.NoError(t, err)
	assert.Contains(t, string(content), `CREATE TABLE "blog_posts"`)

	snap, err := loader.LoadSnapshot(svc.SchemaFile)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Metadata.HasLinkOrder)
	assert.Len(t, snap.ContentTypes, 1)

	res, err = svc.Generate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.DDL)
	assert.Empty(t, res.File)
}

func TestServiceGenerateKeepsSnapshotOnFailure(t *testing.T) {
	src := &fakeSource{types: []schema.ContentType{blogPost()}}
	svc := newService(t, src)
	_, err := svc.Generate(context.Background())
	require.NoError(t, err)

	changed := blogPost()
	changed.Fields[2].Type = schema.Boolean
	src.types = []schema.ContentType{changed}
	svc.Now = func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }

	_, err = svc.Generate(context.Background())
	require.Error(t, err)

	snap, err := loader.LoadSnapshot(svc.SchemaFile)
	require.NoError(t, err)
	field, ok := snap.ContentTypes[0].Field("views")
	require.True(t, ok)
	assert.Equal(t, schema.Integer, field.Type)

	entries, err := os.ReadDir(svc.MigrationsDir)
	require.NoError(t, err)
	var sqlFiles int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".sql" {
			sqlFiles++
		}
	}
	assert.Equal(t, 1, sqlFiles)
}

func TestServicePreviewDoesNotWrite(t *testing.T) {
	svc := newService(t, &fakeSource{types: []schema.ContentType{blogPost()}})

	res, err := svc.Preview(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.DDL)

	_, err = os.Stat(svc.SchemaFile)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestServiceSourceError(t *testing.T) {
	svc := newService(t, &fakeSource{err: errors.New("boom")})

	_, err := svc.Generate(context.Background())
	assert.ErrorContains(t, err, "boom")
}
