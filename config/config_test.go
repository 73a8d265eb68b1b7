package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "dcf.yaml", `
tablePrefix: cf_
tableMap:
  blogPost: articles
contentful:
  spaceId: space1
  deliveryToken: cda
  managementToken: cma
assetBuckets:
  - bucket: media
    region: eu-west-1
    accessKey: AK
    accessSecret: SECRET
import:
  concurrency: 4
  progressInterval: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "cf_", cfg.TablePrefix)
	assert.Equal(t, map[string]string{"blogPost": "articles"}, cfg.TableMap)
	assert.Equal(t, "space1", cfg.Contentful.SpaceID)
	assert.Equal(t, "master", cfg.Contentful.EnvironmentID)
	assert.Equal(t, 4, cfg.Import.Concurrency)
	assert.Equal(t, 1000, cfg.Import.PageSize)
	assert.Equal(t, 2*time.Second, cfg.Import.ProgressInterval)
	require.Len(t, cfg.AssetBuckets, 1)
	assert.Equal(t, "media", cfg.AssetBuckets[0].Bucket)
	assert.NoError(t, cfg.RequireContentful())

	naming := cfg.Naming()
	assert.Equal(t, "cf_articles", naming.TableName("blogPost"))
	assert.Equal(t, "en-US", naming.Locale())
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "dcf.json", `{"schemaFile": "schema/current.json", "tableMap": {"pageSection": "sections"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "schema/current.json", cfg.SchemaFile)
	assert.Equal(t, "migrations", cfg.MigrationDirectory)
	assert.Equal(t, map[string]string{"pageSection": "sections"}, cfg.TableMap)
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "dcf.yaml", "contentful:\n  spaceId: from-file\n")
	t.Setenv("DCF_CONTENTFUL_SPACEID", "from-env")
	t.Setenv("DATABASE_URL", "postgres://localhost/dcf")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Contentful.SpaceID)
	assert.Equal(t, "postgres://localhost/dcf", cfg.DatabaseURL)
}

func TestConfigFromEnvPath(t *testing.T) {
	path := writeFile(t, "custom.yaml", "tablePrefix: x_\n")
	t.Setenv("DCF_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "x_", cfg.TablePrefix)
}

func TestExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRequireContentful(t *testing.T) {
	cfg := &Config{Contentful: Contentful{SpaceID: "s"}}
	err := cfg.RequireContentful()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contentful.managementToken, contentful.deliveryToken")
}

func TestRedactedYAML(t *testing.T) {
	cfg := Config{
		DatabaseURL:  "postgres://user:pw@host/db",
		Contentful:   Contentful{SpaceID: "s", ManagementToken: "secret"},
		AssetBuckets: []Bucket{{Bucket: "b", AccessSecret: "shh"}},
	}

	out, err := cfg.Redacted().YAML()
	require.NoError(t, err)

	assert.NotContains(t, string(out), "secret")
	assert.NotContains(t, string(out), "shh")
	assert.NotContains(t, string(out), "pw@host")
	assert.Contains(t, string(out), "spaceId: s")
	assert.Equal(t, "shh", cfg.AssetBuckets[0].AccessSecret)
}
