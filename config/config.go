// Package config resolves dcf settings from a config file, DCF_* environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix         = "DCF"
	DefaultConfigName = "dcf"
)

type Contentful struct {
	SpaceID         string `mapstructure:"spaceId" yaml:"spaceId"`
	EnvironmentID   string `mapstructure:"environmentId" yaml:"environmentId"`
	DeliveryToken   string `mapstructure:"deliveryToken" yaml:"deliveryToken"`
	ManagementToken string `mapstructure:"managementToken" yaml:"managementToken"`
	DeliveryURL     string `mapstructure:"deliveryUrl" yaml:"deliveryUrl,omitempty"`
	ManagementURL   string `mapstructure:"managementUrl" yaml:"managementUrl,omitempty"`
}

// Bucket is an S3-compatible destination for asset files.
type Bucket struct {
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Bucket       string `mapstructure:"bucket" yaml:"bucket"`
	Region       string `mapstructure:"region" yaml:"region"`
	AccessKey    string `mapstructure:"accessKey" yaml:"accessKey"`
	AccessSecret string `mapstructure:"accessSecret" yaml:"accessSecret"`
}

type Import struct {
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency"`
	PageSize         int           `mapstructure:"pageSize" yaml:"pageSize"`
	ProgressInterval time.Duration `mapstructure:"progressInterval" yaml:"progressInterval"`
}

type Server struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type Config struct {
	TablePrefix         string            `mapstructure:"tablePrefix" yaml:"tablePrefix"`
	TableMap            map[string]string `mapstructure:"-" yaml:"tableMap,omitempty"`
	DefaultLocalization string            `mapstructure:"defaultLocalization" yaml:"defaultLocalization"`
	SchemaFile          string            `mapstructure:"schemaFile" yaml:"schemaFile"`
	MigrationDirectory  string            `mapstructure:"migrationDirectory" yaml:"migrationDirectory"`
	DatabaseURL         string            `mapstructure:"databaseUrl" yaml:"databaseUrl"`
	PrintSQL            bool              `mapstructure:"printSqlQueries" yaml:"printSqlQueries"`
	Contentful          Contentful        `mapstructure:"contentful" yaml:"contentful"`
	AssetBuckets        []Bucket          `mapstructure:"assetBuckets" yaml:"assetBuckets,omitempty"`
	Import              Import            `mapstructure:"import" yaml:"import"`
	Server              Server            `mapstructure:"server" yaml:"server"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tablePrefix", "")
	v.SetDefault("defaultLocalization", codec.DefaultLocale)
	v.SetDefault("schemaFile", "migrations/schema.json")
	v.SetDefault("migrationDirectory", "migrations")
	v.SetDefault("printSqlQueries", false)
	v.SetDefault("contentful.spaceId", "")
	v.SetDefault("contentful.environmentId", "master")
	v.SetDefault("contentful.deliveryToken", "")
	v.SetDefault("contentful.managementToken", "")
	v.SetDefault("contentful.deliveryUrl", "")
	v.SetDefault("contentful.managementUrl", "")
	v.SetDefault("import.concurrency", 16)
	v.SetDefault("import.pageSize", 1000)
	v.SetDefault("import.progressInterval", 10*time.Second)
	v.SetDefault("server.addr", ":3001")
}

// Load reads the config file at path, or DCF_CONFIG, or ./dcf.{yaml,json}
// when path is empty. A missing default file is not an error; an explicit
// path that cannot be read is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("databaseUrl", "DCF_DATABASEURL", "DCF_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.File != "" {
		tableMap, err := readTableMap(cfg.File)
		if err != nil {
			return nil, err
		}
		cfg.TableMap = tableMap
	}
	return &cfg, nil
}

// readTableMap decodes tableMap straight from the file. Viper lowercases map
// keys, and content type ids are case sensitive.
func readTableMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var raw struct {
		TableMap map[string]string `yaml:"tableMap"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding tableMap: %w", err)
	}
	return raw.TableMap, nil
}

// Naming returns the identifier rules for this config.
func (c *Config) Naming() codec.Naming {
	return codec.Naming{
		TablePrefix:   c.TablePrefix,
		TableMap:      c.TableMap,
		DefaultLocale: c.DefaultLocalization,
	}
}

// RequireContentful checks the settings needed to reach the CMS.
func (c *Config) RequireContentful() error {
	var missing []string
	if c.Contentful.SpaceID == "" {
		missing = append(missing, "contentful.spaceId")
	}
	if c.Contentful.ManagementToken == "" {
		missing = append(missing, "contentful.managementToken")
	}
	if c.Contentful.DeliveryToken == "" {
		missing = append(missing, "contentful.deliveryToken")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Redacted returns a copy with tokens and secrets masked.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Contentful.DeliveryToken = mask(c.Contentful.DeliveryToken)
	c.Contentful.ManagementToken = mask(c.Contentful.ManagementToken)
	c.DatabaseURL = mask(c.DatabaseURL)
	buckets := make([]Bucket, len(c.AssetBuckets))
	for i, b := range c.AssetBuckets {
		b.AccessSecret = mask(b.AccessSecret)
		buckets[i] = b
	}
	c.AssetBuckets = buckets
	return c
}

// YAML renders the config.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
