// Package config loads dmap configuration from a YAML file, DMAP_*
// environment variables and defaults, and validates it against an embedded
// CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/viper"
)

//go:embed schema.cue
var schemaCUE string

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config keys.
const (
	KeyBackend      = "backend"
	KeyStoreDriver  = "store.driver"
	KeyStorePath    = "store.path"
	KeyServerListen = "server.listen"
	KeyServerMode   = "server.mode"
	KeyLogLevel     = "log.level"
	KeyLogFormat    = "log.format"
)

// EnvPrefix is the prefix of environment overrides, e.g. DMAP_STORE_PATH.
const EnvPrefix = "DMAP"

// DefaultFileName is the config file looked up in the working directory
// when no explicit path is given.
const DefaultFileName = "dmap"

// Config is the full runtime configuration.
type Config struct {
	Backend string       `mapstructure:"backend" json:"backend"`
	Store   StoreConfig  `mapstructure:"store" json:"store"`
	Server  ServerConfig `mapstructure:"server" json:"server"`
	Log     LogConfig    `mapstructure:"log" json:"log"`
}

// StoreConfig selects the SQLite database.
type StoreConfig struct {
	Driver string `mapstructure:"driver" json:"driver"`
	Path   string `mapstructure:"path" json:"path"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Listen string `mapstructure:"listen" json:"listen"`
	Mode   string `mapstructure:"mode" json:"mode"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBackend, BackendSQLite)
	v.SetDefault(KeyStoreDriver, "sqlite3")
	v.SetDefault(KeyStorePath, "dmap.db")
	v.SetDefault(KeyServerListen, "127.0.0.1:8080")
	v.SetDefault(KeyServerMode, "release")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// New returns a viper instance with defaults and environment overrides
// configured. path names an explicit config file; empty means look for
// dmap.yaml in the working directory.
func New(path string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	return v
}

// Load reads configuration. A missing dmap.yaml is not an error; a missing
// explicit file is.
func Load(path string) (*Config, error) {
	return FromViper(New(path), path != "")
}

// FromViper reads the config file (if any), decodes and validates.
func FromViper(v *viper.Viper, requireFile bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if requireFile || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	val := ctx.Encode(c)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil)}
	}
	return nil
}

// ValidationError reports a config that does not satisfy the schema.
type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.TrimSpace(e.Details)
}
