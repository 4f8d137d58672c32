// Package config loads echoes settings from defaults, an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seckatie/echoes/internal/core"
)

const (
	configPathEnv      = "ECHOES_CONFIG"
	portEnv            = "PORT"
	frontendURLEnv     = "FRONTEND_URL"
	completionModeEnv  = "ECHOES_COMPLETION_MODE"
	snapshotVariantEnv = "ECHOES_SNAPSHOT_VARIANT"
	logLevelEnv        = "ECHOES_LOG_LEVEL"
)

// Config holds every setting the server needs.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Resurrect ResurrectConfig `yaml:"resurrect"`
	Store     StoreConfig     `yaml:"store"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logging   LoggingConfig   `yaml:"logging"`
	Preview   PreviewConfig   `yaml:"preview"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AllowedOrigins are exact origins allowed by CORS. Any
	// *.amplifyapp.com origin is always accepted.
	AllowedOrigins []string `yaml:"allowedOrigins"`
	// FrontendURL is appended to AllowedOrigins when set.
	FrontendURL     string        `yaml:"frontendUrl"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ArchiveConfig points at the archive index.
type ArchiveConfig struct {
	CDXEndpoint     string        `yaml:"cdxEndpoint"`
	SnapshotBaseURL string        `yaml:"snapshotBaseUrl"`
	Variant         string        `yaml:"variant"`
	Limit           int           `yaml:"limit"`
	Timeout         time.Duration `yaml:"timeout"`
}

// ResurrectConfig selects the deployment behaviour of create.
type ResurrectConfig struct {
	CompletionMode  string        `yaml:"completionMode"`
	CompletionDelay time.Duration `yaml:"completionDelay"`
}

// StoreConfig selects the record backend.
type StoreConfig struct {
	Driver string `yaml:"driver"`
}

// NotifyConfig sizes the notification hub.
type NotifyConfig struct {
	BufferSize int `yaml:"bufferSize"`
}

// LoggingConfig selects the log level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PreviewConfig bounds snapshot fetches for preview and page rendering.
type PreviewConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxResourceSize int64         `yaml:"maxResourceSize"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            3001,
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		Archive: ArchiveConfig{
			CDXEndpoint:     core.DefaultCDXEndpoint,
			SnapshotBaseURL: core.DefaultSnapshotBaseURL,
			Variant:         core.VariantWrapped,
			Limit:           core.DefaultSnapshotLimit,
			Timeout:         core.DefaultUpstreamTimeout,
		},
		Resurrect: ResurrectConfig{
			CompletionMode:  core.CompletionDeferred,
			CompletionDelay: core.DefaultCompletionDelay,
		},
		Store:   StoreConfig{Driver: "memory"},
		Notify:  NotifyConfig{BufferSize: 16},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Preview: PreviewConfig{
			Timeout:         core.DefaultResourceTimeout,
			MaxResourceSize: core.MaxResourceSize,
		},
	}
}

// Load reads path (or $ECHOES_CONFIG when path is empty) over the defaults
// and applies environment overrides. A missing path is not an error; an
// unreadable or malformed file is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: cannot read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: cannot parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(portEnv); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s %q: %w", portEnv, v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(frontendURLEnv); v != "" {
		c.Server.FrontendURL = v
	}
	if v := os.Getenv(completionModeEnv); v != "" {
		c.Resurrect.CompletionMode = v
	}
	if v := os.Getenv(snapshotVariantEnv); v != "" {
		c.Archive.Variant = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Origins returns the CORS allow-list including FrontendURL.
func (c Config) Origins() []string {
	out := make([]string, 0, len(c.Server.AllowedOrigins)+1)
	for _, o := range c.Server.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if fe := strings.TrimSpace(c.Server.FrontendURL); fe != "" {
		out = append(out, fe)
	}
	return out
}

// Addr is host:port for the listener.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Archive.CDXEndpoint == "" {
		errs = append(errs, errors.New("archive.cdxEndpoint is required"))
	}
	switch c.Archive.Variant {
	case core.VariantWrapped, core.VariantIdentity:
	default:
		errs = append(errs, fmt.Errorf("archive.variant must be %q or %q, got %q",
			core.VariantWrapped, core.VariantIdentity, c.Archive.Variant))
	}
	if c.Archive.Limit < 1 {
		errs = append(errs, fmt.Errorf("archive.limit must be positive, got %d", c.Archive.Limit))
	}
	switch c.Resurrect.CompletionMode {
	case core.CompletionDeferred, core.CompletionImmediate:
	default:
		errs = append(errs, fmt.Errorf("resurrect.completionMode must be %q or %q, got %q",
			core.CompletionDeferred, core.CompletionImmediate, c.Resurrect.CompletionMode))
	}
	if c.Resurrect.CompletionDelay < 0 {
		errs = append(errs, errors.New("resurrect.completionDelay must not be negative"))
	}
	switch strings.ToLower(c.Store.Driver) {
	case "", "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver))
	}
	return errors.Join(errs...)
}
