// Package config provides configuration structures for the librarian.
// Settings are read from an optional YAML file, then overridden by LBR*
// environment variables, then completed with defaults.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendMinio = "minio"
)

// Config is the top-level configuration.
type Config struct {
	Library LibrarySettings `yaml:"library"`
	Server  ServerSettings  `yaml:"server"`
	Storage StorageSettings `yaml:"storage"`
	Logging LoggingSettings `yaml:"logging"`
	Metrics MetricsSettings `yaml:"metrics"`
	ISBN    ISBNSettings    `yaml:"isbn"`
}

// LibrarySettings controls the document store and its search engine.
type LibrarySettings struct {
	Root           string        `yaml:"root"`             // Directory holding the snapshot and, for the local backend, the files
	SnapshotFile   string        `yaml:"snapshot_file"`    // Snapshot name relative to Root
	GramSize       int           `yaml:"gram_size"`        // Length of index grams in bytes
	SearchLimit    int           `yaml:"search_limit"`     // Results returned when the caller gives no limit
	MaxSearchLimit int           `yaml:"max_search_limit"` // Upper bound for caller supplied limits
	LockTimeout    time.Duration `yaml:"lock_timeout"`     // How long a caller waits for the shared library lock
}

// SnapshotPath returns the absolute location of the snapshot file.
func (s LibrarySettings) SnapshotPath() string {
	if filepath.IsAbs(s.SnapshotFile) {
		return s.SnapshotFile
	}
	return filepath.Join(s.Root, s.SnapshotFile)
}

// ServerSettings holds HTTP server settings.
type ServerSettings struct {
	Host            string        `yaml:"host"` // Interface to listen on; defaults to loopback
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes int64         `yaml:"max_request_bytes"`
	RateLimit       float64       `yaml:"rate_limit"` // Requests per second; 0 disables limiting
	RateBurst       int           `yaml:"rate_burst"`
	ImportDirs      []string      `yaml:"import_dirs"`  // Directories POST /documents/import may read from; empty disables it
	CORSOrigins     []string      `yaml:"cors_origins"` // Origins allowed to call the API from a browser; "*" allows any
}

// Addr returns the listen address.
func (s ServerSettings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StorageSettings selects where document files are kept.
type StorageSettings struct {
	Backend string        `yaml:"backend"`
	Minio   MinioSettings `yaml:"minio"`
}

// MinioSettings describes an S3-compatible bucket.
type MinioSettings struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LoggingSettings controls structured logging level and output format.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsSettings controls the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ISBNSettings configures the Open Library metadata lookup.
type ISBNSettings struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{
		Metrics: MetricsSettings{Enabled: true},
		ISBN:    ISBNSettings{Enabled: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

// DefaultRoot is ~/.library, or .library when the home directory is unknown.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".library"
	}
	return filepath.Join(home, ".library")
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and fills in defaults for anything left unset.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Library.Root == "" {
		c.Library.Root = DefaultRoot()
	}
	if c.Library.SnapshotFile == "" {
		c.Library.SnapshotFile = "index.json"
	}
	if c.Library.GramSize == 0 {
		c.Library.GramSize = 3
	}
	if c.Library.SearchLimit == 0 {
		c.Library.SearchLimit = 10
	}
	if c.Library.MaxSearchLimit == 0 {
		c.Library.MaxSearchLimit = 100
	}
	if c.Library.LockTimeout == 0 {
		c.Library.LockTimeout = 5 * time.Second
	}

	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.MaxRequestBytes == 0 {
		c.Server.MaxRequestBytes = 512 << 20
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 20
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.ISBN.BaseURL == "" {
		c.ISBN.BaseURL = "https://openlibrary.org"
	}
	if c.ISBN.Timeout == 0 {
		c.ISBN.Timeout = 10 * time.Second
	}
}

// Validate returns every problem found in the configuration.
func (c *Config) Validate() []string {
	var errors []string

	if c.Library.GramSize < 1 {
		errors = append(errors, "library.gram_size must be at least 1")
	}
	if c.Library.SearchLimit < 1 {
		errors = append(errors, "library.search_limit must be at least 1")
	}
	if c.Library.MaxSearchLimit < c.Library.SearchLimit {
		errors = append(errors, "library.max_search_limit must not be smaller than library.search_limit")
	}
	if c.Library.LockTimeout < 0 {
		errors = append(errors, "library.lock_timeout must not be negative")
	}
	if strings.ContainsAny(c.Library.SnapshotFile, `/\`) && !filepath.IsAbs(c.Library.SnapshotFile) {
		errors = append(errors, "library.snapshot_file must be a file name or an absolute path")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errors = append(errors, "server.rate_limit must not be negative")
	}
	for _, dir := range c.Server.ImportDirs {
		if !filepath.IsAbs(dir) {
			errors = append(errors, fmt.Sprintf("server.import_dirs entry '%s' must be an absolute path", dir))
		}
	}

	switch c.Storage.Backend {
	case BackendLocal:
	case BackendMinio:
		if c.Storage.Minio.Endpoint == "" {
			errors = append(errors, "storage.minio.endpoint is required for the minio backend")
		}
		if c.Storage.Minio.Bucket == "" {
			errors = append(errors, "storage.minio.bucket is required for the minio backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("storage.backend '%s' is not one of local, minio", c.Storage.Backend))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("logging.format '%s' is not one of text, json", c.Logging.Format))
	}

	return errors
}

// applyEnvOverrides reads LBR* environment variables and overrides the
// corresponding config fields. LBRPATH selects the library root.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LBRPATH"); v != "" {
		cfg.Library.Root = v
	}
	if v := os.Getenv("LBR_GRAM_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Library.GramSize = n
		}
	}
	if v := os.Getenv("LBR_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Library.SearchLimit = n
		}
	}
	if v := os.Getenv("LBR_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Library.LockTimeout = d
		}
	}
	if v := os.Getenv("LBR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LBR_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LBR_IMPORT_DIRS"); v != "" {
		cfg.Server.ImportDirs = filepath.SplitList(v)
	}
	if v := os.Getenv("LBR_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("LBR_MINIO_ENDPOINT"); v != "" {
		cfg.Storage.Minio.Endpoint = v
	}
	if v := os.Getenv("LBR_MINIO_ACCESS_KEY"); v != "" {
		cfg.Storage.Minio.AccessKey = v
	}
	if v := os.Getenv("LBR_MINIO_SECRET_KEY"); v != "" {
		cfg.Storage.Minio.SecretKey = v
	}
	if v := os.Getenv("LBR_MINIO_BUCKET"); v != "" {
		cfg.Storage.Minio.Bucket = v
	}
	if v := os.Getenv("LBR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LBR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
