package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Extractor backends.
const (
	BackendONNX   = "onnx"
	BackendOpenAI = "openai"
)

// Storage drivers.
const (
	DriverLocal = "local"
	DriverMinIO = "minio"
)

// Config holds the photomatch service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Storage   StorageConfig   `yaml:"storage"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Events    EventsConfig    `yaml:"events"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. Empty APIKeys disables protection.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// DatabaseConfig holds the SQLite catalog settings.
type DatabaseConfig struct {
	Path          string `yaml:"path"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

// CacheConfig holds the optional Redis/Valkey vector cache settings.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLHours         int      `yaml:"ttl_hours"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ExtractorConfig selects and configures the feature extractor.
type ExtractorConfig struct {
	Backend        string       `yaml:"backend"` // onnx, openai
	Dimensions     int          `yaml:"dimensions"`
	MaxConcurrency int          `yaml:"max_concurrency"`
	ONNX           ONNXConfig   `yaml:"onnx"`
	OpenAI         OpenAIConfig `yaml:"openai"`
}

// ONNXConfig holds the local ONNX Runtime backend settings.
type ONNXConfig struct {
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`
	InputName   string `yaml:"input_name"`
	OutputName  string `yaml:"output_name"`
}

// OpenAIConfig holds the OpenAI-compatible remote backend settings.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// StorageConfig holds image file storage settings.
type StorageConfig struct {
	Driver       string      `yaml:"driver"` // local, minio
	UploadPrefix string      `yaml:"upload_prefix"`
	Local        LocalConfig `yaml:"local"`
	MinIO        MinIOConfig `yaml:"minio"`
}

// LocalConfig holds disk storage settings.
type LocalConfig struct {
	Root string `yaml:"root"`
}

// MinIOConfig holds object storage settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// IngestConfig holds photo processing and archive limits.
type IngestConfig struct {
	MaxWidth     int `yaml:"max_width"`
	JPEGQuality  int `yaml:"jpeg_quality"`
	MaxArchiveMB int `yaml:"max_archive_mb"`
}

// SearchConfig holds recognition top-K limits.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
	MaxK     int `yaml:"max_k"`
}

// CatalogConfig holds listing pagination.
type CatalogConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// EventsConfig holds the Kafka catalog event publisher settings.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 64
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/photomatch.db"
	}
	if c.Database.BusyTimeoutMS <= 0 {
		c.Database.BusyTimeoutMS = 5000
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "photomatch:"
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 720
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	c.applyExtractorDefaults()
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverLocal
	}
	if c.Storage.UploadPrefix == "" {
		c.Storage.UploadPrefix = "uploads"
	}
	if c.Storage.Local.Root == "" {
		c.Storage.Local.Root = "."
	}
	if c.Ingest.MaxWidth <= 0 {
		c.Ingest.MaxWidth = 800
	}
	if c.Ingest.JPEGQuality == 0 {
		c.Ingest.JPEGQuality = 85
	}
	if c.Ingest.MaxArchiveMB <= 0 {
		c.Ingest.MaxArchiveMB = 512
	}
	if c.Search.DefaultK <= 0 {
		c.Search.DefaultK = 5
	}
	if c.Search.MaxK <= 0 {
		c.Search.MaxK = 50
	}
	if c.Catalog.DefaultPageSize <= 0 {
		c.Catalog.DefaultPageSize = 20
	}
	if c.Catalog.MaxPageSize <= 0 {
		c.Catalog.MaxPageSize = 100
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "photomatch.catalog"
	}
}

func (c *Config) applyExtractorDefaults() {
	e := &c.Extractor
	if e.Backend == "" {
		e.Backend = BackendONNX
	}
	if e.Dimensions == 0 {
		e.Dimensions = 576
	}
	if e.MaxConcurrency <= 0 {
		e.MaxConcurrency = 2
	}
	if e.ONNX.InputName == "" {
		e.ONNX.InputName = "input"
	}
	if e.ONNX.OutputName == "" {
		e.ONNX.OutputName = "output"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache is enabled")
	}
	if err := c.Extractor.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if c.Ingest.JPEGQuality < 1 || c.Ingest.JPEGQuality > 100 {
		return fmt.Errorf("ingest.jpeg_quality must be between 1 and 100, got %d", c.Ingest.JPEGQuality)
	}
	if c.Search.DefaultK > c.Search.MaxK {
		return fmt.Errorf("search.default_k (%d) exceeds search.max_k (%d)", c.Search.DefaultK, c.Search.MaxK)
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events.brokers is required when events are enabled")
	}
	return nil
}

func (e *ExtractorConfig) validate() error {
	if e.Dimensions <= 0 {
		return fmt.Errorf("extractor.dimensions must be positive, got %d", e.Dimensions)
	}
	switch e.Backend {
	case BackendONNX:
		if e.ONNX.ModelPath == "" {
			return fmt.Errorf("extractor.onnx.model_path is required for the onnx backend")
		}
	case BackendOpenAI:
		if e.OpenAI.BaseURL == "" || e.OpenAI.Model == "" {
			return fmt.Errorf("extractor.openai.base_url and extractor.openai.model are required for the openai backend")
		}
	default:
		return fmt.Errorf("extractor.backend must be %q or %q, got %q", BackendONNX, BackendOpenAI, e.Backend)
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Driver {
	case DriverLocal:
	case DriverMinIO:
		if s.MinIO.Endpoint == "" || s.MinIO.Bucket == "" {
			return fmt.Errorf("storage.minio.endpoint and storage.minio.bucket are required for the minio driver")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverLocal, DriverMinIO, s.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
