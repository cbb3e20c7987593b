package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

// Config is the application configuration.
type Config struct {
	Chunking  ChunkingConfig  `toml:"chunking"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Fetch     FetchConfig     `toml:"fetch"`
	Storage   StorageConfig   `toml:"storage"`
	Server    ServerConfig    `toml:"server"`
	Watch     WatchConfig     `toml:"watch"`
	Sources   []SourceConfig  `toml:"sources" validate:"dive"`
}

type ChunkingConfig struct {
	Size    int    `toml:"size" validate:"gt=0"`
	Overlap int    `toml:"overlap" validate:"gt=0,ltfield=Size"`
	Unit    string `toml:"unit" validate:"oneof=chars tokens"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider" validate:"oneof=hash ollama openai"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions" validate:"gte=0"`
	BaseURL    string `toml:"base_url" validate:"omitempty,url"`
	APIKeyEnv  string `toml:"api_key_env"` // Environment variable holding the API key.
	BatchSize  int    `toml:"batch_size" validate:"gte=0"`
}

type RetrievalConfig struct {
	TopK          int     `toml:"top_k" validate:"gt=0"`
	Metric        string  `toml:"metric" validate:"oneof=cosine dot euclidean"`
	Mode          string  `toml:"mode" validate:"oneof=semantic keyword hybrid"`
	MinScore      float64 `toml:"min_score"`
	ExcerptLength int     `toml:"excerpt_length" validate:"gt=0"`
}

type FetchConfig struct {
	Timeout           string  `toml:"timeout" validate:"duration"` // e.g. "10s"
	UserAgent         string  `toml:"user_agent"`
	MaxBodyBytes      int64   `toml:"max_body_bytes" validate:"gt=0"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gte=0"`
}

// TimeoutDuration returns the parsed fetch timeout.
func (f FetchConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 0
	}
	return d
}

type StorageConfig struct {
	// Path is the sqlite database file. Empty keeps everything in memory.
	Path string `toml:"path"`
}

type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port" validate:"gte=0,lte=65535"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WatchConfig struct {
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// SourceConfig is a curated source ingested by `kbase seed`.
type SourceConfig struct {
	Name string `toml:"name" validate:"required"`
	URL  string `toml:"url" validate:"required,url"`
}

// DefaultSources is the curated climate reading list.
var DefaultSources = []SourceConfig{
	{Name: "IPCC AR6 Summary", URL: "https://www.ipcc.ch/report/ar6/wg1/downloads/report/IPCC_AR6_WGI_SPM.pdf"},
	{Name: "NASA Climate Change", URL: "https://climate.nasa.gov/what-is-climate-change/"},
	{Name: "EPA Climate Indicators", URL: "https://www.epa.gov/climate-indicators"},
	{Name: "NOAA Climate Science", URL: "https://www.climate.gov/news-features/understanding-climate/climate-change-snow-and-ice"},
	{Name: "IEA Energy Transition", URL: "https://www.iea.org/topics/energy-transitions"},
}

// DefaultDir returns ~/.kbase.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".kbase"), nil
}

// DefaultConfig returns the built-in configuration. dir is the kbase data
// directory; the database lives inside it.
func DefaultConfig(dir string) *Config {
	return &Config{
		Chunking: ChunkingConfig{Size: 1000, Overlap: 200, Unit: "chars"},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Retrieval: RetrievalConfig{
			TopK:          3,
			Metric:        string(domain.MetricCosine),
			Mode:          string(domain.RetrievalSemantic),
			ExcerptLength: 240,
		},
		Fetch: FetchConfig{
			Timeout:           "10s",
			MaxBodyBytes:      20 << 20,
			RequestsPerSecond: 2,
		},
		Storage: StorageConfig{Path: filepath.Join(dir, "kbase.db")},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Watch:   WatchConfig{Include: []string{"**/*.{pdf,PDF}"}},
		Sources: append([]SourceConfig(nil), DefaultSources...),
	}
}

// Load reads path over the defaults, applies KBASE_* environment overrides
// and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig(filepath.Dir(path))

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	default:
		if err := Decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals TOML over cfg. Syntax errors are reported as ErrConfig.
func Decode(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("%w: line %d column %d: %s", domain.ErrConfig, row, col, derr.Error())
		}
		return fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KBASE_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("KBASE_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("KBASE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("KBASE_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints. Failures wrap ErrConfig and name the
// offending keys.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q", keyPath(fe.Namespace()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(msgs, "; "))
}

// keyPath turns "Config.chunking.size" into "chunking.size".
func keyPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}
