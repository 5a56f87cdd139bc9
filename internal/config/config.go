package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Storage   StorageConfig   `mapstructure:"storage"`
	VLM       VLMConfig       `mapstructure:"vlm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	WebSearch WebSearchConfig `mapstructure:"websearch"`
	Thumbnail ThumbnailConfig `mapstructure:"thumbnail"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Search    SearchConfig    `mapstructure:"search"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
}

type ServerConfig struct {
	Port           int        `mapstructure:"port"`
	Mode           string     `mapstructure:"mode"`
	MaxUploadBytes int64      `mapstructure:"max_upload_bytes"`
	CORS           CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

// Enabled reports whether a vector index is configured.
func (c QdrantConfig) Enabled() bool {
	return c.Host != ""
}

// StorageConfig configures the S3-compatible blob store.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; detected from endpoint when empty
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type VLMConfig struct {
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig configures the multimodal embedding service. An empty APIKey disables it.
type EmbeddingConfig struct {
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether embeddings can be requested.
func (c EmbeddingConfig) Enabled() bool {
	return c.APIKey != ""
}

// GeocodingConfig configures the forward geocoder and its client-side rate limit.
type GeocodingConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func (c GeocodingConfig) Enabled() bool {
	return c.APIKey != ""
}

type WebSearchConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxResults  int           `mapstructure:"max_results"`
	SearchDepth string        `mapstructure:"search_depth"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (c WebSearchConfig) Enabled() bool {
	return c.APIKey != ""
}

type ThumbnailConfig struct {
	MaxWidth  int `mapstructure:"max_width"`
	MaxHeight int `mapstructure:"max_height"`
	Quality   int `mapstructure:"quality"`
}

type PipelineConfig struct {
	// ConcurrentEmbedding overlaps the image embedding request with extraction.
	ConcurrentEmbedding bool `mapstructure:"concurrent_embedding"`
	// DefaultMediaType is assumed when a caller does not supply one.
	DefaultMediaType string `mapstructure:"default_media_type"`
}

type SearchConfig struct {
	DefaultLimit   int     `mapstructure:"default_limit"`
	MaxLimit       int     `mapstructure:"max_limit"`
	ScoreThreshold float32 `mapstructure:"score_threshold"`
}

// IngestConfig controls directory batch ingestion from the CLI.
type IngestConfig struct {
	Workers        int  `mapstructure:"workers"`
	SkipDuplicates bool `mapstructure:"skip_duplicates"`
}

// Load reads configuration from configPath (or ./configs/config.yaml), .env and the environment.
// Parameters:
//   - configPath: explicit config file; empty searches ./configs and the working directory.
//
// Returns:
//   - *Config: merged configuration.
//   - error: non-nil if the file exists but cannot be read or decoded.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/shotlens.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.dbname", "shotlens")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "screenshots")

	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucket", "screenshots")

	v.SetDefault("vlm.model", "gpt-4o")
	v.SetDefault("vlm.base_url", "https://api.openai.com/v1")
	v.SetDefault("vlm.max_tokens", 2048)
	v.SetDefault("vlm.timeout", 90*time.Second)

	v.SetDefault("embedding.model", "voyage-multimodal-3")
	v.SetDefault("embedding.base_url", "https://api.voyageai.com/v1")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("geocoding.base_url", "https://api.opencagedata.com")
	v.SetDefault("geocoding.rate_per_second", 1.0)
	v.SetDefault("geocoding.burst", 1)
	v.SetDefault("geocoding.timeout", 10*time.Second)

	v.SetDefault("websearch.base_url", "https://api.tavily.com")
	v.SetDefault("websearch.max_results", 5)
	v.SetDefault("websearch.search_depth", "basic")
	v.SetDefault("websearch.timeout", 20*time.Second)

	v.SetDefault("thumbnail.max_width", 400)
	v.SetDefault("thumbnail.max_height", 400)
	v.SetDefault("thumbnail.quality", 80)

	v.SetDefault("pipeline.concurrent_embedding", false)
	v.SetDefault("pipeline.default_media_type", "image/jpeg")

	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 50)
	v.SetDefault("search.score_threshold", 0.0)

	v.SetDefault("ingest.workers", 2)
	v.SetDefault("ingest.skip_duplicates", true)
}

// bindEnv maps conventional variable names onto config keys, mostly for secrets.
func bindEnv(v *viper.Viper) {
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("storage.region", "S3_REGION")
	v.BindEnv("storage.use_ssl", "S3_USE_SSL")
	v.BindEnv("storage.public_url", "S3_PUBLIC_URL")
	v.BindEnv("vlm.api_key", "VLM_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("vlm.base_url", "VLM_BASE_URL")
	v.BindEnv("vlm.model", "VLM_MODEL")
	v.BindEnv("embedding.api_key", "VOYAGE_API_KEY")
	v.BindEnv("geocoding.api_key", "OPENCAGE_API_KEY")
	v.BindEnv("websearch.api_key", "TAVILY_API_KEY")
}

// Validate checks the keys every binary needs. Optional adapters are only
// checked when enabled.
func (c *Config) Validate() error {
	if c.VLM.APIKey == "" {
		return errors.New("vlm.api_key is required (set VLM_API_KEY)")
	}
	if c.VLM.Model == "" {
		return errors.New("vlm.model is required")
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket is required")
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if c.Embedding.Enabled() && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Thumbnail.MaxWidth <= 0 || c.Thumbnail.MaxHeight <= 0 {
		return fmt.Errorf("thumbnail bounds must be positive, got %dx%d", c.Thumbnail.MaxWidth, c.Thumbnail.MaxHeight)
	}
	if c.Geocoding.Enabled() && c.Geocoding.RatePerSecond <= 0 {
		return errors.New("geocoding.rate_per_second must be positive")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search limits invalid: default %d, max %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}
