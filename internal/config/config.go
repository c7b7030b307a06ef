package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Snapshot backends.
const (
	BackendFile     = "file"
	BackendDynamoDB = "dynamodb"
	BackendS3       = "s3"
)

type Config struct {
	Environment string
	RunLocal    bool
	Server      ServerConfig
	Market      MarketConfig
	Snapshot    SnapshotConfig
	Sweep       SweepConfig
	AWS         AWSConfig
}

type ServerConfig struct {
	Port int
}

type MarketConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type SnapshotConfig struct {
	Backend  string
	Path     string
	Table    string
	Bucket   string
	Object   string
	Interval time.Duration
	S3       S3Config
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

type SweepConfig struct {
	Interval    time.Duration
	Concurrency int
}

type AWSConfig struct {
	Region              string
	Endpoint            string
	TransitionsQueueURL string
	MetricsNamespace    string
}

func Load() (Config, error) {
	return load(true)
}

// LoadForTool loads config for CLI commands that never call the marketplace.
func LoadForTool() (Config, error) {
	return load(false)
}

func load(requireToken bool) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("import_env", "")
	v.SetDefault("run_local", false)
	v.SetDefault("import_port", 8000)
	v.SetDefault("market_base_url", "https://kaspi.kz/shop/api")
	v.SetDefault("market_api_token", "")
	v.SetDefault("kaspi_api", "")
	v.SetDefault("market_timeout", 20*time.Second)
	v.SetDefault("snapshot_backend", BackendFile)
	v.SetDefault("snapshot_path", "products.json")
	v.SetDefault("snapshot_table", "")
	v.SetDefault("snapshot_bucket", "")
	v.SetDefault("snapshot_object", "products.json")
	v.SetDefault("snapshot_interval", time.Minute)
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_use_ssl", true)
	v.SetDefault("s3_region", "")
	v.SetDefault("sweep_interval", 30*time.Second)
	v.SetDefault("sweep_concurrency", 8)
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("aws_endpoint_override", "")
	v.SetDefault("transitions_queue_url", "")
	v.SetDefault("metrics_namespace", "")

	port := v.GetInt("import_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid IMPORT_PORT: %d", port)
	}

	timeout := v.GetDuration("market_timeout")
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	sweepInterval := v.GetDuration("sweep_interval")
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	saveInterval := v.GetDuration("snapshot_interval")
	if saveInterval <= 0 {
		saveInterval = time.Minute
	}
	concurrency := v.GetInt("sweep_concurrency")
	if concurrency <= 0 {
		concurrency = 8
	}
	if concurrency > 64 {
		concurrency = 64
	}

	token := strings.TrimSpace(v.GetString("market_api_token"))
	if token == "" {
		token = strings.TrimSpace(v.GetString("kaspi_api"))
	}

	cfg := Config{
		Environment: strings.TrimSpace(v.GetString("import_env")),
		RunLocal:    v.GetBool("run_local"),
		Server:      ServerConfig{Port: port},
		Market: MarketConfig{
			BaseURL: strings.TrimSpace(v.GetString("market_base_url")),
			Token:   token,
			Timeout: timeout,
		},
		Snapshot: SnapshotConfig{
			Backend:  strings.ToLower(strings.TrimSpace(v.GetString("snapshot_backend"))),
			Path:     strings.TrimSpace(v.GetString("snapshot_path")),
			Table:    strings.TrimSpace(v.GetString("snapshot_table")),
			Bucket:   strings.TrimSpace(v.GetString("snapshot_bucket")),
			Object:   strings.TrimSpace(v.GetString("snapshot_object")),
			Interval: saveInterval,
			S3: S3Config{
				Endpoint:  strings.TrimSpace(v.GetString("s3_endpoint")),
				AccessKey: strings.TrimSpace(v.GetString("s3_access_key")),
				SecretKey: strings.TrimSpace(v.GetString("s3_secret_key")),
				UseSSL:    v.GetBool("s3_use_ssl"),
				Region:    strings.TrimSpace(v.GetString("s3_region")),
			},
		},
		Sweep: SweepConfig{
			Interval:    sweepInterval,
			Concurrency: concurrency,
		},
		AWS: AWSConfig{
			Region:              strings.TrimSpace(v.GetString("aws_region")),
			Endpoint:            strings.TrimSpace(v.GetString("aws_endpoint_override")),
			TransitionsQueueURL: strings.TrimSpace(v.GetString("transitions_queue_url")),
			MetricsNamespace:    strings.TrimSpace(v.GetString("metrics_namespace")),
		},
	}

	switch cfg.Snapshot.Backend {
	case BackendFile:
		if cfg.Snapshot.Path == "" {
			cfg.Snapshot.Path = "products.json"
		}
	case BackendDynamoDB:
		if cfg.Snapshot.Table == "" {
			return Config{}, fmt.Errorf("SNAPSHOT_TABLE is required for the dynamodb snapshot backend")
		}
	case BackendS3:
		if cfg.Snapshot.Bucket == "" || cfg.Snapshot.S3.Endpoint == "" {
			return Config{}, fmt.Errorf("SNAPSHOT_BUCKET and S3_ENDPOINT are required for the s3 snapshot backend")
		}
	default:
		return Config{}, fmt.Errorf("invalid SNAPSHOT_BACKEND: %q", cfg.Snapshot.Backend)
	}

	if requireToken && cfg.Market.Token == "" {
		if !cfg.IsLocalDevelopment() {
			return Config{}, fmt.Errorf("MARKET_API_TOKEN is required outside local/dev environments")
		}
		cfg.Market.Token = "local-dev-token"
	}

	return cfg, nil
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(c.Environment) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c Config) NeedsAWS() bool {
	return c.Snapshot.Backend == BackendDynamoDB || c.AWS.TransitionsQueueURL != "" || c.AWS.MetricsNamespace != ""
}

// Addr is the local listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
