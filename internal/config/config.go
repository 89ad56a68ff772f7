// Package config defines Prism's typed configuration document and loads it
// from YAML, applying defaults and validating the result before any
// component (collection manager, federation, embedding layer) is
// constructed from it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level settings document for a prism node.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Schema     SchemaConfig     `yaml:"schema"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Limits     LimitsConfig     `yaml:"limits"`
	HNSW       HNSWConfig       `yaml:"hnsw"`
	BM25       BM25Config       `yaml:"bm25"`
	Hybrid     HybridConfig     `yaml:"hybrid"`
	Cluster    ClusterConfig    `yaml:"cluster"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Reranking  RerankingConfig  `yaml:"reranking"`
}

// ServerConfig configures the process's own listening surface.
type ServerConfig struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
}

// StorageConfig selects and configures the object-store backend (§4.1).
type StorageConfig struct {
	// Backend is "local", "remote" (S3-compatible), or "cached" (layered).
	Backend string `yaml:"backend"`

	Local  LocalStorageConfig  `yaml:"local"`
	Remote RemoteStorageConfig `yaml:"remote"`
	Cache  CacheStorageConfig  `yaml:"cache"`
}

type LocalStorageConfig struct {
	Path string `yaml:"path"`
}

type RemoteStorageConfig struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

type CacheStorageConfig struct {
	// MaxEntries sizes the cache: cmd/prismnode turns it into a byte budget
	// of MaxEntries × 1 MiB, which is the only bound the cached store enforces.
	MaxEntries int `yaml:"max_entries"`
	// EvictionBatch is parsed and defaulted but not read by the cached store.
	EvictionBatch int `yaml:"eviction_batch"`
	// WriteMode is "through" or "around".
	WriteMode string `yaml:"write_mode"`
}

// SchemaConfig points at the directory of collection schema files.
type SchemaConfig struct {
	Dir       string `yaml:"dir"`
	HotReload bool   `yaml:"hot_reload"`
}

// EmbeddingConfig configures the provider-agnostic embedding layer (§4.8).
type EmbeddingConfig struct {
	Provider    string                    `yaml:"provider"`
	BatchSize   int                       `yaml:"batch_size"`
	Concurrency int                       `yaml:"concurrency"`
	Cache       EmbeddingCacheConfig      `yaml:"cache"`
	Providers   map[string]ProviderConfig `yaml:"providers"`
}

type EmbeddingCacheConfig struct {
	// L1Size is the in-process LRU's byte budget in KiB (a cached vector
	// costs 4 bytes per dimension).
	L1Size int `yaml:"l1_size"`
	// L2Path is the persistent KV store file (SQLite).
	L2Path string `yaml:"l2_path"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LimitsConfig holds the DoS/resource guards from spec.md §6.
type LimitsConfig struct {
	MaxBulkActions       int `yaml:"max_bulk_actions"`
	MaxQueryStringLength int `yaml:"max_query_string_length"`
	MaxSearchLimit       int `yaml:"max_search_limit"`
	MaxParseDepth        int `yaml:"max_parse_depth"`
}

// HNSWConfig controls the vector index quality/speed tradeoff.
type HNSWConfig struct {
	M             int `yaml:"m"`
	EfConstruction int `yaml:"ef_construction"`
	EfSearch      int `yaml:"ef_search"`
}

// BM25Config controls text-scoring parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// HybridConfig controls the default fusion strategy.
type HybridConfig struct {
	DefaultStrategy string `yaml:"default_strategy"`
	RRFK            int    `yaml:"rrf_k"`
}

// ClusterConfig controls federation-wide administrative state.
type ClusterConfig struct {
	NodeID              string        `yaml:"node_id"`
	DrainState          string        `yaml:"drain_state"`
	Peers               []string      `yaml:"peers"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	SuspectAfter        time.Duration `yaml:"suspect_after"`
	DeadAfter           time.Duration `yaml:"dead_after"`
	PartialResultsTimeout time.Duration `yaml:"partial_results_timeout"`
	MinSuccessfulShards int           `yaml:"min_successful_shards"`
}

// AuthConfig configures the security core's API-key gate and optional
// admin session tokens layered on top of it.
type AuthConfig struct {
	APIKeys     []APIKeyConfig  `yaml:"api_keys"`
	JWTSecret   string          `yaml:"jwt_secret"`
	TokenExpiry time.Duration   `yaml:"token_expiry"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds how many requests per second a single principal
// may issue at the gRPC trust boundary (spec.md §4.11). It's deliberately
// a plain config struct rather than internal/ratelimit.Config so this
// package doesn't import internal/ratelimit directly; internal/security
// converts it when building a Gate.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

// APIKeyConfig binds a key to a principal and its collection-glob grants.
type APIKeyConfig struct {
	Key        string   `yaml:"key"`
	Principal  string   `yaml:"principal"`
	Collections []string `yaml:"collections"`
	Actions    []string `yaml:"actions"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// RerankingConfig selects the second-phase re-rank implementation (§4.6).
type RerankingConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Load reads, expands, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 7650
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Local.Path == "" {
		cfg.Storage.Local.Path = "./data"
	}
	if cfg.Storage.Cache.MaxEntries == 0 {
		cfg.Storage.Cache.MaxEntries = 4096
	}
	if cfg.Storage.Cache.EvictionBatch == 0 {
		cfg.Storage.Cache.EvictionBatch = 64
	}
	if cfg.Storage.Cache.WriteMode == "" {
		cfg.Storage.Cache.WriteMode = "through"
	}

	if cfg.Schema.Dir == "" {
		cfg.Schema.Dir = "./schemas"
	}

	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 128
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.Cache.L1Size == 0 {
		cfg.Embedding.Cache.L1Size = 10000
	}
	if cfg.Embedding.Cache.L2Path == "" {
		cfg.Embedding.Cache.L2Path = "./data/embed-cache.db"
	}

	if cfg.Limits.MaxBulkActions == 0 {
		cfg.Limits.MaxBulkActions = 10000
	}
	if cfg.Limits.MaxQueryStringLength == 0 {
		cfg.Limits.MaxQueryStringLength = 10000
	}
	if cfg.Limits.MaxSearchLimit == 0 {
		cfg.Limits.MaxSearchLimit = 10000
	}
	if cfg.Limits.MaxParseDepth == 0 {
		cfg.Limits.MaxParseDepth = 50
	}

	if cfg.HNSW.M == 0 {
		cfg.HNSW.M = 16
	}
	if cfg.HNSW.EfConstruction == 0 {
		cfg.HNSW.EfConstruction = 200
	}
	if cfg.HNSW.EfSearch == 0 {
		cfg.HNSW.EfSearch = 100
	}

	if cfg.BM25.K1 == 0 {
		cfg.BM25.K1 = 1.2
	}
	if cfg.BM25.B == 0 {
		cfg.BM25.B = 0.75
	}

	if cfg.Hybrid.DefaultStrategy == "" {
		cfg.Hybrid.DefaultStrategy = "rrf"
	}
	if cfg.Hybrid.RRFK == 0 {
		cfg.Hybrid.RRFK = 60
	}

	if cfg.Cluster.DrainState == "" {
		cfg.Cluster.DrainState = "normal"
	}
	if cfg.Cluster.HeartbeatInterval == 0 {
		cfg.Cluster.HeartbeatInterval = 2 * time.Second
	}
	if cfg.Cluster.SuspectAfter == 0 {
		cfg.Cluster.SuspectAfter = 6 * time.Second
	}
	if cfg.Cluster.DeadAfter == 0 {
		cfg.Cluster.DeadAfter = 30 * time.Second
	}
	if cfg.Cluster.PartialResultsTimeout == 0 {
		cfg.Cluster.PartialResultsTimeout = 5 * time.Second
	}
	if cfg.Cluster.MinSuccessfulShards == 0 {
		cfg.Cluster.MinSuccessfulShards = 1
	}

	if cfg.Auth.TokenExpiry == 0 {
		cfg.Auth.TokenExpiry = 24 * time.Hour
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("PRISM_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("PRISM_GRPC_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.GRPCPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("PRISM_NODE_ID")); value != "" {
		cfg.Cluster.NodeID = value
	}
	if value := strings.TrimSpace(os.Getenv("PRISM_JWT_SECRET")); value != "" {
		cfg.Auth.JWTSecret = value
	}
}

// ConfigValidationError collects every validation issue found in a
// configuration document so an operator sees them all at once.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	switch cfg.Storage.Backend {
	case "local", "remote", "cached":
	default:
		issues = append(issues, fmt.Sprintf("storage.backend must be \"local\", \"remote\", or \"cached\", got %q", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == "remote" && strings.TrimSpace(cfg.Storage.Remote.Bucket) == "" {
		issues = append(issues, "storage.remote.bucket is required when storage.backend is \"remote\"")
	}
	if cfg.Storage.Cache.WriteMode != "" && cfg.Storage.Cache.WriteMode != "through" && cfg.Storage.Cache.WriteMode != "around" {
		issues = append(issues, "storage.cache.write_mode must be \"through\" or \"around\"")
	}

	if cfg.Limits.MaxBulkActions <= 0 {
		issues = append(issues, "limits.max_bulk_actions must be > 0")
	}
	if cfg.Limits.MaxParseDepth <= 0 {
		issues = append(issues, "limits.max_parse_depth must be > 0")
	}

	if cfg.HNSW.M <= 0 || cfg.HNSW.EfConstruction <= 0 || cfg.HNSW.EfSearch <= 0 {
		issues = append(issues, "hnsw.m, hnsw.ef_construction, and hnsw.ef_search must all be > 0")
	}

	if cfg.BM25.K1 < 0 || cfg.BM25.B < 0 || cfg.BM25.B > 1 {
		issues = append(issues, "bm25.b must be in [0,1] and bm25.k1 must be >= 0")
	}

	switch cfg.Hybrid.DefaultStrategy {
	case "rrf", "weighted":
	default:
		issues = append(issues, fmt.Sprintf("hybrid.default_strategy must be \"rrf\" or \"weighted\", got %q", cfg.Hybrid.DefaultStrategy))
	}
	if cfg.Hybrid.RRFK < 1 {
		issues = append(issues, "hybrid.rrf_k must be >= 1")
	}

	switch cfg.Cluster.DrainState {
	case "normal", "draining", "drained":
	default:
		issues = append(issues, fmt.Sprintf("cluster.drain_state must be \"normal\", \"draining\", or \"drained\", got %q", cfg.Cluster.DrainState))
	}

	seenKeys := map[string]struct{}{}
	for i, entry := range cfg.Auth.APIKeys {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			issues = append(issues, fmt.Sprintf("auth.api_keys[%d].key must be set", i))
			continue
		}
		if _, ok := seenKeys[key]; ok {
			issues = append(issues, fmt.Sprintf("auth.api_keys[%d].key must be unique", i))
		} else {
			seenKeys[key] = struct{}{}
		}
	}
	if jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret); jwtSecret != "" && len(jwtSecret) < 32 {
		issues = append(issues, "auth.jwt_secret must be at least 32 characters for security")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
