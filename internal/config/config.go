// Package config loads the sectioned service configuration from a TOML
// file, then applies a short list of environment overrides for the
// scalars operators most often need to change per-deployment without
// editing the file, mirroring how the rest of this codebase treats
// environment variables as the final word over file-sourced defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rexmedia/mediavault/internal/apperr"
)

type ServerConfig struct {
	Host                   string `toml:"host"`
	Port                   int    `toml:"port"`
	AdminHost              string `toml:"admin_host"`
	AdminPort              int    `toml:"admin_port"`
	BaseURL                string `toml:"base_url"`
	RequestTimeoutSeconds  int    `toml:"request_timeout"`
	MaxConnections         int    `toml:"max_connections"`
	CacheMaxAgeSeconds     int    `toml:"cache_max_age"`
	CleanupIntervalSeconds int    `toml:"cleanup_interval_seconds"`
}

func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

func (s ServerConfig) CacheMaxAge() time.Duration {
	return time.Duration(s.CacheMaxAgeSeconds) * time.Second
}

func (s ServerConfig) CleanupInterval() time.Duration {
	return time.Duration(s.CleanupIntervalSeconds) * time.Second
}

type StorageConfig struct {
	DataDir         string `toml:"data_dir"`
	OriginalsDir    string `toml:"originals_dir"`
	OptimizedDir    string `toml:"optimized_dir"`
	TempDir         string `toml:"temp_dir"`
	DirectoryLevels int    `toml:"directory_levels"`
}

type UploadConfig struct {
	MaxSimpleUploadSize       int64    `toml:"max_simple_upload_size"`
	MaxChunkedUploadSize      int64    `toml:"max_chunked_upload_size"`
	ChunkSize                 int64    `toml:"chunk_size"`
	AllowedImageTypes         []string `toml:"allowed_image_types"`
	AllowedVideoTypes         []string `toml:"allowed_video_types"`
	UploadSessionTimeoutSecs  int64    `toml:"upload_session_timeout"`
}

func (u UploadConfig) UploadSessionTimeout() time.Duration {
	return time.Duration(u.UploadSessionTimeoutSecs) * time.Second
}

type ProcessingConfig struct {
	OutputFormat      string `toml:"output_format"`
	OutputQuality     int    `toml:"output_quality"`
	MaxImageDimension int    `toml:"max_image_dimension"`
	KeepOriginals     bool   `toml:"keep_originals"`
	StripEXIF         bool   `toml:"strip_exif"`
}

type AuthConfig struct {
	Enabled        bool     `toml:"enabled"`
	APIKeys        []string `toml:"api_keys"`
	ProtectedPaths []string `toml:"protected_paths"`
	PublicPaths    []string `toml:"public_paths"`
}

type RateLimitConfig struct {
	Enabled           bool `toml:"enabled"`
	RequestsPerWindow int  `toml:"requests_per_window"`
	WindowSeconds     int  `toml:"window_seconds"`
	UploadsPerWindow  int  `toml:"uploads_per_window"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

type NetworkConfig struct {
	ChainID        int64  `toml:"chain_id"`
	RPCURL         string `toml:"rpc_url"`
	FallbackRPCURL string `toml:"fallback_rpc_url"`
}

type RexPumpConfig struct {
	Enabled                bool                     `toml:"enabled"`
	SignatureMaxAgeSeconds int64                    `toml:"signature_max_age_seconds"`
	UpdateCooldownSeconds  int64                    `toml:"update_cooldown_seconds"`
	Networks               map[string]NetworkConfig `toml:"networks"`
}

func (r RexPumpConfig) SignatureMaxAge() time.Duration {
	return time.Duration(r.SignatureMaxAgeSeconds) * time.Second
}

func (r RexPumpConfig) UpdateCooldown() time.Duration {
	return time.Duration(r.UpdateCooldownSeconds) * time.Second
}

// Config is the full decoded configuration tree.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Upload     UploadConfig     `toml:"upload"`
	Processing ProcessingConfig `toml:"processing"`
	Auth       AuthConfig       `toml:"auth"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	RexPump    RexPumpConfig    `toml:"rexpump"`
}

// Default returns the baseline configuration applied before any file or
// environment override.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0", Port: 8080,
			AdminHost: "127.0.0.1", AdminPort: 8081,
			BaseURL:                "http://localhost:8080",
			RequestTimeoutSeconds:  30,
			MaxConnections:         1024,
			CacheMaxAgeSeconds:     86400,
			CleanupIntervalSeconds: 300,
		},
		Storage: StorageConfig{
			DataDir: "./data", OriginalsDir: "originals", OptimizedDir: "optimized",
			TempDir: "temp", DirectoryLevels: 2,
		},
		Upload: UploadConfig{
			MaxSimpleUploadSize:      10 << 20,
			MaxChunkedUploadSize:     200 << 20,
			ChunkSize:                5 << 20,
			AllowedImageTypes:        []string{"image/jpeg", "image/png", "image/webp", "image/gif"},
			AllowedVideoTypes:        nil,
			UploadSessionTimeoutSecs: 3600,
		},
		Processing: ProcessingConfig{
			OutputFormat: "webp", OutputQuality: 85, MaxImageDimension: 2048,
			KeepOriginals: true, StripEXIF: true,
		},
		Auth: AuthConfig{Enabled: false},
		RateLimit: RateLimitConfig{
			Enabled: true, RequestsPerWindow: 300, WindowSeconds: 60, UploadsPerWindow: 30,
		},
		RexPump: RexPumpConfig{
			Enabled: false, SignatureMaxAgeSeconds: 300, UpdateCooldownSeconds: 3600,
			Networks: map[string]NetworkConfig{},
		},
	}
}

// Load reads path (if present) over the defaults, then applies a small set
// of environment overrides. A missing file is not an error: Default() plus
// any environment overrides is a valid configuration for local development.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("MEDIAVAULT_CONFIG")
	}
	if path == "" {
		path = "config.toml"
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, apperr.Wrap(err, apperr.KindConfig, fmt.Sprintf("parse config file %s", path))
		}
	} else if !os.IsNotExist(err) {
		return nil, apperr.Wrap(err, apperr.KindConfig, fmt.Sprintf("stat config file %s", path))
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEDIAVAULT_API_KEYS"); v != "" {
		cfg.Auth.APIKeys = strings.Split(v, ",")
	}
	if v := os.Getenv("MEDIAVAULT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("MEDIAVAULT_ADMIN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.AdminPort = n
		}
	}
	if v := os.Getenv("MEDIAVAULT_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
}

func validate(cfg *Config) error {
	if cfg.Storage.DirectoryLevels < 0 || cfg.Storage.DirectoryLevels > 4 {
		return apperr.Newf(apperr.KindConfig, "storage.directory_levels must be 0-4, got %d", cfg.Storage.DirectoryLevels)
	}
	if cfg.Upload.MaxChunkedUploadSize < cfg.Upload.MaxSimpleUploadSize {
		return apperr.New(apperr.KindConfig, "upload.max_chunked_upload_size must be >= max_simple_upload_size")
	}
	if cfg.Upload.ChunkSize < 1024 {
		return apperr.New(apperr.KindConfig, "upload.chunk_size must be >= 1024")
	}
	if cfg.Processing.OutputQuality < 0 || cfg.Processing.OutputQuality > 100 {
		return apperr.New(apperr.KindConfig, "processing.output_quality must be 0-100")
	}
	if strings.TrimSuffix(cfg.Server.BaseURL, "/") != cfg.Server.BaseURL {
		return apperr.New(apperr.KindConfig, "server.base_url must not have a trailing slash")
	}
	return nil
}
