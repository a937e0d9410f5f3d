package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"mediadrop/internal/blossom"
	"mediadrop/internal/fallback"
	"mediadrop/internal/logging"
)

// Fallback backends.
const (
	FallbackMultipart = "multipart"
	FallbackS3        = "s3"
	FallbackNone      = "none"
)

// Defaults used when neither the config file nor the environment set a value.
const (
	DefaultPort                 = "8080"
	DefaultMetricsPort          = "9090"
	DefaultDatabaseDir          = "/database"
	DefaultMaxInputMB           = 30
	DefaultTranscodeThresholdMB = 1
	DefaultImageMaxDimension    = 2048
	DefaultImageMaxBytes        = 2 * 1024 * 1024
	DefaultAttemptTimeout       = 2 * time.Minute
)

// FileConfig is the layout of the optional TOML config file.
type FileConfig struct {
	Origin    string           `toml:"origin"`
	SecretKey string           `toml:"secret_key"`
	Servers   []blossom.Server `toml:"servers"`

	Server struct {
		Port            string   `toml:"port"`
		MetricsPort     string   `toml:"metrics_port"`
		MetricsEnabled  *bool    `toml:"metrics_enabled"`
		UploadTokenHash string   `toml:"upload_token_hash"`
		CORSOrigins     []string `toml:"cors_origins"`
		DatabaseDir     string   `toml:"database_dir"`
	} `toml:"server"`

	Limits struct {
		MaxInputMB           int    `toml:"max_input_mb"`
		TranscodeThresholdMB int    `toml:"transcode_threshold_mb"`
		ImageMaxDimension    int    `toml:"image_max_dimension"`
		ImageMaxBytes        int64  `toml:"image_max_bytes"`
		AttemptTimeout       string `toml:"attempt_timeout"`
	} `toml:"limits"`

	Transcoder struct {
		GPUAccel string `toml:"gpu_accel"`
		TempDir  string `toml:"temp_dir"`
	} `toml:"transcoder"`

	Fallback struct {
		Backend string            `toml:"backend"`
		URL     string            `toml:"url"`
		S3      fallback.S3Config `toml:"s3"`
	} `toml:"fallback"`
}

// Config holds all application configuration. It is built once at startup
// and passed explicitly.
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	DatabaseDir    string
	DatabasePath   string
	HistoryEnabled bool

	Servers        []blossom.Server
	SecretKey      string
	Origin         string
	AttemptTimeout time.Duration

	MaxInputBytes      int64
	TranscodeThreshold int64
	GPUAccel           string
	TempDir            string

	ImageMaxDimension int
	ImageMaxBytes     int64

	FallbackBackend string
	FallbackURL     string
	S3              fallback.S3Config

	UploadTokenHash string
	CORSOrigins     []string

	// ConfigFile is the TOML file that was loaded, or "" when none was used.
	ConfigFile string
}

// MaxRequestBytes bounds an upload request body: the input cap plus room for
// multipart framing.
func (c *Config) MaxRequestBytes() int64 {
	return c.MaxInputBytes + 1024*1024
}

// Load builds the configuration from an optional TOML file and the
// environment. Environment variables win over the file. A path that does not
// exist is ignored; a file that fails to parse is an error.
func Load(path string) (*Config, error) {
	var file FileConfig
	used := ""
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &file); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
			used = path
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:            getEnv("PORT", firstNonEmpty(file.Server.Port, DefaultPort)),
		MetricsPort:     getEnv("METRICS_PORT", firstNonEmpty(file.Server.MetricsPort, DefaultMetricsPort)),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", boolOr(file.Server.MetricsEnabled, true)),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),

		DatabaseDir: getEnv("DATABASE_DIR", firstNonEmpty(file.Server.DatabaseDir, DefaultDatabaseDir)),

		SecretKey: getEnv("MEDIADROP_SECRET_KEY", file.SecretKey),
		Origin:    getEnv("MEDIADROP_ORIGIN", file.Origin),

		MaxInputBytes:      int64(getEnvInt("MAX_INPUT_MB", intOr(file.Limits.MaxInputMB, DefaultMaxInputMB))) * 1024 * 1024,
		TranscodeThreshold: int64(getEnvInt("TRANSCODE_THRESHOLD_MB", intOr(file.Limits.TranscodeThresholdMB, DefaultTranscodeThresholdMB))) * 1024 * 1024,
		GPUAccel:           strings.ToLower(getEnv("GPU_ACCEL", firstNonEmpty(file.Transcoder.GPUAccel, "auto"))),
		TempDir:            getEnv("TEMP_DIR", firstNonEmpty(file.Transcoder.TempDir, os.TempDir())),

		ImageMaxDimension: getEnvInt("IMAGE_MAX_DIMENSION", intOr(file.Limits.ImageMaxDimension, DefaultImageMaxDimension)),
		ImageMaxBytes:     int64(getEnvInt("IMAGE_MAX_BYTES", int(int64Or(file.Limits.ImageMaxBytes, DefaultImageMaxBytes)))),

		FallbackBackend: strings.ToLower(getEnv("FALLBACK_BACKEND", firstNonEmpty(file.Fallback.Backend, FallbackMultipart))),
		FallbackURL:     getEnv("FALLBACK_URL", firstNonEmpty(file.Fallback.URL, fallback.DefaultMultipartURL)),
		S3: fallback.S3Config{
			Region:        getEnv("S3_REGION", file.Fallback.S3.Region),
			Bucket:        getEnv("S3_BUCKET", file.Fallback.S3.Bucket),
			AccessKey:     getEnv("S3_ACCESS_KEY", file.Fallback.S3.AccessKey),
			SecretKey:     getEnv("S3_SECRET_KEY", file.Fallback.S3.SecretKey),
			Endpoint:      getEnv("S3_ENDPOINT", file.Fallback.S3.Endpoint),
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", file.Fallback.S3.PublicBaseURL),
		},

		UploadTokenHash: getEnv("UPLOAD_TOKEN_HASH", file.Server.UploadTokenHash),
		CORSOrigins:     file.Server.CORSOrigins,
		ConfigFile:      used,
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	servers := file.Servers
	if env := os.Getenv("MEDIADROP_SERVERS"); env != "" {
		servers = blossom.ParseServerList(env)
	}
	cfg.Servers = blossom.ResolveServers(servers)

	timeout := getEnv("ATTEMPT_TIMEOUT", file.Limits.AttemptTimeout)
	cfg.AttemptTimeout = DefaultAttemptTimeout
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil || d <= 0 {
			logging.Warn("Invalid ATTEMPT_TIMEOUT %q, using default: %v", timeout, DefaultAttemptTimeout)
		} else {
			cfg.AttemptTimeout = d
		}
	}

	dbDir, err := filepath.Abs(cfg.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabaseDir = dbDir
	cfg.DatabasePath = filepath.Join(dbDir, "mediadrop.db")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxInputBytes <= 0 {
		errs = append(errs, errors.New("MAX_INPUT_MB must be positive"))
	}
	if c.TranscodeThreshold <= 0 {
		errs = append(errs, errors.New("TRANSCODE_THRESHOLD_MB must be positive"))
	}
	if c.ImageMaxDimension <= 0 || c.ImageMaxBytes <= 0 {
		errs = append(errs, errors.New("image limits must be positive"))
	}
	switch c.FallbackBackend {
	case FallbackMultipart, FallbackNone:
	case FallbackS3:
		if c.S3.Bucket == "" || c.S3.PublicBaseURL == "" {
			errs = append(errs, errors.New("FALLBACK_BACKEND=s3 requires S3_BUCKET and S3_PUBLIC_BASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown FALLBACK_BACKEND %q (want multipart, s3 or none)", c.FallbackBackend))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func int64Or(v, def int64) int64 {
	if v <= 0 {
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
