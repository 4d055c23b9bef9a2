package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode   `yaml:"mode"`
	HTTPAddr string `yaml:"http_addr"`
	LogMode  string `yaml:"log_mode"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	SourceDriver         string        `yaml:"source_driver"` // sql|http
	UpstreamBaseURL      string        `yaml:"upstream_base_url"`
	UpstreamTokenURL     string        `yaml:"upstream_token_url"`
	UpstreamClientID     string        `yaml:"upstream_client_id"`
	UpstreamClientSecret string        `yaml:"upstream_client_secret"`
	UpstreamTimeout      time.Duration `yaml:"upstream_timeout"`
	FetchConcurrency     int           `yaml:"fetch_concurrency"`

	CacheDriver string        `yaml:"cache_driver"` // off|memory|redis
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	RedisAddr   string        `yaml:"redis_addr"`

	ExportArchiveDir string `yaml:"export_archive_dir"`
	SeedFile         string `yaml:"seed_file"` // YAML fixture loaded into the sql source at startup

	AuthHMACSecret string `yaml:"auth_hmac_secret"`
	AdminUser      string `yaml:"admin_user"`
	AdminPassHash  string `yaml:"admin_pass_hash"` // bcrypt

	CORSOrigins []string `yaml:"cors_origins"`
}

// Load reads an optional .env file, then the environment, then the YAML file
// named by CONFIG_FILE when set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := FromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	defSource := "sql"
	if mode == ModeOnline {
		defSource = "http"
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogMode:  envOr("LOG_MODE", "dev"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		SourceDriver:         envOr("SOURCE_DRIVER", defSource),
		UpstreamBaseURL:      os.Getenv("UPSTREAM_BASE_URL"),
		UpstreamTokenURL:     os.Getenv("UPSTREAM_TOKEN_URL"),
		UpstreamClientID:     os.Getenv("UPSTREAM_CLIENT_ID"),
		UpstreamClientSecret: os.Getenv("UPSTREAM_CLIENT_SECRET"),
		UpstreamTimeout:      envDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		FetchConcurrency:     envInt("FETCH_CONCURRENCY", 8),

		CacheDriver: envOr("CACHE_DRIVER", "off"),
		CacheTTL:    envDuration("CACHE_TTL", time.Minute),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		ExportArchiveDir: os.Getenv("EXPORT_ARCHIVE_DIR"),
		SeedFile:         os.Getenv("SEED_FILE"),

		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		AdminUser:      envOr("ADMIN_USER", "admin"),
		AdminPassHash:  envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:3010"),
	}
}

func (c *Config) overlayFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file Config
	if err := yaml.Unmarshal(b, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.merge(file)
	return nil
}

// merge copies every non-zero field of o onto c.
func (c *Config) merge(o Config) {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	if o.Mode != "" {
		c.Mode = o.Mode
	}
	setStr(&c.HTTPAddr, o.HTTPAddr)
	setStr(&c.LogMode, o.LogMode)
	setStr(&c.DBDriver, o.DBDriver)
	setStr(&c.DBDSN, o.DBDSN)
	setStr(&c.SourceDriver, o.SourceDriver)
	setStr(&c.UpstreamBaseURL, o.UpstreamBaseURL)
	setStr(&c.UpstreamTokenURL, o.UpstreamTokenURL)
	setStr(&c.UpstreamClientID, o.UpstreamClientID)
	setStr(&c.UpstreamClientSecret, o.UpstreamClientSecret)
	if o.UpstreamTimeout > 0 {
		c.UpstreamTimeout = o.UpstreamTimeout
	}
	if o.FetchConcurrency > 0 {
		c.FetchConcurrency = o.FetchConcurrency
	}
	setStr(&c.CacheDriver, o.CacheDriver)
	if o.CacheTTL > 0 {
		c.CacheTTL = o.CacheTTL
	}
	setStr(&c.RedisAddr, o.RedisAddr)
	setStr(&c.ExportArchiveDir, o.ExportArchiveDir)
	setStr(&c.SeedFile, o.SeedFile)
	setStr(&c.AuthHMACSecret, o.AuthHMACSecret)
	setStr(&c.AdminUser, o.AdminUser)
	setStr(&c.AdminPassHash, o.AdminPassHash)
	if len(o.CORSOrigins) > 0 {
		c.CORSOrigins = o.CORSOrigins
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
