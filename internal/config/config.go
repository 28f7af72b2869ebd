package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DefaultBodyLimit caps JSON and form bodies at 10 MiB.
	DefaultBodyLimit = 10 << 20
)

// Config is the startup snapshot. It is built once by Load and never mutated.
type Config struct {
	Port    string
	Host    string
	NodeEnv string

	CORSOrigins []string
	CORSMethods []string
	CORSHeaders []string

	BodyLimit          int64
	FormParameterLimit int

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
	TrustProxy      bool

	MetricsAddr string

	LogLevel  string
	LogFormat string

	// problems collects values Load could not use and replaced.
	problems []string
}

// Defaults registers fallback values on v. Keys match the environment
// variable names so AutomaticEnv resolves them directly.
func Defaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("HOST", "")
	v.SetDefault("NODE_ENV", EnvDevelopment)
	v.SetDefault("CORS_ORIGIN", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", DefaultBodyLimit)
	v.SetDefault("FORM_PARAMETER_LIMIT", 1000)
	v.SetDefault("READ_HEADER_TIMEOUT", 15*time.Second)
	v.SetDefault("READ_TIMEOUT", 30*time.Second)
	v.SetDefault("WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("IDLE_TIMEOUT", 90*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)
	v.SetDefault("RATE_LIMIT_MAX", 0)
	v.SetDefault("RATE_LIMIT_WINDOW", 15*time.Minute)
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("METRICS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("LOG_FORMAT", "auto")
}

// LoadEnvFiles mirrors the old Node backend lookup:
// - tries ./.env
// - then the repo root ../.env
// - then any explicit files (e.g. --env-file), which win
func LoadEnvFiles(extra ...string) {
	// best-effort load
	_ = godotenv.Load(filepath.Join(".", ".env"))
	_ = godotenv.Overload(filepath.Join("..", ".env"))
	for _, f := range extra {
		if f != "" {
			_ = godotenv.Overload(f)
		}
	}
}

// Load builds a Config from v. Flags bound to v take precedence over the
// environment, which takes precedence over Defaults.
func Load(v *viper.Viper) Config {
	Defaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Port:    strings.TrimSpace(v.GetString("PORT")),
		Host:    strings.TrimSpace(v.GetString("HOST")),
		NodeEnv: strings.TrimSpace(v.GetString("NODE_ENV")),

		CORSOrigins: splitList(v.GetString("CORS_ORIGIN")),
		CORSMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		CORSHeaders: []string{"Content-Type", "Authorization"},

		BodyLimit:          v.GetInt64("BODY_LIMIT"),
		FormParameterLimit: v.GetInt("FORM_PARAMETER_LIMIT"),

		RateLimitMax: v.GetInt("RATE_LIMIT_MAX"),
		TrustProxy:   v.GetBool("TRUST_PROXY"),

		MetricsAddr: strings.TrimSpace(v.GetString("METRICS_ADDR")),

		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
	}

	cfg.ReadHeaderTimeout = cfg.duration(v, "READ_HEADER_TIMEOUT", 15*time.Second)
	cfg.ReadTimeout = cfg.duration(v, "READ_TIMEOUT", 30*time.Second)
	cfg.WriteTimeout = cfg.duration(v, "WRITE_TIMEOUT", 30*time.Second)
	cfg.IdleTimeout = cfg.duration(v, "IDLE_TIMEOUT", 90*time.Second)
	cfg.ShutdownTimeout = cfg.duration(v, "SHUTDOWN_TIMEOUT", 15*time.Second)
	cfg.RateLimitWindow = cfg.duration(v, "RATE_LIMIT_WINDOW", 15*time.Minute)

	// unparsable values come back as zero; fall back instead of running with them
	if cfg.Port == "" {
		cfg.Port = "5000"
	}
	if cfg.NodeEnv == "" {
		cfg.NodeEnv = EnvDevelopment
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if cfg.FormParameterLimit <= 0 {
		cfg.FormParameterLimit = 1000
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
		if cfg.IsDevelopment() {
			cfg.LogLevel = "debug"
		}
	}
	return cfg
}

// duration reads key as a Go duration ("90s", "15m"). A bare integer is a
// number of seconds. Anything else, or a value that is not positive, is
// recorded as a problem and replaced by def.
func (c *Config) duration(v *viper.Viper, key string, def time.Duration) time.Duration {
	var (
		d  time.Duration
		ok bool
	)
	switch x := v.Get(key).(type) {
	case time.Duration:
		d, ok = x, true
	case int:
		d, ok = time.Duration(x)*time.Second, true
	case int64:
		d, ok = time.Duration(x)*time.Second, true
	default:
		raw := strings.TrimSpace(fmt.Sprint(x))
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			d, ok = time.Duration(n)*time.Second, true
		} else if parsed, err := time.ParseDuration(raw); err == nil {
			d, ok = parsed, true
		}
	}
	if !ok || d <= 0 {
		c.problems = append(c.problems, fmt.Sprintf("%s=%v is not a positive duration; using %s", key, v.Get(key), def))
		return def
	}
	return d
}

// IsDevelopment reports whether the server runs in development mode, the only
// mode that logs every request and exposes fault details to clients.
func (c Config) IsDevelopment() bool {
	return c.NodeEnv == EnvDevelopment
}

func (c Config) IsProduction() bool {
	return c.NodeEnv == EnvProduction
}

// Warnings lists presence problems worth logging at startup. None of them
// stop the server.
func (c Config) Warnings() []string {
	out := append([]string(nil), c.problems...)
	if len(c.CORSOrigins) == 0 {
		out = append(out, "CORS_ORIGIN is empty; cross-origin requests will get no CORS headers")
	}
	if c.NodeEnv != EnvDevelopment && c.NodeEnv != EnvProduction && c.NodeEnv != "test" {
		out = append(out, "NODE_ENV="+c.NodeEnv+" is not a known mode; treating it as non-development")
	}
	if c.RateLimitMax > 0 && !c.TrustProxy && c.IsProduction() {
		out = append(out, "RATE_LIMIT_MAX is set without TRUST_PROXY; clients behind a proxy share one bucket")
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
