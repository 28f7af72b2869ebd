// Command nutrifit-server runs the Nutrifit HTTP API.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nutrifit-backend/internal/config"
	"nutrifit-backend/internal/httpapi"
	"nutrifit-backend/internal/lifecycle"
	"nutrifit-backend/internal/logging"
	"nutrifit-backend/internal/metrics"
)

var version = "dev"

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	code := 0
	cmd := newRootCommand(serve, &code)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return 2
	}
	return code
}

// flagKeys binds each flag to the environment key it overrides.
var flagKeys = map[string]string{
	"port":             "PORT",
	"host":             "HOST",
	"env":              "NODE_ENV",
	"cors-origin":      "CORS_ORIGIN",
	"metrics-addr":     "METRICS_ADDR",
	"rate-limit":       "RATE_LIMIT_MAX",
	"shutdown-timeout": "SHUTDOWN_TIMEOUT",
	"log-level":        "LOG_LEVEL",
}

// newRootCommand stores run's exit code in code.
func newRootCommand(run func(config.Config) int, code *int) *cobra.Command {
	v := viper.New()
	var envFile string

	cmd := &cobra.Command{
		Use:          "nutrifit-server",
		Short:        "Run the Nutrifit backend HTTP server",
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				if _, err := os.Stat(envFile); err != nil {
					return fmt.Errorf("env file: %w", err)
				}
			}
			config.LoadEnvFiles(envFile)
			*code = run(config.Load(v))
			return nil
		},
	}

	f := cmd.Flags()
	f.String("port", "5000", "port to listen on")
	f.String("host", "", "interface to bind (all when empty)")
	f.String("env", config.EnvDevelopment, "environment mode: development or production")
	f.String("cors-origin", "http://localhost:3000", "allowed CORS origins, comma-separated")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (off when empty)")
	f.Int("rate-limit", 0, "requests per client per RATE_LIMIT_WINDOW (off when 0)")
	f.Duration("shutdown-timeout", 15*time.Second, "how long to drain in-flight requests on shutdown")
	f.String("log-level", "", "log level: trace, debug, info, warn, error")
	f.StringVar(&envFile, "env-file", "", "extra .env file loaded after ./.env and ../.env")

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(name))
	}
	return cmd
}

func serve(cfg config.Config) int {
	logger := logging.New(os.Stderr, logging.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Development: cfg.IsDevelopment(),
	})
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	deps := httpapi.Deps{
		Logger:  logger,
		Started: time.Now(),
	}
	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.New()
		deps.Observer = collector
	}
	if cfg.RateLimitMax > 0 {
		deps.Limiter = httpapi.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	m := lifecycle.New(cfg, httpapi.NewRouter(cfg, deps), logger)
	if collector != nil {
		m.WithMetrics(cfg.MetricsAddr, collector.Handler())
	}
	if deps.Limiter != nil {
		m.Go("rate-limit-sweep", deps.Limiter.Sweep)
	}
	return m.Run()
}
