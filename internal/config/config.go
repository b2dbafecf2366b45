package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hatemosphere/pgrotate/internal/rotation"
)

// Config holds all runtime configuration.
type Config struct {
	// Environment namespaces object keys: {environment}/{tier}/{id}.
	Environment string

	// Source database.
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Dump tooling.
	DumpBinary  string        // pg_dump executable
	DumpTimeout time.Duration // per dump
	WorkDir     string        // scratch directory for local dumps
	Compress    bool          // gzip dumps before upload
	SkipPing    bool          // skip the pre-dump connectivity check

	// Object store.
	S3Bucket         string
	S3Endpoint       string
	S3Region         string
	S3AccessKey      string
	S3SecretKey      string
	S3ForcePathStyle bool

	// Retention.
	TiersFile string          // optional YAML tier overrides
	Tiers     []rotation.Tier // resolved tiers, in processing order

	// Scheduling: 0 runs once and exits (cron mode).
	Interval time.Duration

	// Observability.
	MetricsAddr    string // daemon mode management API listener (empty = disabled)
	APIToken       string // static bearer token for mutating management endpoints
	APIJWTKey      string // HMAC secret or PEM public key path; enables JWT auth instead of APIToken
	APIJWTIssuer   string
	APIJWTAudience string
	PushgatewayURL string // one-shot metrics push target (empty = disabled)
	HistoryDB      string // SQLite run ledger path (empty = disabled)
	LogFormat      string // "json" (default) or "text"
	LogLevel       string // "debug", "info", "warn", "error"
	AuditLogs      bool   // enable audit logging (default true)

	EnvFile string // dotenv file loaded before reading environment overrides
}

// Parse reads flags from the command line and environment. Exits on error.
func Parse() *Config {
	c, err := Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	return c
}

// Load builds a Config from args and the process environment. Environment
// variables take precedence over flags.
func Load(args []string) (*Config, error) {
	c := &Config{}
	fs := flag.NewFlagSet("pgrotate", flag.ContinueOnError)

	fs.StringVar(&c.Environment, "environment", "prod", "key namespace for this deployment (e.g. prod, dev)")

	// Database flags.
	fs.StringVar(&c.DBHost, "db-host", "localhost", "database host")
	fs.StringVar(&c.DBPort, "db-port", "5432", "database port")
	fs.StringVar(&c.DBName, "db-name", "", "database name")
	fs.StringVar(&c.DBUser, "db-user", "", "database user")
	fs.StringVar(&c.DBPassword, "db-password", "", "database password")
	fs.StringVar(&c.DBSSLMode, "db-sslmode", "", "libpq sslmode for pg_dump and the connectivity check")

	// Dump flags.
	fs.StringVar(&c.DumpBinary, "pg-dump", "pg_dump", "pg_dump executable")
	fs.DurationVar(&c.DumpTimeout, "dump-timeout", 60*time.Second, "maximum duration of a single dump")
	fs.StringVar(&c.WorkDir, "work-dir", os.TempDir(), "scratch directory for local dumps")
	fs.BoolVar(&c.Compress, "compress", false, "gzip dumps before upload")
	fs.BoolVar(&c.SkipPing, "skip-ping", false, "skip the database connectivity check before dumping")

	// S3 flags.
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "S3 bucket for backups")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
	fs.StringVar(&c.S3Region, "s3-region", "nyc3", "S3 region")
	fs.StringVar(&c.S3AccessKey, "s3-access-key", "", "S3 access key (empty = default credential chain)")
	fs.StringVar(&c.S3SecretKey, "s3-secret-key", "", "S3 secret key")
	fs.BoolVar(&c.S3ForcePathStyle, "s3-force-path-style", false, "force path-style S3 addressing (MinIO)")

	// Retention and scheduling flags.
	fs.StringVar(&c.TiersFile, "tiers-file", "", "YAML file overriding tier retention counts")
	fs.DurationVar(&c.Interval, "interval", 0, "run periodically at this interval (0 = run once and exit)")

	// Observability flags.
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "listen address for the management API (/metrics, /healthz, /api) in daemon mode")
	fs.StringVar(&c.APIToken, "api-token", "", "static bearer token required by POST /api/runs")
	fs.StringVar(&c.APIJWTKey, "api-jwt-key", "", "HMAC secret or PEM public key file for JWT auth on POST /api/runs")
	fs.StringVar(&c.APIJWTIssuer, "api-jwt-issuer", "", "expected JWT iss claim (empty = don't verify)")
	fs.StringVar(&c.APIJWTAudience, "api-jwt-audience", "", "expected JWT aud claim (empty = don't verify)")
	fs.StringVar(&c.PushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway URL for one-shot runs")
	fs.StringVar(&c.HistoryDB, "history-db", "", "SQLite file recording every run (empty = disabled)")
	fs.StringVar(&c.LogFormat, "log-format", "json", "log format: json or text")
	fs.StringVar(&c.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.BoolVar(&c.AuditLogs, "audit-logs", true, "enable structured audit logging")

	fs.StringVar(&c.EnvFile, "env-file", "", "dotenv file to load before reading environment variables")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if v := os.Getenv("PGROTATE_ENV_FILE"); v != "" {
		c.EnvFile = v
	}
	if c.EnvFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(c.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	c.applyLegacyEnv()
	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if c.TiersFile != "" {
		tiers, err := rotation.LoadTiers(c.TiersFile)
		if err != nil {
			return nil, err
		}
		c.Tiers = tiers
	} else {
		c.Tiers = rotation.DefaultTiers()
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyLegacyEnv honors the variable names used by earlier cron deployments.
func (c *Config) applyLegacyEnv() {
	for name, dst := range map[string]*string{
		"DB_HOST":               &c.DBHost,
		"DB_PORT":               &c.DBPort,
		"DB_NAME":               &c.DBName,
		"DB_USER":               &c.DBUser,
		"DB_PASS":               &c.DBPassword,
		"DBBACKUP_ACCESS_KEY":   &c.S3AccessKey,
		"DBBACKUP_SECRET_KEY":   &c.S3SecretKey,
		"DBBACKUP_BUCKET_NAME":  &c.S3Bucket,
		"DBBACKUP_ENDPOINT_URL": &c.S3Endpoint,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	if os.Getenv("DEBUG_VALUE") != "" {
		c.Environment = "dev"
	}
}

func (c *Config) applyEnv() error {
	for name, dst := range map[string]*string{
		"PGROTATE_ENVIRONMENT":      &c.Environment,
		"PGROTATE_DB_HOST":          &c.DBHost,
		"PGROTATE_DB_PORT":          &c.DBPort,
		"PGROTATE_DB_NAME":          &c.DBName,
		"PGROTATE_DB_USER":          &c.DBUser,
		"PGROTATE_DB_PASSWORD":      &c.DBPassword,
		"PGROTATE_DB_SSLMODE":       &c.DBSSLMode,
		"PGROTATE_PG_DUMP":          &c.DumpBinary,
		"PGROTATE_WORK_DIR":         &c.WorkDir,
		"PGROTATE_S3_BUCKET":        &c.S3Bucket,
		"PGROTATE_S3_ENDPOINT":      &c.S3Endpoint,
		"PGROTATE_S3_REGION":        &c.S3Region,
		"PGROTATE_S3_ACCESS_KEY":    &c.S3AccessKey,
		"PGROTATE_S3_SECRET_KEY":    &c.S3SecretKey,
		"PGROTATE_TIERS_FILE":       &c.TiersFile,
		"PGROTATE_METRICS_ADDR":     &c.MetricsAddr,
		"PGROTATE_API_TOKEN":        &c.APIToken,
		"PGROTATE_API_JWT_KEY":      &c.APIJWTKey,
		"PGROTATE_API_JWT_ISSUER":   &c.APIJWTIssuer,
		"PGROTATE_API_JWT_AUDIENCE": &c.APIJWTAudience,
		"PGROTATE_PUSHGATEWAY_URL":  &c.PushgatewayURL,
		"PGROTATE_HISTORY_DB":       &c.HistoryDB,
		"PGROTATE_LOG_FORMAT":       &c.LogFormat,
		"PGROTATE_LOG_LEVEL":        &c.LogLevel,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	for name, dst := range map[string]*time.Duration{
		"PGROTATE_DUMP_TIMEOUT": &c.DumpTimeout,
		"PGROTATE_INTERVAL":     &c.Interval,
	} {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = d
		}
	}

	for name, dst := range map[string]*bool{
		"PGROTATE_COMPRESS":            &c.Compress,
		"PGROTATE_SKIP_PING":           &c.SkipPing,
		"PGROTATE_S3_FORCE_PATH_STYLE": &c.S3ForcePathStyle,
		"PGROTATE_AUDIT_LOGS":          &c.AuditLogs,
	} {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate reports configuration that would prevent the job from starting.
func (c *Config) Validate() error {
	var errs []error
	if c.S3Bucket == "" {
		errs = append(errs, errors.New("S3 bucket is not configured"))
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		errs = append(errs, errors.New("S3 access key and secret key must be set together"))
	}
	if c.DBName == "" {
		errs = append(errs, errors.New("database name is not configured"))
	}
	if c.Environment == "" || strings.Contains(c.Environment, "/") {
		errs = append(errs, fmt.Errorf("environment %q must be a non-empty single path segment", c.Environment))
	}
	if c.DumpTimeout <= 0 {
		errs = append(errs, errors.New("dump timeout must be positive"))
	}
	if c.Interval < 0 {
		errs = append(errs, errors.New("interval must not be negative"))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("log format must be json or text, got %q", c.LogFormat))
	}
	if c.APIToken != "" && c.APIJWTKey != "" {
		errs = append(errs, errors.New("api-token and api-jwt-key are mutually exclusive"))
	}
	if len(c.Tiers) == 0 {
		errs = append(errs, errors.New("no retention tiers configured"))
	}
	for _, t := range c.Tiers {
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
