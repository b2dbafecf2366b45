package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/hatemosphere/pgrotate/internal/gziputil"
)

const (
	defaultDumpBinary  = "pg_dump"
	defaultDumpTimeout = 60 * time.Second
)

// DumpConfig holds connection and tooling settings for DumpProducer.
type DumpConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string // passed to pg_dump as PGSSLMODE when set; ping defaults to "disable"

	Binary   string        // default: "pg_dump"
	Timeout  time.Duration // per dump, default: 60s
	WorkDir  string        // local scratch directory, default: os.TempDir()
	Compress bool          // gzip the dump before upload
	SkipPing bool          // skip the connectivity check before dumping
}

// Uploader copies a local file to an object key.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) error
}

// DumpProducer implements Producer by running pg_dump and uploading the
// result. A dump taken during a run is reused for every tier due in that run
// until Release is called.
type DumpProducer struct {
	cfg      DumpConfig
	uploader Uploader
	ping     func(ctx context.Context) error

	dumpPath string
}

// NewDumpProducer creates a producer that uploads through uploader.
func NewDumpProducer(cfg DumpConfig, uploader Uploader) *DumpProducer {
	if cfg.Binary == "" {
		cfg.Binary = defaultDumpBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDumpTimeout
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	p := &DumpProducer{cfg: cfg, uploader: uploader}
	if !cfg.SkipPing {
		p.ping = func(ctx context.Context) error { return pingPostgres(ctx, cfg) }
	}
	return p
}

// Extension returns the object key suffix matching the dump format.
func (p *DumpProducer) Extension() string {
	if p.cfg.Compress {
		return ".psql.gz"
	}
	return ".psql"
}

// Produce dumps the database (once per run) and uploads it to key.
func (p *DumpProducer) Produce(ctx context.Context, key string) error {
	if p.dumpPath == "" {
		path, err := p.dump(ctx)
		if err != nil {
			return &ProductionError{Key: key, Reason: "dump database", Err: err}
		}
		p.dumpPath = path
	}

	if err := p.uploader.Upload(ctx, key, p.dumpPath); err != nil {
		// The local dump may be truncated or stale; take a fresh one next time.
		p.Release()
		return &ProductionError{Key: key, Reason: "upload dump", Err: err}
	}
	return nil
}

// Release removes the cached local dump.
func (p *DumpProducer) Release() {
	if p.dumpPath == "" {
		return
	}
	if err := os.Remove(p.dumpPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove local dump", "path", p.dumpPath, "error", err)
	}
	p.dumpPath = ""
}

func (p *DumpProducer) dump(ctx context.Context) (string, error) {
	if p.ping != nil {
		if err := p.ping(ctx); err != nil {
			return "", fmt.Errorf("source unreachable: %w", err)
		}
	}

	f, err := os.CreateTemp(p.cfg.WorkDir, "pgrotate-*.psql")
	if err != nil {
		return "", fmt.Errorf("create dump file: %w", err)
	}
	path := f.Name()
	f.Close()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.cfg.Binary, p.dumpArgs(path)...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+p.cfg.Password)
	if p.cfg.SSLMode != "" {
		cmd.Env = append(cmd.Env, "PGSSLMODE="+p.cfg.SSLMode)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		os.Remove(path)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", p.cfg.Binary, err, msg)
		}
		return "", fmt.Errorf("%s: %w", p.cfg.Binary, err)
	}
	slog.Debug("database dumped", "database", p.cfg.Name, "duration", time.Since(started))

	if !p.cfg.Compress {
		return path, nil
	}
	gzPath := path + ".gz"
	if alreadyGzipped(path) {
		if err := os.Rename(path, gzPath); err != nil {
			os.Remove(path)
			return "", err
		}
		return gzPath, nil
	}
	err = gziputil.CompressFile(path, gzPath)
	os.Remove(path)
	if err != nil {
		return "", err
	}
	return gzPath, nil
}

// alreadyGzipped reports whether the dump binary wrote gzip output itself.
func alreadyGzipped(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 3)
	n, _ := io.ReadFull(f, head)
	return gziputil.IsGzipped(head[:n])
}

func (p *DumpProducer) dumpArgs(outPath string) []string {
	var args []string
	if p.cfg.Host != "" {
		args = append(args, "-h", p.cfg.Host)
	}
	if p.cfg.Port != "" {
		args = append(args, "-p", p.cfg.Port)
	}
	if p.cfg.User != "" {
		args = append(args, "-U", p.cfg.User)
	}
	args = append(args, "-f", outPath)
	if p.cfg.Name != "" {
		args = append(args, p.cfg.Name)
	}
	return args
}

// postgresURL builds a lib/pq connection URL from cfg.
func postgresURL(cfg DumpConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	if cfg.Port != "" {
		host = net.JoinHostPort(host, cfg.Port)
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     host,
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

func pingPostgres(ctx context.Context, cfg DumpConfig) error {
	connector, err := pq.NewConnector(postgresURL(cfg))
	if err != nil {
		return fmt.Errorf("postgres connector: %w", err)
	}
	db := sql.OpenDB(connector)
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
