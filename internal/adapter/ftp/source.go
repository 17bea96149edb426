// Package ftp loads input files from a directory on an FTP server, the way
// the depot gauges drop their nightly exports.
package ftp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/gasparespejo/EFILabs/internal/adapter/filesystem"
	"github.com/gasparespejo/EFILabs/internal/domain"
	ftpclient "github.com/jlaffaye/ftp"
)

// Config holds the FTP connection settings.
type Config struct {
	Addr     string
	User     string
	Password string
	Dir      string
	Timeout  time.Duration
}

type conn interface {
	Login(user, password string) error
	List(dir string) ([]*ftpclient.Entry, error)
	Retr(file string) (io.ReadCloser, error)
	Quit() error
}

// serverConn narrows Retr to an io.ReadCloser so tests can fake the server.
type serverConn struct {
	*ftpclient.ServerConn
}

func (c serverConn) Retr(file string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(file)
}

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Source fetches every input file in Config.Dir.
type Source struct {
	cfg     Config
	logger  *slog.Logger
	dial    func(ctx context.Context, cfg Config) (conn, error)
	backoff time.Duration
}

// NewSource creates an FTP source.
func NewSource(cfg Config, logger *slog.Logger) *Source {
	return &Source{cfg: cfg, logger: logger, dial: dial, backoff: initialBackoff}
}

func dial(ctx context.Context, cfg Config) (conn, error) {
	c, err := ftpclient.Dial(cfg.Addr, ftpclient.DialWithContext(ctx), ftpclient.DialWithTimeout(cfg.Timeout))
	if err != nil {
		return nil, err
	}
	return serverConn{c}, nil
}

// Fetch logs in, lists the configured directory and downloads every file
// with an input extension, in name order. A failed session is retried from
// scratch with exponential backoff.
func (s *Source) Fetch(ctx context.Context) ([]domain.SourceFile, error) {
	backoff := s.backoff
	for attempt := 1; ; attempt++ {
		files, err := s.fetchOnce(ctx)
		if err == nil || attempt >= maxAttempts || ctx.Err() != nil {
			return files, err
		}
		s.logger.Warn("ftp fetch failed, retrying", "addr", s.cfg.Addr, "attempt", attempt, "error", err, "backoff", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

func (s *Source) fetchOnce(ctx context.Context) ([]domain.SourceFile, error) {
	c, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("ftp dial %s: %w", s.cfg.Addr, err)
	}
	defer func() { _ = c.Quit() }()

	if err := c.Login(s.cfg.User, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	entries, err := c.List(s.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("ftp list %s: %w", s.cfg.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type == ftpclient.EntryTypeFile && filesystem.HasInputExtension(e.Name) {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)

	files := make([]domain.SourceFile, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := path.Join(s.cfg.Dir, name)
		content, err := retrieve(c, p)
		if err != nil {
			return nil, err
		}
		files = append(files, domain.SourceFile{Name: p, Content: content})
	}
	s.logger.Info("ftp files fetched", "addr", s.cfg.Addr, "dir", s.cfg.Dir, "files", len(files))
	return files, nil
}

func retrieve(c conn, p string) ([]byte, error) {
	resp, err := c.Retr(p)
	if err != nil {
		return nil, fmt.Errorf("ftp retr %s: %w", p, err)
	}
	defer func() { _ = resp.Close() }()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return body, nil
}
