// Package urlutil classifies input locations and fetches them into memory.
package urlutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/jmylchreest/memmux/pkg/decompress"
	"github.com/jmylchreest/memmux/pkg/httpclient"
)

// Stdio names standard input or output.
const Stdio = "-"

// IsRemoteURL reports whether u is an http(s) URL.
func IsRemoteURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// IsFileURL reports whether u uses the file:// scheme.
func IsFileURL(u string) bool {
	return strings.HasPrefix(u, "file://")
}

// FilePathFromURL extracts the path of a file:// URL.
// Both file:///path and file://localhost/path are accepted.
func FilePathFromURL(u string) (string, error) {
	if !IsFileURL(u) {
		return "", fmt.Errorf("not a file:// URL: %s", u)
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Host != "" && parsed.Host != "localhost" {
		return "", fmt.Errorf("remote host in file URL: %s", u)
	}
	if parsed.Path == "" {
		return "", fmt.Errorf("empty path in file URL: %s", u)
	}
	return parsed.Path, nil
}

// ResourceFetcher loads inputs named by path, file:// URL, http(s) URL or
// "-" for Stdin. Compressed inputs are unwrapped and the decoded size is
// capped at MaxSize.
type ResourceFetcher struct {
	Stdin   io.Reader
	MaxSize int64
	client  *httpclient.Client
	logger  *slog.Logger
}

// NewResourceFetcher creates a fetcher using an HTTP client built from cfg.
func NewResourceFetcher(cfg httpclient.Config, maxSize int64) *ResourceFetcher {
	if cfg.MaxResponseSize == 0 {
		cfg.MaxResponseSize = maxSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ResourceFetcher{
		Stdin:   os.Stdin,
		MaxSize: maxSize,
		client:  httpclient.New(cfg),
		logger:  logger,
	}
}

// Fetch reads the whole resource at location.
func (f *ResourceFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	r, closeFn, err := f.open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	rc, enc, err := decompress.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	defer rc.Close()
	if enc != decompress.None {
		f.logger.Debug("decompressing input",
			slog.String("location", location),
			slog.String("encoding", string(enc)),
		)
	}
	data, err := decompress.ReadAll(rc, f.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	return data, nil
}

func (f *ResourceFetcher) open(ctx context.Context, location string) (io.Reader, func(), error) {
	noop := func() {}
	switch {
	case location == Stdio:
		if f.Stdin == nil {
			return nil, noop, fmt.Errorf("no standard input available")
		}
		return f.Stdin, noop, nil
	case IsRemoteURL(location):
		data, err := f.client.Fetch(ctx, location)
		if err != nil {
			return nil, noop, fmt.Errorf("fetching %s: %w", location, err)
		}
		return bytes.NewReader(data), noop, nil
	case IsFileURL(location):
		path, err := FilePathFromURL(location)
		if err != nil {
			return nil, noop, err
		}
		return openFile(path)
	default:
		return openFile(location)
	}
}

func openFile(path string) (io.Reader, func(), error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, func() {}, fmt.Errorf("opening input: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
