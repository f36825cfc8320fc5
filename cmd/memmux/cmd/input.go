package cmd

import (
	"context"
	"io"

	"github.com/jmylchreest/memmux/internal/urlutil"
	"github.com/jmylchreest/memmux/internal/version"
	"github.com/jmylchreest/memmux/pkg/httpclient"
)

// stdio is the path naming standard input or output.
const stdio = urlutil.Stdio

// readInput loads a media file into memory. path is a file, a file:// or
// http(s) URL, or "-" for stdin.
func readInput(ctx context.Context, path string, stdin io.Reader, limit int64) ([]byte, error) {
	hc := httpclient.DefaultConfig()
	hc.UserAgent = version.UserAgent()
	hc.Logger = logger
	fetcher := urlutil.NewResourceFetcher(hc, limit)
	fetcher.Stdin = stdin
	return fetcher.Fetch(ctx, path)
}
