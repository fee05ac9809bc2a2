package restcountries

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"gitlab.com/tozd/go/errors"

	"github.com/JonMunkholm/worldview/internal/directory"
)

// FileSource reads a saved API response from disk. Paths ending in ".gz"
// are gunzipped first.
type FileSource struct {
	Path string
}

// FetchAll reads and decodes the whole file on every call.
func (f FileSource) FetchAll(ctx context.Context) ([]directory.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fetchError(ErrTransport, err)
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fetchError(ErrTransport, errors.Errorf("open snapshot: %w", err))
	}
	defer file.Close()

	r := bufio.NewReader(file)
	if strings.HasSuffix(f.Path, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fetchError(ErrDecode, errors.Errorf("open gzip snapshot: %w", err))
		}
		defer zr.Close()
		r = bufio.NewReader(zr)
	}

	return decode(io.LimitReader(skipBOM(r), maxBodySize))
}

// utf8BOM is prepended by some Windows editors when saving a snapshot.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a leading UTF-8 byte order mark, which the JSON decoder
// would otherwise reject.
func skipBOM(r *bufio.Reader) *bufio.Reader {
	if b, err := r.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		r.Discard(len(utf8BOM))
	}
	return r
}

// Fetcher is satisfied by Client and FileSource.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]directory.Record, error)
}

// SourceConfig selects and configures a Fetcher.
type SourceConfig struct {
	URL     string
	File    string
	Timeout time.Duration
}

// New returns a FileSource when File is set, otherwise a Client for URL.
func New(cfg SourceConfig) Fetcher {
	if cfg.File != "" {
		return FileSource{Path: cfg.File}
	}
	opts := []Option{}
	if cfg.URL != "" {
		opts = append(opts, WithBaseURL(cfg.URL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	return NewClient(opts...)
}
