// Package restcountries fetches the country list that seeds a directory.
//
// Two sources share the same wire format: Client calls the REST Countries
// v3.1 API over HTTP, and FileSource reads a snapshot saved from it (plain or
// gzip-compressed). Both return records in the order the source lists them.
package restcountries

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"gitlab.com/tozd/go/errors"

	"github.com/JonMunkholm/worldview/internal/directory"
)

var (
	// ErrFetchFailed matches every FetchError regardless of kind.
	ErrFetchFailed = errors.New("fetch countries failed")

	// ErrTransport marks a request that never produced a response.
	ErrTransport = errors.New("upstream unreachable")

	// ErrUpstreamStatus marks a non-2xx upstream response.
	ErrUpstreamStatus = errors.New("upstream returned error status")

	// ErrDecode marks a body that is not the expected JSON shape.
	ErrDecode = errors.New("decode countries response")
)

// FetchError is returned by every source in this package. errors.Is matches
// it against ErrFetchFailed, its Kind, and the underlying cause.
type FetchError struct {
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	msg := ErrFetchFailed.Error() + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() []error {
	errs := []error{ErrFetchFailed, e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func fetchError(kind, err error) error {
	return &FetchError{Kind: kind, Err: err}
}

const (
	// DefaultBaseURL is the public REST Countries v3.1 endpoint.
	DefaultBaseURL = "https://restcountries.com/v3.1"

	// DefaultTimeout bounds a single FetchAll call.
	DefaultTimeout = 15 * time.Second

	// maxBodySize caps the response body; the full list is well under 1MB.
	maxBodySize = 32 << 20

	userAgent = "worldview/1.0"
)

// fields limits the upstream response to what records carry.
var fields = []string{"name", "cca2", "cca3", "region", "population", "capital", "flags"}

// Client fetches all countries from the REST Countries API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (no trailing /all).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout bounds each FetchAll call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a Client with defaults applied before opts.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		userAgent:  userAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL FetchAll requests.
func (c *Client) Endpoint() string {
	q := url.Values{}
	q.Set("fields", strings.Join(fields, ","))
	return c.baseURL + "/all?" + q.Encode()
}

// FetchAll issues one GET for the full list. It does not retry.
func (c *Client) FetchAll(ctx context.Context) ([]directory.Record, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint(), nil)
	if err != nil {
		return nil, fetchError(ErrTransport, errors.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fetchError(ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fetchError(ErrUpstreamStatus, errors.New(resp.Status))
	}

	return decode(io.LimitReader(resp.Body, maxBodySize))
}

// country is the subset of the v3.1 wire shape that records are built from.
type country struct {
	Name struct {
		Common   string `json:"common"`
		Official string `json:"official"`
	} `json:"name"`
	CCA2       string   `json:"cca2"`
	CCA3       string   `json:"cca3"`
	Region     string   `json:"region"`
	Population int64    `json:"population"`
	Capital    []string `json:"capital"`
	Flags      struct {
		PNG string `json:"png"`
		SVG string `json:"svg"`
		Alt string `json:"alt"`
	} `json:"flags"`
}

func (c country) record() directory.Record {
	r := directory.Record{
		ID:          c.CCA2,
		DisplayName: c.Name.Common,
		Region:      directory.Region(c.Region),
		Population:  c.Population,
		FlagURL:     c.Flags.PNG,
		FlagAlt:     c.Flags.Alt,
	}
	if r.ID == "" {
		r.ID = c.CCA3
	}
	if r.ID == "" {
		r.ID = c.Name.Common
	}
	if len(c.Capital) > 0 {
		r.Capital = c.Capital[0]
	}
	return r
}

func decode(r io.Reader) ([]directory.Record, error) {
	var countries []country
	if err := json.NewDecoder(r).Decode(&countries); err != nil {
		return nil, fetchError(ErrDecode, err)
	}

	records := make([]directory.Record, len(countries))
	for i, c := range countries {
		records[i] = c.record()
	}
	return records, nil
}
