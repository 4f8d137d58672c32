// Package wayback queries the Wayback Machine CDX index.
package wayback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/seckatie/echoes/internal/core"
	"github.com/seckatie/echoes/internal/core/store"
)

// cdxFields is the column list requested from the index, in row order.
const cdxFields = "timestamp,original,statuscode,mimetype"

// maxIndexPayload bounds how much of an index response is read.
const maxIndexPayload = 4 * 1024 * 1024

// Options configures a Client.
type Options struct {
	// Endpoint is the CDX search URL.
	Endpoint string
	// SnapshotBaseURL is the prefix for derived archive URLs.
	SnapshotBaseURL string
	// Variant selects core.VariantWrapped or core.VariantIdentity archive URLs.
	Variant string
	// Limit caps the number of rows requested. <= 0 uses the default.
	Limit int
	// Timeout bounds each index request. <= 0 uses the default.
	Timeout time.Duration
	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the archive index client.
type Client struct {
	endpoint string
	base     string
	variant  string
	limit    int
	http     *http.Client
	logger   *slog.Logger
}

// New builds a Client, filling unset options with defaults.
func New(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = core.DefaultCDXEndpoint
	}
	if opts.SnapshotBaseURL == "" {
		opts.SnapshotBaseURL = core.DefaultSnapshotBaseURL
	}
	if opts.Variant == "" {
		opts.Variant = core.VariantWrapped
	}
	if opts.Limit <= 0 {
		opts.Limit = core.DefaultSnapshotLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = core.DefaultUpstreamTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		endpoint: opts.Endpoint,
		base:     strings.TrimRight(opts.SnapshotBaseURL, "/"),
		variant:  opts.Variant,
		limit:    opts.Limit,
		http:     opts.HTTPClient,
		logger:   opts.Logger,
	}
}

// Query asks the index for captures of target. An empty slice with a nil
// error means the index knows no captures; every other failure is a
// core.ErrUpstream error.
func (c *Client) Query(ctx context.Context, target string) ([]store.Snapshot, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, core.Upstream(core.MsgUpstreamFailure, fmt.Errorf("invalid index endpoint: %w", err))
	}
	q := u.Query()
	q.Set("url", target)
	q.Set("output", "json")
	q.Set("limit", strconv.Itoa(c.limit))
	q.Set("fl", cdxFields)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, core.Upstream(core.MsgUpstreamFailure, err)
	}
	req.Header.Set("User-Agent", core.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.Upstream(core.MsgUpstreamFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexPayload))
	if err != nil {
		return nil, core.Upstream(core.MsgUpstreamFailure, fmt.Errorf("read index response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.Upstream(core.MsgUpstreamFailure, fmt.Errorf("index returned HTTP %d", resp.StatusCode))
	}

	snapshots, err := c.parse(body)
	if err != nil {
		return nil, core.Upstream(core.MsgUpstreamFailure, err)
	}

	c.logger.Debug("archive index queried",
		"url", target,
		"snapshots", len(snapshots),
		"elapsed", time.Since(start))
	return snapshots, nil
}

// parse turns a CDX JSON table into snapshots. The first row is the header.
func (c *Client) parse(body []byte) ([]store.Snapshot, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []store.Snapshot{}, nil
	}

	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("malformed index payload: %w", err)
	}
	if len(rows) <= 1 {
		return []store.Snapshot{}, nil
	}

	out := make([]store.Snapshot, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 4 {
			return nil, fmt.Errorf("malformed index row %d: expected 4 fields, got %d", i+1, len(row))
		}
		out = append(out, store.Snapshot{
			CapturedAt:  row[0],
			OriginalURL: row[1],
			StatusCode:  row[2],
			MimeType:    row[3],
			ArchiveURL:  c.ArchiveURL(row[0], row[1]),
		})
	}
	return out, nil
}

// ArchiveURL derives the archive address of one capture.
func (c *Client) ArchiveURL(capturedAt, originalURL string) string {
	return ArchiveURL(c.base, c.variant, capturedAt, originalURL)
}

// ArchiveURL derives <base>/<capturedAt>[id_]/<originalURL>.
func ArchiveURL(base, variant, capturedAt, originalURL string) string {
	suffix := ""
	if variant == core.VariantIdentity {
		suffix = "id_"
	}
	return strings.TrimRight(base, "/") + "/" + capturedAt + suffix + "/" + originalURL
}
