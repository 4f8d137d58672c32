package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AllowInternalURLsForTesting lets fetches reach loopback and private
// addresses. httptest servers listen on 127.0.0.1.
var AllowInternalURLsForTesting = false

// fetched is the body and content type of one GET.
type fetched struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// ErrResourceTooLarge is returned for bodies over the configured size limit.
var ErrResourceTooLarge = errors.New("resource too large")

// fetchURL GETs urlStr, refusing internal hosts. Bodies larger than maxSize
// bytes are rejected with ErrResourceTooLarge (0 means no limit).
func fetchURL(ctx context.Context, client *http.Client, urlStr string, maxSize int64) (fetched, error) {
	if err := checkPublicURL(urlStr); err != nil {
		return fetched{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return fetched{}, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fetched{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fetched{}, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if maxSize > 0 {
		reader = io.LimitReader(resp.Body, maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return fetched{}, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return fetched{}, fmt.Errorf("%w: over %d bytes", ErrResourceTooLarge, maxSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return fetched{Body: data, ContentType: contentType, FinalURL: resp.Request.URL.String()}, nil
}

const maxRedirects = 10

// newFetchClient returns a client that applies checkPublicURL to every
// redirect hop.
func newFetchClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, CheckRedirect: checkRedirect}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return checkPublicURL(req.URL.String())
}

// checkPublicURL rejects non-http schemes and hosts that are literal
// loopback, private or link-local addresses, or "localhost".
func checkPublicURL(urlStr string) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if AllowInternalURLsForTesting {
		return nil
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("refusing internal host %q", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("refusing internal address %q", host)
		}
	}
	return nil
}

// resolveURL resolves a potentially relative URL against a base URL.
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(refURL).String()
}
