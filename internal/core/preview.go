package core

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxPreviewHeadings = 5
	maxExcerptRunes    = 280
)

// Preview is what a resurrected page looked like, reduced to text.
type Preview struct {
	ArchiveURL  string   `json:"archiveUrl"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Headings    []string `json:"headings"`
	Excerpt     string   `json:"excerpt"`
	LinkCount   int      `json:"linkCount"`
}

// PreviewOptions controls how a snapshot is fetched for previewing.
type PreviewOptions struct {
	Timeout time.Duration
	// MaxResourceSize rejects documents larger than this many bytes. 0 means
	// no limit.
	MaxResourceSize int64
	HTTPClient      *http.Client
}

// DefaultPreviewOptions returns the defaults used by the HTTP handlers.
func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{
		Timeout:         DefaultResourceTimeout,
		MaxResourceSize: MaxResourceSize,
	}
}

// FetchPreview downloads the archived page and summarises it. Any fetch or
// parse failure is an ErrUpstream error.
func FetchPreview(ctx context.Context, archiveURL string, opts PreviewOptions) (Preview, error) {
	client := opts.HTTPClient
	if client == nil {
		client = newFetchClient(opts.Timeout)
	}

	res, err := fetchURL(ctx, client, archiveURL, opts.MaxResourceSize)
	if err != nil {
		return Preview{}, Upstream(MsgUpstreamFailure, err)
	}

	p, err := ExtractPreview(res.Body)
	if err != nil {
		return Preview{}, Upstream(MsgUpstreamFailure, err)
	}
	p.ArchiveURL = archiveURL
	return p, nil
}

// ExtractPreview summarises an HTML document.
func ExtractPreview(html []byte) (Preview, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Preview{}, err
	}

	p := Preview{
		Title:    collapse(doc.Find("title").First().Text()),
		Headings: []string{},
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		p.Description = collapse(desc)
	}

	doc.Find("h1, h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := collapse(s.Text()); text != "" {
			p.Headings = append(p.Headings, text)
		}
		return len(p.Headings) < maxPreviewHeadings
	})
	p.LinkCount = doc.Find("a[href]").Length()

	body := doc.Find("body").First()
	body.Find("script, style, noscript").Remove()
	p.Excerpt = truncateRunes(collapse(body.Text()), maxExcerptRunes)
	return p, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}
