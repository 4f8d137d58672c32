package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// InlineOptions controls how an archived page is made self-contained.
type InlineOptions struct {
	// BaseURL resolves relative references, normally the snapshot's archive URL.
	BaseURL string
	// Timeout is the per-resource fetch timeout.
	Timeout time.Duration
	// MaxResourceSize skips resources larger than this many bytes and fails
	// FetchAndInline for a larger page. 0 means no limit.
	MaxResourceSize int64
	InlineImages    bool
	InlineCSS       bool
	// StripScripts removes <script> elements. Archived scripts mostly call
	// endpoints that no longer exist.
	StripScripts bool
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// DefaultInlineOptions returns the options used for resurrected pages.
func DefaultInlineOptions(baseURL string) InlineOptions {
	return InlineOptions{
		BaseURL:         baseURL,
		Timeout:         DefaultResourceTimeout,
		MaxResourceSize: MaxResourceSize,
		InlineImages:    true,
		InlineCSS:       true,
		StripScripts:    true,
	}
}

// InlineSnapshot rewrites html so that stylesheets and images travel with
// the document. Resources that cannot be fetched are left as they were.
func InlineSnapshot(ctx context.Context, html string, opts InlineOptions) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	in := &inliner{opts: opts, client: opts.HTTPClient, logger: opts.Logger}
	if in.client == nil {
		in.client = newFetchClient(opts.Timeout)
	}
	if in.logger == nil {
		in.logger = slog.Default()
	}

	if opts.StripScripts {
		doc.Find("script").Remove()
	}

	if opts.InlineCSS {
		doc.Find("link[rel='stylesheet']").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			cssURL := resolveURL(baseURL, href)
			if cssURL == "" {
				return
			}
			res, err := fetchURL(ctx, in.client, cssURL, opts.MaxResourceSize)
			if err != nil {
				in.skip("stylesheet", cssURL, err)
				return
			}
			css := in.inlineCSSURLs(ctx, string(res.Body), cssURL)
			s.ReplaceWithHtml("<style>" + css + "</style>")
		})
	}

	if opts.InlineImages {
		doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			if strings.HasPrefix(src, "data:") {
				return
			}
			imgURL := resolveURL(baseURL, src)
			if imgURL == "" {
				return
			}
			dataURI, err := in.dataURI(ctx, imgURL)
			if err != nil {
				in.skip("image", imgURL, err)
				return
			}
			s.SetAttr("src", dataURI)
			s.RemoveAttr("srcset")
		})

		doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
			style, _ := s.Attr("style")
			if strings.Contains(style, "url(") {
				s.SetAttr("style", in.inlineCSSURLs(ctx, style, opts.BaseURL))
			}
		})
	}

	head := doc.Find("head")
	if head.Length() > 0 && doc.Find("base").Length() == 0 {
		head.PrependHtml(fmt.Sprintf(`<base href="%s">`, baseURL.String()))
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize HTML: %w", err)
	}
	return out, nil
}

// FetchAndInline downloads archiveURL and inlines it.
func FetchAndInline(ctx context.Context, archiveURL string, opts InlineOptions) (string, error) {
	client := opts.HTTPClient
	if client == nil {
		client = newFetchClient(opts.Timeout)
	}
	res, err := fetchURL(ctx, client, archiveURL, opts.MaxResourceSize)
	if err != nil {
		return "", Upstream(MsgUpstreamFailure, err)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = res.FinalURL
	}
	opts.HTTPClient = client
	html, err := InlineSnapshot(ctx, string(res.Body), opts)
	if err != nil {
		return "", Upstream(MsgUpstreamFailure, err)
	}
	return html, nil
}

type inliner struct {
	opts   InlineOptions
	client *http.Client
	logger *slog.Logger
}

func (in *inliner) skip(kind, resourceURL string, err error) {
	// missing resources are the norm in old captures
	if strings.Contains(err.Error(), "HTTP 404") {
		return
	}
	in.logger.Debug("resource not inlined", "kind", kind, "url", resourceURL, "error", err)
}

func (in *inliner) dataURI(ctx context.Context, resourceURL string) (string, error) {
	res, err := fetchURL(ctx, in.client, resourceURL, in.opts.MaxResourceSize)
	if err != nil {
		return "", err
	}
	contentType := res.ContentType
	if idx := strings.Index(contentType, ";"); idx > 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(res.Body), nil
}

// inlineCSSURLs replaces url(...) references in css with data URIs.
func (in *inliner) inlineCSSURLs(ctx context.Context, css, baseURLStr string) string {
	base, err := url.Parse(baseURLStr)
	if err != nil {
		return css
	}

	var out strings.Builder
	rest := css
	for {
		start := strings.Index(rest, "url(")
		if start == -1 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])

		end := strings.Index(rest[start+4:], ")")
		if end == -1 {
			out.WriteString(rest[start:])
			break
		}
		whole := rest[start : start+4+end+1]
		ref := strings.Trim(strings.TrimSpace(rest[start+4:start+4+end]), `"'`)
		rest = rest[start+4+end+1:]

		resolved := ""
		if !strings.HasPrefix(ref, "data:") {
			resolved = resolveURL(base, ref)
		}
		if resolved == "" {
			out.WriteString(whole)
			continue
		}
		dataURI, err := in.dataURI(ctx, resolved)
		if err != nil {
			in.skip("css resource", resolved, err)
			out.WriteString(whole)
			continue
		}
		out.WriteString("url(" + dataURI + ")")
	}
	return out.String()
}
