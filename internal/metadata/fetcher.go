// Package metadata extracts link-preview information (title, description,
// image, favicon) from a web page.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sakif/repo-rater/internal/apperror"
	"github.com/sakif/repo-rater/internal/model"
)

const (
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a page is read.
	maxBodyBytes = 2 << 20

	defaultFavicon = "/favicon.ico"
	userAgent      = "repo-rater-preview/1.0"
)

// Fetcher retrieves pages and parses their preview metadata. It keeps no
// state between calls: the same page always yields the same Preview.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher returns a Fetcher with its own HTTP client. A timeout <= 0
// uses DefaultTimeout. The client only connects to public addresses, so a
// caller-supplied URL cannot reach the server's own network.
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewFetcherWithClient(&http.Client{
		Timeout:   timeout,
		Transport: publicTransport(),
	}, logger)
}

// NewFetcherWithClient uses client as is, without the public-address check.
func NewFetcherWithClient(client *http.Client, logger *slog.Logger) *Fetcher {
	return &Fetcher{client: client, logger: logger}
}

// Preview fetches rawURL and extracts its preview. Any failure (bad URL,
// network error, non-2xx status, unreadable HTML) is returned wrapped in
// apperror.ErrMetadataFetch.
func (f *Fetcher) Preview(ctx context.Context, rawURL string) (*model.Preview, error) {
	start := time.Now()

	p, err := f.fetch(ctx, rawURL)
	if err != nil {
		f.logger.Debug("metadata fetch failed",
			slog.String("url", rawURL),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, apperror.MetadataFetch(rawURL, err)
	}

	f.logger.Debug("metadata fetched",
		slog.String("url", rawURL),
		slog.Duration("duration", time.Since(start)),
	)
	return p, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*model.Preview, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("url has no host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return Extract(doc), nil
}

// Extract reads preview fields from a parsed document. Open Graph tags win
// over their plain HTML counterparts.
func Extract(doc *goquery.Document) *model.Preview {
	title := metaContent(doc, `meta[property="og:title"]`)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	description := metaContent(doc, `meta[property="og:description"]`)
	if description == "" {
		description = metaContent(doc, `meta[name="description"]`)
	}

	favicon, _ := doc.Find(`link[rel="icon"]`).First().Attr("href")
	if favicon = strings.TrimSpace(favicon); favicon == "" {
		favicon = defaultFavicon
	}

	return &model.Preview{
		Title:       title,
		Description: description,
		Image:       metaContent(doc, `meta[property="og:image"]`),
		Favicon:     favicon,
	}
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}
