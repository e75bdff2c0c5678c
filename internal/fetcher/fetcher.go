// Package fetcher provides conditional HTTP fetching for llms.txt
// documents, flavor probing, and HTML-to-Markdown conversion. It
// abstracts external URL fetching for testability.
package fetcher

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/bad33ndj3/docdex/internal/domain"
)

const (
	userAgent       = "docdex/1.0"
	defaultTimeout  = 30 * time.Second
	maxRedirects    = 10
	defaultProbeRPS = 4
)

// flavorNames lists the llms.txt variants probed by CheckFlavors, in
// preference order.
var flavorNames = []string{"llms-full.txt", "llms.txt", "llms-mini.txt", "llms-base.txt"}

// Fetcher abstracts document fetching for testability.
type Fetcher interface {
	// Fetch performs an unconditional GET.
	Fetch(ctx context.Context, url string) (content string, sha string, err error)

	// FetchWithCache performs a conditional GET using the supplied
	// validators. A 304 yields a NotModified result carrying the
	// request's validators forward.
	FetchWithCache(ctx context.Context, url, etag, lastModified string) (*Result, error)

	// HeadMetadata probes a URL with HEAD, falling back to GET when
	// the server rejects HEAD.
	HeadMetadata(ctx context.Context, url string) (*HeadInfo, error)

	// CheckFlavors probes sibling llms.txt variants of the given URL.
	CheckFlavors(ctx context.Context, url string) ([]domain.FlavorInfo, error)
}

// Result is the outcome of a conditional fetch.
type Result struct {
	// NotModified is true for a 304; Content and SHA256 are empty.
	NotModified bool

	// Content is the fetched document, already converted to markdown
	// if the server returned HTML, validated as UTF-8.
	Content string

	// SHA256 is the hex digest over the exact decoded response bytes,
	// before any HTML conversion.
	SHA256 string

	// ETag and LastModified are the validators to persist.
	ETag         string
	LastModified string

	// FinalURL is the URL after following redirects.
	FinalURL string
}

// HeadInfo is the metadata returned by a HEAD probe.
type HeadInfo struct {
	Status        int
	ETag          string
	LastModified  string
	ContentLength int64
}

// HTTPFetcher is the production implementation using real HTTP
// requests.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.client.Timeout = d
	}
}

// WithProbeRate bounds flavor probing to n requests per second.
func WithProbeRate(n int) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(n), n)
		}
	}
}

// New creates an HTTPFetcher with sensible defaults: 30s timeout, at
// most 10 redirects, transparent gzip and brotli decoding.
func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultProbeRPS), defaultProbeRPS),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs an unconditional GET and hashes the decoded bytes.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, string, error) {
	res, err := f.FetchWithCache(ctx, url, "", "")
	if err != nil {
		return "", "", err
	}
	return res.Content, res.SHA256, nil
}

// FetchWithCache performs a conditional GET.
func (f *HTTPFetcher) FetchWithCache(ctx context.Context, url, etag, lastModified string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.ValidationErr("fetch", fmt.Sprintf("bad URL %q: %v", url, err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/plain, text/markdown, */*")
	req.Header.Set("Accept-Encoding", "gzip, br")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.NetworkErr("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		// Some servers omit validators on a 304; carry the request's
		// validators forward so the caller never loses them.
		res := &Result{
			NotModified:  true,
			ETag:         etag,
			LastModified: lastModified,
			FinalURL:     resp.Request.URL.String(),
		}
		if v := resp.Header.Get("ETag"); v != "" {
			res.ETag = v
		}
		if v := resp.Header.Get("Last-Modified"); v != "" {
			res.LastModified = v
		}
		return res, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.StatusErr("fetch", resp.StatusCode)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, domain.NetworkErr("fetch", err)
	}

	sum := sha256.Sum256(body)

	if !utf8.Valid(body) {
		return nil, domain.E(domain.KindInvalidUTF8, "fetch", fmt.Sprintf("%s is not valid UTF-8", url), nil)
	}
	content := string(body)

	// Servers occasionally answer an llms.txt URL with an HTML page.
	// Convert rather than cache markup.
	if isHTML(resp.Header.Get("Content-Type"), content) {
		md, convErr := htmltomarkdown.ConvertString(content, converter.WithDomain(domainOf(resp.Request.URL.String())))
		if convErr != nil {
			return nil, domain.E(domain.KindParse, "fetch", "convert HTML to markdown", convErr)
		}
		content = md
	}

	return &Result{
		Content:      content,
		SHA256:       hex.EncodeToString(sum[:]),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FinalURL:     resp.Request.URL.String(),
	}, nil
}

// HeadMetadata probes a URL. 405/501 means the server does not support
// HEAD; fall back to a GET and discard the body.
func (f *HTTPFetcher) HeadMetadata(ctx context.Context, url string) (*HeadInfo, error) {
	info, err := f.headOnce(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}
	if info.Status == http.StatusMethodNotAllowed || info.Status == http.StatusNotImplemented {
		return f.headOnce(ctx, http.MethodGet, url)
	}
	return info, nil
}

func (f *HTTPFetcher) headOnce(ctx context.Context, method, url string) (*HeadInfo, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, domain.ValidationErr("head", fmt.Sprintf("bad URL %q: %v", url, err))
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.NetworkErr("head", err)
	}
	defer resp.Body.Close()
	if method == http.MethodGet {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	}

	length := int64(-1)
	if v := resp.Header.Get("Content-Length"); v != "" {
		if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			length = n
		}
	}

	return &HeadInfo{
		Status:        resp.StatusCode,
		ETag:          resp.Header.Get("ETag"),
		LastModified:  resp.Header.Get("Last-Modified"),
		ContentLength: length,
	}, nil
}

// CheckFlavors probes the known llms.txt variants living next to the
// given URL and returns those answering 2xx/3xx, sorted by preference:
// llms-full.txt first, then llms.txt, then the rest.
func (f *HTTPFetcher) CheckFlavors(ctx context.Context, url string) ([]domain.FlavorInfo, error) {
	base := baseURLOf(url)
	var flavors []domain.FlavorInfo

	for _, name := range flavorNames {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, domain.NetworkErr("flavors", err)
		}

		flavorURL := base + "/" + name
		info, err := f.HeadMetadata(ctx, flavorURL)
		if err != nil {
			// Keep the user's own URL in the list even when the probe
			// fails; the other variants are best-effort discoveries.
			if strings.HasSuffix(url, "/"+name) {
				flavors = append(flavors, domain.FlavorInfo{Name: name, URL: url})
			}
			continue
		}
		if info.Status >= 200 && info.Status < 400 {
			fi := domain.FlavorInfo{Name: name, URL: flavorURL}
			if info.ContentLength > 0 {
				fi.Size = info.ContentLength
			}
			flavors = append(flavors, fi)
		}
	}

	// A custom llms*.txt filename from the caller's URL is kept even
	// when it is not one of the probed names.
	if name := lastSegment(url); strings.HasPrefix(name, "llms") && strings.HasSuffix(name, ".txt") {
		found := false
		for _, fl := range flavors {
			if fl.Name == name {
				found = true
				break
			}
		}
		if !found {
			flavors = append(flavors, domain.FlavorInfo{Name: name, URL: url})
		}
	}

	sort.SliceStable(flavors, func(i, j int) bool {
		return flavorRank(flavors[i].Name) < flavorRank(flavors[j].Name)
	})

	return flavors, nil
}

func flavorRank(name string) int {
	for i, known := range flavorNames {
		if name == known {
			return i
		}
	}
	return len(flavorNames)
}

// decodeBody reads the response body, applying gzip or brotli
// decompression according to Content-Encoding.
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// isHTML sniffs whether the payload is an HTML page rather than
// markdown or plain text.
func isHTML(contentType, body string) bool {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
				return true
			}
			if mediaType == "text/plain" || mediaType == "text/markdown" {
				return false
			}
		}
	}
	head := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// baseURLOf strips the filename from a URL, leaving the directory.
func baseURLOf(url string) string {
	slash := strings.LastIndex(url, "/")
	if slash < 0 {
		return url
	}
	// Don't strip the scheme separator of a bare origin.
	if slash >= 2 && url[slash-2:slash+1] == "://" {
		return url
	}
	return url[:slash]
}

func lastSegment(url string) string {
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

func domainOf(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		scheme := rest[:i]
		host := rest[i+3:]
		if j := strings.IndexByte(host, '/'); j >= 0 {
			host = host[:j]
		}
		return scheme + "://" + host
	}
	return rawURL
}

// IsTimeout reports whether the error chain contains a deadline or
// cancellation, which callers may treat as retryable.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
