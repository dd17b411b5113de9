// Package contextfetch seeds a session's project context from a URL: it
// fetches the page, extracts the readable article, and converts it to
// markdown suitable for embedding in the interview system prompt.
package contextfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultMaxBytes  = 2 * 1024 * 1024 // 2MB page cap
	defaultMaxRunes  = 8000            // context embedded in every prompt, keep it bounded
	defaultUserAgent = "intakekit/1.0 (+context-fetch)"
)

// Fetcher fetches project-brief pages and reduces them to markdown.
type Fetcher struct {
	client       *http.Client
	converter    *md.Converter
	maxBytes     int64
	maxRunes     int
	allowPrivate bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithMaxContextRunes caps the returned markdown length.
func WithMaxContextRunes(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxRunes = n
		}
	}
}

// WithAllowPrivateHosts disables the private-address guard. Tests only.
func WithAllowPrivateHosts() Option {
	return func(f *Fetcher) {
		f.allowPrivate = true
	}
}

// NewFetcher creates a context fetcher. Connections to private address
// space are refused at dial time, after DNS resolution, so rebinding the
// hostname cannot bypass the check.
func NewFetcher(opts ...Option) *Fetcher {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	f := &Fetcher{
		converter: converter,
		maxBytes:  defaultMaxBytes,
		maxRunes:  defaultMaxRunes,
	}

	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("invalid address: %w", err)
			}
			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("DNS lookup failed: %w", err)
			}
			for _, ipAddr := range ips {
				if !f.allowPrivate && isPrivateIP(ipAddr.IP) {
					return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
				}
			}
			var lastErr error
			for _, ipAddr := range ips {
				conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
				if dialErr == nil {
					return conn, nil
				}
				lastErr = dialErr
			}
			if lastErr == nil {
				lastErr = fmt.Errorf("no resolved addresses for %s", host)
			}
			return nil, lastErr
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	f.client = &http.Client{Transport: transport, Timeout: defaultTimeout}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the page at rawURL and returns its readable content as
// markdown, capped to the configured length.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid context URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch context URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("context URL returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read context page: %w", err)
	}

	return f.Reduce(body, u)
}

// Reduce extracts the readable article from HTML and converts it to capped
// markdown. Split from Fetch so the reduction path is testable offline.
func (f *Fetcher) Reduce(page []byte, u *url.URL) (string, error) {
	article, err := readability.FromReader(strings.NewReader(string(page)), u)
	if err != nil {
		return "", fmt.Errorf("extract readable content: %w", err)
	}

	markdown, err := f.converter.ConvertString(article.Content)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)

	if article.Title != "" {
		markdown = "# " + article.Title + "\n\n" + markdown
	}

	runes := []rune(markdown)
	if len(runes) > f.maxRunes {
		markdown = string(runes[:f.maxRunes]) + "\n\n[truncated]"
	}
	return markdown, nil
}

// isPrivateIP reports whether ip belongs to loopback, link-local, or
// RFC 1918/4193 space.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified()
}
