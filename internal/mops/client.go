package mops

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/time/rate"

	"github.com/formosa-data/formosa/internal/observability"
	"github.com/formosa-data/formosa/internal/shared"
)

// Encoding names the charset used to decode a MOPS response body.
type Encoding string

const (
	EncodingUTF8 Encoding = "utf-8"
	EncodingBig5 Encoding = "big5"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// Documents above this size are rejected before parsing.
	maxBodyBytes = 50 << 20

	// Decoding fallback kicks in when at least 1% of bytes decoded to U+FFFD.
	replacementThreshold = 0.01
)

// ClientConfig holds the tunables for the MOPS client.
type ClientConfig struct {
	BaseURL     string
	MinInterval time.Duration
	Timeout     time.Duration
	CABundle    string
}

// Client is a rate-limited HTTP client for MOPS endpoints. Requests to the
// same host are spaced at least MinInterval apart; concurrent callers queue
// on the per-host limiter and wait cooperatively.
type Client struct {
	base    string
	http    *http.Client
	logger  *slog.Logger
	metrics *observability.Metrics

	interval time.Duration
	mu       sync.Mutex
	hosts    map[string]*rate.Limiter
}

// Response carries the raw body and its decoded text form.
type Response struct {
	StatusCode int
	Body       []byte
	Text       string
}

// NewClient constructs a MOPS client. TLS verification stays enabled; a
// private CA bundle path may be supplied for proxied deployments.
func NewClient(cfg ClientConfig, logger *slog.Logger, metrics *observability.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://mops.twse.com.tw"
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, fmt.Errorf("mops: read ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("mops: ca bundle %s contains no certificates", cfg.CABundle)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	}

	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger:   logger,
		metrics:  metrics,
		interval: cfg.MinInterval,
		hosts:    make(map[string]*rate.Limiter),
	}, nil
}

// BaseURL returns the configured MOPS base, for building referers and URLs.
func (c *Client) BaseURL() string {
	return c.base
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.hosts[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.interval), 1)
		c.hosts[host] = lim
	}
	return lim
}

// Get fetches a URL and decodes the body with the given encoding hint.
func (c *Client) Get(ctx context.Context, rawURL string, enc Encoding) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil, enc)
}

// PostForm posts form values to an AJAX endpoint under /mops/web.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values, enc Encoding) (*Response, error) {
	return c.do(ctx, http.MethodPost, c.base+"/mops/web/"+endpoint, form, enc)
}

func (c *Client) do(ctx context.Context, method, rawURL string, form url.Values, enc Encoding) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", ErrClient, err)
	}

	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrClient, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", c.base)
	req.Header.Set("Accept-Language", "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.observe(u.Host, "network_error")
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	c.observe(u.Host, strconv.Itoa(resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: http %d from %s", ErrTransient, resp.StatusCode, u.Host)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: http %d from %s", ErrClient, resp.StatusCode, u.Host)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read body: %v", ErrTransient, err)
	}
	if len(raw) > maxBodyBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, rawURL)
	}

	text := decodeBody(raw, enc)
	return &Response{StatusCode: resp.StatusCode, Body: raw, Text: text}, nil
}

func (c *Client) observe(host, outcome string) {
	c.metrics.ObserveUpstreamFetch(host, outcome)
}

// NoData reports whether the body is one of the MOPS "no matching data" pages.
func (r *Response) NoData() bool {
	return strings.Contains(r.Text, "查無資料") || strings.Contains(r.Text, "查無符合資料")
}

// decodeBody decodes raw bytes using the hint, falling back to the other
// charset when the result carries too many replacement characters. MOPS
// serves Big5 on legacy static pages and UTF-8 on AJAX endpoints, and the
// hint is occasionally wrong.
func decodeBody(raw []byte, enc Encoding) string {
	primary := decodeAs(raw, enc)
	if replacementRatio(primary, len(raw)) < replacementThreshold {
		return primary
	}
	other := EncodingBig5
	if enc == EncodingBig5 {
		other = EncodingUTF8
	}
	fallback := decodeAs(raw, other)
	if replacementRatio(fallback, len(raw)) < replacementRatio(primary, len(raw)) {
		return fallback
	}
	return primary
}

func decodeAs(raw []byte, enc Encoding) string {
	if enc == EncodingBig5 {
		decoded, err := traditionalchinese.Big5.NewDecoder().Bytes(raw)
		if err != nil {
			return string(bytes.ToValidUTF8(raw, []byte(string(utf8.RuneError))))
		}
		return string(decoded)
	}
	return string(bytes.ToValidUTF8(raw, []byte(string(utf8.RuneError))))
}

func replacementRatio(s string, rawLen int) float64 {
	if rawLen == 0 {
		return 0
	}
	return float64(strings.Count(s, string(utf8.RuneError))) / float64(rawLen)
}

// DownloadXBRL fetches the XBRL package for a filing. The body is either a
// ZIP archive or a bare iXBRL document depending on the filing vintage.
func (c *Client) DownloadXBRL(ctx context.Context, stockID string, rocYear, quarter int, consolidated bool) ([]byte, error) {
	reportID := "C"
	if !consolidated {
		reportID = "A"
	}
	u := fmt.Sprintf(
		"%s/server-java/FileDownLoad?functionName=t164sb01&step=9&co_id=%s&year=%d&season=%d&report_id=%s",
		c.base, url.QueryEscape(stockID), rocYear+shared.ROCOffset, quarter, reportID,
	)

	if c.logger != nil {
		c.logger.Info("downloading xbrl package",
			slog.String("stock_id", stockID),
			slog.Int("year", rocYear),
			slog.Int("quarter", quarter))
	}

	resp, err := c.Get(ctx, u, EncodingUTF8)
	if err != nil {
		return nil, err
	}
	if IsZIP(resp.Body) || IsInlineXBRL(resp.Body) {
		return resp.Body, nil
	}
	return nil, fmt.Errorf("%w: %s %dQ%d", ErrInvalidContent, stockID, rocYear, quarter)
}

// RevenueURL builds the static monthly revenue page URL. Year is ROC.
func (c *Client) RevenueURL(market string, rocYear, month, companyType int) string {
	return fmt.Sprintf("%s/nas/t21/%s/t21sc03_%d_%d_%d.html", c.base, market, rocYear, month, companyType)
}

// IsZIP reports whether content starts with the ZIP magic bytes.
func IsZIP(content []byte) bool {
	return bytes.HasPrefix(content, []byte("PK"))
}

// IsInlineXBRL reports whether content carries inline XBRL tags.
func IsInlineXBRL(content []byte) bool {
	return bytes.Contains(content, []byte("ix:nonFraction")) || bytes.Contains(content, []byte("ix:nonNumeric"))
}
