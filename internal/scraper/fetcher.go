package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/patentscout/internal/bypass"
	"github.com/FranksOps/patentscout/internal/fingerprint"
	"github.com/FranksOps/patentscout/internal/metrics"
	"github.com/FranksOps/patentscout/pkg/httpclient"
	"github.com/FranksOps/patentscout/pkg/proxy"
	"github.com/FranksOps/patentscout/pkg/ratelimit"
	"github.com/FranksOps/patentscout/pkg/useragent"
)

// ErrDisallowed is returned by Fetch when robots.txt forbids the URL.
var ErrDisallowed = errors.New("scraper: disallowed by robots.txt")

// DefaultMaxBodyBytes caps how much of a page is read.
const DefaultMaxBodyBytes = 5 << 20

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	// RandomUA picks User-Agents at random instead of round-robin.
	RandomUA bool
	// Fingerprint defaults to fingerprint.ProfileGo. ProfileAuto matches
	// the TLS handshake to the browser family of each request's User-Agent.
	Fingerprint        fingerprint.Profile
	InsecureSkipVerify bool
	Limiter            *ratelimit.Limiter
	// RespectRobots checks robots.txt before every fetch.
	RespectRobots bool
	MaxBodyBytes  int64
	Logger        *slog.Logger
}

// Page is a fetched HTTP response.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	UserAgent  string
	// Detection names the bot-protection vendor that challenged the
	// request, or is empty.
	Detection string
}

// Fetcher performs single URL fetches with User-Agent rotation, TLS
// fingerprinting, optional proxy rotation and rate limiting. It is safe for
// concurrent use.
type Fetcher struct {
	config  FetchConfig
	clients map[fingerprint.Profile]*httpclient.Client
	robots  *RobotsTxtAuditor
	logger  *slog.Logger
}

// NewFetcher initializes a Fetcher. Clients are built once so connection
// pools and cookie jars live as long as the Fetcher.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultEnrichTimeout
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	profiles := []fingerprint.Profile{cfg.Fingerprint}
	if cfg.Fingerprint == fingerprint.ProfileAuto {
		profiles = []fingerprint.Profile{
			fingerprint.ProfileChrome,
			fingerprint.ProfileFirefox,
			fingerprint.ProfileSafari,
			fingerprint.ProfileGo,
		}
	}

	f := &Fetcher{
		config:  cfg,
		clients: make(map[fingerprint.Profile]*httpclient.Client, len(profiles)),
		logger:  cfg.Logger,
	}

	for _, p := range profiles {
		transport, err := fingerprint.Transport(p, fingerprint.Options{
			Proxy:              proxyFromContext,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		})
		if err != nil {
			return nil, fmt.Errorf("setting up %s transport: %w", p, err)
		}

		client, err := httpclient.New(httpclient.Config{
			Timeout:      cfg.Timeout,
			MaxRedirects: cfg.MaxRedirects,
			UseCookieJar: cfg.UseCookieJar,
			Transport:    transport,
		})
		if err != nil {
			return nil, fmt.Errorf("creating client: %w", err)
		}
		f.clients[p] = client
	}

	if cfg.RespectRobots {
		f.robots = NewRobotsTxtAuditor(f, cfg.Logger)
	}

	return f, nil
}

// proxyFromContext routes a request through the proxy stored in its context,
// falling back to the environment. Loopback hosts never use the environment.
func proxyFromContext(req *http.Request) (*url.URL, error) {
	if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
		return u, nil
	}
	return http.ProxyFromEnvironment(req)
}

func (f *Fetcher) userAgent() string {
	if f.config.RandomUA {
		return f.config.UAPool.Random()
	}
	return f.config.UAPool.Next()
}

func (f *Fetcher) clientFor(ua string) *httpclient.Client {
	if f.config.Fingerprint == fingerprint.ProfileAuto {
		return f.clients[fingerprint.ForUserAgent(ua)]
	}
	return f.clients[f.config.Fingerprint]
}

// Fetch waits for the rate limiter, checks robots.txt when configured and
// GETs targetURL. Transport failures are returned as errors; HTTP error
// statuses and bot walls are reported on the Page.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ua := f.userAgent()

	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, targetURL, ua)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrDisallowed
		}
	}

	return f.get(ctx, targetURL, ua)
}

func (f *Fetcher) get(ctx context.Context, targetURL, ua string) (*Page, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	domain := u.Hostname()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		ctx = context.WithValue(ctx, proxyKey, activeProxy)
	}

	start := time.Now()
	resp, err := f.clientFor(ua).Do(ctx, req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.Report(activeProxy, false)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		metrics.RecordFetch(domain, 0, 0, time.Since(start), "")
		return nil, err
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.Report(activeProxy, true)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes))
	duration := time.Since(start)
	if err != nil {
		metrics.RecordFetch(domain, resp.StatusCode, len(body), duration, "")
		return nil, fmt.Errorf("reading body of %s: %w", u.Redacted(), err)
	}

	page := &Page{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   duration,
		UserAgent:  ua,
	}
	var finalURL *url.URL
	if resp.Request != nil {
		finalURL = resp.Request.URL
	}
	page.Detection = bypass.Analyze(&bypass.Response{
		URL:        finalURL,
		StatusCode: page.StatusCode,
		Header:     page.Header,
		Body:       page.Body,
	}, bypass.DefaultDetectors())

	metrics.RecordFetch(domain, page.StatusCode, len(body), duration, page.Detection)
	if page.Detection != "" {
		f.logger.Debug("bot protection detected", "domain", domain, "source", page.Detection, "status", page.StatusCode)
	}

	return page, nil
}
