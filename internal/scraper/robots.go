package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsTxtAuditor fetches, caches and applies robots.txt rules per host.
// A host whose robots.txt cannot be fetched or parsed is treated as allowing
// everything.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotstxt.RobotsData
}

// NewRobotsTxtAuditor creates a new instance.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed determines if the given URL is allowed by the host's robots.txt for the provided User-Agent.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}
	if u.Host == "" {
		return false, fmt.Errorf("invalid url %q: missing host", targetURL)
	}

	host := u.Scheme + "://" + u.Host
	data := r.rules(ctx, host, userAgent)
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.FindGroup(userAgent).Test(path), nil
}

// rules returns the cached robots.txt of host, fetching it on first use.
// The lock is held across the fetch so concurrent workers hitting the same
// host wait for one download.
func (r *RobotsTxtAuditor) rules(ctx context.Context, host, userAgent string) *robotstxt.RobotsData {
	r.mu.Lock()
	defer r.mu.Unlock()

	if data, ok := r.cache[host]; ok {
		return data
	}

	page, err := r.fetcher.get(ctx, host+"/robots.txt", userAgent)
	if err != nil {
		// Not cached: a cancelled context must not disable checks for the host.
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "host", host, "err", err)
		return nil
	}

	if page.StatusCode >= 400 {
		r.cache[host] = nil
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(page.StatusCode, page.Body)
	if err != nil {
		r.logger.Debug("robots.txt parse failed, defaulting to allow", "host", host, "err", err)
		r.cache[host] = nil
		return nil
	}

	r.cache[host] = data
	return data
}
