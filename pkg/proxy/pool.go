package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when reporting on a URL the pool does not hold.
var ErrUnknownProxy = errors.New("proxy: not in pool")

type entry struct {
	url       *url.URL
	failures  int
	successes int
	benchedTo time.Time
}

// Pool rotates outbound requests across proxies and benches proxies that
// keep failing. It is safe for concurrent use.
type Pool struct {
	mu          sync.Mutex
	entries     []*entry
	next        int
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Config defines settings for the Proxy Pool.
type Config struct {
	// MaxFailures in a row before a proxy is benched (default 3).
	MaxFailures int
	// Cooldown is how long a benched proxy sits out (default 5m).
	Cooldown time.Duration
}

// NewPool creates an empty pool.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         time.Now,
	}
}

// LoadFile adds one proxy per line from path. Blank lines and lines starting
// with '#' are ignored.
func (p *Pool) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening proxy list: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading proxy list: %w", err)
	}

	return p.Add(urls...)
}

// Add parses and appends proxies. A missing scheme defaults to http.
func (p *Pool) Add(rawURLs ...string) error {
	parsed := make([]*entry, 0, len(rawURLs))
	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parsing proxy %q: %w", raw, err)
		}
		if u.Host == "" {
			return fmt.Errorf("parsing proxy %q: missing host", raw)
		}
		parsed = append(parsed, &entry{url: u})
	}

	p.mu.Lock()
	p.entries = append(p.entries, parsed...)
	p.mu.Unlock()
	return nil
}

// Len returns the number of proxies, benched or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Next returns the next proxy that is not benched, or nil if the pool is
// empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for range p.entries {
		e := p.entries[p.next]
		p.next = (p.next + 1) % len(p.entries)

		if !e.benchedTo.IsZero() {
			if now.Before(e.benchedTo) {
				continue
			}
			e.benchedTo = time.Time{}
			e.failures = 0
		}
		return e.url
	}
	return nil
}

// Report records the outcome of a request made through proxyURL. After
// MaxFailures consecutive failures the proxy is benched for Cooldown.
func (p *Pool) Report(proxyURL *url.URL, ok bool) error {
	if proxyURL == nil {
		return ErrUnknownProxy
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	target := proxyURL.String()
	for _, e := range p.entries {
		if e.url.String() != target {
			continue
		}
		if ok {
			e.successes++
			e.failures = 0
			return nil
		}
		e.failures++
		if e.failures >= p.maxFailures {
			e.benchedTo = p.now().Add(p.cooldown)
		}
		return nil
	}
	return ErrUnknownProxy
}
