package useragent

import (
	"math/rand/v2"
	"strings"
	"sync/atomic"
)

// DefaultPool holds current desktop browser User-Agents. Patent offices and
// Google Patents serve the full metadata page to these.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
}

// Family is the browser family a User-Agent claims to be.
type Family string

const (
	FamilyChrome  Family = "chrome"
	FamilyFirefox Family = "firefox"
	FamilySafari  Family = "safari"
	FamilyOther   Family = "other"
)

// FamilyOf classifies ua. Edge and other Chromium builds count as chrome.
func FamilyOf(ua string) Family {
	switch {
	case strings.Contains(ua, "Firefox/"):
		return FamilyFirefox
	case strings.Contains(ua, "Chrome/"):
		return FamilyChrome
	case strings.Contains(ua, "Safari/"):
		return FamilySafari
	default:
		return FamilyOther
	}
}

// Pool is a fixed set of User-Agents handed out round-robin or at random.
// It is safe for concurrent use.
type Pool struct {
	uas     []string
	counter atomic.Uint64
}

// NewPool creates a pool from uas, or from DefaultPool when uas is empty.
func NewPool(uas []string) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	return &Pool{uas: append([]string(nil), uas...)}
}

// Next returns the next User-Agent in round-robin order.
func (p *Pool) Next() string {
	if len(p.uas) == 0 {
		return ""
	}
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Random returns a uniformly chosen User-Agent.
func (p *Pool) Random() string {
	if len(p.uas) == 0 {
		return ""
	}
	return p.uas[rand.IntN(len(p.uas))]
}

// All returns a copy of the pool contents.
func (p *Pool) All() []string {
	return append([]string(nil), p.uas...)
}
