package bypass

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
)

// Response is the part of a fetched page the detectors look at.
type Response struct {
	// URL is the final URL after redirects, if known.
	URL        *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a bot wall blocked or challenged the request,
// and names the vendor when it did.
type Detector func(res *Response) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
// Google's own interstitial comes first since most patent links point there.
func DefaultDetectors() []Detector {
	return []Detector{
		detectGoogleSorry,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs res through detectors and returns the first vendor that
// matched, or "" when the page looks genuine.
func Analyze(res *Response, detectors []Detector) string {
	if res == nil {
		return ""
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return source
		}
	}
	return ""
}

func serverHeader(res *Response) string {
	return strings.ToLower(res.Header.Get("Server"))
}

func bodyContainsAny(body []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(body, []byte(n)) {
			return true
		}
	}
	return false
}

// detectGoogleSorry catches the "unusual traffic" page Google serves to
// clients it rate-limits, usually with a 429 or a redirect to /sorry/.
// A 200 only counts when it is the interstitial itself: patent pages may
// embed reCAPTCHA widgets of their own.
func detectGoogleSorry(res *Response) (bool, string) {
	switch res.StatusCode {
	case http.StatusOK:
		if res.URL != nil && strings.HasPrefix(res.URL.Path, "/sorry/") {
			return true, "Google"
		}
		if bodyContainsAny(res.Body, "Our systems have detected unusual traffic") {
			return true, "Google"
		}
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		if bodyContainsAny(res.Body,
			"Our systems have detected unusual traffic",
			"/sorry/index") {
			return true, "Google"
		}
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(serverHeader(res), "cloudflare") {
		return true, "Cloudflare"
	}
	if bodyContainsAny(res.Body,
		"cf-browser-verification",
		"cloudflare-nginx",
		"cf-turnstile",
		"Attention Required! | Cloudflare") {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(serverHeader(res), "akamai") {
		return true, "Akamai"
	}
	if bytes.Contains(res.Body, []byte("Reference #")) && bytes.Contains(res.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

// detectDataDome looks for DataDome challenge/block signatures.
func detectDataDome(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(serverHeader(res), "datadome") {
		return true, "DataDome"
	}
	if res.Header.Get("X-DataDome") != "" || res.Header.Get("X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bodyContainsAny(res.Body, "geo.captcha-delivery.com", "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

// detectPerimeterX looks for PerimeterX (HUMAN) signatures.
func detectPerimeterX(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if res.Header.Get("X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bodyContainsAny(res.Body, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}
