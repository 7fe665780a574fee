package fingerprint

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/FranksOps/patentscout/pkg/useragent"
	utls "github.com/refraction-networking/utls"
)

// Profile represents a recognized TLS fingerprint profile.
type Profile string

const (
	ProfileChrome  Profile = "chrome"
	ProfileFirefox Profile = "firefox"
	ProfileSafari  Profile = "safari"
	ProfileGo      Profile = "go"     // standard go TLS
	ProfileRandom  Profile = "random" // randomized uTLS profile
	ProfileAuto    Profile = "auto"   // resolved from the User-Agent, see ForUserAgent
)

var helloIDs = map[Profile]utls.ClientHelloID{
	ProfileChrome:  utls.HelloChrome_Auto,
	ProfileFirefox: utls.HelloFirefox_Auto,
	ProfileSafari:  utls.HelloIOS_Auto,
	ProfileRandom:  utls.HelloRandomizedALPN,
}

// Options tunes the transport built by Transport.
type Options struct {
	// Proxy selects the proxy per request; nil means no proxy.
	Proxy func(*http.Request) (*url.URL, error)
	// InsecureSkipVerify disables certificate verification. Only tests
	// against self-signed servers set it.
	InsecureSkipVerify bool
}

// Parse validates a profile name from configuration.
func Parse(name string) (Profile, error) {
	p := Profile(name)
	switch p {
	case ProfileGo, ProfileAuto:
		return p, nil
	}
	if _, ok := helloIDs[p]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown TLS profile %q", name)
}

// ForUserAgent returns the profile matching the browser a User-Agent claims
// to be, so the TLS handshake does not contradict the header.
func ForUserAgent(ua string) Profile {
	switch useragent.FamilyOf(ua) {
	case useragent.FamilyChrome:
		return ProfileChrome
	case useragent.FamilyFirefox:
		return ProfileFirefox
	case useragent.FamilySafari:
		return ProfileSafari
	default:
		return ProfileGo
	}
}

// Transport returns an http.RoundTripper whose TLS ClientHello mimics the
// given profile. ProfileGo returns a plain clone of http.DefaultTransport.
func Transport(p Profile, opts Options) (http.RoundTripper, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = opts.Proxy

	if p == ProfileGo {
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return transport, nil
	}

	helloID, ok := helloIDs[p]
	if !ok {
		return nil, fmt.Errorf("unknown TLS profile %q", p)
	}

	dial := transport.DialContext
	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		tcpConn, err := dial(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}

		uConn := utls.UClient(tcpConn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: opts.InsecureSkipVerify,
		}, helloID)
		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("utls handshake with %s: %w", host, err)
		}

		return uConn, nil
	}

	return transport, nil
}
