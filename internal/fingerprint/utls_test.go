package fingerprint

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FranksOps/patentscout/pkg/useragent"
)

func TestTransport_Profiles(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	profiles := []Profile{
		ProfileChrome,
		ProfileFirefox,
		ProfileSafari,
		ProfileGo,
		ProfileRandom,
	}

	for _, p := range profiles {
		t.Run(string(p), func(t *testing.T) {
			// httptest.NewTLSServer uses self-signed certs.
			rt, err := Transport(p, Options{InsecureSkipVerify: true})
			if err != nil {
				t.Fatalf("unexpected error creating transport for %s: %v", p, err)
			}

			client := &http.Client{Transport: rt}
			resp, err := client.Get(ts.URL)
			if err != nil {
				t.Fatalf("request failed for profile %s: %v", p, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200 OK, got %d for profile %s", resp.StatusCode, p)
			}
		})
	}
}

func TestTransport_VerifiesCertificatesByDefault(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	rt, err := Transport(ProfileChrome, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client := &http.Client{Transport: rt}
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected certificate verification failure against self-signed server")
	}
}

func TestTransport_UnknownProfile(t *testing.T) {
	_, err := Transport(Profile("unknown_browser"), Options{})
	if err == nil {
		t.Fatal("expected error for unknown profile, got nil")
	}
	if !strings.Contains(err.Error(), `"unknown_browser"`) {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestParse(t *testing.T) {
	for _, name := range []string{"go", "auto", "chrome", "firefox", "safari", "random"} {
		if _, err := Parse(name); err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", name, err)
		}
	}
	if _, err := Parse("netscape"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestForUserAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want Profile
	}{
		{useragent.DefaultPool[0], ProfileChrome},
		{useragent.DefaultPool[3], ProfileFirefox},
		{useragent.DefaultPool[5], ProfileSafari},
		{"patentscout/1.0", ProfileGo},
	}
	for _, tt := range tests {
		if got := ForUserAgent(tt.ua); got != tt.want {
			t.Errorf("ForUserAgent(%q) = %s, want %s", tt.ua, got, tt.want)
		}
	}
}
