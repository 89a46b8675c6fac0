package model

import (
	"errors"
	"net"
	"testing"
)

func TestValidateSourceURL(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		allowPrivateIP bool
		errorType      error
	}{
		{"valid HTTP URL", "http://example.com/nodes.json", false, nil},
		{"valid HTTPS URL", "https://example.com/nodes.json", false, nil},
		{"valid URL with port", "https://example.com:8080/nodes.json", false, nil},
		{"valid URL with query params", "https://example.com/api/nodes?parent=1050", false, nil},

		{"file scheme", "file:///etc/passwd", false, ErrUnsupportedScheme},
		{"ftp scheme", "ftp://example.com/nodes.json", false, ErrUnsupportedScheme},
		{"javascript scheme", "javascript:alert('xss')", false, ErrUnsupportedScheme},

		{"empty URL", "", false, ErrEmptyURL},
		{"missing scheme", "example.com/nodes.json", false, ErrUnsupportedScheme},
		{"missing host", "http:///nodes.json", false, ErrMissingHost},
		{"space in URL", "http://exa mple.com/nodes.json", false, ErrInvalidURL},

		{"localhost", "http://localhost/nodes.json", false, ErrPrivateIPBlocked},
		{"127.0.0.1", "http://127.0.0.1/nodes.json", false, ErrPrivateIPBlocked},
		{"10.x.x.x range", "http://10.0.0.1/nodes.json", false, ErrPrivateIPBlocked},
		{"192.168.x.x range", "http://192.168.1.1/nodes.json", false, ErrPrivateIPBlocked},
		{"172.16-31.x.x range", "http://172.16.0.1/nodes.json", false, ErrPrivateIPBlocked},
		{"link-local 169.254", "http://169.254.0.1/nodes.json", false, ErrPrivateIPBlocked},
		{"IPv6 localhost", "http://[::1]/nodes.json", false, ErrPrivateIPBlocked},

		{"localhost allowed", "http://localhost/nodes.json", true, nil},
		{"10.x.x.x allowed", "http://10.0.0.1/nodes.json", true, nil},

		{"uppercase scheme", "HTTPS://EXAMPLE.COM/nodes.json", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourceURL(tt.url, tt.allowPrivateIP)
			if tt.errorType == nil {
				if err != nil {
					t.Errorf("unexpected error for URL %q: %v", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.errorType) {
				t.Errorf("expected %v for URL %q, got %v", tt.errorType, tt.url, err)
			}
		})
	}
}

func TestIsRemoteSource(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/nodes.json": true,
		"HTTP://example.com/nodes.json":  true,
		"./nodes.json":                   false,
		"/var/lib/cms/content.db":        false,
		"":                               false,
	}
	for location, want := range tests {
		if got := IsRemoteSource(location); got != want {
			t.Errorf("IsRemoteSource(%q) = %v, want %v", location, got, want)
		}
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"10.1.2.3", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.0.1", true},
		{"127.0.0.1", true},
		{"fd00::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := isPrivateIP(net.ParseIP(tt.ip)); got != tt.private {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.private)
			}
		})
	}
}
