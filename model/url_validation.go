package model

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URL validation errors
var (
	ErrInvalidURL        = errors.New("invalid URL format")
	ErrUnsupportedScheme = errors.New("unsupported URL scheme - only HTTP and HTTPS are allowed")
	ErrPrivateIPBlocked  = errors.New("private IP addresses and localhost are blocked for security")
	ErrMissingHost       = errors.New("URL must have a valid host")
	ErrEmptyURL          = errors.New("URL cannot be empty")
)

// IsRemoteSource reports whether location looks like an HTTP(S) URL rather
// than a local path.
func IsRemoteSource(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ValidateSourceURL checks the scheme and host of a remote content source.
// Unless allowPrivateIPs is set, hosts that are localhost or resolve to a
// private range are rejected.
func ValidateSourceURL(rawURL string, allowPrivateIPs bool) error {
	if rawURL == "" {
		return ErrEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsupportedScheme
	}

	if u.Host == "" {
		return ErrMissingHost
	}

	if !allowPrivateIPs {
		return validateHost(u.Hostname())
	}
	return nil
}

// validateHost rejects localhost and hosts resolving to private addresses.
// Unresolvable hosts pass and fail later at request time.
func validateHost(hostname string) error {
	if isLocalhost(hostname) {
		return ErrPrivateIPBlocked
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateIPBlocked
		}
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateIPBlocked
		}
	}
	return nil
}

func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	return hostname == "localhost" || hostname == "::1" || strings.HasPrefix(hostname, "127.")
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}
