package widget

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Mode says where replies come from
type Mode string

const (
	// ModeLocal is a development machine without the proxy
	ModeLocal Mode = "local"
	// ModeStatic is static hosting with no backend
	ModeStatic Mode = "static"
	// ModeBackend has a reachable chat proxy
	ModeBackend Mode = "backend"
)

// staticHostSuffixes are hosting services that only serve files
var staticHostSuffixes = []string{".github.io", ".gitlab.io", ".pages.dev", ".surge.sh"}

// Environment is resolved once at startup and passed to the Resolver
type Environment struct {
	Mode     Mode
	ProxyURL string
}

// BackendAvailable reports whether replies should come from the proxy
func (e Environment) BackendAvailable() bool {
	return e.Mode == ModeBackend && e.ProxyURL != ""
}

// ResolveEnvironment turns the configured mode into an Environment.
// "auto" classifies by the proxy URL's host.
func ResolveEnvironment(mode, proxyURL string) (Environment, error) {
	env := Environment{ProxyURL: strings.TrimRight(proxyURL, "/")}

	switch Mode(strings.ToLower(strings.TrimSpace(mode))) {
	case ModeLocal:
		env.Mode = ModeLocal
	case ModeStatic:
		env.Mode = ModeStatic
	case ModeBackend:
		env.Mode = ModeBackend
	case "", "auto":
		env.Mode = DetectMode(env.ProxyURL)
	default:
		return Environment{}, fmt.Errorf("unknown widget mode %q", mode)
	}

	return env, nil
}

// DetectMode classifies a page or proxy URL
func DetectMode(rawURL string) Mode {
	if rawURL == "" {
		return ModeStatic
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "file" {
		return ModeLocal
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ModeStatic
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return ModeLocal
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return ModeLocal
	}
	for _, suffix := range staticHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return ModeStatic
		}
	}
	return ModeBackend
}
