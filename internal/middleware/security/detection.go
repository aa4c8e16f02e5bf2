// Package security holds the response hardening and probe detection
// middleware of the dashboard server.
package security

import (
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strings"
	"sync/atomic"

	applog "finboard/internal/log"
)

const maxURLLength = 2048

var (
	probeFragments = []string{
		"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
		"<script", "javascript:", "union select", "etc/passwd", "cmd.exe",
	}
	scannerAgents  = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}
	blockedMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

	// Peers allowed to report the client address in forwarding headers.
	privateNetworks = []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("::1/128"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
	}
)

// Stats counts flagged requests.
type Stats struct {
	Suspicious int64
}

// Detector resolves client addresses and flags requests that look like
// scans or probes.
type Detector struct {
	proxies    []netip.Prefix
	suspicious atomic.Int64
}

func NewDetector() *Detector {
	return &Detector{proxies: privateNetworks}
}

// Inspect returns why the request looks like a probe, or "" when it does
// not. Flagged requests are counted.
func (d *Detector) Inspect(r *http.Request) string {
	reason := classify(r)
	if reason != "" {
		d.suspicious.Add(1)
	}
	return reason
}

func classify(r *http.Request) string {
	if slices.Contains(blockedMethods, r.Method) {
		return "method"
	}
	if len(r.URL.String()) > maxURLLength {
		return "url_length"
	}
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)
	for _, f := range probeFragments {
		if strings.Contains(target, f) {
			return "path"
		}
	}
	agent := strings.ToLower(r.UserAgent())
	for _, a := range scannerAgents {
		if strings.Contains(agent, a) {
			return "user_agent"
		}
	}
	return ""
}

// Middleware logs flagged requests and answers blocked methods with 405.
// Other flagged requests are still served.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reason := d.Inspect(r)
		if reason == "" {
			next.ServeHTTP(w, r)
			return
		}
		applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(),
			"Suspicious request",
			applog.FieldReason, reason,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, d.ExtractClientIP(r),
			applog.FieldUserAgent, r.UserAgent())
		if reason == "method" {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the peer address, or the forwarded client address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !d.trusted(addr) {
		return peer
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	if ip := strings.TrimSpace(first); validIP(ip) {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); validIP(ip) {
		return ip
	}
	return peer
}

func (d *Detector) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range d.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func validIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

func (d *Detector) Stats() Stats {
	return Stats{Suspicious: d.suspicious.Load()}
}
