package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// PublicServers are queried directly when the system resolver fails.
var PublicServers = []string{
	"1.1.1.1",                // Cloudflare
	"1.0.0.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"8.8.8.8",                // Google
	"8.8.4.4",                // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"149.112.112.112",        // Quad9
	"208.67.222.222",         // Cisco OpenDNS
}

// Resolver looks up relay hosts, racing public DNS servers when the local
// resolver cannot answer (captive or broken resolv.conf setups).
type Resolver struct {
	Fallback      []string
	LocalTimeout  time.Duration
	RemoteTimeout time.Duration

	// lookup is swapped in tests; nil means a real net.Resolver.
	lookup func(ctx context.Context, server, host string) ([]string, error)
	dialer net.Dialer
}

// NewResolver returns a resolver using PublicServers as fallback.
func NewResolver() *Resolver {
	return &Resolver{
		Fallback:      PublicServers,
		LocalTimeout:  time.Second,
		RemoteTimeout: 2 * time.Second,
	}
}

// DialContext resolves addr's host and dials the first usable address.
// It matches the signature of websocket.Dialer.NetDialContext.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ip, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	return r.dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

// Lookup resolves host to a single IP, preferring IPv4. IP literals are
// returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	local, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	ips, err := r.query(local, "", host)
	cancel()
	if err == nil {
		return preferIPv4(ips)
	}
	if len(r.Fallback) == 0 {
		return "", err
	}
	return r.race(ctx, host)
}

// race asks every fallback server at once and takes the first answer.
func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	type result struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, r.RemoteTimeout)
	defer cancel()

	results := make(chan result, len(r.Fallback))
	for _, server := range r.Fallback {
		go func(server string) {
			ips, err := r.query(ctx, server, host)
			if err != nil {
				results <- result{err: err}
				return
			}
			ip, err := preferIPv4(ips)
			results <- result{ip: ip, err: err}
		}(server)
	}

	failures := 0
	for range r.Fallback {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("lookup %s: public DNS race timed out", host)
		}
	}
	return "", fmt.Errorf("lookup %s: all %d public DNS servers failed", host, failures)
}

func (r *Resolver) query(ctx context.Context, server, host string) ([]string, error) {
	if r.lookup != nil {
		return r.lookup(ctx, server, host)
	}

	res := &net.Resolver{}
	if server != "" {
		res.PreferGo = true
		res.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(trimBrackets(server), "53"))
		}
	}
	return res.LookupHost(ctx, host)
}

func preferIPv4(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", errors.New("no IP addresses found")
	}
	for _, ip := range ips {
		if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

func trimBrackets(s string) string {
	if len(s) > 1 && s[0] == '[' && s[len(s)-1] == ']' {
		return s[1 : len(s)-1]
	}
	return s
}
