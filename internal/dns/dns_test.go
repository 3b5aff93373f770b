package dns

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLookup_IPLiteralPassesThrough(t *testing.T) {
	r := NewResolver()
	r.lookup = func(context.Context, string, string) ([]string, error) {
		t.Fatalf("resolver must not be queried for IP literals")
		return nil, nil
	}

	for _, host := range []string{"127.0.0.1", "::1"} {
		got, err := r.Lookup(context.Background(), host)
		if err != nil || got != host {
			t.Fatalf("Lookup(%q)=%q,%v", host, got, err)
		}
	}
}

func TestLookup_PrefersIPv4FromLocal(t *testing.T) {
	r := NewResolver()
	r.lookup = func(_ context.Context, server, host string) ([]string, error) {
		if server != "" {
			t.Fatalf("fallback queried although local lookup succeeded")
		}
		return []string{"2001:db8::1", "192.0.2.7"}, nil
	}

	got, err := r.Lookup(context.Background(), "relay.example")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "192.0.2.7" {
		t.Fatalf("Lookup=%q, want IPv4", got)
	}
}

func TestLookup_FallsBackToFirstPublicAnswer(t *testing.T) {
	r := &Resolver{
		Fallback:      []string{"slow", "fast"},
		LocalTimeout:  time.Second,
		RemoteTimeout: 2 * time.Second,
	}
	r.lookup = func(ctx context.Context, server, host string) ([]string, error) {
		switch server {
		case "":
			return nil, errors.New("no such host")
		case "fast":
			return []string{"198.51.100.9"}, nil
		default:
			<-ctx.Done()
			return nil, ctx.Err()
		}
	}

	got, err := r.Lookup(context.Background(), "relay.example")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "198.51.100.9" {
		t.Fatalf("Lookup=%q", got)
	}
}

func TestLookup_AllFail(t *testing.T) {
	r := &Resolver{
		Fallback:      []string{"a", "b"},
		LocalTimeout:  time.Second,
		RemoteTimeout: time.Second,
	}
	r.lookup = func(context.Context, string, string) ([]string, error) {
		return nil, errors.New("refused")
	}

	if _, err := r.Lookup(context.Background(), "relay.example"); err == nil {
		t.Fatalf("expected error when every server fails")
	}
}
