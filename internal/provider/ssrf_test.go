package provider

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	ips, ok := f[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	out := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, netip.MustParseAddr(ip))
	}
	return out, nil
}

func testGuard() *Guard {
	return NewGuard(fakeResolver{
		"example.com":     {"93.184.216.34"},
		"dual.example":    {"93.184.216.34", "2606:2800:220:1::1"},
		"internal.corp":   {"10.0.0.5"},
		"rebind.example":  {"93.184.216.34", "192.168.1.10"},
		"metadata.cloud":  {"169.254.169.254"},
		"v6private.corp":  {"fd12:3456::1"},
		"mapped.example":  {"::ffff:127.0.0.1"},
		"carrier.example": {"100.64.1.1"},
	})
}

func TestGuard_Validate(t *testing.T) {
	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"public http", "http://example.com/about", true},
		{"public https", "https://example.com", true},
		{"public dual stack", "https://dual.example", true},
		{"public ip literal", "http://8.8.8.8", true},
		{"metadata ip", "http://169.254.169.254", false},
		{"loopback ip", "http://127.0.0.1", false},
		{"loopback ip with port", "http://127.0.0.1:8080/x", false},
		{"localhost", "http://localhost", false},
		{"localhost subdomain", "http://api.localhost", false},
		{"localhost trailing dot", "http://localhost./", false},
		{"unspecified", "http://0.0.0.0", false},
		{"ten", "http://10.1.2.3", false},
		{"one seven two", "http://172.16.0.1", false},
		{"one nine two", "http://192.168.0.1", false},
		{"ipv6 loopback", "http://[::1]/", false},
		{"ipv6 ula", "http://[fc00::1]/", false},
		{"ipv6 link local", "http://[fe80::1]/", false},
		{"private dns", "http://internal.corp", false},
		{"any private answer", "http://rebind.example", false},
		{"metadata dns", "http://metadata.cloud/latest", false},
		{"ipv6 private dns", "http://v6private.corp", false},
		{"ipv4 mapped loopback", "http://mapped.example", false},
		{"cgnat", "http://carrier.example", false},
		{"benchmark range", "http://198.18.0.1", false},
		{"ietf protocol assignments", "http://192.0.0.8", false},
		{"multicast", "http://224.0.0.1", false},
		{"explicit default port", "https://example.com:443/", true},
		{"non web port", "http://example.com:6379/", false},
		{"bad port", "http://example.com:99999/", false},
		{"unresolvable", "http://nowhere.invalid", false},
		{"ftp scheme", "ftp://example.com", false},
		{"file scheme", "file:///etc/passwd", false},
		{"no host", "http://", false},
		{"garbage", "://bad", false},
	}
	g := testGuard()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := g.Validate(context.Background(), tt.url)
			if tt.ok {
				require.NoError(t, err)
				assert.NotNil(t, u)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsafeURL), "got %v", err)
		})
	}
}

func TestGuard_Control(t *testing.T) {
	g := testGuard()
	assert.NoError(t, g.Control("tcp4", "93.184.216.34:443", nil))
	assert.True(t, errors.Is(g.Control("tcp4", "127.0.0.1:80", nil), ErrUnsafeURL))
	assert.True(t, errors.Is(g.Control("tcp6", "[::1]:80", nil), ErrUnsafeURL))
	assert.True(t, errors.Is(g.Control("tcp4", "not-an-address", nil), ErrUnsafeURL))
	assert.True(t, errors.Is(g.Control("tcp4", "93.184.216.34:22", nil), ErrUnsafeURL))
	assert.True(t, errors.Is(g.Control("tcp6", "[fd12:3456::1]:443", nil), ErrUnsafeURL))
	assert.True(t, errors.Is(g.Control("udp4", "93.184.216.34:443", nil), ErrUnsafeURL))
}

func TestGuard_HTTPClientBlocksLoopbackDial(t *testing.T) {
	// No pre-flight check here; the dial hook alone must refuse.
	c := NewGuard(fakeResolver{}).HTTPClient(0)
	_, err := c.Get("http://127.0.0.1:1/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafeURL), "got %v", err)
}
