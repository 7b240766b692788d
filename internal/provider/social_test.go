package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackClient sends every request to ts regardless of the URL host, so
// probes can use public-looking hostnames that the fake resolver accepts.
func loopbackClient(ts *httptest.Server) *http.Client {
	addr := ts.Listener.Addr().String()
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}}
}

func TestSocialProbe_ReadsBios(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Host {
		case "github.com":
			w.Write([]byte(`<html><head><title>ada (Ada L.)</title>
<meta property="og:description" content="Compilers,   analytical engines."></head><body>x</body></html>`)) //nolint:errcheck
		case "example.com":
			w.Write([]byte(`<html><head><title> Ada Lovelace </title></head><body></body></html>`)) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	p := NewSocialProbe(testGuard(), loopbackClient(ts), 0, 0)
	raw, err := p.Probe(context.Background(), "https://github.com/ada", "http://example.com")
	require.NoError(t, err)
	require.Len(t, raw.Profiles, 2)

	assert.Equal(t, "github", raw.Profiles[0].Platform)
	assert.Equal(t, "Compilers, analytical engines.", raw.Profiles[0].Bio)
	assert.Equal(t, "website", raw.Profiles[1].Platform)
	assert.Equal(t, "Ada Lovelace", raw.Profiles[1].Bio)
}

func TestSocialProbe_RejectsUnsafeBeforeFetch(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Write([]byte("<title>internal</title>")) //nolint:errcheck
	}))
	defer ts.Close()

	p := NewSocialProbe(testGuard(), loopbackClient(ts), 0, 0)
	_, err := p.Probe(context.Background(), "http://169.254.169.254/latest/meta-data", "http://internal.corp")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafeURL))
	assert.Zero(t, hits)
}

func TestSocialProbe_PartialSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<meta name="description" content="Personal site">`)) //nolint:errcheck
	}))
	defer ts.Close()

	p := NewSocialProbe(testGuard(), loopbackClient(ts), 0, 0)
	raw, err := p.Probe(context.Background(), "http://localhost/me", "https://example.com")
	require.NoError(t, err)
	require.Len(t, raw.Profiles, 1)
	assert.Equal(t, "Personal site", raw.Profiles[0].Bio)
}

func TestSocialProbe_NoURLs(t *testing.T) {
	_, err := NewSocialProbe(testGuard(), http.DefaultClient, 0, 0).Probe(context.Background(), " ", "")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestSocialProbe_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := NewSocialProbe(testGuard(), loopbackClient(ts), 0, 0).Probe(context.Background(), "https://example.com", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestSocialProbe_LimitsBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><head>" + strings.Repeat("<!-- pad -->", 100) + `<meta name="description" content="late"></head>`)) //nolint:errcheck
	}))
	defer ts.Close()

	raw, err := NewSocialProbe(testGuard(), loopbackClient(ts), 64, 0).Probe(context.Background(), "https://example.com", "")
	require.NoError(t, err)
	assert.Empty(t, raw.Profiles[0].Bio)
}

func TestPlatformFor(t *testing.T) {
	tests := map[string]string{
		"https://www.linkedin.com/in/ada": "linkedin",
		"https://x.com/ada":               "twitter",
		"https://mobile.twitter.com/ada":  "twitter",
		"https://ada.substack.com":        "substack",
		"https://m.youtube.com/@ada":      "youtube",
		"https://box.com/ada":             "website",
		"https://notgithub.com/ada":       "website",
	}
	for raw, want := range tests {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, platformFor(u), raw)
	}
}
