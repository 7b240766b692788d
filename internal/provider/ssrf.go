package provider

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"code.dny.dev/ssrf"
	"github.com/rotisserie/eris"
)

// Resolver resolves a hostname to IP addresses. *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

const maxRedirects = 5

// Guard validates outbound URLs so that contact-supplied links cannot reach
// internal addresses. Address policy comes from ssrf.Guardian: only global
// unicast IPv4/IPv6 on ports 80 and 443 over tcp4/tcp6.
type Guard struct {
	resolver Resolver
	guardian *ssrf.Guardian
}

// NewGuard creates a guard resolving through r, or the system resolver when
// r is nil.
func NewGuard(r Resolver) *Guard {
	if r == nil {
		r = net.DefaultResolver
	}
	return &Guard{resolver: r, guardian: ssrf.New()}
}

// Validate parses raw and rejects it unless it is http(s) and every address
// its host resolves to is public.
func (g *Guard) Validate(ctx context.Context, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, eris.Wrapf(ErrUnsafeURL, "parse %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, eris.Wrapf(ErrUnsafeURL, "scheme %q not allowed", u.Scheme)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return nil, eris.Wrap(ErrUnsafeURL, "missing host")
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return nil, eris.Wrapf(ErrUnsafeURL, "host %q is local", host)
	}

	port, err := urlPort(u)
	if err != nil {
		return nil, err
	}

	if ip, err := netip.ParseAddr(host); err == nil {
		if err := g.check(ip, port); err != nil {
			return nil, eris.Wrapf(ErrUnsafeURL, "address %s: %v", ip, err)
		}
		return u, nil
	}

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, eris.Wrapf(ErrUnsafeURL, "resolve %q: %v", host, err)
	}
	if len(addrs) == 0 {
		return nil, eris.Wrapf(ErrUnsafeURL, "resolve %q: no addresses", host)
	}
	for _, a := range addrs {
		if err := g.check(a, port); err != nil {
			return nil, eris.Wrapf(ErrUnsafeURL, "host %q resolves to %s: %v", host, a, err)
		}
	}
	return u, nil
}

// Control is a net.Dialer hook that re-checks the address actually dialed,
// after DNS resolution.
func (g *Guard) Control(network, address string, c syscall.RawConn) error {
	if err := g.guardian.Safe(network, address, c); err != nil {
		return eris.Wrapf(ErrUnsafeURL, "dial %s %s: %v", network, address, err)
	}
	return nil
}

// HTTPClient returns a client whose dials and redirects pass through the guard.
func (g *Guard) HTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: g.Control}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        20,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return eris.New("provider: too many redirects")
			}
			_, err := g.Validate(req.Context(), req.URL.String())
			return err
		},
	}
}

// check runs the dial-time policy against a resolved address so a URL is
// rejected before any connection is attempted.
func (g *Guard) check(a netip.Addr, port uint16) error {
	a = a.Unmap()
	network := "tcp6"
	if a.Is4() {
		network = "tcp4"
	}
	return g.guardian.Safe(network, netip.AddrPortFrom(a, port).String(), nil)
}

func urlPort(u *url.URL) (uint16, error) {
	p := u.Port()
	if p == "" {
		if u.Scheme == "https" {
			return 443, nil
		}
		return 80, nil
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return 0, eris.Wrapf(ErrUnsafeURL, "port %q", p)
	}
	return uint16(n), nil
}
