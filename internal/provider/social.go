package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/contact-research/internal/model"
)

const (
	defaultSocialMaxBytes = 512 << 10
	socialUserAgent       = "Mozilla/5.0 (compatible; contact-research/1.0)"
	maxBioRunes           = 1000
)

// platformHosts maps registrable host suffixes to platform names.
var platformHosts = []struct {
	suffix   string
	platform string
}{
	{"linkedin.com", "linkedin"},
	{"twitter.com", "twitter"},
	{"x.com", "twitter"},
	{"github.com", "github"},
	{"instagram.com", "instagram"},
	{"facebook.com", "facebook"},
	{"youtube.com", "youtube"},
	{"medium.com", "medium"},
	{"substack.com", "substack"},
}

// SocialProbe fetches the contact's social page and website directly and
// pulls a short bio from their metadata.
type SocialProbe struct {
	guard    *Guard
	client   *http.Client
	maxBytes int64
}

// NewSocialProbe creates a probe. A nil client uses the guard's client with
// timeout; maxBytes <= 0 reads at most 512 KiB per page.
func NewSocialProbe(guard *Guard, client *http.Client, maxBytes int64, timeout time.Duration) *SocialProbe {
	if client == nil {
		client = guard.HTTPClient(timeout)
	}
	if maxBytes <= 0 {
		maxBytes = defaultSocialMaxBytes
	}
	return &SocialProbe{guard: guard, client: client, maxBytes: maxBytes}
}

// Probe fetches each distinct candidate URL. Rejected or failing candidates
// are skipped; it fails only when no profile could be read.
func (s *SocialProbe) Probe(ctx context.Context, socialURL, websiteURL string) (*model.SocialRaw, error) {
	var candidates []string
	for _, c := range []string{socialURL, websiteURL} {
		c = strings.TrimSpace(c)
		if c != "" && (len(candidates) == 0 || candidates[0] != c) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, eris.Wrap(ErrUnavailable, "social: no urls")
	}

	log := zap.L().With(zap.String("provider", string(model.ProviderSocial)))
	out := &model.SocialRaw{Profiles: []model.SocialProfile{}}
	var firstErr error
	for _, c := range candidates {
		p, err := s.fetch(ctx, c)
		if err != nil {
			if errors.Is(err, ErrUnsafeURL) {
				log.Warn("social: url rejected", zap.String("url", c), zap.Error(err))
			} else {
				log.Debug("social: fetch failed", zap.String("url", c), zap.Error(err))
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out.Profiles = append(out.Profiles, *p)
	}
	if len(out.Profiles) == 0 {
		return nil, eris.Wrap(firstErr, "social: no profile readable")
	}
	return out, nil
}

func (s *SocialProbe) fetch(ctx context.Context, raw string) (*model.SocialProfile, error) {
	u, err := s.guard.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "social: build request")
	}
	req.Header.Set("User-Agent", socialUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "social: get %s", u.Host)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("social: %s returned status %d", u.Host, resp.StatusCode)
	}

	meta := parseMeta(io.LimitReader(resp.Body, s.maxBytes))
	return &model.SocialProfile{
		Platform: platformFor(u),
		URL:      u.String(),
		Bio:      truncateRunes(meta.bio(), maxBioRunes),
	}, nil
}

// platformFor infers the social platform from the URL host.
func platformFor(u *url.URL) string {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, p := range platformHosts {
		if host == p.suffix || strings.HasSuffix(host, "."+p.suffix) {
			return p.platform
		}
	}
	return "website"
}

type pageMeta struct {
	title         string
	description   string
	ogTitle       string
	ogDescription string
}

func (m pageMeta) bio() string {
	for _, v := range []string{m.ogDescription, m.description, m.ogTitle, m.title} {
		if v = strings.Join(strings.Fields(v), " "); v != "" {
			return v
		}
	}
	return ""
}

// parseMeta scans the document head for title and description metadata.
// Truncated or malformed HTML yields whatever was found before the error.
func parseMeta(r io.Reader) pageMeta {
	var m pageMeta
	z := html.NewTokenizer(r)
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return m
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Title:
				inTitle = m.title == ""
			case atom.Meta:
				m.applyMeta(tok.Attr)
			case atom.Body:
				if m.ogDescription != "" || m.description != "" {
					return m
				}
			}
		case html.TextToken:
			if inTitle {
				m.title = string(z.Text())
				inTitle = false
			}
		case html.EndTagToken:
			inTitle = false
		}
	}
}

func (m *pageMeta) applyMeta(attrs []html.Attribute) {
	var key, content string
	for _, a := range attrs {
		switch strings.ToLower(a.Key) {
		case "property", "name":
			if key == "" {
				key = strings.ToLower(a.Val)
			}
		case "content":
			content = a.Val
		}
	}
	switch key {
	case "og:description":
		m.ogDescription = content
	case "description", "twitter:description":
		if m.description == "" {
			m.description = content
		}
	case "og:title":
		m.ogTitle = content
	}
}
