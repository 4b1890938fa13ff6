package cart

import (
	"fmt"
	"net/url"
	"strings"
)

// Request is a validated share link.
type Request struct {
	CartURL  string
	Scheme   string
	Host     string
	Metadata Metadata
}

var (
	groupIDKeys  = []string{"group_id", "groupId", "share_group_id", "groupid"}
	countryKeys  = []string{"local_country", "localCountry", "country"}
	languageKeys = []string{"lang", "language", "lan"}
)

// ParseRequest validates raw as a share link for this site and extracts its
// metadata. Failures wrap ErrInvalidCartURL.
func (s *Site) ParseRequest(raw string) (*Request, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidCartURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCartURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidCartURL, u.Scheme)
	}
	if !s.HostAllowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: host %q is not a %s host", ErrInvalidCartURL, u.Hostname(), s.Domain)
	}
	if s.sharePath != nil {
		target := u.EscapedPath()
		if u.RawQuery != "" {
			target += "?" + u.RawQuery
		}
		if !s.sharePath.MatchString(target) {
			return nil, fmt.Errorf("%w: not a shared cart link", ErrInvalidCartURL)
		}
	}

	q := u.Query()
	return &Request{
		CartURL: u.String(),
		Scheme:  u.Scheme,
		Host:    u.Host,
		Metadata: Metadata{
			GroupID:  firstQuery(q, groupIDKeys),
			Country:  strings.ToUpper(firstQuery(q, countryKeys)),
			Language: strings.ToLower(firstQuery(q, languageKeys)),
		},
	}, nil
}

// HostAllowed reports whether host is the site domain or one of its
// subdomains.
func (s *Site) HostAllowed(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == s.Domain || strings.HasSuffix(host, "."+s.Domain)
}

// AcceptLanguage builds the header value that mirrors the link's locale.
func (r *Request) AcceptLanguage() string {
	lang := r.Metadata.Language
	if lang == "" {
		return "en-US,en;q=0.9"
	}
	if r.Metadata.Country == "" {
		if lang == "en" {
			return "en,en-US;q=0.9"
		}
		return lang + ",en;q=0.8"
	}
	if lang == "en" {
		return fmt.Sprintf("en-%s,en;q=0.9", r.Metadata.Country)
	}
	return fmt.Sprintf("%s-%s,%s;q=0.9,en;q=0.8", lang, r.Metadata.Country, lang)
}

// Locale returns a BCP 47 tag for the browser context, or "" when the link
// carries no language.
func (r *Request) Locale() string {
	if r.Metadata.Language == "" {
		return ""
	}
	if r.Metadata.Country == "" {
		return r.Metadata.Language
	}
	return r.Metadata.Language + "-" + r.Metadata.Country
}

// Headers returns the extra HTTP headers sent with every page request.
func (r *Request) Headers() map[string]string {
	return map[string]string{
		"Accept-Language": r.AcceptLanguage(),
		"Referer":         r.Scheme + "://" + r.Host + "/",
	}
}

func firstQuery(q url.Values, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v
		}
	}
	return ""
}
