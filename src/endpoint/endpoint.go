package endpoint

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultScheme  = "https"
	DefaultAPIPath = "/webconsole/api"
)

// Endpoint represents a parsed WebConsole location.
// Examples: cs01.example.com, cs01:81, https://cs01.example.com/webconsole/api
type Endpoint struct {
	// Raw is the original input string, returned to callers unchanged so the
	// session data they persist round-trips.
	Raw string
	// Scheme is http or https.
	Scheme string
	// Host is host[:port].
	Host string
	// Path is the REST API root on the host.
	Path string
}

// Defaults fills the parts an input leaves out.
type Defaults struct {
	Scheme  string
	APIPath string
}

// SupportedSchemes lists the schemes the parser accepts.
var SupportedSchemes = map[string]struct{}{
	"http":  {},
	"https": {},
}

// Parse parses a webconsole hostname or URL into an Endpoint.
func Parse(raw string, d Defaults) (Endpoint, error) {
	e := Endpoint{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return e, fmt.Errorf("webconsole hostname must not be empty")
	}
	scheme := strings.ToLower(strings.TrimSpace(d.Scheme))
	if scheme == "" {
		scheme = DefaultScheme
	}
	apiPath := d.APIPath
	if apiPath == "" {
		apiPath = DefaultAPIPath
	}

	if i := strings.Index(s, "://"); i >= 0 {
		u, err := url.Parse(s)
		if err != nil {
			return e, fmt.Errorf("invalid webconsole URL %q: %w", raw, err)
		}
		scheme = strings.ToLower(u.Scheme)
		if u.Host == "" {
			return e, fmt.Errorf("invalid webconsole URL %q: missing host", raw)
		}
		s = u.Host
		if p := strings.TrimRight(u.Path, "/"); p != "" {
			apiPath = p
		}
	} else if strings.ContainsAny(s, "/?# ") {
		return e, fmt.Errorf("invalid webconsole hostname %q; expected 'host', 'host:port' or a URL", raw)
	}
	if !IsSupported(scheme) {
		return e, fmt.Errorf("unsupported scheme %q", scheme)
	}
	if !strings.HasPrefix(apiPath, "/") {
		apiPath = "/" + apiPath
	}
	e.Scheme = scheme
	e.Host = s
	e.Path = strings.TrimRight(apiPath, "/")
	return e, nil
}

// IsSupported returns true if the scheme is recognized.
func IsSupported(scheme string) bool {
	_, ok := SupportedSchemes[strings.ToLower(scheme)]
	return ok
}

// BaseURL returns the REST API root, e.g. https://cs01/webconsole/api.
func (e Endpoint) BaseURL() string {
	u := url.URL{Scheme: e.Scheme, Host: e.Host, Path: e.Path}
	return u.String()
}

// String returns a canonical string form of the endpoint.
func (e Endpoint) String() string {
	if e.Host != "" {
		return e.BaseURL()
	}
	return e.Raw
}
