package resilient

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// buildURL resolves rawURL against baseURL and appends params as an ordered
// query string (spec §4.6, a component the teacher has no equivalent for —
// it only ever accepts pre-built absolute *http.Request values). Protocol-
// relative URLs ("//host/path") are rejected: they resolve against whatever
// scheme the base happens to use, which is exactly the ambiguity a resilient
// client must not silently paper over.
func buildURL(baseURL, rawURL string, params map[string]string) (string, error) {
	if strings.HasPrefix(rawURL, "//") {
		return "", fmt.Errorf("resilient: protocol-relative URL %q is not allowed", rawURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("resilient: invalid URL %q: %w", rawURL, err)
	}

	if !u.IsAbs() {
		if baseURL == "" {
			return "", fmt.Errorf("resilient: relative URL %q requires a base URL", rawURL)
		}
		base, err := url.Parse(baseURL)
		if err != nil {
			return "", fmt.Errorf("resilient: invalid base URL %q: %w", baseURL, err)
		}
		u = base.ResolveReference(u)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("resilient: unsupported URL scheme %q", u.Scheme)
	}

	if len(params) > 0 {
		q := u.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			q.Set(k, params[k])
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
