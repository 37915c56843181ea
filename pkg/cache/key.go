package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// bodyDigestLen is the number of sha256 bytes kept for the body component.
const bodyDigestLen = 16

// Key identifies a cached response and an in-flight request.
type Key struct {
	// Method is the HTTP method (e.g., "GET"). Empty means GET.
	Method string

	// URL is the absolute request URL.
	URL string

	// Body is the request body; requests with different bodies never share a key.
	Body []byte
}

// String generates a deterministic fingerprint.
// Format: METHOD normalized-url[ #body-digest]
//
// Example:
//
//	GET https://api.example.com/v1/items?a=1&b=2
func (k Key) String() string {
	method := strings.ToUpper(strings.TrimSpace(k.Method))
	if method == "" {
		method = "GET"
	}

	parts := []string{method, NormalizeURL(k.URL)}

	if len(k.Body) > 0 {
		sum := sha256.Sum256(k.Body)
		parts = append(parts, "#"+hex.EncodeToString(sum[:bodyDigestLen]))
	}

	return strings.Join(parts, " ")
}

// NormalizeURL lower-cases scheme and host, drops the fragment and sorts the
// query by parameter name so that equivalent URLs map to the same fingerprint.
// Repeated values of one parameter keep their order. Unparseable input
// is returned trimmed but otherwise untouched.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		values := u.Query()
		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(values))
		for _, key := range keys {
			for _, v := range values[key] {
				pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(pairs, "&")
	}

	return u.String()
}
