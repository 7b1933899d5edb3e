// Package urlnorm canonicalizes media URLs for deduplication. The normalized
// form is the sole comparison key for "is this the same resource" everywhere
// in the system.
package urlnorm

import (
	"net/url"
	"sort"
	"strings"
)

// Normalize maps a URL string to its canonical form: https scheme applied when
// absent, scheme and host lowercased, a leading "www." stripped, trailing
// slashes removed from the path, query pairs with empty values dropped and the
// rest sorted, and any fragment discarded. It is total; input that cannot be
// parsed as a URL is returned trimmed.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.Scheme == "" {
		if parsed.Host != "" {
			// Protocol-relative: //host/path
			parsed.Scheme = "https"
		} else {
			parsed, err = url.Parse("https://" + raw)
			if err != nil {
				return raw
			}
		}
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimRight(parsed.Path, "/")

	type pair struct{ k, v string }
	var pairs []pair
	for _, part := range strings.Split(parsed.RawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			key = k
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			val = v
		}
		if key == "" || val == "" {
			continue
		}
		pairs = append(pairs, pair{key, val})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	values := url.Values{}
	for _, p := range pairs {
		values.Add(p.k, p.v)
	}

	out := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     path,
		RawQuery: values.Encode(),
	}
	return out.String()
}
