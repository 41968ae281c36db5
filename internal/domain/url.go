package domain

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters that identify campaigns, not
// products. Two URLs differing only by these must dedup to one product.
var trackingParams = map[string]bool{
	"gclid":       true,
	"gclsrc":      true,
	"dclid":       true,
	"fbclid":      true,
	"msclkid":     true,
	"ttclid":      true,
	"igshid":      true,
	"mc_cid":      true,
	"mc_eid":      true,
	"ref":         true,
	"ref_":        true,
	"referrer":    true,
	"affiliate":   true,
	"_hsenc":      true,
	"_hsmi":       true,
	"mkt_tok":     true,
	"yclid":       true,
	"si":          true,
	"cmpid":       true,
	"s_kwcid":     true,
	"sscid":       true,
	"spm":         true,
	"share_token": true,
}

func isTrackingParam(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "utm_") {
		return true
	}
	return trackingParams[lower]
}

// NormalizeURL produces the canonical dedup key for a product URL:
// lower-cased scheme and host, default ports and fragments stripped,
// tracking query parameters removed, remaining parameters sorted, and the
// trailing slash dropped on non-root paths. Invalid URLs fall back to the
// trimmed input so the caller still gets a stable key.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	query := u.Query()
	for name := range query {
		if isTrackingParam(name) {
			query.Del(name)
		}
	}
	// Values.Encode sorts by key, which makes param order irrelevant.
	u.RawQuery = query.Encode()

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}
