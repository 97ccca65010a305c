package crawler

import "strings"

// hostAllowlist stores exact hosts and suffix wildcards derived from configuration.
type hostAllowlist struct {
	exact    map[string]struct{}
	suffixes []string
}

// newHostAllowlist returns nil when no usable pattern is given; a nil list
// allows every host.
func newHostAllowlist(patterns []string) *hostAllowlist {
	matcher := &hostAllowlist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			matcher.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			matcher.addSuffix(strings.TrimPrefix(value, "."))
		default:
			matcher.exact[value] = struct{}{}
		}
	}
	if len(matcher.exact) == 0 && len(matcher.suffixes) == 0 {
		return nil
	}
	return matcher
}

func (a *hostAllowlist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range a.suffixes {
		if existing == suffix {
			return
		}
	}
	a.suffixes = append(a.suffixes, suffix)
}

// Allows reports whether host may be fetched.
func (a *hostAllowlist) Allows(host string) bool {
	if a == nil {
		return true
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, exact := a.exact[host]; exact {
		return true
	}
	for _, suffix := range a.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
