// Package cookie converts between Set-Cookie / Cookie header values and
// plain name→value maps.
package cookie

import (
	"sort"
	"strings"
)

// ParseSetCookie reads the leading name=value pair of every Set-Cookie
// header. Attributes (Path, Expires, ...) are dropped.
func ParseSetCookie(headers []string) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		pair := strings.TrimSpace(strings.SplitN(h, ";", 2)[0])
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			continue
		}
		out[name] = value
	}
	return out
}

// ParseHeader parses a raw Cookie header string, typically pasted by a user
// from the browser. Line breaks are removed and fragments without '=' are
// skipped.
func ParseHeader(raw string) map[string]string {
	raw = strings.NewReplacer("\r", "", "\n", "").Replace(raw)

	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimLeft(part, " \t")
		if strings.TrimSpace(part) == "" {
			continue
		}
		idx := strings.Index(part, "=")
		if idx == -1 {
			continue
		}
		name := strings.TrimSpace(part[:idx])
		if name == "" {
			continue
		}
		out[name] = part[idx+1:]
	}
	return out
}

// Stringify serializes cookies into a Cookie header value. Names are sorted
// so the output is stable.
func Stringify(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}

// Filter returns a copy of cookies holding only the given names.
func Filter(cookies map[string]string, names ...string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := cookies[name]; ok && v != "" {
			out[name] = v
		}
	}
	return out
}

// Merge returns a new map with src entries layered over dst.
func Merge(dst, src map[string]string) map[string]string {
	out := make(map[string]string, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}
