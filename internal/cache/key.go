package cache

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// BuildKey derives the cache key of a request. It is a pure function of method,
// path and query: the order of parameter names does not change the result.
// Repeated values keep their order, handlers read the first one.
func BuildKey(method, p string, query url.Values) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(cleanPath(p))

	if len(query) == 0 {
		return b.String()
	}

	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)

	b.WriteByte('?')
	first := true
	for _, name := range names {
		for _, v := range query[name] {
			if !first {
				b.WriteByte('&')
			}
			first = false
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// KeyPath returns the path component of a key built by BuildKey.
func KeyPath(key string) string {
	if i := strings.IndexByte(key, ' '); i >= 0 {
		key = key[i+1:]
	}
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}
	return key
}

// PathPrefix matches keys whose path is prefix or lies below it, so
// PathPrefix("/api/v1/recipes") matches "/api/v1/recipes/42" but not
// "/api/v1/recipes-archive".
func PathPrefix(prefix string) func(key string) bool {
	prefix = cleanPath(prefix)
	return func(key string) bool {
		p := KeyPath(key)
		if p == prefix {
			return true
		}
		if prefix == "/" {
			return true
		}
		return strings.HasPrefix(p, prefix+"/")
	}
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}
