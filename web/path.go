package web

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ParsePath matches the path against the pattern and returns the values of
// the pattern keys. A key in braces ("/books/{isbn}/chapters/{chapter}")
// takes the value of the segment at the same position, other segments must
// match exactly. A pattern may be longer than the path.
func ParsePath(pattern string, path string) (map[string]string, error) {
	keys := tokenize(pattern, "/")
	segments := tokenize(path, "/")
	result := make(map[string]string)

	for i, segment := range segments {
		if i >= len(keys) {
			return nil, fmt.Errorf("%w: unexpected suffix %q", ErrPathMismatch,
				strings.Join(segments[i:], "/"))
		}
		key := keys[i]
		if strings.HasPrefix(key, "{") && strings.HasSuffix(key, "}") {
			key = strings.TrimSuffix(strings.TrimPrefix(key, "{"), "}")
		} else if key != segment {
			return nil, fmt.Errorf("%w: expecting %q not %q", ErrPathMismatch, key, segment)
		}
		result[key] = segment
	}
	return result, nil
}

// DecodeQuery decodes the query string. Both ';' and '&' separate the pairs,
// a key without '=' gets an empty value.
func DecodeQuery(query string) (map[string]string, error) {
	result := make(map[string]string)
	for _, pair := range tokenize(query, ";&") {
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
		}
		result[key] = value
	}
	return result, nil
}

// EncodeQuery encodes the query. Keys are sorted to keep the output stable.
func EncodeQuery(query map[string]string) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(query[k]))
	}
	return b.String()
}

// tokenize splits s by any of the delimiters dropping empty tokens
func tokenize(s string, delims string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(delims, r)
	})
}
