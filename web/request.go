// Package web provides the HTTP types the processes serve their routes with.
package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultBodyLimit limits the size of the request body read by ReadRequest.
const DefaultBodyLimit = 16 * 1024 * 1024

type Request struct {
	// ID unique identifier of the request. It is added to the response
	// as the X-Request-Id header.
	ID uuid.UUID

	Method string
	// URL is the raw request URI (path?query#fragment)
	URL      string
	Path     string
	Query    map[string]string
	Fragment string

	Headers http.Header
	Body    []byte

	KeepAlive  bool
	RemoteAddr string
}

// ReadRequest converts the incoming HTTP request. The body is read up to the
// limit (DefaultBodyLimit if limit is zero), ErrTooLarge is returned if it exceeds.
func ReadRequest(r *http.Request, limit int64) (*Request, error) {
	if limit < 1 {
		limit = DefaultBodyLimit
	}

	query, err := DecodeQuery(r.URL.RawQuery)
	if err != nil {
		return nil, err
	}

	req := &Request{
		ID:         uuid.New(),
		Method:     r.Method,
		URL:        r.RequestURI,
		Path:       r.URL.Path,
		Query:      query,
		Fragment:   r.URL.Fragment,
		Headers:    r.Header,
		KeepAlive:  r.Close == false,
		RemoteAddr: r.RemoteAddr,
	}

	if r.Body == nil {
		return req, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrTooLarge
	}
	req.Body = body
	return req, nil
}

// Accepts returns whether the encoding is acceptable according to the
// Accept-Encoding header (RFC 2616, section 14.3). The encoding listed explicitly
// is looked up first, then the "*" wildcard. A zero q-value means "not acceptable".
func (r *Request) Accepts(encoding string) bool {
	accepted := r.Headers.Get("Accept-Encoding")
	if accepted == "" {
		return false
	}
	accepted = strings.NewReplacer(" ", "", "\t", "", "\n", "").Replace(accepted)

	for _, candidate := range []string{encoding, "*"} {
		for _, item := range strings.Split(accepted, ",") {
			if strings.HasPrefix(item, candidate) == false {
				continue
			}

			q, found := qvalue(item)
			if found == false {
				return true
			}
			value, err := strconv.ParseFloat(q, 64)
			return err == nil && value > 0
		}
	}
	return false
}

func qvalue(item string) (string, bool) {
	var q string
	var found int
	for _, param := range strings.Split(item, ";") {
		k, v, ok := strings.Cut(param, "=")
		if ok == false || k != "q" {
			continue
		}
		q = v
		found++
	}
	// multiple q values are treated as none
	return q, found == 1
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s (%s)", r.Method, r.URL, r.ID)
}
