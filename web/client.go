package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ergo.services/actor/future"
)

type URL struct {
	Scheme   string
	Host     string
	Port     uint16
	Path     string
	Query    map[string]string
	Fragment string
}

func (u URL) String() string {
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	port := u.Port
	if port == 0 {
		port = 80
	}
	s := fmt.Sprintf("%s://%s/%s", scheme,
		net.JoinHostPort(u.Host, strconv.Itoa(int(port))),
		strings.TrimPrefix(u.Path, "/"))
	if len(u.Query) > 0 {
		s += "?" + EncodeQuery(u.Query)
	}
	if u.Fragment != "" {
		s += "#" + u.Fragment
	}
	return s
}

// DefaultClient is used by Get and Post.
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
}

// Get makes a GET request in the background. Discarding the returned future
// cancels the request.
func Get(ctx context.Context, url URL, headers http.Header) future.Future[*Response] {
	return Do(ctx, DefaultClient, http.MethodGet, url.String(), headers, nil)
}

// Post makes a POST request in the background. Discarding the returned future
// cancels the request.
func Post(ctx context.Context, url URL, headers http.Header, contentType string, body []byte) future.Future[*Response] {
	if contentType != "" {
		headers = headers.Clone()
		if headers == nil {
			headers = make(http.Header)
		}
		headers.Set("Content-Type", contentType)
	}
	return Do(ctx, DefaultClient, http.MethodPost, url.String(), headers, body)
}

// Do makes the request with the given client. Response with any status
// resolves the future, transport errors fail it.
func Do(ctx context.Context, client *http.Client, method string, url string,
	headers http.Header, body []byte) future.Future[*Response] {

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	ctx, cancel := context.WithCancel(ctx)
	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		cancel()
		return future.Failed[*Response](err)
	}
	for k, v := range headers {
		request.Header[k] = v
	}

	promise := future.NewPromise[*Response]()
	promise.Future().OnDiscard(cancel)

	go func() {
		defer cancel()

		response, err := client.Do(request)
		if err != nil {
			if ctx.Err() == context.Canceled && promise.Future().HasDiscard() {
				promise.Discard()
				return
			}
			promise.Fail(fmt.Errorf("%w: %s", ErrRequestFailed, err))
			return
		}
		defer response.Body.Close()

		b, err := io.ReadAll(response.Body)
		if err != nil {
			promise.Fail(fmt.Errorf("%w: %s", ErrRequestFailed, err))
			return
		}
		promise.Set(&Response{
			Status:  response.StatusCode,
			Headers: response.Header,
			Body:    b,
		})
	}()

	return promise.Future()
}

// await blocks the caller until the future is resolved or the context is done.
// Discard is requested on the context termination.
func await[T any](ctx context.Context, f future.Future[T]) (T, error) {
	done := make(chan struct{})
	f.Notify(func() {
		close(done)
	})
	select {
	case <-done:
		return f.Get()
	case <-ctx.Done():
		f.Discard()
		var empty T
		return empty, ctx.Err()
	}
}
