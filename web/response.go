package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Response is returned by the route handlers. The body is taken from one of
// the sources: Path (a file to serve), Reader (a stream) or Body.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte

	Path   string
	Reader *PipeReader
}

func NewResponse(status int, body string) *Response {
	r := &Response{
		Status:  status,
		Headers: make(http.Header),
	}
	if body != "" {
		r.Body = []byte(body)
		r.Headers.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	return r
}

func OK(body string) *Response {
	return NewResponse(http.StatusOK, body)
}

// JSON makes 200 OK response with the value encoded as JSON.
func JSON(value any) (*Response, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	r := NewResponse(http.StatusOK, string(body))
	r.Headers.Set("Content-Type", "application/json")
	return r, nil
}

func Accepted(body string) *Response {
	return NewResponse(http.StatusAccepted, body)
}

func TemporaryRedirect(url string) *Response {
	r := NewResponse(http.StatusTemporaryRedirect, "")
	r.Headers.Set("Location", url)
	return r
}

func BadRequest(body string) *Response {
	return NewResponse(http.StatusBadRequest, body)
}

func Unauthorized(realm string, body string) *Response {
	r := NewResponse(http.StatusUnauthorized, body)
	r.Headers.Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
	return r
}

func Forbidden(body string) *Response {
	return NewResponse(http.StatusForbidden, body)
}

func NotFound(body string) *Response {
	return NewResponse(http.StatusNotFound, body)
}

func InternalServerError(body string) *Response {
	return NewResponse(http.StatusInternalServerError, body)
}

func ServiceUnavailable(body string) *Response {
	return NewResponse(http.StatusServiceUnavailable, body)
}

// Stream makes 200 OK response with the body taken from the pipe reader.
func Stream(reader *PipeReader) *Response {
	r := NewResponse(http.StatusOK, "")
	r.Reader = reader
	return r
}

// File makes a response serving the file.
func File(path string) *Response {
	r := NewResponse(http.StatusOK, "")
	r.Path = path
	return r
}

// Serve writes the response. Streaming stops once the context is done,
// the reader gets closed in this case.
func (r *Response) Serve(ctx context.Context, w http.ResponseWriter, req *http.Request) {
	for k, v := range r.Headers {
		w.Header()[k] = v
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}

	if r.Path != "" {
		http.ServeFile(w, req, r.Path)
		return
	}

	if r.Reader == nil {
		w.WriteHeader(status)
		w.Write(r.Body)
		return
	}

	w.Header().Del("Content-Length")
	w.WriteHeader(status)
	flusher, _ := w.(http.Flusher)
	for {
		chunk, err := await(ctx, r.Reader.Read())
		if err != nil {
			r.Reader.Close()
			return
		}
		if chunk == "" {
			// writer closed the pipe
			return
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			r.Reader.Close()
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (r *Response) String() string {
	return fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status))
}
