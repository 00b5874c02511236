package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"

	"ergo.services/actor/future"
	"ergo.services/actor/gen"
	"ergo.services/actor/web"
)

func (nw *network) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == infoPath {
		nw.serveInfo(w, r)
		return
	}

	request, err := web.ReadRequest(r, nw.options.BodyLimit)
	if err != nil {
		if errors.Is(err, web.ErrTooLarge) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, rule := range nw.options.Firewall {
		if err := rule.Apply(request); err != nil {
			nw.node.log.Debug("request %s %s from %s is rejected: %s",
				request.Method, request.Path, request.RemoteAddr, err)
			web.Forbidden(err.Error()).Serve(r.Context(), w, r)
			return
		}
	}

	name, path := splitPath(request.Path)
	if name == "" {
		web.NotFound("").Serve(r.Context(), w, r)
		return
	}

	if from := r.Header.Get(headerFrom); from != "" && r.Method == http.MethodPost {
		nw.receive(w, r, request, from, name, path)
		return
	}

	nw.serveRoute(w, r, request, name, path)
}

// receive delivers the message sent by the remote process
func (nw *network) receive(w http.ResponseWriter, r *http.Request, request *web.Request,
	sender string, name gen.Atom, path string) {

	from, err := gen.ParsePID(sender)
	if err != nil {
		web.BadRequest(err.Error()).Serve(r.Context(), w, r)
		return
	}
	if err := nw.compatible(r.Header.Get(headerVersion)); err != nil {
		nw.node.log.Warning("message from %s is rejected: %s", from, err)
		web.BadRequest(err.Error()).Serve(r.Context(), w, r)
		return
	}

	message := gen.Atom(strings.Trim(path, "/"))
	if message == "" {
		web.BadRequest("missing message name").Serve(r.Context(), w, r)
		return
	}

	// the sender is alive
	nw.peer(from.Node)

	to := gen.PID{Name: name, Node: nw.address}
	if err := nw.node.deliver(from, to, message, request.Body); err != nil {
		nw.node.log.Warning("message %q from %s to %s is dropped: %s", message, from, to, err)
	}
	web.Accepted("").Serve(r.Context(), w, r)
}

// compatible checks the framework version of the peer. A peer with a
// different major version is rejected. Non-semver versions are accepted.
func (nw *network) compatible(release string) error {
	if release == "" {
		return nil
	}
	remote, err := semver.NewVersion(release)
	if err != nil {
		return nil
	}
	local, err := semver.NewVersion(nw.node.framework.Release)
	if err != nil {
		return nil
	}
	if remote.Major() != local.Major() {
		return fmt.Errorf("%w: version %s is not compatible with %s",
			gen.ErrPeerIncompatible, remote, local)
	}
	return nil
}

func (nw *network) serveRoute(w http.ResponseWriter, r *http.Request, request *web.Request,
	name gen.Atom, path string) {

	p, err := nw.node.resolve(gen.PID{Name: name, Node: nw.address})
	if err != nil {
		web.NotFound("").Serve(r.Context(), w, r)
		return
	}

	promise := future.NewPromise[*web.Response]()
	m := gen.TakeMailboxMessage()
	m.From = gen.PID{Node: nw.address}
	m.Type = gen.MailboxMessageTypeRequest
	m.Message = &routeRequest{
		request: request,
		path:    path,
		promise: promise,
	}
	if err := p.enqueue(m, false); err != nil {
		web.ServiceUnavailable(err.Error()).Serve(r.Context(), w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), nw.options.RequestTimeout)
	defer cancel()

	response, err := gen.Await(ctx, gen.Node(nw.node), promise.Future())
	if errors.Is(err, context.DeadlineExceeded) {
		err = gen.ErrTimeout
	}
	switch {
	case err == nil:
	case err == gen.ErrTimeout:
		nw.node.log.Warning("handling HTTP-request %s %s: %s", request.Method, request.Path, err)
		w.WriteHeader(http.StatusGatewayTimeout)
		return
	case errors.Is(err, gen.ErrRouteUnknown):
		web.NotFound("").Serve(r.Context(), w, r)
		return
	case errors.Is(err, context.Canceled):
		// client has gone
		return
	case errors.Is(err, future.ErrDiscarded):
		web.ServiceUnavailable("").Serve(r.Context(), w, r)
		return
	default:
		web.InternalServerError(err.Error()).Serve(r.Context(), w, r)
		return
	}

	if response == nil {
		response = web.OK("")
	}
	if response.Headers == nil {
		response.Headers = make(http.Header)
	}
	response.Headers.Set(headerRequestID, request.ID.String())
	response.Serve(r.Context(), w, r)
}

func (nw *network) serveInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	response, err := web.JSON(nw.node.Info())
	if err != nil {
		web.InternalServerError(err.Error()).Serve(r.Context(), w, r)
		return
	}
	response.Serve(r.Context(), w, r)
}

// splitPath splits "/name/rest" into the process name and "/rest"
func splitPath(path string) (gen.Atom, string) {
	path = strings.TrimPrefix(path, "/")
	name, rest, _ := strings.Cut(path, "/")
	return gen.Atom(name), "/" + rest
}
