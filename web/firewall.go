package web

import (
	"fmt"
)

// FirewallRule inspects the incoming request before it is routed to the process.
// A non-nil error rejects the request with 403 Forbidden.
type FirewallRule interface {
	Apply(request *Request) error
}

// DisabledEndpoints rejects requests with the path listed. Paths must match
// exactly, no prefixes or wildcards are considered.
type DisabledEndpoints map[string]struct{}

func NewDisabledEndpoints(paths ...string) DisabledEndpoints {
	d := make(DisabledEndpoints)
	for _, path := range paths {
		d[path] = struct{}{}
	}
	return d
}

func (d DisabledEndpoints) Apply(request *Request) error {
	if _, found := d[request.Path]; found {
		return fmt.Errorf("%w: %q is disabled", ErrFirewall, request.Path)
	}
	return nil
}

// FirewallFunc adapts a function to the FirewallRule interface.
type FirewallFunc func(request *Request) error

func (f FirewallFunc) Apply(request *Request) error {
	return f(request)
}
