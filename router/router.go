// Package router implements the route handlers on the other side of the
// engine/handler boundary: one exported type implementing
// originserver.Router, backed by a small static table of path/method
// handlers.
package router

import (
	"fmt"

	"github.com/originserver/httpd"
)

// HandlerFunc handles one matched route.
type HandlerFunc func(request, response *originserver.HttpMessage) error

// route pairs a path with the single method it accepts and the handler
// that serves it; any other method against the same path yields 405
// with the method named in Allow.
type route struct {
	path    string
	method  originserver.Method
	handler HandlerFunc
}

// Router is the default originserver.Router implementation: "/",
// "/echo", "/favicon.ico", and "/static/…".
type Router struct {
	staticDir string
	routes    []route
}

// New returns a Router serving files for the /static/ route out of
// staticDir.
func New(staticDir string) *Router {
	r := &Router{staticDir: staticDir}
	r.routes = []route{
		{path: "/", method: originserver.MethodGet, handler: r.index},
		{path: "/echo", method: originserver.MethodPost, handler: r.echo},
		{path: "/favicon.ico", method: originserver.MethodGet, handler: r.favicon},
	}
	return r
}

// Route implements originserver.Router.
func (r *Router) Route(request, response *originserver.HttpMessage) error {
	if request == nil || response == nil {
		return fmt.Errorf("%w: nil request or response", originserver.ErrParam)
	}

	target := request.Target()

	if isStaticPath(target) {
		if request.Method() != originserver.MethodGet {
			return methodNotAllowed(response, originserver.MethodGet)
		}
		return r.static(request, response)
	}

	for _, rt := range r.routes {
		if rt.path != target {
			continue
		}
		if request.Method() != rt.method {
			return methodNotAllowed(response, rt.method)
		}
		return rt.handler(request, response)
	}

	return notFound(response)
}

func methodNotAllowed(response *originserver.HttpMessage, allowed originserver.Method) error {
	if err := response.SetResponseLine(originserver.ProtocolHTTP11, originserver.StatusMethodNotAllowed, originserver.StatusText(originserver.StatusMethodNotAllowed)); err != nil {
		return err
	}
	return response.AddHeader("Allow", allowed.String())
}
