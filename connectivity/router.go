// Package connectivity is the in-process messaging boundary between the
// autofill core and the page-facing services. Handlers are bytes-in,
// bytes-out so the boundary stays serialisable: everything crossing it must
// survive a JSON round trip, which keeps DOM references out by construction.
//
//	router := connectivity.New()
//	router.RegisterLocal("detect_forms", detectHandler)
//	resp, err := router.Call(ctx, "detect_forms", payload)
package connectivity

import (
	"context"
	"log/slog"
	"sync"
)

// Handler is a service function: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Router dispatches service calls to registered handlers. Thread-safe.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger for the router.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates an empty Router.
func New(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers a handler for a service name, replacing any
// previous registration.
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.handlers[service] = h
	r.mu.Unlock()
}

// Register is RegisterLocal with middleware applied outermost-first.
func (r *Router) Register(service string, h Handler, mws ...HandlerMiddleware) {
	r.RegisterLocal(service, Chain(mws...)(h))
}

// Call dispatches a service call. Callers never hold the handler directly,
// so registrations can change while the process runs.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	h := r.handlers[service]
	r.mu.RUnlock()

	if h == nil {
		return nil, &ErrServiceNotFound{Service: service}
	}
	r.logger.DebugContext(ctx, "routing call", "service", service, "payload_bytes", len(payload))
	return h(ctx, payload)
}

// Services returns the registered service names, for diagnostics.
func (r *Router) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}
