package sync

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	gosync "sync"

	"github.com/flightops/flight-data-server/internal/models"
)

// Operation is one step of a schedule run
type Operation string

// Operations in the order a run executes them
const (
	OpReceive Operation = "receive"
	OpProcess Operation = "process"
	OpPrepare Operation = "prepare"
	OpSend    Operation = "send"
)

// Operations lists every operation in run order
var Operations = []Operation{OpReceive, OpProcess, OpPrepare, OpSend}

//go:generate mockgen -destination=mocks/mock_handler.go -package=mocks -source=handlers.go Handler

// Handler serves one operation of one model for one service.
type Handler interface {
	// Handle runs the operation. For receive and prepare the returned value is
	// passed as Request.Data to process and send respectively.
	Handle(ctx context.Context, req *Request) (any, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (any, error) {
	return f(ctx, req)
}

// ClientFactory builds the client a service's handlers share during one run.
type ClientFactory func(ctx context.Context, provider *models.Provider, schedule *models.Schedule) (any, error)

// Key identifies a handler
type Key struct {
	Service   string
	Operation Operation
	Model     string
}

// Handlers is the set of registered handlers and client factories.
// It is safe for concurrent use.
type Handlers struct {
	mu       gosync.RWMutex
	handlers map[Key]Handler
	clients  map[string]ClientFactory
}

// NewHandlers creates an empty handler set
func NewHandlers() *Handlers {
	return &Handlers{
		handlers: make(map[Key]Handler),
		clients:  make(map[string]ClientFactory),
	}
}

// Register sets the handler of (service, op, model), replacing any previous one
func (h *Handlers) Register(service string, op Operation, model string, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[Key{Service: service, Operation: op, Model: model}] = handler
}

// RegisterAll sets handler for every operation of every given model
func (h *Handlers) RegisterAll(service string, handler Handler, syncModels ...string) {
	for _, model := range syncModels {
		for _, op := range Operations {
			h.Register(service, op, model, handler)
		}
	}
}

// RegisterClient sets the client factory of service
func (h *Handlers) RegisterClient(service string, factory ClientFactory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[service] = factory
}

// Resolve returns the handler of (service, op, model) or a ConfigurationError
func (h *Handlers) Resolve(service string, op Operation, model string) (Handler, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.handlers[Key{Service: service, Operation: op, Model: model}]
	if !ok {
		return nil, &ConfigurationError{Service: service, Operation: op, Model: model, Err: ErrHandlerNotRegistered}
	}
	return handler, nil
}

// resolveAll resolves the four operations of (service, model), in run order
func (h *Handlers) resolveAll(service, model string) ([]Handler, error) {
	out := make([]Handler, 0, len(Operations))
	var errs []error
	for _, op := range Operations {
		handler, err := h.Resolve(service, op, model)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, handler)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// client builds the service's client, or returns nil when the service has no factory
func (h *Handlers) client(ctx context.Context, provider *models.Provider, schedule *models.Schedule) (any, error) {
	h.mu.RLock()
	factory, ok := h.clients[provider.Service]
	h.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	c, err := factory(ctx, provider, schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider.Service, err)
	}
	return c, nil
}

// Services returns the names of every service with at least one handler
func (h *Handlers) Services() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := make(map[string]struct{})
	for k := range h.handlers {
		set[k.Service] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// HasService reports whether service has any handler
func (h *Handlers) HasService(service string) bool {
	return slices.Contains(h.Services(), service)
}
