// Package router holds the method registry, the response sink and the
// JSON-RPC request processor that drives registered handlers.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/DeFiCh/jsonrpsee/internal/resource"
)

// MethodKind tags how a registered callback executes.
type MethodKind int

const (
	// KindSync callbacks run inline on the request goroutine.
	KindSync MethodKind = iota
	// KindAsync callbacks are awaited in the request's context.
	KindAsync
	// KindSubscription methods cannot run over HTTP; dispatch rejects them.
	KindSubscription
	// KindUnsubscription methods cannot run over HTTP; dispatch rejects them.
	KindUnsubscription
)

// String returns the kind name for diagnostics.
func (k MethodKind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	case KindSubscription:
		return "subscription"
	case KindUnsubscription:
		return "unsubscription"
	default:
		return "unknown"
	}
}

// Params bundles what a handler receives besides the id: the HTTP request
// path (usable for handler-side routing) and the raw params value, nil when
// the request had none.
type Params struct {
	Path string
	Raw  json.RawMessage
}

// SyncHandler runs inline. It must push exactly one envelope for id into the
// sink and report whether the call succeeded.
type SyncHandler func(id json.RawMessage, params Params, sink *Sink) bool

// AsyncHandler is awaited by the processor. Same sink contract as
// SyncHandler; ctx is cancelled when the client goes away.
type AsyncHandler func(ctx context.Context, id json.RawMessage, params Params, sink *Sink) bool

// Method is one registered method: a name, a kind, a callback and the
// resource claim vector charged per call. Immutable after registration.
type Method struct {
	name   string
	kind   MethodKind
	sync   SyncHandler
	async  AsyncHandler
	claims []resource.Claim
}

// NewSyncMethod creates a synchronous method descriptor.
func NewSyncMethod(name string, fn SyncHandler, claims ...resource.Claim) *Method {
	return &Method{name: name, kind: KindSync, sync: fn, claims: claims}
}

// NewAsyncMethod creates an asynchronous method descriptor.
func NewAsyncMethod(name string, fn AsyncHandler, claims ...resource.Claim) *Method {
	return &Method{name: name, kind: KindAsync, async: fn, claims: claims}
}

// NewSubscription creates a subscription descriptor. The HTTP transport
// rejects calls to it; the constructor exists so method sets shared with
// other transports still register.
func NewSubscription(name string) *Method {
	return &Method{name: name, kind: KindSubscription}
}

// NewUnsubscription creates an unsubscription descriptor, rejected like
// subscriptions.
func NewUnsubscription(name string) *Method {
	return &Method{name: name, kind: KindUnsubscription}
}

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// Kind returns the method kind.
func (m *Method) Kind() MethodKind { return m.kind }

// Claims returns the effective claim vector. Before resource
// initialization it is whatever the registration declared.
func (m *Method) Claims() []resource.Claim { return m.claims }

// Methods maps method names to descriptors. Registration happens before the
// server starts; after InitializeResources the set is sealed.
type Methods struct {
	mu      sync.RWMutex
	methods map[string]*Method
	sealed  bool
}

// NewMethods creates an empty registry.
func NewMethods() *Methods {
	return &Methods{methods: make(map[string]*Method)}
}

// Register adds a method descriptor. It fails on an empty name, a duplicate
// name, or a sealed registry.
func (m *Methods) Register(method *Method) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return fmt.Errorf("method registry is sealed, server already started")
	}
	if method.name == "" {
		return fmt.Errorf("method name cannot be empty")
	}
	if _, exists := m.methods[method.name]; exists {
		return fmt.Errorf("method %q already registered", method.name)
	}
	m.methods[method.name] = method
	return nil
}

// Method looks up a descriptor by exact name.
func (m *Methods) Method(name string) (*Method, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	method, found := m.methods[name]
	return method, found
}

// Names returns the registered method names.
func (m *Methods) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.methods))
	for name := range m.methods {
		names = append(names, name)
	}
	return names
}

// InitializeResources validates every claim vector against the tracker and
// seals the registry. Methods that declared no claim for a registered kind
// are charged that kind's default units, so capacity planning covers every
// method uniformly.
func (m *Methods) InitializeResources(tracker *resource.Tracker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, method := range m.methods {
		if method.kind == KindSubscription || method.kind == KindUnsubscription {
			continue
		}
		if err := tracker.ValidateClaims(method.claims); err != nil {
			return fmt.Errorf("method %q: %w", name, err)
		}
		method.claims = tracker.FillDefaults(method.claims)
	}
	m.sealed = true
	return nil
}
