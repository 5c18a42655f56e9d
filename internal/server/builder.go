// Package server assembles the HTTP JSON-RPC server: the builder holding
// the configuration surface, the gate that screens HTTP requests, and the
// lifecycle handle used to run and stop the accept loop.
package server

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/DeFiCh/jsonrpsee/internal/acl"
	"github.com/DeFiCh/jsonrpsee/internal/middleware"
	"github.com/DeFiCh/jsonrpsee/internal/resource"
)

// TenMB is the default request and response body limit.
const TenMB uint32 = 10 * 1024 * 1024

// DefaultMaxLogLength is the default truncation point for payload logging.
const DefaultMaxLogLength uint32 = 4096

// HealthAPI exposes one RPC method under a GET path. The method is invoked
// with no parameters.
type HealthAPI struct {
	Path   string
	Method string
}

// Builder collects the server configuration. All knobs are optional; the
// zero configuration serves JSON-RPC with 10 MiB body limits, batch support
// and an allow-all access policy.
type Builder struct {
	maxRequestBodySize     uint32
	maxResponseBodySize    uint32
	maxLogLength           uint32
	batchRequestsSupported bool
	accessControl          *acl.AccessControl
	resources              *resource.Tracker
	health                 *HealthAPI
	mw                     middleware.Middleware
	logger                 *logrus.Logger
	baseCtx                context.Context
}

// NewBuilder creates a builder with the default configuration.
func NewBuilder() *Builder {
	return &Builder{
		maxRequestBodySize:     TenMB,
		maxResponseBodySize:    TenMB,
		maxLogLength:           DefaultMaxLogLength,
		batchRequestsSupported: true,
		accessControl:          acl.AllowAll(),
		resources:              resource.NewTracker(),
		mw:                     middleware.Noop{},
		logger:                 logrus.New(),
		baseCtx:                context.Background(),
	}
}

// MaxRequestBodySize sets the request body limit in bytes.
func (b *Builder) MaxRequestBodySize(size uint32) *Builder {
	b.maxRequestBodySize = size
	return b
}

// MaxResponseBodySize sets the response body budget in bytes.
func (b *Builder) MaxResponseBodySize(size uint32) *Builder {
	b.maxResponseBodySize = size
	return b
}

// MaxLogLength sets the payload logging truncation point.
func (b *Builder) MaxLogLength(length uint32) *Builder {
	b.maxLogLength = length
	return b
}

// BatchRequestsSupported toggles batch support. Enabled by default.
func (b *Builder) BatchRequestsSupported(supported bool) *Builder {
	b.batchRequestsSupported = supported
	return b
}

// SetAccessControl installs the host/origin/header policy.
func (b *Builder) SetAccessControl(policy *acl.AccessControl) *Builder {
	b.accessControl = policy
	return b
}

// SetMiddleware installs the observation hooks.
func (b *Builder) SetMiddleware(mw middleware.Middleware) *Builder {
	b.mw = mw
	return b
}

// WithLogger replaces the server logger.
func (b *Builder) WithLogger(logger *logrus.Logger) *Builder {
	b.logger = logger
	return b
}

// BaseContext sets the context every request inherits. Cancelling it also
// shuts the accept loop down.
func (b *Builder) BaseContext(ctx context.Context) *Builder {
	b.baseCtx = ctx
	return b
}

// RegisterResource adds a resource kind to the tracker. Fails on a
// duplicate label, a default over capacity, or more than the supported
// number of kinds.
func (b *Builder) RegisterResource(label string, capacity, defaultUnits uint16) error {
	return b.resources.Register(label, capacity, defaultUnits)
}

// SetHealthAPI routes GET requests on path to an RPC method. Fails when the
// path lacks a leading slash.
func (b *Builder) SetHealthAPI(path, method string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("health endpoint path must start with '/', got: %s", path)
	}
	b.health = &HealthAPI{Path: path, Method: method}
	return nil
}

// Build binds a TCP listener on addr and returns the server.
func (b *Builder) Build(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return b.BuildFromListener(listener), nil
}

// BuildFromListener returns a server serving on an already-bound listener,
// leaving socket options to the caller.
func (b *Builder) BuildFromListener(listener net.Listener) *Server {
	return &Server{
		listener:               listener,
		maxRequestBodySize:     b.maxRequestBodySize,
		maxResponseBodySize:    b.maxResponseBodySize,
		maxLogLength:           b.maxLogLength,
		batchRequestsSupported: b.batchRequestsSupported,
		accessControl:          b.accessControl,
		resources:              b.resources,
		health:                 b.health,
		mw:                     b.mw,
		logger:                 b.logger,
		baseCtx:                b.baseCtx,
	}
}
