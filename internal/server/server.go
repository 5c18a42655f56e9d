package server

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DeFiCh/jsonrpsee/internal/acl"
	"github.com/DeFiCh/jsonrpsee/internal/middleware"
	"github.com/DeFiCh/jsonrpsee/internal/resource"
	"github.com/DeFiCh/jsonrpsee/internal/router"
)

const shutdownGracePeriod = 30 * time.Second

// Server is a built, not-yet-running HTTP JSON-RPC server. Start consumes
// the method registry and spawns the accept loop.
type Server struct {
	listener net.Listener

	maxRequestBodySize     uint32
	maxResponseBodySize    uint32
	maxLogLength           uint32
	batchRequestsSupported bool

	accessControl *acl.AccessControl
	resources     *resource.Tracker
	health        *HealthAPI
	mw            middleware.Middleware
	logger        *logrus.Logger
	baseCtx       context.Context

	started atomic.Bool
}

// Addr returns the address the server is bound to.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start validates the method set against the resource tracker, spawns the
// accept loop and returns the handle used to stop the server. In-flight
// requests are drained on stop.
func (s *Server) Start(methods *router.Methods) (*ServerHandle, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	if err := methods.InitializeResources(s.resources); err != nil {
		return nil, err
	}

	processor := router.NewProcessor(methods, s.resources, s.mw, router.Limits{
		MaxResponseBodySize:    s.maxResponseBodySize,
		MaxLogLength:           s.maxLogLength,
		BatchRequestsSupported: s.batchRequestsSupported,
	}, s.logger)

	httpServer := &http.Server{
		Handler:           s.buildEngine(processor),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.baseCtx
		},
	}

	s.logger.WithField("addr", s.Addr().String()).Info("Starting JSON-RPC server")

	done := make(chan struct{})
	stop := make(chan struct{})

	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
		}
	}()

	go func() {
		defer close(done)
		select {
		case <-stop:
		case <-s.baseCtx.Done():
		case <-served:
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Warn("Graceful shutdown incomplete")
		}
		<-served
	}()

	return &ServerHandle{stop: stop, done: done}, nil
}
