package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DeFiCh/jsonrpsee/internal/jsonrpc"
	"github.com/DeFiCh/jsonrpsee/internal/router"
)

// demoMethods is the method set the daemon ships with. Real deployments
// embed the server package and register their own.
func demoMethods(logger *logrus.Logger) *router.Methods {
	methods := router.NewMethods()

	mustRegister(logger, methods, router.NewSyncMethod("say_hello",
		func(id json.RawMessage, params router.Params, sink *router.Sink) bool {
			return sink.SendResponse(id, json.RawMessage(`"hello"`))
		}))

	mustRegister(logger, methods, router.NewSyncMethod("echo",
		func(id json.RawMessage, params router.Params, sink *router.Sink) bool {
			var args []json.RawMessage
			if err := json.Unmarshal(params.Raw, &args); err != nil || len(args) == 0 {
				sink.SendError(id, jsonrpc.ErrInvalidParams)
				return false
			}
			return sink.SendResponse(id, args[0])
		}))

	mustRegister(logger, methods, router.NewAsyncMethod("sleep",
		func(ctx context.Context, id json.RawMessage, params router.Params, sink *router.Sink) bool {
			var args []int64
			if err := json.Unmarshal(params.Raw, &args); err != nil || len(args) == 0 {
				sink.SendError(id, jsonrpc.ErrInvalidParams)
				return false
			}
			select {
			case <-time.After(time.Duration(args[0]) * time.Millisecond):
				return sink.SendResponse(id, json.RawMessage("true"))
			case <-ctx.Done():
				sink.SendError(id, jsonrpc.ErrInternal)
				return false
			}
		}))

	mustRegister(logger, methods, router.NewSyncMethod("system_health",
		func(id json.RawMessage, params router.Params, sink *router.Sink) bool {
			result, err := json.Marshal(map[string]string{"status": "ok"})
			if err != nil {
				sink.SendError(id, jsonrpc.ErrInternal)
				return false
			}
			return sink.SendResponse(id, result)
		}))

	return methods
}

func mustRegister(logger *logrus.Logger, methods *router.Methods, m *router.Method) {
	if err := methods.Register(m); err != nil {
		logger.WithError(err).WithField("method", m.Name()).Fatal("Failed to register method")
	}
}
