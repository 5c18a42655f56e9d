package router

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DeFiCh/jsonrpsee/internal/jsonrpc"
	"github.com/DeFiCh/jsonrpsee/internal/middleware"
	"github.com/DeFiCh/jsonrpsee/internal/resource"
)

// MaxBatchConcurrency bounds how many calls of one batch run at once. The
// resource tracker is the real backpressure; this only caps goroutine
// fan-out.
const MaxBatchConcurrency = 50

// Limits is the processor's slice of the server configuration.
type Limits struct {
	MaxResponseBodySize    uint32
	MaxLogLength           uint32
	BatchRequestsSupported bool
}

// Processor runs the JSON-RPC state machine for request bodies that already
// passed the HTTP gate: classify single/notification/batch, dispatch against
// the registry under the resource tracker, and assemble the response body
// from the sink.
type Processor struct {
	methods *Methods
	tracker *resource.Tracker
	mw      middleware.Middleware
	limits  Limits
	logger  *logrus.Logger
}

// NewProcessor wires a processor. mw may be nil.
func NewProcessor(methods *Methods, tracker *resource.Tracker, mw middleware.Middleware, limits Limits, logger *logrus.Logger) *Processor {
	if mw == nil {
		mw = middleware.Noop{}
	}
	return &Processor{
		methods: methods,
		tracker: tracker,
		mw:      mw,
		limits:  limits,
		logger:  logger,
	}
}

// Process consumes one request body and returns the aggregated response
// body. A nil return means HTTP 200 with an empty body (notifications).
func (p *Processor) Process(ctx context.Context, uriPath string, body []byte) []byte {
	start := p.mw.OnRequest()

	if jsonrpc.IsBatch(body) {
		return p.processBatch(ctx, uriPath, body, start)
	}

	var req jsonrpc.Request
	decodeErr := json.Unmarshal(body, &req)

	if decodeErr != nil || req.Validate() != nil {
		id, rpcErr := jsonrpc.PrepareError(body)
		sink := NewSink(1, p.limits.MaxResponseBodySize)
		sink.SendError(id, rpcErr)
		return p.finishSingle(sink, start)
	}

	p.mw.RxLog(body, p.limits.MaxLogLength)

	if req.IsNotification() {
		// Notifications respond immediately with an empty body.
		return nil
	}

	sink := NewSink(1, p.limits.MaxResponseBodySize)
	p.mw.OnCall(req.Method)
	success := p.dispatch(ctx, &req, uriPath, sink)
	p.mw.OnResult(req.Method, success, start)
	return p.finishSingle(sink, start)
}

func (p *Processor) processBatch(ctx context.Context, uriPath string, body []byte, start time.Time) []byte {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		id, rpcErr := jsonrpc.PrepareError(body)
		sink := NewSink(1, p.limits.MaxResponseBodySize)
		sink.SendError(id, rpcErr)
		return p.finishSingle(sink, start)
	}

	p.mw.RxLog(body, p.limits.MaxLogLength)

	if !p.limits.BatchRequestsSupported {
		sink := NewSink(1, p.limits.MaxResponseBodySize)
		sink.SendError(jsonrpc.NullID, jsonrpc.ErrBatchesNotSupported)
		return p.finishSingle(sink, start)
	}

	if len(elements) == 0 {
		// An empty array is answered with a single error envelope.
		sink := NewSink(1, p.limits.MaxResponseBodySize)
		sink.SendError(jsonrpc.NullID, jsonrpc.ErrInvalidRequest)
		return p.finishSingle(sink, start)
	}

	sink := NewSink(len(elements), p.limits.MaxResponseBodySize)
	discard := NewDiscardSink()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxBatchConcurrency)

	for _, raw := range elements {
		var req jsonrpc.Request
		if err := json.Unmarshal(raw, &req); err != nil || req.Validate() != nil {
			// A malformed entry inside a parseable batch yields its own
			// error envelope with the null id.
			sink.SendError(jsonrpc.NullID, jsonrpc.ErrInvalidRequest)
			continue
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			target := sink
			if req.IsNotification() {
				target = discard
			}
			p.mw.OnCall(req.Method)
			success := p.dispatch(gctx, &req, uriPath, target)
			p.mw.OnResult(req.Method, success, start)
			return nil
		})
	}

	_ = g.Wait()
	sink.Close()

	if sink.Sent() == 0 {
		// Batch of notifications only.
		return nil
	}

	out := sink.DrainBatch()
	p.mw.OnResponse(start)
	return []byte(out)
}

// ProcessHealth invokes the named method with id 0 and no parameters,
// bypassing the resource tracker, and extracts the envelope's result field.
func (p *Processor) ProcessHealth(ctx context.Context, methodName string) ([]byte, bool) {
	start := p.mw.OnRequest()
	sink := NewSink(1, p.limits.MaxResponseBodySize)
	id := jsonrpc.NumberID(0)

	success := false
	if method, found := p.methods.Method(methodName); found {
		switch method.kind {
		case KindSync:
			success = method.sync(id, Params{}, sink)
			p.mw.OnResult(methodName, success, start)
		case KindAsync:
			success = method.async(ctx, id, Params{}, sink)
			p.mw.OnResult(methodName, success, start)
		default:
			p.mw.OnResult(methodName, false, start)
		}
	}
	sink.Close()

	payload, ok := sink.Next()
	p.mw.OnResponse(start)
	if !ok || !success {
		return nil, false
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil || envelope.Result == nil {
		return nil, false
	}
	return envelope.Result, true
}

// dispatch runs one call against the registry. It always leaves exactly one
// envelope in the sink unless the context was already cancelled, and
// releases any claimed resources on every exit path.
func (p *Processor) dispatch(ctx context.Context, req *jsonrpc.Request, uriPath string, sink *Sink) (success bool) {
	if ctx.Err() != nil {
		return false
	}

	method, found := p.methods.Method(req.Method)
	if !found {
		sink.SendError(req.ID, jsonrpc.ErrMethodNotFound)
		return false
	}

	if method.kind == KindSubscription || method.kind == KindUnsubscription {
		p.logger.WithFields(logrus.Fields{
			"method": req.Method,
			"kind":   method.kind.String(),
		}).Error("Subscriptions are not supported over HTTP")
		sink.SendError(req.ID, jsonrpc.ErrInternal)
		return false
	}

	guard, err := p.tracker.Claim(method.claims)
	if err != nil {
		if errors.Is(err, resource.ErrBusy) {
			p.logger.WithField("method", req.Method).Warn("Failed to claim resources")
		} else {
			p.logger.WithError(err).WithField("method", req.Method).Error("Resource claim failed")
		}
		sink.SendError(req.ID, jsonrpc.ErrServerIsBusy)
		return false
	}
	defer guard.Release()

	before := sink.Sent()
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"method": req.Method,
				"panic":  r,
			}).Error("Handler panic recovered")
			if sink.Sent() == before {
				sink.SendError(req.ID, jsonrpc.ErrInternal)
			}
			success = false
		}
	}()

	params := Params{Path: uriPath, Raw: req.Params}
	if method.kind == KindAsync {
		return method.async(ctx, req.ID, params, sink)
	}
	return method.sync(req.ID, params, sink)
}

// finishSingle closes a one-envelope sink and returns its payload.
func (p *Processor) finishSingle(sink *Sink, start time.Time) []byte {
	sink.Close()
	payload, ok := sink.Next()
	p.mw.OnResponse(start)
	if !ok {
		return nil
	}
	return []byte(payload)
}
