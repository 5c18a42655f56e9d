package router

import (
	"encoding/json"
	"strings"
	"sync/atomic"

	"github.com/DeFiCh/jsonrpsee/internal/jsonrpc"
)

// Sink collects the serialized response envelopes of one HTTP request. It is
// a bounded multi-producer channel with a response-size budget: an envelope
// that would push the total past the budget is replaced by an oversized
// response error carrying the original id.
//
// The processor closes the sink once every dispatch finished, then drains
// it. Envelopes drain in the order handlers produced them.
type Sink struct {
	ch        chan string
	limit     uint32
	remaining atomic.Int64
	sent      atomic.Int64
	discard   bool
}

// NewSink creates a sink buffered for the expected number of envelopes.
func NewSink(capacity int, maxResponseSize uint32) *Sink {
	s := &Sink{
		ch:    make(chan string, capacity),
		limit: maxResponseSize,
	}
	s.remaining.Store(int64(maxResponseSize))
	return s
}

// NewDiscardSink creates a sink that drops everything written to it. Used
// for notifications inside batches, which dispatch but never respond.
func NewDiscardSink() *Sink {
	return &Sink{discard: true}
}

// SendResponse pushes a success envelope built from an already-serialized
// result value. Reports whether the envelope fit the budget.
func (s *Sink) SendResponse(id json.RawMessage, result json.RawMessage) bool {
	return s.push(id, jsonrpc.NewRawResponse(id, result))
}

// SendError pushes an error envelope.
func (s *Sink) SendError(id json.RawMessage, rpcErr *jsonrpc.Error) bool {
	return s.push(id, jsonrpc.NewErrorResponse(id, rpcErr))
}

func (s *Sink) push(id json.RawMessage, resp *jsonrpc.Response) bool {
	if s.discard {
		return true
	}

	payload, err := jsonrpc.MarshalResponse(resp)
	if err != nil {
		payload, _ = jsonrpc.MarshalResponse(jsonrpc.NewErrorResponse(id, jsonrpc.ErrInternal))
		s.write(string(payload))
		return false
	}

	if !s.consume(len(payload)) {
		oversized, _ := jsonrpc.MarshalResponse(
			jsonrpc.NewErrorResponse(id, jsonrpc.OversizedResponse(s.limit)))
		s.write(string(oversized))
		return false
	}

	s.write(string(payload))
	return true
}

// consume reserves n bytes of the budget, all or nothing.
func (s *Sink) consume(n int) bool {
	for {
		cur := s.remaining.Load()
		if int64(n) > cur {
			return false
		}
		if s.remaining.CompareAndSwap(cur, cur-int64(n)) {
			return true
		}
	}
}

func (s *Sink) write(payload string) {
	s.ch <- payload
	s.sent.Add(1)
}

// Sent returns how many envelopes were pushed so far.
func (s *Sink) Sent() int64 {
	return s.sent.Load()
}

// Close seals the producing side. Must be called exactly once, after all
// dispatches completed.
func (s *Sink) Close() {
	if !s.discard {
		close(s.ch)
	}
}

// Next reads a single envelope. The second return is false when the sink
// was closed empty.
func (s *Sink) Next() (string, bool) {
	payload, ok := <-s.ch
	return payload, ok
}

// DrainBatch reads every envelope out of a closed sink and joins them into
// a JSON array, preserving production order.
func (s *Sink) DrainBatch() string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for payload := range s.ch {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(payload)
	}
	b.WriteByte(']')
	return b.String()
}
