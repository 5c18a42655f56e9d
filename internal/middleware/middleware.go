// Package middleware defines the observation hooks the server fires around
// request processing, plus the packaged logrus and prometheus
// implementations. Hooks observe; they cannot alter payloads.
package middleware

import (
	"time"
)

// Middleware receives lifecycle events for every processed HTTP request.
// OnRequest returns the timestamp later hooks receive, so implementations
// can measure durations without shared state.
type Middleware interface {
	// OnRequest fires once the HTTP gate accepted the request body.
	OnRequest() time.Time

	// OnCall fires before a method dispatches.
	OnCall(method string)

	// OnResult fires after a dispatch with the handler's success flag.
	OnResult(method string, success bool, started time.Time)

	// OnResponse fires just before the aggregated body is written.
	OnResponse(started time.Time)

	// RxLog offers the received payload for logging, to be truncated at
	// maxLen bytes.
	RxLog(body []byte, maxLen uint32)
}

// Noop discards every event.
type Noop struct{}

// OnRequest implements Middleware.
func (Noop) OnRequest() time.Time { return time.Now() }

// OnCall implements Middleware.
func (Noop) OnCall(string) {}

// OnResult implements Middleware.
func (Noop) OnResult(string, bool, time.Time) {}

// OnResponse implements Middleware.
func (Noop) OnResponse(time.Time) {}

// RxLog implements Middleware.
func (Noop) RxLog([]byte, uint32) {}

// Chain fans every event out to a list of middlewares in order.
type Chain []Middleware

// OnRequest implements Middleware.
func (c Chain) OnRequest() time.Time {
	start := time.Now()
	for _, m := range c {
		m.OnRequest()
	}
	return start
}

// OnCall implements Middleware.
func (c Chain) OnCall(method string) {
	for _, m := range c {
		m.OnCall(method)
	}
}

// OnResult implements Middleware.
func (c Chain) OnResult(method string, success bool, started time.Time) {
	for _, m := range c {
		m.OnResult(method, success, started)
	}
}

// OnResponse implements Middleware.
func (c Chain) OnResponse(started time.Time) {
	for _, m := range c {
		m.OnResponse(started)
	}
}

// RxLog implements Middleware.
func (c Chain) RxLog(body []byte, maxLen uint32) {
	for _, m := range c {
		m.RxLog(body, maxLen)
	}
}
