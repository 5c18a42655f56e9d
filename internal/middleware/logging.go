package middleware

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DeFiCh/jsonrpsee/internal/jsonrpc"
)

// Logging logs calls and their outcomes through logrus.
type Logging struct {
	logger *logrus.Logger
}

// NewLogging creates a logging middleware.
func NewLogging(logger *logrus.Logger) *Logging {
	return &Logging{logger: logger}
}

// OnRequest implements Middleware.
func (l *Logging) OnRequest() time.Time {
	return time.Now()
}

// OnCall implements Middleware.
func (l *Logging) OnCall(method string) {
	l.logger.WithField("method", method).Debug("Dispatching JSON-RPC call")
}

// OnResult implements Middleware.
func (l *Logging) OnResult(method string, success bool, started time.Time) {
	entry := l.logger.WithFields(logrus.Fields{
		"method":   method,
		"success":  success,
		"duration": time.Since(started),
	})
	if success {
		entry.Debug("Call completed")
	} else {
		entry.Warn("Call failed")
	}
}

// OnResponse implements Middleware.
func (l *Logging) OnResponse(started time.Time) {
	l.logger.WithField("duration", time.Since(started)).Debug("Response written")
}

// RxLog implements Middleware.
func (l *Logging) RxLog(body []byte, maxLen uint32) {
	if l.logger.IsLevelEnabled(logrus.DebugLevel) {
		l.logger.WithField("body", jsonrpc.TruncateLog(body, maxLen)).Debug("Received payload")
	}
}
