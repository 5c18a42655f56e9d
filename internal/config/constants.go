package config

const (
	// MaxPort is the highest valid TCP port.
	MaxPort = 65535

	// Log levels accepted by the daemon.
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"

	// Log formats accepted by the daemon.
	LogFormatJSON = "json"
	LogFormatText = "text"

	// DefaultHTTPHost is the default listen host.
	DefaultHTTPHost = "localhost"
	// DefaultHTTPPort is the default listen port.
	DefaultHTTPPort = 9944

	// DefaultMaxBodyMB is the default request and response body limit.
	DefaultMaxBodyMB = 10
	// DefaultMaxLogLength is the default payload log truncation point.
	DefaultMaxLogLength = 4096

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = LogLevelInfo
	// DefaultLogFormat is the default logging format.
	DefaultLogFormat = LogFormatText
)

// Validator is implemented by every configuration section.
type Validator interface {
	Validate() error
}

var validLogLevels = map[string]bool{
	LogLevelDebug: true,
	LogLevelInfo:  true,
	LogLevelWarn:  true,
	LogLevelError: true,
	LogLevelFatal: true,
}

var validLogFormats = map[string]bool{
	LogFormatJSON: true,
	LogFormatText: true,
}
