package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrParseFlags      ErrorCode = "parse_flags_failed"
	ErrInvalidDelay    ErrorCode = "invalid_delay"
	ErrInvalidNumber   ErrorCode = "invalid_number"
	ErrInvalidOutput   ErrorCode = "invalid_output"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Sampling errors
	ErrSourceUnavailable ErrorCode = "source_unavailable"
	ErrSampleCancelled   ErrorCode = "sample_cancelled"

	// Publishing errors
	ErrPublishFailed ErrorCode = "publish_failed"
	ErrSinkConnect   ErrorCode = "sink_connect_failed"

	// Application errors
	ErrMainLoop ErrorCode = "main_loop_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrReadConfig:        "Failed to read config file",
	ErrParseFlags:        "Failed to parse command line flags",
	ErrInvalidDelay:      "Invalid delay value",
	ErrInvalidNumber:     "Invalid iteration count",
	ErrInvalidOutput:     "Invalid output mode",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrSourceUnavailable: "Metric source unavailable",
	ErrSampleCancelled:   "Sampling cancelled",
	ErrPublishFailed:     "Failed to publish metrics",
	ErrSinkConnect:       "Failed to connect to sink",
	ErrMainLoop:          "Error in main loop",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
