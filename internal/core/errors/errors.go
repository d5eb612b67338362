package errors

const (
	HttpInternalError          = "internal_error"
	HttpInvalidJsonError       = "invalid_json"
	HttpInvalidLedgerError     = "invalid_ledger"
	HttpInvalidRecordError     = "invalid_record"
	HttpUnknownReportError     = "unknown_report"
	HttpInvalidMonthError      = "invalid_month_code"
	HttpSourceUnavailableError = "source_unavailable"
	HttpUnsupportedMediaError  = "unsupported_media_type"
	HttpPayloadTooLargeError   = "payload_too_large"
	HttpUnsupportedFormatError = "unsupported_format"
)

// ErrorResponse is the error response body of the HTTP API.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
