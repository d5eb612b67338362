package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
	httperr "github.com/aevon-lab/tally/internal/core/errors"
	"github.com/aevon-lab/tally/internal/ledger"
	"github.com/aevon-lab/tally/internal/server"
)

// SourceHTTP labels results computed from a posted ledger.
const SourceHTTP = "http"

// Accepted request media types.
const (
	mimeCSV  = "text/csv"
	mimeText = "text/plain"
	mimeJSON = "application/json"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgInvalidLedger  = "Invalid ledger"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// ReportHandler handles POST /v1/reports.
// Query parameters: report (repeatable), format, delimiter (csv), sheet (xlsx).
func (s *Service) ReportHandler(c *gin.Context) {
	body, err := s.readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}

	records, err := s.parseLedger(c, body)
	if err != nil {
		writeError(c, err)
		return
	}

	slog.Info("Received Ledger",
		"content_type", c.ContentType(),
		"records", len(records),
		"payload_size", len(body))

	res, runErr := s.reports.Compute(SourceHTTP, records, c.QueryArray("report"))
	if runErr != nil {
		server.WriteRunError(c, runErr)
		return
	}

	server.WriteResult(c, res)
}

// readBody reads the request body, enforcing the configured size limit.
func (s *Service) readBody(c *gin.Context) ([]byte, *ingestionError) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodySizeBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("Request body exceeds maximum size", "max", s.maxBodySizeBytes)
			return nil, &ingestionError{
				statusCode: http.StatusRequestEntityTooLarge,
				errorType:  httperr.HttpPayloadTooLargeError,
				message:    "Request body exceeds maximum allowed size",
				details: map[string]interface{}{
					"max_size_mb": s.maxBodySizeBytes / (1024 * 1024),
				},
			}
		}

		slog.Error("Failed to read request body", "error", err)
		return nil, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}
	return body, nil
}

// parseLedger picks the parser by Content-Type. An absent Content-Type is read as CSV.
func (s *Service) parseLedger(c *gin.Context, body []byte) ([]v1.Record, *ingestionError) {
	switch c.ContentType() {
	case mimeCSV, mimeText, "":
		delimiter, err := delimiterParam(c.Query("delimiter"))
		if err != nil {
			return nil, err
		}
		records, parseErr := ledger.ParseCSV(bytes.NewReader(body), delimiter)
		if parseErr != nil {
			return nil, ledgerError(parseErr)
		}
		return records, nil

	case mimeXLSX:
		records, parseErr := ledger.ParseXLSX(bytes.NewReader(body), c.Query("sheet"))
		if parseErr != nil {
			return nil, ledgerError(parseErr)
		}
		return records, nil

	case mimeJSON:
		return decodeRecords(body)

	default:
		return nil, &ingestionError{
			statusCode: http.StatusUnsupportedMediaType,
			errorType:  httperr.HttpUnsupportedMediaError,
			message:    "Unsupported Content-Type",
			details: map[string]interface{}{
				"content_type": c.ContentType(),
				"accepted":     []string{mimeCSV, mimeText, mimeJSON, mimeXLSX},
			},
		}
	}
}

// decodeRecords reads a JSON array of records and validates each one.
func decodeRecords(body []byte) ([]v1.Record, *ingestionError) {
	var records []v1.Record
	if err := json.Unmarshal(body, &records); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(body))
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
			details:    err.Error(),
		}
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			slog.Warn("Record validation failed", "error", err, "index", i)
			return nil, &ingestionError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidRecordError,
				message:    err.Error(),
				details:    map[string]interface{}{"index": i},
			}
		}
	}
	return records, nil
}

func ledgerError(err error) *ingestionError {
	slog.Warn("Ledger parsing failed", "error", err)

	var details interface{}
	var pe *ledger.ParseError
	if errors.As(err, &pe) {
		details = map[string]interface{}{
			"line":   pe.Line,
			"column": pe.Column,
			"value":  pe.Value,
		}
	}
	return &ingestionError{
		statusCode: http.StatusBadRequest,
		errorType:  httperr.HttpInvalidLedgerError,
		message:    msgInvalidLedger + ": " + err.Error(),
		details:    details,
	}
}

func delimiterParam(raw string) (rune, *ingestionError) {
	if raw == "" {
		return ledger.DefaultDelimiter, nil
	}
	if raw == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(raw)
	if size != len(raw) || r == utf8.RuneError {
		return 0, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidLedgerError,
			message:    "delimiter must be a single character",
			details:    map[string]interface{}{"delimiter": raw},
		}
	}
	return r, nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	server.WriteError(c, err.statusCode, err.errorType, err.message, err.details)
}
