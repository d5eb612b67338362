package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aevon-lab/tally/internal/core/aggregation"
	httperr "github.com/aevon-lab/tally/internal/core/errors"
	"github.com/aevon-lab/tally/internal/core/storage"
	"github.com/aevon-lab/tally/internal/report"
)

// FormatParam selects the response encoding of a report: json (default), yaml, text or xlsx.
const FormatParam = "format"

// WriteResult renders res in the format requested by the query string.
func WriteResult(c *gin.Context, res *report.Result) {
	format := c.DefaultQuery(FormatParam, report.FormatJSON)
	w, err := report.NewWriter(format)
	if err != nil {
		WriteError(c, http.StatusBadRequest, httperr.HttpUnsupportedFormatError, "Unsupported report format", map[string]interface{}{
			"format": format,
		})
		return
	}

	var buf bytes.Buffer
	if err := w.Write(&buf, res); err != nil {
		slog.Error("Failed to render report", "run_id", res.RunID, "format", format, "error", err)
		WriteError(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to render report", nil)
		return
	}

	if format == report.FormatXLSX {
		c.Header("Content-Disposition", `attachment; filename="report-`+res.RunID+`.xlsx"`)
	}
	c.Data(http.StatusOK, w.ContentType(), buf.Bytes())
}

// WriteRunError maps an error from a report run to the HTTP error envelope.
func WriteRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, aggregation.ErrUnknownReport):
		WriteError(c, http.StatusBadRequest, httperr.HttpUnknownReportError, err.Error(), map[string]interface{}{
			"available": aggregation.ReportOrder,
		})
	case errors.Is(err, aggregation.ErrInvalidMonthCode):
		WriteError(c, http.StatusUnprocessableEntity, httperr.HttpInvalidMonthError, err.Error(), nil)
	case errors.Is(err, storage.ErrNoSource):
		WriteError(c, http.StatusServiceUnavailable, httperr.HttpSourceUnavailableError, "No record source configured", nil)
	case errors.Is(err, report.ErrLoadFailed):
		slog.Error("Failed to load ledger", "error", err)
		WriteError(c, http.StatusServiceUnavailable, httperr.HttpSourceUnavailableError, "Failed to load ledger", nil)
	default:
		slog.Error("Report run failed", "error", err)
		WriteError(c, http.StatusInternalServerError, httperr.HttpInternalError, "Failed to generate report", nil)
	}
}

// WriteError serializes the error envelope.
func WriteError(c *gin.Context, status int, errorType, message string, details interface{}) {
	c.AbortWithStatusJSON(status, httperr.ErrorResponse{
		ErrorType: errorType,
		Message:   message,
		Details:   details,
	})
}
