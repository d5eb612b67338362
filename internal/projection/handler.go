package projection

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aevon-lab/tally/internal/core/aggregation"
	httperr "github.com/aevon-lab/tally/internal/core/errors"
	"github.com/aevon-lab/tally/internal/server"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/reports", s.HandleReports)
	r.GET("/v1/reports/:name", s.HandleReport)
	r.GET("/v1/snapshot", s.HandleSnapshot)
}

// HandleReports handles GET /v1/reports
// Query parameters: report (repeatable), format
func (s *Service) HandleReports(c *gin.Context) {
	res, err := s.Generate(c.Request.Context(), c.QueryArray("report"))
	if err != nil {
		server.WriteRunError(c, err)
		return
	}
	server.WriteResult(c, res)
}

// HandleReport handles GET /v1/reports/:name
func (s *Service) HandleReport(c *gin.Context) {
	var uri struct {
		Name string `uri:"name" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		server.WriteError(c, http.StatusBadRequest, httperr.HttpInvalidJsonError, "Invalid path parameters", err.Error())
		return
	}

	if !aggregation.ValidReport(uri.Name) {
		server.WriteError(c, http.StatusNotFound, httperr.HttpUnknownReportError, "Unknown report", map[string]interface{}{
			"report":    uri.Name,
			"available": aggregation.ReportOrder,
		})
		return
	}

	res, err := s.Generate(c.Request.Context(), []string{uri.Name})
	if err != nil {
		server.WriteRunError(c, err)
		return
	}
	server.WriteResult(c, res)
}

// HandleSnapshot handles GET /v1/snapshot: the last result of the scheduled run.
func (s *Service) HandleSnapshot(c *gin.Context) {
	res, age, ok := s.Latest()
	if !ok {
		server.WriteError(c, http.StatusNotFound, httperr.HttpSourceUnavailableError, "No report has been generated yet", nil)
		return
	}

	c.Header("X-Staleness-Seconds", strconv.Itoa(int(age.Seconds())))
	server.WriteResult(c, res)
}
