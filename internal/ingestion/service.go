package ingestion

import (
	"github.com/gin-gonic/gin"

	"github.com/aevon-lab/tally/internal/report"
)

// Service reports on ledgers posted in the request body.
type Service struct {
	reports          *report.Service
	maxBodySizeBytes int64
}

func NewService(reports *report.Service, maxBodySizeMB int) *Service {
	if reports == nil {
		panic("ingestion: report service must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		reports:          reports,
		maxBodySizeBytes: int64(maxBodySizeMB) * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/reports", s.ReportHandler)
}
