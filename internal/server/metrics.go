package server

import (
	"io"
	"net/http"

	dailymetricsdomain "github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetDailyMetrics(c *gin.Context) {
	var req dailymetricsdomain.RangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.metricsSvc.Daily(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMetricsSummary(c *gin.Context) {
	var req dailymetricsdomain.RangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.metricsSvc.Summary(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DownloadMetricsReport(c *gin.Context) {
	var req dailymetricsdomain.RangeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.metricsSvc.Report(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := io.ReadAll(report)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="nps-report.pdf"`)
	c.Data(http.StatusOK, "application/pdf", body)
}

func (s *Server) RebuildMetrics(c *gin.Context) {
	var req dailymetricsdomain.RebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.metricsSvc.Rebuild(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
