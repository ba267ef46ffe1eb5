package server

import (
	"net/http"
	"strings"

	responsedomain "github.com/flowpulse/flowpulse/internal/response/domain"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

// RecordResponse stores a reply captured outside the WhatsApp flow.
func (s *Server) RecordResponse(c *gin.Context) {
	var req responsedomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.responseSvc.Record(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListResponses(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Category string `form:"category"`
		SurveyID string `form:"survey_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.responseSvc.List(c.Request.Context(), responsedomain.ListRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Category:  strings.ToLower(strings.TrimSpace(query.Category)),
		SurveyID:  strings.TrimSpace(query.SurveyID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
