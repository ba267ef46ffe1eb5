package server

import (
	"net/http"
	"strings"

	deliverydomain "github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func (s *Server) SendDelivery(c *gin.Context) {
	var req deliverydomain.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.SurveyID = strings.TrimSpace(req.SurveyID)

	resp, err := s.deliverySvc.Send(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListDeliveries(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status   string `form:"status"`
		SurveyID string `form:"survey_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.deliverySvc.List(c.Request.Context(), deliverydomain.ListRequest{
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
		Status:    strings.ToLower(strings.TrimSpace(query.Status)),
		SurveyID:  strings.TrimSpace(query.SurveyID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDeliveryByID(c *gin.Context) {
	resp, err := s.deliverySvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkDeliverySent(c *gin.Context) {
	resp, err := s.deliverySvc.MarkSent(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
