package server

import (
	"net/http"
	"strings"

	surveydomain "github.com/flowpulse/flowpulse/internal/survey/domain"
	"github.com/gin-gonic/gin"
)

type createSurveyRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Question string `json:"question"`
	IsActive *bool  `json:"is_active"`
}

type updateSurveyRequest struct {
	Name     *string `json:"name"`
	Question *string `json:"question"`
	IsActive *bool   `json:"is_active"`
}

func (s *Server) CreateSurvey(c *gin.Context) {
	var req createSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.surveySvc.Create(c.Request.Context(), surveydomain.CreateRequest{
		Name:     strings.TrimSpace(req.Name),
		Type:     surveydomain.SurveyType(strings.TrimSpace(req.Type)),
		Question: strings.TrimSpace(req.Question),
		IsActive: req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListSurveys(c *gin.Context) {
	var query struct {
		Active string `form:"active"`
		Type   string `form:"type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.surveySvc.List(c.Request.Context(), surveydomain.ListRequest{
		Active: active,
		Type:   surveydomain.SurveyType(strings.ToLower(strings.TrimSpace(query.Type))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetSurveyByID(c *gin.Context) {
	resp, err := s.surveySvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateSurvey(c *gin.Context) {
	var req updateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.surveySvc.Update(c.Request.Context(), surveydomain.UpdateRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		Name:     req.Name,
		Question: req.Question,
		IsActive: req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
