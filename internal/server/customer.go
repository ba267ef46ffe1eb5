package server

import (
	"net/http"
	"strings"

	customerdomain "github.com/flowpulse/flowpulse/internal/customer/domain"
	"github.com/flowpulse/flowpulse/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		PhoneNumber string `form:"phone_number"`
		SeenFrom    string `form:"seen_from"`
		SeenTo      string `form:"seen_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	seenFrom, err := parseOptionalTime(query.SeenFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("seen_from", "invalid_seen_from", "invalid seen_from"))
		return
	}

	seenTo, err := parseOptionalTime(query.SeenTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("seen_to", "invalid_seen_to", "invalid seen_to"))
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken:   query.PageToken,
		PageSize:    query.PageSize,
		SeenFrom:    seenFrom,
		SeenTo:      seenTo,
		PhoneNumber: strings.TrimSpace(query.PhoneNumber),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	resp, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
