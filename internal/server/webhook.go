package server

import (
	"io"
	"net/http"

	"github.com/flowpulse/flowpulse/internal/orgcontext"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderKapsoSignature = "X-Kapso-Signature"
	maxWebhookBodyBytes  = 1 << 20
)

// HandleKapsoWebhook acknowledges every verified callback with 200 so the
// vendor stops redelivering; the outcome tells what happened to it.
func (s *Server) HandleKapsoWebhook(c *gin.Context) {
	if s.webhookSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	orgID, err := orgcontext.ParseOrgID(c.Param("org_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.webhookSvc.Verify(body, c.GetHeader(HeaderKapsoSignature)); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("org_id", orgID.String()))
		AbortWithError(c, err)
		return
	}

	ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
	outcome, err := s.webhookSvc.Handle(ctx, orgID, body)
	if outcome.EventType != "" {
		c.Set("event_type", outcome.EventType)
	}
	if outcome.Status != "" {
		c.Set("webhook_outcome", outcome.Status)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": outcome})
}

