package orgcontext

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/flowpulse/flowpulse/internal/observability/context"
)

var ErrInvalidOrgID = errors.New("invalid_org_id")

type orgContextKey struct{}

// WithOrgID stores the org ID in the context and tags logs with it.
func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	ctx = context.WithValue(ctx, orgContextKey{}, orgID)
	return obscontext.WithOrgID(ctx, orgID.String())
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	orgID, ok := ctx.Value(orgContextKey{}).(snowflake.ID)
	if !ok || orgID == 0 {
		return 0, false
	}
	return orgID, true
}

// ParseOrgID parses a decimal organization identifier from a header or path.
func ParseOrgID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidOrgID
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, ErrInvalidOrgID
	}
	return id, nil
}
