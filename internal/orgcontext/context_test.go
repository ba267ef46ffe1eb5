package orgcontext

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/flowpulse/flowpulse/internal/observability/context"
)

func TestWithOrgIDRoundTrip(t *testing.T) {
	ctx := WithOrgID(context.Background(), snowflake.ID(42))

	orgID, ok := OrgIDFromContext(ctx)
	if !ok || orgID != 42 {
		t.Fatalf("expected org 42, got %v (ok=%v)", orgID, ok)
	}
	if got := obscontext.OrgIDFromContext(ctx); got != "42" {
		t.Fatalf("expected log org id 42, got %q", got)
	}
	if _, ok := OrgIDFromContext(context.Background()); ok {
		t.Fatal("expected missing org id")
	}
}

func TestParseOrgID(t *testing.T) {
	if id, err := ParseOrgID(" 1001 "); err != nil || id != 1001 {
		t.Fatalf("expected 1001, got %v, %v", id, err)
	}
	for _, raw := range []string{"", "abc", "-5", "0"} {
		if _, err := ParseOrgID(raw); !errors.Is(err, ErrInvalidOrgID) {
			t.Fatalf("expected invalid org id for %q, got %v", raw, err)
		}
	}
}
