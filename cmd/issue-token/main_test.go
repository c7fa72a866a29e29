package main

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dispatchly/dispatch-api/internal/pkg/jwt"
)

func TestIssueTokenRoundTrips(t *testing.T) {
	svc := jwt.NewService("issue-token-secret", time.Hour)
	operatorID := uuid.New()

	token, got, err := issue(svc, operatorID.String(), "dispatcher", "depot-7")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if got != operatorID {
		t.Fatalf("expected operator %s, got %s", operatorID, got)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("token did not validate: %v", err)
	}
	if claims.Role != "dispatcher" || claims.DepotID != "depot-7" || claims.OperatorID != operatorID {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestIssueTokenRejectsBadInput(t *testing.T) {
	svc := jwt.NewService("issue-token-secret", time.Hour)

	if _, _, err := issue(svc, "", "viewer", ""); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, _, err := issue(svc, "not-a-uuid", "driver", ""); err == nil {
		t.Fatal("expected error for malformed operator id")
	}
	if _, id, err := issue(svc, "", "driver", ""); err != nil || id == uuid.Nil {
		t.Fatalf("expected random operator id, got %s (%v)", id, err)
	}
}
