package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/platform/ctxutil"
)

func newTestAuth(now time.Time) *authService {
	as := NewAuthService(nil, "secret", "batchflow", 10*time.Minute).(*authService)
	as.now = func() time.Time { return now }
	return as
}

func TestIssueAndParseRoundTripsScope(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	as := newTestAuth(now)
	actor := audit.ActorContext{
		ID:         uuid.New(),
		Role:       audit.RoleClinicManager,
		ClinicID:   uuid.New(),
		CompanyIDs: []uuid.UUID{uuid.New(), uuid.New()},
	}
	token, err := as.IssueToken(actor)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	got, err := as.ActorFromToken(token)
	if err != nil {
		t.Fatalf("ActorFromToken: %v", err)
	}
	if got.ID != actor.ID || got.Role != actor.Role || got.ClinicID != actor.ClinicID || got.EntityID != uuid.Nil {
		t.Fatalf("actor: want=%+v got=%+v", actor, got)
	}
	if len(got.CompanyIDs) != 2 || got.CompanyIDs[1] != actor.CompanyIDs[1] {
		t.Fatalf("company ids: want=%v got=%v", actor.CompanyIDs, got.CompanyIDs)
	}
}

func TestActorFromTokenRejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	as := newTestAuth(now)
	actor := audit.ActorContext{ID: uuid.New(), Role: audit.RoleEmitter}
	token, err := as.IssueToken(actor)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	expired := newTestAuth(now.Add(time.Hour))
	if _, err := expired.ActorFromToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: want ErrInvalidToken got=%v", err)
	}

	other := NewAuthService(nil, "secret", "someone-else", time.Minute).(*authService)
	other.now = as.now
	if _, err := other.ActorFromToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("issuer mismatch: want ErrInvalidToken got=%v", err)
	}

	wrongKey := NewAuthService(nil, "other-secret", "batchflow", time.Minute).(*authService)
	wrongKey.now = as.now
	if _, err := wrongKey.ActorFromToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong key: want ErrInvalidToken got=%v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: actor.ID.String(), Issuer: "batchflow"},
		Role:             "admin",
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := as.ActorFromToken(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none: want ErrInvalidToken got=%v", err)
	}

	if _, err := as.ActorFromToken("  "); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("blank: want ErrInvalidToken got=%v", err)
	}
}

func TestUnknownRoleClaimIsRejected(t *testing.T) {
	as := newTestAuth(time.Now())
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), Issuer: "batchflow"},
		Role:             "superuser",
	})
	signed, err := tok.SignedString(as.jwtSecretKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := as.ActorFromToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken got=%v", err)
	}
}

func TestIssueTokenRequiresValidActor(t *testing.T) {
	as := newTestAuth(time.Now())
	if _, err := as.IssueToken(audit.ActorContext{Role: audit.RoleAdmin}); err == nil {
		t.Fatalf("expected error for nil actor id")
	}
}

func TestSetContextFromTokenKeepsRequestMeta(t *testing.T) {
	as := newTestAuth(time.Now())
	actor := audit.ActorContext{ID: uuid.New(), Role: audit.RoleAdmin}
	token, err := as.IssueToken(actor)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	meta := audit.RequestMeta{ClientIP: "10.1.2.3", UserAgent: "ua", RequestID: "r1"}
	ctx := ctxutil.WithRequestMeta(context.Background(), meta)

	ctx, err = as.SetContextFromToken(ctx, token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	got, ok := ctxutil.GetActor(ctx)
	if !ok {
		t.Fatalf("expected actor on context")
	}
	if got.ID != actor.ID || got.Meta != meta {
		t.Fatalf("actor: got=%+v", got)
	}
}
