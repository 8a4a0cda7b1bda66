package aggregates

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/audit"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/resilience"
)

func TestMapError_Validation(t *testing.T) {
	err := MapError("op", ValidationError("bad input"))
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_Conflict(t *testing.T) {
	err := MapError("op", ConflictError("stale"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	out := MapError("other", in)
	if out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}

func TestMapError_DomainSentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domainagg.ErrorCode
	}{
		{"missing actor", audit.ErrMissingActor, domainagg.CodeUnauthorized},
		{"legacy status", fmt.Errorf("scan: %w", batches.ErrLegacyStatus), domainagg.CodeInvalidTransition},
		{"incomplete", batches.ErrIncompleteResponses, domainagg.CodeInvalidTransition},
		{"finalized", batches.ErrReportFinalized, domainagg.CodeImmutableViolation},
		{"combined", batches.ErrReportCombinedUpdate, domainagg.CodeImmutableViolation},
		{"frozen", batches.ErrReportIssuedFrozen, domainagg.CodeImmutableViolation},
		{"bad answer", batches.ErrInvalidAnswer, domainagg.CodeValidation},
		{"circuit open", resilience.ErrCircuitOpen, domainagg.CodeCircuitOpen},
		{"timeout", &resilience.TimeoutError{Op: "render", Attempts: 2}, domainagg.CodeTimeout},
		{"exhausted", &resilience.ExhaustedError{Op: "render", Attempts: 3, Last: errors.New("503")}, domainagg.CodeTransient},
		{"sqlite unique", errors.New("UNIQUE constraint failed: emission_requests.batch_id"), domainagg.CodeConflict},
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"pg check", &pgconn.PgError{Code: "23514"}, domainagg.CodeValidation},
		{"sqlite busy", errors.New("database is locked"), domainagg.CodeRetryable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := domainagg.CodeOf(MapError("op", tc.err)); got != tc.want {
				t.Fatalf("code: want=%s got=%s", tc.want, got)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	for _, err := range []error{
		gorm.ErrDuplicatedKey,
		&pgconn.PgError{Code: "23505"},
		fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}),
		errors.New("UNIQUE constraint failed: reports.batch_id"),
		errors.New(`duplicate key value violates unique constraint "emission_requests_pkey"`),
	} {
		if !IsUniqueViolation(err) {
			t.Fatalf("IsUniqueViolation(%v): want=true", err)
		}
	}
	for _, err := range []error{nil, errors.New("connection reset"), &pgconn.PgError{Code: "23503"}} {
		if IsUniqueViolation(err) {
			t.Fatalf("IsUniqueViolation(%v): want=false", err)
		}
	}
}
