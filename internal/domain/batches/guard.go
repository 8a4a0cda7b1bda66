package batches

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportPatch lists the fields a caller wants to write. A non-nil field
// counts as an attempted change even when it equals the stored value.
type ReportPatch struct {
	Status      *ReportStatus
	IssuedAt    *time.Time
	ContentHash *string
	EmitterID   *uuid.UUID
	EmitterRole *string
}

func (p ReportPatch) Empty() bool {
	return p.Status == nil && p.IssuedAt == nil && p.ContentHash == nil && p.EmitterID == nil && p.EmitterRole == nil
}

func (p ReportPatch) touchesNonHash() bool {
	return p.Status != nil || p.IssuedAt != nil || p.EmitterID != nil || p.EmitterRole != nil
}

// Columns renders the patch as a column map for UpdateFields.
func (p ReportPatch) Columns() map[string]any {
	out := map[string]any{}
	if p.Status != nil {
		out["status"] = *p.Status
	}
	if p.IssuedAt != nil {
		out["issued_at"] = p.IssuedAt.UTC()
	}
	if p.ContentHash != nil {
		out["content_hash"] = NormalizeContentHash(*p.ContentHash)
	}
	if p.EmitterID != nil {
		out["emitter_id"] = *p.EmitterID
	}
	if p.EmitterRole != nil {
		out["emitter_role"] = strings.TrimSpace(*p.EmitterRole)
	}
	return out
}

// CheckReportMutation is the immutability guard every report write passes.
//
//	issued_at unset          -> anything goes
//	issued_at set, hash nil  -> hash alone, once
//	hash set                 -> nothing, not even the same hash
func CheckReportMutation(current Report, patch ReportPatch) error {
	if current.ContentHash != nil && strings.TrimSpace(*current.ContentHash) != "" {
		return ErrReportFinalized
	}
	if patch.Empty() {
		return ErrEmptyReportPatch
	}
	if patch.ContentHash != nil && !ValidContentHash(*patch.ContentHash) {
		return ErrInvalidContentHash
	}
	if current.IssuedAt == nil {
		return nil
	}
	if patch.ContentHash != nil && patch.touchesNonHash() {
		return ErrReportCombinedUpdate
	}
	if patch.ContentHash == nil {
		return ErrReportIssuedFrozen
	}
	return nil
}

// CheckReportCreate validates a brand new report row before insert.
func CheckReportCreate(r Report) error {
	if r.Status.IsZero() {
		return ErrUnsetStatus
	}
	if r.ContentHash != nil && !ValidContentHash(*r.ContentHash) {
		return ErrInvalidContentHash
	}
	return nil
}

func NormalizeContentHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func ValidContentHash(h string) bool {
	h = NormalizeContentHash(h)
	if len(h) != 64 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}
