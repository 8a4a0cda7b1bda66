package batches

import "errors"

var (
	// ErrUnknownStatus is returned for any status spelling outside the closed set.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrLegacyStatus is returned for retired spellings that older rows may still carry.
	ErrLegacyStatus = errors.New("legacy status spelling is no longer accepted")
	// ErrUnsetStatus is returned when a zero status would be persisted.
	ErrUnsetStatus = errors.New("status is unset")

	ErrInvalidOwner = errors.New("batch owner must be exactly one of clinic+company or entity")

	ErrReportFinalized      = errors.New("immutable: report already finalized")
	ErrReportCombinedUpdate = errors.New("invalid combined update: content hash must be backfilled alone")
	ErrReportIssuedFrozen   = errors.New("cannot modify issued report: only the content hash may be backfilled")
	ErrEmptyReportPatch     = errors.New("report update has no fields")
	ErrInvalidContentHash   = errors.New("content hash must be a hex-encoded sha256 digest")

	ErrIncompleteResponses = errors.New("assessment does not have the full expected response set")
	ErrUnknownQuestion     = errors.New("question is not part of the tier questionnaire")
	ErrInvalidAnswer       = errors.New("answer value is outside the response scale")
)
