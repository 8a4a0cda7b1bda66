package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Action string

const (
	ActionBatchCreated          Action = "batch.created"
	ActionBatchRecomputed       Action = "batch.recomputed"
	ActionEmergencyOverride     Action = "batch.emergency_override"
	ActionBatchSent             Action = "batch.sent"
	ActionAssessmentReleased    Action = "assessment.released"
	ActionAssessmentTransition  Action = "assessment.transition"
	ActionResponsesRecorded     Action = "assessment.responses_recorded"
	ActionSnapshotSynced        Action = "employee.snapshot_synced"
	ActionEmissionRequested     Action = "report.emission_requested"
	ActionEmissionRejected      Action = "report.emission_rejected"
	ActionReportUpdated         Action = "report.updated"
	ActionReportHashBackfilled  Action = "report.hash_backfilled"
	ActionReportArtifactStored  Action = "report.artifact_stored"
	ActionReportMutationBlocked Action = "report.mutation_blocked"
)

var knownActions = map[Action]bool{
	ActionBatchCreated: true, ActionBatchRecomputed: true, ActionEmergencyOverride: true, ActionBatchSent: true,
	ActionAssessmentReleased: true, ActionAssessmentTransition: true, ActionResponsesRecorded: true,
	ActionSnapshotSynced: true, ActionEmissionRequested: true, ActionEmissionRejected: true,
	ActionReportUpdated: true, ActionReportHashBackfilled: true, ActionReportArtifactStored: true,
	ActionReportMutationBlocked: true,
}

func (a Action) Known() bool { return knownActions[a] }

// Actions lists every action the trail accepts.
func Actions() []Action {
	out := make([]Action, 0, len(knownActions))
	for a := range knownActions {
		out = append(out, a)
	}
	return out
}

const (
	ResourceBatch      = "batch"
	ResourceAssessment = "assessment"
	ResourceEmployee   = "employee"
	ResourceReport     = "report"
)

// Entry is append-only. Nothing updates or deletes rows in audit_entries.
type Entry struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ActorID   uuid.UUID `gorm:"type:uuid;column:actor_id;not null;index" json:"actor_id"`
	ActorRole Role      `gorm:"column:actor_role;type:varchar(32);not null" json:"actor_role"`

	Action       Action    `gorm:"column:action;type:varchar(64);not null;index" json:"action"`
	ResourceType string    `gorm:"column:resource_type;type:varchar(32);not null;index:idx_audit_resource,priority:1" json:"resource_type"`
	ResourceID   uuid.UUID `gorm:"type:uuid;column:resource_id;not null;index:idx_audit_resource,priority:2" json:"resource_id"`

	Before   datatypes.JSON `gorm:"column:before_image" json:"before,omitempty"`
	After    datatypes.JSON `gorm:"column:after_image" json:"after,omitempty"`
	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	ClientIP  string `gorm:"column:client_ip" json:"client_ip,omitempty"`
	UserAgent string `gorm:"column:user_agent" json:"user_agent,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (Entry) TableName() string { return "audit_entries" }

func (e *Entry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Record is what callers hand to the audit trail; actor fields are filled in
// from the unit of work.
type Record struct {
	Action       Action
	ResourceType string
	ResourceID   uuid.UUID
	Before       any
	After        any
	Metadata     map[string]any
}

// NewEntry stamps a record with its actor.
func NewEntry(actor ActorContext, r Record, at time.Time) (Entry, error) {
	if err := actor.Validate(); err != nil {
		return Entry{}, err
	}
	if !r.Action.Known() {
		return Entry{}, fmt.Errorf("unknown audit action %q", r.Action)
	}
	before, err := image(r.Before)
	if err != nil {
		return Entry{}, err
	}
	after, err := image(r.After)
	if err != nil {
		return Entry{}, err
	}
	meta := map[string]any{}
	for k, v := range r.Metadata {
		meta[k] = v
	}
	if actor.Meta.RequestID != "" {
		meta["request_id"] = actor.Meta.RequestID
	}
	metaJSON, err := image(meta)
	if err != nil {
		return Entry{}, err
	}
	if len(meta) == 0 {
		metaJSON = nil
	}
	return Entry{
		ID:           uuid.New(),
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Action:       r.Action,
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		Before:       before,
		After:        after,
		Metadata:     metaJSON,
		ClientIP:     actor.Meta.ClientIP,
		UserAgent:    actor.Meta.UserAgent,
		CreatedAt:    at.UTC(),
	}, nil
}

func image(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
