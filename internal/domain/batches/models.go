package batches

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Batch is one assessment campaign ("lot") owned by a clinic+company pair or
// by an entity. Status is driven by recomputation until it is concluded and by
// the emission coordinator afterwards.
type Batch struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code  string    `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Title string    `gorm:"column:title;not null" json:"title"`

	ClinicID  *uuid.UUID `gorm:"type:uuid;column:clinic_id;index" json:"clinic_id,omitempty"`
	CompanyID *uuid.UUID `gorm:"type:uuid;column:company_id;index" json:"company_id,omitempty"`
	EntityID  *uuid.UUID `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`

	Status BatchStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`

	TotalAssessments       int `gorm:"column:total_assessments;not null;default:0" json:"total_assessments"`
	CompletedAssessments   int `gorm:"column:completed_assessments;not null;default:0" json:"completed_assessments"`
	InactivatedAssessments int `gorm:"column:inactivated_assessments;not null;default:0" json:"inactivated_assessments"`

	EmergencyOverride   bool       `gorm:"column:emergency_override;not null;default:false" json:"emergency_override"`
	EmergencyReason     *string    `gorm:"column:emergency_reason" json:"emergency_reason,omitempty"`
	EmergencyOverrideAt *time.Time `gorm:"column:emergency_override_at" json:"emergency_override_at,omitempty"`
	EmergencyOverrideBy *uuid.UUID `gorm:"type:uuid;column:emergency_override_by" json:"emergency_override_by,omitempty"`

	ConcludedAt         *time.Time `gorm:"column:concluded_at" json:"concluded_at,omitempty"`
	CancelledAt         *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	EmissionRequestedAt *time.Time `gorm:"column:emission_requested_at" json:"emission_requested_at,omitempty"`
	IssuedAt            *time.Time `gorm:"column:issued_at" json:"issued_at,omitempty"`
	SentAt              *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`

	CreatedBy uuid.UUID `gorm:"type:uuid;column:created_by;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Batch) TableName() string { return "batches" }

func (b *Batch) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b Batch) Owner() (Owner, error) {
	return OwnerFromColumns(b.ClinicID, b.CompanyID, b.EntityID)
}

func (b *Batch) SetOwner(o Owner) {
	b.ClinicID, b.CompanyID, b.EntityID = o.columns()
}

func (b Batch) Counts() AssessmentCounts {
	return AssessmentCounts{
		Total:       b.TotalAssessments,
		Completed:   b.CompletedAssessments,
		Inactivated: b.InactivatedAssessments,
	}
}

// NewBatch builds a batch in its only legal initial state.
func NewBatch(owner Owner, code, title string, createdBy uuid.UUID) (*Batch, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	b := &Batch{
		ID:        uuid.New(),
		Code:      code,
		Title:     title,
		Status:    BatchActive,
		CreatedBy: createdBy,
	}
	b.SetOwner(owner)
	return b, nil
}

// Employee carries the denormalized latest-assessment snapshot.
type Employee struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null" json:"name"`
	Tier Tier      `gorm:"column:tier;type:varchar(32);not null" json:"tier"`

	ClinicID  *uuid.UUID `gorm:"type:uuid;column:clinic_id;index" json:"clinic_id,omitempty"`
	CompanyID *uuid.UUID `gorm:"type:uuid;column:company_id;index" json:"company_id,omitempty"`
	EntityID  *uuid.UUID `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`

	LatestAssessmentID     *uuid.UUID       `gorm:"type:uuid;column:latest_assessment_id" json:"latest_assessment_id,omitempty"`
	LatestAssessmentStatus AssessmentStatus `gorm:"column:latest_assessment_status;type:varchar(32)" json:"latest_assessment_status"`
	LatestConcludedAt      *time.Time       `gorm:"column:latest_concluded_at" json:"latest_concluded_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Employee) TableName() string { return "employees" }

func (e *Employee) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e Employee) Snapshot() Snapshot {
	return Snapshot{
		AssessmentID: e.LatestAssessmentID,
		Status:       e.LatestAssessmentStatus,
		ConcludedAt:  e.LatestConcludedAt,
	}
}

// SnapshotColumns lists exactly the columns the sync writes.
func SnapshotColumns(c SnapshotCandidate) map[string]any {
	id := c.AssessmentID
	at := c.At.UTC()
	return map[string]any{
		"latest_assessment_id":     id,
		"latest_assessment_status": c.Status,
		"latest_concluded_at":      at,
	}
}

type Assessment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID    uuid.UUID `gorm:"type:uuid;not null;index:idx_assessment_batch_employee,unique,priority:1;index" json:"batch_id"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index:idx_assessment_batch_employee,unique,priority:2;index" json:"employee_id"`

	Status AssessmentStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`

	StartedAt          time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	InactivatedAt      *time.Time `gorm:"column:inactivated_at" json:"inactivated_at,omitempty"`
	InactivationReason *string    `gorm:"column:inactivation_reason" json:"inactivation_reason,omitempty"`
	InactivatedBy      *uuid.UUID `gorm:"type:uuid;column:inactivated_by" json:"inactivated_by,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Assessment) TableName() string { return "assessments" }

func (a *Assessment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status.IsZero() {
		a.Status = AssessmentStarted
	}
	return nil
}

// Response is one answer; the (assessment, group, item) triple is the key.
type Response struct {
	AssessmentID uuid.UUID `gorm:"type:uuid;primaryKey;column:assessment_id" json:"assessment_id"`
	Group        int       `gorm:"primaryKey;column:question_group;autoIncrement:false" json:"group"`
	Item         string    `gorm:"primaryKey;column:item;type:varchar(16)" json:"item"`
	Value        int       `gorm:"column:value;not null" json:"value"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Response) TableName() string { return "responses" }

func (r Response) Key() QuestionKey { return QuestionKey{Group: r.Group, Item: r.Item} }

type Report struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"batch_id"`

	Status      ReportStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	IssuedAt    *time.Time   `gorm:"column:issued_at" json:"issued_at,omitempty"`
	ContentHash *string      `gorm:"column:content_hash;type:varchar(64)" json:"content_hash,omitempty"`
	EmitterID   uuid.UUID    `gorm:"type:uuid;column:emitter_id;not null" json:"emitter_id"`
	EmitterRole string       `gorm:"column:emitter_role;not null" json:"emitter_role"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Report) TableName() string { return "reports" }

func (r *Report) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Finalized reports whether the content hash has been written.
func (r Report) Finalized() bool {
	return r.ContentHash != nil && *r.ContentHash != ""
}

// EmissionRequest is the per-batch mutex row. The primary key on batch_id is
// what makes the first committer win.
type EmissionRequest struct {
	BatchID       uuid.UUID `gorm:"type:uuid;primaryKey;column:batch_id" json:"batch_id"`
	RequestedBy   uuid.UUID `gorm:"type:uuid;column:requested_by;not null" json:"requested_by"`
	RequestedRole string    `gorm:"column:requested_role;not null" json:"requested_role"`
	Emergency     bool      `gorm:"column:emergency;not null;default:false" json:"emergency"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (EmissionRequest) TableName() string { return "emission_requests" }

// ReportArtifact records where the rendered report was stored.
type ReportArtifact struct {
	ReportID    uuid.UUID `gorm:"type:uuid;primaryKey;column:report_id" json:"report_id"`
	StorageRef  string    `gorm:"column:storage_ref;not null" json:"storage_ref"`
	SizeBytes   int64     `gorm:"column:size_bytes;not null" json:"size_bytes"`
	ContentType string    `gorm:"column:content_type;not null" json:"content_type"`
	StoredAt    time.Time `gorm:"column:stored_at;not null" json:"stored_at"`
}

func (ReportArtifact) TableName() string { return "report_artifacts" }

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&Batch{},
		&Employee{},
		&Assessment{},
		&Response{},
		&Report{},
		&EmissionRequest{},
		&ReportArtifact{},
	}
}
