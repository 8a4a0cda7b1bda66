package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/batchflow-backend/internal/data/repos/audit"
	"github.com/yungbote/batchflow-backend/internal/data/repos/batches"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

type BatchRepo = batches.BatchRepo
type EmployeeRepo = batches.EmployeeRepo
type AssessmentRepo = batches.AssessmentRepo
type ResponseRepo = batches.ResponseRepo
type ReportRepo = batches.ReportRepo
type EmissionRequestRepo = batches.EmissionRequestRepo
type ReportArtifactRepo = batches.ReportArtifactRepo

type AuditEntryRepo = audit.EntryRepo

var NewBatchRepo = batches.NewBatchRepo
var NewEmployeeRepo = batches.NewEmployeeRepo
var NewAssessmentRepo = batches.NewAssessmentRepo
var NewResponseRepo = batches.NewResponseRepo
var NewReportRepo = batches.NewReportRepo
var NewEmissionRequestRepo = batches.NewEmissionRequestRepo
var NewReportArtifactRepo = batches.NewReportArtifactRepo

var NewAuditEntryRepo = audit.NewEntryRepo

// Set bundles every repo the aggregates and handlers need.
type Set struct {
	Batches          BatchRepo
	Employees        EmployeeRepo
	Assessments      AssessmentRepo
	Responses        ResponseRepo
	Reports          ReportRepo
	EmissionRequests EmissionRequestRepo
	ReportArtifacts  ReportArtifactRepo
	Audit            AuditEntryRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Batches:          NewBatchRepo(db, baseLog),
		Employees:        NewEmployeeRepo(db, baseLog),
		Assessments:      NewAssessmentRepo(db, baseLog),
		Responses:        NewResponseRepo(db, baseLog),
		Reports:          NewReportRepo(db, baseLog),
		EmissionRequests: NewEmissionRequestRepo(db, baseLog),
		ReportArtifacts:  NewReportArtifactRepo(db, baseLog),
		Audit:            NewAuditEntryRepo(db, baseLog),
	}
}
