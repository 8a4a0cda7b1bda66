package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/http/response"
	"github.com/yungbote/batchflow-backend/internal/platform/dbctx"
)

// BatchReader is the read side used by GET /batches/:id.
type BatchReader interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*batches.Batch, error)
}

type BatchHandler struct {
	batches    BatchReader
	authorizer domainagg.Authorizer
	lifecycle  domainagg.BatchLifecycleAggregate
	emission   domainagg.EmissionAggregate
}

func NewBatchHandler(
	reader BatchReader,
	authorizer domainagg.Authorizer,
	lifecycle domainagg.BatchLifecycleAggregate,
	emission domainagg.EmissionAggregate,
) *BatchHandler {
	return &BatchHandler{
		batches:    reader,
		authorizer: authorizer,
		lifecycle:  lifecycle,
		emission:   emission,
	}
}

// POST /batches
// body: { "code": "...", "title": "...", "owner": { "kind": "clinic", "clinic_id": "...", "company_id": "..." } }
func (h *BatchHandler) Create(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	var req struct {
		Code  string        `json:"code"`
		Title string        `json:"title"`
		Owner batches.Owner `json:"owner"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.lifecycle.CreateBatch(c.Request.Context(), domainagg.CreateBatchInput{
		Actor: actor,
		Owner: req.Owner,
		Code:  req.Code,
		Title: req.Title,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"batch": res.Batch})
}

// GET /batches/:id
func (h *BatchHandler) Get(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	row, err := h.batches.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondAggregateError(c, domainagg.Wrap(domainagg.CodeInternal, "batch.get", err))
		return
	}
	if row == nil {
		response.RespondAggregateError(c, domainagg.NewError(domainagg.CodeNotFound, "batch.get", "batch not found", nil))
		return
	}
	owner, err := row.Owner()
	if err != nil || h.authorizer == nil || !h.authorizer.Authorize(actor, owner) {
		// Out-of-scope batches look missing.
		response.RespondAggregateError(c, domainagg.NewError(domainagg.CodeNotFound, "batch.get", "batch not found", nil))
		return
	}
	response.RespondOK(c, gin.H{"batch": row})
}

// POST /batches/:id/assessments
// body: { "employee_id": "..." }
func (h *BatchHandler) ReleaseAssessment(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		EmployeeID uuid.UUID `json:"employee_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.lifecycle.ReleaseAssessment(c.Request.Context(), domainagg.ReleaseAssessmentInput{
		Actor:      actor,
		BatchID:    id,
		EmployeeID: req.EmployeeID,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"assessment": res.Assessment, "batch": res.Batch})
}

// POST /batches/:id/recompute
func (h *BatchHandler) Recompute(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.lifecycle.RecomputeBatchStatus(c.Request.Context(), domainagg.RecomputeBatchInput{
		Actor:   actor,
		BatchID: id,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /batches/:id/emission
func (h *BatchHandler) RequestEmission(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.emission.RequestEmission(c.Request.Context(), domainagg.RequestEmissionInput{
		Actor:   actor,
		BatchID: id,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"batch":     res.Batch,
		"report":    res.Report,
		"emergency": res.Emergency,
	})
}

// POST /batches/:id/emergency
// body: { "reason": "..." }
func (h *BatchHandler) SetEmergencyOverride(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.lifecycle.SetEmergencyOverride(c.Request.Context(), domainagg.EmergencyOverrideInput{
		Actor:   actor,
		BatchID: id,
		Reason:  req.Reason,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, res)
}
