package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/http/response"
)

type ReportHandler struct {
	reports domainagg.ReportAggregate
}

func NewReportHandler(reports domainagg.ReportAggregate) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// PATCH /reports/:id
// Only fields present in the body are applied.
func (h *ReportHandler) Update(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status      *batches.ReportStatus `json:"status"`
		IssuedAt    *time.Time            `json:"issued_at"`
		ContentHash *string               `json:"content_hash"`
		EmitterID   *uuid.UUID            `json:"emitter_id"`
		EmitterRole *string               `json:"emitter_role"`
	}
	if !bindJSON(c, &req) {
		return
	}
	patch := batches.ReportPatch{
		Status:      req.Status,
		IssuedAt:    req.IssuedAt,
		ContentHash: req.ContentHash,
		EmitterID:   req.EmitterID,
		EmitterRole: req.EmitterRole,
	}
	if patch.Empty() {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errEmptyPatch)
		return
	}
	res, err := h.reports.UpdateReport(c.Request.Context(), domainagg.UpdateReportInput{
		Actor:    actor,
		ReportID: id,
		Patch:    patch,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"report": res.Report})
}

// POST /reports/:id/hash
// body: { "content_hash": "<64 hex>" }
func (h *ReportHandler) BackfillHash(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		ContentHash string `json:"content_hash"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.reports.BackfillReportHash(c.Request.Context(), domainagg.BackfillReportHashInput{
		Actor:       actor,
		ReportID:    id,
		ContentHash: req.ContentHash,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"report": res.Report})
}
