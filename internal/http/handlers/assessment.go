package handlers

import (
	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/batchflow-backend/internal/domain/aggregates"
	"github.com/yungbote/batchflow-backend/internal/domain/batches"
	"github.com/yungbote/batchflow-backend/internal/http/response"
)

type AssessmentHandler struct {
	assessments domainagg.AssessmentAggregate
}

func NewAssessmentHandler(assessments domainagg.AssessmentAggregate) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments}
}

// POST /assessments/:id/responses
// body: { "responses": [ { "group": 1, "item": "1a", "value": 3 } ] }
func (h *AssessmentHandler) RecordResponses(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Responses []domainagg.ResponseInput `json:"responses"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.assessments.RecordResponses(c.Request.Context(), domainagg.RecordResponsesInput{
		Actor:        actor,
		AssessmentID: id,
		Responses:    req.Responses,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"assessment":     res.Assessment,
		"answered":       res.Answered,
		"expected":       res.Expected,
		"auto_completed": res.AutoCompleted,
	})
}

// POST /assessments/:id/transition
// body: { "to": "completed" | "inactivated", "reason": "..." }
func (h *AssessmentHandler) Transition(c *gin.Context) {
	actor, ok := requestActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		To     batches.AssessmentStatus `json:"to"`
		Reason string                   `json:"reason"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.assessments.TransitionAssessment(c.Request.Context(), domainagg.TransitionAssessmentInput{
		Actor:        actor,
		AssessmentID: id,
		To:           req.To,
		Reason:       req.Reason,
	})
	if err != nil {
		response.RespondAggregateError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"assessment":       res.Assessment,
		"snapshot_updated": res.SnapshotUpdated,
		"batch":            res.Batch,
	})
}
