package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/andresuchdata/freshrisk/internal/domain"
	"github.com/andresuchdata/freshrisk/internal/pipeline/actions"
	"github.com/gin-gonic/gin"
)

type ActionHandler struct {
	engine *actions.Engine
}

func NewActionHandler(engine *actions.Engine) *ActionHandler {
	return &ActionHandler{engine: engine}
}

func (h *ActionHandler) Approve(c *gin.Context) {
	h.transition(c, h.engine.ApproveAction, string(domain.ActionApproved))
}

func (h *ActionHandler) Reject(c *gin.Context) {
	h.transition(c, h.engine.RejectAction, string(domain.ActionRejected))
}

func (h *ActionHandler) MarkDone(c *gin.Context) {
	h.transition(c, h.engine.MarkActionDone, string(domain.ActionDone))
}

func (h *ActionHandler) transition(c *gin.Context, fn func(ctx context.Context, id int64) error, status string) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action id"})
		return
	}

	if err := fn(c.Request.Context(), id); err != nil {
		c.JSON(actionErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"action_id": id, "status": status})
}

type recordOutcomeRequest struct {
	RecoveredValue float64 `json:"recovered_value"`
	ClearedUnits   float64 `json:"cleared_units"`
	Notes          string  `json:"notes"`
}

func (h *ActionHandler) RecordOutcome(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action id"})
		return
	}

	var req recordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	outcome := &domain.ActionOutcome{
		ActionID:       id,
		RecoveredValue: req.RecoveredValue,
		ClearedUnits:   req.ClearedUnits,
		Notes:          req.Notes,
	}
	if err := h.engine.RecordOutcome(c.Request.Context(), outcome); err != nil {
		c.JSON(actionErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func actionErrorStatus(err error) int {
	switch {
	case errors.Is(err, actions.ErrActionNotFound):
		return http.StatusNotFound
	case errors.Is(err, actions.ErrInvalidTransition), errors.Is(err, actions.ErrActionNotApproved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
