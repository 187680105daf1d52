package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/services"
)

// SweepRunner runs one sweep synchronously.
type SweepRunner interface {
	RunNow(ctx context.Context, kind services.SweepKind) (*services.SweepResult, error)
}

// PipelineHandler serves operator endpoints guarded by the pipeline API key.
type PipelineHandler struct {
	recurringService services.RecurringExpenseServicer
	sweeps           SweepRunner
	auditService     services.AuditServicer
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(recurringService services.RecurringExpenseServicer, sweeps SweepRunner, auditService services.AuditServicer) *PipelineHandler {
	return &PipelineHandler{recurringService: recurringService, sweeps: sweeps, auditService: auditService}
}

// SweepURI binds the sweep kind path parameter.
type SweepURI struct {
	Kind string `uri:"kind" binding:"required,sweep_kind"`
}

// ProcessAllDue materializes due recurring expenses for every user.
// @Summary     Process due recurring expenses for all users
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} ProcessDueResponse
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /pipeline/recurring-expenses/process-due [post]
func (h *PipelineHandler) ProcessAllDue(c *gin.Context) {
	result, err := h.recurringService.ProcessAllDue(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "PROCESS_ALL_DUE_RECURRING", "recurring_expense", "", c.ClientIP(),
		map[string]interface{}{"processed": result.Processed, "failures": result.Failures})
	c.JSON(http.StatusOK, ProcessDueResponse{
		Message:          fmt.Sprintf("Processed %d recurring expenses", result.Processed),
		ProcessDueResult: result,
	})
}

// RunSweep runs one monitoring sweep and returns its summary.
// @Summary     Run a monitoring sweep now
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Param       kind path string true "Sweep kind" Enums(budget, goal, recurring)
// @Success     200 {object} services.SweepResult
// @Failure     400 {object} ErrorResponse "Unknown sweep"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /pipeline/sweeps/{kind} [post]
func (h *PipelineHandler) RunSweep(c *gin.Context) {
	var uri SweepURI
	if err := c.ShouldBindUri(&uri); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrUnknownSweep, err.Error()))
		return
	}

	result, err := h.sweeps.RunNow(c.Request.Context(), services.SweepKind(uri.Kind))
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "RUN_SWEEP", "sweep", uri.Kind, c.ClientIP(),
		map[string]interface{}{"notified": result.Notified, "failures": result.Failures})
	c.JSON(http.StatusOK, result)
}
