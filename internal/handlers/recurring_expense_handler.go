package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"finwatch/internal/services"
)

// RecurringExpenseHandler materializes due recurring expenses for a user.
type RecurringExpenseHandler struct {
	recurringService services.RecurringExpenseServicer
	auditService     services.AuditServicer
}

// NewRecurringExpenseHandler creates a new RecurringExpenseHandler.
func NewRecurringExpenseHandler(recurringService services.RecurringExpenseServicer, auditService services.AuditServicer) *RecurringExpenseHandler {
	return &RecurringExpenseHandler{recurringService: recurringService, auditService: auditService}
}

// ProcessDueResponse wraps a process-due result with a summary message.
type ProcessDueResponse struct {
	Message string `json:"message"`
	*services.ProcessDueResult
}

// ProcessDue creates transactions for the user's expenses due today or earlier.
// @Summary     Process due recurring expenses
// @Description Creates one transaction per due expense and rolls its due date forward
// @Tags        recurring-expenses
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} ProcessDueResponse
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /recurring-expenses/process-due [post]
func (h *RecurringExpenseHandler) ProcessDue(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.recurringService.ProcessDue(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if result.Processed > 0 {
		h.auditService.Log(userID, "PROCESS_DUE_RECURRING", "recurring_expense", "", c.ClientIP(),
			map[string]interface{}{"processed": result.Processed, "deactivated": result.Deactivated})
	}
	c.JSON(http.StatusOK, ProcessDueResponse{
		Message:          fmt.Sprintf("Processed %d recurring expenses", result.Processed),
		ProcessDueResult: result,
	})
}
