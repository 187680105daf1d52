package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finwatch/internal/services"
)

// BudgetHandler serves budget progress and alert previews.
type BudgetHandler struct {
	budgetService services.BudgetServicer
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

// BudgetAlertsResponse lists budgets currently at an alert tier.
type BudgetAlertsResponse struct {
	Alerts []services.BudgetAlert `json:"alerts"`
}

// GetBudgetAlerts evaluates the user's budgets without storing notifications.
// @Summary     Preview budget alerts
// @Description Budgets whose spend currently meets an alert tier
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} BudgetAlertsResponse
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /budgets/alerts [get]
func (h *BudgetHandler) GetBudgetAlerts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	alerts, err := h.budgetService.GetBudgetAlerts(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, BudgetAlertsResponse{Alerts: alerts})
}

// GetBudgetProgress returns spend vs budget for one budget.
// @Summary     Get budget progress
// @Tags        budgets
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Budget ID"
// @Success     200 {object} services.BudgetProgress
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     404 {object} ErrorResponse "Budget not found"
// @Router      /budgets/{id}/progress [get]
func (h *BudgetHandler) GetBudgetProgress(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	budgetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	progress, err := h.budgetService.GetBudgetProgress(c.Request.Context(), userID, budgetID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}
