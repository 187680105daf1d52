package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/services"
)

// GoalHandler handles goal contributions.
type GoalHandler struct {
	goalService  services.GoalServicer
	auditService services.AuditServicer
}

// NewGoalHandler creates a new GoalHandler.
func NewGoalHandler(goalService services.GoalServicer, auditService services.AuditServicer) *GoalHandler {
	return &GoalHandler{goalService: goalService, auditService: auditService}
}

// ContributionRequest is the payload for adding to a goal.
type ContributionRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// AddContribution adds money to an active goal.
// @Summary     Contribute to a goal
// @Description Adds to the saved amount; completes the goal once the target is met
// @Tags        goals
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "Goal ID"
// @Param       request body ContributionRequest true "Contribution in cents"
// @Success     200 {object} models.Goal
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Goal not found"
// @Failure     409 {object} ErrorResponse "Goal not active"
// @Router      /goals/{id}/contributions [post]
func (h *GoalHandler) AddContribution(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	goalID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req ContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	goal, err := h.goalService.AddContribution(c.Request.Context(), userID, goalID, req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ADD_GOAL_CONTRIBUTION", "goal", goal.ID, c.ClientIP(),
		map[string]interface{}{"amount": req.Amount, "status": goal.Status})
	c.JSON(http.StatusOK, goal)
}
