package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "finwatch/internal/errors"
	"finwatch/internal/models"
	"finwatch/internal/services"
)

// --- mock goal service ---

type mockGoalService struct {
	getGoalByIDFn     func(userID, goalID string) (*models.Goal, error)
	addContributionFn func(userID, goalID string, amount int64) (*models.Goal, error)
}

func (m *mockGoalService) GetGoalByID(_ context.Context, userID, goalID string) (*models.Goal, error) {
	if m.getGoalByIDFn != nil {
		return m.getGoalByIDFn(userID, goalID)
	}
	return &models.Goal{}, nil
}

func (m *mockGoalService) AddContribution(_ context.Context, userID, goalID string, amount int64) (*models.Goal, error) {
	if m.addContributionFn != nil {
		return m.addContributionFn(userID, goalID, amount)
	}
	return &models.Goal{Base: models.Base{ID: goalID}, CurrentAmount: amount, Status: models.GoalStatusActive}, nil
}

var _ services.GoalServicer = (*mockGoalService)(nil)

const testGoalID = "0190a7c4-6000-7000-8000-0000000000c1"

func setupGoalRouter(handler *GoalHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/goals/:id/contributions", handler.AddContribution)
	return r
}

func TestGoalHandler_AddContribution(t *testing.T) {
	t.Run("returns updated goal", func(t *testing.T) {
		audit := &mockAuditService{}
		svc := &mockGoalService{
			addContributionFn: func(userID, goalID string, amount int64) (*models.Goal, error) {
				if amount != 2500 {
					t.Errorf("expected amount 2500, got %d", amount)
				}
				return &models.Goal{
					Base:          models.Base{ID: goalID},
					UserID:        userID,
					TargetAmount:  10000,
					CurrentAmount: 10000,
					Status:        models.GoalStatusCompleted,
				}, nil
			},
		}
		r := setupGoalRouter(NewGoalHandler(svc, audit))

		rec := doRequest(r, "POST", "/goals/"+testGoalID+"/contributions", `{"amount":2500}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if status := parseJSON(t, rec)["status"]; status != "completed" {
			t.Errorf("expected completed, got %v", status)
		}
		if got := audit.actions(); len(got) != 1 || got[0] != "ADD_GOAL_CONTRIBUTION" {
			t.Errorf("expected contribution audit, got %v", got)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{"missing amount", `{}`},
		{"zero amount", `{"amount":0}`},
		{"negative amount", `{"amount":-100}`},
		{"malformed body", `{"amount":`},
	}
	for _, tt := range tests {
		t.Run("returns 400 on "+tt.name, func(t *testing.T) {
			r := setupGoalRouter(NewGoalHandler(&mockGoalService{}, &mockAuditService{}))

			rec := doRequest(r, "POST", "/goals/"+testGoalID+"/contributions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
		})
	}

	t.Run("returns 409 for inactive goal", func(t *testing.T) {
		svc := &mockGoalService{
			addContributionFn: func(_, _ string, _ int64) (*models.Goal, error) {
				return nil, apperrors.ErrGoalNotActive
			},
		}
		r := setupGoalRouter(NewGoalHandler(svc, &mockAuditService{}))

		rec := doRequest(r, "POST", "/goals/"+testGoalID+"/contributions", `{"amount":100}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "GOAL_NOT_ACTIVE")
	})
}
