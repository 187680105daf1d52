package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type probe struct {
	Type string `validate:"omitempty,notification_type"`
	Kind string `validate:"omitempty,sweep_kind"`
}

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	for tag, fn := range map[string]validator.Func{
		"notification_type": validateNotificationType,
		"sweep_kind":        validateSweepKind,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			t.Fatalf("register %s: %v", tag, err)
		}
	}
	return v
}

func TestValidators(t *testing.T) {
	v := newValidate(t)

	tests := []struct {
		name    string
		in      probe
		wantErr bool
	}{
		{"empty", probe{}, false},
		{"budget_alert", probe{Type: "budget_alert"}, false},
		{"goal_reminder", probe{Type: "goal_reminder"}, false},
		{"recurring_expense", probe{Type: "recurring_expense"}, false},
		{"unknown_type", probe{Type: "payday"}, true},
		{"budget_sweep", probe{Kind: "budget"}, false},
		{"recurring_sweep", probe{Kind: "recurring"}, false},
		{"unknown_sweep", probe{Kind: "weekly"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
