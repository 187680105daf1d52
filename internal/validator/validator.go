// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"finwatch/internal/models"
	"finwatch/internal/services"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("notification_type", validateNotificationType)
		_ = v.RegisterValidation("sweep_kind", validateSweepKind)
	}
}

func validateNotificationType(fl validator.FieldLevel) bool {
	return models.NotificationType(fl.Field().String()).Valid()
}

func validateSweepKind(fl validator.FieldLevel) bool {
	return services.SweepKind(fl.Field().String()).Valid()
}
