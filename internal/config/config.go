package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Default sweep cadences, in standard five-field cron syntax.
const (
	DefaultBudgetScanSchedule    = "0 * * * *"
	DefaultGoalScanSchedule      = "0 9 * * *"
	DefaultRecurringScanSchedule = "0 8 * * *"
)

// Config holds application configuration
type Config struct {
	Env string

	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Operator endpoints
	PipelineAPIKey string

	// Scheduler
	SchedulerEnabled      bool
	BudgetScanSchedule    string
	GoalScanSchedule      string
	RecurringScanSchedule string
	ScanWorkers           int

	// SMTP delivery; disabled when SMTPHost is empty
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPSender   string
}

// MailEnabled reports whether notification emails can be sent.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPSender != ""
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "finwatch"),
		DBPassword: getEnv("DB_PASSWORD", "finwatch"),
		DBName:     getEnv("DB_NAME", "finwatch"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		BudgetScanSchedule:    getEnv("BUDGET_SCAN_SCHEDULE", DefaultBudgetScanSchedule),
		GoalScanSchedule:      getEnv("GOAL_SCAN_SCHEDULE", DefaultGoalScanSchedule),
		RecurringScanSchedule: getEnv("RECURRING_SCAN_SCHEDULE", DefaultRecurringScanSchedule),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),
	}

	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 24h\n", expStr)
		expDur = 24 * time.Hour
	}
	config.JWTExpirationDur = expDur

	enabled, err := parseBool(getEnv("SCHEDULER_ENABLED", ""), true)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_ENABLED value: %w", err)
	}
	config.SchedulerEnabled = enabled

	workers, err := parsePositiveInt(getEnv("SCAN_WORKERS", ""), 4)
	if err != nil {
		return nil, fmt.Errorf("invalid SCAN_WORKERS value: %w", err)
	}
	config.ScanWorkers = workers

	if err := config.validateSchedules(); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Set replaces the process-wide configuration. Used by tests.
func Set(c *Config) {
	appConfig = c
}

func (c *Config) validateSchedules() error {
	specs := map[string]string{
		"BUDGET_SCAN_SCHEDULE":    c.BudgetScanSchedule,
		"GOAL_SCAN_SCHEDULE":      c.GoalScanSchedule,
		"RECURRING_SCAN_SCHEDULE": c.RecurringScanSchedule,
	}
	for key, spec := range specs {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, spec, err)
		}
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(s string, defaultVal bool) (bool, error) {
	if s == "" {
		return defaultVal, nil
	}
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("must be true, false, 1, or 0, got %q", s)
	}
}

func parsePositiveInt(s string, defaultVal int) (int, error) {
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
