package mailer

import (
	"context"
	"testing"

	"finwatch/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		wantNop bool
	}{
		{"nil config", nil, true},
		{"no host", &config.Config{SMTPSender: "alerts@finwatch.test"}, true},
		{"no sender", &config.Config{SMTPHost: "smtp.finwatch.test"}, true},
		{"configured", &config.Config{SMTPHost: "smtp.finwatch.test", SMTPPort: "587", SMTPSender: "alerts@finwatch.test"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isNop := New(tt.cfg).(Nop)
			if isNop != tt.wantNop {
				t.Errorf("expected nop=%v, got %v", tt.wantNop, isNop)
			}
		})
	}
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s := New(&config.Config{SMTPHost: "smtp.finwatch.test", SMTPPort: "587", SMTPSender: "alerts@finwatch.test"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Send(ctx, Message{To: "user@test.com", Subject: "hi", Body: "body"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
