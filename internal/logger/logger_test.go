package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("account", "1234.12345678").Msg("report generated")

	output := buf.String()
	if !strings.Contains(output, "report generated") {
		t.Errorf("Expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, `"account":"1234.12345678"`) {
		t.Errorf("Expected output to contain account field, got: %s", output)
	}
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		want    zerolog.Level
		wantErr bool
	}{
		{"defaults", "", "", zerolog.InfoLevel, false},
		{"debug json", "debug", "json", zerolog.DebugLevel, false},
		{"upper case", "WARN", "console", zerolog.WarnLevel, false},
		{"bad level", "loud", "json", zerolog.Disabled, true},
		{"bad format", "info", "xml", zerolog.Disabled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewFromConfig(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if log.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", log.GetLevel(), tt.want)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf)
	ctx := WithContext(context.Background(), testLog)

	if ctx.Value(LoggerKey) == nil {
		t.Fatal("Expected logger in context, got nil")
	}

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestFromContextOr_Fallback(t *testing.T) {
	buf := &bytes.Buffer{}
	fallback := NewWithWriter(buf)

	fallbackLog := FromContextOr(context.Background(), fallback)
	fallbackLog.Info().Msg("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Errorf("Expected fallback logger to be used, got %q", buf.String())
	}

	scoped := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(scoped))
	scopedLog := FromContextOr(ctx, fallback)
	scopedLog.Info().Msg("scoped")
	if !strings.Contains(scoped.String(), "scoped") || strings.Contains(buf.String(), "scoped") {
		t.Error("Expected context logger to win over the fallback")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	logWithFields := WithFields(log, map[string]interface{}{
		"job_id":  "abc",
		"records": 3,
	})
	logWithFields.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"job_id":"abc"`) {
		t.Errorf("Expected output to contain job_id field, got: %s", output)
	}
	if !strings.Contains(output, `"records":3`) {
		t.Errorf("Expected output to contain records field, got: %s", output)
	}
}
