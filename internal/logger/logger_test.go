package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name string
		in   []interface{}
		want []interface{}
	}{
		{"empty", nil, nil},
		{"plain", []interface{}{"family_id", 7}, []interface{}{"family_id", 7}},
		{"password", []interface{}{"password_hash", "$2a$10$x"}, []interface{}{"password_hash", "[REDACTED]"}},
		{"mixed case key", []interface{}{"AuthToken", "abc"}, []interface{}{"AuthToken", "[REDACTED]"}},
		{"dangling key", []interface{}{"key", "v", "orphan"}, []interface{}{"key", "v", "orphan"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeKVs(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("sanitizeKVs() len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sanitizeKVs()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoggerWithRedacts(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("repo", "UserRepository").Info("user created", "username", "abu", "password", "hunter2")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["password"] != "[REDACTED]" {
		t.Errorf("password = %v, want [REDACTED]", ctx["password"])
	}
	if ctx["repo"] != "UserRepository" {
		t.Errorf("repo = %v, want UserRepository", ctx["repo"])
	}
}
