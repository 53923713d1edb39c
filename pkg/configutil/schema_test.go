package configutil

import (
	"strings"
	"testing"
)

func TestValidateSettingsNormalizesKeys(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}, Optional: []string{"voice_id"}}
	settings := map[string]any{"API-Key": "secret", "VoiceId": "v1"}
	if err := ValidateSettings(settings, schema); err != nil {
		t.Fatalf("expected normalized keys to validate, got %v", err)
	}
}

func TestValidateSettingsReportsMissingAndUnknown(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}}
	err := ValidateSettings(map[string]any{"api_key": "  ", "extra": 1}, schema)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "missing keys: api_key") || !strings.Contains(msg, "unknown keys: extra") {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestValidateSettingsAllowUnknown(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}, AllowUnknown: true}
	if err := ValidateSettings(map[string]any{"api_key": "k", "extra": true}, schema); err != nil {
		t.Fatalf("expected unknown keys tolerated, got %v", err)
	}
}
