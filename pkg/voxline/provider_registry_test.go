package voxline

import (
	"strings"
	"testing"
)

func TestBuildRecognizerUnknownProvider(t *testing.T) {
	r := NewProviderRegistry()
	if _, err := r.BuildRecognizer("nope", nil, "call-1", "en-US"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestBuildMockRecognizer(t *testing.T) {
	r := NewProviderRegistry()
	client, err := r.BuildRecognizer("Mock", map[string]any{"transcript": "hello"}, "call-1", "en-US")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if client.Name() != "mock" {
		t.Fatalf("expected mock client, got %s", client.Name())
	}
}

func TestBuildDeepgramRequiresAPIKey(t *testing.T) {
	r := NewProviderRegistry()
	_, err := r.BuildRecognizer("deepgram", map[string]any{"model": "nova-2"}, "call-1", "en-US")
	if err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected missing api_key error, got %v", err)
	}
}

func TestBuildElevenLabsRejectsUnknownKeys(t *testing.T) {
	r := NewProviderRegistry()
	_, err := r.BuildSynthesizer("elevenlabs", map[string]any{
		"api_key":  "k",
		"voice_id": "v",
		"typo_key": true,
	}, "call-1")
	if err == nil || !strings.Contains(err.Error(), "unknown") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestRegisterCustomSynthesizer(t *testing.T) {
	r := NewProviderRegistry()
	r.RegisterSynthesizer("Custom", buildMockSynthesizer)
	if _, err := r.BuildSynthesizer("custom", nil, "call-1"); err != nil {
		t.Fatalf("expected registered provider to resolve, got %v", err)
	}
}
