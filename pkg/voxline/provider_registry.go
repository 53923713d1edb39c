package voxline

import (
	"fmt"
	"strings"

	"github.com/voxline/voxline/pkg/configutil"
	"github.com/voxline/voxline/pkg/providers/deepgram"
	"github.com/voxline/voxline/pkg/providers/elevenlabs"
	"github.com/voxline/voxline/pkg/providers/mock"
	"github.com/voxline/voxline/pkg/recog"
	"github.com/voxline/voxline/pkg/synth"
)

// RecognizerFactory builds a per-call recognizer client from vendor settings.
type RecognizerFactory func(settings map[string]any, callID, language string) (recog.Client, error)

// SynthesizerFactory builds a per-call synthesizer client from vendor settings.
type SynthesizerFactory func(settings map[string]any, callID string) (synth.Client, error)

type ProviderRegistry struct {
	recognizers  map[string]RecognizerFactory
	synthesizers map[string]SynthesizerFactory
}

func NewProviderRegistry() *ProviderRegistry {
	r := &ProviderRegistry{
		recognizers:  make(map[string]RecognizerFactory),
		synthesizers: make(map[string]SynthesizerFactory),
	}
	r.RegisterRecognizer("deepgram", buildDeepgramRecognizer)
	r.RegisterRecognizer("mock", buildMockRecognizer)
	r.RegisterSynthesizer("elevenlabs", buildElevenLabsSynthesizer)
	r.RegisterSynthesizer("mock", buildMockSynthesizer)
	return r
}

func (r *ProviderRegistry) RegisterRecognizer(name string, factory RecognizerFactory) {
	r.recognizers[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterSynthesizer(name string, factory SynthesizerFactory) {
	r.synthesizers[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildRecognizer(provider string, settings map[string]any, callID, language string) (recog.Client, error) {
	fn := r.recognizers[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("recognizer provider not registered: %s", provider)
	}
	return fn(settings, callID, language)
}

func (r *ProviderRegistry) BuildSynthesizer(provider string, settings map[string]any, callID string) (synth.Client, error) {
	fn := r.synthesizers[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("synthesizer provider not registered: %s", provider)
	}
	return fn(settings, callID)
}

func buildDeepgramRecognizer(settings map[string]any, callID, language string) (recog.Client, error) {
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "sample_rate", "encoding", "utterance_end_ms"},
	}); err != nil {
		return nil, fmt.Errorf("deepgram settings: %w", err)
	}
	var s struct {
		APIKey         string `mapstructure:"api_key"`
		Model          string `mapstructure:"model"`
		SampleRate     int    `mapstructure:"sample_rate"`
		Encoding       string `mapstructure:"encoding"`
		UtteranceEndMS int    `mapstructure:"utterance_end_ms"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("deepgram settings: %w", err)
	}
	return deepgram.New(deepgram.Config{
		APIKey:         s.APIKey,
		Model:          s.Model,
		Language:       language,
		SampleRate:     s.SampleRate,
		Encoding:       s.Encoding,
		UtteranceEndMS: s.UtteranceEndMS,
		CallID:         callID,
	}), nil
}

func buildElevenLabsSynthesizer(settings map[string]any, callID string) (synth.Client, error) {
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"api_key", "voice_id"},
		Optional: []string{"model_id", "output_format"},
	}); err != nil {
		return nil, fmt.Errorf("elevenlabs settings: %w", err)
	}
	var s struct {
		APIKey       string `mapstructure:"api_key"`
		VoiceID      string `mapstructure:"voice_id"`
		ModelID      string `mapstructure:"model_id"`
		OutputFormat string `mapstructure:"output_format"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("elevenlabs settings: %w", err)
	}
	return elevenlabs.New(elevenlabs.Config{
		APIKey:       s.APIKey,
		VoiceID:      s.VoiceID,
		ModelID:      s.ModelID,
		OutputFormat: s.OutputFormat,
		CallID:       callID,
	}), nil
}

func buildMockRecognizer(settings map[string]any, callID, language string) (recog.Client, error) {
	var s struct {
		Transcript string `mapstructure:"transcript"`
		Interim    string `mapstructure:"interim"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("mock recognizer settings: %w", err)
	}
	return mock.NewRecognizer(mock.RecognizerConfig{
		Transcript: s.Transcript,
		Interim:    s.Interim,
		Language:   language,
	}), nil
}

func buildMockSynthesizer(settings map[string]any, callID string) (synth.Client, error) {
	_ = settings
	_ = callID
	return mock.NewSynthesizer(mock.SynthesizerConfig{}), nil
}
