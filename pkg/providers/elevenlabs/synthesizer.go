// Package elevenlabs provides a speech synthesizer backed by the ElevenLabs
// streaming text-to-speech websocket API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/voxline/voxline/pkg/errorsx"
	"github.com/voxline/voxline/pkg/logging"
	"github.com/voxline/voxline/pkg/resilience"
	"github.com/voxline/voxline/pkg/synth"
)

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkBuffer  int
	CallID       string
}

func (c Config) withDefaults() Config {
	if c.ModelID == "" {
		c.ModelID = "eleven_turbo_v2_5"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = "pcm_16000"
	}
	if c.ChunkBuffer == 0 {
		c.ChunkBuffer = 256
	}
	return c
}

// Synthesizer opens a fresh stream-input websocket per utterance. Each call
// to Synthesize owns its connection, so an interrupted turn tears down its
// stream without disturbing the next one.
type Synthesizer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Synthesizer {
	cfg = cfg.withDefaults()
	return &Synthesizer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(nil, "elevenlabs_synthesizer").With("call_id", cfg.CallID),
	}
}

func (s *Synthesizer) Name() string { return "elevenlabs" }

func (s *Synthesizer) Synthesize(ctx context.Context, text, language string) (<-chan []byte, error) {
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return nil, errorsx.New(errorsx.ReasonSynthConnect, "missing elevenlabs config")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	text = strings.TrimSpace(text)
	if text != "" && !strings.HasSuffix(text, " ") {
		text += " "
	}

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.DialContext(ctx, s.streamURL(language), http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Error("elevenlabs_rate_limited", slog.String("status", resp.Status))
			return nil, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		return nil, errorsx.Wrap(err, errorsx.ReasonSynthConnect)
	}

	init := map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
		"generation_config": map[string]any{
			"chunk_length_schedule": []int{120, 160, 250, 290},
		},
	}
	if err := writeJSON(conn, init); err != nil {
		_ = conn.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonSynthStream)
	}
	if err := writeJSON(conn, map[string]any{"text": text, "try_trigger_generation": true}); err != nil {
		_ = conn.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonSynthStream)
	}
	// Empty text closes the input stream; the server finishes generation and
	// marks the last audio message final.
	if err := writeJSON(conn, map[string]any{"text": ""}); err != nil {
		_ = conn.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonSynthStream)
	}

	out := make(chan []byte, s.cfg.ChunkBuffer)
	go s.readLoop(ctx, conn, out)
	return out, nil
}

func (s *Synthesizer) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- []byte) {
	defer close(out)
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Warn("elevenlabs_read_ended", slog.String("error", err.Error()))
			}
			return
		}
		var msg struct {
			Audio   string `json:"audio"`
			IsFinal bool   `json:"isFinal"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("elevenlabs_unparsed_message", slog.String("data", string(data)))
			continue
		}
		if msg.Audio != "" {
			raw, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				s.logger.Error("elevenlabs_audio_decode_error", slog.String("error", err.Error()))
				continue
			}
			select {
			case out <- raw:
			case <-ctx.Done():
				return
			}
		}
		if msg.IsFinal {
			return
		}
	}
}

func (s *Synthesizer) streamURL(language string) string {
	base := "wss://api.elevenlabs.io/v1/text-to-speech/" + s.cfg.VoiceID + "/stream-input"
	q := url.Values{}
	q.Set("model_id", s.cfg.ModelID)
	q.Set("output_format", s.cfg.OutputFormat)
	q.Set("optimize_streaming_latency", "4")
	if language != "" {
		q.Set("language_code", shortLanguage(language))
	}
	return base + "?" + q.Encode()
}

// shortLanguage maps BCP-47 tags like "en-US" to the two-letter codes the
// ElevenLabs API accepts.
func shortLanguage(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}

func writeJSON(conn *websocket.Conn, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

var _ synth.Client = (*Synthesizer)(nil)
