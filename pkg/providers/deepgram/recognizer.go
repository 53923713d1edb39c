// Package deepgram provides a continuous-recognition client backed by the
// Deepgram live transcription websocket API.
package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/voxline/voxline/pkg/errorsx"
	"github.com/voxline/voxline/pkg/logging"
	"github.com/voxline/voxline/pkg/recog"
	"github.com/voxline/voxline/pkg/resilience"
)

type Config struct {
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	UtteranceEndMS int
	CallID         string
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Encoding == "" {
		c.Encoding = "linear16"
	}
	if c.Model == "" {
		c.Model = "nova-2"
	}
	return c
}

// Recognizer streams call audio into Deepgram and surfaces partial/final
// transcripts through the recog.Handler callbacks.
type Recognizer struct {
	cfg    Config
	logger *slog.Logger
	retry  resilience.RetryPolicy

	mu         sync.Mutex
	dgClient   *client.WSCallback
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	handler    recog.Handler
	cancel     context.CancelFunc
	metaLogged bool
}

func New(cfg Config) *Recognizer {
	cfg = cfg.withDefaults()
	return &Recognizer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(nil, "deepgram_recognizer").With("call_id", cfg.CallID),
		retry:  resilience.NewRetryPolicy(3, 200*time.Millisecond),
	}
}

func (r *Recognizer) Name() string { return "deepgram" }

func (r *Recognizer) Start(ctx context.Context, h recog.Handler) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.handler = h
	r.cancel = cancel
	r.pipeReader, r.pipeWriter = io.Pipe()
	r.mu.Unlock()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          r.cfg.Model,
		Language:       r.cfg.Language,
		Encoding:       r.cfg.Encoding,
		SampleRate:     r.cfg.SampleRate,
		InterimResults: true,
		SmartFormat:    true,
	}
	if r.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = fmt.Sprintf("%d", r.cfg.UtteranceEndMS)
	}

	cb := &callback{parent: r}
	dgClient, err := client.NewWSUsingCallback(ctx, r.cfg.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		cancel()
		return errorsx.Wrap(err, errorsx.ReasonRecognizerConnect)
	}

	err = r.retry.DoContext(ctx, func() error {
		if connected := dgClient.Connect(); !connected {
			return fmt.Errorf("deepgram connection failed")
		}
		return nil
	})
	if err != nil {
		cancel()
		return errorsx.Wrap(err, errorsx.ReasonRecognizerConnect)
	}

	r.mu.Lock()
	r.dgClient = dgClient
	reader := r.pipeReader
	r.mu.Unlock()

	r.logger.Info("deepgram_connected",
		slog.String("model", r.cfg.Model),
		slog.Int("sample_rate", r.cfg.SampleRate))

	go func() {
		if err := dgClient.Stream(reader); err != nil && ctx.Err() == nil {
			r.logger.Error("deepgram_stream_error", slog.String("error", err.Error()))
			h.OnFault(errorsx.Wrap(err, errorsx.ReasonRecognizerFault))
		}
	}()
	return nil
}

func (r *Recognizer) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	writer := r.pipeWriter
	dgClient := r.dgClient
	r.dgClient = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if writer != nil {
		_ = writer.Close()
	}
	if dgClient != nil {
		dgClient.Stop()
	}
	return nil
}

func (r *Recognizer) WriteAudio(p []byte) error {
	r.mu.Lock()
	writer := r.pipeWriter
	r.mu.Unlock()
	if writer == nil {
		return errorsx.New(errorsx.ReasonRecognizerFeed, "recognizer not started")
	}
	_, err := writer.Write(p)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonRecognizerFeed)
	}
	return nil
}

var _ recog.Client = (*Recognizer)(nil)

type callback struct {
	parent *Recognizer
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return nil
	}
	c.parent.mu.Lock()
	h := c.parent.handler
	c.parent.mu.Unlock()
	if h == nil {
		return nil
	}
	if mr.IsFinal || mr.SpeechFinal {
		h.OnFinal(transcript, c.parent.cfg.Language)
	} else {
		h.OnPartial(transcript, c.parent.cfg.Language)
	}
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.mu.Lock()
	logged := c.parent.metaLogged
	c.parent.metaLogged = true
	c.parent.mu.Unlock()
	if !logged {
		c.parent.logger.Info("deepgram_metadata_received", slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech_started_event")
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Debug("utterance_end_event")
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.mu.Lock()
	h := c.parent.handler
	c.parent.mu.Unlock()
	c.parent.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	if h != nil {
		h.OnFault(errorsx.New(errorsx.ReasonRecognizerFault, er.ErrMsg))
	}
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event", slog.String("data", string(byData)))
	return nil
}
