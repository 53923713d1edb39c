package twilio

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/voxline/voxline/pkg/errorsx"
	"github.com/voxline/voxline/pkg/logging"
)

// VoiceWebhook answers Twilio's voice webhook with TwiML that bridges the
// call into the media websocket. Requests are signature-checked when an
// auth token is configured.
type VoiceWebhook struct {
	cfg    Config
	logger *slog.Logger
}

func NewVoiceWebhook(cfg Config) *VoiceWebhook {
	return &VoiceWebhook{
		cfg:    cfg.withDefaults(),
		logger: logging.NewComponentLogger(nil, "twilio_voice_webhook"),
	}
}

func (v *VoiceWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if v.cfg.AuthToken != "" && !v.validateRequest(r) {
		v.logger.Warn("twilio_invalid_signature",
			slog.String("reason_code", string(errorsx.ReasonTransportInvalidSignature)),
			slog.String("remote_addr", r.RemoteAddr))
		w.WriteHeader(http.StatusForbidden)
		return
	}
	twiml := `<Response><Connect><Stream url="` + xmlEscape(v.mediaStreamURL(r)) + `"/></Connect></Response>`
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(twiml))
}

func (v *VoiceWebhook) validateRequest(r *http.Request) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return false
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	validator := twilioclient.NewRequestValidator(v.cfg.AuthToken)
	return validator.ValidateBody(v.requestURL(r), body, signature)
}

func (v *VoiceWebhook) requestURL(r *http.Request) string {
	if v.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(v.cfg.PublicURL) + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	host := r.Host
	if host == "" {
		host = strings.TrimPrefix(v.cfg.ServerAddr, ":")
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func (v *VoiceWebhook) mediaStreamURL(r *http.Request) string {
	if v.cfg.PublicURL != "" {
		return "wss://" + normalizePublicURL(v.cfg.PublicURL) + v.cfg.MediaPath
	}
	host := r.Host
	if host == "" {
		host = "localhost" + v.cfg.ServerAddr
	}
	return "wss://" + host + v.cfg.MediaPath
}

func xmlEscape(in string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(in)
}
