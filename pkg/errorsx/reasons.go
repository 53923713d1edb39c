package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonRecognizerConnect ReasonCode = "recognizer_connect"
	ReasonRecognizerFeed    ReasonCode = "recognizer_feed"
	ReasonRecognizerStop    ReasonCode = "recognizer_stop"
	ReasonRecognizerFault   ReasonCode = "recognizer_fault"

	ReasonSynthConnect   ReasonCode = "synth_connect"
	ReasonSynthStream    ReasonCode = "synth_stream"
	ReasonSynthRateLimit ReasonCode = "synth_rate_limit"

	ReasonOrchestratorTurn        ReasonCode = "orchestrator_turn"
	ReasonOrchestratorCircuitOpen ReasonCode = "orchestrator_circuit_open"

	ReasonProtocolDecode ReasonCode = "protocol_decode"
	ReasonPoolExhausted  ReasonCode = "pool_exhausted"
	ReasonPoolRelease    ReasonCode = "pool_release"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonTransportSend             ReasonCode = "transport_send"
)
