// Package wire implements the duplex JSON framing for a call's media
// connection and the dispatcher that routes inbound frames into the
// recognition pipeline.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/voxline/voxline/pkg/errorsx"
)

// Kind tags a wire frame; one kind field selects the variant.
type Kind string

const (
	KindAudioMetadata Kind = "AudioMetadata"
	KindAudioData     Kind = "AudioData"
	KindDtmfData      Kind = "DtmfData"
	KindStopAudio     Kind = "StopAudio"
)

// Frame is the wire envelope. Inbound audio payloads are base64 PCM16LE,
// 16 kHz mono by convention; outbound sample rate is per deployment.
type Frame struct {
	Kind           Kind   `json:"kind"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	Data           string `json:"data,omitempty"`
	Silent         bool   `json:"silent,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
}

// Decode parses one inbound frame. Unknown kinds and malformed JSON are
// decode errors; callers drop the frame and keep the connection open.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, errorsx.Wrap(err, errorsx.ReasonProtocolDecode)
	}
	switch f.Kind {
	case KindAudioMetadata, KindAudioData, KindDtmfData, KindStopAudio:
		return f, nil
	default:
		return Frame{}, errorsx.Wrap(fmt.Errorf("unknown frame kind %q", f.Kind), errorsx.ReasonProtocolDecode)
	}
}

// Encode serializes the frame for the wire.
func (f Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// AudioPayload decodes the base64 audio body of an AudioData frame.
func (f Frame) AudioPayload() ([]byte, error) {
	if f.Data == "" {
		return nil, nil
	}
	payload, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonProtocolDecode)
	}
	return payload, nil
}

// EncodeAudioData builds an outbound synthesized-speech frame.
func EncodeAudioData(pcm []byte) ([]byte, error) {
	return json.Marshal(Frame{
		Kind: KindAudioData,
		Data: base64.StdEncoding.EncodeToString(pcm),
	})
}

// EncodeStopAudio builds the frame that halts client-side playback of
// in-flight agent audio on barge-in.
func EncodeStopAudio() ([]byte, error) {
	return json.Marshal(Frame{Kind: KindStopAudio})
}
