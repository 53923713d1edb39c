package wire

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

type fakeSink struct {
	arms    int
	fed     [][]byte
	armErr  error
	feedErr error
}

func (f *fakeSink) Arm(ctx context.Context) error {
	if f.armErr != nil {
		return f.armErr
	}
	f.arms++
	return nil
}

func (f *fakeSink) Feed(p []byte) error {
	if f.feedErr != nil {
		return f.feedErr
	}
	f.fed = append(f.fed, p)
	return nil
}

func metadataFrame(t *testing.T) []byte {
	t.Helper()
	return []byte(`{"kind":"AudioMetadata","subscriptionId":"sub-1"}`)
}

func TestMetadataIdempotence(t *testing.T) {
	sink := &fakeSink{}
	greetings := 0
	d := NewDispatcher("c1", sink, func() error { greetings++; return nil }, nil)

	d.HandleMessage(context.Background(), metadataFrame(t))
	d.HandleMessage(context.Background(), metadataFrame(t))

	if sink.arms != 1 {
		t.Fatalf("expected exactly one arm, got %d", sink.arms)
	}
	if greetings != 1 {
		t.Fatalf("expected exactly one greeting injection, got %d", greetings)
	}
}

func TestMetadataRetriesAfterArmFailure(t *testing.T) {
	sink := &fakeSink{armErr: errors.New("engine busy")}
	greetings := 0
	d := NewDispatcher("c1", sink, func() error { greetings++; return nil }, nil)

	d.HandleMessage(context.Background(), metadataFrame(t))
	if d.Armed() || greetings != 0 {
		t.Fatalf("expected failed arm to leave dispatcher unarmed")
	}

	sink.armErr = nil
	d.HandleMessage(context.Background(), metadataFrame(t))
	if !d.Armed() || sink.arms != 1 || greetings != 1 {
		t.Fatalf("expected retry to arm once, got arms=%d greetings=%d", sink.arms, greetings)
	}
}

func TestSilentAudioIsNotFed(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher("c1", sink, nil, nil)

	d.HandleMessage(context.Background(), []byte(`{"kind":"AudioData","silent":true}`))
	d.HandleMessage(context.Background(), []byte(`{"kind":"AudioData","data":""}`))

	if len(sink.fed) != 0 {
		t.Fatalf("expected zero bytes fed, got %d chunks", len(sink.fed))
	}
}

func TestAudioDataIsDecodedAndFed(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher("c1", sink, nil, nil)

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	payload := base64.StdEncoding.EncodeToString(pcm)
	d.HandleMessage(context.Background(), []byte(`{"kind":"AudioData","data":"`+payload+`"}`))

	if len(sink.fed) != 1 || string(sink.fed[0]) != string(pcm) {
		t.Fatalf("expected decoded payload fed, got %v", sink.fed)
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher("c1", sink, func() error { t.Fatalf("greet must not run"); return nil }, nil)

	d.HandleMessage(context.Background(), []byte(`{not json`))
	d.HandleMessage(context.Background(), []byte(`{"kind":"Mystery"}`))
	d.HandleMessage(context.Background(), []byte(`{"kind":"AudioData","data":"!!!not-base64!!!"}`))

	if sink.arms != 0 || len(sink.fed) != 0 {
		t.Fatalf("expected malformed frames to be no-ops")
	}
}

func TestDtmfRouting(t *testing.T) {
	sink := &fakeSink{}
	var digits []string
	d := NewDispatcher("c1", sink, nil, func(d string) { digits = append(digits, d) })

	d.HandleMessage(context.Background(), []byte(`{"kind":"DtmfData","data":"5"}`))

	if len(digits) != 1 || digits[0] != "5" {
		t.Fatalf("expected digit forwarded, got %v", digits)
	}
	if len(sink.fed) != 0 {
		t.Fatalf("dtmf must not touch the speech pipeline")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	raw, err := EncodeAudioData([]byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Kind != KindAudioData {
		t.Fatalf("expected AudioData, got %s", f.Kind)
	}
	payload, err := f.AudioPayload()
	if err != nil || len(payload) != 2 {
		t.Fatalf("unexpected payload %v err %v", payload, err)
	}

	stop, err := EncodeStopAudio()
	if err != nil {
		t.Fatalf("encode stop: %v", err)
	}
	f, err = Decode(stop)
	if err != nil || f.Kind != KindStopAudio {
		t.Fatalf("expected StopAudio frame, got %+v err %v", f, err)
	}
}
