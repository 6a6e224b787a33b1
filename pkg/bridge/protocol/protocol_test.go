package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeInbound_Start(t *testing.T) {
	data := []byte(`{
		"event": "start",
		"sequenceNumber": "1",
		"streamSid": "MZ123",
		"start": {
			"accountSid": "AC123",
			"streamSid": "MZ123",
			"callSid": "CA456",
			"tracks": ["inbound"],
			"mediaFormat": {"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1}
		}
	}`)

	msg, err := DecodeInbound(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	start, ok := msg.(Start)
	if !ok {
		t.Fatalf("got %T, want Start", msg)
	}
	if start.StreamSID != "MZ123" || start.CallSID != "CA456" {
		t.Fatalf("start = %+v", start)
	}
	if start.MediaFormat.SampleRate != 8000 {
		t.Fatalf("media format = %+v", start.MediaFormat)
	}
}

func TestDecodeInbound_MediaDecodesBase64(t *testing.T) {
	raw := []byte{0xFF, 0x7F, 0x00, 0x80}
	data := []byte(`{
		"event": "media",
		"streamSid": "MZ123",
		"media": {"track": "inbound", "chunk": "2", "timestamp": "40", "payload": "` +
		base64.StdEncoding.EncodeToString(raw) + `"}
	}`)

	msg, err := DecodeInbound(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	media, ok := msg.(Media)
	if !ok {
		t.Fatalf("got %T, want Media", msg)
	}
	if !bytes.Equal(media.Payload, raw) {
		t.Fatalf("payload = %v, want %v", media.Payload, raw)
	}
	if media.StreamSID != "MZ123" || media.Track != "inbound" {
		t.Fatalf("media = %+v", media)
	}
}

func TestDecodeInbound_StopAndConnected(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"event":"stop","streamSid":"MZ1","stop":{"callSid":"CA1","accountSid":"AC1"}}`))
	if err != nil {
		t.Fatalf("decode stop: %v", err)
	}
	stop, ok := msg.(Stop)
	if !ok || stop.CallSID != "CA1" {
		t.Fatalf("stop = %#v", msg)
	}

	msg, err = DecodeInbound([]byte(`{"event":"connected","protocol":"Call","version":"1.0.0"}`))
	if err != nil {
		t.Fatalf("decode connected: %v", err)
	}
	if _, ok := msg.(Connected); !ok {
		t.Fatalf("got %T, want Connected", msg)
	}
}

func TestDecodeInbound_Errors(t *testing.T) {
	cases := []struct {
		name string
		data string
		code string
	}{
		{"invalid json", `{`, "bad_request"},
		{"missing event", `{"streamSid":"MZ1"}`, "bad_request"},
		{"unknown event", `{"event":"dtmf"}`, "unsupported"},
		{"media without payload", `{"event":"media","media":{"track":"inbound"}}`, "bad_request"},
		{"media with bad base64", `{"event":"media","media":{"payload":"!!!"}}`, "bad_request"},
		{"start without object", `{"event":"start"}`, "bad_request"},
		{"start without stream sid", `{"event":"start","start":{"callSid":"CA1"}}`, "bad_request"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(tc.data))
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if de.Code != tc.code {
				t.Fatalf("code = %q, want %q", de.Code, tc.code)
			}
		})
	}
}

func TestEncodeMedia_RoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	data, err := EncodeMedia("MZ123", payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var out struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Event != EventMedia || out.StreamSID != "MZ123" {
		t.Fatalf("envelope = %+v", out)
	}
	decoded, err := base64.StdEncoding.DecodeString(out.Media.Payload)
	if err != nil || !bytes.Equal(decoded, payload) {
		t.Fatalf("payload round trip failed: %v %v", decoded, err)
	}

	if _, err := EncodeMedia("MZ123", nil); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestEncodeClearAndMark(t *testing.T) {
	data, err := EncodeClear("MZ123")
	if err != nil {
		t.Fatalf("encode clear: %v", err)
	}
	if string(data) != `{"event":"clear","streamSid":"MZ123"}` {
		t.Fatalf("clear = %s", data)
	}

	data, err = EncodeMark("MZ123", "greeting-done")
	if err != nil {
		t.Fatalf("encode mark: %v", err)
	}
	var out outboundMark
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal mark: %v", err)
	}
	if out.Mark.Name != "greeting-done" {
		t.Fatalf("mark = %+v", out)
	}
}
