// Package protocol encodes and decodes the telephony media-stream framing:
// JSON envelopes carrying base64 mu-law audio plus stream lifecycle events.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
	EventClear     = "clear"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// MediaFormat describes the audio carried on the stream.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// Connected is the first event after the socket opens.
type Connected struct {
	Protocol string
	Version  string
}

// Start announces the stream identifiers and media format.
type Start struct {
	StreamSID   string
	CallSID     string
	AccountSID  string
	Tracks      []string
	MediaFormat MediaFormat
}

// Media carries one chunk of caller audio. Payload is the decoded mu-law
// bytes, not the wire base64.
type Media struct {
	StreamSID string
	Track     string
	Chunk     string
	Timestamp string
	Payload   []byte
}

// Stop signals the call has ended.
type Stop struct {
	StreamSID  string
	CallSID    string
	AccountSID string
}

// Mark is the playback acknowledgment for a previously sent mark.
type Mark struct {
	StreamSID string
	Name      string
}

type inboundEnvelope struct {
	Event          string `json:"event"`
	SequenceNumber string `json:"sequenceNumber,omitempty"`
	StreamSID      string `json:"streamSid,omitempty"`
	Protocol       string `json:"protocol,omitempty"`
	Version        string `json:"version,omitempty"`
	Start          *struct {
		AccountSID  string      `json:"accountSid"`
		StreamSID   string      `json:"streamSid"`
		CallSID     string      `json:"callSid"`
		Tracks      []string    `json:"tracks"`
		MediaFormat MediaFormat `json:"mediaFormat"`
	} `json:"start,omitempty"`
	Media *struct {
		Track     string `json:"track"`
		Chunk     string `json:"chunk"`
		Timestamp string `json:"timestamp"`
		Payload   string `json:"payload"`
	} `json:"media,omitempty"`
	Stop *struct {
		AccountSID string `json:"accountSid"`
		CallSID    string `json:"callSid"`
	} `json:"stop,omitempty"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
}

// DecodeInbound parses one inbound frame into its typed event. Media payloads
// are base64-decoded here so the rest of the bridge never sees wire encoding.
func DecodeInbound(data []byte) (any, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	event := strings.TrimSpace(env.Event)
	if event == "" {
		return nil, badRequest("missing event", "event")
	}

	switch event {
	case EventConnected:
		return Connected{Protocol: env.Protocol, Version: env.Version}, nil

	case EventStart:
		if env.Start == nil {
			return nil, badRequest("start frame missing start object", "start")
		}
		if strings.TrimSpace(env.Start.StreamSID) == "" {
			return nil, badRequest("start.streamSid is required", "start.streamSid")
		}
		return Start{
			StreamSID:   env.Start.StreamSID,
			CallSID:     env.Start.CallSID,
			AccountSID:  env.Start.AccountSID,
			Tracks:      env.Start.Tracks,
			MediaFormat: env.Start.MediaFormat,
		}, nil

	case EventMedia:
		if env.Media == nil {
			return nil, badRequest("media frame missing media object", "media")
		}
		if strings.TrimSpace(env.Media.Payload) == "" {
			return nil, badRequest("media.payload is required", "media.payload")
		}
		payload, err := base64.StdEncoding.DecodeString(env.Media.Payload)
		if err != nil {
			return nil, badRequest("media.payload is not valid base64", "media.payload")
		}
		return Media{
			StreamSID: env.StreamSID,
			Track:     env.Media.Track,
			Chunk:     env.Media.Chunk,
			Timestamp: env.Media.Timestamp,
			Payload:   payload,
		}, nil

	case EventStop:
		stop := Stop{StreamSID: env.StreamSID}
		if env.Stop != nil {
			stop.CallSID = env.Stop.CallSID
			stop.AccountSID = env.Stop.AccountSID
		}
		return stop, nil

	case EventMark:
		if env.Mark == nil {
			return nil, badRequest("mark frame missing mark object", "mark")
		}
		return Mark{StreamSID: env.StreamSID, Name: env.Mark.Name}, nil

	default:
		return nil, unsupported("unsupported event", "event")
	}
}

type outboundMedia struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type outboundClear struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

type outboundMark struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

// EncodeMedia frames one chunk of mu-law audio for the given stream.
func EncodeMedia(streamSID string, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, badRequest("empty media payload", "media.payload")
	}
	msg := outboundMedia{Event: EventMedia, StreamSID: streamSID}
	msg.Media.Payload = base64.StdEncoding.EncodeToString(payload)
	return json.Marshal(msg)
}

// EncodeClear frames the instruction to drop all buffered outbound audio.
// Sent on barge-in so the caller stops hearing the interrupted reply.
func EncodeClear(streamSID string) ([]byte, error) {
	return json.Marshal(outboundClear{Event: EventClear, StreamSID: streamSID})
}

// EncodeMark frames a named playback marker.
func EncodeMark(streamSID, name string) ([]byte, error) {
	msg := outboundMark{Event: EventMark, StreamSID: streamSID}
	msg.Mark.Name = name
	return json.Marshal(msg)
}
