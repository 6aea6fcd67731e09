package link

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnreachable  = errors.New("counterpart device is not reachable")
	ErrReplyTimeout = errors.New("reply did not arrive in time")
	ErrMalformed    = errors.New("malformed message")
	ErrClosed       = errors.New("link closed")
	ErrBusy         = errors.New("link queue full")
)

// Kind identifies what a message is about. On the wire the kind is implied by
// the payload keys.
type Kind string

const (
	KindCommand              Kind = "command"
	KindHeartRate            Kind = "heartRate"
	KindStrokeCount          Kind = "strokeCount"
	KindWatchStatus          Kind = "watchStatus"
	KindWorkoutsData         Kind = "workoutsData"
	KindRequestWorkouts      Kind = "requestWorkouts"
	KindRequestAllParameters Kind = "requestAllParameters"
	KindParameters           Kind = "parameters"
	KindParametersReceived   Kind = "parametersReceived"
	KindRequestPoolLength    Kind = "requestPoolLength"
	KindPoolLength           Kind = "poolLength"
	KindSessionData          Kind = "sessionData"
	KindSessionReceived      Kind = "sessionReceived"
)

// classifiers are checked in order; the first key present decides the kind.
var classifiers = []struct {
	key  string
	kind Kind
}{
	{"command", KindCommand},
	{"heartRate", KindHeartRate},
	{"strokeCount", KindStrokeCount},
	{"watchStatus", KindWatchStatus},
	{"workoutsData", KindWorkoutsData},
	{"requestWorkouts", KindRequestWorkouts},
	{"requestAllParameters", KindRequestAllParameters},
	{"requestPoolLength", KindRequestPoolLength},
	{"parametersReceived", KindParametersReceived},
	{"poolLength", KindPoolLength},
	{"sessionData", KindSessionData},
	{"sessionReceived", KindSessionReceived},
	{"poolSize", KindParameters},
}

// Classify infers the kind of a payload.
func Classify(fields map[string]any) (Kind, error) {
	for _, c := range classifiers {
		if _, ok := fields[c.key]; ok {
			return c.kind, nil
		}
	}
	return "", fmt.Errorf("%w: no recognised key", ErrMalformed)
}

// Message is one unit exchanged between the devices.
type Message struct {
	ID      string
	ReplyTo string
	Kind    Kind
	Fields  map[string]any
}

// NewMessage builds an outbound message. The ID is assigned when it is sent.
func NewMessage(kind Kind, fields map[string]any) Message {
	return Message{Kind: kind, Fields: fields}
}

type envelope struct {
	ID      string         `json:"id"`
	ReplyTo string         `json:"replyTo,omitempty"`
	Payload map[string]any `json:"payload"`
}

// Encode renders m as a wire frame.
func Encode(m Message) ([]byte, error) {
	if len(m.Fields) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	frame, err := json.Marshal(envelope{ID: m.ID, ReplyTo: m.ReplyTo, Payload: m.Fields})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.Kind, err)
	}
	return frame, nil
}

// Decode parses a wire frame and classifies its payload.
func Decode(frame []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.ID == "" {
		return Message{}, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	kind, err := Classify(env.Payload)
	if err != nil {
		return Message{}, err
	}
	return Message{ID: env.ID, ReplyTo: env.ReplyTo, Kind: kind, Fields: env.Payload}, nil
}

// Float reads a numeric field.
func (m Message) Float(key string) (float64, bool) {
	switch v := m.Fields[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Int reads a numeric field that must hold a whole number.
func (m Message) Int(key string) (int, bool) {
	switch v := m.Fields[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	f, ok := m.Float(key)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Text reads a string field.
func (m Message) Text(key string) (string, bool) {
	s, ok := m.Fields[key].(string)
	return s, ok
}

func (m Message) Bool(key string) (bool, bool) {
	b, ok := m.Fields[key].(bool)
	return b, ok
}
