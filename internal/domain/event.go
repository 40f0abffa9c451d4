package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Remote event names published by the garage door controller.
const (
	EventNameDoorState   = "gsna-gd-set-state-data"
	EventNameClockConfig = "gsna-gd-conf-clock"
	EventNameClimateData = "gsna-gd-set-climate-data"
)

// EventKind identifies which command template a remote event uses.
type EventKind int

const (
	KindDoorState EventKind = iota + 1
	KindClockConfig
	KindClimateData
)

// String returns a human-readable representation of the kind.
func (k EventKind) String() string {
	switch k {
	case KindDoorState:
		return "door-state"
	case KindClockConfig:
		return "clock-config"
	case KindClimateData:
		return "climate-data"
	default:
		return "unknown"
	}
}

// EventName returns the remote event name carrying this kind.
func (k EventKind) EventName() string {
	switch k {
	case KindDoorState:
		return EventNameDoorState
	case KindClockConfig:
		return EventNameClockConfig
	case KindClimateData:
		return EventNameClimateData
	default:
		return ""
	}
}

// Kinds lists every recognised event kind in subscription order.
func Kinds() []EventKind {
	return []EventKind{KindDoorState, KindClockConfig, KindClimateData}
}

// KindForEvent maps a remote event name to its kind.
func KindForEvent(name string) (EventKind, error) {
	for _, k := range Kinds() {
		if k.EventName() == name {
			return k, nil
		}
	}
	return 0, ErrUnknownEvent
}

// RemoteEvent is one notification delivered by the remote event source.
// Data holds the encoded payload exactly as it was published.
type RemoteEvent struct {
	Name string
	Data []byte
}

// Payload is a decoded remote event payload that can build its serial command.
type Payload interface {
	Kind() EventKind
	Command() (string, error)
}

var (
	errMissingField = errors.New("missing required field")
	errNotScalar    = errors.New("value must be a string, number or boolean")
	errNewline      = errors.New("value contains a line break")
	errNotASCII     = errors.New("value contains a byte outside printable ASCII")
	errNotObject    = errors.New("payload is not an object")
)

// DoorState sets the door state shown on the clock: "<cmd> <s>".
type DoorState struct {
	Cmd string
	S   string
}

func (DoorState) Kind() EventKind { return KindDoorState }

func (d DoorState) Command() (string, error) {
	return build(KindDoorState, "cmd", d.Cmd, "s", d.S)
}

// ClockConfig configures the clock: "<cmd> <e> <t> <p> <s>".
type ClockConfig struct {
	Cmd string
	E   string
	T   string
	P   string
	S   string
}

func (ClockConfig) Kind() EventKind { return KindClockConfig }

func (c ClockConfig) Command() (string, error) {
	return build(KindClockConfig, "cmd", c.Cmd, "e", c.E, "t", c.T, "p", c.P, "s", c.S)
}

// ClimateData pushes temperature and pressure readings: "<cmd> <t> <p>".
type ClimateData struct {
	Cmd string
	T   string
	P   string
}

func (ClimateData) Kind() EventKind { return KindClimateData }

func (c ClimateData) Command() (string, error) {
	return build(KindClimateData, "cmd", c.Cmd, "t", c.T, "p", c.P)
}

// DecodePayload decodes a JSON object into the typed payload for kind.
// Fields are not checked for presence until Command is called.
func DecodePayload(kind EventKind, data []byte) (Payload, error) {
	switch kind {
	case KindDoorState:
		f, err := decodeFields(kind, data, "cmd", "s")
		if err != nil {
			return nil, err
		}
		return DoorState{Cmd: f["cmd"], S: f["s"]}, nil
	case KindClockConfig:
		f, err := decodeFields(kind, data, "cmd", "e", "t", "p", "s")
		if err != nil {
			return nil, err
		}
		return ClockConfig{Cmd: f["cmd"], E: f["e"], T: f["t"], P: f["p"], S: f["s"]}, nil
	case KindClimateData:
		f, err := decodeFields(kind, data, "cmd", "t", "p")
		if err != nil {
			return nil, err
		}
		return ClimateData{Cmd: f["cmd"], T: f["t"], P: f["p"]}, nil
	default:
		return nil, &PayloadError{Kind: kind, Err: ErrUnknownEvent}
	}
}

// FormatCommand decodes data for kind and builds its command line.
func FormatCommand(kind EventKind, data []byte) (string, error) {
	p, err := DecodePayload(kind, data)
	if err != nil {
		return "", err
	}
	return p.Command()
}

func decodeFields(kind EventKind, data []byte, names ...string) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &PayloadError{Kind: kind, Err: err}
	}
	if raw == nil {
		return nil, &PayloadError{Kind: kind, Err: errNotObject}
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		v, err := scalar(raw[name])
		if err != nil {
			return nil, &PayloadError{Kind: kind, Field: name, Err: err}
		}
		out[name] = v
	}
	return out, nil
}

// scalar renders a JSON value the way it appears in a command.
// Numbers keep their literal text; null and absent values are empty.
func scalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", errNotScalar
	default:
		return string(raw), nil
	}
}

// build joins name/value pairs into a command after checking every value.
func build(kind EventKind, pairs ...string) (string, error) {
	values := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, value := pairs[i], pairs[i+1]
		if value == "" {
			return "", &PayloadError{Kind: kind, Field: name, Err: errMissingField}
		}
		if strings.ContainsAny(value, "\r\n") {
			return "", &PayloadError{Kind: kind, Field: name, Err: errNewline}
		}
		if !printableASCII(value) {
			return "", &PayloadError{Kind: kind, Field: name, Err: errNotASCII}
		}
		values = append(values, value)
	}
	return strings.Join(values, " "), nil
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
