package domain

import (
	"errors"
	"testing"
)

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		name string
		kind EventKind
		data string
		want string
	}{
		{"door state", KindDoorState, `{"cmd":"G","s":"1"}`, "G 1"},
		{"door state numeric", KindDoorState, `{"cmd":"G","s":0}`, "G 0"},
		{"clock config", KindClockConfig, `{"cmd":"C","e":1,"t":"12:30","p":-5,"s":true}`, "C 1 12:30 -5 true"},
		{"climate data", KindClimateData, `{"cmd":"W","t":21.5,"p":1013}`, "W 21.5 1013"},
		{"extra fields ignored", KindClimateData, `{"cmd":"W","t":"20","p":"990","x":"y"}`, "W 20 990"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatCommand(tt.kind, []byte(tt.data))
			if err != nil {
				t.Fatalf("FormatCommand() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FormatCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatCommand_Errors(t *testing.T) {
	tests := []struct {
		name      string
		kind      EventKind
		data      string
		wantField string
	}{
		{"malformed json", KindDoorState, `{"cmd":`, ""},
		{"not an object", KindDoorState, `null`, ""},
		{"array payload", KindClimateData, `[1,2]`, ""},
		{"missing field", KindDoorState, `{"cmd":"G"}`, "s"},
		{"null field", KindClockConfig, `{"cmd":"C","e":null,"t":"1","p":"2","s":"3"}`, "e"},
		{"empty field", KindClimateData, `{"cmd":"","t":"1","p":"2"}`, "cmd"},
		{"object field", KindClimateData, `{"cmd":"W","t":{"v":1},"p":"2"}`, "t"},
		{"newline in field", KindDoorState, `{"cmd":"G","s":"1\n2"}`, "s"},
		{"non-ascii in field", KindDoorState, `{"cmd":"G","s":"é"}`, "s"},
		{"nul in field", KindDoorState, `{"cmd":"G","s":"1\u0000"}`, "s"},
		{"tab in field", KindClimateData, `{"cmd":"W\t","t":"1","p":"2"}`, "cmd"},
		{"delete in field", KindClockConfig, `{"cmd":"C","e":"1","t":"2","p":"\u007f","s":"3"}`, "p"},
		{"unknown kind", EventKind(42), `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatCommand(tt.kind, []byte(tt.data))
			if err == nil {
				t.Fatalf("FormatCommand() = %q, want error", got)
			}
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("error %v does not match ErrInvalidPayload", err)
			}
			var pe *PayloadError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *PayloadError", err)
			}
			if pe.Field != tt.wantField {
				t.Errorf("PayloadError.Field = %q, want %q", pe.Field, tt.wantField)
			}
		})
	}
}

func TestDecodePayload_Variant(t *testing.T) {
	p, err := DecodePayload(KindClockConfig, []byte(`{"cmd":"C","e":"1","t":"2","p":"3","s":"4"}`))
	if err != nil {
		t.Fatalf("DecodePayload() unexpected error: %v", err)
	}
	cc, ok := p.(ClockConfig)
	if !ok {
		t.Fatalf("DecodePayload() returned %T, want ClockConfig", p)
	}
	if cc.Kind() != KindClockConfig {
		t.Errorf("Kind() = %v, want %v", cc.Kind(), KindClockConfig)
	}
	if cc.E != "1" || cc.S != "4" {
		t.Errorf("decoded %+v", cc)
	}
}

func TestKindForEvent(t *testing.T) {
	for _, k := range Kinds() {
		got, err := KindForEvent(k.EventName())
		if err != nil {
			t.Fatalf("KindForEvent(%q) unexpected error: %v", k.EventName(), err)
		}
		if got != k {
			t.Errorf("KindForEvent(%q) = %v, want %v", k.EventName(), got, k)
		}
	}

	if _, err := KindForEvent("gsna-unknown"); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("KindForEvent(unknown) error = %v, want ErrUnknownEvent", err)
	}
}

func TestEventKind_String(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{KindDoorState, "door-state"},
		{KindClockConfig, "clock-config"},
		{KindClimateData, "climate-data"},
		{EventKind(0), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("EventKind(%d).String() = %s, want %s", tt.kind, got, tt.want)
		}
	}
}
