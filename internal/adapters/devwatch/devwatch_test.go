package devwatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/clockbridge/internal/ports"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, fields ...ports.Field) {}
func (nopLogger) Info(msg string, fields ...ports.Field)  {}
func (nopLogger) Warn(msg string, fields ...ports.Field)  {}
func (nopLogger) Error(msg string, fields ...ports.Field) {}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestNew_Defaults(t *testing.T) {
	w := New(Config{}, nopLogger{})
	if w.cfg.Dir != "/dev" {
		t.Errorf("Dir = %q, want /dev", w.cfg.Dir)
	}
	if len(w.cfg.Patterns) != len(DefaultPatterns) {
		t.Errorf("Patterns = %v", w.cfg.Patterns)
	}
	if w.cfg.DebounceDelay != 250*time.Millisecond {
		t.Errorf("DebounceDelay = %v", w.cfg.DebounceDelay)
	}
}

func TestWatcher_Matches(t *testing.T) {
	w := New(Config{}, nopLogger{})
	tests := []struct {
		name string
		want bool
	}{
		{"ttyUSB0", true},
		{"ttyACM3", true},
		{"cu.usbserial-A1", true},
		{"ttyS0", false},
		{"null", false},
	}
	for _, tt := range tests {
		if got := w.matches(tt.name); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestWatcher_SignalsOnMatchingCreate(t *testing.T) {
	dir := t.TempDir()
	w := New(Config{Dir: dir, DebounceDelay: 10 * time.Millisecond}, nopLogger{})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	defer w.Close()

	touch(t, dir, "notes.txt")
	select {
	case <-w.C():
		t.Fatal("signalled for a non-device file")
	case <-time.After(100 * time.Millisecond):
	}

	touch(t, dir, "ttyUSB0")
	touch(t, dir, "ttyUSB1")
	select {
	case <-w.C():
	case <-time.After(2 * time.Second):
		t.Fatal("no signal after device node created")
	}

	select {
	case <-w.C():
		t.Error("burst produced more than one signal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcher_StartMissingDir(t *testing.T) {
	w := New(Config{Dir: filepath.Join(t.TempDir(), "missing")}, nopLogger{})
	if err := w.Start(context.Background()); err == nil {
		t.Error("Start() on missing dir = nil, want error")
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
