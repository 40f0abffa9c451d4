package log

import "github.com/bft-labs/clockbridge/internal/ports"

// Noop discards every log line.
type Noop struct{}

func (Noop) Debug(msg string, fields ...ports.Field) {}
func (Noop) Info(msg string, fields ...ports.Field)  {}
func (Noop) Warn(msg string, fields ...ports.Field)  {}
func (Noop) Error(msg string, fields ...ports.Field) {}

var _ ports.Logger = Noop{}
