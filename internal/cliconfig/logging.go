package cliconfig

import (
	"io"

	logadapter "github.com/bft-labs/clockbridge/internal/adapters/log"
)

// Logger builds the process logger writing to w. Console format uses
// zerolog's ConsoleWriter with RFC3339 timestamps.
func (c Config) Logger(w io.Writer) (*logadapter.Zerolog, error) {
	level, err := logadapter.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return logadapter.NewZerolog(w, level, c.LogFormat != "json"), nil
}
