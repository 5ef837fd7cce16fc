// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New returns a console logger writing to w at the named level. verbose
// forces debug regardless of level.
func New(w io.Writer, level string, verbose bool) (zerolog.Logger, error) {
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	lvl := zerolog.DebugLevel
	if !verbose {
		parsed, err := ParseLevel(level)
		if err != nil {
			return zerolog.Nop(), err
		}
		lvl = parsed
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: !isTerminal(w)}
	return zerolog.New(out).With().Timestamp().Logger().Level(lvl), nil
}

// ParseLevel parses a level name. An empty name means warn.
func ParseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("could not parse log level %q: %w", level, err)
	}
	return lvl, nil
}

type fdWriter interface {
	Fd() uintptr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(fdWriter)
	return ok && isatty.IsTerminal(f.Fd())
}
