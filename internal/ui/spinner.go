package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner animates a loading indicator on a terminal stream while a one-shot
// command waits on the node. The dashboard draws its own spinner frames.
type Spinner struct {
	w      io.Writer
	frames []string
	msg    string
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a spinner writing to w, normally stderr. Pass
// io.Discard to disable it when w is not a terminal.
func NewSpinner(w io.Writer, msg string) *Spinner {
	return &Spinner{
		w:      w,
		frames: spinnerFrames,
		msg:    msg,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins the spinner animation in a goroutine.
func (s *Spinner) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s  %s", StyleChain.Render(s.frames[i%len(s.frames)]), s.msg)
			select {
			case <-s.stop:
				fmt.Fprintf(s.w, "\r%-60s\r", "")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the spinner and waits for it to clear its line. It is safe to
// call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
}
