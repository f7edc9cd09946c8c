package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner animates a loading indicator on a line of w, normally stderr so
// reports on stdout stay clean. The bubbletea shell has its own.
type Spinner struct {
	w      io.Writer
	frames []string
	msg    string
	stop   chan struct{}
	done   chan struct{}
	start  sync.Once
	once   sync.Once
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a spinner writing msg to w.
func NewSpinner(w io.Writer, msg string) *Spinner {
	return &Spinner{
		w:      w,
		frames: spinnerFrames,
		msg:    msg,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins the animation in a goroutine.
func (s *Spinner) Start() {
	s.start.Do(func() { go s.spin() })
}

func (s *Spinner) spin() {
	defer close(s.done)
	tick := time.NewTicker(80 * time.Millisecond)
	defer tick.Stop()
	for i := 0; ; i++ {
		fmt.Fprintf(s.w, "\r%s  %s", StyleAccent.Render(s.frames[i%len(s.frames)]), s.msg)
		select {
		case <-s.stop:
			fmt.Fprintf(s.w, "\r%-60s\r", "")
			return
		case <-tick.C:
		}
	}
}

// Stop halts the spinner and waits for the line to clear. Safe to call
// twice, or without Start.
func (s *Spinner) Stop() {
	s.start.Do(func() { close(s.done) })
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// StopWithMsg halts the spinner and prints a final line.
func (s *Spinner) StopWithMsg(msg string) {
	s.Stop()
	fmt.Fprintln(s.w, msg)
}
