package supervise

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// WriterSink streams output lines to an io.Writer (the user-visible log
// surface).
type WriterSink struct {
	W io.Writer
}

// Line writes one output line.
func (s WriterSink) Line(text string) {
	fmt.Fprintln(s.W, text)
}

// CaptureSink records output lines while optionally forwarding them to
// another sink. The dispatcher uses the captured text to recognize
// diagnostics (e.g. mpytool's multiple-ports listing) after the process
// exits.
type CaptureSink struct {
	// Next receives each line after capture; may be nil.
	Next OutputSink

	mu    sync.Mutex
	lines []string
}

// Line records and forwards one output line.
func (s *CaptureSink) Line(text string) {
	s.mu.Lock()
	s.lines = append(s.lines, text)
	s.mu.Unlock()
	if s.Next != nil {
		s.Next.Line(text)
	}
}

// Lines returns a copy of the captured lines.
func (s *CaptureSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// String returns the captured output joined with newlines.
func (s *CaptureSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.lines, "\n")
}
