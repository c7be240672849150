// Package spinner draws a text progress indicator while a blocking call runs.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	frames = `|/-\`
	delay  = 50 * time.Millisecond
)

// Spinner is a handle to one running indicator. Each blocking operation gets
// its own handle; Stop must be called before the operation returns.
type Spinner struct {
	w       io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Start begins drawing message followed by a rotating frame on w.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Spinner) run() {
	defer close(s.done)

	ticker := time.NewTicker(delay)
	defer ticker.Stop()

	for i := 0; ; i++ {
		fmt.Fprintf(s.w, "\r%s %c", s.message, frames[i%len(frames)])
		select {
		case <-s.stop:
			// Blank out the line we drew.
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+2))
			return
		case <-ticker.C:
		}
	}
}

// Stop halts the indicator and waits for its goroutine to exit. It is safe
// to call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
