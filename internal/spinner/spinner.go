// Package spinner shows progress for long-running steps such as model
// training on an interactive terminal.
package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const interval = 80 * time.Millisecond

// Start shows message on w until the returned stop function is called. On
// an interactive terminal the message is animated and cleared on stop;
// anywhere else it is written once as a line. stop is safe to call more
// than once.
func Start(w io.Writer, message string) (stop func()) {
	if !isTerminal(w) {
		fmt.Fprintln(w, message)
		return func() {}
	}

	done := make(chan struct{})
	cleared := make(chan struct{})
	go func() {
		defer close(cleared)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], message)
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", runewidth.StringWidth(message)+2))
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-cleared
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
