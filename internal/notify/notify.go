// Package notify is the user-facing prompt surface: transient messages
// with an optional action and a deadline after which the prompt
// resolves as not acted on.
package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Notifier shows text to the user. When actionLabel is non-empty the
// user may trigger the action within wait; the call resolves false when
// the deadline passes without a response. With an empty actionLabel the
// message is fire-and-forget and Notify returns immediately.
type Notifier interface {
	Notify(ctx context.Context, text, actionLabel string, wait time.Duration) (clicked bool, err error)
}

// Terminal prompts on a terminal: the action triggers when the user
// presses enter before the deadline.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

func (t *Terminal) Notify(ctx context.Context, text, actionLabel string, wait time.Duration) (bool, error) {
	if actionLabel == "" {
		fmt.Fprintln(t.Out, text)
		return false, nil
	}

	fmt.Fprintf(t.Out, "%s  [press enter to %s, %s to ignore]\n", text, actionLabel, wait.Round(time.Second))

	lines := make(chan string, 1)
	go func() {
		// The goroutine outlives an expired prompt and is collected on
		// the next read or process exit; fine for an interactive tool.
		r := bufio.NewReader(t.In)
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			// Closed input is not a click.
			return
		}
		lines <- strings.TrimSpace(line)
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-lines:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
