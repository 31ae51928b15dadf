package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/vovakirdan/duochat/internal/timeline"
)

const bubbleIndent = 24

// renderTimeline prints one line per message: the viewer's own messages
// indented to the right with read ticks, the counterpart's on the left.
func renderTimeline(w io.Writer, tl timeline.Timeline) error {
	for _, e := range tl.Entries {
		if e.ShowHeader {
			if _, err := fmt.Fprintf(w, "%s-- %s --\n", strings.Repeat(" ", bubbleIndent/2), e.Header); err != nil {
				return err
			}
		}

		line := e.Message.Content
		if e.Mine {
			line = strings.Repeat(" ", bubbleIndent) + line + " " + ticks(e.Read)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func ticks(read bool) string {
	if read {
		return "✓✓"
	}
	return "✓"
}
