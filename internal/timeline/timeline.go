// Package timeline projects the message list into what a chat screen shows:
// day/time headers between bursts of messages, bubble side and read ticks.
package timeline

import (
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/duochat/internal/store"
)

// HeaderGap is the minimum silence between two messages that starts a new
// header.
const HeaderGap = time.Hour

// HeaderLayout renders a header as weekday and 24h time, e.g. "Monday 15:04".
const HeaderLayout = "Monday 15:04"

// Entry is one rendered message.
type Entry struct {
	Message    store.Message
	ShowHeader bool
	Header     string
	// Mine is set when the message was sent by the persona viewing the chat.
	Mine      bool
	ShowTicks bool
	Read      bool
}

// Timeline is the rendered view of a conversation for one persona.
type Timeline struct {
	Viewer  store.Persona
	Entries []Entry
}

// ShouldShowTimestamp reports whether msgs[i] opens a new burst. The first
// message always does.
func ShouldShowTimestamp(i int, msgs []store.Message) bool {
	if i <= 0 || i >= len(msgs) {
		return i == 0 && len(msgs) > 0
	}
	gap := msgs[i].Timestamp.Sub(msgs[i-1].Timestamp)
	return gap.Truncate(time.Hour) >= HeaderGap
}

// HeaderLabel formats t for a header, in t's location.
func HeaderLabel(t time.Time) string {
	return t.Format(HeaderLayout)
}

// Build renders msgs, which must already be time-ordered, as seen by viewer.
func Build(msgs []store.Message, viewer store.Persona) Timeline {
	entries := lo.Map(msgs, func(msg store.Message, i int) Entry {
		mine := msg.Sender == viewer
		entry := Entry{
			Message:    msg,
			ShowHeader: ShouldShowTimestamp(i, msgs),
			Mine:       mine,
			ShowTicks:  mine,
			Read:       msg.IsRead,
		}
		if entry.ShowHeader {
			entry.Header = HeaderLabel(msg.Timestamp)
		}
		return entry
	})
	return Timeline{Viewer: viewer, Entries: entries}
}
