package timeline

import (
	"testing"
	"time"

	"github.com/vovakirdan/duochat/internal/store"
)

var base = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC) // a Monday

func at(offset time.Duration) store.Message {
	return store.Message{Timestamp: base.Add(offset)}
}

func TestShouldShowTimestamp(t *testing.T) {
	msgs := []store.Message{
		at(0),
		at(59 * time.Minute),
		at(59*time.Minute + time.Hour),
		at(3*time.Hour + 30*time.Minute),
	}

	cases := []struct {
		name string
		i    int
		want bool
	}{
		{"first message", 0, true},
		{"under an hour", 1, false},
		{"exactly an hour", 2, true},
		{"over an hour", 3, true},
		{"out of range", 4, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldShowTimestamp(tc.i, msgs); got != tc.want {
				t.Fatalf("ShouldShowTimestamp(%d) = %v, want %v", tc.i, got, tc.want)
			}
		})
	}

	if ShouldShowTimestamp(0, nil) {
		t.Fatalf("empty list must not show a header")
	}
}

func TestHeaderLabel(t *testing.T) {
	if got := HeaderLabel(base); got != "Monday 09:30" {
		t.Fatalf("unexpected header %q", got)
	}
	if got := HeaderLabel(base.Add(30 * time.Hour)); got != "Tuesday 15:30" {
		t.Fatalf("unexpected header %q", got)
	}
}

func TestBuild(t *testing.T) {
	msgs := []store.Message{
		{ID: "1", Sender: store.PersonaPrimary, Timestamp: base, IsRead: true},
		{ID: "2", Sender: store.PersonaSecondary, Timestamp: base.Add(time.Minute)},
		{ID: "3", Sender: store.PersonaSecondary, Timestamp: base.Add(2 * time.Hour)},
	}

	tl := Build(msgs, store.PersonaPrimary)
	if tl.Viewer != store.PersonaPrimary || len(tl.Entries) != 3 {
		t.Fatalf("unexpected timeline: %+v", tl)
	}

	first := tl.Entries[0]
	if !first.ShowHeader || first.Header != "Monday 09:30" || !first.Mine || !first.ShowTicks || !first.Read {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	second := tl.Entries[1]
	if second.ShowHeader || second.Header != "" || second.Mine || second.ShowTicks {
		t.Fatalf("unexpected second entry: %+v", second)
	}
	if !tl.Entries[2].ShowHeader || tl.Entries[2].Header != "Monday 11:30" {
		t.Fatalf("expected header on third entry: %+v", tl.Entries[2])
	}

	flipped := Build(msgs, store.PersonaSecondary)
	if flipped.Entries[0].Mine || !flipped.Entries[1].Mine || !flipped.Entries[1].ShowTicks {
		t.Fatalf("viewer did not flip bubble sides: %+v", flipped.Entries)
	}
}

func TestBuildEmpty(t *testing.T) {
	tl := Build(nil, store.PersonaPrimary)
	if len(tl.Entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(tl.Entries))
	}
}
