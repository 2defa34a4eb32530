package ui

import "time"

// entry is one line item of the transcript.
type entry struct {
	Role      string // user, assistant, system
	Content   string
	Rendered  string
	Timestamp time.Time
}

type turnDeltaMsg struct {
	turn int
	text string
}

type turnDoneMsg struct {
	turn  int
	reply string
	err   error
}

type markdownRenderedMsg struct {
	index    int
	rendered string
}
