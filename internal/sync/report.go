package sync

import (
	"fmt"
	"time"

	"github.com/beekhof/ecampus-sync/internal/calendar"
)

// State is a step of a sync run.
type State int

const (
	StateStart State = iota
	StateResolvingCalendar
	StateFetchingFeed
	StateMapping
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateResolvingCalendar:
		return "RESOLVING_CALENDAR"
	case StateFetchingFeed:
		return "FETCHING_FEED"
	case StateMapping:
		return "MAPPING"
	case StatePersisting:
		return "PERSISTING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Action is what happened to one source event.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionFailed  Action = "failed"
)

// Outcome is the result for one source event.
type Outcome struct {
	// Index is the position of the event in the feed, starting at 0.
	Index    int
	Title    string
	Key      string
	Identity string
	Action   Action
	Err      error
}

// Report summarizes a sync run.
type Report struct {
	Calendar calendar.Calendar
	State    State
	// Err is the reason for StateFailed.
	Err      error
	Total    int
	Outcomes []Outcome
	// Remembered is the number of events the identity store holds for the
	// calendar after the run; zero without deduplication.
	Remembered int
	Started    time.Time
	Finished   time.Time
}

func (r *Report) count(a Action) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == a {
			n++
		}
	}
	return n
}

// Created returns the number of events created on the destination.
func (r *Report) Created() int { return r.count(ActionCreated) }

// Updated returns the number of events updated in place.
func (r *Report) Updated() int { return r.count(ActionUpdated) }

// Failed returns the number of events that could not be written.
func (r *Report) Failed() int { return r.count(ActionFailed) }

// Skipped returns the number of feed events never attempted because the run aborted.
func (r *Report) Skipped() int {
	return r.Total - len(r.Outcomes)
}

// Summary is a one-line description of the run for the log.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%s: %d events, %d created, %d updated, %d failed",
		r.State, r.Total, r.Created(), r.Updated(), r.Failed())
	if skipped := r.Skipped(); skipped > 0 {
		s += fmt.Sprintf(", %d skipped", skipped)
	}
	if r.Remembered > 0 {
		s += fmt.Sprintf(", %d remembered", r.Remembered)
	}
	if !r.Finished.IsZero() {
		s += fmt.Sprintf(" in %s", r.Finished.Sub(r.Started).Round(time.Millisecond))
	}
	return s
}
