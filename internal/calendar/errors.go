package calendar

import (
	"fmt"
	"strings"
)

// DiscoveryError is a transport, auth or protocol failure while listing calendars.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("failed to list calendars: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// CalendarNotFoundError means discovery worked but no calendar has the
// requested name. Available lists the names the server returned.
type CalendarNotFoundError struct {
	Name      string
	Available []string
}

func (e *CalendarNotFoundError) Error() string {
	quoted := make([]string, len(e.Available))
	for i, n := range e.Available {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return fmt.Sprintf("calendar %q not found; available calendars: [%s]", e.Name, strings.Join(quoted, ", "))
}

// AmbiguousCalendarError means more than one calendar carries the requested name.
type AmbiguousCalendarError struct {
	Name    string
	Matches []Calendar
}

func (e *AmbiguousCalendarError) Error() string {
	urls := make([]string, len(e.Matches))
	for i, c := range e.Matches {
		urls[i] = c.URL
	}
	return fmt.Sprintf("calendar name %q is ambiguous: %d calendars match (%s)", e.Name, len(e.Matches), strings.Join(urls, ", "))
}
