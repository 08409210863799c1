package calendar

import (
	"context"
	"log"
)

// Resolve lists the calendars visible through lister and returns the one
// whose name equals name exactly (case-sensitive, no normalization).
func Resolve(ctx context.Context, lister Lister, name string) (Calendar, error) {
	calendars, err := lister.ListCalendars(ctx)
	if err != nil {
		return Calendar{}, &DiscoveryError{Err: err}
	}

	var matches []Calendar
	names := make([]string, 0, len(calendars))
	for _, cal := range calendars {
		names = append(names, cal.Name)
		if cal.Name == name {
			matches = append(matches, cal)
		}
	}

	switch len(matches) {
	case 0:
		return Calendar{}, &CalendarNotFoundError{Name: name, Available: names}
	case 1:
		log.Printf("Resolved calendar %q at %s", name, matches[0].URL)
		return matches[0], nil
	default:
		return Calendar{}, &AmbiguousCalendarError{Name: name, Matches: matches}
	}
}
