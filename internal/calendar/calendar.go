// Package calendar holds the destination-side model shared by the mapper,
// the sync driver and the destination clients.
package calendar

import (
	"context"
	"strings"
)

// Calendar is a destination collection on the server.
type Calendar struct {
	Name string
	// URL is the server-relative locator: a CalDAV collection path or a
	// Google calendar ID.
	URL string
}

// Property is a destination NAME:VALUE pair. Value is never absent; a
// missing source value becomes "".
type Property struct {
	Name   string
	Value  string
	Params map[string][]string
}

// Group is a nested child property group (e.g. a VALARM, or a VTIMEZONE
// with its STANDARD and DAYLIGHT rules).
type Group struct {
	Name       string
	Properties []Property
	Children   []Group
}

// DestinationEvent is an event ready to be written to the destination.
type DestinationEvent struct {
	// Identity is the server handle of an existing event. Empty means the
	// event is created; non-empty means the event at Identity is replaced.
	Identity    string
	CalendarURL string
	// Title is the display title; never empty after mapping.
	Title      string
	Properties []Property
	Children   []Group
	// Timezones are VTIMEZONE definitions for the TZIDs the properties
	// use. They are stored next to the event, not inside it.
	Timezones []Group
}

// IsNew reports whether saving the event creates a new destination event.
func (e *DestinationEvent) IsNew() bool {
	return e.Identity == ""
}

// Value returns the value of the first property with the given name.
func (e *DestinationEvent) Value(name string) (string, bool) {
	for _, p := range e.Properties {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Lister enumerates the calendars visible to the authenticated principal.
type Lister interface {
	ListCalendars(ctx context.Context) ([]Calendar, error)
}

// Destination is a calendar server the sync writes into.
// CalDAV and Google Calendar clients implement it.
type Destination interface {
	Lister
	// SaveEvent creates the event when event.Identity is empty and
	// replaces the event at event.Identity otherwise. It returns the
	// identity of the written event.
	SaveEvent(ctx context.Context, event *DestinationEvent) (string, error)
}

// TZIDs returns the distinct TZID parameter values used by the event's
// properties, in order of first use.
func (e *DestinationEvent) TZIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, p := range e.Properties {
		for k, values := range p.Params {
			if !strings.EqualFold(k, "TZID") {
				continue
			}
			for _, v := range values {
				if v != "" && !seen[v] {
					seen[v] = true
					ids = append(ids, v)
				}
			}
		}
	}
	return ids
}
