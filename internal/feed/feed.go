// Package feed retrieves and parses the eCampus iCalendar feed.
package feed

import (
	"fmt"
	"strings"
)

// Property is a single NAME:VALUE pair of a source event.
// A nil Value means the value was absent in the document.
type Property struct {
	Name   string
	Value  *string
	Params map[string][]string
}

// Event is a VEVENT as it appeared in the feed, properties in document order.
type Event struct {
	Properties []Property
	// Children holds the names of nested components (e.g. VALARM).
	// They are not synced; the names only show up in the trace.
	Children []string
}

// Component is a non-event component of the feed, such as a VTIMEZONE.
type Component struct {
	Name       string
	Properties []Property
	Children   []Component
}

// Calendar is the first calendar object of a feed document.
type Calendar struct {
	Properties []Property
	Events     []Event
	// Timezones are the VTIMEZONE definitions the events' TZID parameters
	// refer to.
	Timezones []Component
}

// TZID returns the TZID property of a VTIMEZONE component.
func (c Component) TZID() string {
	for _, p := range c.Properties {
		if strings.EqualFold(p.Name, "TZID") && p.Value != nil {
			return *p.Value
		}
	}
	return ""
}

// Get returns the first property with the given name.
func (e Event) Get(name string) (Property, bool) {
	for _, p := range e.Properties {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Property{}, false
}

// ValueOf returns the value of the first property with the given name,
// or "" when the property is missing or its value is absent.
func (e Event) ValueOf(name string) string {
	p, ok := e.Get(name)
	if !ok || p.Value == nil {
		return ""
	}
	return *p.Value
}

// String renders the event's properties for the diagnostic trace.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString("[")
	for i, p := range e.Properties {
		if i > 0 {
			b.WriteString(", ")
		}
		if p.Value == nil {
			fmt.Fprintf(&b, "(%s, <absent>)", p.Name)
		} else {
			fmt.Fprintf(&b, "(%s, %q)", p.Name, *p.Value)
		}
	}
	b.WriteString("]")
	if len(e.Children) > 0 {
		fmt.Fprintf(&b, " children=%v", e.Children)
	}
	return b.String()
}
