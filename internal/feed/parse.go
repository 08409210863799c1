package feed

import (
	"errors"
	"fmt"
	"io"

	ics "github.com/arran4/golang-ical"
)

var errNoCalendar = errors.New("no VCALENDAR in document")

// Parse reads an iCalendar document and returns its first calendar object.
// Content after the first END:VCALENDAR is ignored.
//
// Parse returns errNoCalendar when the document holds no calendar at all;
// Fetcher turns that into an EmptyFeedError. Any other error is a parse
// failure.
func Parse(r io.Reader) (*Calendar, error) {
	cs := ics.NewCalendarStream(r)

	var cal *Calendar
	for {
		l, err := cs.ReadLine()
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read content line: %w", err)
		}

		if l != nil && len(*l) > 0 {
			line, perr := ics.ParseProperty(*l)
			if perr != nil {
				return nil, fmt.Errorf("malformed content line: %w", perr)
			}
			if line == nil {
				return nil, fmt.Errorf("malformed content line %q", truncate(string(*l), 40))
			}

			if cal == nil {
				if line.IANAToken != "BEGIN" || line.Value != string(ics.ComponentVCalendar) {
					return nil, fmt.Errorf("expected BEGIN:VCALENDAR, got %s", line.IANAToken)
				}
				cal = &Calendar{}
			} else {
				switch line.IANAToken {
				case "END":
					if line.Value != string(ics.ComponentVCalendar) {
						return nil, fmt.Errorf("unbalanced END:%s after %d events", line.Value, len(cal.Events))
					}
					return cal, nil
				case "BEGIN":
					co, cerr := ics.GeneralParseComponent(cs, line)
					if cerr != nil {
						return nil, fmt.Errorf("failed to parse %s after %d events: %w", line.Value, len(cal.Events), cerr)
					}
					switch co := co.(type) {
					case *ics.VEvent:
						cal.Events = append(cal.Events, eventFrom(co))
					case *ics.VTimezone:
						cal.Timezones = append(cal.Timezones, componentFrom(co))
					}
				default:
					cal.Properties = append(cal.Properties, propertyFrom(*line))
				}
			}
		}

		if err == io.EOF {
			break
		}
	}

	if cal == nil {
		return nil, errNoCalendar
	}
	return nil, errors.New("unexpected end of document: VCALENDAR not closed")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// componentFrom copies a component with its nested components, e.g. a
// VTIMEZONE with its STANDARD and DAYLIGHT rules.
func componentFrom(c ics.Component) Component {
	out := Component{Name: componentName(c)}
	for _, p := range c.UnknownPropertiesIANAProperties() {
		out.Properties = append(out.Properties, propertyFrom(p.BaseProperty))
	}
	for _, child := range c.SubComponents() {
		out.Children = append(out.Children, componentFrom(child))
	}
	return out
}

func eventFrom(ev *ics.VEvent) Event {
	props := ev.UnknownPropertiesIANAProperties()
	out := Event{Properties: make([]Property, 0, len(props))}
	for _, p := range props {
		out.Properties = append(out.Properties, propertyFrom(p.BaseProperty))
	}
	for _, child := range ev.SubComponents() {
		out.Children = append(out.Children, componentName(child))
	}
	return out
}

func propertyFrom(p ics.BaseProperty) Property {
	out := Property{Name: p.IANAToken}
	if p.Value != "" {
		v := p.Value
		out.Value = &v
	}
	if len(p.ICalParameters) > 0 {
		out.Params = make(map[string][]string, len(p.ICalParameters))
		for k, v := range p.ICalParameters {
			out.Params[k] = append([]string(nil), v...)
		}
	}
	return out
}

func componentName(c ics.Component) string {
	switch c := c.(type) {
	case *ics.VAlarm:
		return string(ics.ComponentVAlarm)
	case *ics.VTimezone:
		return string(ics.ComponentVTimezone)
	case *ics.Standard:
		return string(ics.ComponentStandard)
	case *ics.Daylight:
		return string(ics.ComponentDaylight)
	case *ics.GeneralComponent:
		return c.Token
	default:
		return fmt.Sprintf("%T", c)
	}
}
