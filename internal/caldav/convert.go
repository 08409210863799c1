package caldav

import (
	"path"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/emersion/go-ical"

	"github.com/beekhof/ecampus-sync/internal/calendar"
)

// ProductID is the PRODID of every calendar object written by the client.
const ProductID = "-//beekhof//ecampus-sync//EN"

// toICal builds the calendar object stored for event. Properties are added
// in the event's order; a blank SUMMARY falls back to the title, and UID and
// DTSTAMP are filled in only when the event has none. The event's VTIMEZONE
// definitions precede the VEVENT.
func toICal(event *calendar.DestinationEvent, uid string, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, tz := range event.Timezones {
		cal.Children = append(cal.Children, toComponent(tz))
	}

	vevent := ical.NewEvent()
	for _, p := range event.Properties {
		vevent.Props.Add(toProp(p))
	}

	if summary := vevent.Props.Get(ical.PropSummary); summary == nil || strings.TrimSpace(summary.Value) == "" {
		vevent.Props.SetText(ical.PropSummary, event.Title)
	}
	if existing := vevent.Props.Get(ical.PropUID); existing == nil || existing.Value == "" {
		vevent.Props.SetText(ical.PropUID, uid)
	}
	if vevent.Props.Get(ical.PropDateTimeStamp) == nil {
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	}

	for _, group := range event.Children {
		vevent.Children = append(vevent.Children, toComponent(group))
	}

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}

func toComponent(group calendar.Group) *ical.Component {
	comp := ical.NewComponent(strings.ToUpper(group.Name))
	for _, p := range group.Properties {
		comp.Props.Add(toProp(p))
	}
	for _, child := range group.Children {
		comp.Children = append(comp.Children, toComponent(child))
	}
	return comp
}

// toProp converts a destination property. Values arrive unescaped, so TEXT
// values are escaped again using the same typing rules the feed parser
// used to unescape them.
func toProp(p calendar.Property) *ical.Prop {
	prop := ical.NewProp(p.Name)
	for k, v := range p.Params {
		prop.Params[strings.ToUpper(k)] = append([]string(nil), v...)
	}

	typed := ics.BaseProperty{IANAToken: strings.ToUpper(p.Name), ICalParameters: p.Params}
	if typed.GetValueType() == ics.ValueDataTypeText {
		prop.Value = ics.ToText(p.Value)
	} else {
		prop.Value = p.Value
	}
	return prop
}

// objectPath returns the path of a new calendar object inside calendarPath.
func objectPath(calendarPath, uid string) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + uid + ".ics"
}

// uidFromPath recovers the UID a path from objectPath was built with.
func uidFromPath(objPath string) string {
	return strings.TrimSuffix(path.Base(objPath), ".ics")
}
