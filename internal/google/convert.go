package google

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/beekhof/ecampus-sync/internal/calendar"
)

// toGoogleEvent converts a destination event. SUMMARY, DESCRIPTION,
// LOCATION, DTSTART, DTEND and TRANSP map onto event fields, RRULE, RDATE
// and EXDATE onto the recurrence lines; every other property is kept as a
// private extended property under its own name.
func toGoogleEvent(event *calendar.DestinationEvent) (*gcal.Event, error) {
	gev := &gcal.Event{Summary: event.Title}
	private := make(map[string]string)

	for _, p := range event.Properties {
		switch strings.ToUpper(p.Name) {
		case ical.PropSummary:
			// Title already carries the summary or its placeholder.
		case ical.PropDescription:
			gev.Description = p.Value
		case ical.PropLocation:
			gev.Location = p.Value
		case ical.PropDateTimeStart:
			start, err := eventDateTime(p)
			if err != nil {
				return nil, fmt.Errorf("invalid DTSTART %q: %w", p.Value, err)
			}
			gev.Start = start
		case ical.PropDateTimeEnd:
			end, err := eventDateTime(p)
			if err != nil {
				return nil, fmt.Errorf("invalid DTEND %q: %w", p.Value, err)
			}
			gev.End = end
		case ical.PropRecurrenceRule:
			if _, err := rrule.StrToROption(p.Value); err != nil {
				return nil, fmt.Errorf("invalid RRULE %q: %w", p.Value, err)
			}
			gev.Recurrence = append(gev.Recurrence, contentLine(p))
		case ical.PropRecurrenceDates, ical.PropExceptionDates:
			gev.Recurrence = append(gev.Recurrence, contentLine(p))
		case ical.PropTransparency:
			if strings.EqualFold(p.Value, "TRANSPARENT") {
				gev.Transparency = "transparent"
			}
		default:
			addPrivate(private, strings.ToUpper(p.Name), p.Value)
		}
	}

	if gev.Start == nil {
		return nil, fmt.Errorf("event %q has no DTSTART", event.Title)
	}
	if gev.End == nil {
		gev.End = defaultEnd(gev.Start)
	}
	if len(private) > 0 {
		gev.ExtendedProperties = &gcal.EventExtendedProperties{Private: private}
	}
	return gev, nil
}

// eventDateTime parses a DTSTART/DTEND value. All-day values become a
// Date; everything else an RFC 3339 DateTime, floating times read as UTC.
func eventDateTime(p calendar.Property) (*gcal.EventDateTime, error) {
	prop := ical.NewProp(p.Name)
	prop.Value = p.Value
	for k, v := range p.Params {
		prop.Params[strings.ToUpper(k)] = v
	}

	if prop.Params.Get(ical.ParamValue) == string(ical.ValueDate) || len(p.Value) == len("20060102") {
		d, err := time.Parse("20060102", p.Value)
		if err != nil {
			return nil, err
		}
		return &gcal.EventDateTime{Date: d.Format("2006-01-02")}, nil
	}

	t, err := prop.DateTime(time.UTC)
	if err != nil {
		return nil, err
	}
	return &gcal.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: prop.Params.Get(ical.PropTimezoneID),
	}, nil
}

// defaultEnd gives events without DTEND a one-day (all-day) or
// zero-length (timed) duration.
func defaultEnd(start *gcal.EventDateTime) *gcal.EventDateTime {
	if start.Date != "" {
		d, _ := time.Parse("2006-01-02", start.Date)
		return &gcal.EventDateTime{Date: d.AddDate(0, 0, 1).Format("2006-01-02")}
	}
	return &gcal.EventDateTime{DateTime: start.DateTime, TimeZone: start.TimeZone}
}

// addPrivate stores name=value, numbering repeated names NAME-2, NAME-3, ...
func addPrivate(private map[string]string, name, value string) {
	key := name
	for n := 2; ; n++ {
		if _, taken := private[key]; !taken {
			break
		}
		key = fmt.Sprintf("%s-%d", name, n)
	}
	private[key] = value
}

// contentLine renders p as NAME;PARAM=VALUE:value for the recurrence field.
func contentLine(p calendar.Property) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(p.Name))

	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", strings.ToUpper(k), strings.Join(p.Params[k], ","))
	}

	b.WriteString(":")
	b.WriteString(p.Value)
	return b.String()
}
