// Package mapper turns feed events into destination events.
package mapper

import (
	"strings"

	"github.com/beekhof/ecampus-sync/internal/calendar"
	"github.com/beekhof/ecampus-sync/internal/feed"
)

// DefaultPlaceholder is the title of events whose feed entry has no summary.
const DefaultPlaceholder = "Untitled event"

// Mapper converts source events to destination events.
//
// By default every property is copied verbatim and in order, and absent
// values become "". Renames and Exclude are the only rules that change the
// property list; both are empty unless configured. Names that clash with
// properties the destination sets itself (UID, DTSTAMP, ...) are passed
// through unchanged.
type Mapper struct {
	// Placeholder is used as title when the source has no usable SUMMARY.
	Placeholder string
	// Renames maps an upper-cased source property name to the destination name.
	Renames map[string]string
	// Exclude lists upper-cased property names that are not copied.
	Exclude map[string]bool
}

// New creates a Mapper. renames and exclude are matched case-insensitively.
func New(placeholder string, renames map[string]string, exclude []string) *Mapper {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	m := &Mapper{
		Placeholder: placeholder,
		Renames:     make(map[string]string, len(renames)),
		Exclude:     make(map[string]bool, len(exclude)),
	}
	for from, to := range renames {
		m.Renames[strings.ToUpper(from)] = to
	}
	for _, name := range exclude {
		m.Exclude[strings.ToUpper(name)] = true
	}
	return m
}

// Map builds the destination event for src. The result has no identity
// and no calendar; the sync driver fills those in.
func (m *Mapper) Map(src feed.Event) calendar.DestinationEvent {
	dest := calendar.DestinationEvent{
		Title:      m.title(src),
		Properties: make([]calendar.Property, 0, len(src.Properties)),
	}

	for _, p := range src.Properties {
		key := strings.ToUpper(p.Name)
		if m.Exclude[key] {
			continue
		}

		name := p.Name
		if renamed, ok := m.Renames[key]; ok {
			name = renamed
		}

		value := ""
		if p.Value != nil {
			value = *p.Value
		}

		dest.Properties = append(dest.Properties, calendar.Property{
			Name:   name,
			Value:  value,
			Params: copyParams(p.Params),
		})
	}

	return dest
}

// Timezones converts the feed's VTIMEZONE definitions, keyed by TZID.
// Renames and Exclude do not apply to them.
func (m *Mapper) Timezones(src []feed.Component) map[string]calendar.Group {
	out := make(map[string]calendar.Group, len(src))
	for _, tz := range src {
		if id := tz.TZID(); id != "" {
			out[id] = groupFrom(tz)
		}
	}
	return out
}

// AttachTimezones adds to dest the definitions of the TZIDs it uses.
// TZIDs without a definition in tzs are left to the server.
func AttachTimezones(dest *calendar.DestinationEvent, tzs map[string]calendar.Group) {
	for _, id := range dest.TZIDs() {
		if tz, ok := tzs[id]; ok {
			dest.Timezones = append(dest.Timezones, tz)
		}
	}
}

func groupFrom(c feed.Component) calendar.Group {
	g := calendar.Group{Name: c.Name}
	for _, p := range c.Properties {
		value := ""
		if p.Value != nil {
			value = *p.Value
		}
		g.Properties = append(g.Properties, calendar.Property{Name: p.Name, Value: value, Params: copyParams(p.Params)})
	}
	for _, child := range c.Children {
		g.Children = append(g.Children, groupFrom(child))
	}
	return g
}

func (m *Mapper) title(src feed.Event) string {
	if summary := strings.TrimSpace(src.ValueOf("SUMMARY")); summary != "" {
		return summary
	}
	if m.Placeholder == "" {
		return DefaultPlaceholder
	}
	return m.Placeholder
}

func copyParams(params map[string][]string) map[string][]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string][]string, len(params))
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	return out
}
