package mapper

import (
	"testing"

	"github.com/beekhof/ecampus-sync/internal/feed"
)

func strPtr(s string) *string { return &s }

func TestMap_PreservesOrderAndNames(t *testing.T) {
	src := feed.Event{Properties: []feed.Property{
		{Name: "DTSTART", Value: strPtr("20240315T090000Z")},
		{Name: "SUMMARY", Value: strPtr("Midterm Exam")},
		{Name: "X-ECAMPUS-ROOM", Value: strPtr("H 1.01")},
		{Name: "DESCRIPTION", Value: strPtr("Bring ID")},
		{Name: "DTEND", Value: strPtr("20240315T110000Z")},
	}}

	got := New("", nil, nil).Map(src)

	if len(got.Properties) != len(src.Properties) {
		t.Fatalf("Expected %d properties, got %d", len(src.Properties), len(got.Properties))
	}
	for i, p := range src.Properties {
		if got.Properties[i].Name != p.Name {
			t.Errorf("Property %d: expected name %s, got %s", i, p.Name, got.Properties[i].Name)
		}
		if got.Properties[i].Value != *p.Value {
			t.Errorf("Property %d: expected value %q, got %q", i, *p.Value, got.Properties[i].Value)
		}
	}
	if !got.IsNew() {
		t.Error("Expected mapped event to carry no identity")
	}
}

func TestMap_AbsentValuesBecomeEmpty(t *testing.T) {
	src := feed.Event{Properties: []feed.Property{
		{Name: "SUMMARY", Value: strPtr("Lecture")},
		{Name: "DESCRIPTION"},
		{Name: "LOCATION", Value: nil},
	}}

	got := New("", nil, nil).Map(src)

	for _, name := range []string{"DESCRIPTION", "LOCATION"} {
		v, ok := got.Value(name)
		if !ok {
			t.Errorf("Expected %s to be kept", name)
			continue
		}
		if v != "" {
			t.Errorf("Expected %s to be empty, got %q", name, v)
		}
	}
}

func TestMap_Title(t *testing.T) {
	tests := []struct {
		name        string
		props       []feed.Property
		placeholder string
		want        string
	}{
		{
			name:  "uses source summary",
			props: []feed.Property{{Name: "SUMMARY", Value: strPtr("Midterm Exam")}},
			want:  "Midterm Exam",
		},
		{
			name:  "missing summary falls back to default placeholder",
			props: []feed.Property{{Name: "DTSTART", Value: strPtr("20240315T090000Z")}},
			want:  DefaultPlaceholder,
		},
		{
			name:        "blank summary falls back to configured placeholder",
			props:       []feed.Property{{Name: "SUMMARY", Value: strPtr("   ")}},
			placeholder: "eCampus",
			want:        "eCampus",
		},
		{
			name:        "absent summary value",
			props:       []feed.Property{{Name: "SUMMARY"}},
			placeholder: "eCampus",
			want:        "eCampus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.placeholder, nil, nil).Map(feed.Event{Properties: tt.props})
			if got.Title != tt.want {
				t.Errorf("Expected title %q, got %q", tt.want, got.Title)
			}
		})
	}
}

func TestMap_EmptyEvent(t *testing.T) {
	got := New("", nil, nil).Map(feed.Event{})
	if len(got.Properties) != 0 {
		t.Errorf("Expected no properties, got %d", len(got.Properties))
	}
	if got.Title == "" {
		t.Error("Expected a non-empty title")
	}
}

func TestMap_ReservedNamesPassThrough(t *testing.T) {
	src := feed.Event{Properties: []feed.Property{
		{Name: "UID", Value: strPtr("ecampus-123")},
		{Name: "DTSTAMP", Value: strPtr("20240101T000000Z")},
	}}

	got := New("", nil, nil).Map(src)

	if v, _ := got.Value("UID"); v != "ecampus-123" {
		t.Errorf("Expected UID to pass through, got %q", v)
	}
	if v, _ := got.Value("DTSTAMP"); v != "20240101T000000Z" {
		t.Errorf("Expected DTSTAMP to pass through, got %q", v)
	}
}

func TestMap_RenameAndExclude(t *testing.T) {
	src := feed.Event{Properties: []feed.Property{
		{Name: "SUMMARY", Value: strPtr("Lab")},
		{Name: "X-ROOM", Value: strPtr("B12")},
		{Name: "X-INTERNAL-ID", Value: strPtr("42")},
		{Name: "DTSTART", Value: strPtr("20240315T090000Z")},
	}}

	m := New("", map[string]string{"x-room": "LOCATION"}, []string{"x-internal-id"})
	got := m.Map(src)

	wantNames := []string{"SUMMARY", "LOCATION", "DTSTART"}
	if len(got.Properties) != len(wantNames) {
		t.Fatalf("Expected %d properties, got %d", len(wantNames), len(got.Properties))
	}
	for i, name := range wantNames {
		if got.Properties[i].Name != name {
			t.Errorf("Property %d: expected %s, got %s", i, name, got.Properties[i].Name)
		}
	}
	if v, _ := got.Value("LOCATION"); v != "B12" {
		t.Errorf("Expected renamed LOCATION to keep value B12, got %q", v)
	}
}

func TestMap_ParamsAreCopied(t *testing.T) {
	params := map[string][]string{"VALUE": {"DATE"}}
	src := feed.Event{Properties: []feed.Property{
		{Name: "DTSTART", Value: strPtr("20240401"), Params: params},
	}}

	got := New("", nil, nil).Map(src)
	params["VALUE"][0] = "DATE-TIME"

	if v := got.Properties[0].Params["VALUE"]; len(v) != 1 || v[0] != "DATE" {
		t.Errorf("Expected params to be copied, got %v", v)
	}
}

func TestTimezones_AttachOnlyUsedDefinitions(t *testing.T) {
	tz := func(id string) feed.Component {
		return feed.Component{
			Name:       "VTIMEZONE",
			Properties: []feed.Property{{Name: "TZID", Value: strPtr(id)}},
			Children: []feed.Component{{
				Name: "STANDARD",
				Properties: []feed.Property{
					{Name: "DTSTART", Value: strPtr("19701025T030000")},
					{Name: "TZOFFSETTO", Value: strPtr("+0100")},
				},
			}},
		}
	}
	// Renames and excludes apply to events only.
	m := New("", map[string]string{"TZOFFSETTO": "X-OFFSET"}, []string{"DTSTART"})
	tzs := m.Timezones([]feed.Component{tz("Europe/Berlin"), tz("America/New_York")})
	if len(tzs) != 2 {
		t.Fatalf("Expected 2 timezones, got %d", len(tzs))
	}

	dest := m.Map(feed.Event{Properties: []feed.Property{
		{Name: "SUMMARY", Value: strPtr("Lecture")},
		{Name: "DTEND", Value: strPtr("20240311T093000"), Params: map[string][]string{"TZID": {"Europe/Berlin"}}},
		{Name: "EXDATE", Value: strPtr("20240318T080000"), Params: map[string][]string{"TZID": {"Europe/Berlin"}}},
		{Name: "X-ALT", Value: strPtr("20240311T080000"), Params: map[string][]string{"TZID": {"Asia/Tokyo"}}},
	}})
	AttachTimezones(&dest, tzs)

	if len(dest.Timezones) != 1 {
		t.Fatalf("Expected only the Europe/Berlin definition, got %+v", dest.Timezones)
	}
	got := dest.Timezones[0]
	if got.Name != "VTIMEZONE" || len(got.Children) != 1 || got.Children[0].Name != "STANDARD" {
		t.Fatalf("Unexpected timezone group: %+v", got)
	}
	rule := got.Children[0].Properties
	if len(rule) != 2 || rule[0].Name != "DTSTART" || rule[1].Name != "TZOFFSETTO" {
		t.Errorf("Expected STANDARD rule to be copied unchanged, got %+v", rule)
	}
}
