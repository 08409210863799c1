package caldav

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"github.com/beekhof/ecampus-sync/internal/calendar"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func encode(t *testing.T, cal *ical.Calendar) string {
	t.Helper()
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		t.Fatalf("Encode() returned an error: %v", err)
	}
	return buf.String()
}

func TestToICal_CopiesProperties(t *testing.T) {
	event := &calendar.DestinationEvent{
		Title: "Midterm Exam",
		Properties: []calendar.Property{
			{Name: "SUMMARY", Value: "Midterm Exam"},
			{Name: "DTSTART", Value: "20240315T090000", Params: map[string][]string{"TZID": {"Europe/Berlin"}}},
			{Name: "DESCRIPTION", Value: ""},
			{Name: "LOCATION", Value: "Room 4, Building B"},
			{Name: "X-ECAMPUS-COURSE", Value: "INF-101"},
		},
	}

	out := encode(t, toICal(event, "abc", fixedNow))

	for _, want := range []string{
		"VERSION:2.0",
		"PRODID:" + ProductID,
		"BEGIN:VEVENT",
		"SUMMARY:Midterm Exam",
		"DTSTART;TZID=Europe/Berlin:20240315T090000",
		"DESCRIPTION:\r\n",
		`LOCATION:Room 4\, Building B`,
		"X-ECAMPUS-COURSE:INF-101",
		"UID:abc",
		"DTSTAMP:20240301T120000Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestToICal_TitleFallback(t *testing.T) {
	tests := []struct {
		name  string
		props []calendar.Property
	}{
		{"missing summary", []calendar.Property{{Name: "DTSTART", Value: "20240315"}}},
		{"empty summary", []calendar.Property{{Name: "SUMMARY", Value: ""}, {Name: "DTSTART", Value: "20240315"}}},
		{"blank summary", []calendar.Property{{Name: "SUMMARY", Value: "  \t"}, {Name: "DTSTART", Value: "20240315"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &calendar.DestinationEvent{Title: "Untitled event", Properties: tt.props}
			cal := toICal(event, "abc", fixedNow)

			vevent := cal.Children[0]
			summary := vevent.Props.Get(ical.PropSummary)
			if summary == nil || summary.Value != "Untitled event" {
				t.Errorf("Expected SUMMARY from title, got %+v", summary)
			}
			if n := len(vevent.Props[ical.PropSummary]); n != 1 {
				t.Errorf("Expected exactly one SUMMARY, got %d", n)
			}
		})
	}
}

func TestToICal_KeepsSourceUIDAndStamp(t *testing.T) {
	event := &calendar.DestinationEvent{
		Title: "Lab",
		Properties: []calendar.Property{
			{Name: "UID", Value: "ecampus-4711"},
			{Name: "DTSTAMP", Value: "20240101T000000Z"},
		},
	}

	vevent := toICal(event, "generated", fixedNow).Children[0]
	if uid := vevent.Props.Get(ical.PropUID); uid == nil || uid.Value != "ecampus-4711" {
		t.Errorf("Expected source UID to be kept, got %+v", uid)
	}
	if stamp := vevent.Props.Get(ical.PropDateTimeStamp); stamp == nil || stamp.Value != "20240101T000000Z" {
		t.Errorf("Expected source DTSTAMP to be kept, got %+v", stamp)
	}
}

func TestToICal_Children(t *testing.T) {
	event := &calendar.DestinationEvent{
		Title: "Exam",
		Children: []calendar.Group{{
			Name: "valarm",
			Properties: []calendar.Property{
				{Name: "ACTION", Value: "DISPLAY"},
				{Name: "TRIGGER", Value: "-PT15M"},
			},
		}},
	}

	out := encode(t, toICal(event, "abc", fixedNow))
	for _, want := range []string{"BEGIN:VALARM", "ACTION:DISPLAY", "TRIGGER:-PT15M", "END:VALARM"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestToICal_Timezones(t *testing.T) {
	event := &calendar.DestinationEvent{
		Title: "Lecture",
		Properties: []calendar.Property{
			{Name: "SUMMARY", Value: "Lecture"},
			{Name: "DTSTART", Value: "20240311T080000", Params: map[string][]string{"TZID": {"Europe/Berlin"}}},
		},
		Timezones: []calendar.Group{{
			Name:       "VTIMEZONE",
			Properties: []calendar.Property{{Name: "TZID", Value: "Europe/Berlin"}},
			Children: []calendar.Group{{
				Name: "STANDARD",
				Properties: []calendar.Property{
					{Name: "DTSTART", Value: "19701025T030000"},
					{Name: "TZOFFSETFROM", Value: "+0200"},
					{Name: "TZOFFSETTO", Value: "+0100"},
				},
			}},
		}},
	}

	cal := toICal(event, "abc", fixedNow)
	if len(cal.Children) != 2 || cal.Children[0].Name != ical.CompTimezone || cal.Children[1].Name != ical.CompEvent {
		t.Fatalf("Expected VTIMEZONE then VEVENT, got %d children", len(cal.Children))
	}

	out := encode(t, cal)
	for _, want := range []string{"BEGIN:VTIMEZONE", "TZID:Europe/Berlin", "BEGIN:STANDARD", "TZOFFSETTO:+0100", "END:VTIMEZONE"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Index(out, "BEGIN:VTIMEZONE") > strings.Index(out, "BEGIN:VEVENT") {
		t.Errorf("Expected VTIMEZONE before VEVENT, got:\n%s", out)
	}
}

func TestObjectPath(t *testing.T) {
	if got := objectPath("/cal/school/", "abc"); got != "/cal/school/abc.ics" {
		t.Errorf("Expected /cal/school/abc.ics, got %s", got)
	}
	if got := objectPath("/cal/school", "abc"); got != "/cal/school/abc.ics" {
		t.Errorf("Expected /cal/school/abc.ics, got %s", got)
	}
	if got := uidFromPath("/cal/school/abc.ics"); got != "abc" {
		t.Errorf("Expected abc, got %s", got)
	}
}

// putRecorder is a CalDAV server stub that accepts PUT requests.
type putRecorder struct {
	mu       sync.Mutex
	method   string
	path     string
	body     string
	user     string
	password string
	status   int
}

func (p *putRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	p.method = r.Method
	p.path = r.URL.Path
	p.body = string(body)
	p.user, p.password, _ = r.BasicAuth()

	if p.status != 0 {
		w.WriteHeader(p.status)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func newTestClient(t *testing.T, rec *putRecorder) *Client {
	t.Helper()
	server := httptest.NewServer(rec)
	t.Cleanup(server.Close)

	client, err := NewBasicAuthClient(server.Client(), server.URL, "student", "secret")
	if err != nil {
		t.Fatalf("NewBasicAuthClient() returned an error: %v", err)
	}
	client.now = func() time.Time { return fixedNow }
	client.newUID = func() string { return "new-uid" }
	return client
}

func TestSaveEvent_Create(t *testing.T) {
	rec := &putRecorder{}
	client := newTestClient(t, rec)

	identity, err := client.SaveEvent(context.Background(), &calendar.DestinationEvent{
		CalendarURL: "/cal/school/",
		Title:       "Midterm Exam",
		Properties:  []calendar.Property{{Name: "SUMMARY", Value: "Midterm Exam"}},
	})
	if err != nil {
		t.Fatalf("SaveEvent() returned an error: %v", err)
	}

	if identity != "/cal/school/new-uid.ics" {
		t.Errorf("Expected identity /cal/school/new-uid.ics, got %s", identity)
	}
	if rec.method != http.MethodPut || rec.path != "/cal/school/new-uid.ics" {
		t.Errorf("Expected PUT /cal/school/new-uid.ics, got %s %s", rec.method, rec.path)
	}
	if rec.user != "student" || rec.password != "secret" {
		t.Errorf("Expected basic auth credentials, got %q/%q", rec.user, rec.password)
	}
	if !strings.Contains(rec.body, "SUMMARY:Midterm Exam") || !strings.Contains(rec.body, "UID:new-uid") {
		t.Errorf("Unexpected body:\n%s", rec.body)
	}
}

func TestSaveEvent_UpdateKeepsPathAndUID(t *testing.T) {
	rec := &putRecorder{}
	client := newTestClient(t, rec)

	identity, err := client.SaveEvent(context.Background(), &calendar.DestinationEvent{
		Identity:    "/cal/school/first-uid.ics",
		CalendarURL: "/cal/school/",
		Title:       "Midterm Exam",
	})
	if err != nil {
		t.Fatalf("SaveEvent() returned an error: %v", err)
	}

	if identity != "/cal/school/first-uid.ics" || rec.path != "/cal/school/first-uid.ics" {
		t.Errorf("Expected the existing object to be replaced, got identity %s, path %s", identity, rec.path)
	}
	if !strings.Contains(rec.body, "UID:first-uid") {
		t.Errorf("Expected UID to stay first-uid, got:\n%s", rec.body)
	}
}

func TestSaveEvent_ServerError(t *testing.T) {
	rec := &putRecorder{status: http.StatusForbidden}
	client := newTestClient(t, rec)

	_, err := client.SaveEvent(context.Background(), &calendar.DestinationEvent{
		CalendarURL: "/cal/school/",
		Title:       "Midterm Exam",
	})
	if err == nil {
		t.Fatal("Expected an error for a 403 response")
	}
}

func TestSaveEvent_NoCalendar(t *testing.T) {
	client := newTestClient(t, &putRecorder{})

	if _, err := client.SaveEvent(context.Background(), &calendar.DestinationEvent{Title: "x"}); err == nil {
		t.Fatal("Expected an error without a calendar path")
	}
}
