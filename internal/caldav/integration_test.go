package caldav

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/beekhof/ecampus-sync/internal/calendar"
)

// integrationClient connects to the server named by CALDAV_TEST_SERVER_URL,
// skipping the test when it is not set.
func integrationClient(t *testing.T) (*Client, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	serverURL := os.Getenv("CALDAV_TEST_SERVER_URL")
	calendarName := os.Getenv("CALDAV_TEST_CALENDAR")
	if serverURL == "" || calendarName == "" {
		t.Skip("CALDAV_TEST_SERVER_URL and CALDAV_TEST_CALENDAR not set")
	}

	client, err := NewBasicAuthClient(nil, serverURL,
		os.Getenv("CALDAV_TEST_USERNAME"), os.Getenv("CALDAV_TEST_PASSWORD"))
	if err != nil {
		t.Fatalf("Failed to create CalDAV client: %v", err)
	}
	return client, calendarName
}

func TestCalDAV_ResolveAndSave(t *testing.T) {
	client, calendarName := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cal, err := calendar.Resolve(ctx, client, calendarName)
	if err != nil {
		t.Fatalf("Failed to resolve calendar %q: %v", calendarName, err)
	}
	t.Logf("Using calendar %s", cal.URL)

	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Hour)
	event := &calendar.DestinationEvent{
		CalendarURL: cal.URL,
		Title:       "ecampus-sync integration test",
		Properties: []calendar.Property{
			{Name: "SUMMARY", Value: "ecampus-sync integration test"},
			{Name: "DTSTART", Value: start.Format("20060102T150405Z")},
			{Name: "DTEND", Value: start.Add(time.Hour).Format("20060102T150405Z")},
		},
	}

	identity, err := client.SaveEvent(ctx, event)
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	t.Logf("Created %s", identity)

	event.Identity = identity
	event.Properties[0].Value = "ecampus-sync integration test (updated)"
	updated, err := client.SaveEvent(ctx, event)
	if err != nil {
		t.Fatalf("Failed to update event: %v", err)
	}
	if updated != identity {
		t.Errorf("Expected update to keep identity %s, got %s", identity, updated)
	}

	if err := client.dav.RemoveAll(ctx, identity); err != nil {
		t.Logf("Warning: failed to clean up %s: %v", identity, err)
	}
}
