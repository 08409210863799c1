// Package google writes synced events into a Google Calendar.
package google

import (
	"context"
	"fmt"
	"net/http"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/beekhof/ecampus-sync/internal/calendar"
)

// Client is a calendar.Destination backed by the Google Calendar API.
type Client struct {
	service *gcal.Service
}

// NewClient creates a new Google Calendar API client using the provided HTTP client.
func NewClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &Client{service: service}, nil
}

// ListCalendars returns every calendar in the user's calendar list. The
// calendar's summary is its name and the calendar ID its URL.
func (c *Client) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	var result []calendar.Calendar
	err := c.service.CalendarList.List().Pages(ctx, func(page *gcal.CalendarList) error {
		for _, entry := range page.Items {
			result = append(result, calendar.Calendar{Name: entry.Summary, URL: entry.Id})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Google: failed to list calendars: %w", err)
	}
	return result, nil
}

// SaveEvent inserts the event, or updates the event whose ID is
// event.Identity. Notifications are never sent.
func (c *Client) SaveEvent(ctx context.Context, event *calendar.DestinationEvent) (string, error) {
	if event.CalendarURL == "" {
		return "", fmt.Errorf("calendar ID not specified")
	}

	gev, err := toGoogleEvent(event)
	if err != nil {
		return "", fmt.Errorf("failed to convert event: %w", err)
	}

	if event.IsNew() {
		created, err := c.service.Events.Insert(event.CalendarURL, gev).
			SendUpdates("none"). // Disable notifications
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("failed to insert event: %w", err)
		}
		return created.Id, nil
	}

	updated, err := c.service.Events.Update(event.CalendarURL, event.Identity, gev).
		SendUpdates("none"). // Disable notifications
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to update event: %w", err)
	}
	return updated.Id, nil
}
