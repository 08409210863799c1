// Package caldav writes synced events into a CalDAV calendar collection.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/beekhof/ecampus-sync/internal/calendar"
)

// Client is a calendar.Destination backed by a CalDAV server.
type Client struct {
	dav       *caldav.Client
	serverURL string

	// now and newUID are replaced in tests.
	now    func() time.Time
	newUID func() string
}

// NewClient creates a CalDAV client for serverURL. httpClient carries the
// authentication, e.g. an OAuth client from the auth package.
func NewClient(httpClient webdav.HTTPClient, serverURL string) (*Client, error) {
	dav, err := caldav.NewClient(httpClient, serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create CalDAV client: %w", err)
	}
	return &Client{
		dav:       dav,
		serverURL: serverURL,
		now:       time.Now,
		newUID:    uuid.NewString,
	}, nil
}

// NewBasicAuthClient creates a CalDAV client that authenticates with a
// username and password (for iCloud, an app-specific password).
func NewBasicAuthClient(httpClient *http.Client, serverURL, username, password string) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return NewClient(webdav.HTTPClientWithBasicAuth(httpClient, username, password), serverURL)
}

// ListCalendars discovers the calendars in the current user's home set.
func (c *Client) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	principal, err := c.dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find current user principal: %w", err)
	}

	homeSet, err := c.dav.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}

	cals, err := c.dav.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	result := make([]calendar.Calendar, 0, len(cals))
	for _, cal := range cals {
		result = append(result, calendar.Calendar{Name: cal.Name, URL: cal.Path})
	}
	return result, nil
}

// SaveEvent writes event as a calendar object. A new event gets a fresh
// object path inside event.CalendarURL; an existing one is replaced at its
// identity path. The returned identity is the object path.
func (c *Client) SaveEvent(ctx context.Context, event *calendar.DestinationEvent) (string, error) {
	var uid, objPath string
	if event.IsNew() {
		if event.CalendarURL == "" {
			return "", fmt.Errorf("calendar path not specified")
		}
		uid = c.newUID()
		objPath = objectPath(event.CalendarURL, uid)
	} else {
		// Servers refuse a UID change on an existing object.
		objPath = event.Identity
		uid = uidFromPath(objPath)
	}

	cal := toICal(event, uid, c.now())
	if _, err := c.dav.PutCalendarObject(ctx, objPath, cal); err != nil {
		return "", fmt.Errorf("failed to put calendar object %s: %w", objPath, err)
	}

	return objPath, nil
}
