package feed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
)

const userAgent = "ecampus-sync/1.0"

// Fetcher retrieves the eCampus feed over HTTP.
type Fetcher struct {
	httpClient *http.Client
	username   string
	password   string
}

// NewFetcher creates a Fetcher that issues requests with httpClient.
// username and password are optional; when username is set the request
// carries basic auth.
func NewFetcher(httpClient *http.Client, username, password string) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{
		httpClient: httpClient,
		username:   username,
		password:   password,
	}
}

// Fetch downloads the document at feedURL and returns its first calendar.
//
// Errors are *FetchError for transport problems and non-2xx answers,
// *ParseError for bodies that are not iCalendar, and *EmptyFeedError when
// the body holds no calendar object.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*Calendar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, &FetchError{URL: RedactURL(feedURL), Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	if f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: RedactURL(feedURL), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: RedactURL(feedURL), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: RedactURL(feedURL), Err: err}
	}

	cal, err := Parse(bytes.NewReader(body))
	if errors.Is(err, errNoCalendar) {
		return nil, &EmptyFeedError{URL: RedactURL(feedURL)}
	}
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	log.Printf("Fetched feed %s: %d bytes, %d events", RedactURL(feedURL), len(body), len(cal.Events))
	return cal, nil
}

// RedactURL keeps only scheme and host so tokens in the feed URL stay out of logs.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/..."
}
