package feed

import "fmt"

// FetchError is a transport or protocol failure while retrieving the feed.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch feed %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means the feed body is not a valid iCalendar document.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyFeedError means the document parsed but held no calendar object.
type EmptyFeedError struct {
	URL string
}

func (e *EmptyFeedError) Error() string {
	return fmt.Sprintf("feed %s contains no calendar", e.URL)
}
