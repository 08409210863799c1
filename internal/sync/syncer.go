// Package sync drives a one-way run from the eCampus feed into a destination calendar.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/beekhof/ecampus-sync/internal/calendar"
	"github.com/beekhof/ecampus-sync/internal/feed"
	"github.com/beekhof/ecampus-sync/internal/mapper"
)

// FailurePolicy decides what happens when one event cannot be written.
type FailurePolicy string

const (
	// FailAbort stops the run at the first failed event.
	FailAbort FailurePolicy = "abort"
	// FailContinue records the failure and moves on to the next event.
	FailContinue FailurePolicy = "continue"
)

// DedupMode decides how repeated runs avoid duplicating events.
type DedupMode string

const (
	// DedupNone creates every feed event on every run.
	DedupNone DedupMode = "none"
	// DedupStore updates events remembered in the identity store.
	DedupStore DedupMode = "store"
)

// FeedFetcher retrieves the source calendar.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (*feed.Calendar, error)
}

// IdentityStore remembers the destination identity of each synced event.
type IdentityStore interface {
	Lookup(ctx context.Context, calendarURL, key string) (string, bool, error)
	Remember(ctx context.Context, calendarURL, key, identity, title string) error
}

// counter is implemented by identity stores that can report their size.
type counter interface {
	Count(ctx context.Context, calendarURL string) (int, error)
}

// Options configures a Syncer.
type Options struct {
	FeedURL       string
	CalendarName  string
	FailurePolicy FailurePolicy
	Dedup         DedupMode
	// KeyProperties are the source fields the sync key is derived from.
	KeyProperties []string
	Verbose       bool
}

// Syncer handles one-way synchronization from the feed to the destination.
type Syncer struct {
	fetcher FeedFetcher
	dest    calendar.Destination
	mapper  *mapper.Mapper
	store   IdentityStore
	opts    Options
}

// NewSyncer creates a new Syncer instance. store may be nil, in which case
// deduplication is turned off.
func NewSyncer(fetcher FeedFetcher, dest calendar.Destination, m *mapper.Mapper, store IdentityStore, opts Options) *Syncer {
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = FailAbort
	}
	if opts.Dedup == "" {
		opts.Dedup = DedupStore
	}
	if opts.Dedup == DedupStore && store == nil {
		log.Printf("Warning: no identity store configured, events will be created on every run")
		opts.Dedup = DedupNone
	}
	if len(opts.KeyProperties) == 0 {
		opts.KeyProperties = DefaultKeyProperties
	}
	if m == nil {
		m = mapper.New("", nil, nil)
	}
	return &Syncer{
		fetcher: fetcher,
		dest:    dest,
		mapper:  m,
		store:   store,
		opts:    opts,
	}
}

func (s *Syncer) debugf(format string, args ...interface{}) {
	if s.opts.Verbose {
		log.Printf("DEBUG: "+format, args...)
	}
}

// Run performs one sync. The returned report is never nil. Run returns an
// error only when the run ends in StateFailed; with FailContinue, per-event
// failures are listed in the report and the run still ends in StateDone.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	report := &Report{State: StateStart, Started: time.Now()}
	defer func() { report.Finished = time.Now() }()

	log.Println("Starting sync...")

	s.transition(report, StateResolvingCalendar)
	cal, err := calendar.Resolve(ctx, s.dest, s.opts.CalendarName)
	if err != nil {
		return s.fail(report, err)
	}
	report.Calendar = cal

	s.transition(report, StateFetchingFeed)
	src, err := s.fetcher.Fetch(ctx, s.opts.FeedURL)
	if err != nil {
		return s.fail(report, err)
	}
	report.Total = len(src.Events)
	log.Printf("Syncing %d events into calendar %q", report.Total, cal.Name)
	timezones := s.mapper.Timezones(src.Timezones)

	seen := make(map[string]int, len(src.Events))
	for i, srcEvent := range src.Events {
		if err := ctx.Err(); err != nil {
			return s.fail(report, err)
		}

		log.Printf("Event %d/%d: %s", i+1, report.Total, srcEvent)

		s.transition(report, StateMapping)
		dest := s.mapper.Map(srcEvent)
		dest.CalendarURL = cal.URL
		mapper.AttachTimezones(&dest, timezones)

		key := SyncKey(srcEvent, s.opts.KeyProperties)
		seen[key]++
		if n := seen[key]; n > 1 {
			key = occurrenceKey(key, n)
			s.debugf("event %d repeats an earlier sync key, using occurrence %d", i, n)
		}
		if s.opts.Dedup == DedupStore {
			dest.Properties = append(dest.Properties, calendar.Property{Name: KeyProperty, Value: key})
		}

		s.transition(report, StatePersisting)
		outcome := s.persist(ctx, i, key, &dest)
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Action == ActionFailed {
			if s.opts.FailurePolicy == FailAbort {
				return s.fail(report, outcome.Err)
			}
			log.Printf("Warning: %v", outcome.Err)
		}
	}

	s.transition(report, StateDone)
	if c, ok := s.store.(counter); ok && s.opts.Dedup == DedupStore {
		if n, err := c.Count(ctx, cal.URL); err != nil {
			log.Printf("Warning: %v", err)
		} else {
			report.Remembered = n
			s.debugf("identity store remembers %d events for %q", n, cal.Name)
		}
	}
	log.Printf("Sync complete: %s", report.Summary())
	return report, nil
}

// persist writes one mapped event and records its identity.
func (s *Syncer) persist(ctx context.Context, index int, key string, dest *calendar.DestinationEvent) Outcome {
	outcome := Outcome{Index: index, Title: dest.Title, Key: key}
	failed := func(err error) Outcome {
		outcome.Action = ActionFailed
		outcome.Err = &PersistenceError{Index: index, Title: dest.Title, Err: err}
		return outcome
	}

	if s.opts.Dedup == DedupStore {
		identity, ok, err := s.store.Lookup(ctx, dest.CalendarURL, key)
		if err != nil {
			return failed(err)
		}
		if ok {
			s.debugf("found existing event %s for %q", identity, dest.Title)
			dest.Identity = identity
		}
	}

	action := ActionCreated
	if !dest.IsNew() {
		action = ActionUpdated
	}

	identity, err := s.dest.SaveEvent(ctx, dest)
	if err != nil {
		return failed(err)
	}
	outcome.Identity = identity

	if s.opts.Dedup == DedupStore {
		if err := s.store.Remember(ctx, dest.CalendarURL, key, identity, dest.Title); err != nil {
			return failed(fmt.Errorf("event written to %s but not recorded: %w", identity, err))
		}
	}

	outcome.Action = action
	if action == ActionCreated {
		log.Printf("Created event %s (summary: %v)", identity, dest.Title)
	} else {
		log.Printf("Updated event %s (summary: %v)", identity, dest.Title)
	}
	return outcome
}

func (s *Syncer) transition(report *Report, next State) {
	if report.State != next {
		s.debugf("state %s -> %s", report.State, next)
	}
	report.State = next
}

func (s *Syncer) fail(report *Report, err error) (*Report, error) {
	stage := strings.ToLower(report.State.String())
	s.transition(report, StateFailed)

	var perr *PersistenceError
	if errors.As(err, &perr) {
		report.Err = err
	} else {
		report.Err = fmt.Errorf("sync failed while %s: %w", strings.ReplaceAll(stage, "_", " "), err)
	}
	log.Printf("Sync failed: %v", report.Err)
	return report, report.Err
}
