package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"

	"github.com/beekhof/ecampus-sync/internal/auth"
	"github.com/beekhof/ecampus-sync/internal/caldav"
	"github.com/beekhof/ecampus-sync/internal/calendar"
	"github.com/beekhof/ecampus-sync/internal/config"
	"github.com/beekhof/ecampus-sync/internal/feed"
	"github.com/beekhof/ecampus-sync/internal/google"
	"github.com/beekhof/ecampus-sync/internal/mapper"
	"github.com/beekhof/ecampus-sync/internal/scheduler"
	"github.com/beekhof/ecampus-sync/internal/state"
	"github.com/beekhof/ecampus-sync/internal/sync"
)

func printHelp() {
	fmt.Fprintf(os.Stderr, `eCampus Sync

A one-way synchronization tool that copies the events of an eCampus
iCalendar feed into an existing, named calendar on a CalDAV server
(e.g. iCloud, Nextcloud) or in Google Calendar.

USAGE:
    %s [OPTIONS]

OPTIONS:
    -h, --help                    Show this help message and exit
    -v, --verbose                 Enable verbose output (show DEBUG logs)
    --config FILE                 Path to a JSON or YAML config file (optional)
    -s, --server URL              CalDAV server URL (CALDAV_SERVER_URL)
    -u, --username NAME           CalDAV username (CALDAV_USERNAME)
    -p, --password PASSWORD       CalDAV password (CALDAV_PASSWORD)
    -c, --calendar NAME           Destination calendar name, matched exactly (CALDAV_CALENDAR)
    -e, --ecampus-server URL      eCampus iCalendar feed URL (ECAMPUS_FEED_URL)
    --destination TYPE            "caldav" (default) or "google" (SYNC_DESTINATION)
    --failure-policy POLICY       "abort" (default) stops at the first event that
                                  cannot be written, "continue" reports it and goes on
                                  (SYNC_FAILURE_POLICY)
    --dedup MODE                  "store" (default) updates events synced before,
                                  "none" creates every event on every run (SYNC_DEDUP)
    --state PATH                  Path of the sync state database (SYNC_STATE_PATH,
                                  default: ecampus-sync.db)
    --schedule SPEC               Cron schedule, e.g. "*/30 * * * *" or "@hourly".
                                  Without it the sync runs once (SYNC_SCHEDULE)

CONFIGURATION PRECEDENCE (highest to lowest):
    1. Command-line flags
    2. Environment variables
    3. Config file (--config)
    4. Defaults

ENVIRONMENT VARIABLES:
    Besides the ones listed with the options above:
        ECAMPUS_USERNAME, ECAMPUS_PASSWORD   Basic auth for the feed, if required
        CALDAV_AUTH                          "basic" (default) or "oauth"
        OAUTH_CREDENTIALS_PATH               OAuth client credentials JSON file
        OAUTH_TOKEN_PATH                     Where the OAuth token is stored
        SYNC_TIMEOUT_SECONDS                 HTTP timeout (default: 30)

CONFIG FILE:
    Example (YAML; JSON uses the same keys):
        server_url: https://caldav.icloud.com
        username: you@icloud.com
        password: app-specific-password
        calendar: School
        feed_url: https://ecampus.example.edu/ical/export?token=...
        failure_policy: continue
        title_placeholder: Untitled event
        exclude_properties: [ATTACH]
        property_renames:
          X-COURSE: CATEGORIES
        schedule: "0 * * * *"

    Google Calendar and CalDAV with OAuth need an OAuth client credentials
    file as downloaded from Google Cloud Console; you'll be prompted to
    authorize on first run.

EXAMPLES:
    # Run once
    %s -s https://caldav.icloud.com -u you@icloud.com -p xxxx-xxxx -c School \
        -e "https://ecampus.example.edu/ical/export?token=..."

    # Run every 30 minutes from a config file
    %s --config /etc/ecampus-sync.yaml --schedule "*/30 * * * *"

EXIT STATUS:
    0 if every event was written, 1 otherwise.

`, os.Args[0], os.Args[0], os.Args[0])
}

// stringFlag registers a flag under a long and a short name.
func stringFlag(long, short, usage string) *string {
	p := flag.String(long, "", usage)
	if short != "" {
		flag.StringVar(p, short, "", usage+" (shorthand)")
	}
	return p
}

func main() {
	helpFlag := flag.Bool("help", false, "Show help message")
	helpFlagShort := flag.Bool("h", false, "Show help message (shorthand)")
	verboseFlag := flag.Bool("verbose", false, "Enable verbose output (show DEBUG logs)")
	verboseFlagShort := flag.Bool("v", false, "Enable verbose output (shorthand)")
	configFile := flag.String("config", "", "Path to JSON or YAML config file")

	serverURL := stringFlag("server", "s", "CalDAV server URL")
	username := stringFlag("username", "u", "CalDAV username")
	password := stringFlag("password", "p", "CalDAV password")
	calendarName := stringFlag("calendar", "c", "Destination calendar name")
	feedURL := stringFlag("ecampus-server", "e", "eCampus iCalendar feed URL")
	destination := stringFlag("destination", "", "Destination type: caldav or google")
	failurePolicy := stringFlag("failure-policy", "", "abort or continue")
	dedup := stringFlag("dedup", "", "store or none")
	statePath := stringFlag("state", "", "Path of the sync state database")
	schedule := stringFlag("schedule", "", "Cron schedule; empty runs once")
	flag.Usage = printHelp
	flag.Parse()

	if *helpFlag || *helpFlagShort {
		printHelp()
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.LoadConfig(*configFile, config.Flags{
		ServerURL:     *serverURL,
		Username:      *username,
		Password:      *password,
		Calendar:      *calendarName,
		FeedURL:       *feedURL,
		Destination:   *destination,
		FailurePolicy: *failurePolicy,
		Dedup:         *dedup,
		StatePath:     *statePath,
		Schedule:      *schedule,
	})
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	os.Exit(run(cfg, *verboseFlag || *verboseFlagShort))
}

// run wires the sync from cfg and returns the process exit code.
func run(cfg *config.Config, verbose bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}

	dest, err := newDestination(ctx, cfg, httpClient)
	if err != nil {
		log.Printf("Failed to create %s destination: %v", cfg.Destination, err)
		return 1
	}

	var store sync.IdentityStore
	if cfg.Dedup == string(sync.DedupStore) {
		st, err := state.Open(cfg.StatePath)
		if err != nil {
			log.Printf("Failed to open sync state: %v", err)
			return 1
		}
		defer st.Close()
		store = st
	}

	syncer := sync.NewSyncer(
		feed.NewFetcher(httpClient, cfg.FeedUsername, cfg.FeedPassword),
		dest,
		mapper.New(cfg.TitlePlaceholder, cfg.PropertyRenames, cfg.ExcludeProperties),
		store,
		sync.Options{
			FeedURL:       cfg.FeedURL,
			CalendarName:  cfg.Calendar,
			FailurePolicy: sync.FailurePolicy(cfg.FailurePolicy),
			Dedup:         sync.DedupMode(cfg.Dedup),
			KeyProperties: cfg.DedupKeyProperties,
			Verbose:       verbose,
		},
	)

	log.Printf("Syncing %s into %s calendar %q", feed.RedactURL(cfg.FeedURL), cfg.Destination, cfg.Calendar)

	if cfg.Schedule == "" {
		if !runOnce(ctx, syncer) {
			return 1
		}
		return 0
	}

	sched := scheduler.New(cfg.Schedule, func(ctx context.Context) {
		runOnce(ctx, syncer)
	})
	if err := sched.Run(ctx, true); err != nil {
		log.Printf("Scheduler failed: %v", err)
		return 1
	}
	return 0
}

// runOnce performs one sync and reports whether every event was written.
func runOnce(ctx context.Context, syncer *sync.Syncer) bool {
	report, err := syncer.Run(ctx)
	if err != nil {
		log.Printf("Sync aborted: %s", report.Summary())
		return false
	}
	if report.Failed() > 0 {
		log.Printf("Sync completed with %d failed event(s):", report.Failed())
		for _, o := range report.Outcomes {
			if o.Err != nil {
				log.Printf("  - %v", o.Err)
			}
		}
		return false
	}
	log.Printf("Sync completed successfully: %s", report.Summary())
	return true
}

// newDestination creates the CalDAV or Google client named by cfg.Destination.
func newDestination(ctx context.Context, cfg *config.Config, httpClient *http.Client) (calendar.Destination, error) {
	switch {
	case cfg.Destination == config.DestinationGoogle:
		oauthClient, err := oauthHTTPClient(ctx, cfg, httpClient)
		if err != nil {
			return nil, err
		}
		return google.NewClient(ctx, oauthClient)

	case cfg.Auth == config.AuthOAuth:
		oauthClient, err := oauthHTTPClient(ctx, cfg, httpClient)
		if err != nil {
			return nil, err
		}
		return caldav.NewClient(oauthClient, cfg.ServerURL)

	default:
		return caldav.NewBasicAuthClient(httpClient, cfg.ServerURL, cfg.Username, cfg.Password)
	}
}

// oauthHTTPClient loads the OAuth client credentials and returns an
// authorized client, running the browser flow on first use.
func oauthHTTPClient(ctx context.Context, cfg *config.Config, httpClient *http.Client) (*http.Client, error) {
	creds, err := config.LoadOAuthCredentials(cfg.OAuthCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth credentials: %w", err)
	}

	oauthConfig := auth.NewOAuthConfig(creds.ClientID, creds.ClientSecret, creds.AuthURL, creds.TokenURL)

	// Token requests and API calls share the timeout of httpClient.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	client, err := auth.GetAuthenticatedClient(ctx, oauthConfig, auth.NewFileTokenStore(cfg.TokenPath))
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	return client, nil
}
