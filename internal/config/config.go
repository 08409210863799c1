// Package config loads ecampus-sync settings from a file, the environment and flags.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Destination types.
const (
	DestinationCalDAV = "caldav"
	DestinationGoogle = "google"
)

// CalDAV authentication methods.
const (
	AuthBasic = "basic"
	AuthOAuth = "oauth"
)

// OAuthCredentials represents the structure of an OAuth client credentials
// JSON file as downloaded from Google Cloud Console.
type OAuthCredentials struct {
	Installed oauthClient `json:"installed"`
	Web       oauthClient `json:"web"`
}

type oauthClient struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// OAuthClient is the client registration used for the OAuth flow.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
}

// LoadOAuthCredentials loads OAuth client credentials from a JSON file.
func LoadOAuthCredentials(path string) (*OAuthClient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds OAuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	for _, c := range []oauthClient{creds.Installed, creds.Web} {
		if c.ClientID != "" {
			return &OAuthClient{
				ClientID:     c.ClientID,
				ClientSecret: c.ClientSecret,
				AuthURL:      c.AuthURI,
				TokenURL:     c.TokenURI,
			}, nil
		}
	}

	return nil, fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// Config holds the configuration for ecampus-sync.
type Config struct {
	// CalDAV server or, for Google, unused.
	ServerURL string `json:"server_url,omitempty" yaml:"server_url,omitempty"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
	// Calendar is the display name of the destination calendar, matched exactly.
	Calendar string `json:"calendar,omitempty" yaml:"calendar,omitempty"`

	FeedURL      string `json:"feed_url,omitempty" yaml:"feed_url,omitempty"`
	FeedUsername string `json:"feed_username,omitempty" yaml:"feed_username,omitempty"`
	FeedPassword string `json:"feed_password,omitempty" yaml:"feed_password,omitempty"`

	Destination          string `json:"destination,omitempty" yaml:"destination,omitempty"` // "caldav" or "google"
	Auth                 string `json:"auth,omitempty" yaml:"auth,omitempty"`               // "basic" or "oauth", CalDAV only
	OAuthCredentialsPath string `json:"oauth_credentials_path,omitempty" yaml:"oauth_credentials_path,omitempty"`
	TokenPath            string `json:"token_path,omitempty" yaml:"token_path,omitempty"`

	FailurePolicy      string   `json:"failure_policy,omitempty" yaml:"failure_policy,omitempty"` // "abort" or "continue"
	Dedup              string   `json:"dedup,omitempty" yaml:"dedup,omitempty"`                   // "store" or "none"
	DedupKeyProperties []string `json:"dedup_key_properties,omitempty" yaml:"dedup_key_properties,omitempty"`
	StatePath          string   `json:"state_path,omitempty" yaml:"state_path,omitempty"`

	TitlePlaceholder  string            `json:"title_placeholder,omitempty" yaml:"title_placeholder,omitempty"`
	PropertyRenames   map[string]string `json:"property_renames,omitempty" yaml:"property_renames,omitempty"`
	ExcludeProperties []string          `json:"exclude_properties,omitempty" yaml:"exclude_properties,omitempty"`

	// Schedule is a standard cron expression; empty runs once.
	Schedule       string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// Flags holds command-line values. Empty strings mean "not set".
type Flags struct {
	ServerURL     string
	Username      string
	Password      string
	Calendar      string
	FeedURL       string
	Destination   string
	FailurePolicy string
	Dedup         string
	StatePath     string
	Schedule      string
}

// LoadConfigFromFile loads configuration from a YAML (.yaml, .yml) or JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// Returns an error if any required value is missing.
func LoadConfig(configFile string, flags Flags) (*Config, error) {
	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	for env, field := range map[string]*string{
		"CALDAV_SERVER_URL":      &config.ServerURL,
		"CALDAV_USERNAME":        &config.Username,
		"CALDAV_PASSWORD":        &config.Password,
		"CALDAV_CALENDAR":        &config.Calendar,
		"CALDAV_AUTH":            &config.Auth,
		"ECAMPUS_FEED_URL":       &config.FeedURL,
		"ECAMPUS_USERNAME":       &config.FeedUsername,
		"ECAMPUS_PASSWORD":       &config.FeedPassword,
		"SYNC_DESTINATION":       &config.Destination,
		"OAUTH_CREDENTIALS_PATH": &config.OAuthCredentialsPath,
		"OAUTH_TOKEN_PATH":       &config.TokenPath,
		"SYNC_FAILURE_POLICY":    &config.FailurePolicy,
		"SYNC_DEDUP":             &config.Dedup,
		"SYNC_STATE_PATH":        &config.StatePath,
		"SYNC_SCHEDULE":          &config.Schedule,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
	if timeout := os.Getenv("SYNC_TIMEOUT_SECONDS"); timeout != "" {
		n, err := strconv.Atoi(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SYNC_TIMEOUT_SECONDS value: %w", err)
		}
		config.TimeoutSeconds = n
	}

	// Step 3: Override with command-line flags (highest priority)
	for _, o := range []struct {
		value string
		field *string
	}{
		{flags.ServerURL, &config.ServerURL},
		{flags.Username, &config.Username},
		{flags.Password, &config.Password},
		{flags.Calendar, &config.Calendar},
		{flags.FeedURL, &config.FeedURL},
		{flags.Destination, &config.Destination},
		{flags.FailurePolicy, &config.FailurePolicy},
		{flags.Dedup, &config.Dedup},
		{flags.StatePath, &config.StatePath},
		{flags.Schedule, &config.Schedule},
	} {
		if o.value != "" {
			*o.field = o.value
		}
	}

	// Step 4: Apply defaults and validate required fields
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Destination == "" {
		c.Destination = DestinationCalDAV
	}
	if c.Auth == "" {
		c.Auth = AuthBasic
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = "abort"
	}
	if c.Dedup == "" {
		c.Dedup = "store"
	}
	if c.StatePath == "" {
		c.StatePath = "ecampus-sync.db"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
}

// Validate checks that every required value is present and well-formed.
func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("feed_url must be provided via -ecampus-server flag, ECAMPUS_FEED_URL environment variable, or config file")
	}
	if err := validateHTTPURL("feed_url", c.FeedURL); err != nil {
		return err
	}
	if c.Calendar == "" {
		return fmt.Errorf("calendar must be provided via -calendar flag, CALDAV_CALENDAR environment variable, or config file")
	}

	switch c.Destination {
	case DestinationCalDAV:
		if c.ServerURL == "" {
			return fmt.Errorf("server_url must be provided via -server flag, CALDAV_SERVER_URL environment variable, or config file")
		}
		if err := validateHTTPURL("server_url", c.ServerURL); err != nil {
			return err
		}
		switch c.Auth {
		case AuthBasic:
			if c.Username == "" {
				return fmt.Errorf("username must be provided via -username flag, CALDAV_USERNAME environment variable, or config file")
			}
			if c.Password == "" {
				return fmt.Errorf("password must be provided via -password flag, CALDAV_PASSWORD environment variable, or config file")
			}
		case AuthOAuth:
			if err := c.validateOAuth(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("auth must be '%s' or '%s', got '%s'", AuthBasic, AuthOAuth, c.Auth)
		}
	case DestinationGoogle:
		if err := c.validateOAuth(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("destination must be '%s' or '%s', got '%s'", DestinationCalDAV, DestinationGoogle, c.Destination)
	}

	if c.FailurePolicy != "abort" && c.FailurePolicy != "continue" {
		return fmt.Errorf("failure_policy must be 'abort' or 'continue', got '%s'", c.FailurePolicy)
	}
	if c.Dedup != "store" && c.Dedup != "none" {
		return fmt.Errorf("dedup must be 'store' or 'none', got '%s'", c.Dedup)
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule '%s': %w", c.Schedule, err)
		}
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative, got %d", c.TimeoutSeconds)
	}
	return nil
}

func (c *Config) validateOAuth() error {
	if c.OAuthCredentialsPath == "" {
		return fmt.Errorf("oauth_credentials_path must be provided via OAUTH_CREDENTIALS_PATH environment variable or config file")
	}
	if c.TokenPath == "" {
		return fmt.Errorf("token_path must be provided via OAUTH_TOKEN_PATH environment variable or config file")
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL, got scheme '%s'", name, u.Scheme)
	}
	return nil
}
