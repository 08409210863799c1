// Package auth provides OAuth 2.0 HTTP clients for destinations that do not
// accept a username and password.
package auth

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// CalendarScope grants read/write access to Google Calendar, over both the
// REST API and CalDAV.
const CalendarScope = "https://www.googleapis.com/auth/calendar"

// NewOAuthConfig builds the OAuth client configuration. Empty authURL and
// tokenURL select Google's endpoints.
func NewOAuthConfig(clientID, clientSecret, authURL, tokenURL string, scopes ...string) *oauth2.Config {
	if authURL == "" {
		authURL = "https://accounts.google.com/o/oauth2/auth"
	}
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}
	if len(scopes) == 0 {
		scopes = []string{CalendarScope}
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}

// TokenStore is an interface for saving and loading OAuth tokens.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
}

// autoSaveTokenSource wraps an oauth2.TokenSource and automatically saves refreshed tokens.
type autoSaveTokenSource struct {
	source     oauth2.TokenSource
	tokenStore TokenStore
	lastToken  *oauth2.Token
}

// Token implements oauth2.TokenSource and saves the token if it was refreshed.
func (a *autoSaveTokenSource) Token() (*oauth2.Token, error) {
	token, err := a.source.Token()
	if err != nil {
		return nil, err
	}

	if a.lastToken == nil || a.lastToken.AccessToken != token.AccessToken {
		if err := a.tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		a.lastToken = token
	}

	return token, nil
}

// callbackServer receives the OAuth redirect on a loopback port.
type callbackServer struct {
	redirectURL string
	codes       chan string
	errs        chan error
	server      *http.Server
}

// startCallbackServer listens on 127.0.0.1:8080, or a random port if 8080 is taken.
func startCallbackServer() (*callbackServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:8080")
	if err != nil {
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to start local server: %w", err)
		}
	}

	cb := &callbackServer{
		redirectURL: fmt.Sprintf("http://127.0.0.1:%d", listener.Addr().(*net.TCPAddr).Port),
		codes:       make(chan string, 1),
		errs:        make(chan error, 1),
	}
	cb.server = &http.Server{
		Handler:      http.HandlerFunc(cb.handle),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  10 * time.Second,
	}

	go func() {
		if err := cb.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			cb.report(fmt.Errorf("server error: %w", err))
		}
	}()
	return cb, nil
}

func (cb *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	if code := r.URL.Query().Get("code"); code != "" {
		fmt.Fprint(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
		select {
		case cb.codes <- code:
		default:
		}
		return
	}

	errMsg := r.URL.Query().Get("error")
	if errMsg == "" {
		errMsg = "no authorization code received"
	}
	fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", errMsg)
	cb.report(fmt.Errorf("authorization error: %s", errMsg))
}

func (cb *callbackServer) report(err error) {
	select {
	case cb.errs <- err:
	default:
	}
}

func (cb *callbackServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cb.server.Shutdown(ctx)
}

// authorize runs the interactive browser flow and returns the new token.
func authorize(ctx context.Context, oauthConfig *oauth2.Config, timeout time.Duration) (*oauth2.Token, error) {
	cb, err := startCallbackServer()
	if err != nil {
		return nil, err
	}
	defer cb.Close()

	oauthConfig.RedirectURL = cb.redirectURL
	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Printf("Starting local server on %s\n", cb.redirectURL)
	if cb.redirectURL != "http://127.0.0.1:8080" {
		fmt.Printf("Note: Port 8080 was unavailable. Make sure %s is an authorized redirect URI.\n", cb.redirectURL)
	}
	fmt.Println("\nPlease visit the following URL to authorize the application:")
	fmt.Println(authURL)
	fmt.Println("\nWaiting for authorization...")

	var code string
	select {
	case code = <-cb.codes:
	case err := <-cb.errs:
		return nil, fmt.Errorf("failed to receive authorization code: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("authorization timeout: no response received within %s", timeout)
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// GetAuthenticatedClient returns an authenticated HTTP client using OAuth 2.0.
// If no token exists, it will guide the user through the interactive OAuth flow.
// Refreshed tokens are written back to tokenStore.
func GetAuthenticatedClient(ctx context.Context, oauthConfig *oauth2.Config, tokenStore TokenStore) (*http.Client, error) {
	token, err := tokenStore.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		token, err = authorize(ctx, oauthConfig, 5*time.Minute)
		if err != nil {
			return nil, err
		}
		if err := tokenStore.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
		log.Println("Authorization successful")
	}

	autoSaveSource := &autoSaveTokenSource{
		source:     oauth2.ReuseTokenSource(token, oauthConfig.TokenSource(ctx, token)),
		tokenStore: tokenStore,
		lastToken:  token,
	}
	return oauth2.NewClient(ctx, autoSaveSource), nil
}
