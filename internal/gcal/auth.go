package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	appLog "icsimport/internal/log"
)

// TokenProvider supplies bearer credentials for backend calls.
//
// Token with interactive=false must not block on user input; it either
// returns a cached/refreshed credential or an *AuthError. With
// interactive=true it may suspend indefinitely waiting for the user.
type TokenProvider interface {
	Token(ctx context.Context, interactive bool) (string, error)
	Invalidate()
}

// PromptFunc asks the user to visit authURL and returns the pasted
// authorization code.
type PromptFunc func(ctx context.Context, authURL string) (string, error)

// FileTokenProvider implements TokenProvider with an authorization-code
// flow and a token file persisted under the user's config directory, so
// only the first import in a fresh environment prompts.
type FileTokenProvider struct {
	cfg    *oauth2.Config
	path   string
	prompt PromptFunc

	mu     sync.Mutex
	cached *oauth2.Token
}

// NewFileTokenProvider builds a provider for the given OAuth client.
// path is the token file location; empty selects ~/.icsimport/token.json.
func NewFileTokenProvider(clientID, clientSecret, path string, prompt PromptFunc) (*FileTokenProvider, error) {
	if clientID == "" || clientSecret == "" {
		return nil, &AuthError{Err: errors.New("oauth client id/secret not configured")}
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, ".icsimport", "token.json")
	}
	return &FileTokenProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		},
		path:   path,
		prompt: prompt,
	}, nil
}

func (p *FileTokenProvider) Token(ctx context.Context, interactive bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached == nil {
		p.cached = p.loadToken()
	}

	if p.cached != nil {
		// TokenSource refreshes through the refresh token when the
		// access token is stale.
		tok, err := p.cfg.TokenSource(ctx, p.cached).Token()
		if err == nil {
			p.storeToken(tok)
			return tok.AccessToken, nil
		}
		appLog.Warn("token refresh failed", "reason", err.Error())
		p.cached = nil
	}

	if !interactive {
		return "", &AuthError{Err: errors.New("no valid credential and interactive auth not allowed")}
	}

	tok, err := p.authorize(ctx)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	p.storeToken(tok)
	return tok.AccessToken, nil
}

// Invalidate drops the cached access token. The refresh token on disk
// is kept so the next Token call can re-authenticate silently.
func (p *FileTokenProvider) Invalidate() {
	p.mu.Lock()
	if p.cached != nil {
		p.cached.AccessToken = ""
	}
	p.mu.Unlock()
}

func (p *FileTokenProvider) authorize(ctx context.Context) (*oauth2.Token, error) {
	if p.prompt == nil {
		return nil, errors.New("no prompt configured for interactive auth")
	}
	url := p.cfg.AuthCodeURL("state", oauth2.AccessTypeOffline)
	code, err := p.prompt(ctx, url)
	if err != nil {
		return nil, err
	}
	return p.cfg.Exchange(ctx, code)
}

func (p *FileTokenProvider) loadToken() *oauth2.Token {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		appLog.Warn("corrupt token file ignored", "path", p.path)
		return nil
	}
	return &tok
}

func (p *FileTokenProvider) storeToken(tok *oauth2.Token) {
	p.cached = tok
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		appLog.Error("cannot create token directory", err, "path", p.path)
		return
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return
	}
	if err := os.WriteFile(p.path, data, 0o600); err != nil {
		appLog.Error("cannot persist token", err, "path", p.path)
	}
}
