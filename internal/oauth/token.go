// Package oauth exchanges a refresh token for a short-lived access token
// at an OAuth2 token endpoint.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// maxResponseBytes caps how much of a token response is read.
const maxResponseBytes = 1 << 20

// AuthError indicates that the token endpoint rejected the refresh
// credential. Details is the parsed response body, or {"raw": text} when
// the body was not JSON.
type AuthError struct {
	StatusCode int
	Details    map[string]any
}

func (e *AuthError) Error() string {
	msg := "token endpoint rejected refresh token"
	if desc, ok := e.Details["error_description"].(string); ok && desc != "" {
		// Microsoft descriptions carry trace ids on later lines.
		desc, _, _ = strings.Cut(desc, "\r\n")
		return fmt.Sprintf("%s (status %d): %s", msg, e.StatusCode, desc)
	}
	if code, ok := e.Details["error"].(string); ok && code != "" {
		return fmt.Sprintf("%s (status %d): %s", msg, e.StatusCode, code)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
}

// MissingTokenError indicates a success response without an access_token.
type MissingTokenError struct {
	Details map[string]any
}

func (e *MissingTokenError) Error() string {
	return "token response has no access_token"
}

// IsAuthError reports whether err (or any error in its chain) is an
// *AuthError or a *MissingTokenError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	var missingErr *MissingTokenError
	return errors.As(err, &authErr) || errors.As(err, &missingErr)
}

// Details returns the structured detail payload carried by a token error,
// or nil when err is not one.
func Details(err error) map[string]any {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Details
	}
	var missingErr *MissingTokenError
	if errors.As(err, &missingErr) {
		return missingErr.Details
	}
	return nil
}

// Exchanger performs refresh_token grants against a single token endpoint.
type Exchanger struct {
	tokenURL   string
	httpClient *http.Client
	now        func() time.Time
}

// NewExchanger returns an Exchanger for tokenURL. A nil client uses a
// client with a 15 second timeout.
func NewExchanger(tokenURL string, client *http.Client) *Exchanger {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Exchanger{
		tokenURL:   tokenURL,
		httpClient: client,
		now:        time.Now,
	}
}

// tokenResponse is the subset of the token endpoint's JSON we read.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Exchange trades refreshToken for an access token. Each call hits the
// endpoint; nothing is cached between requests.
func (x *Exchanger) Exchange(
	ctx context.Context, clientID, refreshToken string,
) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, x.tokenURL, strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	obtainedAt := x.now()
	resp, err := x.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	var parsed map[string]any
	jsonErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		details := parsed
		if jsonErr != nil || len(parsed) == 0 {
			details = map[string]any{"raw": string(body)}
		}
		return nil, &AuthError{StatusCode: resp.StatusCode, Details: details}
	}

	var tr tokenResponse
	if jsonErr == nil {
		_ = json.Unmarshal(body, &tr)
	}
	if tr.AccessToken == "" {
		details := parsed
		if details == nil {
			details = map[string]any{"raw": string(body)}
		}
		return nil, &MissingTokenError{Details: details}
	}

	tok := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = obtainedAt.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok.WithExtra(map[string]any{"obtained_at": obtainedAt}), nil
}
