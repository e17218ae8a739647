package yahoo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"saleschecker/pkg/marketplace"
)

const (
	defaultAuthURL  = "https://auth.login.yahoo.co.jp/yconnect/v2/authorization"
	defaultTokenURL = "https://auth.login.yahoo.co.jp/yconnect/v2/token"

	// refreshSkew refreshes tokens slightly before their nominal expiry so
	// an in-flight request never carries a token that dies mid-call.
	refreshSkew = time.Minute

	defaultExpiresIn = 3600
)

// TokenState is the explicit OAuth2 token lifecycle state.
type TokenState int

const (
	StateUnauthenticated TokenState = iota
	StateValid
	StateExpiringSoon
	StateExpired
	StateRefreshFailed
)

func (s TokenState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateValid:
		return "valid"
	case StateExpiringSoon:
		return "expiring_soon"
	case StateExpired:
		return "expired"
	case StateRefreshFailed:
		return "refresh_failed"
	}
	return "unknown"
}

// tokenFileData is the persisted token shape. An absent file means the
// unauthenticated state.
type tokenFileData struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// Session owns one connection's OAuth2 credential set and token lifecycle.
// Tokens are persisted to a per-connection JSON file; the design assumes a
// single active process and performs no cross-process locking.
type Session struct {
	clientID     string
	clientSecret string
	authURL      string
	tokenURL     string
	tokenFile    string
	httpClient   *http.Client
	now          func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiry       time.Time
	refreshDead  bool
}

// SessionOption configures a new Session.
type SessionOption func(*Session)

// WithTokenFile sets the token persistence path.
func WithTokenFile(path string) SessionOption {
	return func(s *Session) {
		if path != "" {
			s.tokenFile = path
		}
	}
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(url string) SessionOption {
	return func(s *Session) {
		if url != "" {
			s.tokenURL = url
		}
	}
}

// WithSessionHTTPClient injects a custom http.Client for token calls.
func WithSessionHTTPClient(hc *http.Client) SessionOption {
	return func(s *Session) {
		if hc != nil {
			s.httpClient = hc
		}
	}
}

// WithClock injects the wall clock used for expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession constructs an OAuth2 session for one connection. Missing client
// credentials are a fatal configuration error.
func NewSession(clientID, clientSecret string, opts ...SessionOption) (*Session, error) {
	if clientID == "" || clientSecret == "" {
		return nil, &marketplace.ConfigError{
			Kind:   "yahoo",
			Reason: "client_id and client_secret are required",
		}
	}
	s := &Session{
		clientID:     clientID,
		clientSecret: clientSecret,
		authURL:      defaultAuthURL,
		tokenURL:     defaultTokenURL,
		tokenFile:    "data/tokens/yahoo.json",
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.loadToken()
	return s, nil
}

// State reports the current token lifecycle state.
func (s *Session) State() TokenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() TokenState {
	if s.refreshDead {
		return StateRefreshFailed
	}
	switch {
	case s.accessToken == "" && s.refreshToken == "":
		return StateUnauthenticated
	case s.accessToken == "":
		return StateExpired
	case s.expiry.IsZero():
		return StateValid
	}
	now := s.now()
	switch {
	case !now.Before(s.expiry):
		return StateExpired
	case s.expiry.Sub(now) <= refreshSkew:
		return StateExpiringSoon
	default:
		return StateValid
	}
}

// AuthURL builds the authorization-code URL the seller must visit.
func (s *Session) AuthURL(redirectURI, state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", s.clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("scope", "openid profile")
	params.Set("state", state)
	return s.authURL + "?" + params.Encode()
}

// Authenticate exchanges an authorization code for tokens and persists them.
func (s *Session) Authenticate(ctx context.Context, code, redirectURI string) error {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	body, err := s.tokenRequest(ctx, form)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyTokenLocked(body)
	return s.saveTokenLocked()
}

// Token returns a usable access token, refreshing it when expired or about
// to expire. A rejected refresh token clears persisted state and returns
// marketplace.ErrAuthExpired; the caller must redo the authorization-code
// exchange out-of-band.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stateLocked() {
	case StateValid:
		return s.accessToken, nil
	case StateUnauthenticated:
		return "", marketplace.ErrNotAuthenticated
	case StateRefreshFailed:
		return "", marketplace.ErrAuthExpired
	}

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return marketplace.ErrAuthExpired
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.refreshToken)

	body, err := s.tokenRequest(ctx, form)
	if err != nil {
		if isInvalidGrant(err) {
			s.accessToken = ""
			s.refreshToken = ""
			s.expiry = time.Time{}
			s.refreshDead = true
			if saveErr := s.saveTokenLocked(); saveErr != nil {
				return fmt.Errorf("%w (token file: %v)", marketplace.ErrAuthExpired, saveErr)
			}
			return marketplace.ErrAuthExpired
		}
		return err
	}

	s.applyTokenLocked(body)
	return s.saveTokenLocked()
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type tokenEndpointError struct {
	status int
	code   string
	desc   string
}

func (e *tokenEndpointError) Error() string {
	return fmt.Sprintf("yahoo: token endpoint status %d: %s %s", e.status, e.code, e.desc)
}

func isInvalidGrant(err error) bool {
	var te *tokenEndpointError
	return errors.As(err, &te) && te.code == "invalid_grant"
}

func (s *Session) tokenRequest(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("yahoo: build token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: token request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo: read token response: %w", err)
	}

	var body tokenResponse
	if err := json.Unmarshal(data, &body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &tokenEndpointError{status: resp.StatusCode}
		}
		return nil, fmt.Errorf("yahoo: decode token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &tokenEndpointError{status: resp.StatusCode, code: body.Error, desc: body.ErrorDescription}
	}
	return &body, nil
}

func (s *Session) applyTokenLocked(body *tokenResponse) {
	s.accessToken = body.AccessToken
	if body.RefreshToken != "" {
		s.refreshToken = body.RefreshToken
	}
	expiresIn := body.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	s.expiry = s.now().Add(time.Duration(expiresIn) * time.Second)
	s.refreshDead = false
}

// Invalidate clears the in-memory tokens and removes the persisted state.
func (s *Session) Invalidate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiry = time.Time{}
	s.refreshDead = false
	if err := os.Remove(s.tokenFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("yahoo: remove token file: %w", err)
	}
	return nil
}

func (s *Session) loadToken() {
	data, err := os.ReadFile(s.tokenFile)
	if err != nil {
		return
	}
	var stored tokenFileData
	if err := json.Unmarshal(data, &stored); err != nil {
		return
	}
	s.accessToken = stored.AccessToken
	s.refreshToken = stored.RefreshToken
	if stored.ExpiresAt != nil {
		s.expiry = *stored.ExpiresAt
	}
}

func (s *Session) saveTokenLocked() error {
	stored := tokenFileData{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
	}
	if !s.expiry.IsZero() {
		expiry := s.expiry
		stored.ExpiresAt = &expiry
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("yahoo: encode token file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.tokenFile), 0o755); err != nil {
		return fmt.Errorf("yahoo: create token dir: %w", err)
	}
	if err := os.WriteFile(s.tokenFile, data, 0o600); err != nil {
		return fmt.Errorf("yahoo: write token file: %w", err)
	}
	return nil
}
