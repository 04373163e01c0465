package walletapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"walletapp/internal/models"

	"go.uber.org/zap"
)

// TokenStore persists the bearer token across restarts. Implementations must
// treat a missing token as ("", nil).
type TokenStore interface {
	StoreToken(token string) error
	GetToken() (string, error)
	ClearToken() error
}

// MemoryTokenStore keeps the token in process memory only. It is the default
// when no durable store is configured, and what tests use.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) StoreToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) GetToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryTokenStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// Config holds the dependencies for a Client.
type Config struct {
	// APIBaseURL is the wallet backend base URL including the /api path.
	APIBaseURL string
	// BankBaseURL is the external settlement service base URL.
	BankBaseURL string
	// HTTPClient defaults to http.DefaultClient. No client-side timeout is
	// imposed; cancellation is the caller's via context.
	HTTPClient *http.Client
	// Tokens defaults to an in-memory store.
	Tokens TokenStore
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Client talks to the wallet backend and the settlement service on behalf of
// one session. It owns the persisted token and the last-fetched user profile;
// both are invalidated together when the backend rejects the session.
type Client struct {
	apiBase  string
	bankBase string
	http     *http.Client
	tokens   TokenStore
	log      *zap.Logger

	mu   sync.Mutex
	user *models.User
}

// NewClient creates a Client from the given config, filling in defaults.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		apiBase:  cfg.APIBaseURL,
		bankBase: cfg.BankBaseURL,
		http:     httpClient,
		tokens:   tokens,
		log:      log,
	}
}

// CachedUser returns a copy of the last-fetched user profile, or nil when no
// profile is cached. It never triggers a network call.
func (c *Client) CachedUser() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Client) cacheUser(u *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = u
}

// currentToken reads the stored token; read failures degrade to "no token".
func (c *Client) currentToken() string {
	token, err := c.tokens.GetToken()
	if err != nil {
		c.log.Warn("reading stored token failed", zap.Error(err))
		return ""
	}
	return token
}

// invalidateSession drops the persisted token and the cached profile. Called
// exactly when an authenticated call observes 401 or 403.
func (c *Client) invalidateSession() {
	if err := c.tokens.ClearToken(); err != nil {
		c.log.Warn("clearing stored token failed", zap.Error(err))
	}
	c.cacheUser(nil)
}

// errorPayload is the error body shape the backend uses.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorMessage(body []byte, fallback string) string {
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fallback
}

// doJSON issues one request and decodes the response according to the
// response-handling contract:
//
//	2xx        → decode into out (MalformedResponseError on parse failure)
//	401/403    → invalidate session, SessionExpiredError (authed calls only)
//	other non-2xx → BackendRejectedError with the payload's error/message
//	no response   → NetworkError
func (c *Client) doJSON(ctx context.Context, op, method, url string, authed bool, body, out any, fallback string) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &NetworkError{Op: op, Err: err}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		if token := c.currentToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	// On unauthenticated endpoints a 401 is an ordinary rejection (e.g. bad
	// login credentials), not a session expiry.
	if authed && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		c.invalidateSession()
		return &SessionExpiredError{Status: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &BackendRejectedError{
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(data, fallback),
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &MalformedResponseError{Op: op, Err: err}
		}
	}
	return nil
}
