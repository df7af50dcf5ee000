package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ferrytech/authkit"
)

const defaultTimeout = 30 * time.Second

// Client is an HTTP [authkit.Backend]. It talks to three endpoints under
// the base URL: POST /login, POST /refresh, and GET /logout.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	log         zerolog.Logger
	jwtFallback bool
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The coordinator
// bounds each call with its own context, so the client's Timeout is a
// second line of defense, not the primary one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the request logger. Defaults to a disabled logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithJWTExpiryFallback derives missing expiry fields from the tokens' exp
// claims. The tokens are decoded without signature verification, since the
// client never trusts them for authorization, only for scheduling.
func WithJWTExpiryFallback(enabled bool) Option {
	return func(c *Client) { c.jwtFallback = enabled }
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login implements [authkit.Backend].
func (c *Client) Login(ctx context.Context, creds authkit.Credentials) (*authkit.TokenGrant, error) {
	body := loginRequest{
		Identity: creds.Identity,
		Password: creds.Password,
		Role:     creds.Role,
	}

	var payload grantResponse
	if err := c.post(ctx, "/login", body, &payload); err != nil {
		return nil, err
	}

	grant, err := c.toGrant(payload)
	if err != nil {
		return nil, err
	}
	if grant.User == nil {
		return nil, fmt.Errorf("login response missing user record: %w", authkit.ErrMalformedGrant)
	}
	return grant, nil
}

// Refresh implements [authkit.Backend]. A response without a user record
// yields a grant with a nil user; the coordinator keeps its cached one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*authkit.TokenGrant, error) {
	var payload grantResponse
	if err := c.post(ctx, "/refresh", refreshRequest{RefreshToken: refreshToken}, &payload); err != nil {
		return nil, err
	}
	return c.toGrant(payload)
}

// Logout implements [authkit.Backend]. Best effort; the caller ignores the
// result for local-state purposes.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/logout", nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logout: %w: %v", authkit.ErrBackendUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	c.log.Debug().Str("request_id", requestID).Int("status", resp.StatusCode).Msg("logout notice sent")
	if resp.StatusCode >= 400 {
		return fmt.Errorf("logout: %w: status %d", authkit.ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

// post issues one JSON request and decodes a success payload into out.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	encoded, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Str("path", path).Str("request_id", requestID).Err(err).Msg("request failed")
		return fmt.Errorf("%s: %w: %v", path, authkit.ErrBackendUnavailable, err)
	}
	defer drainAndClose(resp.Body)

	c.log.Debug().
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(path, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, authkit.ErrMalformedGrant)
	}
	return nil
}

// errorBody is the failure payload shape; servers differ on the field
// name.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// errorFromResponse maps HTTP failures onto the authkit taxonomy: 4xx
// authentication statuses are credential rejections carrying the server's
// message, everything else is backend unavailability.
func (c *Client) errorFromResponse(path string, resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		msg := body.text()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s: %w: %s", path, authkit.ErrInvalidCredentials, msg)
	default:
		return fmt.Errorf("%s: %w: status %d", path, authkit.ErrBackendUnavailable, resp.StatusCode)
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
