package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kariteco/storefront-core/internal/users"
	"github.com/kariteco/storefront-core/pkg/types"
)

// APIError is a non-2xx response decoded from the API's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsUnauthorized reports whether err is a 401 API error.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// Config configures the storefront API client.
type Config struct {
	// BaseURL is the API origin, e.g. "https://api.karite.co".
	BaseURL string

	// Storage persists the guest session ID and user profile. Required.
	Storage Storage

	// HTTPClient optionally supplies the underlying client; its transport is
	// wrapped by the auth interceptor.
	HTTPClient *http.Client

	// OnSessionExpired fires when a refresh fails or refreshed credentials
	// are rejected. The token store is already cleared when it runs.
	OnSessionExpired func()
}

// Client is the typed storefront API client. It owns the token store, the
// guest session identity, and the interceptor that keeps sessions fresh.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenStore
	guest   *GuestSessionProvider
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  NewTokenStore(cfg.Storage),
		guest:   NewGuestSessionProvider(cfg.Storage),
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *httpClient
	wrapped.Transport = &authTransport{
		base:             base,
		tokens:           c.tokens,
		refresh:          c.refreshSession,
		onSessionExpired: cfg.OnSessionExpired,
	}
	c.http = &wrapped

	return c, nil
}

// Tokens exposes the session store.
func (c *Client) Tokens() *TokenStore { return c.tokens }

// GuestSession exposes the guest identity provider.
func (c *Client) GuestSession() *GuestSessionProvider { return c.guest }

type authPayload struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RegisterInput carries the signup form fields.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register creates an account and installs the returned session.
func (c *Client) Register(ctx context.Context, input RegisterInput) (*users.UserDTO, error) {
	var payload authPayload
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", input, &payload, nil); err != nil {
		return nil, err
	}
	c.tokens.SetSession(payload.AccessToken, payload.RefreshToken, payload.User)
	return payload.User, nil
}

// Login authenticates and installs the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (*users.UserDTO, error) {
	body := map[string]string{"email": email, "password": password}
	var payload authPayload
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &payload, nil); err != nil {
		return nil, err
	}
	c.tokens.SetSession(payload.AccessToken, payload.RefreshToken, payload.User)
	return payload.User, nil
}

// Logout revokes the server session and always clears local state, even when
// the network call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, nil)
	c.tokens.ClearSession()
	if err != nil && !IsUnauthorized(err) {
		return err
	}
	return nil
}

// ForgotPassword requests a password-reset email. The server responds the
// same way for unknown addresses, so success only means the request was
// accepted.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/forgot-password", body, nil, nil)
}

// ResetPassword redeems an emailed reset code for a new password.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/reset-password", body, nil, nil)
}

// VerifyEmail redeems an emailed verification code.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	body := map[string]string{"token": token}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/verify-email", body, nil, nil)
}

// refreshSession rotates the token pair using the stored refresh token. The
// expired access token still rides along as the bearer so the server can
// locate the session by its jti.
func (c *Client) refreshSession(ctx context.Context) error {
	refreshToken := c.tokens.RefreshToken()
	if refreshToken == "" {
		return fmt.Errorf("no refresh token")
	}

	var payload authPayload
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/refresh", body, &payload, nil); err != nil {
		return err
	}
	c.tokens.UpdateTokens(payload.AccessToken, payload.RefreshToken)
	return nil
}

// ---- authenticated cart ----

func (c *Client) UserCart(ctx context.Context) (*types.CartSnapshot, error) {
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/cart", nil, &snapshot, nil); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) UserCartAdd(ctx context.Context, productID string, quantity int) (*types.CartSnapshot, error) {
	body := map[string]any{"product_id": productID, "quantity": quantity}
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/v1/cart/items", body, &snapshot, nil); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// BulkLine is one entry of a bulk cart merge.
type BulkLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (c *Client) UserCartBulkAdd(ctx context.Context, lines []BulkLine) (*types.CartSnapshot, error) {
	body := map[string]any{"items": lines}
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/v1/cart/items/bulk", body, &snapshot, nil); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) UserCartUpdateItem(ctx context.Context, itemID string, quantity int) (*types.CartSnapshot, error) {
	body := map[string]any{"quantity": quantity}
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodPut, "/api/v1/cart/items/"+itemID, body, &snapshot, nil); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) UserCartRemoveItem(ctx context.Context, itemID string) (*types.CartSnapshot, error) {
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodDelete, "/api/v1/cart/items/"+itemID, nil, &snapshot, nil); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) UserCartClear(ctx context.Context) (*types.CartSnapshot, error) {
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodDelete, "/api/v1/cart", nil, &snapshot, nil); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ---- guest cart ----

func (c *Client) guestHeaders() map[string]string {
	return map[string]string{"X-Guest-Session": c.guest.SessionID()}
}

func (c *Client) GuestCart(ctx context.Context) (*types.CartSnapshot, error) {
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/guest/cart", nil, &snapshot, c.guestHeaders()); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) GuestCartAdd(ctx context.Context, productID string, quantity int) (*types.CartSnapshot, error) {
	body := map[string]any{"product_id": productID, "quantity": quantity}
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/v1/guest/cart/items", body, &snapshot, c.guestHeaders()); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) GuestCartUpdateItem(ctx context.Context, itemID string, quantity int) (*types.CartSnapshot, error) {
	body := map[string]any{"quantity": quantity}
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodPut, "/api/v1/guest/cart/items/"+itemID, body, &snapshot, c.guestHeaders()); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) GuestCartRemoveItem(ctx context.Context, itemID string) (*types.CartSnapshot, error) {
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodDelete, "/api/v1/guest/cart/items/"+itemID, nil, &snapshot, c.guestHeaders()); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) GuestCartClear(ctx context.Context) (*types.CartSnapshot, error) {
	var snapshot types.CartSnapshot
	if err := c.do(ctx, http.MethodDelete, "/api/v1/guest/cart", nil, &snapshot, c.guestHeaders()); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// do issues a request and decodes the {"data": ...} envelope into dest.
func (c *Client) do(ctx context.Context, method, path string, body, dest any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope types.ErrorEnvelope
		if err := json.Unmarshal(raw, &envelope); err == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if dest == nil {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decoding response envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("decoding response data: %w", err)
	}
	return nil
}
