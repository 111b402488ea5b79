package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 15 * time.Second

var (
	ErrInvalidClientConfig = errors.New("identity: invalid client config")

	errMissingBaseURL = errors.New("base url configuration required")
	errMissingAnonKey = errors.New("anon key configuration required")
)

// APIError carries a collaborator failure with the HTTP status it reported,
// so handlers can propagate the provider's message verbatim.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity: provider returned %d: %s", e.Status, e.Message)
}

// Metadata is the provider-held profile metadata relevant to this portal.
type Metadata struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// Profile is the provider's view of an account.
type Profile struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	UserMetadata Metadata `json:"user_metadata"`
}

// Session bundles the tokens and profile returned by a successful exchange.
type Session struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	ExpiresIn    int64   `json:"expires_in"`
	User         Profile `json:"user"`
}

// ClientConfig bundles configuration required to instantiate a Client.
type ClientConfig struct {
	BaseURL    string
	AnonKey    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to a GoTrue-compatible identity provider over HTTP. It owns
// credential verification, OAuth code exchange and session refresh; this
// codebase never sees raw credentials beyond forwarding them.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingBaseURL)
	}
	anonKey := strings.TrimSpace(cfg.AnonKey)
	if anonKey == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingAnonKey)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		anonKey:    anonKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// SignUp registers a new account with the provider and returns its session.
func (c *Client) SignUp(ctx context.Context, email, password string) (Session, error) {
	payload := map[string]string{"email": email, "password": password}
	return c.postForSession(ctx, "/auth/v1/signup", payload)
}

// SignInWithPassword exchanges local credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	payload := map[string]string{"email": email, "password": password}
	return c.postForSession(ctx, "/auth/v1/token?grant_type=password", payload)
}

// ExchangeCode trades an OAuth authorization code for a session.
func (c *Client) ExchangeCode(ctx context.Context, code string) (Session, error) {
	payload := map[string]string{"auth_code": code}
	return c.postForSession(ctx, "/auth/v1/token?grant_type=pkce", payload)
}

// RefreshSession rotates the session using the refresh token.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}
	return c.postForSession(ctx, "/auth/v1/token?grant_type=refresh_token", payload)
}

// GetUser resolves the profile behind an access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", http.NoBody)
	if err != nil {
		return Profile{}, err
	}
	c.decorate(req)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Profile{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, decodeAPIError(resp.StatusCode, body)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return Profile{}, fmt.Errorf("identity: decode profile: %w", err)
	}
	return profile, nil
}

// AuthorizeURL builds the provider's OAuth entry point for the browser to
// follow. The PKCE dance itself belongs to the provider.
func (c *Client) AuthorizeURL(provider, redirectTo string) string {
	query := url.Values{}
	query.Set("provider", provider)
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return c.baseURL + "/auth/v1/authorize?" + query.Encode()
}

func (c *Client) postForSession(ctx context.Context, path string, payload any) (Session, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return Session{}, err
	}
	c.decorate(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("identity provider rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return Session{}, decodeAPIError(resp.StatusCode, body)
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return Session{}, fmt.Errorf("identity: decode session: %w", err)
	}
	if session.AccessToken == "" && session.User.ID == "" {
		return Session{}, &APIError{Status: http.StatusUnauthorized, Message: "No session data"}
	}
	return session, nil
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("apikey", c.anonKey)
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}
}

// decodeAPIError maps the provider's error body, which appears either as
// {"msg": ...} or {"error_description": ...} depending on the endpoint.
func decodeAPIError(status int, body []byte) error {
	var parsed struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Msg != "":
			message = parsed.Msg
		case parsed.Message != "":
			message = parsed.Message
		case parsed.ErrorDescription != "":
			message = parsed.ErrorDescription
		case parsed.ErrorCode != "":
			message = parsed.ErrorCode
		}
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Status: status, Message: message}
}
