package identity

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

	"sitecms/internal/service"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	BaseURL    string
	ServiceKey string
	AnonKey    string
	Timeout    time.Duration
}

// Client talks to a GoTrue-compatible auth server. Admin calls use the
// service key; sign-in and token lookups use the anon key.
type Client struct {
	baseURL    string
	serviceKey string
	anonKey    string
	timeout    time.Duration
	HTTPClient *http.Client
}

type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity provider returned %d: %s", e.Status, e.Message)
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
	User        userResponse `json:"user"`
}

type errorResponse struct {
	Message          string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	anonKey := cfg.AnonKey
	if anonKey == "" {
		anonKey = cfg.ServiceKey
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		anonKey:    anonKey,
		timeout:    timeout,
		HTTPClient: &http.Client{},
	}
}

func (c *Client) CreateIdentity(ctx context.Context, email string, password string) (*service.Identity, error) {
	payload := map[string]any{
		"email":         email,
		"password":      password,
		"email_confirm": true,
	}
	var user userResponse
	err := c.do(ctx, http.MethodPost, "/admin/users", c.serviceKey, c.serviceKey, payload, &user)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isAlreadyRegistered(apiErr) {
			return nil, service.ErrIdentityExists
		}
		return nil, err
	}
	return toIdentity(user)
}

// DeleteIdentity treats an identity that is already gone as deleted.
func (c *Client) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	err := c.do(ctx, http.MethodDelete, "/admin/users/"+id.String(), c.serviceKey, c.serviceKey, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) UpdatePassword(ctx context.Context, id uuid.UUID, password string) error {
	payload := map[string]any{"password": password}
	err := c.do(ctx, http.MethodPut, "/admin/users/"+id.String(), c.serviceKey, c.serviceKey, payload, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return service.ErrIdentityNotFound
	}
	return err
}

func (c *Client) SignIn(ctx context.Context, email string, password string) (*service.ProviderSession, error) {
	payload := map[string]any{"email": email, "password": password}
	var token tokenResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=password", c.anonKey, "", payload, &token)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized) {
			return nil, service.ErrInvalidCredentials
		}
		return nil, err
	}
	identity, err := toIdentity(token.User)
	if err != nil {
		return nil, err
	}
	return &service.ProviderSession{
		AccessToken: token.AccessToken,
		ExpiresIn:   token.ExpiresIn,
		Identity:    *identity,
	}, nil
}

// VerifyToken resolves an access token through the provider's /user endpoint.
func (c *Client) VerifyToken(ctx context.Context, token string) (*service.Identity, error) {
	var user userResponse
	if err := c.do(ctx, http.MethodGet, "/user", c.anonKey, token, nil, &user); err != nil {
		return nil, err
	}
	return toIdentity(user)
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	apiKey string,
	bearer string,
	payload any,
	out any,
) error {
	if c.baseURL == "" {
		return errors.New("identity provider not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	if apiKey != "" {
		request.Header.Set("apikey", apiKey)
	}
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	response, err := c.HTTPClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	data, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return err
	}
	if response.StatusCode >= 300 {
		return &APIError{Status: response.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func errorMessage(data []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err == nil {
		for _, candidate := range []string{parsed.Message, parsed.ErrorDescription, parsed.Error} {
			if candidate != "" {
				return candidate
			}
		}
	}
	return strings.TrimSpace(string(data))
}

func isAlreadyRegistered(err *APIError) bool {
	if err.Status == http.StatusConflict {
		return true
	}
	if err.Status != http.StatusUnprocessableEntity && err.Status != http.StatusBadRequest {
		return false
	}
	message := strings.ToLower(err.Message)
	return strings.Contains(message, "already") || strings.Contains(message, "exists")
}

func toIdentity(user userResponse) (*service.Identity, error) {
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, fmt.Errorf("identity provider returned invalid id %q: %w", user.ID, err)
	}
	return &service.Identity{ID: id, Email: user.Email}, nil
}
