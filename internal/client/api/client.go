// Package api is the HTTP client for the Foldr sync server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/foldr/foldr-go/internal/model"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

var (
	// ErrOffline reports that the server could not be reached, including the
	// synthesized offline response of the request cache layer.
	ErrOffline = errors.New("offline")
	// ErrAuth matches 401 and 403 responses.
	ErrAuth = errors.New("not authorized")
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")
)

// Error is a failed API call as reported by the server envelope.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Is lets errors.Is match an *Error against ErrAuth and ErrNotFound.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Session is what signup and login hand back.
type Session struct {
	UserID string
	Token  string
}

// Client talks to the sync server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTransport routes requests through rt, e.g. the offline worker.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Signup creates an account and returns its session.
func (c *Client) Signup(ctx context.Context, email, password, inviteCode string) (Session, error) {
	var resp model.AuthResponse
	req := model.SignupRequest{Email: email, Password: password, InviteCode: inviteCode}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", "", req, &resp); err != nil {
		return Session{}, fmt.Errorf("signup: %w", err)
	}
	return sessionOf(resp)
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp model.AuthResponse
	req := model.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", "", req, &resp); err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	return sessionOf(resp)
}

// ChangePassword replaces the password after checking the current one.
func (c *Client) ChangePassword(ctx context.Context, email, current, next string) error {
	req := model.ChangePasswordRequest{Email: email, CurrentPassword: current, NewPassword: next}
	if err := c.do(ctx, http.MethodPost, "/api/auth/change-password", "", req, nil); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// ResetPassword sets a new password, authorized by the invite code.
func (c *Client) ResetPassword(ctx context.Context, email, next, inviteCode string) error {
	req := model.ResetPasswordRequest{Email: email, NewPassword: next, InviteCode: inviteCode}
	if err := c.do(ctx, http.MethodPost, "/api/auth/reset-password", "", req, nil); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// Pull fetches the complete snapshot of the token's user.
func (c *Client) Pull(ctx context.Context, token string) (model.PullResponse, error) {
	var resp model.PullResponse
	if err := c.do(ctx, http.MethodGet, "/api/sync/pull", token, nil, &resp); err != nil {
		return model.PullResponse{}, fmt.Errorf("pull: %w", err)
	}
	return resp, nil
}

// Push uploads a snapshot.
func (c *Client) Push(ctx context.Context, token string, req model.PushRequest) (model.PushResponse, error) {
	var resp model.PushResponse
	if err := c.do(ctx, http.MethodPost, "/api/sync/push", token, req, &resp); err != nil {
		return model.PushResponse{}, fmt.Errorf("push: %w", err)
	}
	return resp, nil
}

// Delete propagates deletions.
func (c *Client) Delete(ctx context.Context, token string, req model.DeleteRequest) error {
	if err := c.do(ctx, http.MethodPost, "/api/sync/delete", token, req, nil); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("building URL: %w", err)
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrOffline, err)
	}

	if resp.StatusCode != http.StatusOK {
		var env model.ErrorResponse
		_ = json.Unmarshal(raw, &env)
		if env.Offline {
			return ErrOffline
		}
		return &Error{Status: resp.StatusCode, Message: env.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func sessionOf(resp model.AuthResponse) (Session, error) {
	if resp.Token == "" || resp.UserID == "" {
		return Session{}, errors.New("server returned an incomplete session")
	}
	return Session{UserID: resp.UserID, Token: resp.Token}, nil
}
