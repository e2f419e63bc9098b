// Package remote is the client side of the HTTP API. Every call is bounded
// by a timeout, and failures are classified with the errs sentinels.
package remote

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

	"github.com/atinyakov/AuraTemple/internal/errs"
	"github.com/atinyakov/AuraTemple/internal/game"
	"github.com/atinyakov/AuraTemple/internal/models"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 4 * time.Second

// Client talks to the aura server at BaseURL.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// New returns a Client. A nil httpClient means http.DefaultClient; a
// non-positive timeout means DefaultTimeout.
func New(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, timeout: timeout}
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, creds models.Credentials) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", "", creds, &out)
	return out, err
}

// Login opens a new session, revoking the previous one.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (models.AuthResponse, error) {
	var out models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", creds, &out)
	return out, err
}

// FetchProgress returns the authoritative state of the token's account.
func (c *Client) FetchProgress(ctx context.Context, token string) (models.ProgressResponse, error) {
	var out models.ProgressResponse
	err := c.do(ctx, http.MethodGet, "/progress", token, nil, &out)
	return out, err
}

// PushProgress replaces the authoritative state and returns what the
// server stored.
func (c *Client) PushProgress(ctx context.Context, token string, state game.PlayerState) (game.PlayerState, error) {
	var out models.SavedProgress
	err := c.do(ctx, http.MethodPost, "/progress", token, models.SavedProgress{State: state}, &out)
	return out.State, err
}

// Leaderboard returns the shared board.
func (c *Client) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	var out []models.LeaderboardEntry
	err := c.do(ctx, http.MethodGet, "/leaderboard", "", nil, &out)
	return out, err
}

// SubmitScore reports a score and returns the updated board.
func (c *Client) SubmitScore(ctx context.Context, sub models.ScoreSubmission) ([]models.LeaderboardEntry, error) {
	var out []models.LeaderboardEntry
	err := c.do(ctx, http.MethodPost, "/leaderboard", "", sub, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", errs.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", errs.ErrTransient, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", errs.ErrTransient, path, err)
	}
	return nil
}

func statusError(code int, body []byte) error {
	var e models.ErrorResponse
	msg := http.StatusText(code)
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}

	var kind error
	switch code {
	case http.StatusBadRequest:
		kind = errs.ErrValidation
	case http.StatusUnauthorized:
		kind = errs.ErrUnauthorized
	case http.StatusConflict:
		kind = errs.ErrConflict
	case http.StatusTooManyRequests:
		kind = errs.ErrRateLimited
	default:
		kind = errs.ErrTransient
	}
	if errors.Is(kind, errs.ErrTransient) {
		return fmt.Errorf("%w: status %d: %s", kind, code, msg)
	}
	return fmt.Errorf("%w: %s", kind, msg)
}
