package pollclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"voting-platform/internal/domain"
	"voting-platform/pkg/errors"
)

// Client calls the voting platform HTTP API. Error responses come back as *errors.AppError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(zap.String("component", "pollclient")),
	}
}

// SetToken sets the bearer token sent with every request
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges an email for a token and stores it on the client
func (c *Client) Login(ctx context.Context, email string) (*domain.LoginResponse, error) {
	var out domain.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", domain.LoginRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPolls fetches the poll list; an empty status lists every poll
func (c *Client) ListPolls(ctx context.Context, status domain.PollStatus) (*domain.PollsResponse, error) {
	path := "/api/polls"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}

	var out domain.PollsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPoll(ctx context.Context, pollID string) (*domain.Poll, error) {
	var out domain.Poll
	if err := c.doJSON(ctx, http.MethodGet, "/api/polls/"+url.PathEscape(pollID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VotedPollIDs lists the polls the caller has voted in
func (c *Client) VotedPollIDs(ctx context.Context) ([]string, error) {
	var out domain.VotedResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/polls/voted", nil, &out); err != nil {
		return nil, err
	}
	return out.PollIDs, nil
}

func (c *Client) Vote(ctx context.Context, pollID, optionID string) (*domain.PollsResponse, error) {
	return c.pollsCommand(ctx, http.MethodPost, "/api/polls/"+url.PathEscape(pollID)+"/vote", domain.VoteRequest{OptionID: optionID})
}

func (c *Client) CreatePoll(ctx context.Context, input domain.NewPollInput) (*domain.PollsResponse, error) {
	return c.pollsCommand(ctx, http.MethodPost, "/api/polls", input)
}

func (c *Client) TogglePoll(ctx context.Context, pollID string) (*domain.PollsResponse, error) {
	return c.pollsCommand(ctx, http.MethodPost, "/api/polls/"+url.PathEscape(pollID)+"/toggle", nil)
}

func (c *Client) SetPollStatus(ctx context.Context, pollID string, status domain.PollStatus) (*domain.PollsResponse, error) {
	body := map[string]domain.PollStatus{"status": status}
	return c.pollsCommand(ctx, http.MethodPatch, "/api/polls/"+url.PathEscape(pollID)+"/status", body)
}

func (c *Client) DeletePoll(ctx context.Context, pollID string) (*domain.PollsResponse, error) {
	return c.pollsCommand(ctx, http.MethodDelete, "/api/polls/"+url.PathEscape(pollID), nil)
}

func (c *Client) pollsCommand(ctx context.Context, method, path string, body interface{}) (*domain.PollsResponse, error) {
	var out domain.PollsResponse
	if err := c.doJSON(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportXLSX streams the server-side workbook into w. An empty pollID exports every poll.
func (c *Client) ExportXLSX(ctx context.Context, pollID string, w io.Writer) error {
	path := "/api/polls/export"
	if pollID != "" {
		path += "?pollId=" + url.QueryEscape(pollID)
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	return nil
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out domain.UsersResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) UpdateRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	var out domain.User
	if err := c.doJSON(ctx, http.MethodPatch, "/api/users/"+url.PathEscape(userID)+"/role", domain.RoleUpdateRequest{Role: role}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetBanned(ctx context.Context, userID string, banned bool, reason string) (*domain.User, error) {
	var out domain.User
	if err := c.doJSON(ctx, http.MethodPatch, "/api/users/"+url.PathEscape(userID)+"/ban", domain.BanRequest{Banned: banned, Reason: reason}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// do sends the request and turns any non-2xx answer into an *errors.AppError.
// On success the caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, errors.NewExternalError("Voting service unreachable", err)
	}

	c.logger.Debug("Request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

func decodeError(resp *http.Response) *errors.AppError {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil {
		var envelope errors.ErrorResponse
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Type != "" {
			return errors.FromResponse(resp.StatusCode, envelope)
		}
	}

	return &errors.AppError{
		Type:       errors.ErrorTypeExternal,
		Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
		StatusCode: resp.StatusCode,
		Internal:   err,
	}
}
