package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"gamehall/internal/core"
	"gamehall/internal/report"
)

// DefaultTimeout bounds every remote call; expiry is a transport failure
const DefaultTimeout = 10 * time.Second

// Actions understood by the backend
const (
	ActionGetDevices        = "get_devices"
	ActionGetActiveSessions = "get_active_sessions"
	ActionGetStats          = "get_stats"
	ActionGetDailyReport    = "get_daily_report"
	ActionLogin             = "login"
	ActionStartSession      = "start_session"
	ActionEndSession        = "end_session"
	ActionExtendSession     = "extend_session"
	ActionSwitchToUnlimited = "switch_to_unlimited"
)

// StartRequest is the body of a start_session call
type StartRequest struct {
	DeviceID   string           `json:"device_id"`
	PlayerName string           `json:"player_name"`
	Type       core.SessionType `json:"session_type"`
	TimeLimit  *int             `json:"time_limit"`
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Client talks to the remote persistence backend. Every call is a single
// attempt; network errors, 5xx responses and undecodable bodies wrap
// core.ErrTransport and {"success":false} responses wrap core.ErrRejected.
type Client struct {
	baseURL    string
	httpClient *http.Client
	location   *time.Location
	logger     *slog.Logger
}

// NewClient creates a new remote backend client
func NewClient(baseURL string, timeout time.Duration, location *time.Location, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		location: location,
		logger:   logger.With("component", "remote-client"),
	}
}

// Probe checks that the backend answers
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.Stats(ctx)
	return err
}

// Devices retrieves the device pool
func (c *Client) Devices(ctx context.Context) ([]*core.Device, error) {
	var wire []wireDevice
	if err := c.doRequest(ctx, http.MethodGet, ActionGetDevices, nil, nil, &wire); err != nil {
		return nil, err
	}

	devices := make([]*core.Device, 0, len(wire))
	for _, w := range wire {
		devices = append(devices, w.toCore())
	}
	return devices, nil
}

// ActiveSessions retrieves all open sessions
func (c *Client) ActiveSessions(ctx context.Context) ([]*core.Session, error) {
	var wire []wireSession
	if err := c.doRequest(ctx, http.MethodGet, ActionGetActiveSessions, nil, nil, &wire); err != nil {
		return nil, err
	}

	sessions := make([]*core.Session, 0, len(wire))
	for _, w := range wire {
		session, err := w.toCore(c.location)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrTransport, ActionGetActiveSessions, err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Stats retrieves today's aggregates
func (c *Client) Stats(ctx context.Context) (*core.Stats, error) {
	var wire wireStats
	if err := c.doRequest(ctx, http.MethodGet, ActionGetStats, nil, nil, &wire); err != nil {
		return nil, err
	}
	return &core.Stats{
		ActiveSessions:    int(wire.ActiveSessions.Value),
		TotalTimeToday:    int(wire.TotalTimeToday.Value),
		TotalRevenueToday: wire.TotalRevenueToday.Value,
	}, nil
}

// DailyReport retrieves the report for a YYYY-MM-DD day
func (c *Client) DailyReport(ctx context.Context, day string) (*report.Report, error) {
	query := url.Values{}
	query.Set("date", day)

	var wire wireReport
	if err := c.doRequest(ctx, http.MethodGet, ActionGetDailyReport, query, nil, &wire); err != nil {
		return nil, err
	}

	r, err := wire.toCore(c.location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrTransport, ActionGetDailyReport, err)
	}
	if r.Date == "" {
		r.Date = day
	}
	return r, nil
}

// Login authenticates an operator
func (c *Client) Login(ctx context.Context, username, password string) (*core.Operator, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	var result struct {
		User *wireOperator `json:"user"`
	}
	if err := c.doRequest(ctx, http.MethodPost, ActionLogin, nil, body, &result); err != nil {
		return nil, err
	}

	operator := &core.Operator{Username: username}
	if result.User != nil {
		operator.ID = string(result.User.ID)
		if result.User.Username != "" {
			operator.Username = result.User.Username
		}
	}
	return operator, nil
}

// StartSession opens a session on the backend
func (c *Client) StartSession(ctx context.Context, req StartRequest) error {
	return c.doRequest(ctx, http.MethodPost, ActionStartSession, nil, req, nil)
}

// EndSession closes a session and returns the cost the backend charged
func (c *Client) EndSession(ctx context.Context, sessionID string) (int64, error) {
	body := map[string]string{"session_id": sessionID}

	var result struct {
		TotalCost flexInt `json:"total_cost"`
	}
	if err := c.doRequest(ctx, http.MethodPost, ActionEndSession, nil, body, &result); err != nil {
		return 0, err
	}
	return result.TotalCost.Value, nil
}

// ExtendSession raises the time limit of a session
func (c *Client) ExtendSession(ctx context.Context, sessionID string, additionalMinutes int) error {
	body := map[string]any{
		"session_id":         sessionID,
		"additional_minutes": additionalMinutes,
	}
	return c.doRequest(ctx, http.MethodPost, ActionExtendSession, nil, body, nil)
}

// SwitchToUnlimited drops the time limit of a session
func (c *Client) SwitchToUnlimited(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	return c.doRequest(ctx, http.MethodPost, ActionSwitchToUnlimited, nil, body, nil)
}

// doRequest performs one call against {base}?action=<action>
func (c *Client) doRequest(ctx context.Context, method, action string, query url.Values, body, result any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("%w: invalid base URL: %v", core.ErrTransport, err)
	}
	q := u.Query()
	q.Set("action", action)
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("API request", "method", method, "action", action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrTransport, action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %v", core.ErrTransport, action, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s: status %d", core.ErrTransport, action, resp.StatusCode)
	}

	trimmed := bytes.TrimSpace(respBody)
	isObject := len(trimmed) > 0 && trimmed[0] == '{'

	// Mutations always answer with a {success, message} envelope
	if method == http.MethodPost && !isObject {
		return fmt.Errorf("%w: %s: response is not a JSON object", core.ErrTransport, action)
	}

	if isObject {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return fmt.Errorf("%w: %s: failed to decode response: %v", core.ErrTransport, action, err)
		}
		if method == http.MethodPost && env.Success == nil {
			env.Success = new(bool)
		}
		if env.Success != nil && !*env.Success {
			message := env.Message
			if message == "" {
				message = "request failed"
			}
			return fmt.Errorf("%w: %s", core.ErrRejected, message)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s: status %d", core.ErrRejected, action, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(trimmed, result); err != nil {
			return fmt.Errorf("%w: %s: failed to decode response: %v", core.ErrTransport, action, err)
		}
	}

	return nil
}
