// Package adminapi is the resilient client for the internal administrative
// user service. Every call passes through a circuit breaker so an admin API
// outage degrades to fast failures instead of piling up blocked webhook
// handlers.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequestError wraps a transport failure, timeout or unexpected status from
// the admin API. It is retryable from the caller's point of view and feeds
// the breaker's bookkeeping.
type RequestError struct {
	Status int // 0 for transport-level failures
	Err    error
	Body   string
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("admin API request failed: %v", e.Err)
	}
	return fmt.Sprintf("admin API returned status %d: %s", e.Status, e.Body)
}

func (e *RequestError) Unwrap() error { return e.Err }

// User is the admin API's view of a user record.
type User struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	MaxConcurrentBots int    `json:"max_concurrent_bots"`
}

// EntitlementData is the metadata blob attached to an entitlement update.
type EntitlementData struct {
	SubscriptionID      string     `json:"subscription_id"`
	Tier                string     `json:"tier"`
	Status              string     `json:"status"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date"`
	UpdatedBy           string     `json:"updated_by"`
}

// EntitlementUpdate is the write half of a user entitlement reconciliation.
type EntitlementUpdate struct {
	MaxConcurrentBots int             `json:"max_concurrent_bots"`
	Data              EntitlementData `json:"data"`
}

// Client talks to the admin API with a static shared-secret header, a
// per-call timeout and an injected breaker.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	breaker *Breaker

	httpClient *http.Client
}

// NewClient creates a client. A non-positive timeout falls back to 15s; a
// nil breaker gets the default thresholds.
func NewClient(baseURL, token string, timeout time.Duration, breaker *Breaker) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if breaker == nil {
		breaker = NewBreaker(0, 0)
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		timeout: timeout,
		breaker: breaker,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Breaker exposes the client's breaker for health checks and tooling.
func (c *Client) Breaker() *Breaker { return c.breaker }

// FindOrCreateUser creates a user record keyed by email. The admin API
// answers 409 when the user already exists; that is a success and returns
// the existing record.
func (c *Client) FindOrCreateUser(ctx context.Context, email, name string) (*User, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/admin/users", map[string]string{
		"email": email,
		"name":  name,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK, status == http.StatusCreated, status == http.StatusConflict:
		var user User
		if err := json.Unmarshal(body, &user); err != nil {
			return nil, &RequestError{Status: status, Err: fmt.Errorf("decoding user: %w", err)}
		}
		return &user, nil
	default:
		return nil, &RequestError{Status: status, Body: string(body)}
	}
}

// GetUserByEmail looks up a user record. A missing user is reported as a
// nil user, not an error.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/admin/users/email/"+email, nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var user User
		if err := json.Unmarshal(body, &user); err != nil {
			return nil, &RequestError{Status: status, Err: fmt.Errorf("decoding user: %w", err)}
		}
		return &user, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, &RequestError{Status: status, Body: string(body)}
	}
}

// UpdateUserEntitlement applies a reconciled entitlement to a user record.
func (c *Client) UpdateUserEntitlement(ctx context.Context, userID int64, update EntitlementUpdate) error {
	if update.Data.UpdatedBy == "" {
		update.Data.UpdatedBy = "webhook"
	}
	status, body, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/admin/users/%d", userID), update)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &RequestError{Status: status, Body: string(body)}
	}
	return nil
}

// HealthStatus summarizes admin API reachability for the health endpoint.
type HealthStatus struct {
	Status         string `json:"status"` // healthy | degraded | unhealthy
	Breaker        State  `json:"circuit_breaker"`
	ResponseTimeMS int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// Health probes connectivity by fetching a user id that cannot exist. A 404
// proves the admin API is up and routing; anything else is degraded.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	status, _, err := c.do(ctx, http.MethodGet, "/admin/users/-1", nil)
	elapsed := time.Since(start).Milliseconds()

	out := HealthStatus{Breaker: c.breaker.State(), ResponseTimeMS: elapsed}
	switch {
	case err != nil:
		out.Status = "unhealthy"
		out.Error = err.Error()
	case status == http.StatusNotFound:
		out.Status = "healthy"
	default:
		out.Status = "degraded"
		out.Error = fmt.Sprintf("unexpected response: %d", status)
	}
	return out
}

// do runs one breaker-guarded request. It returns an error for breaker
// rejections, transport failures (timeouts included) and 5xx responses; any
// other status is handed back for the caller to interpret. A response from
// the admin API, whatever the status, proves the dependency is alive, so
// only transport failures and 5xx count against the breaker.
func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	if err := c.breaker.Allow(); err != nil {
		return 0, nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Admin-API-Key", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return 0, nil, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
		return resp.StatusCode, body, &RequestError{Status: resp.StatusCode, Body: string(body)}
	}

	c.breaker.RecordSuccess()
	return resp.StatusCode, body, nil
}
