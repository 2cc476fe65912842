// Package whoop talks to the WHOOP API (the unofficial app endpoints) to
// fetch one user's daily recovery and sleep scores.
package whoop

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dcrowell/homeboard/internal/upstream"
)

// Client fetches scores for one WHOOP account. Tokens are cached and
// refreshed on expiry; Client is safe for concurrent use.
type Client struct {
	apiURL   string
	username string
	password string
	caller   *upstream.Caller

	mu          sync.Mutex
	accessToken string
	userID      int64
	tokenExpiry time.Time
}

// New creates a Client for one account against the given API base URL.
func New(apiURL, username, password string, caller *upstream.Caller) (*Client, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("whoop: username and password are required")
	}
	return &Client{
		apiURL:   apiURL,
		username: username,
		password: password,
		caller:   caller,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	User        struct {
		ID int64 `json:"id"`
	} `json:"user"`
}

type cycle struct {
	ID    int64 `json:"id"`
	Score struct {
		Strain float64 `json:"strain"`
	} `json:"score"`
}

type recoveryResponse struct {
	Score struct {
		RecoveryScore float64 `json:"recovery_score"`
	} `json:"score"`
}

type sleep struct {
	Score struct {
		SleepPerformancePercentage float64 `json:"sleep_performance_percentage"`
	} `json:"score"`
}

// authenticate obtains an access token via the password grant. Must be
// called with the mutex held.
func (c *Client) authenticateLocked(ctx context.Context) error {
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}
	body := map[string]string{
		"grant_type": "password",
		"username":   c.username,
		"password":   c.password,
	}
	var resp tokenResponse
	if err := c.caller.PostJSON(ctx, c.apiURL+"/oauth/token", body, &resp); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if resp.AccessToken == "" {
		return fmt.Errorf("authenticate: empty access token")
	}
	c.accessToken = resp.AccessToken
	c.userID = resp.User.ID
	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	// Refresh a minute early so in-flight requests never carry a dead token.
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)
	return nil
}

func (c *Client) session(ctx context.Context) (token string, userID int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.authenticateLocked(ctx); err != nil {
		return "", 0, err
	}
	return c.accessToken, c.userID, nil
}

func (c *Client) dayRange(day time.Time) (string, string) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	return start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339)
}

// Recovery returns the recovery score (0-100) for the given day's first cycle.
func (c *Client) Recovery(ctx context.Context, day time.Time) (int, error) {
	token, userID, err := c.session(ctx)
	if err != nil {
		return 0, err
	}
	start, end := c.dayRange(day)

	var cycles []cycle
	u := fmt.Sprintf("%s/users/%d/cycles?start=%s&end=%s&access_token=%s",
		c.apiURL, userID, url.QueryEscape(start), url.QueryEscape(end), url.QueryEscape(token))
	if err := c.caller.GetJSON(ctx, u, &cycles); err != nil {
		return 0, fmt.Errorf("cycles: %w", err)
	}
	if len(cycles) == 0 {
		return 0, fmt.Errorf("no cycle for %s", day.Format("2006-01-02"))
	}

	var rec recoveryResponse
	u = fmt.Sprintf("%s/users/%d/cycles/%d/recovery?access_token=%s",
		c.apiURL, userID, cycles[0].ID, url.QueryEscape(token))
	if err := c.caller.GetJSON(ctx, u, &rec); err != nil {
		return 0, fmt.Errorf("recovery: %w", err)
	}
	return int(rec.Score.RecoveryScore), nil
}

// Sleep returns the sleep performance percentage (0-100) for the given day's
// first sleep.
func (c *Client) Sleep(ctx context.Context, day time.Time) (int, error) {
	token, userID, err := c.session(ctx)
	if err != nil {
		return 0, err
	}
	start, end := c.dayRange(day)

	var sleeps []sleep
	u := fmt.Sprintf("%s/users/%d/sleeps?start=%s&end=%s&access_token=%s",
		c.apiURL, userID, url.QueryEscape(start), url.QueryEscape(end), url.QueryEscape(token))
	if err := c.caller.GetJSON(ctx, u, &sleeps); err != nil {
		return 0, fmt.Errorf("sleeps: %w", err)
	}
	if len(sleeps) == 0 {
		return 0, fmt.Errorf("no sleep for %s", day.Format("2006-01-02"))
	}
	return int(sleeps[0].Score.SleepPerformancePercentage), nil
}
