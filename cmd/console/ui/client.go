package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// Client talks to the operator side of the HTTP API. The zero token is only
// good for login.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy of c that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) BaseURL() string { return c.baseURL }

type AgentSummary struct {
	ID            int       `json:"id"`
	Address       string    `json:"ipaddr"`
	Hostname      string    `json:"hostname"`
	User          string    `json:"user"`
	LastSeen      time.Time `json:"last_seen"`
	JoinedAt      time.Time `json:"joined_at"`
	TotalCommands int       `json:"total_commands"`
	SleepTime     int       `json:"sleep_time"`
	Online        bool      `json:"online"`
}

type CommandEntry struct {
	ID          int             `json:"command_id"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	Status      string          `json:"status"`
	Result      *string         `json:"result"`
	Error       *string         `json:"error"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}

type AgentDetail struct {
	AgentSummary
	Commands []CommandEntry `json:"commands"`
}

type CommandCreated struct {
	CommandID int    `json:"command_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

type DeleteResult struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Terminated bool   `json:"terminated"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out tokenResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("login: empty token")
	}
	return out.AccessToken, nil
}

func (c *Client) Agents(ctx context.Context) ([]AgentSummary, error) {
	var out []AgentSummary
	if err := c.do(ctx, http.MethodGet, "/agents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Agent(ctx context.Context, id int) (AgentDetail, error) {
	var out AgentDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/agent/%d", id), nil, &out)
	return out, err
}

// SendCommand queues a command of the given type with data as its JSON body.
func (c *Client) SendCommand(ctx context.Context, agentID int, typ string, data map[string]any) (CommandCreated, error) {
	if data == nil {
		data = map[string]any{}
	}
	var out CommandCreated
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/command/%d/%s", agentID, typ), data, &out)
	return out, err
}

func (c *Client) DeleteAgent(ctx context.Context, id int) (DeleteResult, error) {
	var out DeleteResult
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/agent/%d", id), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
