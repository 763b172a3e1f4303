// Package protocolclient speaks the agent side of the polling protocol over HTTP.
package protocolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"taskrelay/agent/internal/command"
)

var (
	// ErrUnknownAgent means the server no longer has a session for this agent.
	ErrUnknownAgent = errors.New("agent not registered")
	ErrRejected     = errors.New("request rejected")
	ErrTooLarge     = errors.New("file too large")
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type joinResponse struct {
	ID     int  `json:"id"`
	Status bool `json:"status"`
}

func (c *Client) Join(ctx context.Context, hostname, user string) (int, error) {
	var out joinResponse
	body := map[string]string{"hostname": hostname, "user": user}
	if err := c.doJSON(ctx, http.MethodPost, "/join", body, &out); err != nil {
		return 0, err
	}
	if !out.Status || out.ID == 0 {
		return 0, fmt.Errorf("%w: join refused", ErrRejected)
	}
	return out.ID, nil
}

type pollResponse struct {
	Commands []command.Command `json:"commands"`
}

func (c *Client) GetCommands(ctx context.Context, agentID int) ([]command.Command, error) {
	var out pollResponse
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/agent/get_commands/%d", agentID), nil, &out); err != nil {
		return nil, err
	}
	return out.Commands, nil
}

type resultRequest struct {
	AgentID   int    `json:"agent_id"`
	CommandID int    `json:"command_id"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (c *Client) ReportResult(ctx context.Context, agentID, commandID int, r command.Result) error {
	req := resultRequest{AgentID: agentID, CommandID: commandID, Status: r.Status, Result: r.Output, Error: r.Error}
	return c.doJSON(ctx, http.MethodPost, "/agent/set_command_result", req, nil)
}

type uploadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// UploadFile streams r to the server as a multipart "file" part and returns
// the name and size the server stored.
func (c *Client) UploadFile(ctx context.Context, agentID int, filename string, r io.Reader) (string, int64, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	q := url.Values{"agent_id": {strconv.Itoa(agentID)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agent/upload_file?"+q.Encode(), pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", 0, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", 0, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", 0, err
	}
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("decode upload response: %w", err)
	}
	return out.Filename, out.Size, nil
}

// DownloadFile copies the file served at path into w. Files larger than
// limit bytes fail with ErrTooLarge; limit <= 0 means no limit.
func (c *Client) DownloadFile(ctx context.Context, path string, w io.Writer, limit int64) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return io.Copy(w, resp.Body)
	}
	if resp.ContentLength > limit {
		return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, resp.ContentLength, limit)
	}
	n, err := io.Copy(w, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return n, err
	}
	if n > limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return n, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
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
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	var e struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &e) != nil || e.Error == "" {
		e.Error = string(bytes.TrimSpace(raw))
	}
	switch {
	case resp.StatusCode == http.StatusNotFound && bytes.Contains(raw, []byte("agent not found")):
		return fmt.Errorf("%w: %s", ErrUnknownAgent, e.Error)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
}
