package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskrelay/backend/app/controllers"
	"taskrelay/backend/app/db"
	"taskrelay/backend/app/events"
	jwtutil "taskrelay/backend/app/jwt"
	"taskrelay/backend/app/middleware"
	"taskrelay/backend/app/repo"
	"taskrelay/backend/app/services"
	"taskrelay/backend/app/session"
	"taskrelay/backend/app/storage"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	*httptest.Server
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()

	gdb, err := db.Open(db.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	users := services.NewUserService(repo.NewUserRepository(gdb)).WithCost(bcrypt.MinCost)
	require.NoError(t, users.EnsureAdmin("admin", "admin123"))
	require.NoError(t, users.CreateUser("op", "op-pass", services.RoleOperator))

	reg := session.NewRegistry()
	store := storage.New(afero.NewMemMapFs(), "uploads", 64)
	pub := events.NewLogPublisher(log)
	agents := services.NewAgentService(reg, store, pub, log, services.AgentOptions{
		OnlineThreshold: 15 * time.Second,
		TerminateGrace:  10 * time.Millisecond,
	})
	files := services.NewFileService(reg, store, pub, log)
	signer := &jwtutil.Signer{Secret: []byte("s"), Issuer: "test", ExpMin: 5, Revoked: jwtutil.NewDenylist()}

	mux := NewRouter(Controllers{
		Health:    controllers.NewHealthController(agents),
		Auth:      controllers.NewAuthController(users, signer, log),
		Admin:     controllers.NewAdminController(users),
		AgentComm: controllers.NewAgentCommController(agents, files),
		Agents:    controllers.NewAgentController(agents),
		Commands:  controllers.NewCommandController(agents),
		Files:     controllers.NewFileController(files),
	}, &middleware.Auth{Signer: signer})

	srv := httptest.NewServer(middleware.Logging(log, mux))
	t.Cleanup(srv.Close)
	ts := &testServer{Server: srv}
	ts.token = ts.login(t, "admin", "admin123")
	return ts
}

func (s *testServer) login(t *testing.T, user, pass string) string {
	t.Helper()
	var out struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	resp := s.do(t, "", http.MethodPost, "/auth/login", map[string]string{"username": user, "password": pass}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func (s *testServer) do(t *testing.T, token, method, path string, body any, out any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp
}

func (s *testServer) join(t *testing.T) int {
	t.Helper()
	var out struct {
		ID     int  `json:"id"`
		Status bool `json:"status"`
	}
	resp := s.do(t, "", http.MethodPost, "/join", map[string]string{"hostname": "WS-01", "user": "bob"}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, out.Status)
	require.GreaterOrEqual(t, out.ID, session.DefaultMinID)
	require.LessOrEqual(t, out.ID, session.DefaultMaxID)
	return out.ID
}

type pollResponse struct {
	Commands []struct {
		ID   int             `json:"command_id"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	} `json:"commands"`
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.Client().Get(s.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	s.join(t)
	var health struct {
		Status string `json:"status"`
		Agents int    `json:"agents"`
		Online int    `json:"online"`
	}
	res := s.do(t, "", http.MethodGet, "/health", nil, &health)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Agents)
	assert.Equal(t, 1, health.Online)
}

func TestExecRoundTrip(t *testing.T) {
	s := newTestServer(t)
	id := s.join(t)

	var created struct {
		CommandID int    `json:"command_id"`
		Type      string `json:"type"`
		Status    string `json:"status"`
	}
	resp := s.do(t, s.token, http.MethodPost, fmt.Sprintf("/command/%d/exec", id), map[string]string{"command": "whoami"}, &created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, created.CommandID)
	assert.Equal(t, "exec", created.Type)
	assert.Equal(t, "queued", created.Status)

	var polled pollResponse
	resp = s.do(t, "", http.MethodGet, fmt.Sprintf("/agent/get_commands/%d", id), nil, &polled)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, polled.Commands, 1)
	assert.Equal(t, "exec", polled.Commands[0].Type)
	assert.JSONEq(t, `{"command":"whoami"}`, string(polled.Commands[0].Data))

	polled = pollResponse{}
	s.do(t, "", http.MethodGet, fmt.Sprintf("/agent/get_commands/%d", id), nil, &polled)
	assert.NotNil(t, polled.Commands)
	assert.Empty(t, polled.Commands)

	report := map[string]any{"agent_id": id, "command_id": created.CommandID, "status": "success", "result": `DESKTOP\user`}
	resp = s.do(t, "", http.MethodPost, "/agent/set_command_result", report, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view struct {
		Status string  `json:"status"`
		Result *string `json:"result"`
	}
	resp = s.do(t, s.token, http.MethodGet, fmt.Sprintf("/command/%d/%d", id, created.CommandID), nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", view.Status)
	require.NotNil(t, view.Result)
	assert.Equal(t, `DESKTOP\user`, *view.Result)

	resp = s.do(t, "", http.MethodPost, "/agent/set_command_result", report, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)
	id := s.join(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown agent poll", http.MethodGet, "/agent/get_commands/1", nil, http.StatusNotFound},
		{"bad agent id", http.MethodGet, "/agent/get_commands/abc", nil, http.StatusBadRequest},
		{"unknown command type", http.MethodPost, fmt.Sprintf("/command/%d/format_disk", id), map[string]any{}, http.StatusBadRequest},
		{"sleep out of range", http.MethodPost, fmt.Sprintf("/command/%d/set_sleep_time", id), map[string]any{"sleep_time": 0}, http.StatusBadRequest},
		{"exec without command", http.MethodPost, fmt.Sprintf("/command/%d/exec", id), map[string]any{}, http.StatusBadRequest},
		{"download of unstaged file", http.MethodPost, fmt.Sprintf("/command/%d/download", id), map[string]any{"filename": "x.bin"}, http.StatusNotFound},
		{"unknown command result", http.MethodGet, fmt.Sprintf("/command/%d/9", id), nil, http.StatusNotFound},
		{"report unknown command", http.MethodPost, "/agent/set_command_result", map[string]any{"agent_id": id, "command_id": 9, "status": "success"}, http.StatusNotFound},
		{"report unknown agent", http.MethodPost, "/agent/set_command_result", map[string]any{"agent_id": 1, "command_id": 1, "status": "success"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out struct {
				Error string `json:"error"`
			}
			resp := s.do(t, s.token, tc.method, tc.path, tc.body, &out)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.NotEmpty(t, out.Error)
		})
	}
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, "", http.MethodGet, "/agents", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = s.do(t, "garbage", http.MethodGet, "/agents", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	op := s.login(t, "op", "op-pass")
	resp = s.do(t, op, http.MethodGet, "/agents", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.do(t, op, http.MethodPost, "/admin/users", map[string]string{"username": "x", "password": "y"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	tok := s.login(t, "op", "op-pass")

	var v struct {
		Authenticated bool   `json:"authenticated"`
		Username      string `json:"username"`
	}
	s.do(t, tok, http.MethodGet, "/auth/verify", nil, &v)
	assert.True(t, v.Authenticated)
	assert.Equal(t, "op", v.Username)

	resp := s.do(t, tok, http.MethodPost, "/auth/logout", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	v.Authenticated = true
	s.do(t, tok, http.MethodGet, "/auth/verify", nil, &v)
	assert.False(t, v.Authenticated)
	resp = s.do(t, tok, http.MethodGet, "/agents", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, "", http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminCreatesUser(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, s.token, http.MethodPost, "/admin/users", map[string]string{"username": "carol", "password": "pw"}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = s.do(t, s.token, http.MethodPost, "/admin/users", map[string]string{"username": "carol", "password": "pw"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var users []struct {
		Username string `json:"username"`
	}
	s.do(t, s.token, http.MethodGet, "/admin/users", nil, &users)
	assert.Len(t, users, 3)
	s.login(t, "carol", "pw")
}

func TestLegacyEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := s.join(t)

	var created struct {
		CommandID int    `json:"command_id"`
		Type      string `json:"type"`
	}
	resp := s.do(t, s.token, http.MethodPost, fmt.Sprintf("/create_command/%d?command=hostname", id), nil, &created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "exec", created.Type)

	var polled pollResponse
	s.do(t, "", http.MethodGet, fmt.Sprintf("/agent/get_commands/%d", id), nil, &polled)
	require.Len(t, polled.Commands, 1)

	batch := map[string]any{"agent_id": id, "commands": []map[string]any{{"command_id": created.CommandID, "result": "WS-01"}}}
	resp = s.do(t, "", http.MethodPost, "/agent/set_commands", batch, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view struct {
		Status string `json:"status"`
	}
	s.do(t, s.token, http.MethodGet, fmt.Sprintf("/command/%d/%d", id, created.CommandID), nil, &view)
	assert.Equal(t, "completed", view.Status)
}

func TestJoinFromQueryParameters(t *testing.T) {
	s := newTestServer(t)
	var out struct {
		ID int `json:"id"`
	}
	resp := s.do(t, "", http.MethodPost, "/join?hostname=LAPTOP&user=eve", nil, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var d struct {
		Hostname string `json:"hostname"`
		User     string `json:"user"`
		Address  string `json:"ipaddr"`
		Online   bool   `json:"online"`
	}
	s.do(t, s.token, http.MethodGet, fmt.Sprintf("/agent/%d", out.ID), nil, &d)
	assert.Equal(t, "LAPTOP", d.Hostname)
	assert.Equal(t, "eve", d.User)
	assert.Equal(t, "127.0.0.1", d.Address)
	assert.True(t, d.Online)
}

func TestDeleteAgent(t *testing.T) {
	s := newTestServer(t)
	id := s.join(t)

	var out struct {
		Status     string `json:"status"`
		Terminated bool   `json:"terminated"`
	}
	resp := s.do(t, s.token, http.MethodDelete, fmt.Sprintf("/agent/%d", id), nil, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", out.Status)
	assert.True(t, out.Terminated)

	resp = s.do(t, "", http.MethodGet, fmt.Sprintf("/agent/get_commands/%d", id), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = s.do(t, s.token, http.MethodDelete, fmt.Sprintf("/agent/%d", id), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var list []json.RawMessage
	s.do(t, s.token, http.MethodGet, "/agents", nil, &list)
	assert.Empty(t, list)
}

func (s *testServer) upload(t *testing.T, token, path, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.Copy(fw, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func TestFileStagingAndDownloadCommand(t *testing.T) {
	s := newTestServer(t)
	id := s.join(t)

	resp := s.upload(t, s.token, fmt.Sprintf("/upload_for_agent/%d", id), "tool.sh", "echo hi")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Files []struct {
			Filename string `json:"filename"`
			Size     int64  `json:"size"`
		} `json:"files"`
	}
	s.do(t, s.token, http.MethodGet, fmt.Sprintf("/files/%d", id), nil, &listed)
	require.Len(t, listed.Files, 1)
	assert.Equal(t, "tool.sh", listed.Files[0].Filename)

	resp = s.do(t, s.token, http.MethodPost, fmt.Sprintf("/command/%d/download", id), map[string]string{"filename": "tool.sh"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var polled pollResponse
	s.do(t, "", http.MethodGet, fmt.Sprintf("/agent/get_commands/%d", id), nil, &polled)
	require.Len(t, polled.Commands, 1)
	var data struct {
		URL    string `json:"url"`
		SaveAs string `json:"save_as"`
	}
	require.NoError(t, json.Unmarshal(polled.Commands[0].Data, &data))
	assert.Equal(t, fmt.Sprintf("/files/agent_%d/tool.sh", id), data.URL)
	assert.Equal(t, "tool.sh", data.SaveAs)

	got, err := s.Client().Get(s.URL + data.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(got.Body)
	got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "echo hi", string(body))

	var detail struct {
		Downloaded int `json:"downloaded_files_count"`
	}
	s.do(t, s.token, http.MethodGet, fmt.Sprintf("/agent/%d", id), nil, &detail)
	assert.Equal(t, 1, detail.Downloaded)
}

func TestAgentUpload(t *testing.T) {
	s := newTestServer(t)
	id := s.join(t)

	resp := s.upload(t, "", fmt.Sprintf("/agent/upload_file?agent_id=%d", id), "secrets.txt", "abc")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.upload(t, "", fmt.Sprintf("/agent/upload_file?agent_id=%d", id), "big.bin", strings.Repeat("x", 65))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	resp = s.upload(t, "", "/agent/upload_file?agent_id=1", "a.txt", "a")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	got, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/dashboard/files/%d/secrets.txt", s.URL, id), nil)
	require.NoError(t, err)
	got.Header.Set("Authorization", "Bearer "+s.token)
	r, err := s.Client().Do(got)
	require.NoError(t, err)
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()
	assert.Equal(t, "abc", string(body))
	assert.Contains(t, r.Header.Get("Content-Disposition"), "secrets.txt")

	var detail struct {
		Uploaded []struct {
			Filename string `json:"filename"`
		} `json:"uploaded_files"`
	}
	s.do(t, s.token, http.MethodGet, fmt.Sprintf("/agent/%d", id), nil, &detail)
	require.Len(t, detail.Uploaded, 1)
	assert.Equal(t, "secrets.txt", detail.Uploaded[0].Filename)
}
