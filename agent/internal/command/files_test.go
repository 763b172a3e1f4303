package command_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskrelay/agent/internal/command"
	"taskrelay/agent/internal/protocolclient"
	"taskrelay/agent/internal/state"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileServer mimics the server's agent upload and staged-file routes.
type fileServer struct {
	uploads map[string]string
	staged  map[string]string
}

func (s *fileServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agent/upload_file", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("agent_id") != "271828" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"agent not found"}`))
			return
		}
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		s.uploads[hdr.Filename] = string(b)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "filename": hdr.Filename, "size": len(b)})
	})
	mux.HandleFunc("GET /files/agent_271828/{filename}", func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.staged[r.PathValue("filename")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"file not found"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	})
	return mux
}

type fileEnv struct {
	reg    *command.Registry
	fs     afero.Fs
	server *fileServer
}

func newFileEnv(t *testing.T) *fileEnv {
	t.Helper()
	srv := &fileServer{uploads: map[string]string{}, staged: map[string]string{}}
	ts := httptest.NewServer(srv.handler(t))
	t.Cleanup(ts.Close)

	st := state.New(3)
	st.SetAgentID(271828)
	fs := afero.NewMemMapFs()
	reg := command.NewRegistry(zerolog.Nop())
	command.RegisterBuiltins(reg, command.Env{State: st, Fs: fs, Transfer: protocolclient.New(ts.URL, time.Second)})
	return &fileEnv{reg: reg, fs: fs, server: srv}
}

func (e *fileEnv) run(typ, data string) command.Result {
	return e.reg.Dispatch(context.Background(), command.Command{ID: 1, Type: typ, Data: json.RawMessage(data)})
}

func TestUploadSendsLocalFile(t *testing.T) {
	e := newFileEnv(t)
	require.NoError(t, afero.WriteFile(e.fs, "/var/log/app.log", []byte("line one\n"), 0o644))

	res := e.run("upload", `{"source_path":"/var/log/app.log"}`)
	require.Equal(t, command.StatusSuccess, res.Status, res.Error)
	assert.Equal(t, "Uploaded app.log (9 bytes)", res.Output)
	assert.Equal(t, "line one\n", e.server.uploads["app.log"])

	res = e.run("upload", `{"source_path":"/var/log/app.log","filename":"renamed.txt"}`)
	require.Equal(t, command.StatusSuccess, res.Status, res.Error)
	assert.Contains(t, e.server.uploads, "renamed.txt")
}

func TestUploadErrors(t *testing.T) {
	e := newFileEnv(t)

	res := e.run("upload", `{"source_path":"/missing"}`)
	assert.Equal(t, command.StatusError, res.Status)
	assert.Equal(t, "file not found: /missing", res.Error)

	res = e.run("upload", `{}`)
	assert.Equal(t, command.StatusError, res.Status)
	assert.Contains(t, res.Error, "source_path is required")
}

func TestDownloadWritesStagedFile(t *testing.T) {
	e := newFileEnv(t)
	e.server.staged["tool.bin"] = "payload-bytes"

	res := e.run("download", `{"filename":"tool.bin","save_as":"/opt/tools/tool.bin","url":"/files/agent_271828/tool.bin"}`)
	require.Equal(t, command.StatusSuccess, res.Status, res.Error)
	assert.Equal(t, "Downloaded to /opt/tools/tool.bin (13 bytes)", res.Output)
	b, err := afero.ReadFile(e.fs, "/opt/tools/tool.bin")
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes", string(b))
}

func TestDownloadFailureLeavesNoFile(t *testing.T) {
	e := newFileEnv(t)

	res := e.run("download", `{"save_as":"/tmp/gone.bin","url":"/files/agent_271828/gone.bin"}`)
	assert.Equal(t, command.StatusError, res.Status)
	assert.Contains(t, res.Error, "download failed")
	exists, err := afero.Exists(e.fs, "/tmp/gone.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	res = e.run("download", `{"save_as":"/tmp/x"}`)
	assert.Equal(t, command.StatusError, res.Status)
	assert.Contains(t, res.Error, "missing url or save_as")
}

func TestListDirectory(t *testing.T) {
	e := newFileEnv(t)
	require.NoError(t, e.fs.MkdirAll("/srv/data/zeta", 0o755))
	require.NoError(t, e.fs.MkdirAll("/srv/data/Alpha", 0o755))
	require.NoError(t, afero.WriteFile(e.fs, "/srv/data/b.txt", []byte("12345"), 0o644))
	require.NoError(t, afero.WriteFile(e.fs, "/srv/data/A.txt", []byte("1"), 0o644))

	res := e.run("list_directory", `{"path":"/srv/data"}`)
	require.Equal(t, command.StatusSuccess, res.Status, res.Error)

	var out struct {
		Status string             `json:"status"`
		Items  []command.DirEntry `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Output), &out))
	assert.Equal(t, "success", out.Status)
	var names []string
	for _, it := range out.Items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Alpha", "zeta", "A.txt", "b.txt"}, names)
	assert.True(t, out.Items[0].IsDirectory)
	assert.Equal(t, int64(0), out.Items[0].Size)
	assert.Equal(t, int64(5), out.Items[3].Size)
	assert.True(t, strings.HasSuffix(out.Items[3].Path, "b.txt"))

	res = e.run("list_directory", `{"path":"/nope"}`)
	assert.Equal(t, command.StatusError, res.Status)
	assert.Equal(t, "directory not found", res.Error)

	res = e.run("list_directory", `{}`)
	assert.Equal(t, command.StatusError, res.Status)
	assert.Contains(t, res.Error, "no path specified")
}

func TestFileCommandsNeedFilesystem(t *testing.T) {
	reg := command.NewRegistry(zerolog.Nop())
	command.RegisterBuiltins(reg, command.Env{State: state.New(3)})
	for _, typ := range []string{"upload", "download", "list_directory"} {
		_, ok := reg.Get(typ)
		assert.False(t, ok, typ)
	}
}
