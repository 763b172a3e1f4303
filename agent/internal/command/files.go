package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"taskrelay/agent/internal/state"

	"github.com/spf13/afero"
)

// MaxDownloadSize caps files fetched by the download command.
const MaxDownloadSize = 100 << 20

// Transfer moves file bytes between the agent and the server.
type Transfer interface {
	UploadFile(ctx context.Context, agentID int, filename string, r io.Reader) (string, int64, error)
	DownloadFile(ctx context.Context, path string, w io.Writer, limit int64) (int64, error)
}

func decodeJSON(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

type uploadArg struct {
	SourcePath string `json:"source_path"`
	Filename   string `json:"filename"`
}

// UploadHandler sends a local file to the server.
type UploadHandler struct {
	State    *state.State
	Fs       afero.Fs
	Transfer Transfer
}

func (h UploadHandler) DecodeArg(raw json.RawMessage) (any, error) {
	var a uploadArg
	if err := decodeJSON(raw, &a); err != nil {
		return nil, err
	}
	if a.SourcePath == "" {
		return nil, errors.New("source_path is required")
	}
	if a.Filename == "" {
		a.Filename = filepath.Base(a.SourcePath)
	}
	return a, nil
}

func (h UploadHandler) Handle(ctx context.Context, arg any) Result {
	a := arg.(uploadArg)
	f, err := h.Fs.Open(a.SourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		return Failure(fmt.Errorf("file not found: %s", a.SourcePath))
	}
	if err != nil {
		return Failure(err)
	}
	defer f.Close()

	name, size, err := h.Transfer.UploadFile(ctx, h.State.AgentID(), a.Filename, f)
	if err != nil {
		return Failure(fmt.Errorf("upload failed: %w", err))
	}
	return Success(fmt.Sprintf("Uploaded %s (%d bytes)", name, size))
}

type downloadArg struct {
	URL      string `json:"url"`
	SaveAs   string `json:"save_as"`
	Filename string `json:"filename"`
}

// DownloadHandler fetches a staged file from the server and writes it to
// save_as, creating parent directories.
type DownloadHandler struct {
	Fs       afero.Fs
	Transfer Transfer
	MaxSize  int64
}

func (h DownloadHandler) DecodeArg(raw json.RawMessage) (any, error) {
	var a downloadArg
	if err := decodeJSON(raw, &a); err != nil {
		return nil, err
	}
	if a.SaveAs == "" {
		a.SaveAs = a.Filename
	}
	if a.URL == "" || a.SaveAs == "" {
		return nil, errors.New("missing url or save_as")
	}
	return a, nil
}

func (h DownloadHandler) Handle(ctx context.Context, arg any) Result {
	a := arg.(downloadArg)
	if dir := filepath.Dir(a.SaveAs); dir != "." {
		if err := h.Fs.MkdirAll(dir, 0o755); err != nil {
			return Failure(err)
		}
	}
	f, err := h.Fs.Create(a.SaveAs)
	if err != nil {
		return Failure(err)
	}
	n, err := h.Transfer.DownloadFile(ctx, a.URL, f, h.MaxSize)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = h.Fs.Remove(a.SaveAs)
		return Failure(fmt.Errorf("download failed: %w", err))
	}
	return Success(fmt.Sprintf("Downloaded to %s (%d bytes)", a.SaveAs, n))
}

type listArg struct {
	Path string `json:"path"`
}

type DirEntry struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"is_directory"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
}

type dirListing struct {
	Status string     `json:"status"`
	Items  []DirEntry `json:"items"`
}

// ListDirectoryHandler reports the entries of a directory as JSON,
// directories first, then by case-insensitive name.
type ListDirectoryHandler struct {
	Fs afero.Fs
}

func (h ListDirectoryHandler) DecodeArg(raw json.RawMessage) (any, error) {
	var a listArg
	if err := decodeJSON(raw, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("no path specified")
	}
	return a, nil
}

func (h ListDirectoryHandler) Handle(_ context.Context, arg any) Result {
	dir := expandHome(arg.(listArg).Path)
	infos, err := afero.ReadDir(h.Fs, dir)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return Failure(errors.New("permission denied"))
	case errors.Is(err, fs.ErrNotExist):
		return Failure(errors.New("directory not found"))
	case err != nil:
		return Failure(err)
	}

	items := make([]DirEntry, 0, len(infos))
	for _, fi := range infos {
		e := DirEntry{Name: fi.Name(), IsDirectory: fi.IsDir(), Path: filepath.Join(dir, fi.Name())}
		if !e.IsDirectory {
			e.Size = fi.Size()
		}
		items = append(items, e)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDirectory != items[j].IsDirectory {
			return items[i].IsDirectory
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})

	b, err := json.Marshal(dirListing{Status: "success", Items: items})
	if err != nil {
		return Failure(err)
	}
	return Success(string(b))
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
