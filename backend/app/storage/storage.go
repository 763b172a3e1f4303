// Package storage keeps files exchanged with agents, one directory per agent
// (agent_<id>) under a root directory.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	ErrTooLarge     = errors.New("file too large")
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidName  = errors.New("invalid file name")
)

type FileInfo struct {
	Name    string    `json:"filename"`
	Path    string    `json:"-"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modified_at"`
}

type Store struct {
	fs      afero.Fs
	root    string
	maxSize int64
}

func New(fs afero.Fs, root string, maxSize int64) *Store {
	return &Store{fs: fs, root: root, maxSize: maxSize}
}

// NewOS returns a Store on the host filesystem.
func NewOS(root string, maxSize int64) *Store { return New(afero.NewOsFs(), root, maxSize) }

func (s *Store) MaxSize() int64 { return s.maxSize }

func AgentDir(agentID int) string { return fmt.Sprintf("agent_%d", agentID) }

// ParseAgentDir extracts the id from an agent_<id> directory name.
func ParseAgentDir(dir string) (int, bool) {
	rest, ok := strings.CutPrefix(dir, "agent_")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// SanitizeName reduces name to its final path element.
func SanitizeName(name string) (string, error) {
	name = strings.TrimRight(name, `/\`)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	return name, nil
}

func (s *Store) path(agentID int, name string) string {
	return filepath.Join(s.root, AgentDir(agentID), name)
}

// Save writes r to the agent's directory under the sanitized name. Files
// larger than the configured limit are rejected with ErrTooLarge and not kept.
func (s *Store) Save(agentID int, name string, r io.Reader) (FileInfo, error) {
	safe, err := SanitizeName(name)
	if err != nil {
		return FileInfo{}, err
	}
	dir := filepath.Join(s.root, AgentDir(agentID))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return FileInfo{}, fmt.Errorf("create agent dir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".upload-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	n, copyErr := io.Copy(tmp, io.LimitReader(r, s.maxSize+1))
	closeErr := tmp.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = s.fs.Remove(tmpName)
		return FileInfo{}, fmt.Errorf("write %s: %w", safe, copyErr)
	}
	if n > s.maxSize {
		_ = s.fs.Remove(tmpName)
		return FileInfo{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxSize)
	}

	dst := s.path(agentID, safe)
	if err := s.fs.Rename(tmpName, dst); err != nil {
		_ = s.fs.Remove(tmpName)
		return FileInfo{}, fmt.Errorf("store %s: %w", safe, err)
	}
	return FileInfo{Name: safe, Path: dst, Size: n, ModTime: time.Now()}, nil
}

// Open returns the stored file for reading. The caller closes it.
func (s *Store) Open(agentID int, name string) (afero.File, FileInfo, error) {
	safe, err := SanitizeName(name)
	if err != nil {
		return nil, FileInfo{}, err
	}
	p := s.path(agentID, safe)
	st, err := s.fs.Stat(p)
	if err != nil || st.IsDir() {
		return nil, FileInfo{}, fmt.Errorf("%w: %s", ErrFileNotFound, safe)
	}
	f, err := s.fs.Open(p)
	if err != nil {
		return nil, FileInfo{}, fmt.Errorf("open %s: %w", safe, err)
	}
	return f, FileInfo{Name: safe, Path: p, Size: st.Size(), ModTime: st.ModTime()}, nil
}

func (s *Store) Exists(agentID int, name string) bool {
	safe, err := SanitizeName(name)
	if err != nil {
		return false
	}
	st, err := s.fs.Stat(s.path(agentID, safe))
	return err == nil && !st.IsDir()
}

// List returns the agent's files sorted by name.
func (s *Store) List(agentID int) ([]FileInfo, error) {
	dir := filepath.Join(s.root, AgentDir(agentID))
	entries, err := afero.ReadDir(s.fs, dir)
	if errors.Is(err, os.ErrNotExist) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".upload-") {
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Path: filepath.Join(dir, e.Name()), Size: e.Size(), ModTime: e.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RemoveAgent deletes the agent's directory and everything in it.
func (s *Store) RemoveAgent(agentID int) error {
	return s.fs.RemoveAll(filepath.Join(s.root, AgentDir(agentID)))
}
