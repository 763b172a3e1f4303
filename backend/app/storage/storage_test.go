package storage

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(max int64) (*Store, afero.Fs) {
	fs := afero.NewMemMapFs()
	return New(fs, "uploads", max), fs
}

func TestSaveOpenList(t *testing.T) {
	s, _ := newTestStore(1024)

	info, err := s.Save(123456, "../../etc/passwd", strings.NewReader("root:x:0:0"))
	require.NoError(t, err)
	assert.Equal(t, "passwd", info.Name)
	assert.Equal(t, int64(10), info.Size)
	assert.True(t, s.Exists(123456, "passwd"))
	assert.False(t, s.Exists(654321, "passwd"))

	f, got, err := s.Open(123456, "passwd")
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "root:x:0:0", string(body))
	assert.Equal(t, int64(10), got.Size)

	_, err = s.Save(123456, `C:\Users\bob\b.txt`, strings.NewReader("b"))
	require.NoError(t, err)

	files, err := s.List(123456)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.txt", files[0].Name)
	assert.Equal(t, "passwd", files[1].Name)
}

func TestSaveTooLarge(t *testing.T) {
	s, _ := newTestStore(4)

	_, err := s.Save(1, "big.bin", strings.NewReader("12345"))
	assert.True(t, errors.Is(err, ErrTooLarge))
	assert.False(t, s.Exists(1, "big.bin"))

	files, err := s.List(1)
	require.NoError(t, err)
	assert.Empty(t, files, "temporary files must not be left behind")

	_, err = s.Save(1, "ok.bin", strings.NewReader("1234"))
	assert.NoError(t, err)
}

func TestInvalidNames(t *testing.T) {
	s, _ := newTestStore(10)
	for _, name := range []string{"", "..", ".", "../", "  "} {
		_, err := s.Save(1, name, strings.NewReader("x"))
		assert.True(t, errors.Is(err, ErrInvalidName), "name %q", name)
	}
	_, _, err := s.Open(1, "missing.txt")
	assert.True(t, errors.Is(err, ErrFileNotFound))
}

func TestListMissingDirAndRemoveAgent(t *testing.T) {
	s, fs := newTestStore(10)

	files, err := s.List(99)
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = s.Save(99, "a.txt", strings.NewReader("a"))
	require.NoError(t, err)
	require.NoError(t, s.RemoveAgent(99))

	exists, err := afero.DirExists(fs, "uploads/agent_99")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, s.RemoveAgent(99))
}

func TestParseAgentDir(t *testing.T) {
	id, ok := ParseAgentDir("agent_123456")
	assert.True(t, ok)
	assert.Equal(t, 123456, id)

	for _, bad := range []string{"agent_", "agent_x", "123456", "agent_-1"} {
		_, ok := ParseAgentDir(bad)
		assert.False(t, ok, bad)
	}
	assert.Equal(t, "agent_7", AgentDir(7))
}
