package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandDef(t *testing.T, typ string) CommandDef {
	t.Helper()
	for _, d := range availableCommands {
		if d.Type == typ {
			return d
		}
	}
	t.Fatalf("no command %q", typ)
	return CommandDef{}
}

func TestFormCoversEveryCommandType(t *testing.T) {
	var types []string
	for _, d := range availableCommands {
		types = append(types, d.Type)
	}
	assert.Equal(t, []string{
		"exec", "upload", "download", "delete", "list_directory",
		"set_sleep_time", "read_file", "write_file", "terminate",
	}, types)
}

func TestBuildPayload(t *testing.T) {
	cases := []struct {
		typ     string
		values  []string
		want    map[string]any
		wantErr string
	}{
		{typ: "exec", values: []string{"  whoami "}, want: map[string]any{"command": "whoami"}},
		{typ: "exec", values: []string{"   "}, wantErr: "command is required"},
		{typ: "upload", values: []string{"/etc/hosts", ""}, want: map[string]any{"source_path": "/etc/hosts"}},
		{typ: "delete", values: []string{"/tmp/x", "true"}, want: map[string]any{"path": "/tmp/x", "recursive": true}},
		{typ: "delete", values: []string{"/tmp/x", "maybe"}, wantErr: "recursive must be true or false"},
		{typ: "set_sleep_time", values: []string{"10"}, want: map[string]any{"sleep_time": 10}},
		{typ: "set_sleep_time", values: []string{"ten"}, wantErr: "sleep_time must be a number"},
		{typ: "read_file", values: []string{"/etc/passwd", ""}, want: map[string]any{"path": "/etc/passwd"}},
		{typ: "write_file", values: []string{"/tmp/a", "  line\n"}, want: map[string]any{"path": "/tmp/a", "content": "  line\n"}},
		{typ: "terminate", values: nil, want: map[string]any{}},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			got, err := buildPayload(commandDef(t, tc.typ), tc.values)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := buildPayload(commandDef(t, "exec"), nil)
	assert.Error(t, err)
}

func TestCommandFormNavigation(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	m := NewCommandFormModel(123456, c, 50, 30)
	require.Equal(t, StateSelecting, m.State)

	// move to set_sleep_time and open it
	for i := 0; i < 5; i++ {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, StateFilling, m.State)
	assert.Equal(t, "set_sleep_time", availableCommands[m.SelectedCmd].Type)
	require.Len(t, m.Inputs, 1)
	assert.Equal(t, "3", m.Inputs[0].Value())

	// invalid value stays in the form with an error
	m.Inputs[0].SetValue("abc")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 1, m.Focused)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, StateFilling, m.State)
	assert.EqualError(t, m.Err, "sleep_time must be a number")

	// a valid value produces a send command and returns to the list
	m.Inputs[0].SetValue("7")
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
	assert.NoError(t, m.Err)
	assert.Equal(t, StateSelecting, m.State)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateSelecting, m.State)
}
