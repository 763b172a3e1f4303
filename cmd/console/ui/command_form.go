package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type FormState int

const (
	StateSelecting FormState = iota
	StateFilling
)

type FieldKind int

const (
	FieldText FieldKind = iota
	FieldInt
	FieldBool
)

type FieldDef struct {
	Name        string
	Placeholder string
	Required    bool
	Default     string
	Kind        FieldKind
	// Raw values keep surrounding whitespace.
	Raw         bool
}

type CommandDef struct {
	Type        string
	Description string
	Fields      []FieldDef
}

var availableCommands = []CommandDef{
	{
		Type:        "exec",
		Description: "Run a shell command",
		Fields:      []FieldDef{{Name: "command", Placeholder: "e.g. whoami", Required: true}},
	},
	{
		Type:        "upload",
		Description: "Send a file from the agent to the server",
		Fields: []FieldDef{
			{Name: "source_path", Placeholder: "Path on the agent", Required: true},
			{Name: "filename", Placeholder: "Stored name (default: base name)"},
		},
	},
	{
		Type:        "download",
		Description: "Fetch a staged file onto the agent",
		Fields: []FieldDef{
			{Name: "filename", Placeholder: "Staged file name", Required: true},
			{Name: "save_as", Placeholder: "Path on the agent (default: filename)"},
		},
	},
	{
		Type:        "delete",
		Description: "Delete a file or directory",
		Fields: []FieldDef{
			{Name: "path", Placeholder: "Path on the agent", Required: true},
			{Name: "recursive", Placeholder: "true or false", Default: "false", Kind: FieldBool},
		},
	},
	{
		Type:        "list_directory",
		Description: "List a directory",
		Fields:      []FieldDef{{Name: "path", Placeholder: "Directory", Required: true, Default: "."}},
	},
	{
		Type:        "set_sleep_time",
		Description: "Change the poll interval (1-60 s)",
		Fields:      []FieldDef{{Name: "sleep_time", Placeholder: "Seconds", Required: true, Default: "3", Kind: FieldInt}},
	},
	{
		Type:        "read_file",
		Description: "Read a file",
		Fields: []FieldDef{
			{Name: "path", Placeholder: "Path on the agent", Required: true},
			{Name: "max_size", Placeholder: "Bytes (default: 10 MiB)", Kind: FieldInt},
		},
	},
	{
		Type:        "write_file",
		Description: "Write text to a file",
		Fields: []FieldDef{
			{Name: "path", Placeholder: "Path on the agent", Required: true},
			{Name: "content", Placeholder: "Text", Raw: true},
		},
	},
	{
		Type:        "terminate",
		Description: "Stop the agent",
	},
}

// buildPayload turns raw form values into the JSON body for def.
func buildPayload(def CommandDef, values []string) (map[string]any, error) {
	if len(values) != len(def.Fields) {
		return nil, fmt.Errorf("%s: expected %d values, got %d", def.Type, len(def.Fields), len(values))
	}
	out := make(map[string]any, len(def.Fields))
	for i, f := range def.Fields {
		v := values[i]
		if !f.Raw {
			v = strings.TrimSpace(v)
		}
		if v == "" {
			if f.Required {
				return nil, fmt.Errorf("%s is required", f.Name)
			}
			continue
		}
		switch f.Kind {
		case FieldInt:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%s must be a number", f.Name)
			}
			out[f.Name] = n
		case FieldBool:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s must be true or false", f.Name)
			}
			out[f.Name] = b
		default:
			out[f.Name] = v
		}
	}
	return out, nil
}

type cmdItem struct {
	title, desc string
	index       int
}

func (i cmdItem) Title() string       { return i.title }
func (i cmdItem) Description() string { return i.desc }
func (i cmdItem) FilterValue() string { return i.title }

// CommandSentMsg reports the outcome of a submitted command.
type CommandSentMsg struct {
	Created CommandCreated
	Err     error
}

type CommandFormModel struct {
	AgentID     int
	client      *Client
	State       FormState
	List        list.Model
	Inputs      []textinput.Model
	Focused     int
	SelectedCmd int
	Err         error
}

func NewCommandFormModel(agentID int, c *Client, width, height int) CommandFormModel {
	items := make([]list.Item, 0, len(availableCommands))
	for i, cmd := range availableCommands {
		items = append(items, cmdItem{title: cmd.Type, desc: cmd.Description, index: i})
	}
	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = "Queue command"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return CommandFormModel{
		AgentID: agentID,
		client:  c,
		State:   StateSelecting,
		List:    l,
	}
}

func (m *CommandFormModel) initInputs() {
	if m.SelectedCmd < 0 || m.SelectedCmd >= len(availableCommands) {
		m.SelectedCmd = 0
	}
	def := availableCommands[m.SelectedCmd]
	m.Inputs = make([]textinput.Model, len(def.Fields))
	for i, f := range def.Fields {
		ti := textinput.New()
		ti.Placeholder = f.Placeholder
		ti.CharLimit = 1024
		ti.Width = 40
		if f.Default != "" {
			ti.SetValue(f.Default)
		}
		if i == 0 {
			ti.Focus()
		}
		m.Inputs[i] = ti
	}
	m.Focused = 0
	m.Err = nil
}

func (m CommandFormModel) Update(msg tea.Msg) (CommandFormModel, tea.Cmd) {
	if m.State == StateSelecting {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "enter":
				if i, ok := m.List.SelectedItem().(cmdItem); ok {
					m.SelectedCmd = i.index
					m.State = StateFilling
					m.initInputs()
					return m, textinput.Blink
				}
				return m, nil
			case "up", "k":
				m.List.CursorUp()
				return m, nil
			case "down", "j":
				m.List.CursorDown()
				return m, nil
			}
		case tea.WindowSizeMsg:
			m.List.SetWidth(msg.Width)
			m.List.SetHeight(msg.Height)
		}
		var cmd tea.Cmd
		m.List, cmd = m.List.Update(msg)
		return m, cmd
	}

	submit, back := len(m.Inputs), len(m.Inputs)+1
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.State = StateSelecting
			return m, nil
		case "enter":
			switch m.Focused {
			case submit:
				return m.submit()
			case back:
				m.State = StateSelecting
				return m, nil
			}
			m.focus(m.Focused + 1)
			return m, nil
		case "tab", "down":
			m.focus(m.Focused + 1)
			return m, nil
		case "shift+tab", "up":
			m.focus(m.Focused - 1)
			return m, nil
		}
	}
	if m.Focused < len(m.Inputs) {
		var cmd tea.Cmd
		m.Inputs[m.Focused], cmd = m.Inputs[m.Focused].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *CommandFormModel) focus(i int) {
	n := len(m.Inputs) + 2
	m.Focused = (i + n) % n
	for j := range m.Inputs {
		if j == m.Focused {
			m.Inputs[j].Focus()
		} else {
			m.Inputs[j].Blur()
		}
	}
}

func (m CommandFormModel) submit() (CommandFormModel, tea.Cmd) {
	def := availableCommands[m.SelectedCmd]
	values := make([]string, len(m.Inputs))
	for i := range m.Inputs {
		values[i] = m.Inputs[i].Value()
	}
	data, err := buildPayload(def, values)
	if err != nil {
		m.Err = err
		return m, nil
	}
	m.Err = nil
	m.State = StateSelecting
	c, agentID := m.client, m.AgentID
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		created, err := c.SendCommand(ctx, agentID, def.Type, data)
		return CommandSentMsg{Created: created, Err: err}
	}
}

func (m CommandFormModel) View() string {
	if m.State == StateSelecting {
		return m.List.View()
	}
	def := availableCommands[m.SelectedCmd]
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Render("Parameters: "+def.Type) + "\n\n")
	if len(def.Fields) == 0 {
		b.WriteString(blurredStyle.Render("No parameters.") + "\n\n")
	}
	for i, f := range def.Fields {
		label := f.Name
		if f.Required {
			label += " *"
		}
		style := labelStyle
		if i == m.Focused {
			style = activeLabel
		}
		b.WriteString(style.Render(label) + "\n")
		b.WriteString(m.Inputs[i].View() + "\n\n")
	}
	buttons := lipgloss.JoinHorizontal(lipgloss.Top,
		button("Queue", m.Focused == len(m.Inputs)),
		lipgloss.NewStyle().MarginLeft(2).Render(button("Back", m.Focused == len(m.Inputs)+1)),
	)
	b.WriteString(buttons)
	if m.Err != nil {
		b.WriteString("\n\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
