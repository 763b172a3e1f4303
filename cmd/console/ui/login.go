package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	inputServer = iota
	inputUsername
	inputPassword
)

// loggedInMsg carries a client that already holds an access token.
type loggedInMsg struct {
	Client *Client
}

type loginFailedMsg struct {
	Err error
}

type LoginModel struct {
	Inputs   []textinput.Model
	FocusIdx int
	Err      error
	Busy     bool
	timeout  time.Duration
}

func NewLoginModel(server string, timeout time.Duration) LoginModel {
	inputs := make([]textinput.Model, 3)

	inputs[inputServer] = textinput.New()
	inputs[inputServer].Placeholder = "http://127.0.0.1:8000"
	inputs[inputServer].Prompt = "Server:   "
	inputs[inputServer].SetValue(server)
	inputs[inputServer].Focus()

	inputs[inputUsername] = textinput.New()
	inputs[inputUsername].Placeholder = "admin"
	inputs[inputUsername].Prompt = "Username: "

	inputs[inputPassword] = textinput.New()
	inputs[inputPassword].Placeholder = "password"
	inputs[inputPassword].EchoMode = textinput.EchoPassword
	inputs[inputPassword].Prompt = "Password: "

	return LoginModel{Inputs: inputs, timeout: timeout}
}

func (m LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m LoginModel) Update(msg tea.Msg) (LoginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case loginFailedMsg:
		m.Busy = false
		m.Err = msg.Err
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			if m.FocusIdx == len(m.Inputs)-1 {
				if m.Busy {
					return m, nil
				}
				m.Busy = true
				m.Err = nil
				return m, m.loginCmd()
			}
			m.move(1)
			return m, nil
		case tea.KeyTab, tea.KeyDown:
			m.move(1)
			return m, nil
		case tea.KeyShiftTab, tea.KeyUp:
			m.move(-1)
			return m, nil
		}
	}

	cmds := make([]tea.Cmd, len(m.Inputs))
	for i := range m.Inputs {
		m.Inputs[i], cmds[i] = m.Inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m *LoginModel) move(delta int) {
	m.Inputs[m.FocusIdx].Blur()
	m.FocusIdx = (m.FocusIdx + delta + len(m.Inputs)) % len(m.Inputs)
	m.Inputs[m.FocusIdx].Focus()
}

func (m LoginModel) loginCmd() tea.Cmd {
	server := strings.TrimSpace(m.Inputs[inputServer].Value())
	username := strings.TrimSpace(m.Inputs[inputUsername].Value())
	password := m.Inputs[inputPassword].Value()
	timeout := m.timeout
	return func() tea.Msg {
		if server == "" || username == "" {
			return loginFailedMsg{Err: errors.New("server and username are required")}
		}
		c := NewClient(server, timeout)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		token, err := c.Login(ctx, username, password)
		if err != nil {
			return loginFailedMsg{Err: err}
		}
		return loggedInMsg{Client: c.WithToken(token)}
	}
}

func (m LoginModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("taskrelay - operator login") + "\n\n")
	for i := range m.Inputs {
		b.WriteString(m.Inputs[i].View())
		if i < len(m.Inputs)-1 {
			b.WriteRune('\n')
		}
	}
	b.WriteString("\n\n")
	if m.Busy {
		b.WriteString(blurredStyle.Render("Signing in..."))
	} else {
		b.WriteString(blurredStyle.Render("Tab to change fields, Enter on password to submit, Ctrl+C to quit"))
	}
	if m.Err != nil {
		b.WriteString("\n\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
