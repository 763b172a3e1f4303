package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	FocusHistory = iota
	FocusForm
)

// BackToDashboardMsg returns to the agent list.
type BackToDashboardMsg struct{}

type agentLoadedMsg struct {
	Agent AgentDetail
	Err   error
}

type agentDeletedMsg struct {
	Result DeleteResult
	Err    error
}

type AgentDetailModel struct {
	client   *Client
	AgentID  int
	Agent    AgentDetail
	Loaded   bool
	History  table.Model
	Output   viewport.Model
	Form     CommandFormModel
	Focus    int
	Confirm  bool
	Deleting bool
	Status   string
	Err      error
	Width    int
	Height   int
}

func NewAgentDetailModel(c *Client, agentID, width, height int) AgentDetailModel {
	columns := []table.Column{
		{Title: "ID", Width: 7},
		{Title: "Type", Width: 15},
		{Title: "Status", Width: 10},
		{Title: "Created", Width: 9},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(height/2-4, 5)),
	)
	t.SetStyles(tableStyles())

	vp := viewport.New(48, max(height/2-6, 4))
	vp.Style = lipgloss.NewStyle().PaddingLeft(1)

	return AgentDetailModel{
		client:  c,
		AgentID: agentID,
		History: t,
		Output:  vp,
		Form:    NewCommandFormModel(agentID, c, 50, max(height-8, 10)),
		Focus:   FocusHistory,
		Width:   width,
		Height:  height,
	}
}

func (m AgentDetailModel) Init() tea.Cmd {
	return m.load()
}

func (m AgentDetailModel) load() tea.Cmd {
	c, id := m.client, m.AgentID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a, err := c.Agent(ctx, id)
		return agentLoadedMsg{Agent: a, Err: err}
	}
}

// deleteAgent can take the server's terminate grace period to answer.
func (m AgentDetailModel) deleteAgent() tea.Cmd {
	c, id := m.client, m.AgentID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		res, err := c.DeleteAgent(ctx, id)
		return agentDeletedMsg{Result: res, Err: err}
	}
}

func (m AgentDetailModel) Update(msg tea.Msg) (AgentDetailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case agentLoadedMsg:
		if msg.Err != nil {
			m.Err = msg.Err
			return m, nil
		}
		m.Err = nil
		m.Agent = msg.Agent
		m.Loaded = true
		m.History.SetRows(historyRows(msg.Agent.Commands, time.Now()))
		m.showSelected()
		return m, nil

	case CommandSentMsg:
		if msg.Err != nil {
			m.Err = msg.Err
			return m, nil
		}
		m.Err = nil
		m.Status = fmt.Sprintf("queued %s as command %d", msg.Created.Type, msg.Created.CommandID)
		return m, m.load()

	case agentDeletedMsg:
		m.Deleting = false
		if msg.Err != nil {
			m.Err = msg.Err
			return m, nil
		}
		return m, func() tea.Msg { return BackToDashboardMsg{} }

	case tea.KeyMsg:
		if m.Deleting {
			return m, nil
		}
		if m.Confirm {
			m.Confirm = false
			if msg.String() == "y" {
				m.Deleting = true
				m.Status = "deleting agent..."
				return m, m.deleteAgent()
			}
			m.Status = ""
			return m, nil
		}
		if m.Focus == FocusForm {
			if msg.String() == "esc" && m.Form.State == StateSelecting {
				m.Focus = FocusHistory
				m.History.Focus()
				return m, nil
			}
			var cmd tea.Cmd
			m.Form, cmd = m.Form.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "esc", "b":
			return m, func() tea.Msg { return BackToDashboardMsg{} }
		case "r":
			return m, m.load()
		case "c", "tab":
			m.Focus = FocusForm
			m.History.Blur()
			return m, nil
		case "d":
			m.Confirm = true
			m.Status = fmt.Sprintf("delete agent %d? (y/n)", m.AgentID)
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.Output, cmd = m.Output.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.History, cmd = m.History.Update(msg)
		m.showSelected()
		return m, cmd
	}

	if m.Focus == FocusForm {
		var cmd tea.Cmd
		m.Form, cmd = m.Form.Update(msg)
		return m, cmd
	}
	return m, nil
}

// showSelected puts the highlighted command's outcome in the output pane.
func (m *AgentDetailModel) showSelected() {
	row := m.History.SelectedRow()
	if len(row) == 0 {
		m.Output.SetContent(blurredStyle.Render("No commands yet."))
		return
	}
	id, _ := strconv.Atoi(row[0])
	for _, c := range m.Agent.Commands {
		if c.ID == id {
			m.Output.SetContent(describeCommand(c))
			m.Output.GotoTop()
			return
		}
	}
}

func describeCommand(c CommandEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s [%s]\n", c.ID, c.Type, c.Status)
	if len(c.Data) > 0 && string(c.Data) != "{}" {
		fmt.Fprintf(&b, "data: %s\n", c.Data)
	}
	if c.Result != nil && *c.Result != "" {
		b.WriteString("\n" + *c.Result + "\n")
	}
	if c.Error != nil {
		b.WriteString("\n" + errorMessageStyle(*c.Error) + "\n")
	}
	if c.Result == nil && c.Error == nil {
		b.WriteString(blurredStyle.Render("\nwaiting for the agent"))
	}
	return b.String()
}

func historyRows(cmds []CommandEntry, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(cmds))
	for i := len(cmds) - 1; i >= 0; i-- {
		c := cmds[i]
		rows = append(rows, table.Row{strconv.Itoa(c.ID), c.Type, c.Status, ago(now, c.CreatedAt)})
	}
	return rows
}

func (m AgentDetailModel) View() string {
	a := m.Agent
	state := offlineStyle.Render("offline")
	if a.Online {
		state = onlineStyle.Render("online")
	}
	header := titleStyle.Render(fmt.Sprintf("Agent %d", m.AgentID))
	if m.Loaded {
		header += fmt.Sprintf("  %s@%s  %s  %s  sleep %ds", a.User, a.Hostname, a.Address, state, a.SleepTime)
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render("History"),
		m.History.View(),
		"",
		labelStyle.Render("Output"),
		m.Output.View(),
	)
	formStyle := panelStyle
	if m.Focus == FocusForm {
		formStyle = formStyle.BorderForeground(lipgloss.Color("205"))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, panelStyle.Render(left), formStyle.Render(m.Form.View()))

	help := "c to queue a command, r to refresh, d to delete, esc to go back"
	if m.Focus == FocusForm {
		help = "enter to pick, tab to move, esc to leave the form"
	}
	var b strings.Builder
	b.WriteString(header + "\n\n" + body + "\n")
	b.WriteString(blurredStyle.Render(help))
	if m.Status != "" {
		b.WriteString("\n" + statusMessageStyle(m.Status))
	}
	if m.Err != nil {
		b.WriteString("\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
