package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

const refreshEvery = 5 * time.Second

type agentsLoadedMsg struct {
	Agents []AgentSummary
	Err    error
}

type dashboardTickMsg struct{}

// AgentSelectedMsg opens the detail view for an agent.
type AgentSelectedMsg struct {
	AgentID int
}

type DashboardModel struct {
	client  *Client
	Table   table.Model
	Agents  []AgentSummary
	Err     error
	Updated time.Time
}

func NewDashboardModel(c *Client, width, height int) DashboardModel {
	columns := []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Hostname", Width: 20},
		{Title: "User", Width: 14},
		{Title: "Address", Width: 16},
		{Title: "State", Width: 8},
		{Title: "Sleep", Width: 6},
		{Title: "Cmds", Width: 6},
		{Title: "Last seen", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(height-10, 5)),
	)
	t.SetStyles(tableStyles())
	return DashboardModel{client: c, Table: t}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg { return dashboardTickMsg{} })
}

func (m DashboardModel) load() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		agents, err := c.Agents(ctx)
		return agentsLoadedMsg{Agents: agents, Err: err}
	}
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case agentsLoadedMsg:
		if msg.Err != nil {
			m.Err = msg.Err
			return m, nil
		}
		m.Err = nil
		m.Agents = msg.Agents
		m.Updated = time.Now()
		m.Table.SetRows(agentRows(msg.Agents, m.Updated))
		return m, nil
	case dashboardTickMsg:
		return m, tea.Batch(m.load(), tick())
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return m, m.load()
		case "enter":
			row := m.Table.SelectedRow()
			if len(row) == 0 {
				return m, nil
			}
			id, err := strconv.Atoi(row[0])
			if err != nil {
				return m, nil
			}
			return m, func() tea.Msg { return AgentSelectedMsg{AgentID: id} }
		case "q":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.Table, cmd = m.Table.Update(msg)
	return m, cmd
}

func agentRows(agents []AgentSummary, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(agents))
	for _, a := range agents {
		state := offlineStyle.Render("offline")
		if a.Online {
			state = onlineStyle.Render("online")
		}
		rows = append(rows, table.Row{
			strconv.Itoa(a.ID),
			a.Hostname,
			a.User,
			a.Address,
			state,
			fmt.Sprintf("%ds", a.SleepTime),
			strconv.Itoa(a.TotalCommands),
			ago(now, a.LastSeen),
		})
	}
	return rows
}

func ago(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String()
}

func (m DashboardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Agents (%d)", len(m.Agents))) + "  ")
	b.WriteString(blurredStyle.Render(m.client.BaseURL()) + "\n\n")
	b.WriteString(m.Table.View())
	b.WriteString("\n\n")
	b.WriteString(blurredStyle.Render("Enter to open, r to refresh, q to quit"))
	if m.Err != nil {
		b.WriteString("\n" + errorMessageStyle(m.Err.Error()))
	}
	return b.String()
}
