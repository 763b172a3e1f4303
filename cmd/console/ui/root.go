// Package ui is the operator console: login, agent list and agent detail
// screens over the HTTP API.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type state int

const (
	stateLogin state = iota
	stateDashboard
	stateAgentDetail
)

type RootModel struct {
	State     state
	client    *Client
	Login     LoginModel
	Dashboard DashboardModel
	Detail    AgentDetailModel
	Quitting  bool
	width     int
	height    int
}

func NewRootModel(server string, timeout time.Duration) RootModel {
	return RootModel{
		State: stateLogin,
		Login: NewLoginModel(server, timeout),
	}
}

func (m RootModel) Init() tea.Cmd {
	return m.Login.Init()
}

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.State != stateLogin {
			m.Dashboard.Table.SetHeight(max(msg.Height-10, 5))
			m.Detail.History.SetHeight(max(msg.Height/2-4, 5))
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Quitting = true
			return m, tea.Quit
		}
	case loggedInMsg:
		m.client = msg.Client
		m.State = stateDashboard
		m.Dashboard = NewDashboardModel(m.client, m.width, m.height)
		return m, m.Dashboard.Init()
	case AgentSelectedMsg:
		m.State = stateAgentDetail
		m.Detail = NewAgentDetailModel(m.client, msg.AgentID, m.width, m.height)
		return m, m.Detail.Init()
	case BackToDashboardMsg:
		m.State = stateDashboard
		return m, m.Dashboard.load()
	}

	var cmd tea.Cmd
	switch m.State {
	case stateLogin:
		m.Login, cmd = m.Login.Update(msg)
	case stateDashboard:
		m.Dashboard, cmd = m.Dashboard.Update(msg)
	case stateAgentDetail:
		// the dashboard keeps its refresh tick alive while hidden
		if _, ok := msg.(dashboardTickMsg); ok {
			return m, tick()
		}
		if loaded, ok := msg.(agentsLoadedMsg); ok {
			m.Dashboard, cmd = m.Dashboard.Update(loaded)
			return m, cmd
		}
		m.Detail, cmd = m.Detail.Update(msg)
	}
	return m, cmd
}

func (m RootModel) View() string {
	if m.Quitting {
		return "Bye!\n"
	}
	switch m.State {
	case stateDashboard:
		return m.Dashboard.View()
	case stateAgentDetail:
		return m.Detail.View()
	}
	return m.Login.View()
}
