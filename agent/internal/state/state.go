package state

import "sync/atomic"

// State is what the agent knows about its own session.
type State struct {
	agentID      atomic.Int64
	pollInterval atomic.Int64
}

func New(pollInterval int) *State {
	s := &State{}
	s.SetPollInterval(pollInterval)
	return s
}

func (s *State) SetAgentID(id int) { s.agentID.Store(int64(id)) }
func (s *State) AgentID() int      { return int(s.agentID.Load()) }

func (s *State) SetPollInterval(seconds int) { s.pollInterval.Store(int64(seconds)) }
func (s *State) PollInterval() int           { return int(s.pollInterval.Load()) }
