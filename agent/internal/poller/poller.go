package poller

import (
	"context"
	"errors"
	"time"

	"taskrelay/agent/internal/backoff"
	"taskrelay/agent/internal/command"
	"taskrelay/agent/internal/protocolclient"
	"taskrelay/agent/internal/state"

	"github.com/rs/zerolog"
)

// Client is the part of the protocol client the poll loop needs.
type Client interface {
	Join(ctx context.Context, hostname, user string) (int, error)
	GetCommands(ctx context.Context, agentID int) ([]command.Command, error)
	ReportResult(ctx context.Context, agentID, commandID int, r command.Result) error
}

type Poller struct {
	client     Client
	commands   *command.Registry
	state      *state.State
	backoff    *backoff.Backoff
	log        zerolog.Logger
	unit       time.Duration
	retryDelay func() time.Duration
}

func New(client Client, commands *command.Registry, st *state.State, bo *backoff.Backoff, log zerolog.Logger) *Poller {
	p := &Poller{client: client, commands: commands, state: st, backoff: bo, log: log, unit: time.Second}
	p.retryDelay = bo.Next
	return p
}

// Join registers with the server, retrying with backoff until it succeeds
// or ctx ends.
func (p *Poller) Join(ctx context.Context, hostname, user string) error {
	for {
		id, err := p.client.Join(ctx, hostname, user)
		if err == nil {
			p.backoff.Reset()
			p.state.SetAgentID(id)
			p.log.Info().Int("agent", id).Msg("joined server")
			return nil
		}
		d := p.retryDelay()
		p.log.Error().Err(err).Dur("retry_in", d).Msg("join failed")
		if !sleep(ctx, d) {
			return ctx.Err()
		}
	}
}

// Run polls every poll interval until a terminate command is handled, the
// server forgets the agent, or ctx ends.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info().Int("agent", p.state.AgentID()).Int("sleep_time", p.state.PollInterval()).Msg("polling for commands")
	for {
		if !sleep(ctx, time.Duration(p.state.PollInterval())*p.unit) {
			return nil
		}
		done, err := p.cycle(ctx)
		if errors.Is(err, protocolclient.ErrUnknownAgent) {
			return err
		}
		if err != nil {
			d := p.retryDelay()
			p.log.Error().Err(err).Dur("retry_in", d).Msg("poll failed")
			if !sleep(ctx, d) {
				return nil
			}
			continue
		}
		p.backoff.Reset()
		if done {
			p.log.Info().Msg("terminate received, shutting down")
			return nil
		}
	}
}

var errTerminating = errors.New("agent terminating")

// cycle runs one poll: fetch, execute each command in order, report each.
// Commands after a terminate are reported as failed without running.
func (p *Poller) cycle(ctx context.Context) (bool, error) {
	agentID := p.state.AgentID()
	cmds, err := p.client.GetCommands(ctx, agentID)
	if err != nil {
		return false, err
	}
	if len(cmds) > 0 {
		p.log.Info().Int("count", len(cmds)).Msg("got new commands")
	}
	terminating := false
	for _, cmd := range cmds {
		var res command.Result
		if terminating {
			res = command.Failure(errTerminating)
			p.log.Warn().Int("command", cmd.ID).Str("type", cmd.Type).Msg("skipping command after terminate")
		} else {
			res = p.commands.Dispatch(ctx, cmd)
			terminating = res.Terminate
		}
		p.report(ctx, agentID, cmd.ID, res)
	}
	return terminating, nil
}

func (p *Poller) report(ctx context.Context, agentID, commandID int, res command.Result) {
	if err := p.client.ReportResult(ctx, agentID, commandID, res); err != nil {
		// results are not retried; the command stays retrieved on the server
		p.log.Error().Err(err).Int("command", commandID).Msg("send result failed")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
