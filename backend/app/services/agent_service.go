package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskrelay/backend/app/events"
	"taskrelay/backend/app/session"
	"taskrelay/backend/app/storage"

	"github.com/rs/zerolog"
)

type AgentOptions struct {
	OnlineThreshold time.Duration
	// TerminateGrace is how long Delete waits after queueing a terminate
	// command for an online agent before dropping its session.
	TerminateGrace time.Duration
}

// AgentService drives the polling protocol on top of the session registry:
// agents join, poll and report; operators enqueue, inspect and delete.
type AgentService struct {
	registry *session.Registry
	files    *storage.Store
	events   events.Publisher
	log      zerolog.Logger
	opts     AgentOptions
	wait     func(ctx context.Context, d time.Duration) error
}

func NewAgentService(reg *session.Registry, files *storage.Store, pub events.Publisher, log zerolog.Logger, opts AgentOptions) *AgentService {
	if opts.OnlineThreshold <= 0 {
		opts.OnlineThreshold = session.DefaultOnlineThreshold
	}
	if opts.TerminateGrace < 0 {
		opts.TerminateGrace = 0
	}
	return &AgentService{
		registry: reg,
		files:    files,
		events:   pub,
		log:      log,
		opts:     opts,
		wait:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *AgentService) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("kind", string(e.Kind)).Int("agent", e.AgentID).Msg("publish event failed")
	}
}

func (s *AgentService) Session(agentID int) (*session.Session, error) {
	return s.registry.Lookup(agentID)
}

// Join registers a new agent and returns its id.
func (s *AgentService) Join(ctx context.Context, address, hostname, user string) (int, error) {
	id, err := s.registry.Register(address, hostname, user)
	if err != nil {
		s.log.Error().Err(err).Str("ip", address).Str("hostname", hostname).Msg("agent registration failed")
		return 0, err
	}
	s.log.Info().Int("agent", id).Str("ip", address).Str("hostname", hostname).Str("user", user).Msg("agent joined")
	s.publish(ctx, events.New(events.AgentJoined, id).WithDetail(hostname))
	return id, nil
}

// Poll marks the agent as seen and hands over its pending commands.
func (s *AgentService) Poll(ctx context.Context, agentID int) ([]session.Delivery, error) {
	sess, err := s.registry.Lookup(agentID)
	if err != nil {
		return nil, err
	}
	sess.Touch()
	out := sess.DrainPending()
	if len(out) > 0 {
		s.log.Debug().Int("agent", agentID).Int("count", len(out)).Msg("commands retrieved")
	}
	for _, d := range out {
		s.publish(ctx, events.New(events.CommandRetrieved, agentID).WithCommand(d.ID, string(d.Type)))
	}
	if out == nil {
		out = []session.Delivery{}
	}
	return out, nil
}

// Report stores a command result. Reports for commands that are not in the
// retrieved state are rejected with session.ErrInvalidState and logged.
func (s *AgentService) Report(ctx context.Context, agentID, commandID int, r session.Report) error {
	sess, err := s.registry.Lookup(agentID)
	if err != nil {
		return err
	}
	v, err := sess.ReportResult(commandID, r)
	if err != nil {
		if errors.Is(err, session.ErrInvalidState) {
			s.log.Warn().Err(err).Int("agent", agentID).Int("command", commandID).Str("outcome", string(r.Outcome)).Msg("result for command not awaiting one")
			s.publish(ctx, events.New(events.ProtocolViolation, agentID).WithCommand(commandID, "").WithDetail(err.Error()))
		}
		return err
	}

	kind := events.CommandCompleted
	if v.Status == session.StatusFailed {
		kind = events.CommandFailed
	}
	ev := s.log.Info().Int("agent", agentID).Int("command", commandID).Str("type", string(v.Type)).Stringer("status", v.Status)
	if p, ok := v.Data.(session.SetSleepTimePayload); ok && v.Status == session.StatusCompleted {
		ev = ev.Int("sleep_time", p.SleepTime)
	}
	ev.Msg("command result recorded")
	s.publish(ctx, events.New(kind, agentID).WithCommand(commandID, string(v.Type)))
	return nil
}

// BatchResult is one entry of the legacy batch report.
type BatchResult struct {
	CommandID int
	Result    string
}

// ReportBatch records every entry as a success. It stops at the first
// entry the session rejects and returns that error.
func (s *AgentService) ReportBatch(ctx context.Context, agentID int, results []BatchResult) error {
	if _, err := s.registry.Lookup(agentID); err != nil {
		return err
	}
	for _, r := range results {
		if err := s.Report(ctx, agentID, r.CommandID, session.Report{Outcome: session.OutcomeSuccess, Result: r.Result}); err != nil {
			return fmt.Errorf("command %d: %w", r.CommandID, err)
		}
	}
	return nil
}

// Enqueue queues p for the agent. Download commands must reference a file
// already staged for that agent; their URL is filled in here.
func (s *AgentService) Enqueue(ctx context.Context, agentID int, p session.Payload) (int, error) {
	sess, err := s.registry.Lookup(agentID)
	if err != nil {
		return 0, err
	}
	if dl, ok := p.(session.DownloadPayload); ok {
		if s.files == nil || !s.files.Exists(agentID, dl.Filename) {
			return 0, fmt.Errorf("%w: %s", storage.ErrFileNotFound, dl.Filename)
		}
		dl.URL = fmt.Sprintf("/files/%s/%s", storage.AgentDir(agentID), dl.Filename)
		p = dl
	}
	id, err := sess.EnqueueCommand(p)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("agent", agentID).Int("command", id).Str("type", string(p.Type())).Msg("command queued")
	s.publish(ctx, events.New(events.CommandQueued, agentID).WithCommand(id, string(p.Type())))
	return id, nil
}

func (s *AgentService) Result(agentID, commandID int) (session.CommandView, error) {
	sess, err := s.registry.Lookup(agentID)
	if err != nil {
		return session.CommandView{}, err
	}
	return sess.GetResult(commandID)
}

func (s *AgentService) List() []session.Summary {
	return s.registry.List(s.registry.Now(), s.opts.OnlineThreshold)
}

func (s *AgentService) Detail(agentID int) (session.Detail, error) {
	sess, err := s.registry.Lookup(agentID)
	if err != nil {
		return session.Detail{}, err
	}
	return sess.Detail(s.registry.Now(), s.opts.OnlineThreshold), nil
}

// Delete removes the agent. An online agent is first sent a terminate
// command and given TerminateGrace to pick it up; the wait does not hold any
// session lock and is cut short if ctx ends. It reports whether a terminate
// command was sent.
func (s *AgentService) Delete(ctx context.Context, agentID int) (bool, error) {
	sess, err := s.registry.Lookup(agentID)
	if err != nil {
		return false, err
	}

	terminated := false
	if sess.IsOnline(s.registry.Now(), s.opts.OnlineThreshold) {
		if id, err := sess.EnqueueCommand(session.TerminatePayload{}); err != nil {
			s.log.Warn().Err(err).Int("agent", agentID).Msg("queue terminate failed, deleting anyway")
		} else {
			terminated = true
			s.log.Info().Int("agent", agentID).Int("command", id).Dur("grace", s.opts.TerminateGrace).Msg("terminate queued before delete")
			s.publish(ctx, events.New(events.CommandQueued, agentID).WithCommand(id, string(session.CommandTerminate)))
			if err := s.wait(ctx, s.opts.TerminateGrace); err != nil {
				s.log.Debug().Err(err).Int("agent", agentID).Msg("terminate grace cut short")
			}
		}
	}

	if !s.registry.Remove(agentID) {
		return terminated, session.ErrAgentNotFound
	}
	if s.files != nil {
		if err := s.files.RemoveAgent(agentID); err != nil {
			s.log.Warn().Err(err).Int("agent", agentID).Msg("remove agent files failed")
		}
	}
	s.log.Info().Int("agent", agentID).Bool("terminated", terminated).Msg("agent deleted")
	s.publish(context.WithoutCancel(ctx), events.New(events.AgentRemoved, agentID))
	return terminated, nil
}
