// Package events publishes agent and command lifecycle notifications for
// dashboards and other listeners. Publishing is best effort: a failed
// publish never changes the outcome of the operation that produced it.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Kind string

const (
	AgentJoined       Kind = "agent.joined"
	AgentRemoved      Kind = "agent.removed"
	CommandQueued     Kind = "command.queued"
	CommandRetrieved  Kind = "command.retrieved"
	CommandCompleted  Kind = "command.completed"
	CommandFailed     Kind = "command.failed"
	FileUploaded      Kind = "file.uploaded"
	FileDownloaded    Kind = "file.downloaded"
	ProtocolViolation Kind = "protocol.violation"
)

type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	AgentID     int       `json:"agent_id"`
	CommandID   int       `json:"command_id,omitempty"`
	CommandType string    `json:"command_type,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	At          time.Time `json:"at"`
}

func New(kind Kind, agentID int) Event {
	return Event{ID: uuid.NewString(), Kind: kind, AgentID: agentID, At: time.Now().UTC()}
}

func (e Event) WithCommand(id int, typ string) Event {
	e.CommandID = id
	e.CommandType = typ
	return e
}

func (e Event) WithDetail(detail string) Event {
	e.Detail = detail
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to a zerolog logger at debug level.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher { return &LogPublisher{log: log} }

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	ev := p.log.Debug().
		Str("event_id", e.ID).
		Str("kind", string(e.Kind)).
		Int("agent", e.AgentID)
	if e.CommandID != 0 {
		ev = ev.Int("command", e.CommandID).Str("type", e.CommandType)
	}
	if e.Detail != "" {
		ev = ev.Str("detail", e.Detail)
	}
	ev.Msg("event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
