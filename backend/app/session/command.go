package session

import (
	"fmt"
	"time"
)

type CommandType string

const (
	CommandExec          CommandType = "exec"
	CommandUpload        CommandType = "upload"
	CommandDownload      CommandType = "download"
	CommandDelete        CommandType = "delete"
	CommandListDirectory CommandType = "list_directory"
	CommandSetSleepTime  CommandType = "set_sleep_time"
	CommandReadFile      CommandType = "read_file"
	CommandWriteFile     CommandType = "write_file"
	CommandTerminate     CommandType = "terminate"
)

// CommandTypes lists every command type in declaration order.
var CommandTypes = []CommandType{
	CommandExec, CommandUpload, CommandDownload, CommandDelete, CommandListDirectory,
	CommandSetSleepTime, CommandReadFile, CommandWriteFile, CommandTerminate,
}

func ParseCommandType(s string) (CommandType, error) {
	for _, t := range CommandTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", invalid("type", fmt.Sprintf("unknown command type %q", s))
}

// Status is the lifecycle state of a command.
// Transitions: pending -> retrieved -> completed | failed.
type Status uint8

const (
	StatusPending Status = iota
	StatusRetrieved
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRetrieved:
		return "retrieved"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pending":
		*s = StatusPending
	case "retrieved":
		*s = StatusRetrieved
	case "completed":
		*s = StatusCompleted
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown status %q", string(b))
	}
	return nil
}

// Outcome is what the agent says happened when it reports a result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// Report is a result submitted by an agent for a retrieved command.
type Report struct {
	Outcome Outcome
	Result  string
	Error   string
}

type command struct {
	id          int
	payload     Payload
	status      Status
	result      string
	err         string
	createdAt   time.Time
	retrievedAt time.Time
	completedAt time.Time
}

// CommandView is a read-only copy of a command.
type CommandView struct {
	ID          int         `json:"command_id"`
	Type        CommandType `json:"type"`
	Data        Payload     `json:"data"`
	Status      Status      `json:"status"`
	Result      *string     `json:"result"`
	Error       *string     `json:"error"`
	CreatedAt   time.Time   `json:"created_at"`
	RetrievedAt *time.Time  `json:"retrieved_at"`
	CompletedAt *time.Time  `json:"completed_at"`
}

func (c *command) view() CommandView {
	v := CommandView{
		ID:        c.id,
		Type:      c.payload.Type(),
		Data:      c.payload,
		Status:    c.status,
		CreatedAt: c.createdAt,
	}
	if !c.retrievedAt.IsZero() {
		t := c.retrievedAt
		v.RetrievedAt = &t
	}
	if c.status.Terminal() {
		t := c.completedAt
		v.CompletedAt = &t
		res, e := c.result, c.err
		v.Result = &res
		if e != "" {
			v.Error = &e
		}
	}
	return v
}

// Delivery is a command handed to an agent by a poll.
type Delivery struct {
	ID   int         `json:"command_id"`
	Type CommandType `json:"type"`
	Data Payload     `json:"data"`
}

