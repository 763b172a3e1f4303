package command

import (
	"context"
	"encoding/json"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Command is one entry of a poll response.
type Command struct {
	ID   int             `json:"command_id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Result is what gets reported back for a command. Terminate asks the poll
// loop to stop once the result has been sent.
type Result struct {
	Status    string
	Output    string
	Error     string
	Terminate bool
}

func Success(output string) Result { return Result{Status: StatusSuccess, Output: output} }
func Failure(err error) Result     { return Result{Status: StatusError, Error: err.Error()} }

type Handler interface {
	// DecodeArg lets each command define its own argument struct.
	DecodeArg(raw json.RawMessage) (any, error)
	Handle(ctx context.Context, arg any) Result
}
