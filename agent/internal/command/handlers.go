package command

import (
	"context"
	"encoding/json"
	"fmt"

	"taskrelay/agent/internal/state"

	"github.com/spf13/afero"
)

const (
	minSleep = 1
	maxSleep = 60
)

type sleepArg struct {
	SleepTime int `json:"sleep_time"`
}

// SleepHandler changes the agent's own poll interval.
type SleepHandler struct{ State *state.State }

func (h SleepHandler) DecodeArg(raw json.RawMessage) (any, error) {
	var a sleepArg
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
	}
	if a.SleepTime < minSleep || a.SleepTime > maxSleep {
		return nil, fmt.Errorf("sleep_time must be between %d and %d", minSleep, maxSleep)
	}
	return a, nil
}

func (h SleepHandler) Handle(_ context.Context, arg any) Result {
	a := arg.(sleepArg)
	old := h.State.PollInterval()
	h.State.SetPollInterval(a.SleepTime)
	return Success(fmt.Sprintf("Sleep time changed from %ds to %ds", old, a.SleepTime))
}

type TerminateHandler struct{}

func (TerminateHandler) DecodeArg(json.RawMessage) (any, error) { return nil, nil }

func (TerminateHandler) Handle(context.Context, any) Result {
	r := Success("Agent terminating...")
	r.Terminate = true
	return r
}

// Env is what the built-in handlers work with. File commands are only
// registered when Fs is set, and upload/download also need Transfer.
type Env struct {
	State    *state.State
	Fs       afero.Fs
	Transfer Transfer
}

// RegisterBuiltins installs the handlers the agent ships with. exec and the
// other OS-level commands are left to the caller.
func RegisterBuiltins(r *Registry, env Env) {
	r.Register("set_sleep_time", SleepHandler{State: env.State})
	r.Register("terminate", TerminateHandler{})
	if env.Fs == nil {
		return
	}
	r.Register("list_directory", ListDirectoryHandler{Fs: env.Fs})
	if env.Transfer != nil {
		r.Register("upload", UploadHandler{State: env.State, Fs: env.Fs, Transfer: env.Transfer})
		r.Register("download", DownloadHandler{Fs: env.Fs, Transfer: env.Transfer, MaxSize: MaxDownloadSize})
	}
}
