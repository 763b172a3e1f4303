package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var ErrUnsupported = errors.New("unsupported command type")

// Registry maps command types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{handlers: map[string]Handler{}, log: log}
}

func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	r.handlers[name] = h
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Dispatch runs cmd through its handler. Types without a handler are
// reported as errors instead of being dropped.
func (r *Registry) Dispatch(ctx context.Context, cmd Command) Result {
	h, ok := r.Get(cmd.Type)
	if !ok {
		r.log.Warn().Int("command", cmd.ID).Str("type", cmd.Type).Msg("no handler for command")
		return Failure(fmt.Errorf("%w: %s", ErrUnsupported, cmd.Type))
	}
	arg, err := h.DecodeArg(cmd.Data)
	if err != nil {
		r.log.Error().Err(err).Int("command", cmd.ID).Str("type", cmd.Type).Msg("decode arg failed")
		return Failure(fmt.Errorf("invalid %s data: %w", cmd.Type, err))
	}
	r.log.Info().Int("command", cmd.ID).Str("type", cmd.Type).Msg("executing command")
	res := h.Handle(ctx, arg)
	if res.Status == StatusSuccess {
		r.log.Info().Int("command", cmd.ID).Str("type", cmd.Type).Msg("command completed")
	} else {
		r.log.Error().Int("command", cmd.ID).Str("type", cmd.Type).Str("error", res.Error).Msg("command failed")
	}
	return res
}
