package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrBufferFull = errors.New("event buffer full")
	ErrClosed     = errors.New("publisher closed")
)

const (
	DefaultAsyncBuffer  = 1024
	DefaultAsyncTimeout = 2 * time.Second
)

// AsyncPublisher queues events in memory and hands them to the wrapped
// publisher from a single goroutine, so callers never wait on the backend.
// Events are dropped with ErrBufferFull once the buffer is full.
type AsyncPublisher struct {
	next    Publisher
	log     zerolog.Logger
	timeout time.Duration
	queue   chan Event
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the delivery goroutine. Each event gets timeout to reach
// next; buffer and timeout fall back to the defaults when not positive.
func NewAsync(next Publisher, log zerolog.Logger, buffer int, timeout time.Duration) *AsyncPublisher {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	if timeout <= 0 {
		timeout = DefaultAsyncTimeout
	}
	p := &AsyncPublisher{
		next:    next,
		log:     log,
		timeout: timeout,
		queue:   make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Unwrap returns the publisher events are delivered to.
func (p *AsyncPublisher) Unwrap() Publisher { return p.next }

// Publish enqueues e and returns at once. ctx is not used for delivery.
func (p *AsyncPublisher) Publish(_ context.Context, e Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- e:
		return nil
	default:
		return ErrBufferFull
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for e := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.next.Publish(ctx, e); err != nil {
			p.log.Warn().Err(err).Str("kind", string(e.Kind)).Int("agent", e.AgentID).Msg("deliver event failed")
		}
		cancel()
	}
}

// Close stops accepting events, delivers what is already queued and closes
// the wrapped publisher.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	return p.next.Close()
}
