package interview

import (
	"context"
	"sync"
	"time"

	"github.com/spigell/interview-coach/internal/utils"
)

// DefaultRevealInterval is the delay between two revealed characters.
const DefaultRevealInterval = 30 * time.Millisecond

// Revealer types a message out one character per tick. Only one reveal runs at
// a time: starting a new one stops the previous one first.
type Revealer struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRevealer(interval time.Duration) *Revealer {
	if interval < 0 {
		interval = 0
	}
	return &Revealer{interval: interval}
}

// Start reveals text through emit and returns a channel closed once the reveal
// is over. emit receives every prefix of text, the last call always carries
// the whole text with done set, even when the reveal is stopped early.
func (r *Revealer) Start(ctx context.Context, text string, emit func(partial string, done bool)) <-chan struct{} {
	r.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		runes := []rune(text)
		for i := 1; i < len(runes); i++ {
			if !r.tick(ctx) {
				break
			}
			emit(string(runes[:i]), false)
		}
		if len(runes) > 0 {
			r.tick(ctx)
		}
		emit(text, true)
	}()

	return done
}

// Stop ends the running reveal, if any, and waits for its final frame.
func (r *Revealer) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Revealer) tick(ctx context.Context) bool {
	if err := utils.WaitFor(ctx, r.interval); err != nil {
		return false
	}
	return ctx.Err() == nil
}
