package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameLog struct {
	mu     sync.Mutex
	frames []string
	done   []bool
}

func (l *frameLog) emit(partial string, done bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, partial)
	l.done = append(l.done, done)
}

func (l *frameLog) snapshot() ([]string, []bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.frames...), append([]bool(nil), l.done...)
}

func TestRevealerEmitsEveryPrefix(t *testing.T) {
	r := NewRevealer(0)
	log := &frameLog{}

	<-r.Start(context.Background(), "héy", log.emit)

	frames, done := log.snapshot()
	assert.Equal(t, []string{"h", "hé", "héy"}, frames)
	assert.Equal(t, []bool{false, false, true}, done)
}

func TestRevealerEmptyText(t *testing.T) {
	r := NewRevealer(time.Hour)
	log := &frameLog{}

	select {
	case <-r.Start(context.Background(), "", log.emit):
	case <-time.After(time.Second):
		t.Fatal("reveal of empty text did not finish")
	}

	frames, done := log.snapshot()
	assert.Equal(t, []string{""}, frames)
	assert.Equal(t, []bool{true}, done)
}

func TestRevealerStopFlushesFullText(t *testing.T) {
	r := NewRevealer(time.Hour)
	log := &frameLog{}

	finished := r.Start(context.Background(), "a long message", log.emit)
	r.Stop()

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the reveal finished")
	}

	frames, done := log.snapshot()
	require.NotEmpty(t, frames)
	assert.Equal(t, "a long message", frames[len(frames)-1])
	assert.True(t, done[len(done)-1])
}

func TestRevealerRestartStopsPrevious(t *testing.T) {
	r := NewRevealer(time.Hour)
	first := &frameLog{}
	second := &frameLog{}

	firstDone := r.Start(context.Background(), "first", first.emit)
	secondDone := r.Start(context.Background(), "second", second.emit)

	select {
	case <-firstDone:
	default:
		t.Fatal("restart did not finish the previous reveal")
	}

	frames, _ := first.snapshot()
	assert.Equal(t, []string{"first"}, frames)

	r.Stop()
	<-secondDone
	frames, _ = second.snapshot()
	assert.Equal(t, []string{"second"}, frames)
}

func TestRevealerParentContextCancel(t *testing.T) {
	r := NewRevealer(time.Hour)
	log := &frameLog{}
	ctx, cancel := context.WithCancel(context.Background())

	finished := r.Start(ctx, "bye", log.emit)
	cancel()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("reveal ignored context cancellation")
	}

	frames, _ := log.snapshot()
	assert.Equal(t, []string{"bye"}, frames)
}

func TestRevealerStopWithoutStart(t *testing.T) {
	NewRevealer(0).Stop()
}
