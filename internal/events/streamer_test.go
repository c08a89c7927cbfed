package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamerFiltersByType(t *testing.T) {
	s := NewStreamer()
	all := s.Subscribe()
	steps := s.Subscribe(StepStarted)

	s.Publish(FunctionStarted, map[string]any{"function": "print_start"})
	s.Publish(StepStarted, map[string]any{"step_index": 0})

	require.Len(t, all, 2)
	require.Len(t, steps, 1)
	ev := <-steps
	assert.Equal(t, StepStarted, ev.Type)
	assert.NotEqual(t, [16]byte{}, [16]byte(ev.ID))
}

func TestStreamerNeverBlocks(t *testing.T) {
	s := NewStreamer()
	s.bufferSize = 1
	ch := s.Subscribe()

	s.Publish(TemperatureSample, nil)
	s.Publish(TemperatureSample, nil)
	s.Publish(TemperatureSample, nil)

	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(2), s.Dropped())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewStreamer()
	ch := s.Subscribe()
	s.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// publishing after unsubscribe is fine
	s.Publish(StateChanged, nil)
}

func TestNilStreamerPublish(t *testing.T) {
	var s *Streamer
	assert.NotPanics(t, func() { s.Publish(StepFailed, nil) })
}
