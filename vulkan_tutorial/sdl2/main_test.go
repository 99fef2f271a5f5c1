package main

import (
	"bytes"
	"log"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/config"
	"github.com/hellovulkan/hellovulkan/frames"
	"github.com/stretchr/testify/require"
)

// scriptedWindow returns one scripted poll result per call and closes once the script runs out.
type scriptedWindow struct {
	polls     []frames.Events
	minimized bool
	waits     int
	waitErr   error
}

func (w *scriptedWindow) PollEvents() frames.Events {
	if len(w.polls) == 0 {
		return frames.Events{}
	}
	events := w.polls[0]
	w.polls = w.polls[1:]
	return events
}

func (w *scriptedWindow) WaitEvents() error {
	w.waits++
	w.minimized = false
	return w.waitErr
}

func (w *scriptedWindow) Closed() bool {
	return len(w.polls) == 0
}

func (w *scriptedWindow) Minimized() bool {
	return w.minimized
}

func (w *scriptedWindow) DrawableExtent() frames.Extent {
	if w.minimized {
		return frames.Extent{}
	}
	return frames.Extent{Width: 800, Height: 600}
}

type countingEngine struct {
	slot     int
	outcome  frames.Outcome
	received []frames.Events
}

func (e *countingEngine) DrawFrame(events frames.Events) (frames.Outcome, error) {
	e.received = append(e.received, events)
	e.slot = (e.slot + 1) % 2
	return e.outcome, nil
}

func (e *countingEngine) CurrentFrame() int {
	return e.slot
}

func TestMainLoopKeepsResizeAcrossMinimize(t *testing.T) {
	win := &scriptedWindow{
		polls:     []frames.Events{{Resized: true}, {}, {}},
		minimized: true,
	}
	engine := &countingEngine{}

	require.NoError(t, mainLoop(config.Config{}, win, engine))
	require.Equal(t, 1, win.waits)
	require.Equal(t, []frames.Events{{Resized: true}}, engine.received)
}

func TestMainLoopClearsDeliveredEvents(t *testing.T) {
	win := &scriptedWindow{polls: []frames.Events{{Resized: true}, {}, {}}}
	engine := &countingEngine{}

	require.NoError(t, mainLoop(config.Config{}, win, engine))
	require.Equal(t, []frames.Events{{Resized: true}, {}}, engine.received)
}

func TestMainLoopWaitFailure(t *testing.T) {
	win := &scriptedWindow{
		polls:     []frames.Events{{}, {}},
		minimized: true,
		waitErr:   errors.Wrap(frames.ErrSurfaceClosed, "quit while minimized"),
	}

	err := mainLoop(config.Config{}, win, &countingEngine{})
	require.ErrorIs(t, err, frames.ErrSurfaceClosed)
}

func TestMainLoopLogsSlotThatDrew(t *testing.T) {
	var out bytes.Buffer
	writer, flags := log.Writer(), log.Flags()
	log.SetOutput(&out)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(writer)
		log.SetFlags(flags)
	})

	win := &scriptedWindow{polls: []frames.Events{{}, {}, {}}}
	engine := &countingEngine{outcome: frames.Recreated}

	require.NoError(t, mainLoop(config.Config{Verbose: true}, win, engine))
	require.Equal(t, "frame slot 0: recreated\nframe slot 1: recreated\n", out.String())
}
