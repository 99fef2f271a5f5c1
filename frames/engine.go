package frames

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
)

// Engine overlaps CPU frame submission with GPU execution across a fixed number of frame
// slots. It never reuses a slot while the GPU may still be executing the slot's previous
// submission, and never writes a swapchain image that an unfinished frame still targets.
//
// An Engine is not safe for concurrent use. DrawFrame, Recreate and Close must be called
// from the thread that owns the swapchain.
type Engine struct {
	device    Device
	swapchain Swapchain
	recreator *Recreator
	timeout   time.Duration

	slots        []*frameSlot
	markers      markers
	currentFrame int

	stats  statsRecorder
	closed bool
}

// NewEngine creates the frame slots and sizes the image markers to the swapchain, which must
// already be built.
func NewEngine(device Device, swapchain Swapchain, surface Surface, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	if opts.FramesInFlight < 1 {
		return nil, errors.Newf("frames in flight must be at least 1, got %d", opts.FramesInFlight)
	}
	if opts.Timeout < 0 {
		return nil, errors.Newf("timeout must be positive, got %s", opts.Timeout)
	}

	engine := &Engine{
		device:    device,
		swapchain: swapchain,
		recreator: NewRecreator(surface, device, swapchain),
		timeout:   opts.Timeout,
	}

	for i := 0; i < opts.FramesInFlight; i++ {
		slot, err := newFrameSlot(device)
		if err != nil {
			engine.destroySlots()
			return nil, errors.Wrapf(err, "create frame slot %d", i)
		}

		engine.slots = append(engine.slots, slot)
	}

	engine.markers.reset(swapchain.ImageCount())

	return engine, nil
}

// DrawFrame renders and presents one frame using the current frame slot.
//
// If the swapchain is stale at acquisition it is rebuilt, nothing is submitted, the frame
// counter does not advance, and Recreated is returned; the caller simply draws again on its
// next loop pass. A suboptimal swapchain, a stale or suboptimal presentation, or a resize
// event rebuild the swapchain after the frame is presented.
func (e *Engine) DrawFrame(events Events) (Outcome, error) {
	if e.closed {
		return 0, errors.New("draw frame: engine is closed")
	}

	start := hrtime.Now()
	slot := e.slots[e.currentFrame]

	err := e.waitGate(slot.gate)
	if err != nil {
		return 0, errors.Wrapf(err, "draw frame: wait for frame slot %d", e.currentFrame)
	}

	imageIndex, status, err := e.device.AcquireNextImage(e.timeout, slot.imageAvailable)
	if err != nil {
		return 0, errors.Wrap(err, "draw frame: acquire image")
	}
	if status == StatusOutOfDate {
		return Recreated, e.Recreate()
	}
	recreate := status == StatusSuboptimal

	marker, err := e.markers.get(imageIndex)
	if err != nil {
		return 0, errors.Wrap(err, "draw frame")
	}

	// The slot's own gate was already waited on above.
	if marker != nil && marker != slot.gate {
		err = e.waitGate(marker)
		if err != nil {
			return 0, errors.Wrapf(err, "draw frame: wait for image %d", imageIndex)
		}
	}
	e.markers.set(imageIndex, slot.gate)

	err = slot.rearm()
	if err != nil {
		return 0, errors.Wrapf(err, "draw frame: reset frame slot %d", e.currentFrame)
	}

	err = e.device.Submit(imageIndex, slot.imageAvailable, slot.renderFinished, slot.gate)
	if err != nil {
		return 0, errors.Wrapf(err, "draw frame: submit image %d", imageIndex)
	}

	status, err = e.device.Present(imageIndex, slot.renderFinished)
	if err != nil {
		return 0, errors.Wrapf(err, "draw frame: present image %d", imageIndex)
	}
	recreate = recreate || status != StatusOK || events.Resized

	// The submission above armed this slot, so it rotates even if the swapchain is rebuilt.
	e.currentFrame = (e.currentFrame + 1) % len(e.slots)
	e.stats.presented(hrtime.Since(start))

	if recreate {
		return PresentedAndRecreated, e.Recreate()
	}

	return Presented, nil
}

// Recreate rebuilds the swapchain resources and forgets which frames last used each image.
func (e *Engine) Recreate() error {
	imageCount, err := e.recreator.Recreate()
	if err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}

	e.markers.reset(imageCount)
	e.stats.stats.Recreations++

	return nil
}

func (e *Engine) waitGate(gate Gate) error {
	e.stats.stats.GateWaits++
	return gate.Wait(e.timeout)
}

// CurrentFrame is the index of the frame slot the next DrawFrame will use.
func (e *Engine) CurrentFrame() int {
	return e.currentFrame
}

func (e *Engine) FramesInFlight() int {
	return len(e.slots)
}

func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Close waits for the device to finish all outstanding work and destroys the frame slots.
// Calling Close more than once is a no-op.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	err := e.device.WaitIdle()
	e.destroySlots()

	return errors.Wrap(err, "close frame engine: wait device idle")
}

func (e *Engine) destroySlots() {
	for _, slot := range e.slots {
		slot.destroy()
	}
	e.slots = nil
}
