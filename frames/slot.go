package frames

import "github.com/cockroachdb/errors"

// frameSlot holds the synchronization primitives for one frame in flight.
type frameSlot struct {
	gate           Gate
	imageAvailable Signal
	renderFinished Signal
}

func newFrameSlot(device Device) (*frameSlot, error) {
	slot := &frameSlot{}

	var err error
	slot.imageAvailable, err = device.CreateSignal()
	if err != nil {
		return nil, errors.Wrap(err, "create image-available signal")
	}

	slot.renderFinished, err = device.CreateSignal()
	if err != nil {
		slot.destroy()
		return nil, errors.Wrap(err, "create render-finished signal")
	}

	// Signaled so the first wait on a fresh slot returns immediately.
	slot.gate, err = device.CreateGate(true)
	if err != nil {
		slot.destroy()
		return nil, errors.Wrap(err, "create frame gate")
	}

	return slot, nil
}

// rearm returns the gate to the armed state. It must run after the image marker wait and
// before the submission that will signal the gate.
func (s *frameSlot) rearm() error {
	return s.gate.Reset()
}

func (s *frameSlot) destroy() {
	if s.gate != nil {
		s.gate.Destroy()
		s.gate = nil
	}

	if s.renderFinished != nil {
		s.renderFinished.Destroy()
		s.renderFinished = nil
	}

	if s.imageAvailable != nil {
		s.imageAvailable.Destroy()
		s.imageAvailable = nil
	}
}
