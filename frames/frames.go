// Package frames drives the per-frame acquire/submit/present protocol for a swapchain
// and rebuilds the swapchain when it stops matching its surface.
//
// The package never talks to a graphics API directly. A backend supplies gates (fences),
// signals (semaphores), image acquisition, submission and presentation through the Device
// interface, and the tied-lifetime swapchain resources through the Swapchain interface.
package frames

import "time"

//go:generate mockgen -destination mock_surface_test.go -package frames_test . Surface

const (
	// MaxFramesInFlight is the default number of frame slots.
	MaxFramesInFlight = 2

	// DefaultTimeout bounds every blocking wait the engine performs.
	DefaultTimeout = 5 * time.Second
)

type Extent struct {
	Width  int
	Height int
}

// Empty reports whether the extent has no drawable area, as happens while a window is minimized.
func (e Extent) Empty() bool {
	return e.Width == 0 || e.Height == 0
}

// Status is the non-error outcome of acquiring or presenting a swapchain image.
type Status int

const (
	StatusOK Status = iota
	// StatusSuboptimal means the swapchain still works but no longer matches the surface exactly.
	StatusSuboptimal
	// StatusOutOfDate means the swapchain can no longer be used with the surface.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	}
	return "unknown"
}

// Gate is a CPU-visible completion signal for submitted GPU work. A gate is either signaled
// or armed; Reset arms it and a submission signals it when the GPU finishes.
//
// Gates are compared by identity, so implementations should be pointer types.
type Gate interface {
	// Wait blocks until the gate is signaled. Expiry of the timeout returns an error matching ErrTimeout.
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

// Signal orders GPU work against other GPU work and is never observed by the CPU.
type Signal interface {
	Destroy()
}

// Device is the slice of the graphics backend the engine drives each frame.
type Device interface {
	CreateGate(signaled bool) (Gate, error)
	CreateSignal() (Signal, error)

	// AcquireNextImage returns the index of the next presentable image and arranges for
	// imageAvailable to be signaled once the image can be written. StatusOutOfDate is
	// reported through the status, not the error.
	AcquireNextImage(timeout time.Duration, imageAvailable Signal) (int, Status, error)

	// Submit queues the prerecorded work for image. The work waits on wait and signals both
	// signal and gate on completion.
	Submit(image int, wait Signal, signal Signal, gate Gate) error

	// Present queues image for presentation once wait is signaled.
	Present(image int, wait Signal) (Status, error)

	// WaitIdle blocks until the device has no outstanding work.
	WaitIdle() error
}

// Swapchain is the set of resources whose lifetime is tied to the presentation surface:
// swapchain, image views, render pass, pipeline, framebuffers and command recordings.
// It is always destroyed and rebuilt as a unit.
type Swapchain interface {
	Build(extent Extent) error
	Destroy()
	ImageCount() int
	Extent() Extent
}

// Surface is the window side of presentation.
type Surface interface {
	DrawableExtent() Extent
	// WaitEvents blocks until at least one window event has been processed. It returns an
	// error matching ErrSurfaceClosed if the window was closed while waiting.
	WaitEvents() error
}

// Events carries the window notifications that arrived since the previous draw.
type Events struct {
	Resized bool
}

// Merge combines notifications that arrived across several polls.
func (e Events) Merge(other Events) Events {
	return Events{Resized: e.Resized || other.Resized}
}

// Outcome describes what a DrawFrame call did.
type Outcome int

const (
	// Presented means the frame was submitted and queued for presentation.
	Presented Outcome = iota
	// PresentedAndRecreated means the frame was presented and the swapchain was then rebuilt.
	PresentedAndRecreated
	// Recreated means the swapchain was stale at acquisition; nothing was submitted.
	Recreated
)

func (o Outcome) String() string {
	switch o {
	case Presented:
		return "presented"
	case PresentedAndRecreated:
		return "presented and recreated"
	case Recreated:
		return "recreated"
	}
	return "unknown"
}

type Options struct {
	FramesInFlight int
	Timeout        time.Duration
}

func (o Options) withDefaults() Options {
	if o.FramesInFlight == 0 {
		o.FramesInFlight = MaxFramesInFlight
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}
