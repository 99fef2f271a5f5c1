// Package window owns the SDL window and turns its event stream into the explicit
// per-frame events the frame engine consumes.
package window

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/frames"
	"github.com/veandco/go-sdl2/sdl"
)

var _ frames.Surface = (*Window)(nil)

type Window struct {
	window *sdl.Window

	closed    bool
	minimized bool
	resized   bool
	verbose   bool
}

func Open(title string, width, height int, verbose bool) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl video")
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	return &Window{window: window, verbose: verbose}, nil
}

// SDL exposes the underlying window for surface creation and instance extension queries.
func (w *Window) SDL() *sdl.Window {
	return w.window
}

func (w *Window) DrawableExtent() frames.Extent {
	width, height := w.window.VulkanGetDrawableSize()
	return frames.Extent{Width: int(width), Height: int(height)}
}

// PollEvents drains pending events without blocking and returns the notifications gathered
// since the previous call.
func (w *Window) PollEvents() frames.Events {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handleEvent(event)
	}

	return w.takeEvents()
}

// WaitEvents blocks until SDL delivers an event, then drains the rest of the queue.
func (w *Window) WaitEvents() error {
	if w.closed {
		return errors.Wrap(frames.ErrSurfaceClosed, "window closed")
	}

	event := sdl.WaitEvent()
	if event == nil {
		return errors.Wrap(sdl.GetError(), "wait for window event")
	}
	w.handleEvent(event)

	for event = sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handleEvent(event)
	}

	if w.closed {
		return errors.Wrap(frames.ErrSurfaceClosed, "window closed")
	}
	return nil
}

func (w *Window) handleEvent(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closed = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_MINIMIZED:
			w.minimized = true
		case sdl.WINDOWEVENT_RESTORED, sdl.WINDOWEVENT_MAXIMIZED:
			w.minimized = false
			w.resized = true
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			if w.verbose {
				log.Printf("window resized to %dx%d", e.Data1, e.Data2)
			}
			w.resized = true
		case sdl.WINDOWEVENT_CLOSE:
			w.closed = true
		}
	}
}

func (w *Window) takeEvents() frames.Events {
	events := frames.Events{Resized: w.resized}
	w.resized = false
	return events
}

func (w *Window) Closed() bool {
	return w.closed
}

// Minimized reports whether the window is iconified or has no drawable area.
func (w *Window) Minimized() bool {
	if w.minimized {
		return true
	}
	if w.window != nil && (w.window.GetFlags()&sdl.WINDOW_MINIMIZED) != 0 {
		return true
	}
	return false
}

func (w *Window) Destroy() {
	if w.window != nil {
		err := w.window.Destroy()
		if err != nil {
			log.Printf("destroy window: %v", err)
		}
		w.window = nil
	}
	sdl.Quit()
}
