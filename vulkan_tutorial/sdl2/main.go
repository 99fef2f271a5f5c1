package main

import (
	"context"
	"flag"
	"log"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/assets"
	"github.com/hellovulkan/hellovulkan/config"
	"github.com/hellovulkan/hellovulkan/frames"
	"github.com/hellovulkan/hellovulkan/renderer"
	"github.com/hellovulkan/hellovulkan/window"
)

func run(cfg config.Config) error {
	loaded, err := assets.Load(context.Background(), os.DirFS(cfg.ShaderDir))
	if err != nil {
		return errors.Wrap(err, "load assets")
	}

	win, err := window.Open(cfg.Title, cfg.Width, cfg.Height, cfg.Verbose)
	if err != nil {
		return err
	}
	defer win.Destroy()

	r, err := renderer.New(win, cfg, loaded)
	if err != nil {
		return err
	}
	defer r.Close()

	engine, err := frames.NewEngine(r, r.Swapchain(), win, frames.Options{
		FramesInFlight: cfg.FramesInFlight,
		Timeout:        cfg.FenceTimeout,
	})
	if err != nil {
		return errors.Wrap(err, "bootstrap: create frame engine")
	}
	defer func() {
		err := engine.Close()
		if err != nil {
			log.Printf("%+v", err)
		}

		stats := engine.Stats()
		log.Printf("presented %d frames, %d swapchain rebuilds, %s mean frame time", stats.FramesPresented, stats.Recreations, stats.FrameTime)
	}()

	err = mainLoop(cfg, win, engine)
	if errors.Is(err, frames.ErrSurfaceClosed) {
		return nil
	}
	return err
}

// eventSource is the window as the main loop sees it.
type eventSource interface {
	PollEvents() frames.Events
	WaitEvents() error
	Closed() bool
	Minimized() bool
	DrawableExtent() frames.Extent
}

type frameDrawer interface {
	DrawFrame(events frames.Events) (frames.Outcome, error)
	CurrentFrame() int
}

func mainLoop(cfg config.Config, win eventSource, engine frameDrawer) error {
	var pending frames.Events

	for {
		pending = pending.Merge(win.PollEvents())
		if win.Closed() {
			return nil
		}

		// Nothing can be presented to a minimized window. Sleep in the event queue until it
		// comes back. Events polled before the wait are kept for the next draw.
		if win.Minimized() || win.DrawableExtent().Empty() {
			err := win.WaitEvents()
			if err != nil {
				return err
			}
			continue
		}

		slot := engine.CurrentFrame()
		outcome, err := engine.DrawFrame(pending)
		if err != nil {
			return err
		}
		pending = frames.Events{}

		if cfg.Verbose && outcome != frames.Presented {
			log.Printf("frame slot %d: %s", slot, outcome)
		}
	}
}

func main() {
	runtime.LockOSThread()

	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	} else if err != nil {
		log.Fatalf("%+v\n", err)
	}

	err = run(cfg)
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
