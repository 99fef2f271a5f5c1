package frames_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/frames"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultExtent = frames.Extent{Width: 800, Height: 600}

func newTestEngine(t *testing.T, framesInFlight, imageCount int) (*frames.Engine, *fakeDevice, *fakeSwapchain, *fakeSurface) {
	t.Helper()

	device := newFakeDevice()
	swapchain := newFakeSwapchain(device, imageCount, defaultExtent)
	surface := &fakeSurface{extent: defaultExtent}

	engine, err := frames.NewEngine(device, swapchain, surface, frames.Options{
		FramesInFlight: framesInFlight,
		Timeout:        time.Second,
	})
	require.NoError(t, err)

	return engine, device, swapchain, surface
}

func drawFrames(t *testing.T, engine *frames.Engine, count int) {
	t.Helper()

	for i := 0; i < count; i++ {
		outcome, err := engine.DrawFrame(frames.Events{})
		require.NoError(t, err, "draw %d", i)
		require.Equal(t, frames.Presented, outcome, "draw %d", i)
	}
}

func TestDrawFrameThreeImagesTwoSlots(t *testing.T) {
	engine, device, _, _ := newTestEngine(t, 2, 3)

	drawFrames(t, engine, 7)

	require.Empty(t, device.violations)
	require.Equal(t, []waitRecord{
		{gate: 0, blocked: false}, // frame 0, slot 0 fresh
		{gate: 1, blocked: false}, // frame 1, slot 1 fresh
		{gate: 0, blocked: true},  // frame 2 waits on frame 0's slot
		{gate: 1, blocked: true},  // frame 3 waits on frame 1's slot
		{gate: 0, blocked: true},  // frame 3 reuses image 0, marked by slot 0
		{gate: 0, blocked: false}, // frame 4
		{gate: 1, blocked: true},  // frame 4 reuses image 1, marked by slot 1
		{gate: 1, blocked: false}, // frame 5
		{gate: 0, blocked: true},  // frame 5 reuses image 2, marked by slot 0
		{gate: 0, blocked: false}, // frame 6
		{gate: 1, blocked: true},  // frame 6 reuses image 0, marked by slot 1
	}, device.waits)
	require.Equal(t, 6, device.blockingWaits())

	stats := engine.Stats()
	assert.Equal(t, 7, stats.FramesPresented)
	assert.Equal(t, 11, stats.GateWaits)
	assert.Equal(t, 0, stats.Recreations)
	assert.Equal(t, 1, engine.CurrentFrame())
	assert.Equal(t, 7, device.seq)
}

func TestDrawFrameStaleAcquireAbandonsDraw(t *testing.T) {
	engine, device, swapchain, _ := newTestEngine(t, 2, 3)
	device.acquire = func(n int) (int, frames.Status, error) {
		if n == 3 {
			return 0, frames.StatusOutOfDate, nil
		}
		return n % 3, frames.StatusOK, nil
	}

	drawFrames(t, engine, 3)
	require.Equal(t, 1, engine.CurrentFrame())

	outcome, err := engine.DrawFrame(frames.Events{})
	require.NoError(t, err)
	require.Equal(t, frames.Recreated, outcome)
	require.Equal(t, 1, engine.CurrentFrame())
	require.Equal(t, 3, device.seq, "stale draw must not submit")
	require.Len(t, swapchain.builds, 1)
	require.Equal(t, 1, device.idleWaits)

	waitsBefore := len(device.waits)
	outcome, err = engine.DrawFrame(frames.Events{})
	require.NoError(t, err)
	require.Equal(t, frames.Presented, outcome)
	require.Equal(t, 0, engine.CurrentFrame())
	require.Len(t, swapchain.builds, 1)

	// Markers were cleared by the rebuild, so only the slot gate is waited on.
	require.Len(t, device.waits, waitsBefore+1)
	require.Empty(t, device.violations)
	require.Equal(t, 1, engine.Stats().Recreations)
	require.Equal(t, 4, engine.Stats().FramesPresented)
}

func TestDrawFrameRecreatesAfterPresent(t *testing.T) {
	cases := []struct {
		name    string
		acquire frames.Status
		present frames.Status
		events  frames.Events
	}{
		{name: "suboptimal acquire", acquire: frames.StatusSuboptimal, present: frames.StatusOK},
		{name: "suboptimal present", acquire: frames.StatusOK, present: frames.StatusSuboptimal},
		{name: "out of date present", acquire: frames.StatusOK, present: frames.StatusOutOfDate},
		{name: "resize requested", acquire: frames.StatusOK, present: frames.StatusOK, events: frames.Events{Resized: true}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			engine, device, swapchain, _ := newTestEngine(t, 2, 3)
			device.acquire = func(n int) (int, frames.Status, error) {
				return n % 3, c.acquire, nil
			}
			device.present = func(n int) (frames.Status, error) {
				return c.present, nil
			}

			outcome, err := engine.DrawFrame(c.events)
			require.NoError(t, err)
			require.Equal(t, frames.PresentedAndRecreated, outcome)
			require.Equal(t, 1, engine.CurrentFrame())
			require.Equal(t, 1, device.seq)
			require.Len(t, swapchain.builds, 1)
			require.Empty(t, device.violations)
		})
	}
}

func TestDrawFrameNoOverlapViolations(t *testing.T) {
	for framesInFlight := 1; framesInFlight <= 3; framesInFlight++ {
		for imageCount := 2; imageCount <= 4; imageCount++ {
			engine, device, _, _ := newTestEngine(t, framesInFlight, imageCount)

			random := rand.New(rand.NewSource(int64(framesInFlight*10 + imageCount)))
			device.acquire = func(n int) (int, frames.Status, error) {
				return random.Intn(imageCount), frames.StatusOK, nil
			}
			device.present = func(n int) (frames.Status, error) {
				if random.Intn(25) == 0 {
					return frames.StatusSuboptimal, nil
				}
				return frames.StatusOK, nil
			}

			for i := 0; i < 200; i++ {
				_, err := engine.DrawFrame(frames.Events{Resized: random.Intn(40) == 0})
				require.NoError(t, err)
			}

			require.Empty(t, device.violations, "N=%d M=%d", framesInFlight, imageCount)
		}
	}
}

func TestRepeatedRecreationKeepsResourceCount(t *testing.T) {
	engine, device, swapchain, _ := newTestEngine(t, 2, 3)
	drawFrames(t, engine, 2)

	for i := 0; i < 10; i++ {
		before := swapchain.live

		outcome, err := engine.DrawFrame(frames.Events{Resized: true})
		require.NoError(t, err)
		require.Equal(t, frames.PresentedAndRecreated, outcome)

		require.Equal(t, before, swapchain.live, "cycle %d", i)
	}

	require.Len(t, swapchain.builds, 10)
	require.Equal(t, 10, swapchain.destroys)
	require.Equal(t, 10, engine.Stats().Recreations)
	require.Empty(t, device.violations)
}

func TestRecreateResizesMarkers(t *testing.T) {
	engine, device, swapchain, _ := newTestEngine(t, 2, 2)
	drawFrames(t, engine, 2)

	swapchain.nextImageCount = 4
	require.NoError(t, engine.Recreate())
	require.Equal(t, 4, swapchain.ImageCount())

	device.acquire = func(n int) (int, frames.Status, error) {
		return 3, frames.StatusOK, nil
	}
	drawFrames(t, engine, 3)
	require.Empty(t, device.violations)
}

func TestDrawFrameImageOutOfRange(t *testing.T) {
	engine, device, _, _ := newTestEngine(t, 2, 3)
	device.acquire = func(n int) (int, frames.Status, error) {
		return 5, frames.StatusOK, nil
	}

	_, err := engine.DrawFrame(frames.Events{})
	require.Error(t, err)
	require.True(t, errors.Is(err, frames.ErrDeviceLost))
	require.Equal(t, 0, device.seq)
}

func TestDrawFrameFatalErrors(t *testing.T) {
	t.Run("acquire", func(t *testing.T) {
		engine, device, swapchain, _ := newTestEngine(t, 2, 3)
		device.acquire = func(n int) (int, frames.Status, error) {
			return 0, frames.StatusOK, errors.Mark(errors.New("VK_ERROR_DEVICE_LOST"), frames.ErrDeviceLost)
		}

		_, err := engine.DrawFrame(frames.Events{})
		require.Error(t, err)
		require.True(t, errors.Is(err, frames.ErrDeviceLost))
		require.Contains(t, err.Error(), "acquire image")
		require.Empty(t, swapchain.builds)
		require.Equal(t, 0, engine.CurrentFrame())
	})

	t.Run("present", func(t *testing.T) {
		engine, device, swapchain, _ := newTestEngine(t, 2, 3)
		device.present = func(n int) (frames.Status, error) {
			return frames.StatusOK, errors.Mark(errors.New("VK_ERROR_SURFACE_LOST"), frames.ErrDeviceLost)
		}

		_, err := engine.DrawFrame(frames.Events{})
		require.Error(t, err)
		require.True(t, errors.Is(err, frames.ErrDeviceLost))
		require.Contains(t, err.Error(), "present image 0")
		require.Empty(t, swapchain.builds)
	})

	t.Run("gate timeout", func(t *testing.T) {
		engine, device, _, _ := newTestEngine(t, 1, 3)
		drawFrames(t, engine, 1)
		device.gates[0].stall = true

		_, err := engine.DrawFrame(frames.Events{})
		require.Error(t, err)
		require.True(t, errors.Is(err, frames.ErrTimeout))
		require.False(t, errors.Is(err, frames.ErrDeviceLost))
	})
}

func TestCloseDestroysSlots(t *testing.T) {
	engine, device, _, _ := newTestEngine(t, 2, 3)
	drawFrames(t, engine, 3)

	require.NoError(t, engine.Close())
	require.Equal(t, 1, device.idleWaits)
	require.Equal(t, 0, device.unfinished())

	for _, gate := range device.gates {
		assert.True(t, gate.destroyed, "gate %d", gate.id)
	}
	for _, signal := range device.signals {
		assert.True(t, signal.destroyed, "signal %d", signal.id)
	}

	require.NoError(t, engine.Close())
	require.Equal(t, 1, device.idleWaits)

	_, err := engine.DrawFrame(frames.Events{})
	require.Error(t, err)
	require.Empty(t, device.violations)
}

func TestNewEngine(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		device := newFakeDevice()
		swapchain := newFakeSwapchain(device, 3, defaultExtent)

		engine, err := frames.NewEngine(device, swapchain, &fakeSurface{extent: defaultExtent}, frames.Options{})
		require.NoError(t, err)
		require.Equal(t, frames.MaxFramesInFlight, engine.FramesInFlight())
		require.Len(t, device.gates, frames.MaxFramesInFlight)
		require.Len(t, device.signals, 2*frames.MaxFramesInFlight)
	})

	t.Run("invalid frames in flight", func(t *testing.T) {
		device := newFakeDevice()
		swapchain := newFakeSwapchain(device, 3, defaultExtent)

		_, err := frames.NewEngine(device, swapchain, &fakeSurface{extent: defaultExtent}, frames.Options{FramesInFlight: -1})
		require.Error(t, err)
	})

	t.Run("partial failure cleans up", func(t *testing.T) {
		device := newFakeDevice()
		device.failCreateGate = 2
		swapchain := newFakeSwapchain(device, 3, defaultExtent)

		_, err := frames.NewEngine(device, swapchain, &fakeSurface{extent: defaultExtent}, frames.Options{FramesInFlight: 3})
		require.Error(t, err)
		require.Contains(t, err.Error(), "create frame slot 1")

		for _, gate := range device.gates {
			assert.True(t, gate.destroyed)
		}
		for _, signal := range device.signals {
			assert.True(t, signal.destroyed)
		}
	})
}

func TestEventsMerge(t *testing.T) {
	require.Equal(t, frames.Events{Resized: true}, frames.Events{Resized: true}.Merge(frames.Events{}))
	require.Equal(t, frames.Events{Resized: true}, frames.Events{}.Merge(frames.Events{Resized: true}))
	require.Equal(t, frames.Events{}, frames.Events{}.Merge(frames.Events{}))
}
