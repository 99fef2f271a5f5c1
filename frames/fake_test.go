package frames_test

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/frames"
)

// fakeDevice models a single in-order GPU queue that only makes progress when the CPU
// blocks on a gate or waits for idle. That is the slowest GPU the protocol must tolerate,
// and it makes every overlap deterministic.
type fakeDevice struct {
	gates   []*fakeGate
	signals []*fakeSignal
	queue   []*submission
	seq     int

	// acquire picks the image and status for the n-th acquisition (0-based).
	acquire  func(n int) (int, frames.Status, error)
	acquires int
	// present picks the status for the n-th presentation (0-based).
	present  func(n int) (frames.Status, error)
	presents int

	swapchain *fakeSwapchain

	failCreateGate int
	gateCreates    int

	waits      []waitRecord
	idleWaits  int
	violations []string
}

type waitRecord struct {
	gate    int
	blocked bool
}

type submission struct {
	seq   int
	image int
	gate  *fakeGate
	done  bool
}

type fakeGate struct {
	id        int
	device    *fakeDevice
	signaled  bool
	pending   *submission
	waited    bool
	destroyed bool
	// stall makes Wait report a timeout instead of completing work.
	stall bool
}

type fakeSignal struct {
	id        int
	destroyed bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{}
}

func (d *fakeDevice) violate(format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) CreateGate(signaled bool) (frames.Gate, error) {
	d.gateCreates++
	if d.failCreateGate > 0 && d.gateCreates == d.failCreateGate {
		return nil, errors.New("out of device memory")
	}

	gate := &fakeGate{id: len(d.gates), device: d, signaled: signaled, waited: signaled}
	d.gates = append(d.gates, gate)
	return gate, nil
}

func (d *fakeDevice) CreateSignal() (frames.Signal, error) {
	signal := &fakeSignal{id: len(d.signals)}
	d.signals = append(d.signals, signal)
	return signal, nil
}

func (d *fakeDevice) AcquireNextImage(timeout time.Duration, imageAvailable frames.Signal) (int, frames.Status, error) {
	n := d.acquires
	d.acquires++

	if imageAvailable.(*fakeSignal).destroyed {
		d.violate("acquire %d signals a destroyed semaphore", n)
	}

	if d.acquire != nil {
		return d.acquire(n)
	}
	return n % d.swapchain.imageCount, frames.StatusOK, nil
}

func (d *fakeDevice) Submit(image int, wait frames.Signal, signal frames.Signal, gate frames.Gate) error {
	g := gate.(*fakeGate)
	d.seq++

	if g.signaled {
		d.violate("submission %d uses gate %d while it is still signaled", d.seq, g.id)
	}
	if !g.waited {
		d.violate("submission %d reuses frame slot of gate %d without waiting on it", d.seq, g.id)
	}
	for _, sub := range d.queue {
		if sub.done {
			continue
		}
		if sub.image == image {
			d.violate("submission %d targets image %d while submission %d is unfinished", d.seq, image, sub.seq)
		}
		if sub.gate == g {
			d.violate("submission %d reuses gate %d while submission %d is unfinished", d.seq, g.id, sub.seq)
		}
	}
	if !d.swapchain.built {
		d.violate("submission %d against a destroyed swapchain", d.seq)
	}

	sub := &submission{seq: d.seq, image: image, gate: g}
	g.pending = sub
	g.waited = false
	d.queue = append(d.queue, sub)

	return nil
}

func (d *fakeDevice) Present(image int, wait frames.Signal) (frames.Status, error) {
	n := d.presents
	d.presents++

	if d.present != nil {
		return d.present(n)
	}
	return frames.StatusOK, nil
}

func (d *fakeDevice) WaitIdle() error {
	d.idleWaits++
	d.completeAll()
	return nil
}

func (d *fakeDevice) completeThrough(target *submission) {
	for _, sub := range d.queue {
		if sub.done {
			continue
		}

		sub.done = true
		if sub.gate.pending == sub {
			sub.gate.signaled = true
			sub.gate.pending = nil
		}

		if sub == target {
			break
		}
	}
}

func (d *fakeDevice) completeAll() {
	if len(d.queue) > 0 {
		d.completeThrough(d.queue[len(d.queue)-1])
	}
}

func (d *fakeDevice) unfinished() int {
	count := 0
	for _, sub := range d.queue {
		if !sub.done {
			count++
		}
	}
	return count
}

func (d *fakeDevice) blockingWaits() int {
	count := 0
	for _, wait := range d.waits {
		if wait.blocked {
			count++
		}
	}
	return count
}

func (g *fakeGate) Wait(timeout time.Duration) error {
	d := g.device
	if g.destroyed {
		d.violate("wait on destroyed gate %d", g.id)
	}

	blocked := !g.signaled
	d.waits = append(d.waits, waitRecord{gate: g.id, blocked: blocked})

	if blocked {
		if g.stall {
			return errors.Mark(errors.Newf("gate %d not signaled after %s", g.id, timeout), frames.ErrTimeout)
		}
		if g.pending == nil {
			return errors.Mark(errors.Newf("gate %d is armed with no pending work", g.id), frames.ErrTimeout)
		}
		d.completeThrough(g.pending)
	}

	g.waited = true
	return nil
}

func (g *fakeGate) Reset() error {
	if g.pending != nil && !g.pending.done {
		g.device.violate("reset of gate %d while submission %d is unfinished", g.id, g.pending.seq)
	}
	g.signaled = false
	return nil
}

func (g *fakeGate) Destroy() {
	if g.destroyed {
		g.device.violate("double destroy of gate %d", g.id)
	}
	g.destroyed = true
}

func (s *fakeSignal) Destroy() {
	s.destroyed = true
}

// fakeSwapchain counts the handles a real swapchain resource set would own: swapchain,
// render pass, pipeline layout and pipeline, plus a view, framebuffer and command buffer per image.
type fakeSwapchain struct {
	device *fakeDevice

	imageCount     int
	nextImageCount int
	extent         frames.Extent
	built          bool

	live     int
	builds   []frames.Extent
	destroys int
	failNext error
}

func newFakeSwapchain(device *fakeDevice, imageCount int, extent frames.Extent) *fakeSwapchain {
	swapchain := &fakeSwapchain{device: device, imageCount: imageCount}
	device.swapchain = swapchain

	err := swapchain.Build(extent)
	if err != nil {
		panic(err)
	}
	swapchain.builds = nil

	return swapchain
}

func handlesFor(imageCount int) int {
	return 4 + 3*imageCount
}

func (s *fakeSwapchain) Build(extent frames.Extent) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	if s.built {
		s.device.violate("swapchain rebuilt without destroying the previous one")
	}
	if extent.Empty() {
		s.device.violate("swapchain built with empty extent %v", extent)
	}

	if s.nextImageCount > 0 {
		s.imageCount = s.nextImageCount
	}
	s.extent = extent
	s.built = true
	s.live += handlesFor(s.imageCount)
	s.builds = append(s.builds, extent)

	return nil
}

func (s *fakeSwapchain) Destroy() {
	if !s.built {
		return
	}
	if n := s.device.unfinished(); n > 0 {
		s.device.violate("swapchain destroyed with %d unfinished submissions", n)
	}

	s.built = false
	s.live -= handlesFor(s.imageCount)
	s.destroys++
}

func (s *fakeSwapchain) ImageCount() int {
	return s.imageCount
}

func (s *fakeSwapchain) Extent() frames.Extent {
	return s.extent
}

type fakeSurface struct {
	extent frames.Extent
	waits  int
}

func (s *fakeSurface) DrawableExtent() frames.Extent {
	return s.extent
}

func (s *fakeSurface) WaitEvents() error {
	s.waits++
	return nil
}
