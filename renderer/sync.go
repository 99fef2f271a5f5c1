package renderer

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/frames"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

var (
	_ frames.Device    = (*Renderer)(nil)
	_ frames.Swapchain = (*Swapchain)(nil)
)

type fenceGate struct {
	driver core1_0.CoreDeviceDriver
	fence  core1_0.Fence
}

func (g *fenceGate) Wait(timeout time.Duration) error {
	res, err := g.driver.WaitForFences(true, timeout, g.fence)
	if err != nil {
		return deviceError(err, res, "wait for fence")
	}
	switch res {
	case core1_0.VKSuccess:
		return nil
	case core1_0.VKTimeout:
		return errors.Wrapf(frames.ErrTimeout, "fence not signaled within %s", timeout)
	}
	return deviceError(errors.New("unexpected result"), res, "wait for fence")
}

func (g *fenceGate) Reset() error {
	res, err := g.driver.ResetFences(g.fence)
	if err != nil {
		return deviceError(err, res, "reset fence")
	}
	return nil
}

func (g *fenceGate) Destroy() {
	g.driver.DestroyFence(g.fence, nil)
}

type semaphoreSignal struct {
	driver    core1_0.CoreDeviceDriver
	semaphore core1_0.Semaphore
}

func (s *semaphoreSignal) Destroy() {
	s.driver.DestroySemaphore(s.semaphore, nil)
}

func (r *Renderer) CreateGate(signaled bool) (frames.Gate, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags = core1_0.FenceCreateSignaled
	}

	fence, _, err := r.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: flags,
	})
	if err != nil {
		return nil, err
	}

	return &fenceGate{driver: r.deviceDriver, fence: fence}, nil
}

func (r *Renderer) CreateSignal() (frames.Signal, error) {
	semaphore, _, err := r.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, err
	}

	return &semaphoreSignal{driver: r.deviceDriver, semaphore: semaphore}, nil
}

func (r *Renderer) AcquireNextImage(timeout time.Duration, imageAvailable frames.Signal) (int, frames.Status, error) {
	semaphore, err := asSemaphore(imageAvailable)
	if err != nil {
		return 0, frames.StatusOK, err
	}

	imageIndex, res, err := r.swapchainExtension.AcquireNextImage(r.swapchain.swapchain, timeout, &semaphore, nil)
	if err == nil && (res == core1_0.VKTimeout || res == core1_0.VKNotReady) {
		return 0, frames.StatusOK, errors.Wrapf(frames.ErrTimeout, "no swapchain image available within %s", timeout)
	}

	status, err := presentStatus(res, err, "acquire next image")
	if err != nil || status == frames.StatusOutOfDate {
		return 0, status, err
	}
	return imageIndex, status, nil
}

// Submit refreshes the image's uniform buffer, then queues its prerecorded command buffer.
func (r *Renderer) Submit(imageIndex int, wait frames.Signal, signal frames.Signal, gate frames.Gate) error {
	waitSemaphore, err := asSemaphore(wait)
	if err != nil {
		return err
	}

	signalSemaphore, err := asSemaphore(signal)
	if err != nil {
		return err
	}

	fence, err := asFence(gate)
	if err != nil {
		return err
	}

	if imageIndex < 0 || imageIndex >= len(r.swapchain.commandBuffers) {
		return errors.Mark(errors.Newf("no command buffer for image %d", imageIndex), frames.ErrDeviceLost)
	}

	err = r.updateUniformBuffer(imageIndex)
	if err != nil {
		return errors.Wrap(err, "update uniform buffer")
	}

	res, err := r.deviceDriver.QueueSubmit(r.graphicsQueue, &fence,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{waitSemaphore},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{r.swapchain.commandBuffers[imageIndex]},
			SignalSemaphores: []core1_0.Semaphore{signalSemaphore},
		},
	)
	if err != nil {
		return deviceError(err, res, "queue submit")
	}

	return nil
}

func (r *Renderer) Present(imageIndex int, wait frames.Signal) (frames.Status, error) {
	waitSemaphore, err := asSemaphore(wait)
	if err != nil {
		return frames.StatusOK, err
	}

	res, err := r.swapchainExtension.QueuePresent(r.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{waitSemaphore},
		Swapchains:     []khr_swapchain.Swapchain{r.swapchain.swapchain},
		ImageIndices:   []int{imageIndex},
	})
	return presentStatus(res, err, "queue present")
}

func (r *Renderer) WaitIdle() error {
	res, err := r.deviceDriver.DeviceWaitIdle()
	if err != nil {
		return deviceError(err, res, "device wait idle")
	}
	return nil
}

// presentStatus classifies the result of acquire or present. An out-of-date swapchain wins over
// whatever error the driver attached to it. Anything else outside success and suboptimal is fatal.
func presentStatus(res common.VkResult, err error, action string) (frames.Status, error) {
	if res == khr_swapchain.VKErrorOutOfDate {
		return frames.StatusOutOfDate, nil
	}
	if err != nil {
		return frames.StatusOK, deviceError(err, res, action)
	}

	switch res {
	case core1_0.VKSuccess:
		return frames.StatusOK, nil
	case khr_swapchain.VKSuboptimal:
		return frames.StatusSuboptimal, nil
	}
	return frames.StatusOK, deviceError(errors.New("unexpected result"), res, action)
}

// deviceError keeps the driver's message and result code and makes the error match
// frames.ErrDeviceLost.
func deviceError(err error, res common.VkResult, action string) error {
	return errors.Mark(errors.Wrapf(err, "%s: %s", action, res), frames.ErrDeviceLost)
}

func asSemaphore(signal frames.Signal) (core1_0.Semaphore, error) {
	s, ok := signal.(*semaphoreSignal)
	if !ok {
		return core1_0.Semaphore{}, errors.AssertionFailedf("signal %T was not created by this renderer", signal)
	}
	return s.semaphore, nil
}

func asFence(gate frames.Gate) (core1_0.Fence, error) {
	g, ok := gate.(*fenceGate)
	if !ok {
		return core1_0.Fence{}, errors.AssertionFailedf("gate %T was not created by this renderer", gate)
	}
	return g.fence, nil
}
