package frames

import "github.com/cockroachdb/errors"

// Recreator rebuilds the swapchain resources when they no longer match the surface.
type Recreator struct {
	surface   Surface
	device    Device
	swapchain Swapchain
}

func NewRecreator(surface Surface, device Device, swapchain Swapchain) *Recreator {
	return &Recreator{
		surface:   surface,
		device:    device,
		swapchain: swapchain,
	}
}

// Recreate blocks while the surface has no drawable area, waits for the device to go idle,
// then destroys and rebuilds the whole swapchain resource set at the current extent.
// It returns the image count of the new swapchain.
//
// The idle wait stalls all GPU work, not only work that touches the swapchain.
func (r *Recreator) Recreate() (int, error) {
	extent, err := r.waitForDrawable()
	if err != nil {
		return 0, errors.Wrap(err, "wait for drawable surface")
	}

	err = r.device.WaitIdle()
	if err != nil {
		return 0, errors.Wrap(err, "wait device idle")
	}

	r.swapchain.Destroy()

	err = r.swapchain.Build(extent)
	if err != nil {
		return 0, errors.Wrapf(err, "rebuild swapchain at %dx%d", extent.Width, extent.Height)
	}

	return r.swapchain.ImageCount(), nil
}

func (r *Recreator) waitForDrawable() (Extent, error) {
	extent := r.surface.DrawableExtent()
	for extent.Empty() {
		err := r.surface.WaitEvents()
		if err != nil {
			return extent, err
		}

		extent = r.surface.DrawableExtent()
	}

	return extent, nil
}
