package frames

import "github.com/cockroachdb/errors"

// markers records, per swapchain image, the gate of the frame slot that last targeted it.
// A nil entry means no frame has used the image since the swapchain was built.
type markers []Gate

func (m *markers) reset(imageCount int) {
	*m = make(markers, imageCount)
}

func (m markers) get(image int) (Gate, error) {
	if image < 0 || image >= len(m) {
		return nil, errors.Mark(
			errors.Newf("image index %d out of range for %d swapchain images", image, len(m)),
			ErrDeviceLost)
	}

	return m[image], nil
}

func (m markers) set(image int, gate Gate) {
	m[image] = gate
}
