package renderer

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// UniformBufferObject matches the uniform block at binding 0 of the vertex shader.
type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// newUniformBufferObject spins the quad a quarter turn per second around Z, seen from above
// at an angle.
func newUniformBufferObject(elapsed time.Duration, extent core1_0.Extent2D) UniformBufferObject {
	// Wrap at a full turn so float32 keeps its precision on long runs.
	timePeriod := math.Mod(elapsed.Seconds(), 4.0)

	ubo := UniformBufferObject{}
	ubo.Model = mgl32.HomogRotate3DZ(float32(timePeriod * math.Pi / 2.0))
	ubo.View = mgl32.LookAtV(
		mgl32.Vec3{2, 2, 2},
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{0, 0, 1},
	)

	aspectRatio := float32(extent.Width) / float32(extent.Height)
	ubo.Proj = mgl32.Perspective(mgl32.DegToRad(45), aspectRatio, 0.1, 10.0)

	// GL clip space has Y up, Vulkan has it down.
	ubo.Proj[5] *= -1

	return ubo
}

func (r *Renderer) updateUniformBuffer(imageIndex int) error {
	ubo := newUniformBufferObject(hrtime.Since(r.startTime), r.swapchain.extent)
	return writeData(r.deviceDriver, r.swapchain.uniformBuffersMemory[imageIndex], 0, &ubo)
}
