package renderer

import (
	"bytes"
	"encoding/binary"
	"log"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/assets"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// upload records every bootstrap transfer into one command buffer and submits it once.
// Staging buffers live until the submission's fence signals.
type upload struct {
	r        *Renderer
	commands core1_0.CommandBuffer
	staging  []stagedBuffer

	submitted bool
	finished  bool
}

type stagedBuffer struct {
	buffer core1_0.Buffer
	memory core1_0.DeviceMemory
}

// uploadAssets moves the mesh and texture into device-local memory. Whatever it created is
// owned by the renderer even on failure, so Close releases it.
func (r *Renderer) uploadAssets(loaded *assets.Assets) error {
	u, err := r.beginUpload()
	if err != nil {
		return err
	}
	defer u.release()

	err = u.texture(loaded.Texture)
	if err != nil {
		return errors.Wrap(err, "texture")
	}

	r.vertexBuffer, r.vertexBufferMemory, err = u.buffer(loaded.Mesh.Vertices, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return errors.Wrap(err, "vertex buffer")
	}

	r.indexBuffer, r.indexBufferMemory, err = u.buffer(loaded.Mesh.Indices, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		return errors.Wrap(err, "index buffer")
	}
	r.indexCount = len(loaded.Mesh.Indices)

	return u.submit(r.cfg.FenceTimeout)
}

func (r *Renderer) beginUpload() (*upload, error) {
	buffers, _, err := r.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, err
	}

	u := &upload{r: r, commands: buffers[0]}
	_, err = r.deviceDriver.BeginCommandBuffer(u.commands, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		u.release()
		return nil, err
	}

	return u, nil
}

// stage copies data into a new host-visible buffer that lives as long as the upload.
func (u *upload) stage(data any) (core1_0.Buffer, int, error) {
	size := binary.Size(data)
	if size <= 0 {
		return core1_0.Buffer{}, 0, errors.Newf("cannot upload %T", data)
	}

	buffer, memory, err := u.r.createBuffer(size, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	u.staging = append(u.staging, stagedBuffer{buffer: buffer, memory: memory})
	if err != nil {
		return core1_0.Buffer{}, 0, errors.Wrap(err, "create staging buffer")
	}

	err = writeData(u.r.deviceDriver, memory, 0, data)
	if err != nil {
		return core1_0.Buffer{}, 0, errors.Wrap(err, "fill staging buffer")
	}

	return buffer, size, nil
}

// buffer records a copy of data into a new device-local buffer with the given usage.
func (u *upload) buffer(data any, usage core1_0.BufferUsageFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	staging, size, err := u.stage(data)
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	buffer, memory, err := u.r.createBuffer(size, core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return buffer, memory, err
	}

	err = u.r.deviceDriver.CmdCopyBuffer(u.commands, staging, buffer, core1_0.BufferCopy{Size: size})
	return buffer, memory, err
}

func (u *upload) submit(timeout time.Duration) error {
	driver := u.r.deviceDriver

	_, err := driver.EndCommandBuffer(u.commands)
	if err != nil {
		return err
	}

	gate, err := u.r.CreateGate(false)
	if err != nil {
		return err
	}
	defer gate.Destroy()

	fence, err := asFence(gate)
	if err != nil {
		return err
	}

	res, err := driver.QueueSubmit(u.r.graphicsQueue, &fence, core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{u.commands},
	})
	if err != nil {
		return deviceError(err, res, "submit uploads")
	}
	u.submitted = true

	err = gate.Wait(timeout)
	if err != nil {
		return err
	}
	u.finished = true
	return nil
}

// release frees the command buffer and staging memory. A submission that never signaled is
// drained first.
func (u *upload) release() {
	driver := u.r.deviceDriver

	if u.submitted && !u.finished {
		_, err := driver.QueueWaitIdle(u.r.graphicsQueue)
		if err != nil {
			log.Printf("drain uploads: %v", err)
		}
	}

	if u.commands.Initialized() {
		driver.FreeCommandBuffers(u.commands)
		u.commands = core1_0.CommandBuffer{}
	}

	for _, staged := range u.staging {
		if staged.buffer.Initialized() {
			driver.DestroyBuffer(staged.buffer, nil)
		}
		if staged.memory.Initialized() {
			driver.FreeMemory(staged.memory, nil)
		}
	}
	u.staging = nil
}

// createBuffer returns whatever it managed to create, so callers can release a partial buffer.
func (r *Renderer) createBuffer(size int, usage core1_0.BufferUsageFlags, want core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := r.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return core1_0.Buffer{}, core1_0.DeviceMemory{}, err
	}

	memory, err := r.allocate(r.deviceDriver.GetBufferMemoryRequirements(buffer), want)
	if err != nil {
		return buffer, core1_0.DeviceMemory{}, err
	}

	_, err = r.deviceDriver.BindBufferMemory(buffer, memory, 0)
	return buffer, memory, err
}

func writeData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset int, data any) error {
	size := binary.Size(data)

	memoryPtr, _, err := driver.MapMemory(memory, offset, size, 0)
	if err != nil {
		return err
	}
	defer driver.UnmapMemory(memory)

	buf := bytes.NewBuffer(make([]byte, 0, size))
	err = binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return err
	}

	copy(unsafe.Slice((*byte)(memoryPtr), size), buf.Bytes())
	return nil
}
