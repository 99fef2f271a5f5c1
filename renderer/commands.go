package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// createCommandBuffers records one command buffer per swapchain image. The recordings are
// never changed afterwards; per-frame data reaches the GPU through the uniform buffers.
func (s *Swapchain) createCommandBuffers() error {
	r := s.renderer

	buffers, _, err := r.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: len(s.images),
	})
	if err != nil {
		return err
	}
	s.commandBuffers = buffers

	for bufferIdx, buffer := range buffers {
		err = s.recordCommandBuffer(buffer, bufferIdx)
		if err != nil {
			return errors.Wrapf(err, "command buffer %d", bufferIdx)
		}
	}

	return nil
}

func (s *Swapchain) recordCommandBuffer(buffer core1_0.CommandBuffer, imageIndex int) error {
	driver := s.renderer.deviceDriver

	_, err := driver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return err
	}

	err = driver.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  s.renderPass,
			Framebuffer: s.framebuffers[imageIndex],
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: s.extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{0, 0, 0, 1},
			},
		})
	if err != nil {
		return err
	}

	driver.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, s.pipeline)
	driver.CmdBindVertexBuffers(buffer, 0, []core1_0.Buffer{s.renderer.vertexBuffer}, []int{0})
	driver.CmdBindIndexBuffer(buffer, s.renderer.indexBuffer, 0, core1_0.IndexTypeUInt32)
	driver.CmdBindDescriptorSets(buffer, core1_0.PipelineBindPointGraphics, s.pipelineLayout, 0, []core1_0.DescriptorSet{
		s.descriptorSets[imageIndex],
	}, nil)
	driver.CmdDrawIndexed(buffer, s.renderer.indexCount, 1, 0, 0, 0)
	driver.CmdEndRenderPass(buffer)

	_, err = driver.EndCommandBuffer(buffer)
	return err
}
