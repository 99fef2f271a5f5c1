package renderer

import (
	"log"
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/frames"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// Swapchain owns every resource whose lifetime is tied to the presentation surface. It is
// built and destroyed as a unit; nothing in it survives a rebuild.
type Swapchain struct {
	renderer *Renderer

	swapchain   khr_swapchain.Swapchain
	images      []core1_0.Image
	imageFormat core1_0.Format
	extent      core1_0.Extent2D
	presentMode khr_surface.PresentMode

	imageViews   []core1_0.ImageView
	framebuffers []core1_0.Framebuffer

	renderPass     core1_0.RenderPass
	pipelineLayout core1_0.PipelineLayout
	pipeline       core1_0.Pipeline

	commandBuffers []core1_0.CommandBuffer

	uniformBuffers       []core1_0.Buffer
	uniformBuffersMemory []core1_0.DeviceMemory
	descriptorPool       core1_0.DescriptorPool
	descriptorSets       []core1_0.DescriptorSet
}

// Build creates the swapchain for drawable and everything that depends on it. A partially
// built set is destroyed before the error is returned.
func (s *Swapchain) Build(drawable frames.Extent) error {
	if s.swapchain.Initialized() {
		return errors.New("swapchain is already built")
	}

	steps := []struct {
		phase string
		run   func() error
	}{
		{"create swapchain", func() error { return s.createSwapchain(drawable) }},
		{"create image views", s.createImageViews},
		{"create render pass", s.createRenderPass},
		{"create graphics pipeline", s.createGraphicsPipeline},
		{"create framebuffers", s.createFramebuffers},
		{"create uniform buffers", s.createUniformBuffers},
		{"create descriptor pool", s.createDescriptorPool},
		{"create descriptor sets", s.createDescriptorSets},
		{"record command buffers", s.createCommandBuffers},
	}

	for _, step := range steps {
		err := step.run()
		if err != nil {
			s.Destroy()
			return errors.Wrap(err, step.phase)
		}
	}

	log.Printf("swapchain built: %dx%d, %d images, %s", s.extent.Width, s.extent.Height, len(s.images), s.presentMode)
	return nil
}

func (s *Swapchain) ImageCount() int {
	return len(s.images)
}

func (s *Swapchain) Extent() frames.Extent {
	return frames.Extent{Width: s.extent.Width, Height: s.extent.Height}
}

// Destroy releases the resource set. The device must not be executing work that uses it.
func (s *Swapchain) Destroy() {
	driver := s.renderer.deviceDriver

	for _, framebuffer := range s.framebuffers {
		driver.DestroyFramebuffer(framebuffer, nil)
	}
	s.framebuffers = nil

	if len(s.commandBuffers) > 0 {
		driver.FreeCommandBuffers(s.commandBuffers...)
		s.commandBuffers = nil
	}

	if s.pipeline.Initialized() {
		driver.DestroyPipeline(s.pipeline, nil)
		s.pipeline = core1_0.Pipeline{}
	}

	if s.pipelineLayout.Initialized() {
		driver.DestroyPipelineLayout(s.pipelineLayout, nil)
		s.pipelineLayout = core1_0.PipelineLayout{}
	}

	if s.renderPass.Initialized() {
		driver.DestroyRenderPass(s.renderPass, nil)
		s.renderPass = core1_0.RenderPass{}
	}

	for _, imageView := range s.imageViews {
		driver.DestroyImageView(imageView, nil)
	}
	s.imageViews = nil

	if s.swapchain.Initialized() {
		s.renderer.swapchainExtension.DestroySwapchain(s.swapchain, nil)
		s.swapchain = khr_swapchain.Swapchain{}
	}
	s.images = nil

	for _, buffer := range s.uniformBuffers {
		driver.DestroyBuffer(buffer, nil)
	}
	s.uniformBuffers = nil

	for _, memory := range s.uniformBuffersMemory {
		driver.FreeMemory(memory, nil)
	}
	s.uniformBuffersMemory = nil

	// Descriptor sets are freed with their pool.
	if s.descriptorPool.Initialized() {
		driver.DestroyDescriptorPool(s.descriptorPool, nil)
		s.descriptorPool = core1_0.DescriptorPool{}
	}
	s.descriptorSets = nil
}

func (s *Swapchain) createSwapchain(drawable frames.Extent) error {
	r := s.renderer

	swapchainSupport, err := r.querySwapchainSupport(r.physicalDevice)
	if err != nil {
		return err
	}
	if len(swapchainSupport.Formats) == 0 {
		return errors.New("surface reports no formats")
	}

	surfaceFormat := chooseSwapSurfaceFormat(swapchainSupport.Formats)
	presentMode := chooseSwapPresentMode(swapchainSupport.PresentModes, r.cfg.VSync)
	extent := chooseSwapExtent(swapchainSupport.Capabilities, drawable)
	imageCount := chooseImageCount(swapchainSupport.Capabilities)

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	families := r.queueFamilies.unique()
	if len(families) > 1 {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = families
	}

	swapchain, _, err := r.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: r.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   swapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return err
	}

	s.swapchain = swapchain
	s.extent = extent
	s.imageFormat = surfaceFormat.Format
	s.presentMode = presentMode

	return nil
}

func (s *Swapchain) createImageViews() error {
	r := s.renderer

	images, _, err := r.swapchainExtension.GetSwapchainImages(s.swapchain)
	if err != nil {
		return err
	}
	s.images = images

	for _, image := range images {
		view, err := r.createImageView(image, s.imageFormat, 1)
		if err != nil {
			return err
		}

		s.imageViews = append(s.imageViews, view)
	}

	return nil
}

func (s *Swapchain) createFramebuffers() error {
	for _, imageView := range s.imageViews {
		framebuffer, _, err := s.renderer.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: s.renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				imageView,
			},
			Width:  s.extent.Width,
			Height: s.extent.Height,
		})
		if err != nil {
			return err
		}

		s.framebuffers = append(s.framebuffers, framebuffer)
	}

	return nil
}

func (s *Swapchain) createUniformBuffers() error {
	bufferSize := int(unsafe.Sizeof(UniformBufferObject{}))

	for i := 0; i < len(s.images); i++ {
		buffer, memory, err := s.renderer.createBuffer(bufferSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if buffer.Initialized() {
			s.uniformBuffers = append(s.uniformBuffers, buffer)
		}
		if memory.Initialized() {
			s.uniformBuffersMemory = append(s.uniformBuffersMemory, memory)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Swapchain) createDescriptorPool() error {
	var err error
	s.descriptorPool, _, err = s.renderer.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: len(s.images),
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: len(s.images),
			},
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: len(s.images),
			},
		},
	})
	return err
}

func (s *Swapchain) createDescriptorSets() error {
	r := s.renderer

	var allocLayouts []core1_0.DescriptorSetLayout
	for i := 0; i < len(s.images); i++ {
		allocLayouts = append(allocLayouts, r.descriptorSetLayout)
	}

	var err error
	s.descriptorSets, _, err = r.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: s.descriptorPool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return err
	}

	for i := 0; i < len(s.images); i++ {
		err = r.deviceDriver.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
			{
				DstSet:          s.descriptorSets[i],
				DstBinding:      0,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeUniformBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: s.uniformBuffers[i],
						Offset: 0,
						Range:  int(unsafe.Sizeof(UniformBufferObject{})),
					},
				},
			},
			{
				DstSet:          s.descriptorSets[i],
				DstBinding:      1,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						ImageView:   r.textureImageView,
						Sampler:     r.textureSampler,
						ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
					},
				},
			},
		}, nil)
		if err != nil {
			return errors.Wrapf(err, "update descriptor set %d", i)
		}
	}

	return nil
}

func chooseSwapSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

// chooseSwapPresentMode prefers mailbox when vsync is off. FIFO is the only mode every
// implementation must support.
func chooseSwapPresentMode(availablePresentModes []khr_surface.PresentMode, vsync bool) khr_surface.PresentMode {
	if vsync {
		return khr_surface.PresentModeFIFO
	}

	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// undefinedExtent is the width a surface reports when the window system leaves the extent to
// the application. Drivers hand back 0xFFFFFFFF, which arrives here unsigned.
const undefinedExtent = math.MaxUint32

// chooseSwapExtent uses the surface's current extent unless the window system leaves it to
// the application.
func chooseSwapExtent(capabilities *khr_surface.SurfaceCapabilities, drawable frames.Extent) core1_0.Extent2D {
	width := capabilities.CurrentExtent.Width
	if width != undefinedExtent && width != -1 {
		return capabilities.CurrentExtent
	}

	width = clamp(drawable.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width)
	height := clamp(drawable.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height)

	return core1_0.Extent2D{Width: width, Height: height}
}

// chooseImageCount asks for one image more than the minimum so acquisition rarely waits on
// the presentation engine. A maximum of zero means unbounded.
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
