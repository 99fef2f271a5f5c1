// Package renderer brings up Vulkan on an SDL window and draws a textured quad. It is the
// Vulkan backend of the frame engine: fences become gates, semaphores become signals, and
// the surface-bound resources are rebuilt as one unit through the Swapchain type.
package renderer

import (
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hellovulkan/hellovulkan/assets"
	"github.com/hellovulkan/hellovulkan/config"
	"github.com/hellovulkan/hellovulkan/window"
	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type Renderer struct {
	window *window.Window
	cfg    config.Config

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver      ext_debug_utils.ExtensionDriver
	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	physicalDevice   core1_0.PhysicalDevice
	queueFamilies    queueFamilies
	memoryProperties *core1_0.PhysicalDeviceMemoryProperties

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	swapchainExtension khr_swapchain.ExtensionDriver
	swapchain          *Swapchain

	descriptorSetLayout core1_0.DescriptorSetLayout
	pipelineCache       core1_0.PipelineCache
	vertexShader        []uint32
	fragmentShader      []uint32

	commandPool core1_0.CommandPool

	indexCount         int
	vertexBuffer       core1_0.Buffer
	vertexBufferMemory core1_0.DeviceMemory
	indexBuffer        core1_0.Buffer
	indexBufferMemory  core1_0.DeviceMemory

	mipLevels          int
	textureImage       core1_0.Image
	textureImageMemory core1_0.DeviceMemory
	textureImageView   core1_0.ImageView
	textureSampler     core1_0.Sampler

	startTime time.Duration
}

// New creates every Vulkan object the application needs and builds the first swapchain at
// the window's drawable size. On failure everything created so far is destroyed.
func New(win *window.Window, cfg config.Config, loaded *assets.Assets) (*Renderer, error) {
	r := &Renderer{
		window:         win,
		cfg:            cfg,
		vertexShader:   loaded.VertexShader,
		fragmentShader: loaded.FragmentShader,
	}

	err := r.init(loaded)
	if err != nil {
		r.Close()
		return nil, errors.Wrap(err, "bootstrap")
	}

	return r, nil
}

func (r *Renderer) init(loaded *assets.Assets) error {
	var err error
	r.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return errors.Wrap(err, "load vulkan driver")
	}

	steps := []struct {
		phase string
		run   func() error
	}{
		{"create instance", r.createInstance},
		{"set up debug messenger", r.setupDebugMessenger},
		{"create surface", r.createSurface},
		{"pick physical device", r.pickPhysicalDevice},
		{"create logical device", r.createLogicalDevice},
		{"create descriptor set layout", r.createDescriptorSetLayout},
		{"create pipeline cache", r.createPipelineCache},
		{"create command pool", r.createCommandPool},
		{"upload assets", func() error { return r.uploadAssets(loaded) }},
		{"create texture view", r.createTextureImageView},
		{"create texture sampler", r.createSampler},
		{"build swapchain", r.createSwapchain},
	}

	for _, step := range steps {
		err = step.run()
		if err != nil {
			return errors.Wrap(err, step.phase)
		}
	}

	r.startTime = hrtime.Now()

	if r.cfg.Verbose {
		properties, err := r.instanceDriver.GetPhysicalDeviceProperties(r.physicalDevice)
		if err == nil {
			log.Printf("renderer ready on %s", properties.DriverName)
		}
	}

	return nil
}

func (r *Renderer) createSwapchain() error {
	r.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(r.deviceDriver)
	r.swapchain = &Swapchain{renderer: r}

	return r.swapchain.Build(r.window.DrawableExtent())
}

// Swapchain returns the surface-bound resource set for the frame engine to rebuild.
func (r *Renderer) Swapchain() *Swapchain {
	return r.swapchain
}

// Close destroys everything New created, in reverse order, after the device goes idle. The
// frame engine's gates and signals must already be destroyed.
func (r *Renderer) Close() {
	if r.deviceDriver != nil {
		_, err := r.deviceDriver.DeviceWaitIdle()
		if err != nil {
			log.Printf("renderer close: wait device idle: %v", err)
		}
	}

	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}

	if r.textureSampler.Initialized() {
		r.deviceDriver.DestroySampler(r.textureSampler, nil)
		r.textureSampler = core1_0.Sampler{}
	}

	if r.textureImageView.Initialized() {
		r.deviceDriver.DestroyImageView(r.textureImageView, nil)
		r.textureImageView = core1_0.ImageView{}
	}

	if r.textureImage.Initialized() {
		r.deviceDriver.DestroyImage(r.textureImage, nil)
		r.textureImage = core1_0.Image{}
	}

	if r.textureImageMemory.Initialized() {
		r.deviceDriver.FreeMemory(r.textureImageMemory, nil)
		r.textureImageMemory = core1_0.DeviceMemory{}
	}

	if r.indexBuffer.Initialized() {
		r.deviceDriver.DestroyBuffer(r.indexBuffer, nil)
		r.indexBuffer = core1_0.Buffer{}
	}

	if r.indexBufferMemory.Initialized() {
		r.deviceDriver.FreeMemory(r.indexBufferMemory, nil)
		r.indexBufferMemory = core1_0.DeviceMemory{}
	}

	if r.vertexBuffer.Initialized() {
		r.deviceDriver.DestroyBuffer(r.vertexBuffer, nil)
		r.vertexBuffer = core1_0.Buffer{}
	}

	if r.vertexBufferMemory.Initialized() {
		r.deviceDriver.FreeMemory(r.vertexBufferMemory, nil)
		r.vertexBufferMemory = core1_0.DeviceMemory{}
	}

	if r.commandPool.Initialized() {
		r.deviceDriver.DestroyCommandPool(r.commandPool, nil)
		r.commandPool = core1_0.CommandPool{}
	}

	if r.pipelineCache.Initialized() {
		err := r.savePipelineCache()
		if err != nil {
			log.Printf("renderer close: %v", err)
		}
		r.deviceDriver.DestroyPipelineCache(r.pipelineCache, nil)
		r.pipelineCache = core1_0.PipelineCache{}
	}

	if r.descriptorSetLayout.Initialized() {
		r.deviceDriver.DestroyDescriptorSetLayout(r.descriptorSetLayout, nil)
		r.descriptorSetLayout = core1_0.DescriptorSetLayout{}
	}

	if r.deviceDriver != nil {
		r.deviceDriver.DestroyDevice(nil)
		r.deviceDriver = nil
	}

	if r.debugMessenger.Initialized() {
		r.debugDriver.DestroyDebugUtilsMessenger(r.debugMessenger, nil)
		r.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if r.surface.Initialized() {
		r.surfaceExtension.DestroySurface(r.surface, nil)
		r.surface = khr_surface.Surface{}
	}

	if r.instanceDriver != nil {
		r.instanceDriver.DestroyInstance(nil)
		r.instanceDriver = nil
	}
}
