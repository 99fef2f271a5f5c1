package renderer

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

var requiredDeviceExtensions = []string{khr_swapchain.ExtensionName}

// queueFamilies names the families the renderer submits to and presents from.
type queueFamilies struct {
	graphics int
	present  int
}

func (q queueFamilies) unique() []int {
	if q.graphics == q.present {
		return []int{q.graphics}
	}
	return []int{q.graphics, q.present}
}

// selectQueueFamilies prefers one family that can both draw and present, so the swapchain
// images never need concurrent sharing. present[i] reports surface support of family i.
func selectQueueFamilies(families []*core1_0.QueueFamilyProperties, present []bool) (queueFamilies, bool) {
	graphics, presentOnly := -1, -1

	for i, family := range families {
		canDraw := family.QueueFlags&core1_0.QueueGraphics != 0
		canPresent := i < len(present) && present[i]

		if canDraw && canPresent {
			return queueFamilies{graphics: i, present: i}, true
		}
		if canDraw && graphics < 0 {
			graphics = i
		}
		if canPresent && presentOnly < 0 {
			presentOnly = i
		}
	}

	if graphics < 0 || presentOnly < 0 {
		return queueFamilies{}, false
	}
	return queueFamilies{graphics: graphics, present: presentOnly}, true
}

type swapchainSupport struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

func (r *Renderer) querySwapchainSupport(device core1_0.PhysicalDevice) (swapchainSupport, error) {
	var support swapchainSupport
	var err error

	support.Capabilities, _, err = r.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(r.surface, device)
	if err != nil {
		return support, err
	}

	support.Formats, _, err = r.surfaceExtension.GetPhysicalDeviceSurfaceFormats(r.surface, device)
	if err != nil {
		return support, err
	}

	support.PresentModes, _, err = r.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(r.surface, device)
	return support, err
}

// deviceCandidate is everything the renderer needs to know to decide whether a physical
// device can drive the window.
type deviceCandidate struct {
	name        string
	deviceType  core1_0.PhysicalDeviceType
	families    []*core1_0.QueueFamilyProperties
	present     []bool
	extensions  map[string]*core1_0.ExtensionProperties
	surface     swapchainSupport
	anisotropic bool
}

var deviceTypeRank = map[core1_0.PhysicalDeviceType]int{
	core1_0.PhysicalDeviceTypeDiscreteGPU:   4,
	core1_0.PhysicalDeviceTypeIntegratedGPU: 3,
	core1_0.PhysicalDeviceTypeVirtualGPU:    2,
	core1_0.PhysicalDeviceTypeCPU:           1,
}

// evaluate returns the families the candidate would run on and a score for ranking it
// against other devices. The error lists the first requirement it fails.
func (c deviceCandidate) evaluate() (queueFamilies, int, error) {
	families, ok := selectQueueFamilies(c.families, c.present)
	if !ok {
		return families, 0, errors.Newf("%s: no graphics and present queue families", c.name)
	}

	for _, extension := range requiredDeviceExtensions {
		if _, ok := c.extensions[extension]; !ok {
			return families, 0, errors.Newf("%s: missing %s", c.name, extension)
		}
	}

	if len(c.surface.Formats) == 0 || len(c.surface.PresentModes) == 0 {
		return families, 0, errors.Newf("%s: surface reports no formats or present modes", c.name)
	}

	if !c.anisotropic {
		return families, 0, errors.Newf("%s: no sampler anisotropy", c.name)
	}

	score := deviceTypeRank[c.deviceType] * 2
	if families.graphics == families.present {
		score++
	}
	return families, score, nil
}

func (r *Renderer) inspectDevice(device core1_0.PhysicalDevice) (deviceCandidate, error) {
	properties, err := r.instanceDriver.GetPhysicalDeviceProperties(device)
	if err != nil {
		return deviceCandidate{}, err
	}

	candidate := deviceCandidate{
		name:        properties.DriverName,
		deviceType:  properties.DriverType,
		families:    r.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device),
		anisotropic: r.instanceDriver.GetPhysicalDeviceFeatures(device).SamplerAnisotropy,
	}

	for i := range candidate.families {
		supported, _, err := r.surfaceExtension.GetPhysicalDeviceSurfaceSupport(r.surface, device, i)
		if err != nil {
			return candidate, err
		}
		candidate.present = append(candidate.present, supported)
	}

	candidate.extensions, _, err = r.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return candidate, err
	}

	if _, ok := candidate.extensions[khr_swapchain.ExtensionName]; ok {
		candidate.surface, err = r.querySwapchainSupport(device)
		if err != nil {
			return candidate, err
		}
	}

	return candidate, nil
}

func (r *Renderer) pickPhysicalDevice() error {
	physicalDevices, _, err := r.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	bestScore := -1
	var rejected []error

	for _, device := range physicalDevices {
		candidate, err := r.inspectDevice(device)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}

		families, score, err := candidate.evaluate()
		if err != nil {
			rejected = append(rejected, err)
			continue
		}

		if score > bestScore {
			bestScore = score
			r.physicalDevice = device
			r.queueFamilies = families
		}

		if r.cfg.Verbose {
			log.Printf("device %s: score %d", candidate.name, score)
		}
	}

	if !r.physicalDevice.Initialized() {
		return errors.WithHint(
			errors.Wrapf(errors.Join(rejected...), "none of %d physical devices can present to the window", len(physicalDevices)),
			"a device needs graphics and present queues, VK_KHR_swapchain and sampler anisotropy")
	}

	r.memoryProperties = r.instanceDriver.GetPhysicalDeviceMemoryProperties(r.physicalDevice)
	return nil
}

func (r *Renderer) createLogicalDevice() error {
	var queueCreateInfos []core1_0.DeviceQueueCreateInfo
	for _, family := range r.queueFamilies.unique() {
		queueCreateInfos = append(queueCreateInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensionNames := append([]string{}, requiredDeviceExtensions...)

	// Required on portability implementations such as MoltenVK.
	extensions, _, err := r.instanceDriver.EnumerateDeviceExtensionProperties(r.physicalDevice)
	if err != nil {
		return err
	}
	if _, ok := extensions[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	device, _, err := r.instanceDriver.CreateDevice(r.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueCreateInfos,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	r.deviceDriver, err = r.instanceDriver.BuildDeviceDriver(device)
	if err != nil {
		return err
	}

	r.graphicsQueue = r.deviceDriver.GetQueue(r.queueFamilies.graphics, 0)
	r.presentQueue = r.deviceDriver.GetQueue(r.queueFamilies.present, 0)
	return nil
}

// memoryTypeIndex picks the first memory type allowed by typeBits that has every flag in want.
func memoryTypeIndex(properties *core1_0.PhysicalDeviceMemoryProperties, typeBits uint32, want core1_0.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range properties.MemoryTypes {
		if typeBits&(1<<i) != 0 && memoryType.PropertyFlags&want == want {
			return i, nil
		}
	}

	return 0, errors.Newf("no memory type matches filter %b with properties %s", typeBits, want)
}

func (r *Renderer) allocate(requirements *core1_0.MemoryRequirements, want core1_0.MemoryPropertyFlags) (core1_0.DeviceMemory, error) {
	index, err := memoryTypeIndex(r.memoryProperties, requirements.MemoryTypeBits, want)
	if err != nil {
		return core1_0.DeviceMemory{}, err
	}

	memory, _, err := r.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: index,
	})
	return memory, err
}

func (r *Renderer) createCommandPool() error {
	var err error
	r.commandPool, _, err = r.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: r.queueFamilies.graphics,
	})
	return err
}
