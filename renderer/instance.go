package renderer

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

func (r *Renderer) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    r.cfg.Title,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	sdlExtensions := r.window.SDL().VulkanGetInstanceExtensions()
	extensions, _, err := r.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerate instance extensions")
	}

	for _, ext := range sdlExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("sdl requires missing instance extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if r.cfg.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if r.cfg.Validation {
		layers, _, err := r.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "enumerate instance layers")
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.WithHint(
					errors.Newf("validation layer %s not available", layer),
					"install the LunarG Vulkan SDK or run with -validation=false")
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		// Covers messages from instance creation and destruction.
		instanceOptions.Next = r.debugMessengerOptions()
	}

	instance, _, err := r.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return err
	}

	r.instanceDriver, err = r.globalDriver.BuildInstanceDriver(instance)
	return err
}

func (r *Renderer) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebug,
	}
}

func (r *Renderer) setupDebugMessenger() error {
	if !r.cfg.Validation {
		return nil
	}

	var err error
	r.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(r.instanceDriver)
	r.debugMessenger, _, err = r.debugDriver.CreateDebugUtilsMessenger(nil, r.debugMessengerOptions())
	return err
}

func (r *Renderer) createSurface() error {
	r.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(r.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(r.instanceDriver.Instance(), r.surfaceExtension, r.window.SDL())
	if err != nil {
		return err
	}

	r.surface = surface
	return nil
}

func logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	log.Printf("[%s %s] - %s", severity, msgType, data.Message)
	return false
}
