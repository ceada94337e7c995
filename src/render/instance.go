package render

import (
	"strings"

	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
)

const PortabilityExtension = "VK_KHR_portability_enumeration"

// instanceSetup is the result of creating a VkInstance.
type instanceSetup struct {
	instance   vulkan.Instance
	extensions []string
	layers     []string
}

// createInstance enables the window's extensions, the debug channel's
// extensions and the portability extension when available.
func createInstance(drv driver.InstanceDriver, cfg Config, windowExtensions []string, log *slog.Logger) (instanceSetup, error) {
	var requested []ExtensionEntry
	for _, name := range windowExtensions {
		// glfw hands back NUL-terminated names.
		requested = append(requested, ExtensionEntry{Name: strings.TrimRight(name, "\x00")})
	}
	channel := DebugNone
	if cfg.Debug {
		channel = cfg.DebugChannel
	}
	requested = append(requested, DebugExtensions(channel)...)
	requested = append(requested, ExtensionEntry{Name: PortabilityExtension, Optional: true})

	available, ret := drv.InstanceExtensions()
	if err := Check(ret, "vkEnumerateInstanceExtensionProperties"); err != nil {
		return instanceSetup{}, err
	}
	exts, err := FilterExtensions(available, requested, 0)
	if err != nil {
		return instanceSetup{}, err
	}
	for _, name := range exts.Dropped {
		if name != PortabilityExtension {
			log.Warn("instance extension unavailable", slog.String("extension", name))
		}
	}

	var layers Filtered
	if cfg.Debug {
		availableLayers, ret := drv.InstanceLayers()
		if err := Check(ret, "vkEnumerateInstanceLayerProperties"); err != nil {
			return instanceSetup{}, err
		}
		layers, err = FilterLayers(availableLayers, []ExtensionEntry{{Name: ValidationLayer, Optional: true}})
		if err != nil {
			return instanceSetup{}, err
		}
		for _, name := range layers.Dropped {
			log.Warn("validation layer unavailable", slog.String("layer", name))
		}
	}

	portability := false
	for _, name := range exts.Names {
		if name == PortabilityExtension {
			portability = true
		}
	}

	instance, ret := drv.CreateInstance(driver.InstanceInfo{
		ApplicationName: cfg.ApplicationName,
		APIVersion:      cfg.APIVersion(),
		Extensions:      exts.Names,
		Layers:          layers.Names,
		Portability:     portability,
	})
	if err := Check(ret, "vkCreateInstance"); err != nil {
		return instanceSetup{}, err
	}
	log.Debug("instance created", slog.Any("extensions", exts.Names), slog.Any("layers", layers.Names))
	return instanceSetup{instance: instance, extensions: exts.Names, layers: layers.Names}, nil
}
