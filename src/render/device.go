package render

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
)

// SwapchainExtension is required on every device that presents.
const SwapchainExtension = "VK_KHR_swapchain"

// RequiredFeatures are the core features every device must expose in strict mode.
func RequiredFeatures() driver.Features {
	return driver.Features{
		GeometryShader:           true,
		DualSrcBlend:             true,
		LogicOp:                  true,
		DepthClamp:               true,
		SampleRateShading:        true,
		FragmentStoresAndAtomics: true,
	}
}

// DeviceRequirements is what a physical device must offer to be picked.
type DeviceRequirements struct {
	Extensions []ExtensionEntry
	Features   driver.Features
	// Strict skips devices lacking Features instead of warning.
	Strict bool
	// Surface, when set, must offer at least one format and one present mode.
	Surface vulkan.Surface
}

// Selection is the picked device and what device creation must enable.
type Selection struct {
	GPU        vulkan.PhysicalDevice
	Properties driver.DeviceProperties
	Features   driver.Features
	Extensions []string
	// Chain is linked into VkDeviceCreateInfo in this order.
	Chain []driver.Feature
	Score int
}

type DeviceSelector struct {
	drv driver.PhysicalDeviceDriver
	log *slog.Logger
}

func NewDeviceSelector(drv driver.PhysicalDeviceDriver, log *slog.Logger) *DeviceSelector {
	return &DeviceSelector{drv: drv, log: orDefault(log)}
}

// DeviceScore ranks a device type; higher is better.
func DeviceScore(kind vulkan.PhysicalDeviceType) int {
	switch kind {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 400
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 300
	case vulkan.PhysicalDeviceTypeVirtualGpu:
		return 200
	case vulkan.PhysicalDeviceTypeCpu:
		return 100
	}
	return 0
}

// Pick returns the best scored device that passes every mandatory filter.
// Ties keep the first enumerated device.
func (s *DeviceSelector) Pick(instance vulkan.Instance, req DeviceRequirements) (*Selection, error) {
	gpus, ret := s.drv.PhysicalDevices(instance)
	if err := Check(ret, "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}

	var best *Selection
	var rejected []string
	for _, gpu := range gpus {
		props := s.drv.DeviceProperties(gpu)
		sel, reason, err := s.evaluate(gpu, props, req)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			s.log.Debug("physical device rejected", slog.String("device", props.Name), slog.String("reason", reason))
			rejected = append(rejected, fmt.Sprintf("%s: %s", props.Name, reason))
			continue
		}
		if best == nil || sel.Score > best.Score {
			best = sel
		}
	}

	if best == nil {
		if len(rejected) == 0 {
			return nil, errors.Wrap(ErrNoSuitableDevice, "no physical devices enumerated")
		}
		return nil, errors.Wrapf(ErrNoSuitableDevice, "tried %s", strings.Join(rejected, "; "))
	}
	s.log.Info("picked physical device",
		slog.String("device", best.Properties.Name),
		slog.Int("score", best.Score),
		slog.Any("extensions", best.Extensions),
		slog.Any("chain", driver.ChainNames(best.Chain)))
	return best, nil
}

// evaluate returns a non-empty reason when gpu must be skipped.
func (s *DeviceSelector) evaluate(gpu vulkan.PhysicalDevice, props driver.DeviceProperties, req DeviceRequirements) (*Selection, string, error) {
	available, ret := s.drv.DeviceExtensions(gpu)
	if err := Check(ret, "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, "", err
	}
	filtered, err := FilterExtensions(available, req.Extensions, props.APIVersion)
	if err != nil {
		if errors.Is(err, ErrExtensionNotPresent) {
			return nil, err.Error(), nil
		}
		return nil, "", err
	}

	if req.Surface != vulkan.NullSurface {
		formats, ret := s.drv.SurfaceFormats(gpu, req.Surface)
		if err := Check(ret, "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
			return nil, "", err
		}
		modes, ret := s.drv.SurfacePresentModes(gpu, req.Surface)
		if err := Check(ret, "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
			return nil, "", err
		}
		if len(formats) == 0 || len(modes) == 0 {
			return nil, "no surface format or present mode", nil
		}
	}

	features := s.drv.DeviceFeatures(gpu)
	if missing := features.Missing(req.Features); len(missing) > 0 {
		if req.Strict {
			return nil, "missing features " + strings.Join(missing, ", "), nil
		}
		s.log.Warn("physical device lacks features", slog.String("device", props.Name), slog.Any("missing", missing))
	}

	return &Selection{
		GPU:        gpu,
		Properties: props,
		Features:   features,
		Extensions: filtered.Names,
		Chain:      filtered.Features,
		Score:      DeviceScore(props.Type),
	}, "", nil
}

var depthCandidates = []vulkan.Format{
	vulkan.FormatD32SfloatS8Uint,
	vulkan.FormatD24UnormS8Uint,
	vulkan.FormatD32Sfloat,
}

// DepthFormat returns the first depth format usable as an optimal-tiling attachment.
func DepthFormat(drv driver.PhysicalDeviceDriver, gpu vulkan.PhysicalDevice) (vulkan.Format, bool) {
	for _, format := range depthCandidates {
		flags := drv.FormatFeatures(gpu, format)
		if flags&vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit) != 0 {
			return format, true
		}
	}
	return vulkan.FormatUndefined, false
}
