package driver

import (
	"unsafe"

	"github.com/vulkan-go/vulkan"
)

// Feature is an extension feature structure chained into VkDeviceCreateInfo.
// The set of variants is closed; link builds the C structure in front of next.
type Feature interface {
	Name() string
	link(next unsafe.Pointer) unsafe.Pointer
}

type MultiviewFeatures struct {
	Multiview          bool
	GeometryShader     bool
	TessellationShader bool
}

func (MultiviewFeatures) Name() string { return "VkPhysicalDeviceMultiviewFeatures" }

func (f MultiviewFeatures) link(next unsafe.Pointer) unsafe.Pointer {
	s := vulkan.PhysicalDeviceMultiviewFeatures{
		SType:                       vulkan.StructureTypePhysicalDeviceMultiviewFeatures,
		PNext:                       next,
		Multiview:                   bool32(f.Multiview),
		MultiviewGeometryShader:     bool32(f.GeometryShader),
		MultiviewTessellationShader: bool32(f.TessellationShader),
	}
	ref, _ := s.PassRef()
	return unsafe.Pointer(ref)
}

type SamplerYcbcrFeatures struct {
	Conversion bool
}

func (SamplerYcbcrFeatures) Name() string { return "VkPhysicalDeviceSamplerYcbcrConversionFeatures" }

func (f SamplerYcbcrFeatures) link(next unsafe.Pointer) unsafe.Pointer {
	s := vulkan.PhysicalDeviceSamplerYcbcrConversionFeatures{
		SType:                  vulkan.StructureTypePhysicalDeviceSamplerYcbcrConversionFeatures,
		PNext:                  next,
		SamplerYcbcrConversion: bool32(f.Conversion),
	}
	ref, _ := s.PassRef()
	return unsafe.Pointer(ref)
}

// LinkChain links the features into a pNext chain. The first feature in the
// list is the head of the chain; some drivers are sensitive to this order.
func LinkChain(features []Feature) unsafe.Pointer {
	var next unsafe.Pointer
	for i := len(features) - 1; i >= 0; i-- {
		next = features[i].link(next)
	}
	return next
}

// ChainNames lists the structure names in chain order.
func ChainNames(features []Feature) []string {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = f.Name()
	}
	return names
}

func bool32(b bool) vulkan.Bool32 {
	if b {
		return vulkan.True
	}
	return vulkan.False
}
