// Package material builds descriptor set layouts, pipeline layouts and the
// blend/raster variants of a graphics pipeline on top of a render context.
package material

import (
	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver"
)

// ShaderStages is the stage mask every pattern binding is visible to.
const ShaderStages = vulkan.ShaderStageFlags(vulkan.ShaderStageVertexBit | vulkan.ShaderStageFragmentBit | vulkan.ShaderStageGeometryBit)

// ParsePattern turns a binding pattern into bindings. Each rune is one binding,
// numbered by position: 's' storage buffer, 'u' uniform buffer, 't' combined
// image sampler.
func ParsePattern(pattern string) ([]driver.Binding, error) {
	if pattern == "" {
		return nil, errors.New("empty binding pattern")
	}
	bindings := make([]driver.Binding, 0, len(pattern))
	for i, r := range pattern {
		var kind vulkan.DescriptorType
		switch r {
		case 's':
			kind = vulkan.DescriptorTypeStorageBuffer
		case 'u':
			kind = vulkan.DescriptorTypeUniformBuffer
		case 't':
			kind = vulkan.DescriptorTypeCombinedImageSampler
		default:
			return nil, errors.Newf("binding pattern %q: unknown binding %q at %d", pattern, r, i)
		}
		bindings = append(bindings, driver.Binding{
			Binding: uint32(len(bindings)),
			Type:    kind,
			Count:   1,
			Stages:  ShaderStages,
		})
	}
	return bindings, nil
}
