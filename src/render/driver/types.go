package driver

import (
	"github.com/vulkan-go/vulkan"
)

// DeviceProperties is the part of VkPhysicalDeviceProperties the context cares about.
type DeviceProperties struct {
	Name              string
	Type              vulkan.PhysicalDeviceType
	APIVersion        uint32
	VendorID          uint32
	DeviceID          uint32
	PipelineCacheUUID [16]byte
}

// Features mirrors the boolean VkPhysicalDeviceFeatures the renderer depends on.
type Features struct {
	GeometryShader           bool
	DualSrcBlend             bool
	LogicOp                  bool
	DepthClamp               bool
	SampleRateShading        bool
	FragmentStoresAndAtomics bool
}

// Missing returns the names of the features set in want but not in f.
func (f Features) Missing(want Features) []string {
	var missing []string
	check := func(name string, need, have bool) {
		if need && !have {
			missing = append(missing, name)
		}
	}
	check("geometryShader", want.GeometryShader, f.GeometryShader)
	check("dualSrcBlend", want.DualSrcBlend, f.DualSrcBlend)
	check("logicOp", want.LogicOp, f.LogicOp)
	check("depthClamp", want.DepthClamp, f.DepthClamp)
	check("sampleRateShading", want.SampleRateShading, f.SampleRateShading)
	check("fragmentStoresAndAtomics", want.FragmentStoresAndAtomics, f.FragmentStoresAndAtomics)
	return missing
}

type QueueFamily struct {
	Flags vulkan.QueueFlags
	Count uint32
}

type SurfaceCapabilities struct {
	MinImageCount    uint32
	MaxImageCount    uint32
	CurrentExtent    vulkan.Extent2D
	MinImageExtent   vulkan.Extent2D
	MaxImageExtent   vulkan.Extent2D
	CurrentTransform vulkan.SurfaceTransformFlagBits
}

type SurfaceFormat struct {
	Format     vulkan.Format
	ColorSpace vulkan.ColorSpace
}

type InstanceInfo struct {
	ApplicationName string
	APIVersion      uint32
	Extensions      []string
	Layers          []string
	// Portability sets VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR.
	Portability bool
}

type DeviceInfo struct {
	// QueueFamilies lists each distinct family once; one queue is created per family.
	QueueFamilies []uint32
	Extensions    []string
	Layers        []string
	Features      Features
	// Chain is linked into pNext in this exact order.
	Chain []Feature
}

type SwapchainInfo struct {
	Surface       vulkan.Surface
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        vulkan.Extent2D
	Usage         vulkan.ImageUsageFlags
	Transform     vulkan.SurfaceTransformFlagBits
	PresentMode   vulkan.PresentMode
	// QueueFamilies with more than one entry selects concurrent sharing.
	QueueFamilies []uint32
	Old           vulkan.Swapchain
}

type RenderPassInfo struct {
	Format        vulkan.Format
	InitialLayout vulkan.ImageLayout
	FinalLayout   vulkan.ImageLayout
}

// Submit describes exactly one VkSubmitInfo.
type Submit struct {
	Wait       []vulkan.Semaphore
	WaitStages []vulkan.PipelineStageFlags
	Commands   []vulkan.CommandBuffer
	Signal     []vulkan.Semaphore
}

type Present struct {
	Wait       []vulkan.Semaphore
	Swapchain  vulkan.Swapchain
	ImageIndex uint32
}

// Barrier is a single-image color layout transition.
type Barrier struct {
	Image     vulkan.Image
	OldLayout vulkan.ImageLayout
	NewLayout vulkan.ImageLayout
	SrcAccess vulkan.AccessFlags
	DstAccess vulkan.AccessFlags
	SrcStage  vulkan.PipelineStageFlags
	DstStage  vulkan.PipelineStageFlags
}

type Binding struct {
	Binding uint32
	Type    vulkan.DescriptorType
	Count   uint32
	Stages  vulkan.ShaderStageFlags
}

type PushConstantRange struct {
	Stages vulkan.ShaderStageFlags
	Offset uint32
	Size   uint32
}

type ShaderStage struct {
	Stage  vulkan.ShaderStageFlagBits
	Module vulkan.ShaderModule
	Entry  string
}

type VertexAttribute struct {
	Location uint32
	Format   vulkan.Format
	Offset   uint32
}

// VertexInput describes a single interleaved vertex binding. A zero Stride means no vertex input.
type VertexInput struct {
	Stride     uint32
	Attributes []VertexAttribute
}

type BlendState struct {
	Enable   bool
	SrcColor vulkan.BlendFactor
	DstColor vulkan.BlendFactor
	ColorOp  vulkan.BlendOp
	SrcAlpha vulkan.BlendFactor
	DstAlpha vulkan.BlendFactor
	AlphaOp  vulkan.BlendOp
}

type GraphicsPipelineInfo struct {
	Layout     vulkan.PipelineLayout
	RenderPass vulkan.RenderPass
	Subpass    uint32
	Stages     []ShaderStage
	Vertex     VertexInput
	Topology   vulkan.PrimitiveTopology
	Polygon    vulkan.PolygonMode
	Cull       vulkan.CullModeFlags
	FrontFace  vulkan.FrontFace
	LineWidth  float32
	Blend      BlendState
}

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityPerformance
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityPerformance:
		return "performance"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

type Source string

const (
	SourceReport Source = "debug-report"
	SourceUtils  Source = "debug-utils"
)

type DebugMessage struct {
	Source   Source
	Severity Severity
	ID       int32
	Layer    string
	Text     string
}

type DebugFunc func(msg DebugMessage)

// DebugMessenger is an opaque VkDebugUtilsMessengerEXT handle.
type DebugMessenger uintptr
