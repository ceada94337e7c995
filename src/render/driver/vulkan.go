package driver

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

const engineName = "vkframe"

// Vulkan is the Driver backed by the vulkan-go bindings.
type Vulkan struct{}

var _ Driver = (*Vulkan)(nil)

// NewVulkan loads the Vulkan loader. procAddr is the vkGetInstanceProcAddr
// pointer handed out by the windowing library; nil selects the system loader.
func NewVulkan(procAddr unsafe.Pointer) (*Vulkan, error) {
	if procAddr != nil {
		vulkan.SetGetInstanceProcAddr(procAddr)
	} else if err := vulkan.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, errors.Wrap(err, "locate vulkan loader")
	}
	if err := vulkan.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize vulkan")
	}
	return &Vulkan{}, nil
}

func (v *Vulkan) InstanceExtensions() ([]string, vulkan.Result) {
	var count uint32
	if ret := vulkan.EnumerateInstanceExtensionProperties("", &count, nil); ret != vulkan.Success {
		return nil, ret
	}
	props := make([]vulkan.ExtensionProperties, count)
	if ret := vulkan.EnumerateInstanceExtensionProperties("", &count, props); ret != vulkan.Success {
		return nil, ret
	}
	names := make([]string, 0, len(props))
	for _, p := range props {
		p.Deref()
		names = append(names, vulkan.ToString(p.ExtensionName[:]))
	}
	return names, vulkan.Success
}

func (v *Vulkan) InstanceLayers() ([]string, vulkan.Result) {
	var count uint32
	if ret := vulkan.EnumerateInstanceLayerProperties(&count, nil); ret != vulkan.Success {
		return nil, ret
	}
	props := make([]vulkan.LayerProperties, count)
	if ret := vulkan.EnumerateInstanceLayerProperties(&count, props); ret != vulkan.Success {
		return nil, ret
	}
	names := make([]string, 0, len(props))
	for _, p := range props {
		p.Deref()
		names = append(names, vulkan.ToString(p.LayerName[:]))
	}
	return names, vulkan.Success
}

func (v *Vulkan) CreateInstance(info InstanceInfo) (vulkan.Instance, vulkan.Result) {
	app := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   cstr(info.ApplicationName),
		ApplicationVersion: vulkan.MakeVersion(1, 0, 0),
		PEngineName:        cstr(engineName),
		EngineVersion:      vulkan.MakeVersion(1, 0, 0),
		ApiVersion:         info.APIVersion,
	}
	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &app,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: cstrs(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     cstrs(info.Layers),
	}
	if info.Portability {
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags = vulkan.InstanceCreateFlags(0x00000001)
	}
	var instance vulkan.Instance
	ret := vulkan.CreateInstance(&createInfo, nil, &instance)
	if ret != vulkan.Success {
		return nil, ret
	}
	if err := vulkan.InitInstance(instance); err != nil {
		vulkan.DestroyInstance(instance, nil)
		return nil, vulkan.ErrorInitializationFailed
	}
	return instance, vulkan.Success
}

func (v *Vulkan) DestroyInstance(instance vulkan.Instance) {
	vulkan.DestroyInstance(instance, nil)
}

func (v *Vulkan) CreateDebugReport(instance vulkan.Instance, all bool, fn DebugFunc) (vulkan.DebugReportCallback, vulkan.Result) {
	flags := vulkan.DebugReportErrorBit | vulkan.DebugReportWarningBit | vulkan.DebugReportPerformanceWarningBit
	if all {
		flags |= vulkan.DebugReportInformationBit | vulkan.DebugReportDebugBit
	}
	info := vulkan.DebugReportCallbackCreateInfo{
		SType: vulkan.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vulkan.DebugReportFlags(flags),
		PfnCallback: func(flags vulkan.DebugReportFlags, objectType vulkan.DebugReportObjectType,
			object uint64, location uint, messageCode int32, layerPrefix string,
			message string, userData unsafe.Pointer) vulkan.Bool32 {
			fn(DebugMessage{
				Source:   SourceReport,
				Severity: reportSeverity(flags),
				ID:       messageCode,
				Layer:    layerPrefix,
				Text:     message,
			})
			return vulkan.False
		},
	}
	var callback vulkan.DebugReportCallback
	ret := vulkan.CreateDebugReportCallback(instance, &info, nil, &callback)
	return callback, ret
}

func (v *Vulkan) DestroyDebugReport(instance vulkan.Instance, callback vulkan.DebugReportCallback) {
	vulkan.DestroyDebugReportCallback(instance, callback, nil)
}

// CreateDebugMessenger always fails: vulkan-go has no VK_EXT_debug_utils
// binding, so there is no messenger to create or destroy.
func (v *Vulkan) CreateDebugMessenger(instance vulkan.Instance, all bool, fn DebugFunc) (DebugMessenger, vulkan.Result) {
	return 0, vulkan.ErrorExtensionNotPresent
}

func (v *Vulkan) DestroyDebugMessenger(instance vulkan.Instance, messenger DebugMessenger) {}

func (v *Vulkan) DestroySurface(instance vulkan.Instance, surface vulkan.Surface) {
	vulkan.DestroySurface(instance, surface, nil)
}

func (v *Vulkan) PhysicalDevices(instance vulkan.Instance) ([]vulkan.PhysicalDevice, vulkan.Result) {
	var count uint32
	if ret := vulkan.EnumeratePhysicalDevices(instance, &count, nil); ret != vulkan.Success {
		return nil, ret
	}
	gpus := make([]vulkan.PhysicalDevice, count)
	ret := vulkan.EnumeratePhysicalDevices(instance, &count, gpus)
	return gpus[:count], ret
}

func (v *Vulkan) DeviceProperties(gpu vulkan.PhysicalDevice) DeviceProperties {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	return DeviceProperties{
		Name:              vulkan.ToString(props.DeviceName[:]),
		Type:              props.DeviceType,
		APIVersion:        props.ApiVersion,
		VendorID:          props.VendorID,
		DeviceID:          props.DeviceID,
		PipelineCacheUUID: props.PipelineCacheUUID,
	}
}

func (v *Vulkan) DeviceFeatures(gpu vulkan.PhysicalDevice) Features {
	var f vulkan.PhysicalDeviceFeatures
	vulkan.GetPhysicalDeviceFeatures(gpu, &f)
	f.Deref()
	return Features{
		GeometryShader:           f.GeometryShader == vulkan.True,
		DualSrcBlend:             f.DualSrcBlend == vulkan.True,
		LogicOp:                  f.LogicOp == vulkan.True,
		DepthClamp:               f.DepthClamp == vulkan.True,
		SampleRateShading:        f.SampleRateShading == vulkan.True,
		FragmentStoresAndAtomics: f.FragmentStoresAndAtomics == vulkan.True,
	}
}

func (v *Vulkan) DeviceExtensions(gpu vulkan.PhysicalDevice) ([]string, vulkan.Result) {
	var count uint32
	if ret := vulkan.EnumerateDeviceExtensionProperties(gpu, "", &count, nil); ret != vulkan.Success {
		return nil, ret
	}
	props := make([]vulkan.ExtensionProperties, count)
	if ret := vulkan.EnumerateDeviceExtensionProperties(gpu, "", &count, props); ret != vulkan.Success {
		return nil, ret
	}
	names := make([]string, 0, len(props))
	for _, p := range props {
		p.Deref()
		names = append(names, vulkan.ToString(p.ExtensionName[:]))
	}
	return names, vulkan.Success
}

func (v *Vulkan) QueueFamilies(gpu vulkan.PhysicalDevice) []QueueFamily {
	var count uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vulkan.QueueFamilyProperties, count)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)
	families := make([]QueueFamily, len(props))
	for i, p := range props {
		p.Deref()
		families[i] = QueueFamily{Flags: p.QueueFlags, Count: p.QueueCount}
	}
	return families
}

func (v *Vulkan) SurfaceSupport(gpu vulkan.PhysicalDevice, family uint32, surface vulkan.Surface) (bool, vulkan.Result) {
	var supported vulkan.Bool32
	ret := vulkan.GetPhysicalDeviceSurfaceSupport(gpu, family, surface, &supported)
	return supported == vulkan.True, ret
}

func (v *Vulkan) SurfaceCapabilities(gpu vulkan.PhysicalDevice, surface vulkan.Surface) (SurfaceCapabilities, vulkan.Result) {
	var caps vulkan.SurfaceCapabilities
	ret := vulkan.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &caps)
	if ret != vulkan.Success {
		return SurfaceCapabilities{}, ret
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return SurfaceCapabilities{
		MinImageCount:    caps.MinImageCount,
		MaxImageCount:    caps.MaxImageCount,
		CurrentExtent:    caps.CurrentExtent,
		MinImageExtent:   caps.MinImageExtent,
		MaxImageExtent:   caps.MaxImageExtent,
		CurrentTransform: caps.CurrentTransform,
	}, vulkan.Success
}

func (v *Vulkan) SurfaceFormats(gpu vulkan.PhysicalDevice, surface vulkan.Surface) ([]SurfaceFormat, vulkan.Result) {
	var count uint32
	if ret := vulkan.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, nil); ret != vulkan.Success {
		return nil, ret
	}
	raw := make([]vulkan.SurfaceFormat, count)
	if ret := vulkan.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, raw); ret != vulkan.Success {
		return nil, ret
	}
	formats := make([]SurfaceFormat, len(raw))
	for i, f := range raw {
		f.Deref()
		formats[i] = SurfaceFormat{Format: f.Format, ColorSpace: f.ColorSpace}
	}
	return formats, vulkan.Success
}

func (v *Vulkan) SurfacePresentModes(gpu vulkan.PhysicalDevice, surface vulkan.Surface) ([]vulkan.PresentMode, vulkan.Result) {
	var count uint32
	if ret := vulkan.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, nil); ret != vulkan.Success {
		return nil, ret
	}
	modes := make([]vulkan.PresentMode, count)
	ret := vulkan.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, modes)
	return modes, ret
}

func (v *Vulkan) FormatFeatures(gpu vulkan.PhysicalDevice, format vulkan.Format) vulkan.FormatFeatureFlags {
	var props vulkan.FormatProperties
	vulkan.GetPhysicalDeviceFormatProperties(gpu, format, &props)
	props.Deref()
	return props.OptimalTilingFeatures
}

func (v *Vulkan) CreateDevice(gpu vulkan.PhysicalDevice, info DeviceInfo) (vulkan.Device, vulkan.Result) {
	priorities := []float32{1.0}
	queues := make([]vulkan.DeviceQueueCreateInfo, 0, len(info.QueueFamilies))
	for _, family := range info.QueueFamilies {
		queues = append(queues, vulkan.DeviceQueueCreateInfo{
			SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: priorities,
		})
	}
	f := info.Features
	features := []vulkan.PhysicalDeviceFeatures{{
		GeometryShader:           bool32(f.GeometryShader),
		DualSrcBlend:             bool32(f.DualSrcBlend),
		LogicOp:                  bool32(f.LogicOp),
		DepthClamp:               bool32(f.DepthClamp),
		SampleRateShading:        bool32(f.SampleRateShading),
		FragmentStoresAndAtomics: bool32(f.FragmentStoresAndAtomics),
	}}
	createInfo := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		PNext:                   LinkChain(info.Chain),
		QueueCreateInfoCount:    uint32(len(queues)),
		PQueueCreateInfos:       queues,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: cstrs(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     cstrs(info.Layers),
		PEnabledFeatures:        features,
	}
	var device vulkan.Device
	ret := vulkan.CreateDevice(gpu, &createInfo, nil, &device)
	return device, ret
}

func (v *Vulkan) DestroyDevice(device vulkan.Device) {
	vulkan.DestroyDevice(device, nil)
}

func (v *Vulkan) DeviceQueue(device vulkan.Device, family uint32) vulkan.Queue {
	var queue vulkan.Queue
	vulkan.GetDeviceQueue(device, family, 0, &queue)
	return queue
}

func (v *Vulkan) DeviceWaitIdle(device vulkan.Device) vulkan.Result {
	return vulkan.DeviceWaitIdle(device)
}

func (v *Vulkan) CreateSwapchain(device vulkan.Device, info SwapchainInfo) (vulkan.Swapchain, vulkan.Result) {
	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          info.Surface,
		MinImageCount:    info.MinImageCount,
		ImageFormat:      info.Format.Format,
		ImageColorSpace:  info.Format.ColorSpace,
		ImageExtent:      info.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       info.Usage,
		ImageSharingMode: vulkan.SharingModeExclusive,
		PreTransform:     info.Transform,
		CompositeAlpha:   vulkan.CompositeAlphaOpaqueBit,
		PresentMode:      info.PresentMode,
		Clipped:          vulkan.True,
		OldSwapchain:     info.Old,
	}
	if len(info.QueueFamilies) > 1 {
		createInfo.ImageSharingMode = vulkan.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = uint32(len(info.QueueFamilies))
		createInfo.PQueueFamilyIndices = info.QueueFamilies
	}
	var swapchain vulkan.Swapchain
	ret := vulkan.CreateSwapchain(device, &createInfo, nil, &swapchain)
	return swapchain, ret
}

func (v *Vulkan) DestroySwapchain(device vulkan.Device, swapchain vulkan.Swapchain) {
	vulkan.DestroySwapchain(device, swapchain, nil)
}

func (v *Vulkan) SwapchainImages(device vulkan.Device, swapchain vulkan.Swapchain) ([]vulkan.Image, vulkan.Result) {
	var count uint32
	if ret := vulkan.GetSwapchainImages(device, swapchain, &count, nil); ret != vulkan.Success {
		return nil, ret
	}
	images := make([]vulkan.Image, count)
	ret := vulkan.GetSwapchainImages(device, swapchain, &count, images)
	return images[:count], ret
}

func (v *Vulkan) CreateImageView(device vulkan.Device, image vulkan.Image, format vulkan.Format) (vulkan.ImageView, vulkan.Result) {
	createInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorRange(),
	}
	var view vulkan.ImageView
	ret := vulkan.CreateImageView(device, &createInfo, nil, &view)
	return view, ret
}

func (v *Vulkan) DestroyImageView(device vulkan.Device, view vulkan.ImageView) {
	vulkan.DestroyImageView(device, view, nil)
}

func (v *Vulkan) CreateRenderPass(device vulkan.Device, info RenderPassInfo) (vulkan.RenderPass, vulkan.Result) {
	attachments := []vulkan.AttachmentDescription{{
		Format:         info.Format,
		Samples:        vulkan.SampleCount1Bit,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  info.InitialLayout,
		FinalLayout:    info.FinalLayout,
	}}
	refs := []vulkan.AttachmentReference{{
		Attachment: 0,
		Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
	}}
	subpasses := []vulkan.SubpassDescription{{
		PipelineBindPoint:    vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(refs)),
		PColorAttachments:    refs,
	}}
	dependencies := []vulkan.SubpassDependency{{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit),
	}}
	createInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	var pass vulkan.RenderPass
	ret := vulkan.CreateRenderPass(device, &createInfo, nil, &pass)
	return pass, ret
}

func (v *Vulkan) DestroyRenderPass(device vulkan.Device, pass vulkan.RenderPass) {
	vulkan.DestroyRenderPass(device, pass, nil)
}

func (v *Vulkan) CreateFramebuffer(device vulkan.Device, pass vulkan.RenderPass, views []vulkan.ImageView, extent vulkan.Extent2D) (vulkan.Framebuffer, vulkan.Result) {
	createInfo := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var framebuffer vulkan.Framebuffer
	ret := vulkan.CreateFramebuffer(device, &createInfo, nil, &framebuffer)
	return framebuffer, ret
}

func (v *Vulkan) DestroyFramebuffer(device vulkan.Device, framebuffer vulkan.Framebuffer) {
	vulkan.DestroyFramebuffer(device, framebuffer, nil)
}

func (v *Vulkan) CreateSemaphore(device vulkan.Device) (vulkan.Semaphore, vulkan.Result) {
	var semaphore vulkan.Semaphore
	ret := vulkan.CreateSemaphore(device, &vulkan.SemaphoreCreateInfo{
		SType: vulkan.StructureTypeSemaphoreCreateInfo,
	}, nil, &semaphore)
	return semaphore, ret
}

func (v *Vulkan) DestroySemaphore(device vulkan.Device, semaphore vulkan.Semaphore) {
	vulkan.DestroySemaphore(device, semaphore, nil)
}

func (v *Vulkan) CreateFence(device vulkan.Device, signaled bool) (vulkan.Fence, vulkan.Result) {
	info := vulkan.FenceCreateInfo{SType: vulkan.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit)
	}
	var fence vulkan.Fence
	ret := vulkan.CreateFence(device, &info, nil, &fence)
	return fence, ret
}

func (v *Vulkan) DestroyFence(device vulkan.Device, fence vulkan.Fence) {
	vulkan.DestroyFence(device, fence, nil)
}

func (v *Vulkan) WaitForFence(device vulkan.Device, fence vulkan.Fence, timeout uint64) vulkan.Result {
	return vulkan.WaitForFences(device, 1, []vulkan.Fence{fence}, vulkan.True, timeout)
}

func (v *Vulkan) ResetFence(device vulkan.Device, fence vulkan.Fence) vulkan.Result {
	return vulkan.ResetFences(device, 1, []vulkan.Fence{fence})
}

func (v *Vulkan) CreateCommandPool(device vulkan.Device, family uint32) (vulkan.CommandPool, vulkan.Result) {
	info := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: family,
	}
	var pool vulkan.CommandPool
	ret := vulkan.CreateCommandPool(device, &info, nil, &pool)
	return pool, ret
}

func (v *Vulkan) DestroyCommandPool(device vulkan.Device, pool vulkan.CommandPool) {
	vulkan.DestroyCommandPool(device, pool, nil)
}

func (v *Vulkan) AllocateCommandBuffers(device vulkan.Device, pool vulkan.CommandPool, count int) ([]vulkan.CommandBuffer, vulkan.Result) {
	info := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	buffers := make([]vulkan.CommandBuffer, count)
	ret := vulkan.AllocateCommandBuffers(device, &info, buffers)
	return buffers, ret
}

func (v *Vulkan) FreeCommandBuffers(device vulkan.Device, pool vulkan.CommandPool, buffers []vulkan.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	vulkan.FreeCommandBuffers(device, pool, uint32(len(buffers)), buffers)
}

func (v *Vulkan) BeginCommandBuffer(cmd vulkan.CommandBuffer, oneTime bool) vulkan.Result {
	info := vulkan.CommandBufferBeginInfo{SType: vulkan.StructureTypeCommandBufferBeginInfo}
	if oneTime {
		info.Flags = vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit)
	}
	return vulkan.BeginCommandBuffer(cmd, &info)
}

func (v *Vulkan) EndCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result {
	return vulkan.EndCommandBuffer(cmd)
}

func (v *Vulkan) ResetCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result {
	return vulkan.ResetCommandBuffer(cmd, 0)
}

func (v *Vulkan) CmdPipelineBarrier(cmd vulkan.CommandBuffer, b Barrier) {
	barrier := vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       b.SrcAccess,
		DstAccessMask:       b.DstAccess,
		OldLayout:           b.OldLayout,
		NewLayout:           b.NewLayout,
		SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		Image:               b.Image,
		SubresourceRange:    colorRange(),
	}
	vulkan.CmdPipelineBarrier(cmd, b.SrcStage, b.DstStage, 0, 0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})
}

func (v *Vulkan) CmdBeginRenderPass(cmd vulkan.CommandBuffer, pass vulkan.RenderPass, framebuffer vulkan.Framebuffer, extent vulkan.Extent2D, clear [4]float32) {
	info := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: framebuffer,
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: 1,
		PClearValues:    []vulkan.ClearValue{vulkan.NewClearValue(clear[:])},
	}
	vulkan.CmdBeginRenderPass(cmd, &info, vulkan.SubpassContentsInline)
}

func (v *Vulkan) CmdEndRenderPass(cmd vulkan.CommandBuffer) {
	vulkan.CmdEndRenderPass(cmd)
}

func (v *Vulkan) QueueSubmit(queue vulkan.Queue, submit Submit, fence vulkan.Fence) vulkan.Result {
	info := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(submit.Wait)),
		PWaitSemaphores:      submit.Wait,
		PWaitDstStageMask:    submit.WaitStages,
		CommandBufferCount:   uint32(len(submit.Commands)),
		PCommandBuffers:      submit.Commands,
		SignalSemaphoreCount: uint32(len(submit.Signal)),
		PSignalSemaphores:    submit.Signal,
	}
	return vulkan.QueueSubmit(queue, 1, []vulkan.SubmitInfo{info}, fence)
}

func (v *Vulkan) QueueWaitIdle(queue vulkan.Queue) vulkan.Result {
	return vulkan.QueueWaitIdle(queue)
}

func (v *Vulkan) AcquireNextImage(device vulkan.Device, swapchain vulkan.Swapchain, timeout uint64, semaphore vulkan.Semaphore) (uint32, vulkan.Result) {
	var index uint32
	ret := vulkan.AcquireNextImage(device, swapchain, timeout, semaphore, vulkan.NullFence, &index)
	return index, ret
}

func (v *Vulkan) QueuePresent(queue vulkan.Queue, present Present) vulkan.Result {
	info := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(present.Wait)),
		PWaitSemaphores:    present.Wait,
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{present.Swapchain},
		PImageIndices:      []uint32{present.ImageIndex},
	}
	return vulkan.QueuePresent(queue, &info)
}

func (v *Vulkan) CreatePipelineCache(device vulkan.Device, initial []byte) (vulkan.PipelineCache, vulkan.Result) {
	info := vulkan.PipelineCacheCreateInfo{SType: vulkan.StructureTypePipelineCacheCreateInfo}
	if len(initial) > 0 {
		info.InitialDataSize = uint(len(initial))
		info.PInitialData = unsafe.Pointer(&initial[0])
	}
	var cache vulkan.PipelineCache
	ret := vulkan.CreatePipelineCache(device, &info, nil, &cache)
	return cache, ret
}

func (v *Vulkan) PipelineCacheData(device vulkan.Device, cache vulkan.PipelineCache) ([]byte, vulkan.Result) {
	var size uint
	if ret := vulkan.GetPipelineCacheData(device, cache, &size, nil); ret != vulkan.Success {
		return nil, ret
	}
	if size == 0 {
		return nil, vulkan.Success
	}
	data := make([]byte, size)
	ret := vulkan.GetPipelineCacheData(device, cache, &size, unsafe.Pointer(&data[0]))
	return data[:size], ret
}

func (v *Vulkan) DestroyPipelineCache(device vulkan.Device, cache vulkan.PipelineCache) {
	vulkan.DestroyPipelineCache(device, cache, nil)
}

func (v *Vulkan) CreateDescriptorSetLayout(device vulkan.Device, bindings []Binding) (vulkan.DescriptorSetLayout, vulkan.Result) {
	raw := make([]vulkan.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		raw[i] = vulkan.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: b.Count,
			StageFlags:      b.Stages,
		}
	}
	info := vulkan.DescriptorSetLayoutCreateInfo{
		SType:        vulkan.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(raw)),
		PBindings:    raw,
	}
	var layout vulkan.DescriptorSetLayout
	ret := vulkan.CreateDescriptorSetLayout(device, &info, nil, &layout)
	return layout, ret
}

func (v *Vulkan) DestroyDescriptorSetLayout(device vulkan.Device, layout vulkan.DescriptorSetLayout) {
	vulkan.DestroyDescriptorSetLayout(device, layout, nil)
}

func (v *Vulkan) CreatePipelineLayout(device vulkan.Device, sets []vulkan.DescriptorSetLayout, push []PushConstantRange) (vulkan.PipelineLayout, vulkan.Result) {
	ranges := make([]vulkan.PushConstantRange, len(push))
	for i, r := range push {
		ranges[i] = vulkan.PushConstantRange{StageFlags: r.Stages, Offset: r.Offset, Size: r.Size}
	}
	info := vulkan.PipelineLayoutCreateInfo{
		SType:                  vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(sets)),
		PSetLayouts:            sets,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vulkan.PipelineLayout
	ret := vulkan.CreatePipelineLayout(device, &info, nil, &layout)
	return layout, ret
}

func (v *Vulkan) DestroyPipelineLayout(device vulkan.Device, layout vulkan.PipelineLayout) {
	vulkan.DestroyPipelineLayout(device, layout, nil)
}

func (v *Vulkan) CreateGraphicsPipeline(device vulkan.Device, cache vulkan.PipelineCache, info GraphicsPipelineInfo) (vulkan.Pipeline, vulkan.Result) {
	stages := make([]vulkan.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, s := range info.Stages {
		stages[i] = vulkan.PipelineShaderStageCreateInfo{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  s.Stage,
			Module: s.Module,
			PName:  cstr(s.Entry),
		}
	}

	vertexInput := vulkan.PipelineVertexInputStateCreateInfo{
		SType: vulkan.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if info.Vertex.Stride > 0 {
		attributes := make([]vulkan.VertexInputAttributeDescription, len(info.Vertex.Attributes))
		for i, a := range info.Vertex.Attributes {
			attributes[i] = vulkan.VertexInputAttributeDescription{
				Location: a.Location,
				Binding:  0,
				Format:   a.Format,
				Offset:   a.Offset,
			}
		}
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vulkan.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    info.Vertex.Stride,
			InputRate: vulkan.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInput.PVertexAttributeDescriptions = attributes
	}

	inputAssembly := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               info.Topology,
		PrimitiveRestartEnable: vulkan.False,
	}
	viewport := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	lineWidth := info.LineWidth
	if lineWidth == 0 {
		lineWidth = 1.0
	}
	raster := vulkan.PipelineRasterizationStateCreateInfo{
		SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vulkan.False,
		RasterizerDiscardEnable: vulkan.False,
		PolygonMode:             info.Polygon,
		CullMode:                info.Cull,
		FrontFace:               info.FrontFace,
		DepthBiasEnable:         vulkan.False,
		LineWidth:               lineWidth,
	}
	multisample := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vulkan.SampleCount1Bit,
		SampleShadingEnable:  vulkan.False,
	}
	blend := []vulkan.PipelineColorBlendAttachmentState{{
		BlendEnable:         bool32(info.Blend.Enable),
		SrcColorBlendFactor: info.Blend.SrcColor,
		DstColorBlendFactor: info.Blend.DstColor,
		ColorBlendOp:        info.Blend.ColorOp,
		SrcAlphaBlendFactor: info.Blend.SrcAlpha,
		DstAlphaBlendFactor: info.Blend.DstAlpha,
		AlphaBlendOp:        info.Blend.AlphaOp,
		ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit |
			vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
	}}
	colorBlend := vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vulkan.False,
		LogicOp:         vulkan.LogicOpCopy,
		AttachmentCount: uint32(len(blend)),
		PAttachments:    blend,
	}
	dynamicStates := []vulkan.DynamicState{vulkan.DynamicStateViewport, vulkan.DynamicStateScissor}
	dynamic := vulkan.PipelineDynamicStateCreateInfo{
		SType:             vulkan.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	createInfos := []vulkan.GraphicsPipelineCreateInfo{{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewport,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              info.Layout,
		RenderPass:          info.RenderPass,
		Subpass:             info.Subpass,
		BasePipelineHandle:  vulkan.Pipeline(vulkan.NullHandle),
		BasePipelineIndex:   -1,
	}}
	pipelines := make([]vulkan.Pipeline, 1)
	ret := vulkan.CreateGraphicsPipelines(device, cache, 1, createInfos, nil, pipelines)
	return pipelines[0], ret
}

func (v *Vulkan) DestroyPipeline(device vulkan.Device, pipeline vulkan.Pipeline) {
	vulkan.DestroyPipeline(device, pipeline, nil)
}

func reportSeverity(flags vulkan.DebugReportFlags) Severity {
	switch {
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportErrorBit) != 0:
		return SeverityError
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportWarningBit) != 0:
		return SeverityWarning
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportPerformanceWarningBit) != 0:
		return SeverityPerformance
	case flags&vulkan.DebugReportFlags(vulkan.DebugReportInformationBit) != 0:
		return SeverityInfo
	}
	return SeverityDebug
}

func colorRange() vulkan.ImageSubresourceRange {
	return vulkan.ImageSubresourceRange{
		AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

// cstr terminates s for the bindings, which pass Go strings straight to C.
func cstr(s string) string {
	if len(s) > 0 && s[len(s)-1] == 0 {
		return s
	}
	return s + "\x00"
}

func cstrs(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = cstr(s)
	}
	return out
}
