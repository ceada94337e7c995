// Package driver is the single table of Vulkan entry points used by the render
// packages. It is populated once, when the instance is created, and handed to
// every component by reference so nothing resolves procedures on its own.
package driver

import (
	"github.com/vulkan-go/vulkan"
)

// Calls that can fail return the raw vulkan.Result; callers convert it with
// render.Check so every failure carries the symbolic name and call site.

type InstanceDriver interface {
	InstanceExtensions() ([]string, vulkan.Result)
	InstanceLayers() ([]string, vulkan.Result)
	CreateInstance(info InstanceInfo) (vulkan.Instance, vulkan.Result)
	DestroyInstance(instance vulkan.Instance)

	CreateDebugReport(instance vulkan.Instance, all bool, fn DebugFunc) (vulkan.DebugReportCallback, vulkan.Result)
	DestroyDebugReport(instance vulkan.Instance, callback vulkan.DebugReportCallback)
	CreateDebugMessenger(instance vulkan.Instance, all bool, fn DebugFunc) (DebugMessenger, vulkan.Result)
	DestroyDebugMessenger(instance vulkan.Instance, messenger DebugMessenger)

	DestroySurface(instance vulkan.Instance, surface vulkan.Surface)
}

type PhysicalDeviceDriver interface {
	PhysicalDevices(instance vulkan.Instance) ([]vulkan.PhysicalDevice, vulkan.Result)
	DeviceProperties(gpu vulkan.PhysicalDevice) DeviceProperties
	DeviceFeatures(gpu vulkan.PhysicalDevice) Features
	DeviceExtensions(gpu vulkan.PhysicalDevice) ([]string, vulkan.Result)
	QueueFamilies(gpu vulkan.PhysicalDevice) []QueueFamily
	SurfaceSupport(gpu vulkan.PhysicalDevice, family uint32, surface vulkan.Surface) (bool, vulkan.Result)
	SurfaceCapabilities(gpu vulkan.PhysicalDevice, surface vulkan.Surface) (SurfaceCapabilities, vulkan.Result)
	SurfaceFormats(gpu vulkan.PhysicalDevice, surface vulkan.Surface) ([]SurfaceFormat, vulkan.Result)
	SurfacePresentModes(gpu vulkan.PhysicalDevice, surface vulkan.Surface) ([]vulkan.PresentMode, vulkan.Result)
	// FormatFeatures reports the optimal-tiling features of format.
	FormatFeatures(gpu vulkan.PhysicalDevice, format vulkan.Format) vulkan.FormatFeatureFlags
}

type DeviceDriver interface {
	CreateDevice(gpu vulkan.PhysicalDevice, info DeviceInfo) (vulkan.Device, vulkan.Result)
	DestroyDevice(device vulkan.Device)
	DeviceQueue(device vulkan.Device, family uint32) vulkan.Queue
	DeviceWaitIdle(device vulkan.Device) vulkan.Result

	CreateSwapchain(device vulkan.Device, info SwapchainInfo) (vulkan.Swapchain, vulkan.Result)
	DestroySwapchain(device vulkan.Device, swapchain vulkan.Swapchain)
	SwapchainImages(device vulkan.Device, swapchain vulkan.Swapchain) ([]vulkan.Image, vulkan.Result)
	CreateImageView(device vulkan.Device, image vulkan.Image, format vulkan.Format) (vulkan.ImageView, vulkan.Result)
	DestroyImageView(device vulkan.Device, view vulkan.ImageView)
	CreateRenderPass(device vulkan.Device, info RenderPassInfo) (vulkan.RenderPass, vulkan.Result)
	DestroyRenderPass(device vulkan.Device, pass vulkan.RenderPass)
	CreateFramebuffer(device vulkan.Device, pass vulkan.RenderPass, views []vulkan.ImageView, extent vulkan.Extent2D) (vulkan.Framebuffer, vulkan.Result)
	DestroyFramebuffer(device vulkan.Device, framebuffer vulkan.Framebuffer)

	CreateSemaphore(device vulkan.Device) (vulkan.Semaphore, vulkan.Result)
	DestroySemaphore(device vulkan.Device, semaphore vulkan.Semaphore)
	CreateFence(device vulkan.Device, signaled bool) (vulkan.Fence, vulkan.Result)
	DestroyFence(device vulkan.Device, fence vulkan.Fence)
	WaitForFence(device vulkan.Device, fence vulkan.Fence, timeout uint64) vulkan.Result
	ResetFence(device vulkan.Device, fence vulkan.Fence) vulkan.Result

	CreateCommandPool(device vulkan.Device, family uint32) (vulkan.CommandPool, vulkan.Result)
	DestroyCommandPool(device vulkan.Device, pool vulkan.CommandPool)
	AllocateCommandBuffers(device vulkan.Device, pool vulkan.CommandPool, count int) ([]vulkan.CommandBuffer, vulkan.Result)
	FreeCommandBuffers(device vulkan.Device, pool vulkan.CommandPool, buffers []vulkan.CommandBuffer)
	BeginCommandBuffer(cmd vulkan.CommandBuffer, oneTime bool) vulkan.Result
	EndCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result
	ResetCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result
	CmdPipelineBarrier(cmd vulkan.CommandBuffer, barrier Barrier)
	CmdBeginRenderPass(cmd vulkan.CommandBuffer, pass vulkan.RenderPass, framebuffer vulkan.Framebuffer, extent vulkan.Extent2D, clear [4]float32)
	CmdEndRenderPass(cmd vulkan.CommandBuffer)

	QueueSubmit(queue vulkan.Queue, submit Submit, fence vulkan.Fence) vulkan.Result
	QueueWaitIdle(queue vulkan.Queue) vulkan.Result
	AcquireNextImage(device vulkan.Device, swapchain vulkan.Swapchain, timeout uint64, semaphore vulkan.Semaphore) (uint32, vulkan.Result)
	QueuePresent(queue vulkan.Queue, present Present) vulkan.Result

	CreatePipelineCache(device vulkan.Device, initial []byte) (vulkan.PipelineCache, vulkan.Result)
	PipelineCacheData(device vulkan.Device, cache vulkan.PipelineCache) ([]byte, vulkan.Result)
	DestroyPipelineCache(device vulkan.Device, cache vulkan.PipelineCache)
	CreateDescriptorSetLayout(device vulkan.Device, bindings []Binding) (vulkan.DescriptorSetLayout, vulkan.Result)
	DestroyDescriptorSetLayout(device vulkan.Device, layout vulkan.DescriptorSetLayout)
	CreatePipelineLayout(device vulkan.Device, sets []vulkan.DescriptorSetLayout, push []PushConstantRange) (vulkan.PipelineLayout, vulkan.Result)
	DestroyPipelineLayout(device vulkan.Device, layout vulkan.PipelineLayout)
	CreateGraphicsPipeline(device vulkan.Device, cache vulkan.PipelineCache, info GraphicsPipelineInfo) (vulkan.Pipeline, vulkan.Result)
	DestroyPipeline(device vulkan.Device, pipeline vulkan.Pipeline)
}

// Driver is the complete function table.
type Driver interface {
	InstanceDriver
	PhysicalDeviceDriver
	DeviceDriver
}
