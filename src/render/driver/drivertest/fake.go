// Package drivertest provides a recording driver.Driver for tests. Handles are
// distinct heap pointers, so they compare like real Vulkan handles and can be
// tracked for leaks and double frees.
package drivertest

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver"
)

// GPU describes one fake physical device.
type GPU struct {
	Properties    driver.DeviceProperties
	Features      driver.Features
	Extensions    []string
	QueueFamilies []driver.QueueFamily
	// PresentFamilies lists the families that can present; nil means every family.
	PresentFamilies []uint32
	Formats         []driver.SurfaceFormat
	PresentModes    []vulkan.PresentMode
	Capabilities    driver.SurfaceCapabilities
	// DepthFormats lists the formats reported as depth/stencil attachments.
	DepthFormats []vulkan.Format

	handle vulkan.PhysicalDevice
}

// SubmitRecord is one recorded vkQueueSubmit.
type SubmitRecord struct {
	Queue  vulkan.Queue
	Submit driver.Submit
	Fence  vulkan.Fence
}

type BarrierRecord struct {
	Cmd     vulkan.CommandBuffer
	Barrier driver.Barrier
}

type DeviceRecord struct {
	GPU  vulkan.PhysicalDevice
	Info driver.DeviceInfo
}

type Fake struct {
	mu sync.Mutex

	GPUs                []*GPU
	AvailableExtensions []string
	AvailableLayers     []string
	// ImageCount overrides the number of images a swapchain reports.
	ImageCount int

	// Queued results, consumed front to back. Empty queues yield VK_SUCCESS.
	AcquireResults []vulkan.Result
	PresentResults []vulkan.Result
	WaitResults    []vulkan.Result
	// AcquireIndexes override the image index of the next acquires.
	AcquireIndexes []uint32

	Calls      []string
	Instances  []driver.InstanceInfo
	Devices    []DeviceRecord
	Swapchains []driver.SwapchainInfo
	Submits    []SubmitRecord
	Presents   []driver.Present
	Barriers   []BarrierRecord
	Waits      []vulkan.Fence
	// Misuse collects destroys of handles that were never created or already
	// destroyed, and waits on fences that nothing will signal.
	Misuse []string

	ReportFuncs    []driver.DebugFunc
	MessengerFuncs []driver.DebugFunc

	failures   map[string][]vulkan.Result
	live       map[unsafe.Pointer]string
	images     map[unsafe.Pointer][]vulkan.Image
	caches     map[unsafe.Pointer][]byte
	signaled   map[unsafe.Pointer]bool
	nextImage  uint32
	messengers uintptr
}

var _ driver.Driver = (*Fake)(nil)

// New returns a fake exposing the given GPUs.
func New(gpus ...*GPU) *Fake {
	f := &Fake{
		GPUs:     gpus,
		failures: map[string][]vulkan.Result{},
		live:     map[unsafe.Pointer]string{},
		images:   map[unsafe.Pointer][]vulkan.Image{},
		caches:   map[unsafe.Pointer][]byte{},
		signaled: map[unsafe.Pointer]bool{},
	}
	for _, gpu := range gpus {
		gpu.handle = vulkan.PhysicalDevice(unsafe.Pointer(new(uint64)))
	}
	return f
}

// DiscreteGPU returns a fully featured discrete device with one graphics,
// present and compute queue family and a dedicated transfer family.
func DiscreteGPU(name string) *GPU {
	return &GPU{
		Properties: driver.DeviceProperties{
			Name:       name,
			Type:       vulkan.PhysicalDeviceTypeDiscreteGpu,
			APIVersion: vulkan.MakeVersion(1, 2, 0),
			VendorID:   0x10de,
			DeviceID:   0x2204,
		},
		Features: driver.Features{
			GeometryShader:           true,
			DualSrcBlend:             true,
			LogicOp:                  true,
			DepthClamp:               true,
			SampleRateShading:        true,
			FragmentStoresAndAtomics: true,
		},
		Extensions: []string{"VK_KHR_swapchain"},
		QueueFamilies: []driver.QueueFamily{
			{Flags: vulkan.QueueFlags(vulkan.QueueGraphicsBit | vulkan.QueueComputeBit | vulkan.QueueTransferBit), Count: 16},
			{Flags: vulkan.QueueFlags(vulkan.QueueTransferBit), Count: 2},
		},
		Formats: []driver.SurfaceFormat{
			{Format: vulkan.FormatB8g8r8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vulkan.PresentMode{vulkan.PresentModeMailbox, vulkan.PresentModeFifo},
		Capabilities: driver.SurfaceCapabilities{
			MinImageCount:    3,
			MaxImageCount:    8,
			CurrentExtent:    vulkan.Extent2D{Width: 800, Height: 600},
			MinImageExtent:   vulkan.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:   vulkan.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform: vulkan.SurfaceTransformIdentityBit,
		},
		DepthFormats: []vulkan.Format{vulkan.FormatD32SfloatS8Uint, vulkan.FormatD24UnormS8Uint},
	}
}

// Handle returns the physical device handle assigned to gpu.
func (g *GPU) Handle() vulkan.PhysicalDevice { return g.handle }

// FailNext makes the next call to method return ret instead of success.
// Repeated calls queue further failures.
func (f *Fake) FailNext(method string, ret vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], ret)
}

// Live counts the live handles of kind, or of every kind when kind is empty.
func (f *Fake) Live(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.live {
		if kind == "" || k == kind {
			n++
		}
	}
	return n
}

// Called reports how many times method was invoked.
func (f *Fake) Called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// Emit delivers msg to every registered debug callback of the matching source.
func (f *Fake) Emit(msg driver.DebugMessage) {
	f.mu.Lock()
	var funcs []driver.DebugFunc
	if msg.Source == driver.SourceUtils {
		funcs = append(funcs, f.MessengerFuncs...)
	} else {
		funcs = append(funcs, f.ReportFuncs...)
	}
	f.mu.Unlock()
	for _, fn := range funcs {
		fn(msg)
	}
}

func (f *Fake) record(method string) vulkan.Result {
	f.Calls = append(f.Calls, method)
	if queue := f.failures[method]; len(queue) > 0 {
		f.failures[method] = queue[1:]
		return queue[0]
	}
	return vulkan.Success
}

func (f *Fake) alloc(kind string) unsafe.Pointer {
	p := unsafe.Pointer(new(uint64))
	f.live[p] = kind
	return p
}

func (f *Fake) release(kind string, p unsafe.Pointer) {
	if p == nil {
		return
	}
	got, ok := f.live[p]
	if !ok {
		f.Misuse = append(f.Misuse, fmt.Sprintf("destroy of unknown %s %p", kind, p))
		return
	}
	if got != kind {
		f.Misuse = append(f.Misuse, fmt.Sprintf("destroy %s %p as %s", got, p, kind))
	}
	delete(f.live, p)
}

func (f *Fake) gpu(handle vulkan.PhysicalDevice) *GPU {
	for _, g := range f.GPUs {
		if g.handle == handle {
			return g
		}
	}
	panic(fmt.Sprintf("drivertest: unknown physical device %p", handle))
}

func pop(queue *[]vulkan.Result) vulkan.Result {
	if len(*queue) == 0 {
		return vulkan.Success
	}
	ret := (*queue)[0]
	*queue = (*queue)[1:]
	return ret
}

func (f *Fake) InstanceExtensions() ([]string, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.AvailableExtensions...), f.record("InstanceExtensions")
}

func (f *Fake) InstanceLayers() ([]string, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.AvailableLayers...), f.record("InstanceLayers")
}

func (f *Fake) CreateInstance(info driver.InstanceInfo) (vulkan.Instance, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateInstance"); ret != vulkan.Success {
		return nil, ret
	}
	f.Instances = append(f.Instances, info)
	return vulkan.Instance(f.alloc("instance")), vulkan.Success
}

func (f *Fake) DestroyInstance(instance vulkan.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyInstance")
	f.release("instance", unsafe.Pointer(instance))
}

func (f *Fake) CreateDebugReport(instance vulkan.Instance, all bool, fn driver.DebugFunc) (vulkan.DebugReportCallback, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateDebugReport"); ret != vulkan.Success {
		return nil, ret
	}
	f.ReportFuncs = append(f.ReportFuncs, fn)
	return vulkan.DebugReportCallback(f.alloc("debug-report")), vulkan.Success
}

func (f *Fake) DestroyDebugReport(instance vulkan.Instance, callback vulkan.DebugReportCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyDebugReport")
	f.release("debug-report", unsafe.Pointer(callback))
	f.ReportFuncs = nil
}

func (f *Fake) CreateDebugMessenger(instance vulkan.Instance, all bool, fn driver.DebugFunc) (driver.DebugMessenger, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateDebugMessenger"); ret != vulkan.Success {
		return 0, ret
	}
	f.MessengerFuncs = append(f.MessengerFuncs, fn)
	f.messengers++
	return driver.DebugMessenger(f.messengers), vulkan.Success
}

func (f *Fake) DestroyDebugMessenger(instance vulkan.Instance, messenger driver.DebugMessenger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyDebugMessenger")
	f.MessengerFuncs = nil
}

// NewSurface returns a surface handle owned by the fake, as a window would create it.
func (f *Fake) NewSurface() vulkan.Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return vulkan.Surface(f.alloc("surface"))
}

func (f *Fake) DestroySurface(instance vulkan.Instance, surface vulkan.Surface) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroySurface")
	f.release("surface", unsafe.Pointer(surface))
}

func (f *Fake) PhysicalDevices(instance vulkan.Instance) ([]vulkan.PhysicalDevice, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("PhysicalDevices"); ret != vulkan.Success {
		return nil, ret
	}
	gpus := make([]vulkan.PhysicalDevice, len(f.GPUs))
	for i, g := range f.GPUs {
		gpus[i] = g.handle
	}
	return gpus, vulkan.Success
}

func (f *Fake) DeviceProperties(gpu vulkan.PhysicalDevice) driver.DeviceProperties {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gpu(gpu).Properties
}

func (f *Fake) DeviceFeatures(gpu vulkan.PhysicalDevice) driver.Features {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gpu(gpu).Features
}

func (f *Fake) DeviceExtensions(gpu vulkan.PhysicalDevice) ([]string, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gpu(gpu).Extensions...), f.record("DeviceExtensions")
}

func (f *Fake) QueueFamilies(gpu vulkan.PhysicalDevice) []driver.QueueFamily {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]driver.QueueFamily(nil), f.gpu(gpu).QueueFamilies...)
}

func (f *Fake) SurfaceSupport(gpu vulkan.PhysicalDevice, family uint32, surface vulkan.Surface) (bool, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.gpu(gpu)
	if g.PresentFamilies == nil {
		return true, vulkan.Success
	}
	for _, p := range g.PresentFamilies {
		if p == family {
			return true, vulkan.Success
		}
	}
	return false, vulkan.Success
}

func (f *Fake) SurfaceCapabilities(gpu vulkan.PhysicalDevice, surface vulkan.Surface) (driver.SurfaceCapabilities, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gpu(gpu).Capabilities, f.record("SurfaceCapabilities")
}

func (f *Fake) SurfaceFormats(gpu vulkan.PhysicalDevice, surface vulkan.Surface) ([]driver.SurfaceFormat, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]driver.SurfaceFormat(nil), f.gpu(gpu).Formats...), f.record("SurfaceFormats")
}

func (f *Fake) SurfacePresentModes(gpu vulkan.PhysicalDevice, surface vulkan.Surface) ([]vulkan.PresentMode, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vulkan.PresentMode(nil), f.gpu(gpu).PresentModes...), f.record("SurfacePresentModes")
}

func (f *Fake) FormatFeatures(gpu vulkan.PhysicalDevice, format vulkan.Format) vulkan.FormatFeatureFlags {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.gpu(gpu).DepthFormats {
		if d == format {
			return vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit)
		}
	}
	return 0
}

func (f *Fake) CreateDevice(gpu vulkan.PhysicalDevice, info driver.DeviceInfo) (vulkan.Device, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateDevice"); ret != vulkan.Success {
		return nil, ret
	}
	f.Devices = append(f.Devices, DeviceRecord{GPU: gpu, Info: info})
	return vulkan.Device(f.alloc("device")), vulkan.Success
}

func (f *Fake) DestroyDevice(device vulkan.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyDevice")
	f.release("device", unsafe.Pointer(device))
}

func (f *Fake) DeviceQueue(device vulkan.Device, family uint32) vulkan.Queue {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeviceQueue")
	// Queues are owned by the device and never destroyed.
	return vulkan.Queue(unsafe.Pointer(new(uint64)))
}

func (f *Fake) DeviceWaitIdle(device vulkan.Device) vulkan.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("DeviceWaitIdle")
}

func (f *Fake) CreateSwapchain(device vulkan.Device, info driver.SwapchainInfo) (vulkan.Swapchain, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateSwapchain"); ret != vulkan.Success {
		return vulkan.NullSwapchain, ret
	}
	f.Swapchains = append(f.Swapchains, info)
	p := f.alloc("swapchain")
	count := int(info.MinImageCount)
	if f.ImageCount > 0 {
		count = f.ImageCount
	}
	images := make([]vulkan.Image, count)
	for i := range images {
		// Swapchain images belong to the swapchain and are not tracked individually.
		images[i] = vulkan.Image(unsafe.Pointer(new(uint64)))
	}
	f.images[p] = images
	f.nextImage = 0
	return vulkan.Swapchain(p), vulkan.Success
}

func (f *Fake) DestroySwapchain(device vulkan.Device, swapchain vulkan.Swapchain) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroySwapchain")
	f.release("swapchain", unsafe.Pointer(swapchain))
	delete(f.images, unsafe.Pointer(swapchain))
}

func (f *Fake) SwapchainImages(device vulkan.Device, swapchain vulkan.Swapchain) ([]vulkan.Image, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("SwapchainImages"); ret != vulkan.Success {
		return nil, ret
	}
	return append([]vulkan.Image(nil), f.images[unsafe.Pointer(swapchain)]...), vulkan.Success
}

func (f *Fake) CreateImageView(device vulkan.Device, image vulkan.Image, format vulkan.Format) (vulkan.ImageView, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateImageView"); ret != vulkan.Success {
		return nil, ret
	}
	return vulkan.ImageView(f.alloc("image-view")), vulkan.Success
}

func (f *Fake) DestroyImageView(device vulkan.Device, view vulkan.ImageView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyImageView")
	f.release("image-view", unsafe.Pointer(view))
}

func (f *Fake) CreateRenderPass(device vulkan.Device, info driver.RenderPassInfo) (vulkan.RenderPass, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateRenderPass"); ret != vulkan.Success {
		return nil, ret
	}
	return vulkan.RenderPass(f.alloc("render-pass")), vulkan.Success
}

func (f *Fake) DestroyRenderPass(device vulkan.Device, pass vulkan.RenderPass) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyRenderPass")
	f.release("render-pass", unsafe.Pointer(pass))
}

func (f *Fake) CreateFramebuffer(device vulkan.Device, pass vulkan.RenderPass, views []vulkan.ImageView, extent vulkan.Extent2D) (vulkan.Framebuffer, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateFramebuffer"); ret != vulkan.Success {
		return nil, ret
	}
	return vulkan.Framebuffer(f.alloc("framebuffer")), vulkan.Success
}

func (f *Fake) DestroyFramebuffer(device vulkan.Device, framebuffer vulkan.Framebuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyFramebuffer")
	f.release("framebuffer", unsafe.Pointer(framebuffer))
}

func (f *Fake) CreateSemaphore(device vulkan.Device) (vulkan.Semaphore, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateSemaphore"); ret != vulkan.Success {
		return nil, ret
	}
	return vulkan.Semaphore(f.alloc("semaphore")), vulkan.Success
}

func (f *Fake) DestroySemaphore(device vulkan.Device, semaphore vulkan.Semaphore) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroySemaphore")
	f.release("semaphore", unsafe.Pointer(semaphore))
}

func (f *Fake) CreateFence(device vulkan.Device, signaled bool) (vulkan.Fence, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateFence"); ret != vulkan.Success {
		return vulkan.NullFence, ret
	}
	p := f.alloc("fence")
	f.signaled[p] = signaled
	return vulkan.Fence(p), vulkan.Success
}

func (f *Fake) DestroyFence(device vulkan.Device, fence vulkan.Fence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyFence")
	f.release("fence", unsafe.Pointer(fence))
	delete(f.signaled, unsafe.Pointer(fence))
}

func (f *Fake) WaitForFence(device vulkan.Device, fence vulkan.Fence, timeout uint64) vulkan.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("WaitForFence")
	f.Waits = append(f.Waits, fence)
	// Submits complete at once, so an unsignaled fence has no submit pending.
	if signaled, ok := f.signaled[unsafe.Pointer(fence)]; ok && !signaled {
		f.Misuse = append(f.Misuse, fmt.Sprintf("wait on unsignaled fence %p", fence))
	}
	return pop(&f.WaitResults)
}

func (f *Fake) ResetFence(device vulkan.Device, fence vulkan.Fence) vulkan.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("ResetFence"); ret != vulkan.Success {
		return ret
	}
	if _, ok := f.signaled[unsafe.Pointer(fence)]; ok {
		f.signaled[unsafe.Pointer(fence)] = false
	}
	return vulkan.Success
}

// Signaled reports whether fence is signaled.
func (f *Fake) Signaled(fence vulkan.Fence) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled[unsafe.Pointer(fence)]
}

func (f *Fake) CreateCommandPool(device vulkan.Device, family uint32) (vulkan.CommandPool, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateCommandPool"); ret != vulkan.Success {
		return nil, ret
	}
	return vulkan.CommandPool(f.alloc("command-pool")), vulkan.Success
}

func (f *Fake) DestroyCommandPool(device vulkan.Device, pool vulkan.CommandPool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyCommandPool")
	f.release("command-pool", unsafe.Pointer(pool))
}

func (f *Fake) AllocateCommandBuffers(device vulkan.Device, pool vulkan.CommandPool, count int) ([]vulkan.CommandBuffer, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("AllocateCommandBuffers"); ret != vulkan.Success {
		return nil, ret
	}
	buffers := make([]vulkan.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = vulkan.CommandBuffer(f.alloc("command-buffer"))
	}
	return buffers, vulkan.Success
}

func (f *Fake) FreeCommandBuffers(device vulkan.Device, pool vulkan.CommandPool, buffers []vulkan.CommandBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("FreeCommandBuffers")
	for _, b := range buffers {
		f.release("command-buffer", unsafe.Pointer(b))
	}
}

func (f *Fake) BeginCommandBuffer(cmd vulkan.CommandBuffer, oneTime bool) vulkan.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("BeginCommandBuffer")
}

func (f *Fake) EndCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("EndCommandBuffer")
}

func (f *Fake) ResetCommandBuffer(cmd vulkan.CommandBuffer) vulkan.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("ResetCommandBuffer")
}

func (f *Fake) CmdPipelineBarrier(cmd vulkan.CommandBuffer, barrier driver.Barrier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CmdPipelineBarrier")
	f.Barriers = append(f.Barriers, BarrierRecord{Cmd: cmd, Barrier: barrier})
}

func (f *Fake) CmdBeginRenderPass(cmd vulkan.CommandBuffer, pass vulkan.RenderPass, framebuffer vulkan.Framebuffer, extent vulkan.Extent2D, clear [4]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CmdBeginRenderPass")
}

func (f *Fake) CmdEndRenderPass(cmd vulkan.CommandBuffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CmdEndRenderPass")
}

func (f *Fake) QueueSubmit(queue vulkan.Queue, submit driver.Submit, fence vulkan.Fence) vulkan.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("QueueSubmit"); ret != vulkan.Success {
		return ret
	}
	f.Submits = append(f.Submits, SubmitRecord{
		Queue:  queue,
		Submit: driver.Submit{
			Wait:       append([]vulkan.Semaphore(nil), submit.Wait...),
			WaitStages: append([]vulkan.PipelineStageFlags(nil), submit.WaitStages...),
			Commands:   append([]vulkan.CommandBuffer(nil), submit.Commands...),
			Signal:     append([]vulkan.Semaphore(nil), submit.Signal...),
		},
		Fence: fence,
	})
	if fence != vulkan.NullFence {
		f.signaled[unsafe.Pointer(fence)] = true
	}
	return vulkan.Success
}

func (f *Fake) QueueWaitIdle(queue vulkan.Queue) vulkan.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("QueueWaitIdle")
}

func (f *Fake) AcquireNextImage(device vulkan.Device, swapchain vulkan.Swapchain, timeout uint64, semaphore vulkan.Semaphore) (uint32, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AcquireNextImage")
	if ret := pop(&f.AcquireResults); ret != vulkan.Success {
		return 0, ret
	}
	images := f.images[unsafe.Pointer(swapchain)]
	if len(images) == 0 {
		return 0, vulkan.ErrorSurfaceLost
	}
	index := f.nextImage % uint32(len(images))
	f.nextImage++
	if len(f.AcquireIndexes) > 0 {
		index = f.AcquireIndexes[0]
		f.AcquireIndexes = f.AcquireIndexes[1:]
	}
	return index, vulkan.Success
}

func (f *Fake) QueuePresent(queue vulkan.Queue, present driver.Present) vulkan.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("QueuePresent")
	if ret := pop(&f.PresentResults); ret != vulkan.Success {
		return ret
	}
	f.Presents = append(f.Presents, driver.Present{
		Wait:       append([]vulkan.Semaphore(nil), present.Wait...),
		Swapchain:  present.Swapchain,
		ImageIndex: present.ImageIndex,
	})
	return vulkan.Success
}

func (f *Fake) CreatePipelineCache(device vulkan.Device, initial []byte) (vulkan.PipelineCache, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreatePipelineCache"); ret != vulkan.Success {
		return nil, ret
	}
	p := f.alloc("pipeline-cache")
	f.caches[p] = append([]byte(nil), initial...)
	return vulkan.PipelineCache(p), vulkan.Success
}

// SetCacheData replaces the bytes a pipeline cache reports.
func (f *Fake) SetCacheData(cache vulkan.PipelineCache, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.caches[unsafe.Pointer(cache)] = append([]byte(nil), data...)
}

// CacheSeed returns the initial data a pipeline cache was created with.
func (f *Fake) CacheSeed(cache vulkan.PipelineCache) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caches[unsafe.Pointer(cache)]
}

func (f *Fake) PipelineCacheData(device vulkan.Device, cache vulkan.PipelineCache) ([]byte, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("PipelineCacheData"); ret != vulkan.Success {
		return nil, ret
	}
	return append([]byte(nil), f.caches[unsafe.Pointer(cache)]...), vulkan.Success
}

func (f *Fake) DestroyPipelineCache(device vulkan.Device, cache vulkan.PipelineCache) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyPipelineCache")
	f.release("pipeline-cache", unsafe.Pointer(cache))
	delete(f.caches, unsafe.Pointer(cache))
}

func (f *Fake) CreateDescriptorSetLayout(device vulkan.Device, bindings []driver.Binding) (vulkan.DescriptorSetLayout, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateDescriptorSetLayout"); ret != vulkan.Success {
		return nil, ret
	}
	return vulkan.DescriptorSetLayout(f.alloc("descriptor-set-layout")), vulkan.Success
}

func (f *Fake) DestroyDescriptorSetLayout(device vulkan.Device, layout vulkan.DescriptorSetLayout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyDescriptorSetLayout")
	f.release("descriptor-set-layout", unsafe.Pointer(layout))
}

func (f *Fake) CreatePipelineLayout(device vulkan.Device, sets []vulkan.DescriptorSetLayout, push []driver.PushConstantRange) (vulkan.PipelineLayout, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreatePipelineLayout"); ret != vulkan.Success {
		return nil, ret
	}
	return vulkan.PipelineLayout(f.alloc("pipeline-layout")), vulkan.Success
}

func (f *Fake) DestroyPipelineLayout(device vulkan.Device, layout vulkan.PipelineLayout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyPipelineLayout")
	f.release("pipeline-layout", unsafe.Pointer(layout))
}

func (f *Fake) CreateGraphicsPipeline(device vulkan.Device, cache vulkan.PipelineCache, info driver.GraphicsPipelineInfo) (vulkan.Pipeline, vulkan.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := f.record("CreateGraphicsPipeline"); ret != vulkan.Success {
		return nil, ret
	}
	return vulkan.Pipeline(f.alloc("pipeline")), vulkan.Success
}

func (f *Fake) DestroyPipeline(device vulkan.Device, pipeline vulkan.Pipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyPipeline")
	f.release("pipeline", unsafe.Pointer(pipeline))
}
