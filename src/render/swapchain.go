package render

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
)

// MaxFramesInFlight is the number of frames whose sync objects rotate.
const MaxFramesInFlight = 2

// FrameCursor holds the two independent rotating indices of the frame loop.
// Frame selects the sync objects, Image the acquired swapchain image; they
// are not related.
type FrameCursor struct {
	Frame int
	Image int

	acquired bool
	// consumed is set once a submit waited on the acquire semaphore.
	consumed bool
	// fenceReset is set when the frame fence was reset and must be handed
	// to the next frame submit.
	fenceReset bool
}

// SwapchainOptions are the inputs that stay fixed across recreation.
type SwapchainOptions struct {
	GPU      vulkan.PhysicalDevice
	Device   vulkan.Device
	Surface  vulkan.Surface
	Families QueueFamilies
	// Queue receives the layout transition submits.
	Queue vulkan.Queue
	// PresentModes is the preference order; FIFO is the fallback.
	PresentModes  []vulkan.PresentMode
	DefaultExtent vulkan.Extent2D
	Assertions    bool
}

// Swapchain owns the VkSwapchainKHR and everything sized by it: image views,
// the render pass, per-image command buffers, the frame sync set and the
// image layout tracker.
type Swapchain struct {
	drv  driver.Driver
	opts SwapchainOptions
	log  *slog.Logger

	handle      vulkan.Swapchain
	images      []vulkan.Image
	views       []vulkan.ImageView
	format      driver.SurfaceFormat
	presentMode vulkan.PresentMode
	extent      vulkan.Extent2D
	renderPass  vulkan.RenderPass
	pool        vulkan.CommandPool
	commands    []vulkan.CommandBuffer

	imageAvailable []vulkan.Semaphore
	renderFinished []vulkan.Semaphore
	inFlight       []vulkan.Fence
	// imagesInFlight maps an image to the frame fence that last used it.
	imagesInFlight []vulkan.Fence

	layouts *LayoutTracker
	cursor  FrameCursor
	id      int

	live      bool
	destroyed bool

	onRecreated func() error
	// onRelease frees objects other components allocated from this swapchain's pool.
	onRelease []func()
}

func NewSwapchain(drv driver.Driver, opts SwapchainOptions, log *slog.Logger) *Swapchain {
	log = orDefault(log).With(slog.String("component", "swapchain"))
	return &Swapchain{
		drv:     drv,
		opts:    opts,
		log:     log,
		layouts: newLayoutTracker(drv, opts.Device, opts.Queue, opts.Assertions, log),
	}
}

// SetOnRecreated installs the callback fired after every create that follows a destroy.
func (s *Swapchain) SetOnRecreated(fn func() error) { s.onRecreated = fn }

func (s *Swapchain) onReleaseHook(fn func()) { s.onRelease = append(s.onRelease, fn) }

// ChoosePresentMode returns the first preferred mode that is available, or FIFO.
func ChoosePresentMode(preference, available []vulkan.PresentMode) vulkan.PresentMode {
	for _, want := range preference {
		for _, have := range available {
			if want == have {
				return want
			}
		}
	}
	return vulkan.PresentModeFifo
}

// ChooseExtent uses the surface extent unless the surface leaves it to the
// swapchain, in which case fallback is clamped to the allowed range.
func ChooseExtent(caps driver.SurfaceCapabilities, fallback vulkan.Extent2D) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vulkan.Extent2D{
		Width:  clamp(fallback.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(fallback.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

// ChooseImageCount requests the minimum, capped by a nonzero maximum.
func ChooseImageCount(caps driver.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// Create builds the swapchain and every object sized by it. On failure
// everything created so far is released and the swapchain stays absent.
func (s *Swapchain) Create() error {
	if s.live {
		return errors.AssertionFailedf("swapchain already live")
	}
	if err := s.create(); err != nil {
		s.release()
		return errors.Wrap(err, "create swapchain")
	}
	s.live = true
	s.log.Debug("swapchain created",
		slog.Int("id", s.id),
		slog.Int("images", len(s.images)),
		slog.Int("width", int(s.extent.Width)),
		slog.Int("height", int(s.extent.Height)),
		slog.Int("present_mode", int(s.presentMode)))

	if s.destroyed {
		s.destroyed = false
		if s.onRecreated != nil {
			if err := s.onRecreated(); err != nil {
				return errors.Wrap(err, "framebuffer recreated callback")
			}
		}
	}
	return nil
}

func (s *Swapchain) create() error {
	drv, dev, gpu, surface := s.drv, s.opts.Device, s.opts.GPU, s.opts.Surface

	caps, ret := drv.SurfaceCapabilities(gpu, surface)
	if err := Check(ret, "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return err
	}
	formats, ret := drv.SurfaceFormats(gpu, surface)
	if err := Check(ret, "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return err
	}
	modes, ret := drv.SurfacePresentModes(gpu, surface)
	if err := Check(ret, "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return err
	}
	if len(formats) == 0 {
		return errors.New("surface reports no formats")
	}

	s.format = formats[0]
	s.presentMode = ChoosePresentMode(s.opts.PresentModes, modes)
	s.extent = ChooseExtent(caps, s.opts.DefaultExtent)

	info := driver.SwapchainInfo{
		Surface:       surface,
		MinImageCount: ChooseImageCount(caps),
		Format:        s.format,
		Extent:        s.extent,
		Usage:         vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit | vulkan.ImageUsageTransferDstBit),
		Transform:     caps.CurrentTransform,
		PresentMode:   s.presentMode,
		Old:           vulkan.NullSwapchain,
	}
	if f := s.opts.Families; f.Graphics != f.Present {
		info.QueueFamilies = []uint32{f.Graphics, f.Present}
	}
	s.handle, ret = drv.CreateSwapchain(dev, info)
	if err := Check(ret, "vkCreateSwapchainKHR"); err != nil {
		return err
	}

	s.images, ret = drv.SwapchainImages(dev, s.handle)
	if err := Check(ret, "vkGetSwapchainImagesKHR"); err != nil {
		return err
	}
	for _, image := range s.images {
		view, ret := drv.CreateImageView(dev, image, s.format.Format)
		if err := Check(ret, "vkCreateImageView"); err != nil {
			return err
		}
		s.views = append(s.views, view)
	}

	for i := 0; i < MaxFramesInFlight; i++ {
		available, ret := drv.CreateSemaphore(dev)
		if err := Check(ret, "vkCreateSemaphore"); err != nil {
			return err
		}
		s.imageAvailable = append(s.imageAvailable, available)
		finished, ret := drv.CreateSemaphore(dev)
		if err := Check(ret, "vkCreateSemaphore"); err != nil {
			return err
		}
		s.renderFinished = append(s.renderFinished, finished)
		// Signaled so the first wait on each frame returns at once.
		fence, ret := drv.CreateFence(dev, true)
		if err := Check(ret, "vkCreateFence"); err != nil {
			return err
		}
		s.inFlight = append(s.inFlight, fence)
	}
	s.imagesInFlight = make([]vulkan.Fence, len(s.images))

	s.pool, ret = drv.CreateCommandPool(dev, s.opts.Families.Graphics)
	if err := Check(ret, "vkCreateCommandPool"); err != nil {
		return err
	}
	s.commands, ret = drv.AllocateCommandBuffers(dev, s.pool, len(s.images))
	if err := Check(ret, "vkAllocateCommandBuffers"); err != nil {
		return err
	}
	s.cursor = FrameCursor{}

	s.renderPass, ret = drv.CreateRenderPass(dev, driver.RenderPassInfo{
		Format:        s.format.Format,
		InitialLayout: vulkan.ImageLayoutColorAttachmentOptimal,
		FinalLayout:   vulkan.ImageLayoutColorAttachmentOptimal,
	})
	if err := Check(ret, "vkCreateRenderPass"); err != nil {
		return err
	}

	if err := s.layouts.Init(s.pool, s.images); err != nil {
		return err
	}
	s.id++
	return nil
}

// Destroy waits for the device to go idle and frees everything Create built.
// Calling it on an absent swapchain does nothing.
func (s *Swapchain) Destroy() error {
	if !s.live {
		return nil
	}
	err := Check(s.drv.DeviceWaitIdle(s.opts.Device), "vkDeviceWaitIdle")
	s.release()
	s.live = false
	s.destroyed = true
	s.log.Debug("swapchain destroyed", slog.Int("id", s.id))
	return err
}

// Recreate destroys and rebuilds the swapchain, as after a resize.
func (s *Swapchain) Recreate() error {
	if err := s.Destroy(); err != nil {
		return err
	}
	return s.Create()
}

func (s *Swapchain) release() {
	drv, dev := s.drv, s.opts.Device

	for _, fn := range s.onRelease {
		fn()
	}
	if len(s.commands) > 0 {
		drv.FreeCommandBuffers(dev, s.pool, s.commands)
	}
	s.commands = nil
	if s.pool != vulkan.NullCommandPool {
		drv.DestroyCommandPool(dev, s.pool)
		s.pool = vulkan.NullCommandPool
	}
	for _, view := range s.views {
		drv.DestroyImageView(dev, view)
	}
	s.views = nil
	if s.renderPass != vulkan.NullRenderPass {
		drv.DestroyRenderPass(dev, s.renderPass)
		s.renderPass = vulkan.NullRenderPass
	}
	for _, sem := range s.imageAvailable {
		drv.DestroySemaphore(dev, sem)
	}
	for _, sem := range s.renderFinished {
		drv.DestroySemaphore(dev, sem)
	}
	for _, fence := range s.inFlight {
		drv.DestroyFence(dev, fence)
	}
	s.imageAvailable, s.renderFinished, s.inFlight, s.imagesInFlight = nil, nil, nil, nil
	if s.handle != vulkan.NullSwapchain {
		drv.DestroySwapchain(dev, s.handle)
		s.handle = vulkan.NullSwapchain
	}
	s.images = nil
	s.layouts.Reset()
	s.cursor = FrameCursor{}
}

func (s *Swapchain) Live() bool                          { return s.live }
func (s *Swapchain) Handle() vulkan.Swapchain            { return s.handle }
func (s *Swapchain) ImageCount() int                     { return len(s.images) }
func (s *Swapchain) Images() []vulkan.Image              { return s.images }
func (s *Swapchain) Views() []vulkan.ImageView           { return s.views }
func (s *Swapchain) Format() vulkan.Format               { return s.format.Format }
func (s *Swapchain) SurfaceFormat() driver.SurfaceFormat { return s.format }
func (s *Swapchain) PresentMode() vulkan.PresentMode     { return s.presentMode }
func (s *Swapchain) Extent() vulkan.Extent2D             { return s.extent }
func (s *Swapchain) RenderPass() vulkan.RenderPass       { return s.renderPass }
func (s *Swapchain) CommandPool() vulkan.CommandPool     { return s.pool }
func (s *Swapchain) Layouts() *LayoutTracker             { return s.layouts }
func (s *Swapchain) Cursor() FrameCursor                 { return s.cursor }

// ID is incremented on every successful create.
func (s *Swapchain) ID() int { return s.id }

// FramebufferID identifies the framebuffer of the current frame across recreation.
func (s *Swapchain) FramebufferID() int { return s.id*10 + s.cursor.Frame }

// SyncSizes reports the lengths of the frame sync arrays.
func (s *Swapchain) SyncSizes() (imageAvailable, renderFinished, inFlight, imagesInFlight int) {
	return len(s.imageAvailable), len(s.renderFinished), len(s.inFlight), len(s.imagesInFlight)
}
