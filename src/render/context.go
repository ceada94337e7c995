package render

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
)

// Context is what drawing code and material builders see of a graphics context.
type Context interface {
	SetOnRecreated(onRecreated func() error)
	SetOnSubmitBegin(onBegin BoundaryFunc)
	SetOnSubmitEnd(onEnd BoundaryFunc)
	Device() vulkan.Device
	PhysicalDevice() vulkan.PhysicalDevice
	RenderPass() vulkan.RenderPass
	PipelineCache() vulkan.PipelineCache
	CommandBuffer() vulkan.CommandBuffer
	SwapchainDimensions() SwapchainDimensions
	AcquireNextImage() (imageIndex int, outdated bool, err error)
	PresentImage(imageIndex int) (outdated bool, err error)
}

type SwapchainDimensions struct {
	Width  uint32
	Height uint32
	Format vulkan.Format
}

// Window is the platform glue a context presents to.
type Window interface {
	// RequiredInstanceExtensions lists the surface extensions the platform needs.
	RequiredInstanceExtensions() []string
	CreateSurface(instance vulkan.Instance) (vulkan.Surface, error)
}

type Options struct {
	// Window is nil for a headless context, which has no swapchain.
	Window Window
	// DeviceExtensions are requested in addition to VK_KHR_swapchain.
	DeviceExtensions []ExtensionEntry
	Logger           *slog.Logger
}

// GraphicsContext owns the Vulkan instance, device, queues and the swapchain
// with its frame submitter. Objects are destroyed in reverse creation order.
type GraphicsContext struct {
	drv  driver.Driver
	cfg  Config
	opts Options
	log  *slog.Logger
	id   uuid.UUID

	instance vulkan.Instance
	layers   []string
	debug    *DebugContext

	surface       vulkan.Surface
	selection     *Selection
	device        vulkan.Device
	families      QueueFamilies
	queues        [3]vulkan.Queue
	pool          vulkan.CommandPool
	depthFormat   vulkan.Format
	pipelineCache vulkan.PipelineCache
	swapchain     *Swapchain
	submitter     *Submitter

	stats       FrameStats
	initialized bool
	closed      bool

	onRecreated func() error
	onBegin     BoundaryFunc
	onEnd       BoundaryFunc
}

var _ Context = (*GraphicsContext)(nil)

// New creates the instance and, when debugging is enabled, its validation
// callbacks. InitializeDrawingContext does the rest.
func New(drv driver.Driver, cfg Config, opts Options) (*GraphicsContext, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	id := uuid.New()
	c := &GraphicsContext{
		drv:  drv,
		cfg:  cfg,
		opts: opts,
		id:   id,
		log:  orDefault(opts.Logger).With(slog.String("context", id.String())),
	}

	var windowExtensions []string
	if opts.Window != nil {
		windowExtensions = opts.Window.RequiredInstanceExtensions()
	}
	setup, err := createInstance(drv, cfg, windowExtensions, c.log)
	if err != nil {
		return nil, errors.Wrap(err, "create instance")
	}
	c.instance = setup.instance
	c.layers = setup.layers

	if cfg.Debug && cfg.DebugChannel != DebugNone {
		c.debug, err = NewDebugContext(drv, c.instance, cfg.DebugChannel, setup.extensions, cfg.IgnoredMessageIDs, c.log)
		if err != nil {
			drv.DestroyInstance(c.instance)
			return nil, errors.Wrap(err, "create debug context")
		}
	}
	return c, nil
}

// InitializeDrawingContext creates the surface, picks the device and builds
// the queues, command pool, pipeline cache, swapchain and submitter. It does
// nothing when the context is already initialized.
func (c *GraphicsContext) InitializeDrawingContext() error {
	if c.closed {
		return errors.New("graphics context closed")
	}
	if c.initialized {
		return nil
	}
	if err := c.initialize(); err != nil {
		c.release()
		return errors.Wrap(err, "initialize drawing context")
	}
	c.initialized = true
	c.log.Info("drawing context initialized",
		slog.String("device", c.selection.Properties.Name),
		slog.Bool("headless", c.swapchain == nil))
	return nil
}

func (c *GraphicsContext) initialize() error {
	drv := c.drv
	if c.opts.Window != nil {
		surface, err := c.opts.Window.CreateSurface(c.instance)
		if err != nil {
			return errors.Wrap(err, "create surface")
		}
		c.surface = surface
	}

	var extensions []ExtensionEntry
	if c.surface != vulkan.NullSurface {
		extensions = append(extensions, ExtensionEntry{Name: SwapchainExtension})
	}
	extensions = append(extensions, c.opts.DeviceExtensions...)
	selection, err := NewDeviceSelector(drv, c.log).Pick(c.instance, DeviceRequirements{
		Extensions: extensions,
		Features:   RequiredFeatures(),
		Strict:     c.cfg.StrictFeatures,
		Surface:    c.surface,
	})
	if err != nil {
		return err
	}
	c.selection = selection

	c.families, err = NewQueueResolver(drv, c.cfg.AllowCombinedTransfer, c.log).Resolve(selection.GPU, c.surface)
	if err != nil {
		return err
	}

	var ret vulkan.Result
	c.device, ret = drv.CreateDevice(selection.GPU, driver.DeviceInfo{
		QueueFamilies: c.families.Unique(),
		Extensions:    selection.Extensions,
		Layers:        c.layers,
		Features:      enabledFeatures(selection.Features),
		Chain:         selection.Chain,
	})
	if err := Check(ret, "vkCreateDevice"); err != nil {
		return err
	}
	for _, role := range []QueueRole{QueueGraphics, QueuePresent, QueueTransfer} {
		c.queues[role] = drv.DeviceQueue(c.device, c.families.Index(role))
	}

	if format, ok := DepthFormat(drv, selection.GPU); ok {
		c.depthFormat = format
	} else {
		c.log.Warn("no depth format with optimal tiling support")
	}

	c.pool, ret = drv.CreateCommandPool(c.device, c.families.Graphics)
	if err := Check(ret, "vkCreateCommandPool"); err != nil {
		return err
	}

	c.pipelineCache, err = LoadPipelineCache(drv, c.device, selection.Properties, c.cfg.PipelineCachePath, c.log)
	if err != nil {
		return err
	}

	if c.surface != vulkan.NullSurface {
		c.swapchain = NewSwapchain(drv, SwapchainOptions{
			GPU:           selection.GPU,
			Device:        c.device,
			Surface:       c.surface,
			Families:      c.families,
			Queue:         c.queues[QueueGraphics],
			PresentModes:  mustPresentModes(c.cfg),
			DefaultExtent: c.cfg.defaultExtent(),
			Assertions:    c.cfg.Assertions,
		}, c.log)
		c.swapchain.SetOnRecreated(c.fireRecreated)
	}
	c.submitter = NewSubmitter(drv, c.swapchain, SubmitterOptions{
		Device:     c.device,
		Graphics:   c.queues[QueueGraphics],
		Present:    c.queues[QueuePresent],
		Pool:       c.pool,
		FencePoll:  c.cfg.FencePollNanos,
		Assertions: c.cfg.Assertions,
	}, c.log)
	c.submitter.SetBoundaries(c.onBegin, c.onEnd)
	if c.swapchain != nil {
		return c.swapchain.Create()
	}
	return nil
}

// enabledFeatures enables the required features the device has.
func enabledFeatures(have driver.Features) driver.Features {
	want := RequiredFeatures()
	return driver.Features{
		GeometryShader:           want.GeometryShader && have.GeometryShader,
		DualSrcBlend:             want.DualSrcBlend && have.DualSrcBlend,
		LogicOp:                  want.LogicOp && have.LogicOp,
		DepthClamp:               want.DepthClamp && have.DepthClamp,
		SampleRateShading:        want.SampleRateShading && have.SampleRateShading,
		FragmentStoresAndAtomics: want.FragmentStoresAndAtomics && have.FragmentStoresAndAtomics,
	}
}

func mustPresentModes(cfg Config) []vulkan.PresentMode {
	modes, err := cfg.presentModePreference()
	if err != nil {
		// validate rejected this config already
		panic(err)
	}
	return modes
}

func (c *GraphicsContext) fireRecreated() error {
	if c.onRecreated == nil {
		return nil
	}
	return c.onRecreated()
}

// ReleaseNativeHandles tears down everything bound to the device and the
// window surface. The instance stays alive and InitializeDrawingContext may
// be called again.
func (c *GraphicsContext) ReleaseNativeHandles() error {
	if !c.initialized {
		return nil
	}
	err := c.release()
	c.initialized = false
	return err
}

func (c *GraphicsContext) release() error {
	drv := c.drv
	var errs error
	if c.device != nil {
		errs = errors.CombineErrors(errs, Check(drv.DeviceWaitIdle(c.device), "vkDeviceWaitIdle"))
	}
	if c.swapchain != nil {
		errs = errors.CombineErrors(errs, c.swapchain.Destroy())
		c.swapchain = nil
	}
	if c.submitter != nil {
		c.submitter.Close()
		c.submitter = nil
	}
	if c.pool != vulkan.NullCommandPool {
		drv.DestroyCommandPool(c.device, c.pool)
		c.pool = vulkan.NullCommandPool
	}
	if c.pipelineCache != vulkan.NullPipelineCache {
		if c.cfg.PipelineCachePath != "" {
			if err := SavePipelineCache(drv, c.device, c.pipelineCache, c.cfg.PipelineCachePath); err != nil {
				c.log.Warn("pipeline cache not saved", slog.String("error", err.Error()))
			}
		}
		drv.DestroyPipelineCache(c.device, c.pipelineCache)
		c.pipelineCache = vulkan.NullPipelineCache
	}
	if c.device != nil {
		drv.DestroyDevice(c.device)
		c.device = nil
	}
	if c.surface != vulkan.NullSurface {
		drv.DestroySurface(c.instance, c.surface)
		c.surface = vulkan.NullSurface
	}
	c.queues = [3]vulkan.Queue{}
	c.selection = nil
	return errs
}

// Close releases the drawing context, the validation callbacks and the
// instance. It is safe to call more than once.
func (c *GraphicsContext) Close() error {
	if c.closed {
		return nil
	}
	err := c.release()
	c.initialized = false
	c.debug.Close()
	c.debug = nil
	c.drv.DestroyInstance(c.instance)
	c.instance = nil
	c.closed = true
	return err
}

// SwapBuffers runs one frame of the simple protocol: acquire, wait for the
// frame fence, begin, draw, end and present. draw is not called when the
// swapchain turned out stale; skipped reports that case.
func (c *GraphicsContext) SwapBuffers(draw func(cmd vulkan.CommandBuffer) error) (skipped bool, err error) {
	if !c.initialized {
		return false, ErrNotInitialized
	}
	sub := c.submitter
	timer := startFrame()

	skip, err := sub.Acquire()
	if err != nil || skip {
		if skip {
			c.stats.skipped()
		}
		return skip, err
	}
	if err := c.drawFrame(draw); err != nil {
		if abandonErr := sub.Abandon(); abandonErr != nil {
			err = errors.CombineErrors(err, abandonErr)
		}
		return false, err
	}
	skip, err = sub.Present()
	if err != nil || skip {
		if skip {
			c.stats.skipped()
		}
		return skip, err
	}
	c.stats.drawn(timer)
	return false, nil
}

func (c *GraphicsContext) drawFrame(draw func(cmd vulkan.CommandBuffer) error) error {
	sub := c.submitter
	if err := sub.WaitFrameFence(); err != nil {
		return err
	}
	cmd, err := sub.Begin()
	if err != nil {
		return err
	}
	if draw != nil {
		if err := draw(cmd); err != nil {
			return errors.Wrap(err, "draw")
		}
	}
	return sub.End()
}

// AcquireNextImage acquires an image and waits until its frame may be reused.
// outdated is true when the swapchain was rebuilt and the frame must be skipped.
func (c *GraphicsContext) AcquireNextImage() (imageIndex int, outdated bool, err error) {
	if !c.initialized {
		return 0, false, ErrNotInitialized
	}
	outdated, err = c.submitter.Acquire()
	if err != nil || outdated {
		return 0, outdated, err
	}
	if err := c.submitter.WaitFrameFence(); err != nil {
		return 0, false, err
	}
	return c.CurrentImageIndex(), false, nil
}

func (c *GraphicsContext) PresentImage(imageIndex int) (outdated bool, err error) {
	if !c.initialized {
		return false, ErrNotInitialized
	}
	if c.submitter.Acquired() && imageIndex != c.CurrentImageIndex() {
		return false, violation(c.cfg.Assertions, c.log, ErrNotAcquired, "presenting image %d, acquired %d", imageIndex, c.CurrentImageIndex())
	}
	return c.submitter.Present()
}

func (c *GraphicsContext) SetOnRecreated(onRecreated func() error) { c.onRecreated = onRecreated }

func (c *GraphicsContext) SetOnSubmitBegin(onBegin BoundaryFunc) {
	c.onBegin = onBegin
	if c.submitter != nil {
		c.submitter.SetBoundaries(c.onBegin, c.onEnd)
	}
}

func (c *GraphicsContext) SetOnSubmitEnd(onEnd BoundaryFunc) {
	c.onEnd = onEnd
	if c.submitter != nil {
		c.submitter.SetBoundaries(c.onBegin, c.onEnd)
	}
}

func (c *GraphicsContext) ID() uuid.UUID                   { return c.id }
func (c *GraphicsContext) Instance() vulkan.Instance       { return c.instance }
func (c *GraphicsContext) Debug() *DebugContext            { return c.debug }
func (c *GraphicsContext) Device() vulkan.Device           { return c.device }
func (c *GraphicsContext) Surface() vulkan.Surface         { return c.surface }
func (c *GraphicsContext) Swapchain() *Swapchain           { return c.swapchain }
func (c *GraphicsContext) Submitter() *Submitter           { return c.submitter }
func (c *GraphicsContext) Stats() FrameStats               { return c.stats }
func (c *GraphicsContext) DepthFormat() vulkan.Format      { return c.depthFormat }
func (c *GraphicsContext) CommandPool() vulkan.CommandPool { return c.pool }

func (c *GraphicsContext) PhysicalDevice() vulkan.PhysicalDevice {
	if c.selection == nil {
		return nil
	}
	return c.selection.GPU
}

func (c *GraphicsContext) DeviceProperties() driver.DeviceProperties {
	if c.selection == nil {
		return driver.DeviceProperties{}
	}
	return c.selection.Properties
}

func (c *GraphicsContext) PipelineCache() vulkan.PipelineCache { return c.pipelineCache }

func (c *GraphicsContext) Queue(role QueueRole) vulkan.Queue {
	if role < QueueGraphics || role > QueueTransfer {
		return nil
	}
	return c.queues[role]
}

func (c *GraphicsContext) QueueFamily(role QueueRole) uint32 { return c.families.Index(role) }

// CommandBuffer returns the command buffer of the open submit window, if any.
func (c *GraphicsContext) CommandBuffer() vulkan.CommandBuffer {
	if c.submitter == nil {
		return nil
	}
	return c.submitter.recording
}

func (c *GraphicsContext) RenderPass() vulkan.RenderPass {
	if c.swapchain == nil {
		return vulkan.NullRenderPass
	}
	return c.swapchain.RenderPass()
}

func (c *GraphicsContext) Format() vulkan.Format {
	if c.swapchain == nil {
		return vulkan.FormatUndefined
	}
	return c.swapchain.Format()
}

func (c *GraphicsContext) RenderExtent() vulkan.Extent2D {
	if c.swapchain == nil {
		return vulkan.Extent2D{}
	}
	return c.swapchain.Extent()
}

func (c *GraphicsContext) SwapchainDimensions() SwapchainDimensions {
	extent := c.RenderExtent()
	return SwapchainDimensions{Width: extent.Width, Height: extent.Height, Format: c.Format()}
}

func (c *GraphicsContext) CurrentFrame() int {
	if c.swapchain == nil {
		return 0
	}
	return c.swapchain.cursor.Frame
}

func (c *GraphicsContext) CurrentImageIndex() int {
	if c.swapchain == nil {
		return 0
	}
	return c.swapchain.cursor.Image
}

func (c *GraphicsContext) CurrentImage() vulkan.Image {
	if c.swapchain == nil || c.swapchain.ImageCount() == 0 {
		return vulkan.NullImage
	}
	return c.swapchain.images[c.swapchain.cursor.Image]
}

func (c *GraphicsContext) CurrentImageView() vulkan.ImageView {
	if c.swapchain == nil || c.swapchain.ImageCount() == 0 {
		return vulkan.NullImageView
	}
	return c.swapchain.views[c.swapchain.cursor.Image]
}

func (c *GraphicsContext) FramebufferID() int {
	if c.swapchain == nil {
		return 0
	}
	return c.swapchain.FramebufferID()
}

func (c *GraphicsContext) SwapchainID() int {
	if c.swapchain == nil {
		return 0
	}
	return c.swapchain.ID()
}
