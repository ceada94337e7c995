package render

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver/drivertest"
)

type fakeWindow struct {
	fake     *drivertest.Fake
	surfaces int
	err      error
}

func (w *fakeWindow) RequiredInstanceExtensions() []string {
	return []string{"VK_KHR_surface\x00", "VK_KHR_xcb_surface\x00"}
}

func (w *fakeWindow) CreateSurface(instance vulkan.Instance) (vulkan.Surface, error) {
	if w.err != nil {
		return vulkan.NullSurface, w.err
	}
	w.surfaces++
	return w.fake.NewSurface(), nil
}

func newFake(gpus ...*drivertest.GPU) *drivertest.Fake {
	if len(gpus) == 0 {
		gpus = []*drivertest.GPU{drivertest.DiscreteGPU("dgpu")}
	}
	fake := drivertest.New(gpus...)
	fake.AvailableExtensions = []string{"VK_KHR_surface", "VK_KHR_xcb_surface", DebugReportExtension}
	fake.AvailableLayers = []string{ValidationLayer}
	return fake
}

func newContext(t *testing.T, fake *drivertest.Fake, window Window, cfg Config) *GraphicsContext {
	t.Helper()
	ctx, err := New(fake, cfg, Options{Window: window, Logger: quietLog()})
	require.NoError(t, err)
	return ctx
}

func lastCall(calls []string, method string) int {
	at := -1
	for i, c := range calls {
		if c == method {
			at = i
		}
	}
	return at
}

func TestContextLifecycle(t *testing.T) {
	fake := newFake()
	window := &fakeWindow{fake: fake}
	ctx := newContext(t, fake, window, DefaultConfig())

	require.Len(t, fake.Instances, 1)
	require.Equal(t, []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}, fake.Instances[0].Extensions)
	require.Empty(t, fake.Instances[0].Layers)
	require.False(t, fake.Instances[0].Portability)
	require.Nil(t, ctx.Debug())

	_, err := ctx.SwapBuffers(nil)
	require.True(t, errors.Is(err, ErrNotInitialized))

	require.NoError(t, ctx.InitializeDrawingContext())
	require.NoError(t, ctx.InitializeDrawingContext())
	require.Equal(t, 1, fake.Called("CreateDevice"))
	require.Equal(t, 1, window.surfaces)

	info := fake.Devices[0].Info
	require.Equal(t, []uint32{0, 1}, info.QueueFamilies)
	require.Equal(t, []string{SwapchainExtension}, info.Extensions)
	require.Equal(t, RequiredFeatures(), info.Features)

	require.NotNil(t, ctx.Device())
	require.Equal(t, fake.GPUs[0].Handle(), ctx.PhysicalDevice())
	require.Equal(t, "dgpu", ctx.DeviceProperties().Name)
	require.NotEqual(t, vulkan.NullRenderPass, ctx.RenderPass())
	require.NotEqual(t, vulkan.NullPipelineCache, ctx.PipelineCache())
	require.NotNil(t, ctx.Queue(QueueTransfer))
	require.Equal(t, uint32(1), ctx.QueueFamily(QueueTransfer))
	require.Equal(t, vulkan.FormatD32SfloatS8Uint, ctx.DepthFormat())
	require.Equal(t, SwapchainDimensions{Width: 800, Height: 600, Format: vulkan.FormatB8g8r8a8Unorm}, ctx.SwapchainDimensions())
	require.Equal(t, 1, ctx.SwapchainID())
	require.Nil(t, ctx.CommandBuffer())

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
	require.Zero(t, fake.Live(""))
	require.Empty(t, fake.Misuse)

	calls := fake.Calls
	require.Less(t, lastCall(calls, "DestroySwapchain"), lastCall(calls, "DestroyCommandPool"))
	require.Less(t, lastCall(calls, "DestroyCommandPool"), lastCall(calls, "DestroyPipelineCache"))
	require.Less(t, lastCall(calls, "DestroyPipelineCache"), lastCall(calls, "DestroyDevice"))
	require.Less(t, lastCall(calls, "DestroyDevice"), lastCall(calls, "DestroySurface"))
	require.Less(t, lastCall(calls, "DestroySurface"), lastCall(calls, "DestroyInstance"))

	require.Error(t, ctx.InitializeDrawingContext())
}

func TestContextHeadless(t *testing.T) {
	fake := newFake()
	ctx := newContext(t, fake, nil, DefaultConfig())
	require.Empty(t, fake.Instances[0].Extensions)

	require.NoError(t, ctx.InitializeDrawingContext())
	require.Nil(t, ctx.Swapchain())
	require.Empty(t, fake.Devices[0].Info.Extensions)
	require.Equal(t, vulkan.NullRenderPass, ctx.RenderPass())
	require.Equal(t, SwapchainDimensions{}, ctx.SwapchainDimensions())
	require.Equal(t, ctx.QueueFamily(QueueGraphics), ctx.QueueFamily(QueuePresent))

	_, err := ctx.SwapBuffers(nil)
	require.True(t, errors.Is(err, ErrNotInitialized))

	sub := ctx.Submitter()
	cmd, err := sub.BeginOffscreen()
	require.NoError(t, err)
	require.Equal(t, cmd, ctx.CommandBuffer())
	require.NoError(t, sub.EndOffscreen(nil, nil))

	require.NoError(t, ctx.Close())
	require.Zero(t, fake.Live(""))
	require.Empty(t, fake.Misuse)
}

func TestContextSwapBuffers(t *testing.T) {
	fake := newFake()
	ctx := newContext(t, fake, &fakeWindow{fake: fake}, DefaultConfig())

	var hooks []string
	ctx.SetOnSubmitBegin(func(cmd vulkan.CommandBuffer) error {
		hooks = append(hooks, "begin")
		return nil
	})
	require.NoError(t, ctx.InitializeDrawingContext())
	ctx.SetOnSubmitEnd(func(cmd vulkan.CommandBuffer) error {
		hooks = append(hooks, "end")
		return nil
	})

	for i := 0; i < 4; i++ {
		skipped, err := ctx.SwapBuffers(func(cmd vulkan.CommandBuffer) error {
			require.Equal(t, cmd, ctx.CommandBuffer())
			require.Equal(t, i%MaxFramesInFlight, ctx.CurrentFrame())
			require.Equal(t, i%3, ctx.CurrentImageIndex())
			require.Equal(t, ctx.Swapchain().Views()[i%3], ctx.CurrentImageView())
			hooks = append(hooks, "draw")
			return nil
		})
		require.NoError(t, err)
		require.False(t, skipped)
	}
	require.Equal(t, []string{"begin", "draw", "end"}, hooks[:3])
	require.Len(t, hooks, 12)
	require.Len(t, fake.Presents, 4)
	require.Equal(t, 4, ctx.Stats().Frames)
	require.Zero(t, ctx.Stats().Skipped)

	require.NoError(t, ctx.Close())
	require.Zero(t, fake.Live(""))
}

func TestContextSwapBuffersStale(t *testing.T) {
	fake := newFake()
	ctx := newContext(t, fake, &fakeWindow{fake: fake}, DefaultConfig())
	recreated := 0
	ctx.SetOnRecreated(func() error {
		recreated++
		return nil
	})
	require.NoError(t, ctx.InitializeDrawingContext())
	require.Zero(t, recreated)

	fake.AcquireResults = []vulkan.Result{vulkan.ErrorOutOfDate}
	drawn := 0
	draw := func(cmd vulkan.CommandBuffer) error {
		drawn++
		return nil
	}
	skipped, err := ctx.SwapBuffers(draw)
	require.NoError(t, err)
	require.True(t, skipped)
	require.Zero(t, drawn)
	require.Equal(t, 1, fake.Called("DestroySwapchain"))
	require.Equal(t, 2, fake.Called("CreateSwapchain"))
	require.Equal(t, 1, recreated)
	require.Equal(t, 2, ctx.SwapchainID())
	require.Equal(t, 1, ctx.Stats().Skipped)

	skipped, err = ctx.SwapBuffers(draw)
	require.NoError(t, err)
	require.False(t, skipped)
	require.Equal(t, 1, drawn)
	require.NoError(t, ctx.Close())
}

func TestContextDrawError(t *testing.T) {
	fake := newFake()
	ctx := newContext(t, fake, &fakeWindow{fake: fake}, DefaultConfig())
	require.NoError(t, ctx.InitializeDrawingContext())

	_, err := ctx.SwapBuffers(func(cmd vulkan.CommandBuffer) error {
		return errors.New("out of vertices")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of vertices")
	require.False(t, ctx.Submitter().Acquired())
	require.Empty(t, fake.Presents)

	skipped, err := ctx.SwapBuffers(nil)
	require.NoError(t, err)
	require.False(t, skipped)
	require.NoError(t, ctx.Close())
	require.Empty(t, fake.Misuse)
}

func TestContextAcquirePresentImage(t *testing.T) {
	fake := newFake()
	ctx := newContext(t, fake, &fakeWindow{fake: fake}, DefaultConfig())
	require.NoError(t, ctx.InitializeDrawingContext())

	index, outdated, err := ctx.AcquireNextImage()
	require.NoError(t, err)
	require.False(t, outdated)
	require.Equal(t, 0, index)
	require.Equal(t, ctx.Swapchain().Images()[0], ctx.CurrentImage())

	// the frame fence was already waited on and reset by AcquireNextImage
	waits := len(fake.Waits)
	require.NoError(t, ctx.Submitter().WaitFrameFence())
	require.Len(t, fake.Waits, waits)

	require.Panics(t, func() { _, _ = ctx.PresentImage(1) })
	outdated, err = ctx.PresentImage(index)
	require.NoError(t, err)
	require.False(t, outdated)
	require.Equal(t, 1, ctx.CurrentFrame())
	require.Equal(t, 11, ctx.FramebufferID())
	require.NoError(t, ctx.Close())
	require.Empty(t, fake.Misuse)
}

func TestContextReleaseNativeHandles(t *testing.T) {
	fake := newFake()
	window := &fakeWindow{fake: fake}
	ctx := newContext(t, fake, window, DefaultConfig())
	require.NoError(t, ctx.InitializeDrawingContext())

	require.NoError(t, ctx.ReleaseNativeHandles())
	require.Equal(t, 1, fake.Live(""))
	require.Equal(t, 1, fake.Live("instance"))
	require.Nil(t, ctx.Device())

	require.NoError(t, ctx.InitializeDrawingContext())
	require.Equal(t, 2, window.surfaces)
	require.Equal(t, 2, fake.Called("CreateDevice"))
	_, err := ctx.SwapBuffers(nil)
	require.NoError(t, err)

	require.NoError(t, ctx.Close())
	require.Zero(t, fake.Live(""))
	require.Empty(t, fake.Misuse)
}

func TestContextInitFailureReleases(t *testing.T) {
	for _, method := range []string{"CreateDevice", "CreateCommandPool", "CreatePipelineCache", "CreateSwapchain", "CreateRenderPass"} {
		t.Run(method, func(t *testing.T) {
			fake := newFake()
			ctx := newContext(t, fake, &fakeWindow{fake: fake}, DefaultConfig())
			fake.FailNext(method, vulkan.ErrorInitializationFailed)

			err := ctx.InitializeDrawingContext()
			require.Error(t, err)
			ret, ok := ResultOf(err)
			require.True(t, ok)
			require.Equal(t, vulkan.ErrorInitializationFailed, ret)
			require.Equal(t, 1, fake.Live(""))
			require.Empty(t, fake.Misuse)

			require.NoError(t, ctx.InitializeDrawingContext())
			require.NoError(t, ctx.Close())
			require.Zero(t, fake.Live(""))
		})
	}
}

func TestContextNoSuitableDevice(t *testing.T) {
	gpu := drivertest.DiscreteGPU("no-swapchain")
	gpu.Extensions = nil
	fake := newFake(gpu)
	ctx := newContext(t, fake, &fakeWindow{fake: fake}, DefaultConfig())

	err := ctx.InitializeDrawingContext()
	require.True(t, errors.Is(err, ErrNoSuitableDevice))
	require.Zero(t, fake.Live("surface"))
	require.NoError(t, ctx.Close())
}

func TestContextSurfaceError(t *testing.T) {
	fake := newFake()
	window := &fakeWindow{fake: fake, err: errors.New("no display")}
	ctx := newContext(t, fake, window, DefaultConfig())
	require.Error(t, ctx.InitializeDrawingContext())
	require.Zero(t, fake.Called("CreateDevice"))
	require.NoError(t, ctx.Close())
}

func TestContextMissingWindowExtension(t *testing.T) {
	fake := newFake()
	fake.AvailableExtensions = nil
	_, err := New(fake, DefaultConfig(), Options{Window: &fakeWindow{fake: fake}, Logger: quietLog()})
	require.True(t, errors.Is(err, ErrExtensionNotPresent))
	require.Zero(t, fake.Live(""))
}

func TestContextDebug(t *testing.T) {
	fake := newFake()
	cfg := DefaultConfig()
	cfg.Debug = true
	cfg.DebugChannel = DebugBoth
	ctx := newContext(t, fake, &fakeWindow{fake: fake}, cfg)

	// debug utils is not available, only the report channel is installed
	require.Equal(t, []string{"VK_KHR_surface", "VK_KHR_xcb_surface", DebugReportExtension}, fake.Instances[0].Extensions)
	require.Equal(t, []string{ValidationLayer}, fake.Instances[0].Layers)
	require.NotNil(t, ctx.Debug())
	require.Equal(t, 1, fake.Live("debug-report"))
	require.Zero(t, fake.Called("CreateDebugMessenger"))

	require.NoError(t, ctx.InitializeDrawingContext())
	require.Equal(t, []string{ValidationLayer}, fake.Devices[0].Info.Layers)

	require.NoError(t, ctx.Close())
	require.Zero(t, fake.Live(""))
}

func TestContextPipelineCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.bin")
	cfg := DefaultConfig()
	cfg.PipelineCachePath = path

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, PipelineCacheHeader{
		Length:   pipelineCacheHeaderSize,
		Version:  PipelineCacheHeaderVersionOne,
		VendorID: 0x10de,
		DeviceID: 0x2204,
		UUID:     uuid.UUID{},
	}))
	buf.WriteString("compiled pipelines")

	fake := newFake()
	ctx := newContext(t, fake, nil, cfg)
	require.NoError(t, ctx.InitializeDrawingContext())
	require.Empty(t, fake.CacheSeed(ctx.PipelineCache()))
	fake.SetCacheData(ctx.PipelineCache(), buf.Bytes())
	require.NoError(t, ctx.Close())

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, buf.Bytes(), saved)

	fake = newFake()
	ctx = newContext(t, fake, nil, cfg)
	require.NoError(t, ctx.InitializeDrawingContext())
	require.Equal(t, buf.Bytes(), fake.CacheSeed(ctx.PipelineCache()))
	require.NoError(t, ctx.Close())
}
