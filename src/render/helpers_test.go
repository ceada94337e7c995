package render

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
	"vkframe/src/render/driver/drivertest"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture is a device with a surface on a fake discrete GPU, the state a
// swapchain is created in.
type fixture struct {
	fake    *drivertest.Fake
	gpu     *drivertest.GPU
	device  vulkan.Device
	queue   vulkan.Queue
	surface vulkan.Surface
	pool    vulkan.CommandPool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gpu := drivertest.DiscreteGPU("dgpu")
	fake := drivertest.New(gpu)
	device, ret := fake.CreateDevice(gpu.Handle(), driver.DeviceInfo{QueueFamilies: []uint32{0, 1}})
	require.Equal(t, vulkan.Success, ret)
	pool, ret := fake.CreateCommandPool(device, 0)
	require.Equal(t, vulkan.Success, ret)
	return &fixture{
		fake:    fake,
		gpu:     gpu,
		device:  device,
		queue:   fake.DeviceQueue(device, 0),
		surface: fake.NewSurface(),
		pool:    pool,
	}
}

func (f *fixture) options() SwapchainOptions {
	return SwapchainOptions{
		GPU:           f.gpu.Handle(),
		Device:        f.device,
		Surface:       f.surface,
		Families:      QueueFamilies{Graphics: 0, Present: 0, Transfer: 1},
		Queue:         f.queue,
		PresentModes:  []vulkan.PresentMode{vulkan.PresentModeFifo, vulkan.PresentModeMailbox},
		DefaultExtent: vulkan.Extent2D{Width: 1280, Height: 720},
		Assertions:    true,
	}
}

func (f *fixture) swapchain(t *testing.T) *Swapchain {
	t.Helper()
	sc := NewSwapchain(f.fake, f.options(), quietLog())
	require.NoError(t, sc.Create())
	return sc
}

func (f *fixture) submitter(t *testing.T, sc *Swapchain) *Submitter {
	t.Helper()
	return NewSubmitter(f.fake, sc, SubmitterOptions{
		Device:     f.device,
		Graphics:   f.queue,
		Present:    f.queue,
		Pool:       f.pool,
		Assertions: true,
	}, quietLog())
}

// swapchainObjects counts the live handles a swapchain owns.
func swapchainObjects(fake *drivertest.Fake) int {
	n := 0
	for _, kind := range []string{"swapchain", "image-view", "render-pass", "semaphore", "fence", "command-pool", "command-buffer"} {
		n += fake.Live(kind)
	}
	return n
}
