// Command vkframe opens a window and clears it every frame through the
// render context, rebuilding its framebuffers whenever the swapchain is.
package main

import (
	"flag"
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render"
	"vkframe/src/render/driver"
)

func init() {
	// glfw must stay on the main thread.
	runtime.LockOSThread()
}

// glfwWindow adapts a glfw window to render.Window.
type glfwWindow struct {
	*glfw.Window
}

func (w glfwWindow) RequiredInstanceExtensions() []string {
	return w.GetRequiredInstanceExtensions()
}

func (w glfwWindow) CreateSurface(instance vulkan.Instance) (vulkan.Surface, error) {
	addr, err := w.CreateWindowSurface(instance, nil)
	if err != nil {
		return vulkan.NullSurface, errors.Wrap(err, "glfw surface")
	}
	return vulkan.SurfaceFromPointer(addr), nil
}

// framebuffers tracks one framebuffer per swapchain image view.
type framebuffers struct {
	drv     driver.DeviceDriver
	ctx     *render.GraphicsContext
	handles []vulkan.Framebuffer
}

func (f *framebuffers) rebuild() error {
	f.destroy()
	sc := f.ctx.Swapchain()
	for _, view := range sc.Views() {
		fb, ret := f.drv.CreateFramebuffer(f.ctx.Device(), sc.RenderPass(), []vulkan.ImageView{view}, sc.Extent())
		if err := render.Check(ret, "vkCreateFramebuffer"); err != nil {
			return err
		}
		f.handles = append(f.handles, fb)
	}
	return nil
}

func (f *framebuffers) destroy() {
	for _, fb := range f.handles {
		f.drv.DestroyFramebuffer(f.ctx.Device(), fb)
	}
	f.handles = nil
}

func main() {
	configPath := flag.String("config", "", "TOML configuration file")
	verbose := flag.Bool("v", false, "log debug messages")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, log); err != nil {
		log.Error("vkframe failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	cfg := render.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = render.LoadConfig(configPath); err != nil {
			return err
		}
	}

	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "glfw init")
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(int(cfg.DefaultWidth), int(cfg.DefaultHeight), cfg.ApplicationName, nil, nil)
	if err != nil {
		return errors.Wrap(err, "create window")
	}
	defer window.Destroy()

	drv, err := driver.NewVulkan(glfw.GetVulkanGetInstanceProcAddress())
	if err != nil {
		return err
	}
	ctx, err := render.New(drv, cfg, render.Options{Window: glfwWindow{window}, Logger: log})
	if err != nil {
		return err
	}
	defer func() {
		if err := ctx.Close(); err != nil {
			log.Warn("close", slog.String("error", err.Error()))
		}
	}()

	fbs := &framebuffers{drv: drv, ctx: ctx}
	ctx.SetOnRecreated(fbs.rebuild)
	ctx.SetOnSubmitBegin(func(cmd vulkan.CommandBuffer) error {
		drv.CmdBeginRenderPass(cmd, ctx.RenderPass(), fbs.handles[ctx.CurrentImageIndex()], ctx.RenderExtent(), cfg.ClearColor)
		return nil
	})
	ctx.SetOnSubmitEnd(func(cmd vulkan.CommandBuffer) error {
		drv.CmdEndRenderPass(cmd)
		return nil
	})

	if err := ctx.InitializeDrawingContext(); err != nil {
		return err
	}
	// The first create does not fire the recreated callback.
	if err := fbs.rebuild(); err != nil {
		return err
	}
	defer fbs.destroy()

	for !window.ShouldClose() {
		glfw.PollEvents()
		if _, err := ctx.SwapBuffers(nil); err != nil {
			return err
		}
	}
	stats := ctx.Stats()
	log.Info("done",
		slog.Int("frames", stats.Frames),
		slog.Int("skipped", stats.Skipped),
		slog.Duration("avg", stats.Average()))
	return nil
}
