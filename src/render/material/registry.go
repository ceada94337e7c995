package material

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/singleflight"

	"vkframe/src/render"
	"vkframe/src/render/driver"
)

// Registry shares descriptor set layouts between materials, keyed by binding
// pattern. It is safe for concurrent use; concurrent first lookups of a
// pattern create the layout once.
type Registry struct {
	drv    driver.DeviceDriver
	device vulkan.Device
	log    *slog.Logger

	mu      sync.Mutex
	layouts map[string]vulkan.DescriptorSetLayout
	closed  bool
	group   singleflight.Group
}

func NewRegistry(drv driver.DeviceDriver, device vulkan.Device, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		drv:     drv,
		device:  device,
		log:     log.With(slog.String("component", "material-registry")),
		layouts: map[string]vulkan.DescriptorSetLayout{},
	}
}

func (r *Registry) lookup(pattern string) (vulkan.DescriptorSetLayout, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false, errors.New("registry destroyed")
	}
	layout, ok := r.layouts[pattern]
	return layout, ok, nil
}

// Layout returns the descriptor set layout for pattern, creating it on first use.
func (r *Registry) Layout(pattern string) (vulkan.DescriptorSetLayout, error) {
	if layout, ok, err := r.lookup(pattern); ok || err != nil {
		return layout, err
	}
	v, err, _ := r.group.Do(pattern, func() (interface{}, error) {
		if layout, ok, err := r.lookup(pattern); ok || err != nil {
			return layout, err
		}
		bindings, err := ParsePattern(pattern)
		if err != nil {
			return nil, err
		}
		layout, ret := r.drv.CreateDescriptorSetLayout(r.device, bindings)
		if err := render.Check(ret, "vkCreateDescriptorSetLayout"); err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			r.drv.DestroyDescriptorSetLayout(r.device, layout)
			return nil, errors.New("registry destroyed")
		}
		r.layouts[pattern] = layout
		r.log.Debug("descriptor set layout created", slog.String("pattern", pattern))
		return layout, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "descriptor set layout %q", pattern)
	}
	return v.(vulkan.DescriptorSetLayout), nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.layouts)
}

// Destroy frees every layout. Later lookups fail.
func (r *Registry) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for pattern, layout := range r.layouts {
		r.drv.DestroyDescriptorSetLayout(r.device, layout)
		delete(r.layouts, pattern)
	}
	r.closed = true
}
