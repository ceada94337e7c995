package render

import (
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
)

// QueueRole indexes the queues a context exposes.
type QueueRole int

const (
	QueueGraphics QueueRole = 0
	QueuePresent  QueueRole = 1
	QueueTransfer QueueRole = 2
)

func (r QueueRole) String() string {
	switch r {
	case QueueGraphics:
		return "graphics"
	case QueuePresent:
		return "present"
	case QueueTransfer:
		return "transfer"
	}
	return "unknown"
}

// QueueFamilies holds the family index chosen for every role.
type QueueFamilies struct {
	Graphics uint32
	Present  uint32
	Transfer uint32
}

func (q QueueFamilies) Index(role QueueRole) uint32 {
	switch role {
	case QueuePresent:
		return q.Present
	case QueueTransfer:
		return q.Transfer
	}
	return q.Graphics
}

// Unique lists each family once, in role order.
func (q QueueFamilies) Unique() []uint32 {
	out := []uint32{q.Graphics}
	for _, f := range []uint32{q.Present, q.Transfer} {
		dup := false
		for _, o := range out {
			if o == f {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, f)
		}
	}
	return out
}

type QueueResolver struct {
	drv driver.PhysicalDeviceDriver
	log *slog.Logger
	// AllowCombinedTransfer falls back to a graphics-capable family for transfers.
	AllowCombinedTransfer bool
}

func NewQueueResolver(drv driver.PhysicalDeviceDriver, allowCombinedTransfer bool, log *slog.Logger) *QueueResolver {
	return &QueueResolver{drv: drv, log: orDefault(log), AllowCombinedTransfer: allowCombinedTransfer}
}

func hasFlag(family driver.QueueFamily, bit vulkan.QueueFlagBits) bool {
	return family.Flags&vulkan.QueueFlags(bit) != 0
}

// GraphicsFamily returns the first family exposing graphics.
func (r *QueueResolver) GraphicsFamily(gpu vulkan.PhysicalDevice) (uint32, error) {
	for i, family := range r.drv.QueueFamilies(gpu) {
		if hasFlag(family, vulkan.QueueGraphicsBit) {
			return uint32(i), nil
		}
	}
	return 0, ErrNoGraphicsQueue
}

// TransferFamily returns the first family with transfer but not graphics.
func (r *QueueResolver) TransferFamily(gpu vulkan.PhysicalDevice) (uint32, error) {
	families := r.drv.QueueFamilies(gpu)
	for i, family := range families {
		if hasFlag(family, vulkan.QueueTransferBit) && !hasFlag(family, vulkan.QueueGraphicsBit) {
			return uint32(i), nil
		}
	}
	if !r.AllowCombinedTransfer {
		return 0, ErrNoTransferQueue
	}
	// Graphics families implicitly support transfer.
	for i, family := range families {
		if hasFlag(family, vulkan.QueueTransferBit) || hasFlag(family, vulkan.QueueGraphicsBit) {
			r.log.Warn("no dedicated transfer queue family, sharing", slog.Int("family", i))
			return uint32(i), nil
		}
	}
	return 0, ErrNoTransferQueue
}

// PresentFamily returns the first family that can present to surface.
func (r *QueueResolver) PresentFamily(gpu vulkan.PhysicalDevice, surface vulkan.Surface) (uint32, error) {
	for i := range r.drv.QueueFamilies(gpu) {
		ok, ret := r.drv.SurfaceSupport(gpu, uint32(i), surface)
		if err := Check(ret, "vkGetPhysicalDeviceSurfaceSupportKHR"); err != nil {
			return 0, err
		}
		if ok {
			return uint32(i), nil
		}
	}
	return 0, ErrNoPresentQueue
}

// Resolve picks every role. Without a surface the present role shares the graphics family.
func (r *QueueResolver) Resolve(gpu vulkan.PhysicalDevice, surface vulkan.Surface) (QueueFamilies, error) {
	var q QueueFamilies
	var err error
	if q.Graphics, err = r.GraphicsFamily(gpu); err != nil {
		return q, err
	}
	if q.Transfer, err = r.TransferFamily(gpu); err != nil {
		return q, err
	}
	q.Present = q.Graphics
	if surface != vulkan.NullSurface {
		if q.Present, err = r.PresentFamily(gpu, surface); err != nil {
			return q, err
		}
	}
	r.log.Debug("resolved queue families",
		slog.Int("graphics", int(q.Graphics)),
		slog.Int("present", int(q.Present)),
		slog.Int("transfer", int(q.Transfer)))
	return q, nil
}
