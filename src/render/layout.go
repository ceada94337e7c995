package render

import (
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
)

// legalTransition reports whether a swapchain image may move from one layout
// to the other. The steady cycle is UNDEFINED, COLOR_ATTACHMENT, PRESENT_SRC,
// COLOR_ATTACHMENT and so on, with TRANSFER_DST as a detour for blits.
func legalTransition(from, to vulkan.ImageLayout) bool {
	switch from {
	case vulkan.ImageLayoutUndefined:
		return to == vulkan.ImageLayoutColorAttachmentOptimal
	case vulkan.ImageLayoutColorAttachmentOptimal:
		return to == vulkan.ImageLayoutPresentSrc || to == vulkan.ImageLayoutTransferDstOptimal
	case vulkan.ImageLayoutPresentSrc, vulkan.ImageLayoutTransferDstOptimal:
		return to != vulkan.ImageLayoutUndefined && to != from
	}
	return false
}

// oneShotSync are the synchronization objects a one-shot transition submit
// waits on, signals and fences.
type oneShotSync struct {
	wait   []vulkan.Semaphore
	signal []vulkan.Semaphore
	fence  vulkan.Fence
}

// LayoutTracker remembers the last layout of every swapchain image and emits
// the barriers that move it.
type LayoutTracker struct {
	drv        driver.DeviceDriver
	device     vulkan.Device
	queue      vulkan.Queue
	assertions bool
	log        *slog.Logger

	pool    vulkan.CommandPool
	images  []vulkan.Image
	layouts []vulkan.ImageLayout
}

func newLayoutTracker(drv driver.DeviceDriver, device vulkan.Device, queue vulkan.Queue, assertions bool, log *slog.Logger) *LayoutTracker {
	return &LayoutTracker{drv: drv, device: device, queue: queue, assertions: assertions, log: log}
}

// Init moves every image from UNDEFINED to COLOR_ATTACHMENT_OPTIMAL, one
// submit per image.
func (t *LayoutTracker) Init(pool vulkan.CommandPool, images []vulkan.Image) error {
	t.pool = pool
	t.images = images
	t.layouts = make([]vulkan.ImageLayout, len(images))
	for i := range t.layouts {
		t.layouts[i] = vulkan.ImageLayoutUndefined
	}
	for i := range images {
		if err := t.transition(i, vulkan.ImageLayoutColorAttachmentOptimal, oneShotSync{}); err != nil {
			return err
		}
	}
	return nil
}

func (t *LayoutTracker) Reset() {
	t.pool = vulkan.NullCommandPool
	t.images = nil
	t.layouts = nil
}

// Layout returns the tracked layout of image i.
func (t *LayoutTracker) Layout(i int) vulkan.ImageLayout {
	if i < 0 || i >= len(t.layouts) {
		return vulkan.ImageLayoutUndefined
	}
	return t.layouts[i]
}

func (t *LayoutTracker) Len() int { return len(t.layouts) }

// Record writes the barrier moving image i to layout into the open command
// buffer cmd. It is a no-op when the image is already there.
func (t *LayoutTracker) Record(cmd vulkan.CommandBuffer, i int, layout vulkan.ImageLayout) error {
	if i < 0 || i >= len(t.layouts) {
		return violation(t.assertions, t.log, ErrInvalidLayout, "image index %d out of range [0,%d)", i, len(t.layouts))
	}
	from := t.layouts[i]
	if from == layout {
		return nil
	}
	if !legalTransition(from, layout) {
		return violation(t.assertions, t.log, ErrInvalidLayout, "illegal layout transition %d -> %d for image %d", from, layout, i)
	}
	t.drv.CmdPipelineBarrier(cmd, layoutBarrier(t.images[i], from, layout))
	t.layouts[i] = layout
	return nil
}

// EnsurePresentLayout leaves image i in PRESENT_SRC. Only COLOR_ATTACHMENT_OPTIMAL
// may be moved there.
func (t *LayoutTracker) EnsurePresentLayout(i int) error {
	return t.ensurePresent(i, oneShotSync{})
}

func (t *LayoutTracker) ensurePresent(i int, sync oneShotSync) error {
	switch t.Layout(i) {
	case vulkan.ImageLayoutPresentSrc:
		return nil
	case vulkan.ImageLayoutColorAttachmentOptimal:
		return t.transition(i, vulkan.ImageLayoutPresentSrc, sync)
	}
	return violation(t.assertions, t.log, ErrInvalidLayout, "image %d in layout %d cannot be presented", i, t.Layout(i))
}

// EnsureAttachmentLayout returns image i to COLOR_ATTACHMENT_OPTIMAL after an
// abandoned frame.
func (t *LayoutTracker) EnsureAttachmentLayout(i int) error {
	return t.ensureAttachment(i, oneShotSync{})
}

func (t *LayoutTracker) ensureAttachment(i int, sync oneShotSync) error {
	if t.Layout(i) == vulkan.ImageLayoutColorAttachmentOptimal && len(sync.wait) == 0 && len(sync.signal) == 0 && sync.fence == vulkan.NullFence {
		return nil
	}
	return t.transition(i, vulkan.ImageLayoutColorAttachmentOptimal, sync)
}

// transition records the barrier into a throwaway command buffer, submits it
// and waits for the queue to drain.
func (t *LayoutTracker) transition(i int, layout vulkan.ImageLayout, sync oneShotSync) error {
	cmds, ret := t.drv.AllocateCommandBuffers(t.device, t.pool, 1)
	if err := Check(ret, "vkAllocateCommandBuffers"); err != nil {
		return err
	}
	defer t.drv.FreeCommandBuffers(t.device, t.pool, cmds)
	cmd := cmds[0]

	if err := Check(t.drv.BeginCommandBuffer(cmd, true), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	if err := t.Record(cmd, i, layout); err != nil {
		return err
	}
	if err := Check(t.drv.EndCommandBuffer(cmd), "vkEndCommandBuffer"); err != nil {
		return err
	}
	stages := make([]vulkan.PipelineStageFlags, len(sync.wait))
	for j := range stages {
		stages[j] = vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)
	}
	submit := driver.Submit{Wait: sync.wait, WaitStages: stages, Commands: cmds, Signal: sync.signal}
	if err := Check(t.drv.QueueSubmit(t.queue, submit, sync.fence), "vkQueueSubmit"); err != nil {
		return err
	}
	return Check(t.drv.QueueWaitIdle(t.queue), "vkQueueWaitIdle")
}

func layoutAccess(layout vulkan.ImageLayout) vulkan.AccessFlags {
	switch layout {
	case vulkan.ImageLayoutColorAttachmentOptimal:
		return vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit)
	case vulkan.ImageLayoutTransferDstOptimal:
		return vulkan.AccessFlags(vulkan.AccessTransferWriteBit)
	case vulkan.ImageLayoutPresentSrc:
		return vulkan.AccessFlags(vulkan.AccessMemoryReadBit)
	}
	return 0
}

func layoutStage(layout vulkan.ImageLayout) vulkan.PipelineStageFlags {
	switch layout {
	case vulkan.ImageLayoutColorAttachmentOptimal:
		return vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)
	case vulkan.ImageLayoutTransferDstOptimal:
		return vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit)
	case vulkan.ImageLayoutPresentSrc:
		return vulkan.PipelineStageFlags(vulkan.PipelineStageBottomOfPipeBit)
	}
	return vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit)
}

func layoutBarrier(image vulkan.Image, from, to vulkan.ImageLayout) driver.Barrier {
	b := driver.Barrier{
		Image:     image,
		OldLayout: from,
		NewLayout: to,
		SrcAccess: layoutAccess(from),
		DstAccess: layoutAccess(to),
		SrcStage:  layoutStage(from),
		DstStage:  layoutStage(to),
	}
	if from == vulkan.ImageLayoutPresentSrc {
		// Leaving PRESENT_SRC chains with the acquire semaphore wait, which
		// happens at the destination stage.
		b.SrcAccess = 0
		b.SrcStage = b.DstStage
	}
	if to == vulkan.ImageLayoutPresentSrc {
		b.DstAccess = 0
	}
	return b
}
