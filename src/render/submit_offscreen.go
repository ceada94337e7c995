package render

import (
	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver"
)

// BeginOffscreen opens the offscreen command buffer. It is independent of the
// swapchain and works on a headless context.
func (s *Submitter) BeginOffscreen() (vulkan.CommandBuffer, error) {
	if err := s.open(ProtocolOffscreen); err != nil {
		return nil, err
	}
	if s.offscreen == nil {
		cmds, ret := s.drv.AllocateCommandBuffers(s.opts.Device, s.opts.Pool, 1)
		if err := Check(ret, "vkAllocateCommandBuffers"); err != nil {
			return nil, err
		}
		s.offscreen = cmds[0]
	} else if err := Check(s.drv.ResetCommandBuffer(s.offscreen), "vkResetCommandBuffer"); err != nil {
		return nil, err
	}
	if err := Check(s.drv.BeginCommandBuffer(s.offscreen, true), "vkBeginCommandBuffer"); err != nil {
		return nil, err
	}
	s.protocol = ProtocolOffscreen
	s.recording = s.offscreen
	return s.offscreen, nil
}

// EndOffscreen submits the offscreen work waiting on wait and signaling
// signal. Completion is awaited on a fence created for this submit alone.
func (s *Submitter) EndOffscreen(wait, signal []vulkan.Semaphore) error {
	if err := s.requireOpen(ProtocolOffscreen); err != nil {
		return err
	}
	cmd := s.recording
	s.recording = nil
	s.protocol = ProtocolIdle
	if err := Check(s.drv.EndCommandBuffer(cmd), "vkEndCommandBuffer"); err != nil {
		return err
	}
	return s.submitVolatile(driver.Submit{
		Wait:       wait,
		WaitStages: stages(len(wait), vulkan.PipelineStageAllCommandsBit),
		Commands:   []vulkan.CommandBuffer{cmd},
		Signal:     signal,
	})
}

func (s *Submitter) submitVolatile(submit driver.Submit) error {
	fence, ret := s.drv.CreateFence(s.opts.Device, false)
	if err := Check(ret, "vkCreateFence"); err != nil {
		return err
	}
	defer s.drv.DestroyFence(s.opts.Device, fence)
	if err := Check(s.drv.QueueSubmit(s.opts.Graphics, submit, fence), "vkQueueSubmit"); err != nil {
		return err
	}
	if err := waitSignaled(s.drv, s.opts.Device, fence, s.opts.FencePoll); err != nil {
		return err
	}
	return Check(s.drv.QueueWaitIdle(s.opts.Graphics), "vkQueueWaitIdle")
}
