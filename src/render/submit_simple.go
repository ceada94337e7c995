package render

import (
	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver"
)

// Begin opens the per-image command buffer of the acquired image, moves the
// image to COLOR_ATTACHMENT_OPTIMAL and runs the begin boundary hook.
func (s *Submitter) Begin() (vulkan.CommandBuffer, error) {
	sc, err := s.swapchain()
	if err != nil {
		return nil, err
	}
	if !sc.cursor.acquired {
		return nil, s.violation(ErrNotAcquired, "begin without acquire")
	}
	if err := s.open(ProtocolSimple); err != nil {
		return nil, err
	}

	cmd := sc.commands[sc.cursor.Image]
	if err := Check(s.drv.ResetCommandBuffer(cmd), "vkResetCommandBuffer"); err != nil {
		return nil, err
	}
	if err := Check(s.drv.BeginCommandBuffer(cmd, false), "vkBeginCommandBuffer"); err != nil {
		return nil, err
	}
	s.protocol = ProtocolSimple
	s.recording = cmd
	if err := sc.layouts.Record(cmd, sc.cursor.Image, vulkan.ImageLayoutColorAttachmentOptimal); err != nil {
		return nil, err
	}
	if s.onBegin != nil {
		if err := s.onBegin(cmd); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// End runs the end boundary hook, moves the image to PRESENT_SRC and submits
// the frame: it waits for the acquired image and signals render finished.
func (s *Submitter) End() error {
	if err := s.requireOpen(ProtocolSimple); err != nil {
		return err
	}
	sc := s.sc
	cmd := s.recording
	if s.onEnd != nil {
		if err := s.onEnd(cmd); err != nil {
			return err
		}
	}
	if err := sc.layouts.Record(cmd, sc.cursor.Image, vulkan.ImageLayoutPresentSrc); err != nil {
		return err
	}
	if err := Check(s.drv.EndCommandBuffer(cmd), "vkEndCommandBuffer"); err != nil {
		return err
	}
	s.recording = nil
	s.protocol = ProtocolIdle

	wait := s.acquireWait()
	return s.submit(driver.Submit{
		Wait:       wait,
		WaitStages: stages(len(wait), vulkan.PipelineStageColorAttachmentOutputBit),
		Commands:   []vulkan.CommandBuffer{cmd},
		Signal:     []vulkan.Semaphore{sc.renderFinished[sc.cursor.Frame]},
	}, s.frameFence())
}
