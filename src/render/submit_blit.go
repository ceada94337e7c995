package render

import (
	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver"
)

// BeginBlit opens the acquired image's command buffer for copies into the
// image, which is moved to TRANSFER_DST_OPTIMAL.
func (s *Submitter) BeginBlit() (vulkan.CommandBuffer, error) {
	sc, err := s.swapchain()
	if err != nil {
		return nil, err
	}
	if !sc.cursor.acquired {
		return nil, s.violation(ErrNotAcquired, "begin blit without acquire")
	}
	if err := s.open(ProtocolBlit); err != nil {
		return nil, err
	}

	cmd := sc.commands[sc.cursor.Image]
	if err := Check(s.drv.ResetCommandBuffer(cmd), "vkResetCommandBuffer"); err != nil {
		return nil, err
	}
	if err := Check(s.drv.BeginCommandBuffer(cmd, true), "vkBeginCommandBuffer"); err != nil {
		return nil, err
	}
	s.protocol = ProtocolBlit
	s.recording = cmd
	if err := sc.layouts.Record(cmd, sc.cursor.Image, vulkan.ImageLayoutTransferDstOptimal); err != nil {
		return nil, err
	}
	return cmd, nil
}

// EndBlit submits the blit after the acquired image and every semaphore in
// waits, then presents. skip is reported as by Present.
func (s *Submitter) EndBlit(waits []vulkan.Semaphore) (skip bool, err error) {
	if err := s.requireOpen(ProtocolBlit); err != nil {
		return false, err
	}
	sc := s.sc
	cmd := s.recording
	if err := sc.layouts.Record(cmd, sc.cursor.Image, vulkan.ImageLayoutPresentSrc); err != nil {
		return false, err
	}
	if err := Check(s.drv.EndCommandBuffer(cmd), "vkEndCommandBuffer"); err != nil {
		return false, err
	}
	s.recording = nil
	s.protocol = ProtocolIdle

	wait := append(s.acquireWait(), waits...)
	err = s.submit(driver.Submit{
		Wait:       wait,
		WaitStages: stages(len(wait), vulkan.PipelineStageTransferBit),
		Commands:   []vulkan.CommandBuffer{cmd},
		Signal:     []vulkan.Semaphore{sc.renderFinished[sc.cursor.Frame]},
	}, s.frameFence())
	if err != nil {
		return false, err
	}
	return s.Present()
}
