package render

import (
	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver"
)

// onetimeBatch collects the chunks submitted between the first BeginOnetime
// of a frame and FinalizeOnetime.
type onetimeBatch struct {
	pool       vulkan.CommandPool
	commands   []vulkan.CommandBuffer
	semaphores []vulkan.Semaphore
}

func (b *onetimeBatch) last() vulkan.Semaphore {
	if len(b.semaphores) == 0 {
		return vulkan.NullSemaphore
	}
	return b.semaphores[len(b.semaphores)-1]
}

// OnetimePending returns how many chunk command buffers await finalization.
func (s *Submitter) OnetimePending() int { return len(s.batch.commands) }

func (s *Submitter) onetimePool() vulkan.CommandPool {
	if s.sc != nil && s.sc.live {
		return s.sc.pool
	}
	return s.opts.Pool
}

// BeginOnetime opens a new chunk command buffer. Chunks may be opened again
// after EndOnetime until FinalizeOnetime closes the frame. When an image is
// acquired the first chunk moves it to COLOR_ATTACHMENT_OPTIMAL.
func (s *Submitter) BeginOnetime() (vulkan.CommandBuffer, error) {
	if s.protocol != ProtocolOnetime || s.recording != nil {
		if err := s.open(ProtocolOnetime); err != nil {
			return nil, err
		}
		s.batch.pool = s.onetimePool()
	}

	cmds, ret := s.drv.AllocateCommandBuffers(s.opts.Device, s.batch.pool, 1)
	if err := Check(ret, "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	cmd := cmds[0]
	s.batch.commands = append(s.batch.commands, cmd)
	s.protocol = ProtocolOnetime
	if err := Check(s.drv.BeginCommandBuffer(cmd, true), "vkBeginCommandBuffer"); err != nil {
		return nil, err
	}
	s.recording = cmd
	if len(s.batch.commands) == 1 && s.Acquired() {
		if err := s.sc.layouts.Record(cmd, s.sc.cursor.Image, vulkan.ImageLayoutColorAttachmentOptimal); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// EndOnetime submits the open chunk. It waits on the previous chunk's
// semaphore, or on the acquired image for the first chunk, and signals a
// fresh semaphore that the next chunk waits on. The semaphore is returned.
func (s *Submitter) EndOnetime() (vulkan.Semaphore, error) {
	if err := s.requireOpen(ProtocolOnetime); err != nil {
		return vulkan.NullSemaphore, err
	}
	if s.recording == nil {
		return vulkan.NullSemaphore, s.violation(ErrProtocol, "end onetime submit without an open chunk")
	}
	cmd := s.recording
	s.recording = nil
	if err := Check(s.drv.EndCommandBuffer(cmd), "vkEndCommandBuffer"); err != nil {
		return vulkan.NullSemaphore, err
	}

	signal, ret := s.drv.CreateSemaphore(s.opts.Device)
	if err := Check(ret, "vkCreateSemaphore"); err != nil {
		return vulkan.NullSemaphore, err
	}
	var wait []vulkan.Semaphore
	var waitStages []vulkan.PipelineStageFlags
	if prev := s.batch.last(); prev != vulkan.NullSemaphore {
		wait = []vulkan.Semaphore{prev}
		waitStages = stages(1, vulkan.PipelineStageAllCommandsBit)
	} else if s.Acquired() {
		wait = s.acquireWait()
		waitStages = stages(len(wait), vulkan.PipelineStageColorAttachmentOutputBit)
	}
	s.batch.semaphores = append(s.batch.semaphores, signal)

	err := s.submit(driver.Submit{
		Wait:       wait,
		WaitStages: waitStages,
		Commands:   []vulkan.CommandBuffer{cmd},
		Signal:     []vulkan.Semaphore{signal},
	}, vulkan.NullFence)
	if err != nil {
		return vulkan.NullSemaphore, err
	}
	return signal, nil
}

// FinalizeOnetime closes the frame. With an acquired image a last submit
// waits on the final chunk, moves the image to PRESENT_SRC and signals render
// finished. The chunk buffers and semaphores are released afterwards.
func (s *Submitter) FinalizeOnetime() error {
	if err := s.requireOpen(ProtocolOnetime); err != nil {
		return err
	}
	if s.recording != nil {
		return s.violation(ErrProtocol, "finalize onetime submit with an open chunk")
	}
	defer func() {
		s.releaseBatch()
		s.protocol = ProtocolIdle
	}()
	if !s.Acquired() {
		return nil
	}

	sc := s.sc
	cmds, ret := s.drv.AllocateCommandBuffers(s.opts.Device, s.batch.pool, 1)
	if err := Check(ret, "vkAllocateCommandBuffers"); err != nil {
		return err
	}
	s.batch.commands = append(s.batch.commands, cmds[0])
	if err := Check(s.drv.BeginCommandBuffer(cmds[0], true), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	if err := sc.layouts.Record(cmds[0], sc.cursor.Image, vulkan.ImageLayoutPresentSrc); err != nil {
		return err
	}
	if err := Check(s.drv.EndCommandBuffer(cmds[0]), "vkEndCommandBuffer"); err != nil {
		return err
	}

	var wait []vulkan.Semaphore
	var waitStages []vulkan.PipelineStageFlags
	if last := s.batch.last(); last != vulkan.NullSemaphore {
		wait = []vulkan.Semaphore{last}
		waitStages = stages(1, vulkan.PipelineStageAllCommandsBit)
	} else {
		wait = s.acquireWait()
		waitStages = stages(len(wait), vulkan.PipelineStageColorAttachmentOutputBit)
	}
	return s.submit(driver.Submit{
		Wait:       wait,
		WaitStages: waitStages,
		Commands:   cmds,
		Signal:     []vulkan.Semaphore{sc.renderFinished[sc.cursor.Frame]},
	}, s.frameFence())
}

func (s *Submitter) releaseBatch() {
	if len(s.batch.commands) > 0 {
		s.drv.FreeCommandBuffers(s.opts.Device, s.batch.pool, s.batch.commands)
	}
	for _, sem := range s.batch.semaphores {
		s.drv.DestroySemaphore(s.opts.Device, sem)
	}
	s.batch = onetimeBatch{}
	if s.protocol == ProtocolOnetime {
		s.recording = nil
	}
}
