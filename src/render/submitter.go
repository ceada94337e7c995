package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
)

// Protocol names the submission window that is currently open.
type Protocol int

const (
	ProtocolIdle Protocol = iota
	ProtocolSimple
	ProtocolOnetime
	ProtocolBlit
	ProtocolOffscreen
)

func (p Protocol) String() string {
	switch p {
	case ProtocolIdle:
		return "idle"
	case ProtocolSimple:
		return "simple"
	case ProtocolOnetime:
		return "onetime"
	case ProtocolBlit:
		return "blit"
	case ProtocolOffscreen:
		return "offscreen"
	}
	return "unknown"
}

// BoundaryFunc lets the owner record into the frame command buffer right
// after it is opened or right before it is closed.
type BoundaryFunc func(cmd vulkan.CommandBuffer) error

// SubmitterOptions wires a Submitter to its device.
type SubmitterOptions struct {
	Device   vulkan.Device
	Graphics vulkan.Queue
	Present  vulkan.Queue
	// Pool backs the offscreen command buffer; it outlives the swapchain.
	Pool vulkan.CommandPool
	// FencePoll bounds a single fence wait; waits retry on VK_TIMEOUT.
	FencePoll  uint64
	Assertions bool
}

// Submitter drives acquire, record, submit and present against one
// swapchain. Exactly one protocol window may be open at a time and every
// submit is a single VkSubmitInfo followed by a queue idle wait.
type Submitter struct {
	drv  driver.DeviceDriver
	sc   *Swapchain
	opts SubmitterOptions
	log  *slog.Logger

	protocol  Protocol
	recording vulkan.CommandBuffer
	batch     onetimeBatch
	offscreen vulkan.CommandBuffer

	onBegin BoundaryFunc
	onEnd   BoundaryFunc
}

// NewSubmitter returns a submitter for sc. sc may be nil for a headless
// context, which only supports the offscreen protocol.
func NewSubmitter(drv driver.DeviceDriver, sc *Swapchain, opts SubmitterOptions, log *slog.Logger) *Submitter {
	if opts.FencePoll == 0 {
		opts.FencePoll = vulkan.MaxUint64
	}
	s := &Submitter{
		drv:  drv,
		sc:   sc,
		opts: opts,
		log:  orDefault(log).With(slog.String("component", "submitter")),
	}
	if sc != nil {
		sc.onReleaseHook(s.releaseTransient)
	}
	return s
}

func (s *Submitter) SetBoundaries(onBegin, onEnd BoundaryFunc) {
	s.onBegin, s.onEnd = onBegin, onEnd
}

func (s *Submitter) Protocol() Protocol { return s.protocol }

// Acquired reports whether an image is held between Acquire and Present.
func (s *Submitter) Acquired() bool { return s.sc != nil && s.sc.cursor.acquired }

func (s *Submitter) violation(kind error, format string, args ...interface{}) error {
	return violation(s.opts.Assertions, s.log, kind, format, args...)
}

func (s *Submitter) swapchain() (*Swapchain, error) {
	if s.sc == nil || !s.sc.live {
		return nil, errors.Wrap(ErrNotInitialized, "no live swapchain")
	}
	return s.sc, nil
}

// recreate rebuilds a stale swapchain. The frame is skipped either way.
func (s *Submitter) recreate(call string, ret vulkan.Result) error {
	s.log.Debug("swapchain stale, recreating", slog.String("call", call), slog.String("result", ResultString(ret)))
	return s.sc.Recreate()
}

// Acquire takes the next swapchain image. skip is true when the swapchain
// was stale and has been rebuilt; nothing must be drawn this frame.
func (s *Submitter) Acquire() (skip bool, err error) {
	sc, err := s.swapchain()
	if err != nil {
		return false, err
	}
	if sc.cursor.acquired {
		return false, s.violation(ErrAlreadyAcquired, "image %d acquired twice without present", sc.cursor.Image)
	}

	frame := sc.cursor.Frame
	index, ret := s.drv.AcquireNextImage(s.opts.Device, sc.handle, vulkan.MaxUint64, sc.imageAvailable[frame])
	if IsStale(ret) {
		return true, s.recreate("vkAcquireNextImageKHR", ret)
	}
	if err := Check(ret, "vkAcquireNextImageKHR"); err != nil {
		s.log.Error("acquire failed", slog.String("result", ResultString(ret)))
		return false, err
	}
	if int(index) >= len(sc.images) {
		return false, s.violation(ErrImageIndex, "acquired image %d out of range [0,%d)", index, len(sc.images))
	}
	sc.cursor.Image = int(index)
	sc.cursor.acquired = true
	sc.cursor.consumed = false
	return false, nil
}

// WaitFrameFence waits for the fence of the current frame, and for the fence
// that last used the acquired image when that was another frame, then resets
// the frame fence for this frame's submit. Once the frame fence is reset it
// stays unsignaled until a submit carries it, so later calls in the same
// frame do not wait on it again.
func (s *Submitter) WaitFrameFence() error {
	sc, err := s.swapchain()
	if err != nil {
		return err
	}
	fence := sc.inFlight[sc.cursor.Frame]
	if sc.cursor.acquired && sc.imagesInFlight[sc.cursor.Image] != fence {
		if last := sc.imagesInFlight[sc.cursor.Image]; last != vulkan.NullFence {
			if err := waitSignaled(s.drv, s.opts.Device, last, s.opts.FencePoll); err != nil {
				return err
			}
		}
	}
	if !sc.cursor.fenceReset {
		if err := waitSignaled(s.drv, s.opts.Device, fence, s.opts.FencePoll); err != nil {
			return err
		}
		if err := Check(s.drv.ResetFence(s.opts.Device, fence), "vkResetFences"); err != nil {
			return err
		}
		sc.cursor.fenceReset = true
	}
	if sc.cursor.acquired {
		sc.imagesInFlight[sc.cursor.Image] = fence
	}
	return nil
}

// frameFence hands out the reset frame fence once; later submits get none.
func (s *Submitter) frameFence() vulkan.Fence {
	sc := s.sc
	if !sc.cursor.fenceReset {
		return vulkan.NullFence
	}
	sc.cursor.fenceReset = false
	return sc.inFlight[sc.cursor.Frame]
}

// acquireWait returns the acquire semaphore if no submit has waited on it yet.
func (s *Submitter) acquireWait() []vulkan.Semaphore {
	sc := s.sc
	if !sc.cursor.acquired || sc.cursor.consumed {
		return nil
	}
	sc.cursor.consumed = true
	return []vulkan.Semaphore{sc.imageAvailable[sc.cursor.Frame]}
}

func (s *Submitter) submit(submit driver.Submit, fence vulkan.Fence) error {
	if err := Check(s.drv.QueueSubmit(s.opts.Graphics, submit, fence), "vkQueueSubmit"); err != nil {
		s.log.Error("submit failed", slog.String("error", err.Error()))
		return err
	}
	return Check(s.drv.QueueWaitIdle(s.opts.Graphics), "vkQueueWaitIdle")
}

func stages(n int, stage vulkan.PipelineStageFlagBits) []vulkan.PipelineStageFlags {
	out := make([]vulkan.PipelineStageFlags, n)
	for i := range out {
		out[i] = vulkan.PipelineStageFlags(stage)
	}
	return out
}

func (s *Submitter) open(p Protocol) error {
	if s.protocol != ProtocolIdle {
		return s.violation(ErrProtocol, "cannot begin %s submit while %s is open", p, s.protocol)
	}
	return nil
}

func (s *Submitter) requireOpen(p Protocol) error {
	if s.protocol != p {
		return s.violation(ErrProtocol, "cannot end %s submit while %s is open", p, s.protocol)
	}
	return nil
}

// Present hands the acquired image to the presentation engine. The image is
// moved to PRESENT_SRC first if no submit did so. skip is true when the
// swapchain was stale and has been rebuilt.
func (s *Submitter) Present() (skip bool, err error) {
	sc, err := s.swapchain()
	if err != nil {
		return false, err
	}
	if !sc.cursor.acquired {
		return false, s.violation(ErrNotAcquired, "present without acquire")
	}
	if s.protocol != ProtocolIdle {
		return false, s.violation(ErrProtocol, "present while %s submit is open", s.protocol)
	}

	frame, image := sc.cursor.Frame, sc.cursor.Image
	sync := oneShotSync{fence: s.frameFence()}
	if wait := s.acquireWait(); wait != nil {
		// Nothing rendered: the transition submit stands in for the frame.
		sync.wait = wait
		sync.signal = []vulkan.Semaphore{sc.renderFinished[frame]}
	}
	if sync.fence != vulkan.NullFence || sync.wait != nil {
		if err := sc.layouts.transition(image, vulkan.ImageLayoutPresentSrc, sync); err != nil {
			return false, err
		}
	} else if err := sc.layouts.EnsurePresentLayout(image); err != nil {
		return false, err
	}
	if layout := sc.layouts.Layout(image); layout != vulkan.ImageLayoutPresentSrc {
		return false, s.violation(ErrInvalidLayout, "presenting image %d in layout %d", image, layout)
	}

	ret := s.drv.QueuePresent(s.opts.Present, driver.Present{
		Wait:       []vulkan.Semaphore{sc.renderFinished[frame]},
		Swapchain:  sc.handle,
		ImageIndex: uint32(image),
	})
	sc.cursor.acquired = false
	if IsStale(ret) {
		return true, s.recreate("vkQueuePresentKHR", ret)
	}
	if err := Check(ret, "vkQueuePresentKHR"); err != nil {
		s.log.Error("present failed", slog.String("result", ResultString(ret)))
		return false, err
	}
	sc.cursor.Frame = (frame + 1) % MaxFramesInFlight
	return false, nil
}

// Abandon drops an acquired frame without presenting it. The acquire
// semaphore is consumed and the image is returned to COLOR_ATTACHMENT_OPTIMAL.
func (s *Submitter) Abandon() error {
	if s.sc == nil || !s.sc.cursor.acquired {
		return nil
	}
	sc := s.sc
	if s.recording != nil && s.protocol != ProtocolOffscreen {
		// The open buffer already holds layout barriers the tracker counted,
		// so it is executed rather than dropped.
		cmd := s.recording
		s.recording = nil
		if err := Check(s.drv.EndCommandBuffer(cmd), "vkEndCommandBuffer"); err != nil {
			return err
		}
		wait := s.acquireWait()
		if prev := s.batch.last(); prev != vulkan.NullSemaphore {
			wait = append(wait, prev)
		}
		err := s.submit(driver.Submit{
			Wait:       wait,
			WaitStages: stages(len(wait), vulkan.PipelineStageAllCommandsBit),
			Commands:   []vulkan.CommandBuffer{cmd},
		}, s.frameFence())
		if err != nil {
			return err
		}
	}
	if s.protocol != ProtocolOffscreen {
		s.releaseBatch()
		s.protocol = ProtocolIdle
	}

	sync := oneShotSync{wait: s.acquireWait(), fence: s.frameFence()}
	sc.cursor.acquired = false
	s.log.Debug("frame abandoned", slog.Int("image", sc.cursor.Image))
	return sc.layouts.ensureAttachment(sc.cursor.Image, sync)
}

// releaseTransient runs while the swapchain is torn down, before its pool goes away.
func (s *Submitter) releaseTransient() {
	s.releaseBatch()
	if s.protocol != ProtocolOffscreen {
		s.recording = nil
		s.protocol = ProtocolIdle
	}
}

// Close frees the objects the submitter allocated from the context pool.
func (s *Submitter) Close() {
	s.releaseTransient()
	if s.offscreen != nil {
		s.drv.FreeCommandBuffers(s.opts.Device, s.opts.Pool, []vulkan.CommandBuffer{s.offscreen})
		s.offscreen = nil
	}
	s.protocol = ProtocolIdle
}
