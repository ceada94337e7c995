package render

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver"
	"vkframe/src/render/driver/drivertest"
)

func lastSubmit(fake *drivertest.Fake) drivertest.SubmitRecord {
	return fake.Submits[len(fake.Submits)-1]
}

func colorOutput(n int) []vulkan.PipelineStageFlags {
	return stages(n, vulkan.PipelineStageColorAttachmentOutputBit)
}

func drawSimple(t *testing.T, sub *Submitter) {
	t.Helper()
	skip, err := sub.Acquire()
	require.NoError(t, err)
	require.False(t, skip)
	require.NoError(t, sub.WaitFrameFence())
	_, err = sub.Begin()
	require.NoError(t, err)
	require.NoError(t, sub.End())
	skip, err = sub.Present()
	require.NoError(t, err)
	require.False(t, skip)
}

func TestSubmitterSimpleFrame(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	_, err := sub.Acquire()
	require.NoError(t, err)
	require.True(t, sub.Acquired())
	require.Equal(t, 0, sc.Cursor().Image)
	require.NoError(t, sub.WaitFrameFence())

	cmd, err := sub.Begin()
	require.NoError(t, err)
	require.Equal(t, sc.commands[0], cmd)
	require.Equal(t, ProtocolSimple, sub.Protocol())
	require.NoError(t, sub.End())
	require.Equal(t, ProtocolIdle, sub.Protocol())

	submit := lastSubmit(f.fake)
	require.Equal(t, []vulkan.Semaphore{sc.imageAvailable[0]}, submit.Submit.Wait)
	require.Equal(t, colorOutput(1), submit.Submit.WaitStages)
	require.Equal(t, []vulkan.CommandBuffer{cmd}, submit.Submit.Commands)
	require.Equal(t, []vulkan.Semaphore{sc.renderFinished[0]}, submit.Submit.Signal)
	require.Equal(t, sc.inFlight[0], submit.Fence)
	require.Equal(t, present, sc.Layouts().Layout(0))

	submits := len(f.fake.Submits)
	skip, err := sub.Present()
	require.NoError(t, err)
	require.False(t, skip)
	// the image was already in PRESENT_SRC, so nothing else was submitted
	require.Len(t, f.fake.Submits, submits)
	require.Equal(t, []driver.Present{{
		Wait:       []vulkan.Semaphore{sc.renderFinished[0]},
		Swapchain:  sc.Handle(),
		ImageIndex: 0,
	}}, f.fake.Presents)
	require.False(t, sub.Acquired())
	require.Equal(t, 1, sc.Cursor().Frame)
}

func TestSubmitterFrameRotation(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	for i := 0; i < 3; i++ {
		drawSimple(t, sub)
	}
	// frame 1 now acquires image 0, last used by frame 0
	_, err := sub.Acquire()
	require.NoError(t, err)
	require.Equal(t, 0, sc.Cursor().Image)
	require.Equal(t, 1, sc.Cursor().Frame)
	waits := len(f.fake.Waits)
	require.NoError(t, sub.WaitFrameFence())
	require.Equal(t, []vulkan.Fence{sc.inFlight[0], sc.inFlight[1]}, f.fake.Waits[waits:])
	require.Equal(t, sc.inFlight[1], sc.imagesInFlight[0])

	barriers := len(f.fake.Barriers)
	_, err = sub.Begin()
	require.NoError(t, err)
	require.Equal(t, present, f.fake.Barriers[barriers].Barrier.OldLayout)
	require.Equal(t, attachment, f.fake.Barriers[barriers].Barrier.NewLayout)
	require.Empty(t, f.fake.Misuse)
}

func TestSubmitterWaitRetriesOnTimeout(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)
	f.fake.WaitResults = []vulkan.Result{vulkan.Timeout, vulkan.Timeout}

	_, err := sub.Acquire()
	require.NoError(t, err)
	require.NoError(t, sub.WaitFrameFence())
	require.Len(t, f.fake.Waits, 3)

	_, err = sub.Present()
	require.NoError(t, err)
	_, err = sub.Acquire()
	require.NoError(t, err)
	f.fake.WaitResults = []vulkan.Result{vulkan.ErrorDeviceLost}
	err = sub.WaitFrameFence()
	ret, ok := ResultOf(err)
	require.True(t, ok)
	require.Equal(t, vulkan.ErrorDeviceLost, ret)
	require.Empty(t, f.fake.Misuse)
}

func TestSubmitterWaitFrameFenceOncePerFrame(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	_, err := sub.Acquire()
	require.NoError(t, err)
	require.NoError(t, sub.WaitFrameFence())
	require.Equal(t, []vulkan.Fence{sc.inFlight[0]}, f.fake.Waits)
	require.False(t, f.fake.Signaled(sc.inFlight[0]))

	// the reset fence is not submitted yet, waiting on it again would block
	require.NoError(t, sub.WaitFrameFence())
	require.Len(t, f.fake.Waits, 1)
	require.Equal(t, 1, f.fake.Called("ResetFence"))

	_, err = sub.Begin()
	require.NoError(t, err)
	require.NoError(t, sub.End())
	require.Equal(t, sc.inFlight[0], lastSubmit(f.fake).Fence)
	require.True(t, f.fake.Signaled(sc.inFlight[0]))
	_, err = sub.Present()
	require.NoError(t, err)
	require.Empty(t, f.fake.Misuse)
}

func TestSubmitterWaitFrameFenceBeforeAcquire(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	for i := 0; i < 3; i++ {
		drawSimple(t, sub)
	}
	// frame 1 waits before acquiring image 0, which frame 0 used last
	require.NoError(t, sub.WaitFrameFence())
	waits := len(f.fake.Waits)
	_, err := sub.Acquire()
	require.NoError(t, err)
	require.NoError(t, sub.WaitFrameFence())
	require.Equal(t, []vulkan.Fence{sc.inFlight[0]}, f.fake.Waits[waits:])
	require.Equal(t, sc.inFlight[1], sc.imagesInFlight[0])

	_, err = sub.Begin()
	require.NoError(t, err)
	require.NoError(t, sub.End())
	require.Equal(t, sc.inFlight[1], lastSubmit(f.fake).Fence)
	require.Empty(t, f.fake.Misuse)
}

func TestSubmitterAcquiredIndexOutOfRange(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)

	t.Run("assertions", func(t *testing.T) {
		sub := f.submitter(t, sc)
		f.fake.AcquireIndexes = []uint32{7}
		require.Panics(t, func() { _, _ = sub.Acquire() })
		require.False(t, sub.Acquired())
	})
	t.Run("lenient", func(t *testing.T) {
		sub := NewSubmitter(f.fake, sc, SubmitterOptions{Device: f.device, Graphics: f.queue, Present: f.queue, Pool: f.pool}, quietLog())
		f.fake.AcquireIndexes = []uint32{uint32(len(sc.Images()))}
		_, err := sub.Acquire()
		require.True(t, errors.Is(err, ErrImageIndex))
		require.False(t, errors.Is(err, ErrInvalidLayout))
		require.False(t, sub.Acquired())
	})
}

func TestSubmitterStaleAcquire(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)
	f.fake.AcquireResults = []vulkan.Result{vulkan.ErrorOutOfDate}

	skip, err := sub.Acquire()
	require.NoError(t, err)
	require.True(t, skip)
	require.False(t, sub.Acquired())
	require.Equal(t, 1, f.fake.Called("DestroySwapchain"))
	require.Equal(t, 2, f.fake.Called("CreateSwapchain"))
	require.Equal(t, 2, sc.ID())

	drawSimple(t, sub)
}

func TestSubmitterStalePresent(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)
	f.fake.PresentResults = []vulkan.Result{vulkan.Suboptimal}

	_, err := sub.Acquire()
	require.NoError(t, err)
	skip, err := sub.Present()
	require.NoError(t, err)
	require.True(t, skip)
	require.Equal(t, 2, sc.ID())
	require.Equal(t, FrameCursor{}, sc.Cursor())
	require.Empty(t, f.fake.Misuse)
}

func TestSubmitterPresentFailure(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)
	f.fake.PresentResults = []vulkan.Result{vulkan.ErrorSurfaceLost}

	_, err := sub.Acquire()
	require.NoError(t, err)
	_, err = sub.Present()
	require.Error(t, err)
	require.False(t, sub.Acquired())
	require.Equal(t, 0, sc.Cursor().Frame)
	require.Equal(t, 1, sc.ID())
}

func TestSubmitterPresentWithoutDrawing(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	_, err := sub.Acquire()
	require.NoError(t, err)
	_, err = sub.Present()
	require.NoError(t, err)

	submit := lastSubmit(f.fake)
	require.Equal(t, []vulkan.Semaphore{sc.imageAvailable[0]}, submit.Submit.Wait)
	require.Equal(t, []vulkan.Semaphore{sc.renderFinished[0]}, submit.Submit.Signal)
	require.Equal(t, present, sc.Layouts().Layout(0))
	require.Len(t, f.fake.Presents, 1)
}

func TestSubmitterContractViolations(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	require.Panics(t, func() { _, _ = sub.Present() })
	require.Panics(t, func() { _, _ = sub.Begin() })
	require.Panics(t, func() { _ = sub.End() })

	_, err := sub.Acquire()
	require.NoError(t, err)
	require.Panics(t, func() { _, _ = sub.Acquire() })

	_, err = sub.Begin()
	require.NoError(t, err)
	require.Panics(t, func() { _, _ = sub.BeginBlit() })
	require.Panics(t, func() { _, _ = sub.BeginOffscreen() })
	require.Panics(t, func() { _, _ = sub.Present() })
}

func TestSubmitterViolationsWithoutAssertions(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := NewSubmitter(f.fake, sc, SubmitterOptions{Device: f.device, Graphics: f.queue, Present: f.queue, Pool: f.pool}, quietLog())

	_, err := sub.Present()
	require.True(t, errors.Is(err, ErrNotAcquired))

	_, err = sub.Acquire()
	require.NoError(t, err)
	_, err = sub.Acquire()
	require.True(t, errors.Is(err, ErrAlreadyAcquired))
}

func TestSubmitterNoSwapchain(t *testing.T) {
	f := newFixture(t)
	sub := f.submitter(t, nil)

	_, err := sub.Acquire()
	require.True(t, errors.Is(err, ErrNotInitialized))
	require.False(t, sub.Acquired())
	require.NoError(t, sub.Abandon())
}

func TestSubmitterOnetimeChain(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)
	semaphores := f.fake.Live("semaphore")

	_, err := sub.Acquire()
	require.NoError(t, err)
	require.NoError(t, sub.WaitFrameFence())

	first := len(f.fake.Submits)
	var signals []vulkan.Semaphore
	for i := 0; i < 3; i++ {
		_, err := sub.BeginOnetime()
		require.NoError(t, err)
		sem, err := sub.EndOnetime()
		require.NoError(t, err)
		signals = append(signals, sem)
	}
	require.Equal(t, 3, sub.OnetimePending())

	chunks := f.fake.Submits[first:]
	require.Len(t, chunks, 3)
	require.Equal(t, []vulkan.Semaphore{sc.imageAvailable[0]}, chunks[0].Submit.Wait)
	require.Equal(t, colorOutput(1), chunks[0].Submit.WaitStages)
	for i, chunk := range chunks {
		require.Equal(t, []vulkan.Semaphore{signals[i]}, chunk.Submit.Signal)
		require.Equal(t, vulkan.NullFence, chunk.Fence)
		if i > 0 {
			require.Equal(t, []vulkan.Semaphore{signals[i-1]}, chunk.Submit.Wait)
			require.Equal(t, stages(1, vulkan.PipelineStageAllCommandsBit), chunk.Submit.WaitStages)
		}
	}

	require.NoError(t, sub.FinalizeOnetime())
	final := lastSubmit(f.fake)
	require.Equal(t, []vulkan.Semaphore{signals[2]}, final.Submit.Wait)
	require.Equal(t, []vulkan.Semaphore{sc.renderFinished[0]}, final.Submit.Signal)
	require.Equal(t, sc.inFlight[0], final.Fence)
	require.Equal(t, present, sc.Layouts().Layout(0))

	require.Zero(t, sub.OnetimePending())
	require.Equal(t, ProtocolIdle, sub.Protocol())
	require.Equal(t, semaphores, f.fake.Live("semaphore"))
	require.Equal(t, sc.ImageCount(), f.fake.Live("command-buffer"))

	skip, err := sub.Present()
	require.NoError(t, err)
	require.False(t, skip)
}

func TestSubmitterOnetimeOpenChunk(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	_, err := sub.BeginOnetime()
	require.NoError(t, err)
	require.Panics(t, func() { _, _ = sub.BeginOnetime() })
	require.Panics(t, func() { _ = sub.FinalizeOnetime() })
}

func TestSubmitterOnetimeHeadless(t *testing.T) {
	f := newFixture(t)
	sub := f.submitter(t, nil)

	_, err := sub.BeginOnetime()
	require.NoError(t, err)
	sem, err := sub.EndOnetime()
	require.NoError(t, err)
	require.NotEqual(t, vulkan.NullSemaphore, sem)
	require.Empty(t, lastSubmit(f.fake).Submit.Wait)

	require.NoError(t, sub.FinalizeOnetime())
	require.Zero(t, f.fake.Live("semaphore"))
	require.Zero(t, f.fake.Live("command-buffer"))
}

func TestSubmitterRecreateDropsOnetimeBatch(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	_, err := sub.BeginOnetime()
	require.NoError(t, err)
	_, err = sub.EndOnetime()
	require.NoError(t, err)

	require.NoError(t, sc.Recreate())
	require.Zero(t, sub.OnetimePending())
	require.Equal(t, ProtocolIdle, sub.Protocol())
	require.Empty(t, f.fake.Misuse)
}

func TestSubmitterBlit(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)
	extra, _ := f.fake.CreateSemaphore(f.device)

	_, err := sub.Acquire()
	require.NoError(t, err)
	require.NoError(t, sub.WaitFrameFence())
	cmd, err := sub.BeginBlit()
	require.NoError(t, err)
	require.Equal(t, transfer, sc.Layouts().Layout(0))

	skip, err := sub.EndBlit([]vulkan.Semaphore{extra})
	require.NoError(t, err)
	require.False(t, skip)

	submit := lastSubmit(f.fake)
	require.Equal(t, []vulkan.CommandBuffer{cmd}, submit.Submit.Commands)
	require.Equal(t, []vulkan.Semaphore{sc.imageAvailable[0], extra}, submit.Submit.Wait)
	require.Equal(t, stages(2, vulkan.PipelineStageTransferBit), submit.Submit.WaitStages)
	require.Equal(t, []vulkan.Semaphore{sc.renderFinished[0]}, submit.Submit.Signal)
	require.Equal(t, sc.inFlight[0], submit.Fence)
	require.Len(t, f.fake.Presents, 1)
	require.Equal(t, 1, sc.Cursor().Frame)
}

func TestSubmitterOffscreen(t *testing.T) {
	f := newFixture(t)
	sub := f.submitter(t, nil)
	wait, _ := f.fake.CreateSemaphore(f.device)

	for i := 0; i < 2; i++ {
		cmd, err := sub.BeginOffscreen()
		require.NoError(t, err)
		require.Equal(t, ProtocolOffscreen, sub.Protocol())
		require.NoError(t, sub.EndOffscreen([]vulkan.Semaphore{wait}, nil))

		submit := lastSubmit(f.fake)
		require.Equal(t, []vulkan.CommandBuffer{cmd}, submit.Submit.Commands)
		require.Equal(t, []vulkan.Semaphore{wait}, submit.Submit.Wait)
		require.NotEqual(t, vulkan.NullFence, submit.Fence)
		require.Equal(t, submit.Fence, f.fake.Waits[len(f.fake.Waits)-1])
	}
	require.Equal(t, 1, f.fake.Called("AllocateCommandBuffers"))
	require.Equal(t, 2, f.fake.Called("CreateFence"))
	require.Zero(t, f.fake.Live("fence"))

	sub.Close()
	require.Zero(t, f.fake.Live("command-buffer"))
	require.Empty(t, f.fake.Misuse)
}

func TestSubmitterAbandonOpenFrame(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	_, err := sub.Acquire()
	require.NoError(t, err)
	require.NoError(t, sub.WaitFrameFence())
	cmd, err := sub.Begin()
	require.NoError(t, err)

	require.NoError(t, sub.Abandon())
	submit := lastSubmit(f.fake)
	require.Equal(t, []vulkan.CommandBuffer{cmd}, submit.Submit.Commands)
	require.Equal(t, []vulkan.Semaphore{sc.imageAvailable[0]}, submit.Submit.Wait)
	require.Equal(t, sc.inFlight[0], submit.Fence)

	require.False(t, sub.Acquired())
	require.Equal(t, ProtocolIdle, sub.Protocol())
	require.Equal(t, attachment, sc.Layouts().Layout(0))
	require.Equal(t, 0, sc.Cursor().Frame)

	drawSimple(t, sub)
}

func TestSubmitterAbandonAfterAcquire(t *testing.T) {
	f := newFixture(t)
	sc := f.swapchain(t)
	sub := f.submitter(t, sc)

	_, err := sub.Acquire()
	require.NoError(t, err)
	submits := len(f.fake.Submits)
	require.NoError(t, sub.Abandon())

	// the acquire semaphore is still consumed by a submit
	require.Len(t, f.fake.Submits, submits+1)
	require.Equal(t, []vulkan.Semaphore{sc.imageAvailable[0]}, lastSubmit(f.fake).Submit.Wait)
	require.Equal(t, attachment, sc.Layouts().Layout(0))
}
