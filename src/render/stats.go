package render

import (
	"time"

	"github.com/loov/hrtime"
)

// FrameStats counts SwapBuffers calls and times the drawn ones.
type FrameStats struct {
	Frames  int
	Skipped int
	Last    time.Duration
	Total   time.Duration
}

// Average is the mean duration of a drawn frame.
func (s FrameStats) Average() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Frames)
}

type frameTimer struct {
	start time.Duration
}

func startFrame() frameTimer { return frameTimer{start: hrtime.Now()} }

func (s *FrameStats) drawn(t frameTimer) {
	elapsed := hrtime.Since(t.start)
	s.Frames++
	s.Last = elapsed
	s.Total += elapsed
}

func (s *FrameStats) skipped() { s.Skipped++ }
