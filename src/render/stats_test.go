package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFrameStats(t *testing.T) {
	var s FrameStats
	require.Zero(t, s.Average())

	s.drawn(startFrame())
	s.drawn(startFrame())
	s.skipped()
	require.Equal(t, 2, s.Frames)
	require.Equal(t, 1, s.Skipped)
	require.GreaterOrEqual(t, s.Total, s.Last)
	require.Equal(t, s.Total/2, s.Average())

	s = FrameStats{Frames: 4, Total: 40 * time.Millisecond}
	require.Equal(t, 10*time.Millisecond, s.Average())
}
