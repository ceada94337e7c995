package render

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

func TestResultString(t *testing.T) {
	for idx, tc := range []struct {
		ret  vulkan.Result
		want string
	}{
		{vulkan.Success, "VK_SUCCESS"},
		{vulkan.Timeout, "VK_TIMEOUT"},
		{vulkan.ErrorDeviceLost, "VK_ERROR_DEVICE_LOST"},
		{vulkan.ErrorOutOfDate, "VK_ERROR_OUT_OF_DATE_KHR"},
		{vulkan.Suboptimal, "VK_SUBOPTIMAL_KHR"},
		{vulkan.Result(-1000000000), "VK_ERROR_SURFACE_LOST_KHR"},
		{vulkan.Result(-4242), "VK_RESULT_-4242"},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.want), func(t *testing.T) {
			require.Equal(t, tc.want, ResultString(tc.ret))
		})
	}
}

func TestCheck(t *testing.T) {
	require.NoError(t, Check(vulkan.Success, "vkCreateFence"))
	require.NoError(t, NewError(vulkan.Success))

	err := Check(vulkan.ErrorDeviceLost, "vkQueueSubmit")
	require.Error(t, err)
	require.Contains(t, err.Error(), "vkQueueSubmit")
	require.Contains(t, err.Error(), "VK_ERROR_DEVICE_LOST")
	require.Contains(t, err.Error(), "errors_test.go")

	ret, ok := ResultOf(errors.Wrap(err, "frame"))
	require.True(t, ok)
	require.Equal(t, vulkan.ErrorDeviceLost, ret)

	_, ok = ResultOf(errors.New("plain"))
	require.False(t, ok)
}

func TestCheckMarks(t *testing.T) {
	for idx, tc := range []struct {
		ret  vulkan.Result
		mark error
	}{
		{vulkan.ErrorExtensionNotPresent, ErrExtensionNotPresent},
		{vulkan.ErrorLayerNotPresent, ErrLayerNotPresent},
		{vulkan.ErrorOutOfDate, ErrSwapchainStale},
		{vulkan.Suboptimal, ErrSwapchainStale},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, ResultString(tc.ret)), func(t *testing.T) {
			err := Check(tc.ret, "call")
			require.True(t, errors.Is(err, tc.mark))
		})
	}
	require.False(t, errors.Is(Check(vulkan.ErrorDeviceLost, "call"), ErrSwapchainStale))
}

func TestIsStale(t *testing.T) {
	require.True(t, IsStale(vulkan.ErrorOutOfDate))
	require.True(t, IsStale(vulkan.Suboptimal))
	require.False(t, IsStale(vulkan.Success))
	require.False(t, IsStale(vulkan.ErrorSurfaceLost))
}

func TestViolation(t *testing.T) {
	require.Panics(t, func() {
		_ = violation(true, quietLog(), ErrProtocol, "begin while %s", "simple")
	})

	err := violation(false, quietLog(), ErrNotAcquired, "present without acquire")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotAcquired))
	require.True(t, errors.HasAssertionFailure(err))
}
