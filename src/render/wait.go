package render

import (
	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver"
)

// waitSignaled blocks until fence is signaled. Each wait is bounded by poll
// and retried while the driver reports VK_TIMEOUT; there is no way to give
// up on a hung GPU short of tearing the device down.
func waitSignaled(drv driver.DeviceDriver, device vulkan.Device, fence vulkan.Fence, poll uint64) error {
	for {
		ret := drv.WaitForFence(device, fence, poll)
		if ret == vulkan.Timeout {
			continue
		}
		return Check(ret, "vkWaitForFences")
	}
}
