package render

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

var (
	ErrExtensionNotPresent = errors.New("extension not present")
	ErrLayerNotPresent     = errors.New("layer not present")
	ErrNoSuitableDevice    = errors.New("no suitable physical device")
	ErrNoGraphicsQueue     = errors.New("no graphics queue family")
	ErrNoTransferQueue     = errors.New("no dedicated transfer queue family")
	ErrNoPresentQueue      = errors.New("no present queue family")
	ErrSwapchainStale      = errors.New("swapchain out of date")
	ErrAlreadyAcquired     = errors.New("swapchain image already acquired")
	ErrNotAcquired         = errors.New("no swapchain image acquired")
	ErrInvalidLayout       = errors.New("invalid swapchain image layout")
	ErrImageIndex          = errors.New("swapchain image index out of range")
	ErrProtocol            = errors.New("submission protocol violated")
	ErrNotInitialized      = errors.New("drawing context not initialized")
)

var resultNames = map[vulkan.Result]string{
	vulkan.Success:                   "VK_SUCCESS",
	vulkan.NotReady:                  "VK_NOT_READY",
	vulkan.Timeout:                   "VK_TIMEOUT",
	vulkan.EventSet:                  "VK_EVENT_SET",
	vulkan.EventReset:                "VK_EVENT_RESET",
	vulkan.Incomplete:                "VK_INCOMPLETE",
	vulkan.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vulkan.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vulkan.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vulkan.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vulkan.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vulkan.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vulkan.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vulkan.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vulkan.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vulkan.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vulkan.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vulkan.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vulkan.Suboptimal:                "VK_SUBOPTIMAL_KHR",
	vulkan.ErrorOutOfDate:            "VK_ERROR_OUT_OF_DATE_KHR",
	-13:                              "VK_ERROR_UNKNOWN",
	-1000000000:                      "VK_ERROR_SURFACE_LOST_KHR",
	-1000000001:                      "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	-1000003001:                      "VK_ERROR_INCOMPATIBLE_DISPLAY_KHR",
	-1000011001:                      "VK_ERROR_VALIDATION_FAILED_EXT",
	-1000012000:                      "VK_ERROR_INVALID_SHADER_NV",
	-1000069000:                      "VK_ERROR_OUT_OF_POOL_MEMORY",
	-1000072003:                      "VK_ERROR_INVALID_EXTERNAL_HANDLE",
	-1000158000:                      "VK_ERROR_INVALID_DRM_FORMAT_MODIFIER_PLANE_LAYOUT_EXT",
	-1000161000:                      "VK_ERROR_FRAGMENTATION",
	-1000174001:                      "VK_ERROR_NOT_PERMITTED_KHR",
	-1000255000:                      "VK_ERROR_FULL_SCREEN_EXCLUSIVE_MODE_LOST_EXT",
	-1000257000:                      "VK_ERROR_INVALID_OPAQUE_CAPTURE_ADDRESS",
	-1000338000:                      "VK_ERROR_COMPRESSION_EXHAUSTED_EXT",
	1000268000:                       "VK_THREAD_IDLE_KHR",
	1000268001:                       "VK_THREAD_DONE_KHR",
	1000268002:                       "VK_OPERATION_DEFERRED_KHR",
	1000268003:                       "VK_OPERATION_NOT_DEFERRED_KHR",
	1000297000:                       "VK_PIPELINE_COMPILE_REQUIRED",
}

// ResultString returns the symbolic C name of a VkResult.
func ResultString(ret vulkan.Result) string {
	if name, ok := resultNames[ret]; ok {
		return name
	}
	return fmt.Sprintf("VK_RESULT_%d", int32(ret))
}

// ResultError is a failed Vulkan call.
type ResultError struct {
	Result vulkan.Result
	// Call is the Vulkan entry point that failed, if known.
	Call string
	// Site is the file:line of the caller that checked the result.
	Site string
}

func (e *ResultError) Error() string {
	if e.Call == "" {
		return fmt.Sprintf("vulkan error: %s (%d) on %s", ResultString(e.Result), int32(e.Result), e.Site)
	}
	return fmt.Sprintf("%s: %s (%d) on %s", e.Call, ResultString(e.Result), int32(e.Result), e.Site)
}

// NewError returns nil for VK_SUCCESS and a *ResultError otherwise.
func NewError(retVal vulkan.Result) error {
	if !IsError(retVal) {
		return nil
	}
	return newResultError(retVal, "", 2)
}

// Check is NewError with the name of the failing call attached.
func Check(retVal vulkan.Result, call string) error {
	if !IsError(retVal) {
		return nil
	}
	return newResultError(retVal, call, 2)
}

func newResultError(retVal vulkan.Result, call string, skip int) error {
	var err error = &ResultError{Result: retVal, Call: call, Site: callSite(skip)}
	switch retVal {
	case vulkan.ErrorExtensionNotPresent:
		err = errors.Mark(err, ErrExtensionNotPresent)
	case vulkan.ErrorLayerNotPresent:
		err = errors.Mark(err, ErrLayerNotPresent)
	case vulkan.ErrorOutOfDate, vulkan.Suboptimal:
		err = errors.Mark(err, ErrSwapchainStale)
	}
	return err
}

func IsError(retVal vulkan.Result) bool {
	return retVal != vulkan.Success
}

// IsStale reports whether ret means the swapchain must be rebuilt.
func IsStale(retVal vulkan.Result) bool {
	return retVal == vulkan.ErrorOutOfDate || retVal == vulkan.Suboptimal
}

// ResultOf extracts the VkResult carried by err, if any.
func ResultOf(err error) (vulkan.Result, bool) {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Result, true
	}
	return vulkan.Success, false
}

func callSite(skip int) string {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	site := fmt.Sprintf("%s:%d", filepath.Base(file), line)
	if fn := runtime.FuncForPC(pc); fn != nil {
		site += " (" + filepath.Base(fn.Name()) + ")"
	}
	return site
}

// violation reports a broken caller contract. With assertions on it panics;
// otherwise it logs and returns the error so the frame can be skipped.
func violation(assertions bool, log *slog.Logger, kind error, format string, args ...interface{}) error {
	err := errors.Mark(errors.AssertionFailedf(format, args...), kind)
	if assertions {
		panic(err)
	}
	log.Error("contract violation", slog.String("error", err.Error()))
	return err
}
