package render

import (
	"context"
	"sync"

	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
)

const (
	DebugReportExtension = "VK_EXT_debug_report"
	DebugUtilsExtension  = "VK_EXT_debug_utils"
	ValidationLayer      = "VK_LAYER_KHRONOS_validation"
)

// DebugExtensions lists the optional instance extensions channel needs.
func DebugExtensions(channel DebugChannel) []ExtensionEntry {
	var entries []ExtensionEntry
	if channel.Report() {
		entries = append(entries, ExtensionEntry{Name: DebugReportExtension, Optional: true})
	}
	if channel.Utils() {
		entries = append(entries, ExtensionEntry{Name: DebugUtilsExtension, Optional: true})
	}
	return entries
}

// DebugContext owns the validation callbacks of one instance. It must be
// closed before the instance is destroyed.
type DebugContext struct {
	drv      driver.InstanceDriver
	instance vulkan.Instance
	channel  DebugChannel
	log      *slog.Logger

	report    vulkan.DebugReportCallback
	messenger driver.DebugMessenger
	hasUtils  bool

	mu         sync.Mutex
	ignored    map[int32]struct{}
	counts     map[driver.Severity]int
	suppressed int
}

// NewDebugContext installs the callbacks selected by channel. enabled is the
// list of instance extensions that were actually enabled; a channel whose
// extension is missing is skipped with a warning.
func NewDebugContext(drv driver.InstanceDriver, instance vulkan.Instance, channel DebugChannel, enabled []string, ignored []int32, log *slog.Logger) (*DebugContext, error) {
	d := &DebugContext{
		drv:      drv,
		instance: instance,
		channel:  channel,
		log:      orDefault(log).With(slog.String("component", "validation")),
		ignored:  map[int32]struct{}{},
		counts:   map[driver.Severity]int{},
	}
	for _, id := range ignored {
		d.ignored[id] = struct{}{}
	}
	have := map[string]bool{}
	for _, name := range enabled {
		have[name] = true
	}

	if channel.Report() {
		if !have[DebugReportExtension] {
			d.log.Warn("debug report channel unavailable", slog.String("extension", DebugReportExtension))
		} else {
			cb, ret := drv.CreateDebugReport(instance, channel.All(), d.handle)
			if err := Check(ret, "vkCreateDebugReportCallbackEXT"); err != nil {
				return nil, err
			}
			d.report = cb
		}
	}

	if channel.Utils() {
		if !have[DebugUtilsExtension] {
			d.log.Warn("debug utils channel unavailable", slog.String("extension", DebugUtilsExtension))
		} else {
			// vulkan-go has no VK_EXT_debug_utils binding, so driver.Vulkan always
			// reports the extension missing here and only the report channel works.
			m, ret := drv.CreateDebugMessenger(instance, channel.All(), d.handle)
			switch {
			case ret == vulkan.ErrorExtensionNotPresent:
				d.log.Warn("debug utils messenger not supported by the bindings")
			case IsError(ret):
				d.Close()
				return nil, Check(ret, "vkCreateDebugUtilsMessengerEXT")
			default:
				d.messenger = m
				d.hasUtils = true
			}
		}
	}
	return d, nil
}

func (d *DebugContext) handle(msg driver.DebugMessage) {
	d.mu.Lock()
	if _, skip := d.ignored[msg.ID]; skip {
		d.suppressed++
		d.mu.Unlock()
		return
	}
	if !d.channel.All() && msg.Severity < driver.SeverityPerformance {
		d.mu.Unlock()
		return
	}
	d.counts[msg.Severity]++
	d.mu.Unlock()

	d.log.Log(context.Background(), severityLevel(msg.Severity), msg.Text,
		slog.String("source", string(msg.Source)),
		slog.String("severity", msg.Severity.String()),
		slog.Int("id", int(msg.ID)),
		slog.String("layer", msg.Layer))
}

func severityLevel(s driver.Severity) slog.Level {
	switch s {
	case driver.SeverityError:
		return slog.LevelError
	case driver.SeverityWarning, driver.SeverityPerformance:
		return slog.LevelWarn
	case driver.SeverityInfo:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// Ignore adds a message ID to the suppression list.
func (d *DebugContext) Ignore(id int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ignored[id] = struct{}{}
}

// Count returns how many messages of severity were forwarded.
func (d *DebugContext) Count(s driver.Severity) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[s]
}

// Suppressed returns how many messages matched the ignore list.
func (d *DebugContext) Suppressed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed
}

func (d *DebugContext) Close() {
	if d == nil {
		return
	}
	if d.hasUtils {
		d.drv.DestroyDebugMessenger(d.instance, d.messenger)
		d.hasUtils = false
		d.messenger = 0
	}
	if d.report != vulkan.NullDebugReportCallback {
		d.drv.DestroyDebugReport(d.instance, d.report)
		d.report = vulkan.NullDebugReportCallback
	}
}
