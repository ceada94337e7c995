package render

import (
	"math"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
)

// DebugChannel selects which validation callback mechanisms are installed.
type DebugChannel int

const (
	DebugNone DebugChannel = iota
	DebugReportOnly
	DebugReportAll
	DebugUtilsOnly
	DebugUtilsAll
	DebugBoth
)

var debugChannelNames = map[DebugChannel]string{
	DebugNone:       "none",
	DebugReportOnly: "report-only",
	DebugReportAll:  "report-all",
	DebugUtilsOnly:  "utils-only",
	DebugUtilsAll:   "utils-all",
	DebugBoth:       "both",
}

func (c DebugChannel) String() string {
	if name, ok := debugChannelNames[c]; ok {
		return name
	}
	return "unknown"
}

func (c DebugChannel) MarshalText() ([]byte, error) {
	name, ok := debugChannelNames[c]
	if !ok {
		return nil, errors.Newf("unknown debug channel %d", int(c))
	}
	return []byte(name), nil
}

func (c *DebugChannel) UnmarshalText(text []byte) error {
	want := strings.ToLower(strings.TrimSpace(string(text)))
	for channel, name := range debugChannelNames {
		if name == want {
			*c = channel
			return nil
		}
	}
	return errors.Newf("unknown debug channel %q", string(text))
}

// Report reports whether the debug-report callback is installed.
func (c DebugChannel) Report() bool {
	return c == DebugReportOnly || c == DebugReportAll || c == DebugBoth
}

// Utils reports whether the debug-utils messenger is installed.
func (c DebugChannel) Utils() bool {
	return c == DebugUtilsOnly || c == DebugUtilsAll || c == DebugBoth
}

// All reports whether every severity is forwarded rather than only errors and warnings.
func (c DebugChannel) All() bool {
	return c == DebugReportAll || c == DebugUtilsAll
}

var presentModeNames = map[string]vulkan.PresentMode{
	"immediate":    vulkan.PresentModeImmediate,
	"mailbox":      vulkan.PresentModeMailbox,
	"fifo":         vulkan.PresentModeFifo,
	"fifo-relaxed": vulkan.PresentModeFifoRelaxed,
}

type Config struct {
	ApplicationName string `toml:"application_name"`
	APIMajor        int    `toml:"api_major"`
	APIMinor        int    `toml:"api_minor"`

	Debug        bool         `toml:"debug"`
	DebugChannel DebugChannel `toml:"debug_channel"`
	// IgnoredMessageIDs suppresses validation messages known to be benign.
	IgnoredMessageIDs []int32 `toml:"ignored_message_ids"`

	// StrictFeatures rejects devices lacking a required feature instead of warning.
	StrictFeatures bool `toml:"strict_features"`
	// AllowCombinedTransfer accepts a graphics family for transfers when no
	// dedicated transfer family exists.
	AllowCombinedTransfer bool `toml:"allow_combined_transfer"`

	// PresentModes is the preference order; FIFO is used when none is available.
	PresentModes  []string   `toml:"present_modes"`
	DefaultWidth  uint32     `toml:"default_width"`
	DefaultHeight uint32     `toml:"default_height"`
	ClearColor    [4]float32 `toml:"clear_color"`

	// FencePollNanos is the timeout of a single fence wait; waits retry on VK_TIMEOUT.
	FencePollNanos uint64 `toml:"fence_poll_nanos"`
	// Assertions turns caller contract violations into panics.
	Assertions bool `toml:"assertions"`

	PipelineCachePath string `toml:"pipeline_cache_path"`
}

func DefaultConfig() Config {
	return Config{
		ApplicationName:       "vkframe",
		APIMajor:              1,
		APIMinor:              1,
		DebugChannel:          DebugReportOnly,
		StrictFeatures:        true,
		AllowCombinedTransfer: false,
		PresentModes:          []string{"fifo", "mailbox"},
		DefaultWidth:          1280,
		DefaultHeight:         720,
		ClearColor:            [4]float32{0, 0, 0, 1},
		FencePollNanos:        math.MaxUint64,
		Assertions:            true,
	}
}

// ParseConfig decodes TOML on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Config{}, errors.Wrapf(err, "config line %d column %d", row, col)
		}
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.APIMajor < 1 || c.APIMinor < 0 {
		return errors.Newf("invalid API version %d.%d", c.APIMajor, c.APIMinor)
	}
	if _, err := c.presentModePreference(); err != nil {
		return err
	}
	if c.DefaultWidth == 0 || c.DefaultHeight == 0 {
		return errors.Newf("invalid default extent %dx%d", c.DefaultWidth, c.DefaultHeight)
	}
	if c.FencePollNanos == 0 {
		return errors.New("fence_poll_nanos must be positive")
	}
	return nil
}

// APIVersion returns the requested instance API version.
func (c Config) APIVersion() uint32 {
	return vulkan.MakeVersion(c.APIMajor, c.APIMinor, 0)
}

func (c Config) presentModePreference() ([]vulkan.PresentMode, error) {
	modes := make([]vulkan.PresentMode, 0, len(c.PresentModes))
	for _, name := range c.PresentModes {
		mode, ok := presentModeNames[strings.ToLower(name)]
		if !ok {
			return nil, errors.Newf("unknown present mode %q", name)
		}
		modes = append(modes, mode)
	}
	return modes, nil
}

func (c Config) defaultExtent() vulkan.Extent2D {
	return vulkan.Extent2D{Width: c.DefaultWidth, Height: c.DefaultHeight}
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
