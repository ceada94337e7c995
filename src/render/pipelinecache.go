package render

import (
	"bytes"
	"encoding/binary"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"

	"vkframe/src/render/driver"
)

// PipelineCacheHeaderVersionOne is VK_PIPELINE_CACHE_HEADER_VERSION_ONE.
const PipelineCacheHeaderVersionOne = 1

// pipelineCacheHeaderSize is the length of the version one header.
const pipelineCacheHeaderSize = 16 + 16

// PipelineCacheHeader is the fixed prefix of VkPipelineCache data:
//
//	offset  size  field
//	     0     4  header length in bytes
//	     4     4  VkPipelineCacheHeaderVersion
//	     8     4  vendor ID
//	    12     4  device ID
//	    16    16  pipeline cache UUID
type PipelineCacheHeader struct {
	Length   uint32
	Version  uint32
	VendorID uint32
	DeviceID uint32
	UUID     uuid.UUID
}

func ParsePipelineCacheHeader(data []byte) (PipelineCacheHeader, error) {
	var h PipelineCacheHeader
	if len(data) < pipelineCacheHeaderSize {
		return h, errors.Newf("pipeline cache data too short: %d bytes", len(data))
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return h, errors.Wrap(err, "read pipeline cache header")
	}
	return h, nil
}

// Validate reports why data built for another device or driver cannot be reused.
func (h PipelineCacheHeader) Validate(props driver.DeviceProperties) error {
	switch {
	case h.Length < pipelineCacheHeaderSize:
		return errors.Newf("bad header length %d", h.Length)
	case h.Version != PipelineCacheHeaderVersionOne:
		return errors.Newf("unsupported header version %d", h.Version)
	case h.VendorID != props.VendorID:
		return errors.Newf("vendor mismatch: cache %#x, device %#x", h.VendorID, props.VendorID)
	case h.DeviceID != props.DeviceID:
		return errors.Newf("device mismatch: cache %#x, device %#x", h.DeviceID, props.DeviceID)
	case h.UUID != uuid.UUID(props.PipelineCacheUUID):
		return errors.Newf("cache UUID mismatch: cache %s, device %s", h.UUID, uuid.UUID(props.PipelineCacheUUID))
	}
	return nil
}

// OpenPipelineCache creates a pipeline cache seeded with data when the data
// was produced by the same device, and an empty one otherwise.
func OpenPipelineCache(drv driver.DeviceDriver, device vulkan.Device, props driver.DeviceProperties, data []byte, log *slog.Logger) (vulkan.PipelineCache, error) {
	log = orDefault(log)
	if len(data) > 0 {
		h, err := ParsePipelineCacheHeader(data)
		if err == nil {
			err = h.Validate(props)
		}
		if err != nil {
			log.Warn("discarding pipeline cache data", slog.String("reason", err.Error()))
			data = nil
		}
	}
	cache, ret := drv.CreatePipelineCache(device, data)
	if err := Check(ret, "vkCreatePipelineCache"); err != nil {
		return vulkan.NullPipelineCache, err
	}
	log.Debug("pipeline cache created", slog.Int("seed_bytes", len(data)))
	return cache, nil
}

// LoadPipelineCache is OpenPipelineCache with data read from path. A missing
// file yields an empty cache.
func LoadPipelineCache(drv driver.DeviceDriver, device vulkan.Device, props driver.DeviceProperties, path string, log *slog.Logger) (vulkan.PipelineCache, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return vulkan.NullPipelineCache, errors.Wrapf(err, "read pipeline cache %s", path)
		}
	}
	return OpenPipelineCache(drv, device, props, data, log)
}

// SavePipelineCache writes the cache contents to path.
func SavePipelineCache(drv driver.DeviceDriver, device vulkan.Device, cache vulkan.PipelineCache, path string) error {
	data, ret := drv.PipelineCacheData(device, cache)
	if err := Check(ret, "vkGetPipelineCacheData"); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write pipeline cache %s", path)
	}
	return nil
}
