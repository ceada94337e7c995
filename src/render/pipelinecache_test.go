package render

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"vkframe/src/render/driver"
)

var cacheDevice = driver.DeviceProperties{
	VendorID:          0x1002,
	DeviceID:          0x73bf,
	PipelineCacheUUID: [16]byte{0xde, 0xad, 0xbe, 0xef, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
}

func cacheBlob(t *testing.T, h PipelineCacheHeader, payload string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, h))
	buf.WriteString(payload)
	return buf.Bytes()
}

func validHeader() PipelineCacheHeader {
	return PipelineCacheHeader{
		Length:   pipelineCacheHeaderSize,
		Version:  PipelineCacheHeaderVersionOne,
		VendorID: cacheDevice.VendorID,
		DeviceID: cacheDevice.DeviceID,
		UUID:     uuid.UUID(cacheDevice.PipelineCacheUUID),
	}
}

func TestParsePipelineCacheHeader(t *testing.T) {
	data := cacheBlob(t, validHeader(), "payload")
	h, err := ParsePipelineCacheHeader(data)
	require.NoError(t, err)
	require.Equal(t, validHeader(), h)
	require.NoError(t, h.Validate(cacheDevice))

	// the fields sit at fixed little endian offsets
	require.Equal(t, uint32(32), binary.LittleEndian.Uint32(data[0:]))
	require.Equal(t, uint32(0x73bf), binary.LittleEndian.Uint32(data[12:]))
	require.Equal(t, cacheDevice.PipelineCacheUUID[:], data[16:32])

	_, err = ParsePipelineCacheHeader(data[:31])
	require.Error(t, err)
}

func TestPipelineCacheHeaderValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(h *PipelineCacheHeader)
		reason string
	}{
		{"length", func(h *PipelineCacheHeader) { h.Length = 16 }, "length"},
		{"version", func(h *PipelineCacheHeader) { h.Version = 2 }, "version"},
		{"vendor", func(h *PipelineCacheHeader) { h.VendorID = 0x10de }, "vendor"},
		{"device", func(h *PipelineCacheHeader) { h.DeviceID++ }, "device"},
		{"uuid", func(h *PipelineCacheHeader) { h.UUID[0] ^= 0xff }, "UUID"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := validHeader()
			tc.mutate(&h)
			err := h.Validate(cacheDevice)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.reason)
		})
	}
}

func TestOpenPipelineCache(t *testing.T) {
	f := newFixture(t)
	props := f.fake.DeviceProperties(f.gpu.Handle())
	good := cacheBlob(t, PipelineCacheHeader{
		Length:   pipelineCacheHeaderSize,
		Version:  PipelineCacheHeaderVersionOne,
		VendorID: props.VendorID,
		DeviceID: props.DeviceID,
		UUID:     uuid.UUID(props.PipelineCacheUUID),
	}, "pipelines")

	cache, err := OpenPipelineCache(f.fake, f.device, props, good, quietLog())
	require.NoError(t, err)
	require.Equal(t, good, f.fake.CacheSeed(cache))

	cache, err = OpenPipelineCache(f.fake, f.device, cacheDevice, good, quietLog())
	require.NoError(t, err)
	require.Empty(t, f.fake.CacheSeed(cache))

	cache, err = OpenPipelineCache(f.fake, f.device, props, []byte("junk"), quietLog())
	require.NoError(t, err)
	require.Empty(t, f.fake.CacheSeed(cache))
}

func TestSaveAndLoadPipelineCache(t *testing.T) {
	f := newFixture(t)
	props := f.fake.DeviceProperties(f.gpu.Handle())
	path := filepath.Join(t.TempDir(), "cache.bin")

	cache, err := LoadPipelineCache(f.fake, f.device, props, path, quietLog())
	require.NoError(t, err)
	require.Empty(t, f.fake.CacheSeed(cache))

	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	cache, err = LoadPipelineCache(f.fake, f.device, props, path, quietLog())
	require.NoError(t, err)
	require.Empty(t, f.fake.CacheSeed(cache))

	f.fake.SetCacheData(cache, []byte("fresh"))
	require.NoError(t, SavePipelineCache(f.fake, f.device, cache, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), data)

	require.Error(t, SavePipelineCache(f.fake, f.device, cache, filepath.Join(t.TempDir(), "missing", "cache.bin")))
}
