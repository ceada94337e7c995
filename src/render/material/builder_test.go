package material

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"vkframe/src/render/driver"
	"vkframe/src/render/driver/drivertest"
)

type target struct {
	device vulkan.Device
	pass   vulkan.RenderPass
	cache  vulkan.PipelineCache
}

func (t target) Device() vulkan.Device               { return t.device }
func (t target) RenderPass() vulkan.RenderPass       { return t.pass }
func (t target) PipelineCache() vulkan.PipelineCache { return t.cache }

func newBuilder(t *testing.T) (*drivertest.Fake, *Registry, *Builder) {
	t.Helper()
	fake, device := newDevice(t)
	pass, _ := fake.CreateRenderPass(device, driver.RenderPassInfo{Format: vulkan.FormatB8g8r8a8Unorm})
	cache, _ := fake.CreatePipelineCache(device, nil)
	registry := NewRegistry(fake, device, quietLog())

	b, err := NewBuilder(fake, registry, target{device: device, pass: pass, cache: cache}, Material{
		Sets:          []string{"u", "tt"},
		PushConstants: []driver.PushConstantRange{{Stages: ShaderStages, Size: 64}},
		Topology:      vulkan.PrimitiveTopologyTriangleList,
		Cull:          vulkan.CullModeFlags(vulkan.CullModeBackBit),
	}, quietLog())
	require.NoError(t, err)
	return fake, registry, b
}

func TestBuilderLayout(t *testing.T) {
	fake, registry, b := newBuilder(t)
	require.NotEqual(t, vulkan.NullPipelineLayout, b.Layout())
	require.Equal(t, 2, registry.Len())
	require.Equal(t, 1, fake.Called("CreatePipelineLayout"))
	require.Zero(t, b.Built())
}

func TestBuilderPipelineIsLazy(t *testing.T) {
	fake, _, b := newBuilder(t)

	p, err := b.Pipeline(BlendAlpha, OverlapBlend, RenderFill)
	require.NoError(t, err)
	again, err := b.Pipeline(BlendAlpha, OverlapBlend, RenderFill)
	require.NoError(t, err)
	require.Equal(t, p, again)
	require.Equal(t, 1, fake.Called("CreateGraphicsPipeline"))

	other, err := b.Pipeline(BlendAdd, OverlapMax, RenderLine)
	require.NoError(t, err)
	require.NotEqual(t, p, other)
	require.Equal(t, 2, b.Built())

	_, err = b.Pipeline(blendOpCount, OverlapBlend, RenderFill)
	require.Error(t, err)
	_, err = b.Pipeline(BlendAlpha, Overlap(-1), RenderFill)
	require.Error(t, err)
}

func TestBuilderWarm(t *testing.T) {
	fake, _, b := newBuilder(t)
	require.NoError(t, b.Warm(context.Background()))
	require.Equal(t, 24, b.Built())
	require.Equal(t, 24, fake.Called("CreateGraphicsPipeline"))

	require.NoError(t, b.Warm(context.Background()))
	require.Equal(t, 24, fake.Called("CreateGraphicsPipeline"))
}

func TestBuilderWarmFailure(t *testing.T) {
	fake, _, b := newBuilder(t)
	fake.FailNext("CreateGraphicsPipeline", vulkan.ErrorOutOfDeviceMemory)
	require.Error(t, b.Warm(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, b.Warm(ctx))
}

func TestBuilderInvalidateAndDestroy(t *testing.T) {
	fake, registry, b := newBuilder(t)
	require.NoError(t, b.Warm(context.Background()))

	b.Invalidate()
	require.Zero(t, b.Built())
	require.Zero(t, fake.Live("pipeline"))
	require.NotEqual(t, vulkan.NullPipelineLayout, b.Layout())

	_, err := b.Pipeline(BlendReplace, OverlapBlend, RenderPoint)
	require.NoError(t, err)

	b.Destroy()
	b.Destroy()
	registry.Destroy()
	require.Zero(t, fake.Live("pipeline"))
	require.Zero(t, fake.Live("pipeline-layout"))
	require.Zero(t, fake.Live("descriptor-set-layout"))
	require.Empty(t, fake.Misuse)
}

func TestBlendState(t *testing.T) {
	for _, tc := range []struct {
		op       BlendOp
		ov       Overlap
		enable   bool
		src, dst vulkan.BlendFactor
		alphaOp  vulkan.BlendOp
	}{
		{BlendAlpha, OverlapBlend, true, vulkan.BlendFactorSrcAlpha, vulkan.BlendFactorOneMinusSrcAlpha, vulkan.BlendOpAdd},
		{BlendAdd, OverlapBlend, true, vulkan.BlendFactorOne, vulkan.BlendFactorOne, vulkan.BlendOpAdd},
		{BlendMultiply, OverlapMax, true, vulkan.BlendFactorDstColor, vulkan.BlendFactorZero, vulkan.BlendOpMax},
		{BlendReplace, OverlapMax, false, 0, 0, 0},
	} {
		t.Run(fmt.Sprintf("%d/%d", tc.op, tc.ov), func(t *testing.T) {
			s := blendState(tc.op, tc.ov)
			require.Equal(t, tc.enable, s.Enable)
			require.Equal(t, tc.src, s.SrcColor)
			require.Equal(t, tc.dst, s.DstColor)
			require.Equal(t, tc.alphaOp, s.AlphaOp)
		})
	}
	require.Equal(t, vulkan.PolygonModeLine, polygonMode(RenderLine))
	require.Equal(t, vulkan.PolygonModePoint, polygonMode(RenderPoint))
	require.Equal(t, vulkan.PolygonModeFill, polygonMode(RenderFill))
}
