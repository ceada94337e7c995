package material

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"vkframe/src/render"
	"vkframe/src/render/driver"
)

type BlendOp int

const (
	BlendAlpha BlendOp = iota
	BlendAdd
	BlendMultiply
	BlendReplace
	blendOpCount
)

// Overlap selects how the alpha channel of overlapping draws combines.
type Overlap int

const (
	OverlapBlend Overlap = iota
	OverlapMax
	overlapCount
)

type RenderMode int

const (
	RenderFill RenderMode = iota
	RenderLine
	RenderPoint
	renderModeCount
)

// Target is the context a material renders into.
type Target interface {
	Device() vulkan.Device
	RenderPass() vulkan.RenderPass
	PipelineCache() vulkan.PipelineCache
}

var _ Target = (*render.GraphicsContext)(nil)

// Material is the fixed state shared by every pipeline variant.
type Material struct {
	// Sets are binding patterns, one per descriptor set.
	Sets          []string
	PushConstants []driver.PushConstantRange
	Stages        []driver.ShaderStage
	Vertex        driver.VertexInput
	Topology      vulkan.PrimitiveTopology
	Cull          vulkan.CullModeFlags
}

// Builder creates the pipeline layout of a material and lazily builds one
// pipeline per (BlendOp, Overlap, RenderMode).
type Builder struct {
	drv      driver.DeviceDriver
	target   Target
	material Material
	log      *slog.Logger

	layout vulkan.PipelineLayout

	mu        sync.Mutex
	pipelines [blendOpCount][overlapCount][renderModeCount]vulkan.Pipeline
	group     singleflight.Group
}

func NewBuilder(drv driver.DeviceDriver, registry *Registry, target Target, material Material, log *slog.Logger) (*Builder, error) {
	if log == nil {
		log = slog.Default()
	}
	sets := make([]vulkan.DescriptorSetLayout, 0, len(material.Sets))
	for _, pattern := range material.Sets {
		layout, err := registry.Layout(pattern)
		if err != nil {
			return nil, err
		}
		sets = append(sets, layout)
	}
	layout, ret := drv.CreatePipelineLayout(target.Device(), sets, material.PushConstants)
	if err := render.Check(ret, "vkCreatePipelineLayout"); err != nil {
		return nil, err
	}
	return &Builder{
		drv:      drv,
		target:   target,
		material: material,
		log:      log.With(slog.String("component", "material")),
		layout:   layout,
	}, nil
}

func (b *Builder) Layout() vulkan.PipelineLayout { return b.layout }

func validVariant(op BlendOp, ov Overlap, mode RenderMode) error {
	if op < 0 || op >= blendOpCount || ov < 0 || ov >= overlapCount || mode < 0 || mode >= renderModeCount {
		return errors.Newf("invalid pipeline variant (%d, %d, %d)", op, ov, mode)
	}
	return nil
}

// Pipeline returns the pipeline for a variant, building it on first use.
func (b *Builder) Pipeline(op BlendOp, ov Overlap, mode RenderMode) (vulkan.Pipeline, error) {
	if err := validVariant(op, ov, mode); err != nil {
		return vulkan.NullPipeline, err
	}
	b.mu.Lock()
	p := b.pipelines[op][ov][mode]
	b.mu.Unlock()
	if p != vulkan.NullPipeline {
		return p, nil
	}

	v, err, _ := b.group.Do(fmt.Sprintf("%d/%d/%d", op, ov, mode), func() (interface{}, error) {
		b.mu.Lock()
		p := b.pipelines[op][ov][mode]
		b.mu.Unlock()
		if p != vulkan.NullPipeline {
			return p, nil
		}
		p, ret := b.drv.CreateGraphicsPipeline(b.target.Device(), b.target.PipelineCache(), b.pipelineInfo(op, ov, mode))
		if err := render.Check(ret, "vkCreateGraphicsPipelines"); err != nil {
			return vulkan.NullPipeline, err
		}
		b.mu.Lock()
		b.pipelines[op][ov][mode] = p
		b.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return vulkan.NullPipeline, errors.Wrapf(err, "pipeline (%d, %d, %d)", op, ov, mode)
	}
	return v.(vulkan.Pipeline), nil
}

func (b *Builder) pipelineInfo(op BlendOp, ov Overlap, mode RenderMode) driver.GraphicsPipelineInfo {
	return driver.GraphicsPipelineInfo{
		Layout:     b.layout,
		RenderPass: b.target.RenderPass(),
		Stages:     b.material.Stages,
		Vertex:     b.material.Vertex,
		Topology:   b.material.Topology,
		Polygon:    polygonMode(mode),
		Cull:       b.material.Cull,
		FrontFace:  vulkan.FrontFaceCounterClockwise,
		LineWidth:  1,
		Blend:      blendState(op, ov),
	}
}

func polygonMode(mode RenderMode) vulkan.PolygonMode {
	switch mode {
	case RenderLine:
		return vulkan.PolygonModeLine
	case RenderPoint:
		return vulkan.PolygonModePoint
	}
	return vulkan.PolygonModeFill
}

func blendState(op BlendOp, ov Overlap) driver.BlendState {
	if op == BlendReplace {
		return driver.BlendState{}
	}
	s := driver.BlendState{
		Enable:   true,
		ColorOp:  vulkan.BlendOpAdd,
		SrcAlpha: vulkan.BlendFactorOne,
		DstAlpha: vulkan.BlendFactorOneMinusSrcAlpha,
		AlphaOp:  vulkan.BlendOpAdd,
	}
	switch op {
	case BlendAlpha:
		s.SrcColor, s.DstColor = vulkan.BlendFactorSrcAlpha, vulkan.BlendFactorOneMinusSrcAlpha
	case BlendAdd:
		s.SrcColor, s.DstColor = vulkan.BlendFactorOne, vulkan.BlendFactorOne
	case BlendMultiply:
		s.SrcColor, s.DstColor = vulkan.BlendFactorDstColor, vulkan.BlendFactorZero
	}
	if ov == OverlapMax {
		s.DstAlpha = vulkan.BlendFactorOne
		s.AlphaOp = vulkan.BlendOpMax
	}
	return s
}

// Warm builds every variant concurrently.
func (b *Builder) Warm(ctx context.Context) error {
	start := hrtime.Now()
	g, ctx := errgroup.WithContext(ctx)
	for op := BlendOp(0); op < blendOpCount; op++ {
		for ov := Overlap(0); ov < overlapCount; ov++ {
			for mode := RenderMode(0); mode < renderModeCount; mode++ {
				op, ov, mode := op, ov, mode
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					_, err := b.Pipeline(op, ov, mode)
					return err
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	b.log.Info("pipelines warmed", slog.Int("variants", b.Built()), slog.Duration("elapsed", hrtime.Since(start)))
	return nil
}

// Built counts the variants that exist.
func (b *Builder) Built() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for op := range b.pipelines {
		for ov := range b.pipelines[op] {
			for mode := range b.pipelines[op][ov] {
				if b.pipelines[op][ov][mode] != vulkan.NullPipeline {
					n++
				}
			}
		}
	}
	return n
}

// Invalidate destroys the built pipelines, as when the render pass they were
// built against is recreated. The pipeline layout stays.
func (b *Builder) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for op := range b.pipelines {
		for ov := range b.pipelines[op] {
			for mode, p := range b.pipelines[op][ov] {
				if p != vulkan.NullPipeline {
					b.drv.DestroyPipeline(b.target.Device(), p)
					b.pipelines[op][ov][mode] = vulkan.NullPipeline
				}
			}
		}
	}
}

func (b *Builder) Destroy() {
	b.Invalidate()
	if b.layout != vulkan.NullPipelineLayout {
		b.drv.DestroyPipelineLayout(b.target.Device(), b.layout)
		b.layout = vulkan.NullPipelineLayout
	}
}
