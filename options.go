package label

import (
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/label/purgeable"
	"github.com/gogpu/label/tiled"
)

// RendererOption configures a Renderer during creation.
// Use functional options to customize Renderer behavior.
//
// Example:
//
//	// Default policy, private image cache, CPU compositing
//	r := label.NewRenderer()
//
//	// Shared cache and GPU-hosted sublayers
//	r := label.NewRenderer(
//	    label.WithImageCache(images),
//	    label.WithDeviceProvider(app.GPUContextProvider()),
//	)
type RendererOption func(*rendererOptions)

// rendererOptions holds optional configuration for Renderer creation.
type rendererOptions struct {
	policy   ModePolicy
	images   *purgeable.Cache
	tiles    tiled.Config
	provider gpucontext.DeviceProvider

	pressure       <-chan struct{}
	memoryLimit    uint64
	memoryInterval time.Duration
}

// defaultOptions returns the default renderer options.
func defaultOptions() rendererOptions {
	return rendererOptions{
		policy: DefaultModePolicy(),
		images: nil, // Will be created if nil
		tiles:  tiled.DefaultConfig(),
	}
}

// WithModePolicy replaces the mode selection constants.
//
// Example:
//
//	p := label.DefaultModePolicy()
//	p.MaxImageArea = 2_000_000
//	r := label.NewRenderer(label.WithModePolicy(p))
func WithModePolicy(p ModePolicy) RendererOption {
	return func(o *rendererOptions) {
		o.policy = p
	}
}

// WithImageCache stores the renderer's bitmaps in c, which the caller
// keeps ownership of. By default each Renderer has a private cache.
func WithImageCache(c *purgeable.Cache) RendererOption {
	return func(o *rendererOptions) {
		o.images = c
	}
}

// WithTileConfig configures the tiled engine used for very large content.
// Scale, Format and Images are set by the renderer.
func WithTileConfig(cfg tiled.Config) RendererOption {
	return func(o *rendererOptions) {
		o.tiles = cfg
	}
}

// WithDeviceProvider makes sublayers GPU-hosted: Render leaves their
// presentation to the caller, through Renderer.Layer().RenderTo.
func WithDeviceProvider(p gpucontext.DeviceProvider) RendererOption {
	return func(o *rendererOptions) {
		o.provider = p
	}
}

// WithPressureSignals purges the image cache whenever signals delivers a
// value.
func WithPressureSignals(signals <-chan struct{}) RendererOption {
	return func(o *rendererOptions) {
		o.pressure = signals
	}
}

// WithMemoryLimit purges the image cache whenever the Go heap exceeds
// limit bytes, checked every interval.
func WithMemoryLimit(limit uint64, interval time.Duration) RendererOption {
	return func(o *rendererOptions) {
		o.memoryLimit = limit
		o.memoryInterval = interval
	}
}
