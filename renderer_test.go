package label

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/label/geom"
	"github.com/gogpu/label/purgeable"
	"github.com/gogpu/label/recording"
	"github.com/gogpu/label/surface"
	"github.com/gogpu/label/textframe"
	"github.com/gogpu/label/tiled"
)

// mockProvider implements gpucontext.DeviceProvider for testing.
type mockProvider struct{}

func (mockProvider) Device() gpucontext.Device             { return nil }
func (mockProvider) Queue() gpucontext.Queue               { return nil }
func (mockProvider) Adapter() gpucontext.Adapter           { return nil }
func (mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (mockProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "mock"}
}

const testScale = 1.5

// newTarget returns a transparent raster surface covering size points.
func newTarget(size geom.Point) *surface.ImageSurface {
	px := geom.Rect{Max: size}.PixelBounds(testScale)
	return surface.NewImageSurfaceFrom(image.NewRGBA(px), testScale, image.Point{})
}

func testRequest(t testing.TB) Request {
	t.Helper()
	spans := []textframe.Span{
		{Text: "Cross-mode ", Style: textframe.Style{Font: loadTestFont(t), Size: 16, Color: color.RGBA{R: 20, G: 40, B: 160, A: 255}}},
		{Text: "consistency\nacross modes", Style: textframe.Style{Font: loadTestFont(t), Size: 13, Color: black, Underline: true}},
	}
	f, err := textframe.Build(spans, textframe.Options{MaxWidth: 180})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return Request{
		Frame:  f,
		Range:  f.FullRange(),
		Origin: geom.Pt(6.25, 5.5),
		Params: ViewportParams{Size: geom.Pt(200, 120), DisplayScale: testScale},
	}
}

func inkPixels(img *image.RGBA) int {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			n++
		}
	}
	return n
}

func diffPixels(a, b *image.RGBA) int {
	n := 0
	for i := 0; i < len(a.Pix); i += 4 {
		if [4]uint8(a.Pix[i:i+4]) != [4]uint8(b.Pix[i:i+4]) {
			n++
		}
	}
	return n
}

func renderSnapshot(t *testing.T, r *Renderer, req Request) (*image.RGBA, RenderInfo) {
	t.Helper()
	dst := newTarget(req.Params.Size)
	info, err := r.Render(context.Background(), dst, req)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return dst.Snapshot(), info
}

// =============================================================================
// Modes
// =============================================================================

func TestRenderer_CrossModeConsistency(t *testing.T) {
	req := testRequest(t)

	direct := NewRenderer()
	defer direct.Close()
	want, info := renderSnapshot(t, direct, req)
	if info.Mode != ModeDirect {
		t.Fatalf("baseline Mode = %v, want %v", info.Mode, ModeDirect)
	}
	if inkPixels(want) == 0 {
		t.Fatal("direct render is blank")
	}

	tiny := DefaultModePolicy()
	tiny.MaxImageArea = 100
	tiles := tiled.Config{TileSize: 64, MinTileSize: 16, Workers: 2}

	tests := []struct {
		name        string
		opts        []RendererOption
		preferImage bool
		compositing bool
		want        RenderMode
	}{
		{"image", nil, true, false, ModeImage},
		{"sublayer", nil, true, true, ModeImageInSublayer},
		{"tiled", []RendererOption{WithModePolicy(tiny), WithTileConfig(tiles)}, true, false, ModeTiled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(tt.opts...)
			defer r.Close()
			q := req
			q.PreferImage = tt.preferImage
			q.Params.NeedsCompositing = tt.compositing
			got, info := renderSnapshot(t, r, q)
			if info.Mode != tt.want {
				t.Fatalf("Mode = %v, want %v", info.Mode, tt.want)
			}
			if d := diffPixels(got, want); d != 0 {
				t.Errorf("%d pixels differ from direct rendering", d)
			}
		})
	}
}

func TestRenderer_ImageCached(t *testing.T) {
	req := testRequest(t)
	req.PreferImage = true
	r := NewRenderer()
	defer r.Close()

	renderSnapshot(t, r, req)
	renderSnapshot(t, r, req)
	if got := r.Images().Stats().Creates; got != 1 {
		t.Errorf("Creates after two renders = %d, want 1", got)
	}

	r.Invalidate()
	renderSnapshot(t, r, req)
	if got := r.Images().Stats().Creates; got != 2 {
		t.Errorf("Creates after Invalidate = %d, want 2", got)
	}
	if got := r.Images().Stats().Live; got != 1 {
		t.Errorf("Live = %d, want 1 (old image released)", got)
	}
}

func TestRenderer_ImageRegeneratedAfterPurge(t *testing.T) {
	req := testRequest(t)
	req.PreferImage = true
	r := NewRenderer()
	defer r.Close()

	first, _ := renderSnapshot(t, r, req)
	r.Images().PurgeAll()
	second, _ := renderSnapshot(t, r, req)

	if d := diffPixels(first, second); d != 0 {
		t.Errorf("%d pixels differ after regeneration", d)
	}
	if got := r.Images().Stats().Regenerations; got != 1 {
		t.Errorf("Regenerations = %d, want 1", got)
	}
}

func TestRenderer_SublayerRegeneratedAfterPurge(t *testing.T) {
	req := testRequest(t)
	req.PreferImage = true
	req.Params.NeedsCompositing = true
	r := NewRenderer()
	defer r.Close()

	first, _ := renderSnapshot(t, r, req)
	r.Images().PurgeAll()
	second, _ := renderSnapshot(t, r, req)
	if d := diffPixels(first, second); d != 0 {
		t.Errorf("%d pixels differ after regeneration", d)
	}
	if r.Layer() == nil || r.Layer().Image() == nil || r.Layer().Image().IsPurged() {
		t.Error("layer does not hold a live image")
	}
}

func TestRenderer_CancelledRegenerationReleased(t *testing.T) {
	images := purgeable.New(purgeable.DefaultConfig())
	defer images.Close()

	var block atomic.Bool
	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	req := testRequest(t)
	req.PreferImage = true
	req.DrawFunc = func(context.Context, surface.Surface, geom.Rect) {
		if block.Load() {
			entered <- struct{}{}
			<-gate
		}
	}

	r := NewRenderer(WithImageCache(images))
	renderSnapshot(t, r, req)
	images.PurgeAll()

	block.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Render(ctx, newTarget(req.Params.Size), req)
		done <- err
	}()
	<-entered
	cancel()
	if err := <-done; err != nil {
		t.Errorf("cancelled Render error = %v, want nil", err)
	}
	close(gate)

	deadline := time.Now().Add(5 * time.Second)
	for images.Stats().Regenerations == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := images.Stats().Regenerations; got != 1 {
		t.Fatalf("Regenerations = %d, want 1", got)
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if st := images.Stats(); st.Live != 0 || st.Purged != 0 {
		t.Errorf("after Close: Live = %d, Purged = %d, want 0, 0", st.Live, st.Purged)
	}
}

func TestRenderer_ImageAllocationFallback(t *testing.T) {
	req := testRequest(t)

	direct := NewRenderer()
	defer direct.Close()
	want, _ := renderSnapshot(t, direct, req)

	images := purgeable.New(purgeable.Config{MaxImageBytes: 64})
	defer images.Close()
	r := NewRenderer(WithImageCache(images))
	defer r.Close()

	req.PreferImage = true
	got, info := renderSnapshot(t, r, req)
	if info.Mode != ModeImage {
		t.Fatalf("Mode = %v, want %v", info.Mode, ModeImage)
	}
	if d := diffPixels(got, want); d != 0 {
		t.Errorf("fallback differs from direct rendering in %d pixels", d)
	}
	if images.Stats().Live != 0 {
		t.Error("an image was registered despite the allocation limit")
	}
}

func TestRenderer_ModeSwitchReleases(t *testing.T) {
	req := testRequest(t)
	r := NewRenderer()
	defer r.Close()

	req.PreferImage = true
	renderSnapshot(t, r, req)
	if got := r.Images().Stats().Live; got != 1 {
		t.Fatalf("Live in image mode = %d, want 1", got)
	}

	req.PreferImage = false
	if _, info := renderSnapshot(t, r, req); info.Mode != ModeDirect {
		t.Fatalf("Mode = %v, want %v", info.Mode, ModeDirect)
	}
	if got := r.Images().Stats().Live; got != 0 {
		t.Errorf("Live after switching to direct = %d, want 0", got)
	}
	if r.Mode() != ModeDirect {
		t.Errorf("Mode() = %v, want %v", r.Mode(), ModeDirect)
	}
}

func TestRenderer_Tiled(t *testing.T) {
	req := testRequest(t)
	tiny := DefaultModePolicy()
	tiny.MaxImageArea = 100
	r := NewRenderer(WithModePolicy(tiny), WithTileConfig(tiled.Config{TileSize: 64, MinTileSize: 16}))
	defer r.Close()

	renderSnapshot(t, r, req)
	e := r.Engine()
	if e == nil {
		t.Fatal("Engine() = nil in tiled mode")
	}
	if e.Config().Scale != testScale {
		t.Errorf("engine Scale = %v, want %v", e.Config().Scale, testScale)
	}
	st := e.Stats()
	if st.Ready == 0 || st.Ready != st.Tiles {
		t.Errorf("Ready = %d of %d tiles, want all", st.Ready, st.Tiles)
	}

	// Same request: no new tiles.
	rendered := st.Rendered
	renderSnapshot(t, r, req)
	if got := e.Stats().Rendered; got != rendered {
		t.Errorf("Rendered = %d after an identical request, want %d", got, rendered)
	}
}

// =============================================================================
// Targets and lifecycle
// =============================================================================

func TestRenderer_VectorTargetDrawsDirectly(t *testing.T) {
	req := testRequest(t)
	req.PreferImage = true
	r := NewRenderer()
	defer r.Close()

	rec := recording.NewRecorder(300, 180)
	info, err := r.Render(context.Background(), rec, req)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode != ModeDirect {
		t.Errorf("Mode = %v, want %v", info.Mode, ModeDirect)
	}
	paths := 0
	for _, c := range rec.FinishRecording().Commands() {
		switch c.Type() {
		case recording.CmdDrawImage, recording.CmdDrawMask:
			t.Fatalf("vector target received %v", c.Type())
		case recording.CmdFillPath:
			paths++
		}
	}
	if paths == 0 {
		t.Error("no glyph paths recorded")
	}
}

func TestRenderer_GPUHostedSublayer(t *testing.T) {
	req := testRequest(t)
	req.PreferImage = true
	req.Params.NeedsCompositing = true
	r := NewRenderer(WithDeviceProvider(mockProvider{}))
	defer r.Close()

	got, info := renderSnapshot(t, r, req)
	if info.Mode != ModeImageInSublayer {
		t.Fatalf("Mode = %v, want %v", info.Mode, ModeImageInSublayer)
	}
	if n := inkPixels(got); n != 0 {
		t.Errorf("GPU-hosted sublayer drew %d pixels into the host surface", n)
	}
	l := r.Layer()
	if l == nil || l.Image() == nil {
		t.Fatal("layer has no image")
	}
	if want := info.DeviceBounds(testScale).Min; l.Position() != want {
		t.Errorf("layer Position = %v, want %v", l.Position(), want)
	}
}

func TestRenderer_Cancelled(t *testing.T) {
	req := testRequest(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, prefer := range []bool{false, true} {
		r := NewRenderer()
		req.PreferImage = prefer
		dst := newTarget(req.Params.Size)
		if _, err := r.Render(ctx, dst, req); err != nil {
			t.Errorf("prefer %v: Render = %v, want nil", prefer, err)
		}
		if n := inkPixels(dst.Snapshot()); n != 0 {
			t.Errorf("prefer %v: cancelled render drew %d pixels", prefer, n)
		}
		if got := r.Images().Stats().Live; got != 0 {
			t.Errorf("prefer %v: cancelled render registered %d images", prefer, got)
		}
		_ = r.Close()
	}
}

func TestRenderer_PressureSignals(t *testing.T) {
	req := testRequest(t)
	req.PreferImage = true
	signals := make(chan struct{})
	r := NewRenderer(WithPressureSignals(signals))
	defer r.Close()

	renderSnapshot(t, r, req)
	signals <- struct{}{}

	deadline := time.Now().Add(2 * time.Second)
	for r.Images().Stats().Purged == 0 {
		if time.Now().After(deadline) {
			t.Fatal("pressure signal did not purge the image")
		}
		time.Sleep(time.Millisecond)
	}
	renderSnapshot(t, r, req)
	if got := r.Images().Stats().Regenerations; got != 1 {
		t.Errorf("Regenerations = %d, want 1", got)
	}
}

func TestRenderer_Closed(t *testing.T) {
	r := NewRenderer(WithMemoryLimit(1<<40, time.Millisecond))
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	req := testRequest(t)
	if _, err := r.Render(context.Background(), newTarget(req.Params.Size), req); !errors.Is(err, ErrClosed) {
		t.Errorf("Render after Close = %v, want %v", err, ErrClosed)
	}
}

func TestRenderer_Panics(t *testing.T) {
	req := testRequest(t)
	tests := []struct {
		name string
		req  Request
	}{
		{"nil frame", Request{}},
		{"range past end", Request{Frame: req.Frame, Range: textframe.Range{Start: 0, End: req.Frame.Len() + 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer()
			defer r.Close()
			defer func() {
				if recover() == nil {
					t.Error("Render did not panic")
				}
			}()
			_, _ = r.Render(context.Background(), newTarget(geom.Pt(10, 10)), tt.req)
		})
	}
}
