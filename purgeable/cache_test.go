package purgeable

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/label/surface"
)

var size4 = image.Pt(4, 4)

const rgba = gputypes.TextureFormatRGBA8Unorm

// pattern renders a deterministic gradient.
func pattern(_ context.Context, px draw.Image) error {
	b := px.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px.Set(x, y, color.RGBA{R: uint8(x * 40), G: uint8(y * 40), B: 7, A: 255})
		}
	}
	return nil
}

func snapshot(t *testing.T, c *Cache, img *Image) *image.RGBA {
	t.Helper()
	var out *image.RGBA
	st := c.WithLocked(img, func(px draw.Image) {
		out = image.NewRGBA(px.Bounds())
		draw.Draw(out, out.Bounds(), px, px.Bounds().Min, draw.Src)
	})
	if st != LockedLive {
		t.Fatalf("WithLocked = %v, want LockedLive", st)
	}
	return out
}

func TestCreateAndLock(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	key := Key{Owner: 1}
	img, err := c.CreateImage(context.Background(), key, size4, rgba, pattern)
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	if img.Size() != size4 || img.Format() != rgba || img.Bytes() != 64 {
		t.Errorf("image = %v %v %d bytes", img.Size(), img.Format(), img.Bytes())
	}
	if got := snapshot(t, c, img).RGBAAt(1, 2); got != (color.RGBA{R: 40, G: 80, B: 7, A: 255}) {
		t.Errorf("pixel (1, 2) = %v", got)
	}
	if got, ok := c.Lookup(key); !ok || got != img {
		t.Errorf("Lookup = %p, %v, want %p", got, ok, img)
	}
}

func TestPurgeDiscardRegenerate(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	key := Key{Owner: 2, Coord: image.Pt(1, 1)}
	img, err := c.CreateImage(context.Background(), key, size4, rgba, pattern)
	if err != nil {
		t.Fatal(err)
	}
	before := snapshot(t, c, img)

	c.PurgeAll()
	if !img.IsPurged() {
		t.Fatal("IsPurged() = false after PurgeAll")
	}
	ran := false
	if st := c.WithLocked(img, func(draw.Image) { ran = true }); st != LockedDiscarded {
		t.Errorf("WithLocked = %v, want LockedDiscarded", st)
	}
	if ran {
		t.Error("body ran for a discarded image")
	}

	again, err := c.Regenerate(context.Background(), key, size4, rgba, pattern)
	if err != nil {
		t.Fatal(err)
	}
	if again == img {
		t.Fatal("Regenerate reused the purged image")
	}
	after := snapshot(t, c, again)
	for i := range before.Pix {
		if before.Pix[i] != after.Pix[i] {
			t.Fatalf("regenerated pixels differ at byte %d", i)
		}
	}
	if !img.IsPurged() {
		t.Error("purged image came back")
	}
	if s := c.Stats(); s.Regenerations != 1 || s.Misses != 1 {
		t.Errorf("Stats = %+v, want 1 regeneration and 1 miss", s)
	}
}

func TestPurgeWhileLocked(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	img, err := c.CreateImage(context.Background(), Key{Owner: 3}, size4, rgba, pattern)
	if err != nil {
		t.Fatal(err)
	}
	st := c.WithLocked(img, func(px draw.Image) {
		c.PurgeAll()
		if px.At(0, 0) == (color.RGBA{}) {
			t.Error("pixels cleared while locked")
		}
		if img.IsPurged() {
			t.Error("image purged while locked")
		}
	})
	if st != LockedLive {
		t.Fatalf("WithLocked = %v", st)
	}
	if !img.IsPurged() {
		t.Error("deferred purge did not happen on unlock")
	}
	if b := c.Stats().Bytes; b != 0 {
		t.Errorf("Bytes = %d, want 0", b)
	}
}

func TestCreateCancelled(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	key := Key{Owner: 4}
	img, err := c.CreateImage(ctx, key, size4, rgba, func(ctx context.Context, px draw.Image) error {
		cancel()
		return nil
	})
	if img != nil || !errors.Is(err, context.Canceled) {
		t.Errorf("CreateImage = %v, %v, want nil, context.Canceled", img, err)
	}
	if _, ok := c.Lookup(key); ok {
		t.Error("cancelled image was registered")
	}
}

func TestCreateRenderError(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	boom := errors.New("boom")
	_, err := c.CreateImage(context.Background(), Key{}, size4, rgba, func(context.Context, draw.Image) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestAllocationLimit(t *testing.T) {
	c := New(Config{MaxImageBytes: 100})
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.CreateImage(context.Background(), Key{}, image.Pt(10, 10), rgba, pattern)
	if !errors.Is(err, surface.ErrAllocationFailed) {
		t.Errorf("err = %v, want ErrAllocationFailed", err)
	}
	// R8 needs a quarter of the bytes.
	if _, err := c.CreateImage(context.Background(), Key{}, image.Pt(10, 10), gputypes.TextureFormatR8Unorm, nil); err != nil {
		t.Errorf("R8 10x10 = %v, want success", err)
	}
}

func TestBudgetEvictsLeastRecentlyLocked(t *testing.T) {
	c := New(Config{MaxTotalBytes: 128})
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	a, _ := c.CreateImage(ctx, Key{Coord: image.Pt(0, 0)}, size4, rgba, pattern)
	b, _ := c.CreateImage(ctx, Key{Coord: image.Pt(1, 0)}, size4, rgba, pattern)
	c.WithLocked(a, func(draw.Image) {})
	d, err := c.CreateImage(ctx, Key{Coord: image.Pt(2, 0)}, size4, rgba, pattern)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		img    *Image
		purged bool
	}{
		{"a", a, false},
		{"b", b, true},
		{"d", d, false},
	}
	for _, tt := range tests {
		if got := tt.img.IsPurged(); got != tt.purged {
			t.Errorf("%s.IsPurged() = %v, want %v", tt.name, got, tt.purged)
		}
	}
	if s := c.Stats(); s.Evictions != 1 || s.Bytes != 128 {
		t.Errorf("Stats = %+v, want 1 eviction and 128 bytes", s)
	}
}

func TestReplaceAndRelease(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	key := Key{Owner: 9}

	first, _ := c.CreateImage(ctx, key, size4, rgba, pattern)
	second, _ := c.CreateImage(ctx, key, size4, rgba, pattern)
	if !first.IsPurged() {
		t.Error("replaced image not purged")
	}
	if got, _ := c.Lookup(key); got != second {
		t.Error("slot does not hold the new image")
	}

	c.Release(second)
	if !second.IsPurged() {
		t.Error("released image not purged")
	}
	if _, ok := c.Lookup(key); ok {
		t.Error("slot still occupied after Release")
	}
	if s := c.Stats(); s.Live != 0 || s.Bytes != 0 {
		t.Errorf("Stats = %+v, want empty", s)
	}
}

func TestLockFailed(t *testing.T) {
	c := New(DefaultConfig())
	if st := c.WithLocked(nil, func(draw.Image) {}); st != LockFailed {
		t.Errorf("WithLocked(nil) = %v, want LockFailed", st)
	}
	img, _ := c.CreateImage(context.Background(), Key{}, size4, rgba, pattern)
	_ = c.Close()
	if st := c.WithLocked(img, func(draw.Image) {}); st != LockFailed {
		t.Errorf("WithLocked after Close = %v, want LockFailed", st)
	}
	if _, err := c.CreateImage(context.Background(), Key{}, size4, rgba, pattern); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateImage after Close = %v, want ErrClosed", err)
	}
}

func TestRegenerateCoalesces(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	var calls atomic.Int32
	gate := make(chan struct{})
	render := func(ctx context.Context, px draw.Image) error {
		calls.Add(1)
		<-gate
		return pattern(ctx, px)
	}

	const n = 8
	var started, done sync.WaitGroup
	results := make([]*Image, n)
	for i := range n {
		started.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			started.Done()
			img, err := c.Regenerate(context.Background(), Key{Owner: 5}, size4, rgba, render)
			if err != nil {
				t.Error(err)
			}
			results[i] = img
		}()
	}
	started.Wait()
	time.Sleep(100 * time.Millisecond)
	close(gate)
	done.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("render calls = %d, want 1", got)
	}
	for i, img := range results {
		if img != results[0] {
			t.Errorf("result %d differs from result 0", i)
		}
	}
}

func TestRegenerateCallerCancellation(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	render := func(ctx context.Context, px draw.Image) error {
		once.Do(func() { close(entered) })
		<-gate
		return pattern(ctx, px)
	}

	key := Key{Owner: 6}
	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Regenerate(ctx, key, size4, rgba, render)
		firstErr <- err
	}()
	<-entered

	second := make(chan *Image, 1)
	go func() {
		img, err := c.Regenerate(context.Background(), key, size4, rgba, render)
		if err != nil {
			t.Errorf("second Regenerate: %v", err)
		}
		second <- img
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Regenerate error = %v, want %v", err, context.Canceled)
	}
	close(gate)

	img := <-second
	if img == nil {
		t.Fatal("second Regenerate returned nil image")
	}
	if st := c.WithLocked(img, func(draw.Image) {}); st != LockedLive {
		t.Errorf("WithLocked = %v, want LockedLive", st)
	}
	if got, ok := c.Lookup(key); !ok || got != img {
		t.Errorf("Lookup = %p, %v, want %p", got, ok, img)
	}
}

func TestRegenerateCancelledBeforeStart(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	render := func(ctx context.Context, px draw.Image) error {
		calls.Add(1)
		return pattern(ctx, px)
	}
	if _, err := c.Regenerate(ctx, Key{Owner: 7}, size4, rgba, render); !errors.Is(err, context.Canceled) {
		t.Errorf("Regenerate error = %v, want %v", err, context.Canceled)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("render calls = %d, want 0", got)
	}
}

func TestPurgeAllDuringCreate(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	other, err := c.CreateImage(context.Background(), Key{Owner: 8}, size4, rgba, pattern)
	if err != nil {
		t.Fatal(err)
	}
	render := func(ctx context.Context, px draw.Image) error {
		c.PurgeAll()
		return pattern(ctx, px)
	}
	img, err := c.CreateImage(context.Background(), Key{Owner: 9}, size4, rgba, render)
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	if img.IsPurged() {
		t.Error("image under construction was purged")
	}
	if got := snapshot(t, c, img).RGBAAt(1, 2); got != (color.RGBA{R: 40, G: 80, B: 7, A: 255}) {
		t.Errorf("pixel (1, 2) = %v", got)
	}
	if !other.IsPurged() {
		t.Error("registered image survived PurgeAll")
	}
}

func TestSubscribe(t *testing.T) {
	c := New(DefaultConfig())
	t.Cleanup(func() { _ = c.Close() })

	img, _ := c.CreateImage(context.Background(), Key{}, size4, rgba, pattern)
	signals := make(chan struct{})
	stop := c.Subscribe(signals)
	defer stop()

	signals <- struct{}{}
	deadline := time.Now().Add(2 * time.Second)
	for !img.IsPurged() {
		if time.Now().After(deadline) {
			t.Fatal("image not purged after pressure signal")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMonitorCheck(t *testing.T) {
	low := NewMonitor(0, time.Millisecond)
	if low.HeapBytes() == 0 {
		t.Fatal("HeapBytes() = 0")
	}
	if !low.Check() {
		t.Error("Check() = false with a zero limit")
	}
	select {
	case <-low.C():
	default:
		t.Error("no signal after Check")
	}

	high := NewMonitor(math.MaxUint64, time.Millisecond)
	if high.Check() {
		t.Error("Check() = true with an unlimited heap")
	}
}

func TestMonitorRunClosesChannel(t *testing.T) {
	m := NewMonitor(math.MaxUint64, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	cancel()
	select {
	case _, ok := <-m.C():
		if ok {
			t.Error("unexpected signal")
		}
	case <-time.After(2 * time.Second):
		t.Error("C() not closed after Run returned")
	}
}
