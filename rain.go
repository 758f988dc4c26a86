package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-runewidth"
)

type rainColor int

const (
	rainDim rainColor = iota
	rainBright
)

// rainSink is where the rain draws. Cells are addressed from (0, 0) at the
// top-left corner; nothing is visible until flush is called.
type rainSink interface {
	moveTo(x, y int)
	setColor(c rainColor)
	writeRune(r rune)
	flush() error
}

// rainArea is an inclusive rectangle of cells the rain must never write to.
type rainArea struct {
	x1, y1, x2, y2 int
}

type drop struct {
	x      int
	y      int
	speed  int
	length int
}

type rainField struct {
	width    int
	height   int
	interval time.Duration
	glyphs   []rune
	sink     rainSink

	mu    sync.Mutex
	drops []drop
	rng   *rand.Rand

	areasMu sync.RWMutex
	areas   []rainArea

	// running is cleared by stop and checked before every tick. active is
	// held by the loop goroutine for its whole life.
	running atomic.Bool
	active  atomic.Bool

	loopMu sync.Mutex
	done   chan struct{}
}

type rainOption func(*rainField)

const (
	defaultRainInterval = 50 * time.Millisecond
	defaultRainGlyphs   = "ﾊﾐﾋｰｳｼﾅﾓﾆｻﾜﾂｵﾘｱﾎﾃﾏｹﾒｴｶｷﾑﾕﾗｾﾈｽﾀﾇﾍ"
)

var (
	errRainRunning = errors.New("rain is already running")
	errNoGlyphs    = errors.New("no single-width glyphs in rain glyph set")
)

func withRainInterval(d time.Duration) rainOption {
	return func(f *rainField) {
		if d > 0 {
			f.interval = d
		}
	}
}

func withRainGlyphs(glyphs []rune) rainOption {
	return func(f *rainField) {
		if len(glyphs) > 0 {
			f.glyphs = glyphs
		}
	}
}

// withRainRand makes the field deterministic, tests use it with a fixed seed.
func withRainRand(rng *rand.Rand) rainOption {
	return func(f *rainField) {
		f.rng = rng
	}
}

// rainGlyphs returns the single-width runes of s. Wide and zero-width runes
// would shift every cell after them on the row, so they are dropped.
func rainGlyphs(s string) ([]rune, error) {
	var glyphs []rune
	for _, r := range s {
		if runewidth.RuneWidth(r) == 1 {
			glyphs = append(glyphs, r)
		}
	}
	if len(glyphs) == 0 {
		return nil, fmt.Errorf("%w: %q", errNoGlyphs, s)
	}
	return glyphs, nil
}

func newRainField(width, height int, sink rainSink, opts ...rainOption) *rainField {
	f := &rainField{
		width:    width,
		height:   height,
		interval: defaultRainInterval,
		glyphs:   []rune(defaultRainGlyphs),
		sink:     sink,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	count := max(width/3, 0)
	f.drops = make([]drop, count)
	for i := range f.drops {
		f.drops[i] = drop{
			x:      f.rng.IntN(width),
			y:      -(5 + f.rng.IntN(15)),
			speed:  1 + f.rng.IntN(3),
			length: 5 + f.rng.IntN(15),
		}
	}

	return f
}

func (f *rainField) protectArea(x1, y1, x2, y2 int) {
	f.areasMu.Lock()
	defer f.areasMu.Unlock()

	f.areas = append(f.areas, rainArea{x1: x1, y1: y1, x2: x2, y2: y2})
}

// start launches the tick loop and returns immediately.
func (f *rainField) start() error {
	if !f.active.CompareAndSwap(false, true) {
		return errRainRunning
	}
	f.running.Store(true)

	done := make(chan struct{})
	f.loopMu.Lock()
	f.done = done
	f.loopMu.Unlock()

	go f.loop(done)

	return nil
}

// stop asks the loop to exit without waiting for it. A tick already in
// progress is allowed to finish.
func (f *rainField) stop() {
	f.running.Store(false)
}

// wait blocks until the loop started by the last start call has exited.
func (f *rainField) wait() {
	f.loopMu.Lock()
	done := f.done
	f.loopMu.Unlock()

	if done != nil {
		<-done
	}
}

func (f *rainField) loop(done chan struct{}) {
	defer close(done)
	defer f.active.Store(false)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	slog.Debug("rain started", slog.Int("width", f.width), slog.Int("height", f.height),
		slog.Int("drops", len(f.drops)))

	for f.running.Load() {
		if err := f.tick(); err != nil {
			slog.Warn("rain frame not flushed", slog.String("error", err.Error()))
		}
		<-ticker.C
	}

	slog.Debug("rain stopped")
}

// tick advances every drop once and flushes the frame.
func (f *rainField) tick() error {
	areas := f.protectedAreas()

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.drops {
		d := &f.drops[i]

		// A drop whose head sits on a protected cell only advances this tick.
		oldY := d.y
		if f.visible(oldY) {
			if isProtected(d.x, oldY, areas) {
				d.y += d.speed
				continue
			}
			f.sink.moveTo(d.x, oldY)
			f.sink.setColor(rainDim)
			f.sink.writeRune(' ')
		}

		d.y += d.speed

		if f.visible(d.y) && !isProtected(d.x, d.y, areas) {
			f.sink.moveTo(d.x, d.y)
			f.sink.setColor(rainBright)
			f.sink.writeRune(f.glyphs[f.rng.IntN(len(f.glyphs))])
		}

		if d.y >= f.height {
			d.y = -d.length
			d.x = f.rng.IntN(f.width)
		}
	}

	return f.sink.flush()
}

func (f *rainField) visible(y int) bool {
	return y >= 0 && y < f.height
}

func (f *rainField) protectedAreas() []rainArea {
	f.areasMu.RLock()
	defer f.areasMu.RUnlock()

	areas := make([]rainArea, len(f.areas))
	copy(areas, f.areas)
	return areas
}

func (f *rainField) snapshot() []drop {
	f.mu.Lock()
	defer f.mu.Unlock()

	drops := make([]drop, len(f.drops))
	copy(drops, f.drops)
	return drops
}

func (a rainArea) contains(x, y int) bool {
	return x >= a.x1 && x <= a.x2 && y >= a.y1 && y <= a.y2
}

func isProtected(x, y int, areas []rainArea) bool {
	for _, a := range areas {
		if a.contains(x, y) {
			return true
		}
	}
	return false
}
