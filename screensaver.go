package main

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

const screensaverHint = " PRESS ANY KEY "

func runScreensaver(ctx context.Context, cfg config) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("error creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("error initializing screen: %w", err)
	}
	defer screen.Fini()

	return screensaver(ctx, screen, cfg)
}

// screensaver rains on screen until a key is pressed or ctx is done. A resize
// starts a fresh field sized to the new screen.
func screensaver(ctx context.Context, screen tcell.Screen, cfg config) error {
	glyphs, err := rainGlyphs(cfg.Rain.Glyphs)
	if err != nil {
		return err
	}

	events := make(chan tcell.Event)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	for {
		rain := newScreenRain(screen, cfg, glyphs)
		if err := rain.start(); err != nil {
			return err
		}

		resized := waitScreenEvent(ctx, events)
		rain.stop()
		rain.wait()

		if !resized {
			return nil
		}
		screen.Sync()
	}
}

// waitScreenEvent blocks until a key press, a resize or ctx is done. It
// reports whether the screen was resized.
func waitScreenEvent(ctx context.Context, events <-chan tcell.Event) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev := <-events:
			switch ev.(type) {
			case *tcell.EventKey:
				return false
			case *tcell.EventResize:
				return true
			}
		}
	}
}

// newScreenRain clears screen, prints the hint on the bottom row and returns a
// field that rains around it.
func newScreenRain(screen tcell.Screen, cfg config, glyphs []rune) *rainField {
	screen.Clear()
	screen.HideCursor()

	width, height := screen.Size()
	hintWidth := runewidth.StringWidth(screensaverHint)
	x := max((width-hintWidth)/2, 0)
	y := height - 1

	style := tcell.StyleDefault.
		Foreground(tcell.ColorBlack).
		Background(tcell.GetColor(cfg.Rain.Bright))
	for i, r := range screensaverHint {
		screen.SetContent(x+i, y, r, nil, style)
	}
	screen.Show()

	rain := newRainField(width, height,
		newScreenSink(screen, cfg.Rain.Bright, cfg.Rain.Dim),
		withRainInterval(cfg.Rain.Interval.Duration),
		withRainGlyphs(glyphs),
	)
	rain.protectArea(x, y, x+hintWidth-1, y)

	return rain
}
