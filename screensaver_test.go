package main

import (
	"context"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"
)

func newTestScreen(t *testing.T, width, height int) tcell.SimulationScreen {
	t.Helper()

	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	t.Cleanup(screen.Fini)
	screen.SetSize(width, height)

	return screen
}

func screensaverConfig() config {
	cfg := defaultConfig()
	cfg.Rain.Interval = duration{time.Millisecond}
	return cfg
}

func runTestScreensaver(t *testing.T, ctx context.Context, screen tcell.Screen) <-chan error {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		done <- screensaver(ctx, screen, screensaverConfig())
	}()
	return done
}

func waitScreensaver(t *testing.T, done <-chan error) {
	t.Helper()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("screensaver did not stop")
	}
}

func TestScreensaverKeyPress(t *testing.T) {
	const width, height = 40, 12
	screen := newTestScreen(t, width, height)

	done := runTestScreensaver(t, context.Background(), screen)
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, screen.PostEvent(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)))
	waitScreensaver(t, done)

	x := (width - len(screensaverHint)) / 2
	for i, r := range screensaverHint {
		got, _, _, _ := screen.GetContent(x+i, height-1)
		require.Equal(t, r, got, "hint overwritten at column %d", x+i)
	}

	drawn := 0
	glyphs := []rune(defaultRainGlyphs)
	for y := range height - 1 {
		for x := range width {
			r, _, _, _ := screen.GetContent(x, y)
			if r != ' ' {
				require.Contains(t, glyphs, r)
				drawn++
			}
		}
	}
	require.Positive(t, drawn, "no rain on screen")
}

func TestScreensaverCanceled(t *testing.T) {
	screen := newTestScreen(t, 20, 6)

	ctx, cancel := context.WithCancel(context.Background())
	done := runTestScreensaver(t, ctx, screen)
	time.Sleep(20 * time.Millisecond)
	cancel()

	waitScreensaver(t, done)
}

func TestScreensaverResize(t *testing.T) {
	screen := newTestScreen(t, 20, 6)

	done := runTestScreensaver(t, context.Background(), screen)
	time.Sleep(20 * time.Millisecond)

	screen.SetSize(30, 8)
	require.NoError(t, screen.PostEvent(tcell.NewEventResize(30, 8)))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, screen.PostEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)))
	waitScreensaver(t, done)

	x := (30 - len(screensaverHint)) / 2
	got, _, _, _ := screen.GetContent(x+1, 7)
	require.Equal(t, 'P', got, "hint not redrawn on the new bottom row")
}
