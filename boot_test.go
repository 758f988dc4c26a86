package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/require"
)

func fastBootConfig() config {
	cfg := defaultConfig()
	cfg.Boot.TypeDelay = duration{0}
	cfg.Boot.LineDelay = duration{5 * time.Millisecond}
	cfg.Rain.Interval = duration{time.Millisecond}
	return cfg
}

var cellWrite = regexp.MustCompile("\x1b\\[(\\d+);(\\d+)H([^\x1b])")

func TestBootScreenRun(t *testing.T) {
	const width, height = 80, 24

	var buf bytes.Buffer
	s := settings{Model: "gpt-4o", UseMemory: false}
	b := bootScreen{con: newConsole(&buf, termenv.Ascii), width: width, height: height, cfg: fastBootConfig()}

	require.NoError(t, b.run(context.Background(), s))
	out := buf.String()

	for _, line := range bootLogo {
		require.Contains(t, out, line)
	}

	lines := bootLines(time.Now(), s)
	textY := len(bootLogo) + 1
	last := len(lines) - 1
	for j, r := range lines[last] {
		require.Contains(t, out, fmt.Sprintf("\x1b[%d;%dH%c", textY+last+1, j+1, r))
	}

	textWidth := 0
	for _, line := range lines {
		textWidth = max(textWidth, len(line))
	}

	glyphs := []rune(defaultRainGlyphs)
	drawn := 0
	for _, m := range cellWrite.FindAllStringSubmatch(out, -1) {
		r := []rune(m[3])[0]
		if !slices.Contains(glyphs, r) {
			continue
		}
		drawn++

		row, _ := strconv.Atoi(m[1])
		col, _ := strconv.Atoi(m[2])
		x, y := col-1, row-1
		require.GreaterOrEqual(t, y, len(bootLogo), "rain over the logo at %d,%d", x, y)
		inText := y >= textY && y < textY+len(lines) && x <= textWidth+1
		require.False(t, inText, "rain over the boot text at %d,%d", x, y)
	}
	require.Positive(t, drawn, "rain never drew during boot")

	require.True(t, strings.HasSuffix(out, termenv.CSI+termenv.ShowCursorSeq))
}

func TestBootScreenCanceled(t *testing.T) {
	var buf bytes.Buffer
	b := bootScreen{con: newConsole(&buf, termenv.Ascii), width: 80, height: 24, cfg: fastBootConfig()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.run(ctx, defaultSettings())
	require.ErrorIs(t, err, context.Canceled)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("terminal gone")
}

func TestBootScreenResetLogsWriteError(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	b := bootScreen{con: newConsole(brokenWriter{}, termenv.Ascii), width: 80, height: 24, cfg: fastBootConfig()}
	require.NotPanics(t, b.reset)

	require.Contains(t, logs.String(), "error homing cursor after boot")
	require.Contains(t, logs.String(), "terminal gone")
}

func TestBootLines(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	lines := bootLines(now, settings{Model: "gpt-4o-mini", UseMemory: true})
	require.Contains(t, lines, "SYSTEM TIME: 2026-10-16 09:30:00")
	require.Contains(t, lines, "ACTIVE MODEL: GPT-4O-MINI")
	require.Contains(t, lines, "MEMORY BANK: ENABLED")

	lines = bootLines(now, settings{Model: "gpt-4o", UseMemory: false})
	require.Contains(t, lines, "MEMORY BANK: DISABLED")
}

func TestPause(t *testing.T) {
	require.NoError(t, pause(context.Background(), 0))
	require.NoError(t, pause(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, pause(ctx, time.Hour), context.Canceled)
}
