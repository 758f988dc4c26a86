package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// bootLogo is figlet's Slant font. Kept as separate lines because the art
// contains a backquote.
var bootLogo = []string{
	"  ______                    _                 ",
	" /_  __/__  _________ ___  (_)___  __  _______",
	"  / / / _ \\/ ___/ __ `__ \\/ / __ \\/ / / / ___/",
	" / / /  __/ /  / / / / / / / / / / /_/ (__  ) ",
	"/_/  \\___/_/  /_/ /_/ /_/_/_/ /_/\\__,_/____/  ",
}

type bootScreen struct {
	con    *console
	width  int
	height int
	cfg    config
}

func bootLines(now time.Time, s settings) []string {
	memory := "DISABLED"
	if s.UseMemory {
		memory = "ENABLED"
	}

	return []string{
		"INITIALIZING TERMINUS CORE...",
		"SYSTEM TIME: " + now.Format(time.DateTime),
		"ACTIVE MODEL: " + strings.ToUpper(s.Model),
		"MEMORY BANK: " + memory,
		"LOADING LANGUAGE INTERFACE..........[OK]",
		"OPENING UPLINK......................[OK]",
		"CALIBRATING RESPONSE MATRIX.........[OK]",
		"",
		"TERMINUS READY - AWAITING INPUT",
	}
}

// run plays the boot sequence: logo, rain and the typed status lines. The
// rain is kept off every cell the text is printed on.
func (b bootScreen) run(ctx context.Context, s settings) error {
	logoStyle := b.con.renderer.NewStyle().Foreground(lipgloss.Color(b.cfg.Rain.Bright)).Bold(true)
	textStyle := b.con.renderer.NewStyle().Foreground(lipgloss.Color(b.cfg.Rain.Bright))

	b.con.clear()
	b.con.hideCursor()
	defer b.con.showCursor()

	logoX := max((b.width-runewidth.StringWidth(bootLogo[0]))/2, 0)
	for i, line := range bootLogo {
		if err := b.con.writeAt(logoX, i, logoStyle.Render(line)); err != nil {
			return fmt.Errorf("error writing logo: %w", err)
		}
	}

	lines := bootLines(time.Now(), s)
	textY := len(bootLogo) + 1
	textWidth := 0
	for _, line := range lines {
		textWidth = max(textWidth, runewidth.StringWidth(line))
	}

	glyphs, err := rainGlyphs(b.cfg.Rain.Glyphs)
	if err != nil {
		return err
	}

	rain := newRainField(b.width, b.height,
		newTermSink(b.con, b.cfg.Rain.Bright, b.cfg.Rain.Dim),
		withRainInterval(b.cfg.Rain.Interval.Duration),
		withRainGlyphs(glyphs),
	)
	rain.protectArea(0, 0, b.width-1, len(bootLogo)-1)
	rain.protectArea(0, textY, textWidth+1, textY+len(lines)-1)

	if err := rain.start(); err != nil {
		slog.Warn("boot rain not started", slog.String("error", err.Error()))
	}
	defer func() {
		rain.stop()
		rain.wait()
		b.reset()
	}()

	for i, line := range lines {
		for j, r := range []rune(line) {
			if err := b.con.writeAt(j, textY+i, textStyle.Render(string(r))); err != nil {
				return fmt.Errorf("error writing boot text: %w", err)
			}
			if err := pause(ctx, b.cfg.Boot.TypeDelay.Duration); err != nil {
				return err
			}
		}
		if err := pause(ctx, b.cfg.Boot.LineDelay.Duration); err != nil {
			return err
		}
	}

	return nil
}

// reset clears what the boot sequence drew and homes the cursor.
func (b bootScreen) reset() {
	b.con.clear()
	if err := b.con.writeAt(0, 0, ""); err != nil {
		slog.Warn("error homing cursor after boot", slog.String("error", err.Error()))
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
