package main

import (
	"bytes"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/gdamore/tcell/v2"
	"github.com/muesli/termenv"
)

// console serializes every write to the terminal. The boot sequence prints
// its text through the same console the rain flushes into, so a frame never
// lands between a cursor move and the text it positions.
type console struct {
	mu       sync.Mutex
	out      *termenv.Output
	renderer *lipgloss.Renderer
}

func newConsole(w io.Writer, profile termenv.Profile) *console {
	return &console{
		out:      termenv.NewOutput(w, termenv.WithProfile(profile)),
		renderer: lipgloss.NewRenderer(w, termenv.WithProfile(profile)),
	}
}

func (c *console) write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.out.Write(p)
	return err
}

// writeAt prints s starting at cell (x, y).
func (c *console) writeAt(x, y int, s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.out.MoveCursor(y+1, x+1)
	_, err := io.WriteString(c.out, s)
	return err
}

func (c *console) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.out.ClearScreen()
}

func (c *console) hideCursor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.out.HideCursor()
}

func (c *console) showCursor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.out.ShowCursor()
}

func (c *console) profile() termenv.Profile {
	return c.out.Profile
}

// termSink renders rain cells as ANSI sequences into a private frame buffer
// and hands the whole frame to the console on flush.
type termSink struct {
	con   *console
	frame bytes.Buffer
	out   *termenv.Output

	bright termenv.Color
	dim    termenv.Color
	color  termenv.Color
}

func newTermSink(con *console, bright, dim string) *termSink {
	s := &termSink{con: con}
	s.out = termenv.NewOutput(&s.frame, termenv.WithProfile(con.profile()))
	s.bright = s.out.Color(bright)
	s.dim = s.out.Color(dim)
	s.color = s.bright
	return s
}

func (s *termSink) moveTo(x, y int) {
	s.out.MoveCursor(y+1, x+1)
}

func (s *termSink) setColor(c rainColor) {
	if c == rainDim {
		s.color = s.dim
		return
	}
	s.color = s.bright
}

func (s *termSink) writeRune(r rune) {
	s.frame.WriteString(s.out.String(string(r)).Foreground(s.color).String())
}

func (s *termSink) flush() error {
	if s.frame.Len() == 0 {
		return nil
	}
	defer s.frame.Reset()

	return s.con.write(s.frame.Bytes())
}

// screenSink renders rain cells onto a tcell screen.
type screenSink struct {
	screen tcell.Screen
	x, y   int

	bright tcell.Style
	dim    tcell.Style
	style  tcell.Style
}

func newScreenSink(screen tcell.Screen, bright, dim string) *screenSink {
	s := &screenSink{
		screen: screen,
		bright: tcell.StyleDefault.Foreground(tcell.GetColor(bright)),
		dim:    tcell.StyleDefault.Foreground(tcell.GetColor(dim)),
	}
	s.style = s.bright
	return s
}

func (s *screenSink) moveTo(x, y int) {
	s.x, s.y = x, y
}

func (s *screenSink) setColor(c rainColor) {
	if c == rainDim {
		s.style = s.dim
		return
	}
	s.style = s.bright
}

func (s *screenSink) writeRune(r rune) {
	s.screen.SetContent(s.x, s.y, r, nil, s.style)
	s.x++
}

func (s *screenSink) flush() error {
	s.screen.Show()
	return nil
}
