// Package display is the node's local two-line character panel. It is a
// presentation-only boundary: it consumes rendered lines and feeds nothing
// back into the core.
package display

import "log"

// DefaultWidth matches the common 16x2 character module.
const DefaultWidth = 16

// Sink shows one frame. Implementations pad or cut lines to their width.
type Sink interface {
	Show(line1, line2 string)
}

// Fit pads a line with spaces, or cuts it, to exactly width characters.
func Fit(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[:width])
	}
	for len(r) < width {
		r = append(r, ' ')
	}
	return string(r)
}

// Console renders frames into the node log, one bordered line each, which
// is what a bench run without panel hardware gets.
type Console struct {
	Width int
}

func (c Console) width() int {
	if c.Width <= 0 {
		return DefaultWidth
	}
	return c.Width
}

func (c Console) Show(line1, line2 string) {
	log.Printf("display: |%s|", Fit(line1, c.width()))
	log.Printf("display: |%s|", Fit(line2, c.width()))
}

// Memory retains the last frame and a frame count, for tests.
type Memory struct {
	Width  int
	Line1  string
	Line2  string
	Frames int
}

func (m *Memory) width() int {
	if m.Width <= 0 {
		return DefaultWidth
	}
	return m.Width
}

func (m *Memory) Show(line1, line2 string) {
	m.Line1 = Fit(line1, m.width())
	m.Line2 = Fit(line2, m.width())
	m.Frames++
}
