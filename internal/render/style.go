package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

var ErrBadColor = errors.New("render: unrecognized color")

type Color struct{ R, G, B uint8 }

var palette = map[string]Color{
	"red":    {230, 57, 70},
	"green":  {42, 157, 143},
	"blue":   {69, 123, 157},
	"white":  {241, 250, 238},
	"yellow": {233, 196, 106},
	"orange": {244, 162, 97},
	"purple": {155, 93, 229},
	"gray":   {141, 153, 174},
	"cyan":   {0, 187, 249},
}

// default colors for types without an explicit style, cycled by type id
var cycle = []string{"blue", "red", "green", "yellow", "purple", "orange", "cyan", "gray", "white"}

// ParseColor accepts #rrggbb or a palette name.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := palette[s]; ok {
		return c, nil
	}
	if len(s) == 7 && s[0] == '#' {
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err == nil {
			return Color{uint8(v >> 16), uint8(v >> 8), uint8(v)}, nil
		}
	}
	return Color{}, fmt.Errorf("%w: %q", ErrBadColor, s)
}

func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// TypeStyle describes how one atom type is drawn.
type TypeStyle struct {
	Visible bool
	Color   Color
	Scale   float32
}

func DefaultTypeStyle(atomType int) TypeStyle {
	name := cycle[(atomType-1+len(cycle))%len(cycle)]
	return TypeStyle{Visible: true, Color: palette[name], Scale: 1}
}

// Style is the per-type table shared by the presentation context (edits) and
// the worker (reads at extraction time). Index 0 holds atom type 1.
type Style struct {
	mu    sync.Mutex
	types []TypeStyle
	dirty bool
}

func NewStyle() *Style { return &Style{} }

// EnsureTypes grows the table with defaults so it covers n types.
func (s *Style) EnsureTypes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.types) < n {
		s.types = append(s.types, DefaultTypeStyle(len(s.types)+1))
		s.dirty = true
	}
}

// Set replaces the style of atomType, growing the table if needed.
func (s *Style) Set(atomType int, ts TypeStyle) {
	if atomType < 1 {
		return
	}
	s.EnsureTypes(atomType)
	s.mu.Lock()
	s.types[atomType-1] = ts
	s.dirty = true
	s.mu.Unlock()
}

func (s *Style) SetVisible(atomType int, visible bool) {
	if atomType < 1 {
		return
	}
	s.EnsureTypes(atomType)
	s.mu.Lock()
	if s.types[atomType-1].Visible != visible {
		s.types[atomType-1].Visible = visible
		s.dirty = true
	}
	s.mu.Unlock()
}

func (s *Style) Toggle(atomType int) {
	if atomType < 1 {
		return
	}
	s.EnsureTypes(atomType)
	s.mu.Lock()
	s.types[atomType-1].Visible = !s.types[atomType-1].Visible
	s.dirty = true
	s.mu.Unlock()
}

// Table returns a copy of the current table.
func (s *Style) Table() []TypeStyle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TypeStyle, len(s.types))
	copy(out, s.types)
	return out
}

// Take returns a copy of the table and whether it changed since the last Take.
func (s *Style) Take() ([]TypeStyle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TypeStyle, len(s.types))
	copy(out, s.types)
	dirty := s.dirty
	s.dirty = false
	return out, dirty
}

func (s *Style) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}
