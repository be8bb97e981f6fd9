package viz

import (
	"math"
	"sort"

	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/render"
)

// Camera orbits the box center. Points are in snapshot coordinates, which
// are already centered on the origin.
type Camera struct {
	RotX, RotY, RotZ float64
	Zoom             float64
	Distance         float64
}

func NewCamera() *Camera {
	return &Camera{RotX: -0.35, RotY: 0.6, Zoom: 1.0, Distance: 3.0}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) RotateZ(a float64) { c.RotZ += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

type point struct{ X, Y, Z float64 }

func (c *Camera) rotate(p point) point {
	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	cz, sz := math.Cos(c.RotZ), math.Sin(c.RotZ)
	p.X, p.Y = p.X*cz-p.Y*sz, p.X*sz+p.Y*cz
	return p
}

// project maps p, normalized by extent, to sub-pixel coordinates of a
// sw x sh screen. It returns the depth and whether the point is on screen.
func (c *Camera) project(p point, extent float64, sw, sh int) (int, int, float64, bool) {
	if extent <= 0 {
		extent = 1
	}
	p = point{p.X / extent, p.Y / extent, p.Z / extent}
	rot := c.rotate(p)
	rot = point{rot.X * c.Zoom, rot.Y * c.Zoom, rot.Z * c.Zoom}
	if rot.Z >= c.Distance-0.1 {
		return 0, 0, 0, false
	}
	scale := c.Distance / (c.Distance - rot.Z)
	// braille sub-pixels are twice as tall as they are wide on screen
	minDim := math.Min(float64(sw), float64(sh)*0.5)
	sx := int(rot.X*scale*minDim) + sw/2
	sy := int(-rot.Y*scale*minDim*2) + sh/2
	return sx, sy, rot.Z, sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

var cubeEdges = [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6}, {6, 7}, {7, 4}, {0, 4}, {1, 5}, {2, 6}, {3, 7}}

// DrawBox draws the simulation box outline for box lengths size.
func DrawBox(cv *Canvas, cam *Camera, size engine.Vec3, color string) {
	ext := extentOf(size)
	hx, hy, hz := size[0]/2, size[1]/2, size[2]/2
	v := []point{{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {-hx, hy, -hz}, {-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}
	sw, sh := cv.PixelSize()
	for _, e := range cubeEdges {
		x1, y1, _, ok1 := cam.project(v[e[0]], ext, sw, sh)
		x2, y2, _, ok2 := cam.project(v[e[1]], ext, sw, sh)
		if ok1 || ok2 {
			cv.DrawLine(x1, y1, x2, y2, color)
		}
	}
}

type projected struct {
	x, y  int
	depth float64
	color string
	big   bool
}

// DrawSnapshot plots every particle, far ones first so near ones win the
// cell color.
func DrawSnapshot(cv *Canvas, cam *Camera, snap *render.Snapshot, size engine.Vec3) int {
	if snap.Len() == 0 {
		return 0
	}
	ext := extentOf(size)
	sw, sh := cv.PixelSize()
	out := make([]projected, 0, snap.Len())
	for i, p := range snap.Positions {
		x, y, d, ok := cam.project(point{float64(p[0]), float64(p[1]), float64(p[2])}, ext, sw, sh)
		if !ok {
			continue
		}
		out = append(out, projected{x, y, d, snap.Colors[i].Hex(), snap.Scales[i] >= 0.75})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].depth < out[j].depth })
	for _, p := range out {
		cv.SetColor(p.x, p.y, p.color)
		if p.big {
			cv.SetColor(p.x+1, p.y, p.color)
			cv.SetColor(p.x, p.y+1, p.color)
			cv.SetColor(p.x+1, p.y+1, p.color)
		}
	}
	return len(out)
}

func extentOf(size engine.Vec3) float64 {
	return math.Max(size[0], math.Max(size[1], size[2]))
}
