package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/render"
)

const background = "#0a0a0a"

// SnapshotToSVG draws a snapshot looking down the z axis. Far atoms are
// painted first so nearer ones cover them. size is the box extent the
// snapshot was centred in.
func SnapshotToSVG(snap *render.Snapshot, size engine.Vec3, width int) string {
	if snap == nil || width <= 0 || size[0] <= 0 || size[1] <= 0 {
		return ""
	}
	scale := float64(width) / size[0]
	height := int(size[1] * scale)

	order := make([]int, snap.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return snap.Positions[order[a]][2] < snap.Positions[order[b]][2]
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background))

	for _, i := range order {
		p := snap.Positions[i]
		cx := (float64(p[0]) + size[0]/2) * scale
		cy := float64(height) - (float64(p[1])+size[1]/2)*scale
		r := float64(snap.Scales[i]) * scale / 2
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.2f" fill="%s"/>
`, cx, cy, r, snap.Colors[i].Hex()))
	}

	sb.WriteString(fmt.Sprintf(`<text x="4" y="14" fill="#888888" font-family="monospace" font-size="12">t=%.3f step %d</text>
`, snap.Time, snap.Timestep))
	sb.WriteString("</svg>")
	return sb.String()
}

// SeriesToSVG draws a recorded series as a polyline.
func SeriesToSVG(times, values []float64, width, height int, strokeColor string) string {
	if len(times) < 2 || len(times) != len(values) {
		return ""
	}

	minX, maxX := times[0], times[len(times)-1]
	minY, maxY := values[0], values[0]
	for _, v := range values {
		if v < minY {
			minY = v
		}
		if v > maxY {
			maxY = v
		}
	}

	// Add padding
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, background, strokeColor))

	for i := range times {
		x := (times[i] - minX) / rangeX * float64(width)
		y := float64(height) - (values[i]-minY)/rangeY*float64(height)

		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
