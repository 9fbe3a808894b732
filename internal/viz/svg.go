package viz

import (
	"fmt"
	"math"
	"strings"
)

var svgColors = []string{"#00d7ff", "#ffcc00", "#00ff88", "#ff4444"}

type bounds struct{ minX, maxX, minY, maxY float64 }

// pad widens b by 10% on each side and keeps flat ranges drawable.
func (b bounds) pad() bounds {
	rx, ry := b.maxX-b.minX, b.maxY-b.minY
	if rx == 0 {
		rx = 1
	}
	if ry == 0 {
		ry = 1
	}
	return bounds{b.minX - rx*0.1, b.maxX + rx*0.1, b.minY - ry*0.1, b.maxY + ry*0.1}
}

func svgHeader(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

func svgPath(sb *strings.Builder, xs, ys []float64, b bounds, width, height int, color string) {
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, color)
	first := true
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			first = true
			continue
		}
		x := (xs[i] - b.minX) / (b.maxX - b.minX) * float64(width)
		y := float64(height) - (ys[i]-b.minY)/(b.maxY-b.minY)*float64(height)
		if first {
			fmt.Fprintf(sb, "M%.1f,%.1f", x, y)
			first = false
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")
}

// SeriesSVG draws each series against its sample index on shared axes, with
// a legend in the top left corner.
func SeriesSVG(series [][]float64, names []string, width, height int) (string, error) {
	b := bounds{minX: 0, minY: math.Inf(1), maxY: math.Inf(-1)}
	for _, s := range series {
		if float64(len(s)-1) > b.maxX {
			b.maxX = float64(len(s) - 1)
		}
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			b.minY = math.Min(b.minY, v)
			b.maxY = math.Max(b.maxY, v)
		}
	}
	if math.IsInf(b.minY, 1) {
		return "", ErrNoSeries
	}
	b = b.pad()

	var sb strings.Builder
	svgHeader(&sb, width, height)
	for i, s := range series {
		xs := make([]float64, len(s))
		for j := range xs {
			xs[j] = float64(j)
		}
		color := svgColors[i%len(svgColors)]
		svgPath(&sb, xs, s, b, width, height, color)
		if i < len(names) {
			fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+14*i, color, names[i])
		}
	}
	sb.WriteString("</svg>\n")
	return sb.String(), nil
}

// TrajectorySVG draws the path through (xs[i], ys[i]), e.g. a phase portrait.
func TrajectorySVG(xs, ys []float64, width, height int) (string, error) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return "", ErrNoSeries
	}
	b := bounds{xs[0], xs[0], ys[0], ys[0]}
	for i := range xs {
		b.minX, b.maxX = math.Min(b.minX, xs[i]), math.Max(b.maxX, xs[i])
		b.minY, b.maxY = math.Min(b.minY, ys[i]), math.Max(b.maxY, ys[i])
	}
	b = b.pad()

	var sb strings.Builder
	svgHeader(&sb, width, height)
	svgPath(&sb, xs, ys, b, width, height, svgColors[0])
	sb.WriteString("</svg>\n")
	return sb.String(), nil
}
