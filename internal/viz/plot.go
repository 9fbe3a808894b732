package viz

import (
	"errors"
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/mindstone/internal/storage"
)

var ErrNoSeries = errors.New("viz: no data for channel")

// Channel extracts one named column from stored rows. Names are looked up as
// "error", "out.<ch>", "param.<name>", or a reading.
func Channel(rows []storage.TickRow, name string) ([]float64, error) {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		v, ok := lookup(r, name)
		if !ok {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoSeries, name)
	}
	return out, nil
}

func lookup(r storage.TickRow, name string) (float64, bool) {
	switch {
	case name == "error":
		return r.Error, r.HasError
	case len(name) > 4 && name[:4] == "out.":
		v, ok := r.Outputs[name[4:]]
		return v, ok
	case len(name) > 6 && name[:6] == "param.":
		v, ok := r.Params[name[6:]]
		return v, ok
	}
	v, ok := r.Readings[name]
	return v, ok
}

// Downsample keeps at most n points by striding.
func Downsample(data []float64, n int) []float64 {
	if n <= 0 || len(data) <= n {
		return data
	}
	step := len(data) / n
	out := make([]float64, 0, n)
	for i := 0; i < len(data) && len(out) < n; i += step {
		out = append(out, data[i])
	}
	return out
}

// Plot draws a line graph of data.
func Plot(data []float64, caption string, width, height int) string {
	if len(data) == 0 {
		return ""
	}
	return asciigraph.Plot(Downsample(data, width),
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// PlotMany overlays several equally long series, one color each.
func PlotMany(series [][]float64, names []string, width, height int) string {
	if len(series) == 0 {
		return ""
	}
	sampled := make([][]float64, len(series))
	for i, s := range series {
		sampled[i] = Downsample(s, width)
	}
	colors := []asciigraph.AnsiColor{asciigraph.Cyan, asciigraph.Yellow, asciigraph.Green, asciigraph.Red}
	used := make([]asciigraph.AnsiColor, len(series))
	for i := range used {
		used[i] = colors[i%len(colors)]
	}
	return asciigraph.PlotMany(sampled,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(used...),
		asciigraph.SeriesLegends(names...),
	)
}
