// Package chart renders series lists as PNG line charts.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/minesite-climate-service/internal/domain"
)

// ErrNoPoints means none of the series has anything to draw.
var ErrNoPoints = errors.New("no points to plot")

// Options controls the canvas.
type Options struct {
	Title  string
	Width  int
	Height int
}

// DefaultOptions matches the dashboard's chart panel.
func DefaultOptions() Options {
	return Options{Title: "Decadal mean temperature", Width: 960, Height: 540}
}

// RenderPNG draws one line per non-empty series. Monthly x values are placed at
// fractional years so that every month of a decade sits between its neighbours.
func RenderPNG(w io.Writer, series []domain.Series, opts Options) error {
	var (
		out        []gochart.Series
		xMin, xMax = math.Inf(1), math.Inf(-1)
		yMin, yMax = math.Inf(1), math.Inf(-1)
	)
	for _, s := range series {
		if s.Len() == 0 {
			continue
		}
		xs := make([]float64, len(s.X))
		for i, x := range s.X {
			xs[i] = position(x)
			xMin, xMax = math.Min(xMin, xs[i]), math.Max(xMax, xs[i])
			yMin, yMax = math.Min(yMin, s.Y[i]), math.Max(yMax, s.Y[i])
		}
		col, err := ParseColor(s.Color)
		if err != nil {
			return fmt.Errorf("series %q: %w", s.Name, err)
		}
		out = append(out, gochart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: s.Y,
			Style: gochart.Style{
				StrokeColor: col,
				StrokeWidth: 2,
				DotColor:    col,
				DotWidth:    3,
			},
		})
	}
	if len(out) == 0 {
		return ErrNoPoints
	}

	xMin, xMax = widen(xMin, xMax, 5)
	yMin, yMax = widen(yMin, yMax, 0.5)

	ch := gochart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:           "Year",
			Range:          &gochart.ContinuousRange{Min: xMin, Max: xMax},
			ValueFormatter: func(v interface{}) string { return formatYear(v) },
		},
		YAxis: gochart.YAxis{
			Name:  "Temperature (°C)",
			Range: &gochart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: out,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func position(x domain.XValue) float64 {
	if x.Month == 0 {
		return float64(x.Year)
	}
	return float64(x.Year) + float64(x.Month-1)/12
}

// widen keeps the axis range non-degenerate; go-chart rejects a zero delta.
func widen(lo, hi, pad float64) (float64, float64) {
	if hi-lo == 0 {
		return lo - pad, hi + pad
	}
	return lo, hi
}

func formatYear(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.Itoa(int(math.Floor(f)))
	}
	return fmt.Sprint(v)
}

// ErrInvalidColor means a palette entry is not a color go-chart can draw.
var ErrInvalidColor = errors.New("invalid color")

var funcNotation = regexp.MustCompile(`^(rgba?)\(([^()]*)\)$`)

// ParseColor reads a palette color with go-chart's parser: "#RGB", "#RRGGBB",
// "rgb(r,g,b)", "rgba(r,g,b,a)" or a basic CSS name. The library maps malformed input
// to black or panics on short hex codes, so the notation is checked first. An empty
// string selects the library default.
func ParseColor(s string) (drawing.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return drawing.Color{}, nil
	}
	if err := checkNotation(s); err != nil {
		return drawing.Color{}, fmt.Errorf("%w %q: %v", ErrInvalidColor, s, err)
	}
	c := drawing.ParseColor(s)
	if c.IsZero() {
		return drawing.Color{}, fmt.Errorf("%w %q: unknown color name", ErrInvalidColor, s)
	}
	return c, nil
}

func checkNotation(s string) error {
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) != 3 && len(hex) != 6 {
			return errors.New("hex code needs 3 or 6 digits")
		}
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return errors.New("hex code has a non-hex digit")
		}
		return nil
	}
	if !strings.HasPrefix(s, "rgb") {
		return nil
	}
	m := funcNotation.FindStringSubmatch(s)
	if m == nil {
		return errors.New("malformed rgb notation")
	}
	parts := strings.Split(m[2], ",")
	want := 3
	if m[1] == "rgba" {
		want = 4
	}
	if len(parts) != want {
		return fmt.Errorf("%s takes %d components", m[1], want)
	}
	for _, p := range parts[:3] {
		if _, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8); err != nil {
			return fmt.Errorf("component %q is not 0-255", strings.TrimSpace(p))
		}
	}
	if want == 4 {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 0 || a > 1 {
			return fmt.Errorf("alpha %q is not 0-1", strings.TrimSpace(parts[3]))
		}
	}
	return nil
}

// ValidateColors checks every entry of cm with ParseColor and reports all bad ones.
func ValidateColors(cm domain.ColorMap) error {
	var bad []string
	for site, c := range cm.Minesites {
		if _, err := ParseColor(c); err != nil {
			bad = append(bad, fmt.Sprintf("minesite %s %q", site, c))
		}
	}
	for model, byScenario := range cm.ModelScenarios {
		for scenario, c := range byScenario {
			if _, err := ParseColor(c); err != nil {
				bad = append(bad, fmt.Sprintf("%s/%s %q", model, scenario, c))
			}
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("%w: %s", ErrInvalidColor, strings.Join(bad, ", "))
}
