// Package chart renders the pain trend as a PNG for clients that cannot
// draw charts themselves.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"carepath/internal/trend"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 400
	// MaxSize bounds either side of the image in pixels.
	MaxSize = 2000
)

var (
	ErrNoData = errors.New("no data to chart")
	ErrSize   = fmt.Errorf("chart size must be at most %d pixels", MaxSize)
)

// pointStyle draws markers without a connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    5,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotWidth:    3,
		DotColor:    col,
	}
}

// padSingle widens a one-point series so the x range is not empty.
func padSingle(xs []time.Time, ys []float64) ([]time.Time, []float64) {
	if len(xs) != 1 {
		return xs, ys
	}
	return []time.Time{xs[0], xs[0].Add(24 * time.Hour)}, []float64{ys[0], ys[0]}
}

// RenderVAS draws the daily average VAS with consultation days marked.
// A zero width or height takes the default.
func RenderVAS(points []trend.DayPoint, width, height int) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}
	if width > MaxSize || height > MaxSize {
		return nil, ErrSize
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	series, err := vasSeries(points)
	if err != nil {
		return nil, err
	}

	ticks := make([]chart.Tick, 0, 11)
	for v := 0; v <= 10; v += 2 {
		ticks = append(ticks, chart.Tick{Value: float64(v), Label: fmt.Sprint(v)})
	}
	ch := chart.Chart{
		Title:      "VAS trend",
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 24, Left: 16, Right: 16, Bottom: 32}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01/02"),
		},
		YAxis: chart.YAxis{
			Name:  "VAS",
			Range: &chart.ContinuousRange{Min: 0, Max: 10},
			Ticks: ticks,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// vasSeries builds the VAS line and, when any day had a consultation, the
// marker series.  Only the line is padded; markers stay on real days.
func vasSeries(points []trend.DayPoint) ([]chart.Series, error) {
	var (
		xs, consultX []time.Time
		ys, consultY []float64
	)
	for _, p := range points {
		day, err := time.Parse(trend.DateLayout, p.Date)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", p.Date, err)
		}
		xs = append(xs, day)
		ys = append(ys, p.VAS)
		if p.HasConsultation {
			consultX = append(consultX, day)
			consultY = append(consultY, p.VAS)
		}
	}
	xs, ys = padSingle(xs, ys)

	series := []chart.Series{
		chart.TimeSeries{Name: "VAS", XValues: xs, YValues: ys, Style: lineStyle(chart.ColorBlue)},
	}
	if len(consultX) > 0 {
		series = append(series, chart.TimeSeries{
			Name: "Consultation", XValues: consultX, YValues: consultY, Style: pointStyle(chart.ColorRed),
		})
	}
	return series, nil
}
