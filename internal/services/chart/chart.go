package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"PriceCast/internal/domain/models"
	"PriceCast/pkg/util"
)

var (
	colActual   = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	colFitted   = color.RGBA{R: 52, G: 152, B: 219, A: 255}
	colForecast = color.RGBA{R: 231, G: 76, B: 60, A: 255}
)

// Size of the rendered image.
var (
	Width  = 10 * vg.Inch
	Height = 5 * vg.Inch
)

// RenderPNG draws history, in-sample predictions and the forecast of res.
func RenderPNG(res models.ForecastResult) ([]byte, error) {
	if !res.Success || res.Historical == nil || res.Forecast == nil {
		return nil, errors.New("chart needs a successful forecast")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s forecast", res.Symbol)
	if res.Model != nil {
		p.Title.Text += fmt.Sprintf(" [%s]", res.Model.Version)
	}
	p.Y.Label.Text = "Close"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.BackgroundColor = color.White

	grid := plotter.NewGrid()
	grid.Vertical.Color = color.Gray{Y: 220}
	grid.Horizontal.Color = color.Gray{Y: 220}
	p.Add(grid)

	actual, err := points(res.Historical.Dates, res.Historical.Prices)
	if err != nil {
		return nil, err
	}
	if len(actual) > 0 {
		line, err := plotter.NewLine(actual)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = colActual
		p.Add(line)
		p.Legend.Add("actual", line)
	}

	var fitted plotter.XYs
	for i, pred := range res.Historical.Predictions {
		if pred == nil {
			continue
		}
		d, ok := util.ParseDate(res.Historical.Dates[i])
		if !ok {
			return nil, fmt.Errorf("bad date %q", res.Historical.Dates[i])
		}
		fitted = append(fitted, plotter.XY{X: unix(d), Y: *pred})
	}
	if len(fitted) > 0 {
		line, err := plotter.NewLine(fitted)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = colFitted
		p.Add(line)
		p.Legend.Add("predicted", line)
	}

	ahead, err := points(res.Forecast.Dates, res.Forecast.Prices)
	if err != nil {
		return nil, err
	}
	// connect the forecast to the last observed close
	if n := len(actual); n > 0 {
		ahead = append(plotter.XYs{actual[n-1]}, ahead...)
	}
	if len(ahead) > 0 {
		line, err := plotter.NewLine(ahead)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = colForecast
		line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add("forecast", line)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.ThumbnailWidth = vg.Points(20)

	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func points(dates []string, prices []float64) (plotter.XYs, error) {
	if len(dates) != len(prices) {
		return nil, fmt.Errorf("%d dates for %d prices", len(dates), len(prices))
	}
	xys := make(plotter.XYs, len(dates))
	for i, s := range dates {
		d, ok := util.ParseDate(s)
		if !ok {
			return nil, fmt.Errorf("bad date %q", s)
		}
		xys[i] = plotter.XY{X: unix(d), Y: prices[i]}
	}
	return xys, nil
}

func unix(t time.Time) float64 { return float64(t.Unix()) }
