package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// palette holds the line colors assigned to consecutive series
var palette = []color.RGBA{
	{R: 255, B: 128, A: 255},
	{G: 155, B: 50, A: 255},
	{R: 30, G: 30, B: 255, A: 255},
	{R: 169, G: 169, B: 169, A: 255},
}

// NewSeriesPlot creates a plot of one or more time series sharing a time
// axis. data holds one series per column and names labels the columns.
// It returns error if the plot fails to be created. This can be due to
// either of the following conditions:
// * times is empty or data is nil
// * the number of data rows differs from the number of times
// * the number of names differs from the number of data columns
func NewSeriesPlot(title string, times []float64, data *mat.Dense, names []string) (*plot.Plot, error) {
	if len(times) == 0 || data == nil {
		return nil, fmt.Errorf("Invalid data supplied")
	}

	rows, cols := data.Dims()
	if rows != len(times) || len(names) != cols {
		return nil, fmt.Errorf("Invalid data dimensions")
	}

	p := plot.New()

	p.Title.Text = title
	p.X.Label.Text = "t [s]"
	p.Y.Label.Text = "value"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, data)
		line, err := plotter.NewLine(makePoints(times, col))
		if err != nil {
			return nil, fmt.Errorf("Failed to create line plotter: %v", err)
		}
		line.LineStyle.Color = palette[j%len(palette)]
		line.LineStyle.Width = vg.Points(1)

		p.Add(line)
		p.Legend.Add(names[j], line)
	}

	return p, nil
}

func makePoints(times, vals []float64) plotter.XYs {
	pts := make(plotter.XYs, len(times))
	for i := range times {
		pts[i].X = times[i]
		pts[i].Y = vals[i]
	}

	return pts
}
