package plots

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// renderHTML writes one interactive line chart per panel. Only plotters that
// reduce to curves can be rendered this way.
func (f *Figure) renderHTML(w io.Writer) error {
	page := components.NewPage()
	page.PageTitle = f.Title
	if page.PageTitle == "" {
		page.PageTitle = "mutools"
	}
	for i, ax := range f.Axes {
		line, err := lineChart(ax, f.panelTitle(i))
		if err != nil {
			return err
		}
		page.AddCharts(line)
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("plots: render html: %w", err)
	}
	return nil
}

func (f *Figure) panelTitle(i int) string {
	if len(f.Axes) == 1 {
		return f.Title
	}
	return fmt.Sprintf("%s (%d)", f.Title, i+1)
}

func lineChart(ax Axes, title string) (*charts.Line, error) {
	var (
		xlabel, ylabel string
		logY           bool
		curves         []xyLine
	)
	for _, p := range ax.Plotters {
		l, ok := p.(liner)
		if !ok {
			return nil, fmt.Errorf("%w: %T has no html rendering", ErrFormat, p)
		}
		xl, yl, lg, ls := l.lines()
		if xlabel == "" {
			xlabel = xl
		}
		if ylabel == "" {
			ylabel = yl
		}
		logY = logY || lg
		curves = append(curves, ls...)
	}

	yType := "value"
	if logY {
		yType = "log"
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(ax.Legend || len(curves) > 1)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xlabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: yType, Name: ylabel, NameLocation: "middle", NameGap: 50}),
	)
	for _, c := range curves {
		pts := finiteXYs(c.xs, c.ys, logY)
		data := make([]opts.LineData, len(pts))
		for i, pt := range pts {
			data[i] = opts.LineData{Value: []interface{}{pt.X, pt.Y}}
		}
		line.AddSeries(c.name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line, nil
}
