// Package chart renders forecasts as SVG line charts.
package chart

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"krakenbot/internal/forecast"
)

// Plotter draws a history series with its forecast and returns the file written
type Plotter interface {
	Plot(ctx context.Context, title string, history forecast.Series, fc *forecast.Result) (string, error)
}

const (
	width   = 1200
	height  = 600
	marginL = 80
	marginR = 30
	marginT = 50
	marginB = 60
)

// SVGPlotter writes charts into Dir
type SVGPlotter struct {
	Dir string
	now func() time.Time
}

// NewSVGPlotter creates a plotter writing into dir
func NewSVGPlotter(dir string) *SVGPlotter {
	return &SVGPlotter{Dir: dir, now: time.Now}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName is the name a chart for title is written under at t
func FileName(title string, t time.Time) string {
	slug := strings.Trim(unsafeChars.ReplaceAllString(title, "-"), "-")
	if slug == "" {
		slug = "chart"
	}
	return fmt.Sprintf("%s-%d.svg", slug, t.Unix())
}

// Plot implements Plotter
func (p *SVGPlotter) Plot(ctx context.Context, title string, history forecast.Series, fc *forecast.Result) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", fmt.Errorf("nothing to plot")
	}

	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create chart directory: %w", err)
	}

	path := filepath.Join(p.Dir, FileName(title, p.now()))
	if err := os.WriteFile(path, []byte(Render(title, history, fc)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write chart: %w", err)
	}
	return path, nil
}

type frame struct {
	t0, t1 time.Time
	y0, y1 float64
}

func (f frame) x(t time.Time) float64 {
	span := f.t1.Sub(f.t0).Seconds()
	if span <= 0 {
		return marginL
	}
	return marginL + t.Sub(f.t0).Seconds()/span*(width-marginL-marginR)
}

func (f frame) y(v float64) float64 {
	span := f.y1 - f.y0
	if span <= 0 {
		return height / 2
	}
	return height - marginB - (v-f.y0)/span*(height-marginT-marginB)
}

func bounds(history forecast.Series, fc *forecast.Result) frame {
	f := frame{t0: history[0].Time, t1: history[len(history)-1].Time, y0: math.Inf(1), y1: math.Inf(-1)}
	for _, p := range history {
		f.y0 = math.Min(f.y0, p.Value)
		f.y1 = math.Max(f.y1, p.Value)
	}
	if fc != nil {
		for _, p := range fc.Points {
			f.y0 = math.Min(f.y0, p.Lower)
			f.y1 = math.Max(f.y1, p.Upper)
			if p.Time.After(f.t1) {
				f.t1 = p.Time
			}
		}
	}
	pad := (f.y1 - f.y0) * 0.05
	f.y0 -= pad
	f.y1 += pad
	return f
}

// Render returns the SVG document
func Render(title string, history forecast.Series, fc *forecast.Result) string {
	f := bounds(history, fc)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n", width, height, width, height)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="#111"/>`+"\n")

	if fc != nil && len(fc.Points) > 0 {
		// forecast window
		x0, x1 := f.x(fc.Start()), f.x(fc.End())
		fmt.Fprintf(&b, `<rect class="window" x="%.1f" y="%d" width="%.1f" height="%d" fill="red" fill-opacity="0.2"/>`+"\n",
			x0, marginT, math.Max(x1-x0, 1), height-marginT-marginB)

		var band []string
		for _, p := range fc.Points {
			band = append(band, fmt.Sprintf("%.1f,%.1f", f.x(p.Time), f.y(p.Upper)))
		}
		for i := len(fc.Points) - 1; i >= 0; i-- {
			p := fc.Points[i]
			band = append(band, fmt.Sprintf("%.1f,%.1f", f.x(p.Time), f.y(p.Lower)))
		}
		fmt.Fprintf(&b, `<polygon class="band" points="%s" fill="#4aa3ff" fill-opacity="0.25"/>`+"\n", strings.Join(band, " "))
	}

	// axes
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#888"/>`+"\n", marginL, height-marginB, width-marginR, height-marginB)
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#888"/>`+"\n", marginL, marginT, marginL, height-marginB)

	hist := make([]string, len(history))
	for i, p := range history {
		hist[i] = fmt.Sprintf("%.1f,%.1f", f.x(p.Time), f.y(p.Value))
	}
	fmt.Fprintf(&b, `<polyline class="history" points="%s" fill="none" stroke="#f5a623" stroke-width="1.5"/>`+"\n", strings.Join(hist, " "))

	if fc != nil && len(fc.Points) > 0 {
		last := history[len(history)-1]
		pred := []string{fmt.Sprintf("%.1f,%.1f", f.x(last.Time), f.y(last.Value))}
		for _, p := range fc.Points {
			pred = append(pred, fmt.Sprintf("%.1f,%.1f", f.x(p.Time), f.y(p.Yhat)))
		}
		fmt.Fprintf(&b, `<polyline class="forecast" points="%s" fill="none" stroke="#4aa3ff" stroke-width="1.5" stroke-dasharray="6 3"/>`+"\n", strings.Join(pred, " "))
	}

	fmt.Fprintf(&b, `<text x="%d" y="30" fill="#eee" font-family="sans-serif" font-size="18">%s</text>`+"\n", marginL, escape(title))
	fmt.Fprintf(&b, `<text x="10" y="%.1f" fill="#aaa" font-family="sans-serif" font-size="12">%.2f</text>`+"\n", f.y(f.y1)+4, f.y1)
	fmt.Fprintf(&b, `<text x="10" y="%.1f" fill="#aaa" font-family="sans-serif" font-size="12">%.2f</text>`+"\n", f.y(f.y0), f.y0)
	fmt.Fprintf(&b, `<text x="%d" y="%d" fill="#aaa" font-family="sans-serif" font-size="12">%s</text>`+"\n", marginL, height-20, f.t0.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, `<text x="%d" y="%d" fill="#aaa" font-family="sans-serif" font-size="12" text-anchor="end">%s</text>`+"\n", width-marginR, height-20, f.t1.UTC().Format(time.RFC3339))

	b.WriteString("</svg>\n")
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
