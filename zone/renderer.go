package zone

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sort"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// MapRenderer renders the indexed boundary collection as raster images:
// a choropleth of the security index, a point-density overlay, and an index
// histogram.
type MapRenderer struct {
	Boundaries Boundaries
	Width      int
	Height     int
	Padding    int // pixels around the drawn extent

	// Color ramp endpoints for the choropleth fill.
	LowColor  color.NRGBA
	HighColor color.NRGBA
	Outline   color.NRGBA
	PointFill color.NRGBA

	DrawLabels bool
}

// NewMapRenderer creates a renderer with default size and colors.
func NewMapRenderer(boundaries Boundaries) *MapRenderer {
	return &MapRenderer{
		Boundaries: boundaries,
		Width:      800,
		Height:     800,
		Padding:    24,
		LowColor:   color.NRGBA{255, 245, 200, 255}, // pale yellow
		HighColor:  color.NRGBA{165, 15, 21, 255},   // dark red
		Outline:    color.NRGBA{0, 0, 0, 255},
		PointFill:  color.NRGBA{30, 80, 200, 90}, // translucent blue
		DrawLabels: true,
	}
}

// bound returns the combined geographic extent of all zones.
func (r *MapRenderer) bound() orb.Bound {
	var b orb.Bound
	for i, z := range r.Boundaries {
		if i == 0 {
			b = z.Geometry.Bound()
		} else {
			b = b.Union(z.Geometry.Bound())
		}
	}
	return b
}

// projector maps geographic coordinates to pixel coordinates, preserving
// aspect ratio and flipping y so north is up.
type projector struct {
	bound  orb.Bound
	scale  float64
	offX   float64
	offY   float64
	height float64
}

func (r *MapRenderer) newProjector() projector {
	b := r.bound()
	dx := b.Max[0] - b.Min[0]
	dy := b.Max[1] - b.Min[1]
	if dx <= 0 {
		dx = 1
	}
	if dy <= 0 {
		dy = 1
	}

	availW := float64(r.Width - 2*r.Padding)
	availH := float64(r.Height - 2*r.Padding)
	scale := math.Min(availW/dx, availH/dy)

	// Center the drawn extent in the canvas.
	offX := float64(r.Padding) + (availW-dx*scale)/2
	offY := float64(r.Padding) + (availH-dy*scale)/2

	return projector{bound: b, scale: scale, offX: offX, offY: offY, height: float64(r.Height)}
}

func (p projector) toPixel(pt orb.Point) (float64, float64) {
	x := p.offX + (pt[0]-p.bound.Min[0])*p.scale
	y := p.offY + (pt[1]-p.bound.Min[1])*p.scale
	return x, p.height - y
}

// RenderChoropleth renders zones filled on a color ramp from the minimum to
// the maximum index, with outlines and optional zone ID labels.
func (r *MapRenderer) RenderChoropleth() *image.RGBA {
	img := r.newCanvas()
	if len(r.Boundaries) == 0 {
		return img
	}
	proj := r.newProjector()

	min, max := math.Inf(1), math.Inf(-1)
	for _, z := range r.Boundaries {
		if z.SecurityIndex < min {
			min = z.SecurityIndex
		}
		if z.SecurityIndex > max {
			max = z.SecurityIndex
		}
	}

	for _, z := range r.Boundaries {
		t := 0.0
		if max > min {
			t = (z.SecurityIndex - min) / (max - min)
		}
		r.fillMultiPolygon(img, proj, z.Geometry, lerpColor(r.LowColor, r.HighColor, t))
	}
	for _, z := range r.Boundaries {
		r.strokeMultiPolygon(img, proj, z.Geometry)
	}

	if r.DrawLabels {
		for _, z := range r.Boundaries {
			c := Centroid(z)
			x, y := proj.toPixel(c)
			drawLabel(img, int(x), int(y), z.ID)
		}
	}

	return img
}

// RenderDensity renders zone outlines with every dataset point drawn as a
// small translucent disc, the raster analogue of a density heatmap.
func (r *MapRenderer) RenderDensity(datasets []*Dataset) *image.RGBA {
	img := r.newCanvas()
	if len(r.Boundaries) == 0 {
		return img
	}
	proj := r.newProjector()

	for _, z := range r.Boundaries {
		r.strokeMultiPolygon(img, proj, z.Geometry)
	}

	for _, ds := range datasets {
		if !ds.HasGeometry {
			continue
		}
		for _, rec := range ds.Records {
			x, y := proj.toPixel(rec.Point)
			fillDisc(img, int(x), int(y), 3, r.PointFill)
		}
	}

	return img
}

// RenderHistogram renders a frequency histogram of the given values.
func RenderHistogram(values []float64, bins int, title string) *image.RGBA {
	const w, h = 800, 600
	const padLeft, padBottom, padTop, padRight = 60, 50, 40, 20

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, img.Bounds(), color.NRGBA{255, 255, 255, 255})

	if bins <= 0 {
		bins = 10
	}
	if len(values) == 0 {
		drawLabel(img, w/2-len(title)*3, padTop/2, title)
		return img
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		hi = lo + 1
	}

	counts := make([]int, bins)
	for _, v := range values {
		i := int((v - lo) / (hi - lo) * float64(bins))
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	plotW := w - padLeft - padRight
	plotH := h - padTop - padBottom
	barW := plotW / bins

	barFill := color.NRGBA{135, 206, 235, 255} // sky blue
	edge := color.NRGBA{0, 0, 0, 255}

	for i, c := range counts {
		if c == 0 {
			continue
		}
		barH := int(float64(c) / float64(maxCount) * float64(plotH))
		x0 := padLeft + i*barW
		y0 := h - padBottom - barH
		rect := image.Rect(x0, y0, x0+barW, h-padBottom)
		fillRect(img, rect, barFill)
		strokeRect(img, rect, edge)
	}

	// Axes
	for x := padLeft; x <= w-padRight; x++ {
		img.SetRGBA(x, h-padBottom, rgba(edge))
	}
	for y := padTop; y <= h-padBottom; y++ {
		img.SetRGBA(padLeft, y, rgba(edge))
	}

	drawLabel(img, w/2-len(title)*3, padTop/2, title)
	drawLabel(img, padLeft-40, padTop, fmt.Sprintf("%d", maxCount))
	drawLabel(img, padLeft, h-padBottom+20, trimFloat(lo))
	drawLabel(img, w-padRight-40, h-padBottom+20, trimFloat(hi))

	return img
}

// SavePNG encodes the image to a PNG file.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}

func (r *MapRenderer) newCanvas() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	fillRect(img, img.Bounds(), color.NRGBA{255, 255, 255, 255})
	return img
}

// fillMultiPolygon rasterizes a multipolygon with even-odd scanline filling.
// Collecting every ring's edges into one crossing list makes holes fall out
// of the parity rule.
func (r *MapRenderer) fillMultiPolygon(img *image.RGBA, proj projector, mp orb.MultiPolygon, fill color.NRGBA) {
	type edge struct{ x0, y0, x1, y1 float64 }
	var edges []edge

	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, poly := range mp {
		for _, ring := range poly {
			for i := 0; i < len(ring); i++ {
				a := ring[i]
				b := ring[(i+1)%len(ring)]
				x0, y0 := proj.toPixel(a)
				x1, y1 := proj.toPixel(b)
				if y0 == y1 {
					continue
				}
				edges = append(edges, edge{x0, y0, x1, y1})
				minY = math.Min(minY, math.Min(y0, y1))
				maxY = math.Max(maxY, math.Max(y0, y1))
			}
		}
	}
	if len(edges) == 0 {
		return
	}

	c := rgba(fill)
	yStart := int(math.Max(0, math.Floor(minY)))
	yEnd := int(math.Min(float64(img.Bounds().Dy()-1), math.Ceil(maxY)))

	for y := yStart; y <= yEnd; y++ {
		sy := float64(y) + 0.5
		var xs []float64
		for _, e := range edges {
			if (e.y0 <= sy) == (e.y1 <= sy) {
				continue
			}
			t := (sy - e.y0) / (e.y1 - e.y0)
			xs = append(xs, e.x0+t*(e.x1-e.x0))
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Ceil(xs[i]))
			x1 := int(math.Floor(xs[i+1]))
			for x := x0; x <= x1; x++ {
				if image.Pt(x, y).In(img.Bounds()) {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
}

func (r *MapRenderer) strokeMultiPolygon(img *image.RGBA, proj projector, mp orb.MultiPolygon) {
	for _, poly := range mp {
		for _, ring := range poly {
			for i := 0; i < len(ring); i++ {
				a := ring[i]
				b := ring[(i+1)%len(ring)]
				x0, y0 := proj.toPixel(a)
				x1, y1 := proj.toPixel(b)
				drawLine(img, int(x0), int(y0), int(x1), int(y1), r.Outline)
			}
		}
	}
}

// drawLine draws a line with the integer Bresenham algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	col := rgba(c)
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// fillDisc draws a filled circle with alpha blending.
func fillDisc(img *image.RGBA, cx, cy, radius int, c color.NRGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			x, y := cx+dx, cy+dy
			if !image.Pt(x, y).In(img.Bounds()) {
				continue
			}
			blendPixel(img, x, y, c)
		}
	}
}

func blendPixel(img *image.RGBA, x, y int, c color.NRGBA) {
	dst := img.RGBAAt(x, y)
	a := float64(c.A) / 255
	img.SetRGBA(x, y, color.RGBA{
		R: uint8(float64(c.R)*a + float64(dst.R)*(1-a)),
		G: uint8(float64(c.G)*a + float64(dst.G)*(1-a)),
		B: uint8(float64(c.B)*a + float64(dst.B)*(1-a)),
		A: 255,
	})
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.NRGBA) {
	col := rgba(c)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if image.Pt(x, y).In(img.Bounds()) {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.NRGBA) {
	drawLine(img, r.Min.X, r.Min.Y, r.Max.X-1, r.Min.Y, c)
	drawLine(img, r.Max.X-1, r.Min.Y, r.Max.X-1, r.Max.Y-1, c)
	drawLine(img, r.Max.X-1, r.Max.Y-1, r.Min.X, r.Max.Y-1, c)
	drawLine(img, r.Min.X, r.Max.Y-1, r.Min.X, r.Min.Y, c)
}

// drawLabel draws text centered at (x, y) using the basic 7x13 face.
func drawLabel(img *image.RGBA, x, y int, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{0, 0, 0, 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x-len(text)*7/2, y),
	}
	d.DrawString(text)
}

// lerpColor interpolates between two colors; t is clamped to [0, 1].
func lerpColor(a, b color.NRGBA, t float64) color.NRGBA {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return color.NRGBA{
		R: uint8(float64(a.R) + t*(float64(b.R)-float64(a.R))),
		G: uint8(float64(a.G) + t*(float64(b.G)-float64(a.G))),
		B: uint8(float64(a.B) + t*(float64(b.B)-float64(a.B))),
		A: 255,
	}
}

func rgba(c color.NRGBA) color.RGBA {
	return color.RGBA{c.R, c.G, c.B, c.A}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
