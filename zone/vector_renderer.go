package zone

import (
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorRenderer renders the indexed boundary collection as vector graphics
// (SVG) or rasterized vector output (PNG). Zones are filled on the same
// color ramp as the raster choropleth.
type VectorRenderer struct {
	Boundaries Boundaries
	Datasets   []*Dataset // optional point overlay

	CanvasWidth float64           // output width in mm; height follows the aspect ratio
	Padding     float64           // padding in mm
	Resolution  canvas.Resolution // resolution for PNG output
	LowColor    color.NRGBA
	HighColor   color.NRGBA
	Outline     color.NRGBA
	PointFill   color.NRGBA
	StrokeWidth float64
}

// NewVectorRenderer creates a vector renderer with default settings.
func NewVectorRenderer(boundaries Boundaries) *VectorRenderer {
	return &VectorRenderer{
		Boundaries:  boundaries,
		CanvasWidth: 200.0, // 200mm wide output
		Padding:     5.0,
		Resolution:  canvas.DPI(300),
		LowColor:    color.NRGBA{255, 245, 200, 255},
		HighColor:   color.NRGBA{165, 15, 21, 255},
		Outline:     color.NRGBA{0, 0, 0, 255},
		PointFill:   color.NRGBA{30, 80, 200, 90},
		StrokeWidth: 0.3,
	}
}

// canvasRenderer is the interface both the svg and rasterizer backends
// implement.
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the choropleth as an SVG to the provided writer.
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	width, height, toCanvas := r.layout()

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, width, height, toCanvas)
	return svgRenderer.Close()
}

// RenderToPNG writes the choropleth as a rasterized PNG to the provided
// writer.
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	width, height, toCanvas := r.layout()

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height, toCanvas)
	return png.Encode(w, rast)
}

// layout computes the canvas dimensions and the geographic-to-canvas
// coordinate mapping. Canvas y points up, matching north-up geography.
func (r *VectorRenderer) layout() (width, height float64, toCanvas func(x, y float64) (float64, float64)) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, z := range r.Boundaries {
		b := z.Geometry.Bound()
		minX = math.Min(minX, b.Min[0])
		minY = math.Min(minY, b.Min[1])
		maxX = math.Max(maxX, b.Max[0])
		maxY = math.Max(maxY, b.Max[1])
	}

	dx := maxX - minX
	dy := maxY - minY
	if dx <= 0 || math.IsInf(dx, 0) {
		dx = 1
	}
	if dy <= 0 || math.IsInf(dy, 0) {
		dy = 1
	}

	scale := (r.CanvasWidth - 2*r.Padding) / dx
	width = r.CanvasWidth
	height = dy*scale + 2*r.Padding

	toCanvas = func(x, y float64) (float64, float64) {
		return (x-minX)*scale + r.Padding, (y-minY)*scale + r.Padding
	}
	return width, height, toCanvas
}

// renderToCanvas renders to a canvas backend (shared by SVG and PNG).
func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, width, height float64, toCanvas func(x, y float64) (float64, float64)) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	if len(r.Boundaries) == 0 {
		return
	}

	min, max := math.Inf(1), math.Inf(-1)
	for _, z := range r.Boundaries {
		min = math.Min(min, z.SecurityIndex)
		max = math.Max(max, z.SecurityIndex)
	}

	for _, z := range r.Boundaries {
		t := 0.0
		if max > min {
			t = (z.SecurityIndex - min) / (max - min)
		}

		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: premultiply(lerpColor(r.LowColor, r.HighColor, t))}
		style.Stroke = canvas.Paint{Color: premultiply(r.Outline)}
		style.StrokeWidth = r.StrokeWidth

		for _, poly := range z.Geometry {
			cp := &canvas.Path{}
			for _, ring := range poly {
				for i, pt := range ring {
					cx, cy := toCanvas(pt[0], pt[1])
					if i == 0 {
						cp.MoveTo(cx, cy)
					} else {
						cp.LineTo(cx, cy)
					}
				}
				cp.Close()
			}
			renderer.RenderPath(cp, style, canvas.Identity)
		}
	}

	pointStyle := canvas.DefaultStyle
	pointStyle.Fill = canvas.Paint{Color: premultiply(r.PointFill)}
	pointStyle.Stroke = canvas.Paint{Color: canvas.Transparent}

	for _, ds := range r.Datasets {
		if !ds.HasGeometry {
			continue
		}
		for _, rec := range ds.Records {
			cx, cy := toCanvas(rec.Point[0], rec.Point[1])
			dot := canvas.Circle(0.8)
			renderer.RenderPath(dot.Translate(cx, cy), pointStyle, canvas.Identity)
		}
	}
}

// premultiply converts color.NRGBA to the premultiplied RGBA the canvas
// library expects.
func premultiply(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}
