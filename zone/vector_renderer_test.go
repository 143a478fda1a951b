package zone

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRenderer_RenderToSVG(t *testing.T) {
	vr := NewVectorRenderer(renderedBoundaries())

	var buf bytes.Buffer
	require.NoError(t, vr.RenderToSVG(&buf))

	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "</svg>")
	// Zone outlines render as path elements.
	assert.Contains(t, out, "<path")
}

func TestVectorRenderer_RenderToSVG_WithPoints(t *testing.T) {
	vr := NewVectorRenderer(renderedBoundaries())
	vr.Datasets = []*Dataset{
		{
			Name:        "incidents",
			HasGeometry: true,
			Records:     []Record{pointRecord(0.5, 0.5, nil)},
		},
		{Name: "tabular", HasGeometry: false},
	}

	var buf bytes.Buffer
	require.NoError(t, vr.RenderToSVG(&buf))
	assert.Greater(t, strings.Count(buf.String(), "<path"), len(vr.Boundaries))
}

func TestVectorRenderer_RenderToPNG(t *testing.T) {
	vr := NewVectorRenderer(renderedBoundaries())

	var buf bytes.Buffer
	require.NoError(t, vr.RenderToPNG(&buf))

	data := buf.Bytes()
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}

func TestVectorRenderer_EmptyBoundaries(t *testing.T) {
	vr := NewVectorRenderer(nil)

	var buf bytes.Buffer
	require.NoError(t, vr.RenderToSVG(&buf))
	assert.Contains(t, buf.String(), "<svg")
}

func TestPremultiply(t *testing.T) {
	opaque := premultiply(color.NRGBA{200, 100, 50, 255})
	assert.Equal(t, uint8(200), opaque.R)
	assert.Equal(t, uint8(255), opaque.A)

	transparent := premultiply(color.NRGBA{200, 100, 50, 0})
	assert.Equal(t, uint8(0), transparent.R)
	assert.Equal(t, uint8(0), transparent.A)

	half := premultiply(color.NRGBA{200, 100, 50, 128})
	assert.Equal(t, uint8(128), half.A)
	assert.InDelta(t, 100, int(half.R), 1)
}
