package rendertest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/radar-pi/internal/render"
)

func TestSolidPNG_WhiteAtRequestedSize(t *testing.T) {
	data := SolidPNG(render.Width, render.Height)
	require.NoError(t, render.ValidatePNG(data, render.Width, render.Height))

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, render.Width, render.Height), img.Bounds())

	for _, p := range []image.Point{{0, 0}, {render.Width / 2, render.Height / 2}, {render.Width - 1, render.Height - 1}} {
		assert.Equal(t, color.GrayModel.Convert(color.White), color.GrayModel.Convert(img.At(p.X, p.Y)))
	}
}
