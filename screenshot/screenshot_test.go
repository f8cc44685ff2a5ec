package screenshot

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureRegionRejectsInvalidDimensions(t *testing.T) {
	cases := []Region{
		{Name: "zero-width", Width: 0, Height: 100},
		{Name: "zero-height", Width: 100, Height: 0},
		{Name: "negative", Width: -5, Height: 10},
	}
	for _, region := range cases {
		t.Run(region.Name, func(t *testing.T) {
			_, err := CaptureRegion(region)
			assert.Error(t, err)
		})
	}
}

func TestRegionBounds(t *testing.T) {
	r := Region{Name: "main", X: 10, Y: 20, Width: 300, Height: 200}
	assert.Equal(t, image.Rect(10, 20, 310, 220), r.Bounds())
	assert.Equal(t, "main(10,20 300x200)", r.String())
}

func TestEncodePNGRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	data, err := EncodePNG(img)
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)
	assert.Equal(t, 4, cfg.Height)
}
