package imageprocessor

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return &buf
}

func TestNormalizeCover(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{name: "large landscape is fitted", w: 2560, h: 1440, wantW: 1280, wantH: 720},
		{name: "tall image keeps aspect ratio", w: 1000, h: 2000, wantW: 360, wantH: 720},
		{name: "small image is not upscaled", w: 300, h: 200, wantW: 300, wantH: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := NormalizeCover(encodePNG(t, tt.w, tt.h))
			require.NoError(t, err)

			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, "jpeg", format)
			assert.Equal(t, tt.wantW, cfg.Width)
			assert.Equal(t, tt.wantH, cfg.Height)
		})
	}
}

func TestNormalizeCoverRejectsGarbage(t *testing.T) {
	_, err := NormalizeCover(strings.NewReader("not an image"))
	assert.Error(t, err)
}
