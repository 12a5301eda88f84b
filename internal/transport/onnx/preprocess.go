package onnx

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/kailas-cloud/photomatch/internal/domain"
	"github.com/kailas-cloud/photomatch/internal/imageproc"
)

// Preprocess converts an image to the model input: shortest edge resized to
// cfg.ResizeTo (bilinear), centre crop of cfg.InputSize, channels scaled to
// [0,1] and normalized by mean/std, laid out as NCHW.
func Preprocess(img image.Image, cfg domain.ExtractorConfig) []float32 {
	rgb := imageproc.ToRGB(img)

	b := rgb.Bounds()
	var resized *image.NRGBA
	if b.Dx() <= b.Dy() {
		resized = imaging.Resize(rgb, cfg.ResizeTo, 0, imaging.Linear)
	} else {
		resized = imaging.Resize(rgb, 0, cfg.ResizeTo, imaging.Linear)
	}
	cropped := imaging.CropCenter(resized, cfg.InputSize, cfg.InputSize)

	size := cfg.InputSize
	plane := size * size
	out := make([]float32, 3*plane)

	cb := cropped.Bounds()
	for y := 0; y < size && y < cb.Dy(); y++ {
		row := cropped.Pix[y*cropped.Stride:]
		for x := 0; x < size && x < cb.Dx(); x++ {
			px := row[x*4 : x*4+3]
			i := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(px[c]) / 255
				out[c*plane+i] = (v - cfg.Mean[c]) / cfg.Std[c]
			}
		}
	}
	return out
}
