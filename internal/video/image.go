package video

import "fmt"

// DefaultNoiseFloor is the per-pixel intensity difference ignored as noise.
const DefaultNoiseFloor = 25

// Image is an 8-bit grayscale raster, row-major, one byte per pixel.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// Valid reports whether Pix matches the declared dimensions.
func (im Image) Valid() bool {
	return im.Width > 0 && im.Height > 0 && len(im.Pix) == im.Width*im.Height
}

// String returns a human-readable representation for logging.
func (im Image) String() string {
	return fmt.Sprintf("%dx%d gray", im.Width, im.Height)
}

// ChangedFraction returns the share of pixels whose intensity differs by
// more than noiseFloor. Images of different dimensions are fully changed.
func ChangedFraction(a, b Image, noiseFloor uint8) float64 {
	if a.Width != b.Width || a.Height != b.Height || len(a.Pix) != len(b.Pix) || len(a.Pix) == 0 {
		return 1
	}
	changed := 0
	for i, p := range a.Pix {
		q := b.Pix[i]
		d := p - q
		if q > p {
			d = q - p
		}
		if d > noiseFloor {
			changed++
		}
	}
	return float64(changed) / float64(len(a.Pix))
}

// Similarity is the complement of ChangedFraction.
func Similarity(a, b Image, noiseFloor uint8) float64 {
	return 1 - ChangedFraction(a, b, noiseFloor)
}
