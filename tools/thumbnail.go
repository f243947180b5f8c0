package tools

import (
	"bytes"

	"github.com/disintegration/imaging"
)

// Thumbnail scales the image by ratio, honouring EXIF orientation, and
// encodes it as JPEG. Neither edge goes below one pixel.
func Thumbnail(data []byte, ratio float64, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	width := max(int(float64(b.Dx())*ratio), 1)
	height := max(int(float64(b.Dy())*ratio), 1)
	var buf bytes.Buffer
	err = imaging.Encode(&buf, imaging.Resize(img, width, height, imaging.Lanczos), imaging.JPEG, imaging.JPEGQuality(quality))
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
