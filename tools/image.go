package tools

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/reusedev/detect-hub/internal/consts"
	_ "golang.org/x/image/webp"
)

func DetectImageType(data []byte) consts.ImageType {
	switch mimetype.Detect(data).String() {
	case "image/png":
		return consts.ImageTypePNG
	case "image/jpeg":
		return consts.ImageTypeJPEG
	case "image/gif":
		return consts.ImageTypeGIF
	case "image/webp":
		return consts.ImageTypeWEBP
	default:
		return consts.ImageTypeUnknown
	}
}

// MimeType sniffs the content, falling back to the declared type when the
// bytes are not recognised.
func MimeType(data []byte, declared string) string {
	m := mimetype.Detect(data)
	if m.Is("application/octet-stream") && declared != "" {
		return declared
	}
	return m.String()
}

func Extension(data []byte) string {
	return mimetype.Detect(data).Extension()
}

// ImageSize reads only the header. Undecodable input yields (0, 0).
func ImageSize(data []byte) (width, height int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
