package sd

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// maxImageEdge caps the longest edge of posted images. Chat clients render
// inline previews; anything larger only wastes upload bandwidth.
const maxImageEdge = 1024

// normalizeSize re-encodes png, downscaling so neither edge exceeds maxEdge.
// Images already within bounds are returned unchanged.
func normalizeSize(png []byte, maxEdge int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxEdge && bounds.Dy() <= maxEdge {
		return png, nil
	}

	resized := imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
