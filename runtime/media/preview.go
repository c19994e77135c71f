package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	_ "image/gif" // Register GIF decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/Jari57/studio-agents-sub002/runtime/blob"
)

// Preview bounds, in pixels.
const (
	DefaultPreviewSize = 256
	MaxPreviewSize     = 2048

	previewQuality = 80
)

// MIME types a preview may be encoded as.
const (
	MIMETypeImageJPEG = "image/jpeg"
)

// ErrNotImage is returned when an object cannot be decoded as an image.
var ErrNotImage = errors.New("media: object is not a decodable image")

// Thumbnail scales an image object down to fit a size x size box, keeping
// the aspect ratio. Images already inside the box are returned unchanged.
// Sources with an alpha channel (PNG, GIF) are encoded as PNG, the rest as
// JPEG.
func Thumbnail(obj *blob.Object, size int) (*blob.Object, error) {
	if obj == nil || len(obj.Data) == 0 {
		return nil, ErrNotImage
	}
	if obj.MIMEType != "" && !strings.HasPrefix(obj.MIMEType, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, obj.MIMEType)
	}
	if size <= 0 {
		size = DefaultPreviewSize
	}
	size = min(size, MaxPreviewSize)

	src, format, err := image.Decode(bytes.NewReader(obj.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), size)
	if w == b.Dx() && h == b.Dy() {
		return obj, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	out := &blob.Object{CreatedAt: obj.CreatedAt}
	switch format {
	case "png", "gif":
		out.MIMEType = MIMETypeImagePNG
		err = png.Encode(&buf, dst)
	default:
		out.MIMEType = MIMETypeImageJPEG
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: previewQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}

// fitWithin returns the largest dimensions no bigger than box on either side
// with the same aspect ratio as w x h. Each side is at least one pixel.
func fitWithin(w, h, box int) (int, int) {
	if w <= box && h <= box {
		return w, h
	}
	if w >= h {
		return box, max(1, h*box/w)
	}
	return max(1, w*box/h), box
}
