package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/samber/oops"
)

// DecodeJPEG decodes downloaded section image bytes, validating that the
// payload really is a JPEG.
func DecodeJPEG(data []byte) (image.Image, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, oops.Code("jpeg_decode_error").In("imaging").Wrapf(err, "failed to decode image")
	}
	return img, nil
}

// WritePNG encodes img as PNG at path.
func WritePNG(path string, img image.Image) error {
	errBuilder := oops.Code("png_write_error").In("imaging").With("filePath", path)

	f, err := os.Create(path)
	if err != nil {
		return errBuilder.Wrapf(err, "failed to create the file")
	}
	defer f.Close()

	if err = png.Encode(f, img); err != nil {
		return errBuilder.Wrapf(err, "failed to encode image")
	}
	return nil
}
