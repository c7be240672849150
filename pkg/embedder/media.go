package embedder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/webp"
)

// Image is an image file loaded into memory.
type Image struct {
	Path     string
	MIMEType string
	Bytes    []byte
}

// DataURL returns the image inlined as a base64 data URL.
func (img Image) DataURL() string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Bytes)
}

// mimeByFormat covers every decoder registered by the imports above.
var mimeByFormat = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ReadImage reads an image file and checks that it decodes as one of the
// supported formats. The MIME type is taken from the decoded format, so a
// PNG saved with a .jpg extension is still labelled image/png.
func ReadImage(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s: %v", ErrUnreadableMedia, filepath.Base(path), err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s: %v", ErrUnreadableMedia, filepath.Base(path), err)
	}
	return Image{Path: path, MIMEType: mimeByFormat[format], Bytes: data}, nil
}

// decodeImage fully decodes an image file.
func decodeImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableMedia, filepath.Base(path), err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableMedia, filepath.Base(path), err)
	}
	return img, nil
}
