// Package imagery loads map images and prepares them for the vision model.
package imagery

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // register decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register decoder
)

// MaxEdge is the longest side, in pixels, of an image sent for inference.
const MaxEdge = 1024

// MaxUploadBytes caps the size of a single source image.
const MaxUploadBytes = 16 << 20

// MaxPixels caps the decoded area of a source image. A small compressed
// file can declare dimensions far larger than its byte size suggests.
const MaxPixels = 64 << 20

var (
	// ErrUnsupportedFormat is returned for file types that cannot be decoded.
	ErrUnsupportedFormat = eris.New("imagery: unsupported image format")
	// ErrPDFUnsupported is returned for PDF input.
	ErrPDFUnsupported = eris.New("imagery: PDF input is not supported, convert your PDF to PNG or JPEG first")
	// ErrTooLarge is returned when the source exceeds MaxUploadBytes.
	ErrTooLarge = eris.New("imagery: image exceeds 16MB limit")
	// ErrTooManyPixels is returned when the declared dimensions exceed MaxPixels.
	ErrTooManyPixels = eris.New("imagery: image dimensions exceed pixel limit")
)

var supportedExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Image is a decoded map image re-encoded as PNG.
type Image struct {
	Name string
	Page int
	PNG  []byte
	GPS  *GPSHint
}

// Base64 returns the PNG payload base64-encoded for an inference request.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.PNG)
}

// MediaType is always image/png since every source is re-encoded.
func (i Image) MediaType() string {
	return "image/png"
}

// Supported reports whether filename has an extension Load accepts.
func Supported(filename string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(filename))]
}

// Load reads and decodes the image at path.
func Load(path string) (Image, error) {
	if err := checkExt(path); err != nil {
		return Image{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Image{}, eris.Wrapf(err, "imagery: stat %s", path)
	}
	if info.Size() > MaxUploadBytes {
		return Image{}, ErrTooLarge
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return Image{}, eris.Wrapf(err, "imagery: read %s", path)
	}

	return Decode(filepath.Base(path), data)
}

// Decode converts raw image bytes named name into an Image, downscaling
// anything larger than MaxEdge.
func Decode(name string, data []byte) (Image, error) {
	if err := checkExt(name); err != nil {
		return Image{}, err
	}
	if len(data) > MaxUploadBytes {
		return Image{}, ErrTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, eris.Wrapf(ErrUnsupportedFormat, "decode %s: %v", name, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Image{}, eris.Wrapf(ErrTooManyPixels, "%s is %dx%d", name, cfg.Width, cfg.Height)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, eris.Wrapf(ErrUnsupportedFormat, "decode %s: %v", name, err)
	}

	resized := Resize(src, MaxEdge)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return Image{}, eris.Wrapf(err, "imagery: encode %s", name)
	}

	img := Image{Name: name, Page: 1, PNG: buf.Bytes(), GPS: ReadGPS(data)}

	zap.L().Debug("imagery: decoded image",
		zap.String("name", name),
		zap.String("format", format),
		zap.Int("width", src.Bounds().Dx()),
		zap.Int("height", src.Bounds().Dy()),
		zap.Int("png_bytes", len(img.PNG)),
		zap.Bool("gps", img.GPS != nil),
	)

	return img, nil
}

// Resize scales src so its longest side is at most maxEdge, preserving the
// aspect ratio. Smaller images are returned unchanged.
func Resize(src image.Image, maxEdge int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = maxEdge
		nh = max(1, h*maxEdge/w)
	} else {
		nh = maxEdge
		nw = max(1, w*maxEdge/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func checkExt(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" {
		return ErrPDFUnsupported
	}
	if !supportedExt[ext] {
		return eris.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
	}
	return nil
}
