package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"

	"mediadrop/internal/logging"
	"mediadrop/internal/mediatypes"
	"mediadrop/internal/metrics"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// DefaultMaxDimension is the largest width or height uploaded as is.
	DefaultMaxDimension = 2048

	// DefaultMaxBytes is the largest image payload uploaded as is.
	DefaultMaxBytes = 2 * 1024 * 1024

	initialQuality = 0.85
	qualityStep    = 0.1
	minQuality     = 0.4
	shrinkFactor   = 1.5
)

// ErrNotImage is returned for blobs that are not image/*.
var ErrNotImage = errors.New("input is not an image")

// encoder fits an image inside maxWidth x maxHeight and encodes it as JPEG.
type encoder interface {
	Name() string
	Encode(data []byte, maxWidth, maxHeight, quality int) (out []byte, width, height int, err error)
}

// imagingEncoder is the pure Go encoder used when libvips is unavailable.
type imagingEncoder struct{}

func (imagingEncoder) Name() string { return "imaging" }

func (imagingEncoder) Encode(data []byte, maxWidth, maxHeight, quality int) ([]byte, int, int, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > maxWidth || b.Dy() > maxHeight {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), img.Bounds().Dx(), img.Bounds().Dy(), nil
}

// Downscaler shrinks oversized images before upload.
type Downscaler struct {
	MaxDimension int
	MaxBytes     int64

	enc encoder
}

// NewDownscaler picks libvips when it is initialized and imaging otherwise.
func NewDownscaler(maxDimension int, maxBytes int64) *Downscaler {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	var enc encoder = imagingEncoder{}
	if IsVipsAvailable() {
		enc = vipsEncoder{}
	}
	return &Downscaler{MaxDimension: maxDimension, MaxBytes: maxBytes, enc: enc}
}

// Engine returns the name of the encoder in use.
func (d *Downscaler) Engine() string {
	return d.enc.Name()
}

// NeedsDownscale reports whether blob exceeds the byte budget or the
// dimension limit.
func (d *Downscaler) NeedsDownscale(blob mediatypes.Blob) bool {
	if blob.Size() > d.MaxBytes {
		return true
	}
	dims, err := GetImageDimensions(blob.Data)
	if err != nil {
		return false
	}
	return dims.Width > d.MaxDimension || dims.Height > d.MaxDimension
}

// Downscale fits the image into MaxDimension and re-encodes it as JPEG. While
// the output is over MaxBytes and quality is above 0.4 it retries with
// quality lowered by 0.1 and the bounding box divided by 1.5. The smaller of
// the result and the original is returned.
func (d *Downscaler) Downscale(blob mediatypes.Blob) (mediatypes.Blob, error) {
	if blob.Kind() != mediatypes.KindImage {
		return blob, ErrNotImage
	}

	maxW, maxH := float64(d.MaxDimension), float64(d.MaxDimension)
	quality := initialQuality

	var out []byte
	var width, height int
	for {
		var err error
		out, width, height, err = d.enc.Encode(blob.Data, roundDim(maxW), roundDim(maxH), int(math.Round(quality*100)))
		if err != nil {
			metrics.ImageResizesTotal.WithLabelValues(d.enc.Name(), "error").Inc()
			return blob, err
		}
		if int64(len(out)) <= d.MaxBytes || quality <= minQuality {
			break
		}
		maxW /= shrinkFactor
		maxH /= shrinkFactor
		quality -= qualityStep
	}
	metrics.ImageResizesTotal.WithLabelValues(d.enc.Name(), "success").Inc()

	if int64(len(out)) >= blob.Size() {
		logging.Debug("Downscaled image is not smaller (%d >= %d bytes), keeping original", len(out), blob.Size())
		return blob, nil
	}

	logging.Info("Downscaled image %s: %d -> %d bytes (%dx%d, %s)",
		blob.Name, blob.Size(), len(out), width, height, d.enc.Name())

	name := blob.Name
	if name != "" {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	}
	return mediatypes.Blob{Data: out, MIMEType: "image/jpeg", Name: name}, nil
}

func roundDim(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(data []byte) (*ImageDimensions, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}
