// Package imaging implements the detect/decode/resize/strip/encode
// pipeline. It is pure: identical input bytes and Policy produce identical
// output bytes, which is what makes content-hash deduplication meaningful.
package imaging

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"github.com/rexmedia/mediavault/internal/apperr"
)

// Policy is the configuration the pipeline is parameterized by: output
// format and allow-list are passed as data rather than expressed as a
// subtype hierarchy, since there is exactly one pipeline shape.
type Policy struct {
	AllowedImageTypes []string
	MaxDimension      int
	OutputFormat      string // webp|jpeg|png; anything else is treated as webp
	OutputQuality     int    // 0-100
	StripEXIF         bool
}

// Result is the pipeline's output.
type Result struct {
	OriginalBytes  []byte
	OptimizedBytes []byte
	OriginalMIME   string
	OptimizedMIME  string
	Width          int
	Height         int
	WasResized     bool
}

var extByMIME = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ExtForMIME returns the canonical file extension for a MIME type, used to
// build on-disk paths.
func ExtForMIME(mime string) string {
	if ext, ok := extByMIME[mime]; ok {
		return ext
	}
	return "bin"
}

func normalizeOutputFormat(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "jpeg"
	case "png":
		return "png"
	default:
		return "webp"
	}
}

func outputMIME(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "image/webp"
	}
}

// Process runs the full pipeline over raw bytes under policy.
func Process(raw []byte, policy Policy) (*Result, error) {
	if len(raw) == 0 {
		return nil, apperr.New(apperr.KindValidation, "empty file upload")
	}

	detected := mimetype.Detect(raw)
	mime := detected.String()
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, apperr.Newf(apperr.KindUnsupportedMediaType, "unsupported media type %q", mime)
	}
	if !contains(policy.AllowedImageTypes, mime) {
		return nil, apperr.Newf(apperr.KindUnsupportedMediaType, "image type %q is not in the allow-list", mime)
	}

	img, err := decode(mime, raw)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindImageProcessing, "decode image")
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	resized := img
	wasResized := false
	if policy.MaxDimension > 0 {
		newW, newH, changed := scaleToBound(width, height, policy.MaxDimension)
		if changed {
			resized = imaging.Resize(img, newW, newH, imaging.Lanczos)
			width, height = newW, newH
			wasResized = true
		}
	}

	originalBytes := raw
	if policy.StripEXIF {
		originalBytes, err = encode(mime, img, 100)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindImageProcessing, "re-encode original to strip metadata")
		}
	}

	outFormat := normalizeOutputFormat(policy.OutputFormat)
	optimizedMIME := outputMIME(outFormat)
	quality := policy.OutputQuality
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	optimizedBytes, err := encode(optimizedMIME, resized, quality)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindImageProcessing, "encode optimized image")
	}

	return &Result{
		OriginalBytes:  originalBytes,
		OptimizedBytes: optimizedBytes,
		OriginalMIME:   mime,
		OptimizedMIME:  optimizedMIME,
		Width:          width,
		Height:         height,
		WasResized:     wasResized,
	}, nil
}

// scaleToBound computes the isotropic resize target for (w,h) bounded by
// maxDim on the longer side; the shorter side is truncated toward zero, per
// the documented resize rule.
func scaleToBound(w, h, maxDim int) (newW, newH int, changed bool) {
	longer := w
	if h > longer {
		longer = h
	}
	if longer <= maxDim {
		return w, h, false
	}
	if w >= h {
		newW = maxDim
		newH = h * maxDim / w
	} else {
		newH = maxDim
		newW = w * maxDim / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH, true
}

func decode(mime string, raw []byte) (image.Image, error) {
	r := bytes.NewReader(raw)
	switch mime {
	case "image/jpeg":
		return jpeg.Decode(r)
	case "image/png":
		return png.Decode(r)
	case "image/gif":
		return gif.Decode(r)
	case "image/webp":
		return webp.Decode(r)
	default:
		return nil, apperr.Newf(apperr.KindImageProcessing, "no decoder for %q", mime)
	}
}

func encode(mime string, img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch mime {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	case "image/png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "image/gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	case "image/webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.Newf(apperr.KindImageProcessing, "no encoder for %q", mime)
	}
	return buf.Bytes(), nil
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
