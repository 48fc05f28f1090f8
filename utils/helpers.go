// Package utils holds small helpers shared by the codecs and the ingest
// pipeline.
package utils

import (
	"math"

	"github.com/gabriel-vasile/mimetype"
)

const (
	formatJPEG    = "jpeg"
	formatPNG     = "png"
	formatWebP    = "webp"
	formatGIF     = "gif"
	formatUnknown = "unknown"
)

// DetectFormat sniffs the leading bytes of data and returns the image format.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return formatUnknown
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return formatJPEG
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return formatPNG
	}
	// GIF: "GIF8"
	if data[0] == 'G' && data[1] == 'I' && data[2] == 'F' && data[3] == '8' {
		return formatGIF
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return formatWebP
	}
	// Fall back to full content sniffing.
	switch mimetype.Detect(data).String() {
	case "image/jpeg":
		return formatJPEG
	case "image/png":
		return formatPNG
	case "image/webp":
		return formatWebP
	case "image/gif":
		return formatGIF
	}
	return formatUnknown
}

// FitWithin computes output (w, h) so that the longer side is at most bound,
// preserving aspect ratio.  It never upscales: a source already within bound,
// or a bound <= 0, returns the source dimensions.
func FitWithin(srcW, srcH, bound int) (int, int) {
	if bound <= 0 || (srcW <= bound && srcH <= bound) {
		return srcW, srcH
	}
	if srcW >= srcH {
		h := int(math.Round(float64(srcH) * float64(bound) / float64(srcW)))
		return bound, max(h, 1)
	}
	w := int(math.Round(float64(srcW) * float64(bound) / float64(srcH)))
	return max(w, 1), bound
}
