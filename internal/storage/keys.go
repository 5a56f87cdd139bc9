package storage

import (
	"fmt"
	"strings"
)

const keyPrefix = "screenshots"

// ImageKey returns the object key for a screenshot's original image.
func ImageKey(screenshotID, mediaType string) string {
	return fmt.Sprintf("%s/%s/original.%s", keyPrefix, screenshotID, Extension(mediaType))
}

// ThumbnailKey returns the object key for a screenshot's JPEG thumbnail.
func ThumbnailKey(screenshotID string) string {
	return fmt.Sprintf("%s/%s/thumbnail.jpg", keyPrefix, screenshotID)
}

// Extension maps an image media type to a file extension. Unknown types map to "bin".
func Extension(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}

// MediaTypeForExtension is the inverse of Extension for file paths. It returns "" for unknown extensions.
func MediaTypeForExtension(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
