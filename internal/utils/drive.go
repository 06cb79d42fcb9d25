package utils

import (
	"strings"

	"google.golang.org/api/drive/v3"
)

// IsMediaFile reports whether a Drive file is an image or video worth pulling
// into the media directory.
func IsMediaFile(file *drive.File) bool {
	if file == nil {
		return false
	}
	return strings.HasPrefix(file.MimeType, "image/") || strings.HasPrefix(file.MimeType, "video/")
}
