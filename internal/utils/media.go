package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

var videoExts = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true,
}

// IsVideo reports whether the file extension is one of the recognised video
// containers. Matching is case-insensitive.
func IsVideo(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

// Checks if the file name has a HEIC or HEIF extension.
func IsHeicFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".heic" || ext == ".heif"
}

// ThumbnailPath returns the sidecar JPEG path for a video: same directory,
// same base name, ".jpg" extension.
func ThumbnailPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".jpg"
}

func baseName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ThumbnailSidecars returns the set of file names in names that are the
// generated thumbnail of a video also present in names.
func ThumbnailSidecars(names []string) map[string]bool {
	videos := make(map[string]bool)
	for _, n := range names {
		if IsVideo(n) {
			videos[baseName(n)] = true
		}
	}

	sidecars := make(map[string]bool)
	for _, n := range names {
		if filepath.Ext(n) == ".jpg" && videos[baseName(n)] {
			sidecars[n] = true
		}
	}
	return sidecars
}

var mediaContentTypes = map[string]string{
	".heic": "image/heic",
	".heif": "image/heif",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// ContentType guesses the MIME type of a media file from its extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := mediaContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
