package constants

import "strings"

// MediaKind is the coarse format of an inbound attachment.
type MediaKind string

const (
	PDF     MediaKind = "PDF"
	IMAGE   MediaKind = "IMAGE"
	UNKNOWN MediaKind = "UNKNOWN"
)

// AllowedExtensions holds the file extensions accepted by the local OCR tools.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without dot) is accepted.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
