package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxImageBytes caps course cover uploads.
const MaxImageBytes = 10 << 20

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	// SVG is excluded, it can carry scripts
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
}

var (
	ErrUnsupportedExtension = errors.New("only JPG, JPEG, PNG, GIF and BMP images are supported")
	ErrHTMLContent          = errors.New("invalid file type: HTML content is not allowed")
	ErrXMLContent           = errors.New("SVG/XML images are not supported")
	ErrUnsupportedContent   = errors.New("file content is not a supported image")
)

// ValidateImageBySniff checks the provided filename (extension) and the first bytes (head)
// against a whitelist of image types. Returns detected mime or an error.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedExtension
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", ErrHTMLContent
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", ErrXMLContent
	}

	if allowedMime[detected] {
		return detected, nil
	}

	return "", ErrUnsupportedContent
}
