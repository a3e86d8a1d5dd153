package fsadapter

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	MimeTypeUnknown = "application/octet-stream"
	MimeTypeText    = "text/plain"

	mimeTypeCheckPartSize = 512
)

// Types the UI previews inline. Minimal hosts ship without /etc/mime.types.
var extraTypes = map[string]string{
	".txt":  "text/plain",
	".log":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".zip":  "application/zip",
	".heic": "image/heic",
}

func init() {
	for ext, typ := range extraTypes {
		if mime.TypeByExtension(ext) == "" {
			_ = mime.AddExtensionType(ext, typ)
		}
	}
}

// ContentType infers the media type from the file extension, without parameters.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return MimeTypeUnknown
	}

	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return MimeTypeUnknown
	}

	mediaType, _, err := mime.ParseMediaType(typ)
	if err != nil {
		return MimeTypeUnknown
	}

	return mediaType
}

// HeaderType is the Content-Type header value for serving name: text gets a utf-8 charset.
func HeaderType(mediaType string) string {
	if strings.HasPrefix(mediaType, "text/") && !strings.Contains(mediaType, ";") {
		return mediaType + "; charset=utf-8"
	}

	return mediaType
}

// Sniff detects the type of r from its first bytes and rewinds it.
func Sniff(r io.ReadSeeker) (string, error) {
	buffer := make([]byte, mimeTypeCheckPartSize)
	n, err := r.Read(buffer)
	if err != nil && err != io.EOF {
		return MimeTypeUnknown, err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return MimeTypeUnknown, err
	}

	if n == 0 {
		return MimeTypeUnknown, nil
	}

	return http.DetectContentType(buffer[:n]), nil
}
