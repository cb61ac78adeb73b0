package message

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnknownMedia is returned when neither the filename nor the content
// identify an audio or image type.
var ErrUnknownMedia = errors.New("unknown media type")

var extensionTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".webm": "audio/webm",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".bmp":  "image/bmp",
}

// DetectMIME returns the audio or image MIME type of a payload. The filename
// extension wins when it is known; content sniffing is the fallback.
func DetectMIME(filename string, data []byte) (string, error) {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return t, nil
	}

	if len(data) > 0 {
		detected := mimetype.Detect(data).String()
		if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
			detected = mediaType
		}
		if strings.HasPrefix(detected, "audio/") || strings.HasPrefix(detected, "image/") {
			return detected, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownMedia, filename)
}

// Extension returns the preferred file extension for a MIME type, with the
// leading dot. Unknown types map to ".bin".
func Extension(mimeType string) string {
	best := ""
	for ext, t := range extensionTypes {
		if t == mimeType && (best == "" || ext < best) {
			best = ext
		}
	}
	if best != "" {
		return best
	}
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}
