package message

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeBase64 encodes data with standard padded base64.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes standard base64. A data URL prefix
// ("data:<mime>;base64,") is accepted and stripped.
func DecodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, ","); ok {
			s = payload
		}
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// DataURL wraps base64 data in a data URL.
func DataURL(mimeType, b64 string) string {
	return "data:" + mimeType + ";base64," + b64
}
