package extract

import (
	"bytes"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DetectMIMEType detects the MIME type of capture data from magic bytes.
func DetectMIMEType(data []byte) string {
	if len(data) < 12 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: RIFF....WEBP
	if data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	// WebM (EBML header), the browser's MediaRecorder default for video
	if data[0] == 0x1A && data[1] == 0x45 && data[2] == 0xDF && data[3] == 0xA3 {
		return "video/webm"
	}
	// MP4: ....ftyp
	if data[4] == 0x66 && data[5] == 0x74 && data[6] == 0x79 && data[7] == 0x70 {
		return "video/mp4"
	}
	return "application/octet-stream"
}

// ValidateDocumentImage checks that uploaded document bytes decode as a
// supported image (JPEG, PNG or WebP) before they are sent to the
// extraction service. Returns the detected format name.
func ValidateDocumentImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document image")
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported or corrupt document image: %w", err)
	}
	return format, nil
}

// ValidateVideoCapture checks that uploaded bytes look like a supported
// video container. Video is not decoded locally; the extraction service
// does the real work.
func ValidateVideoCapture(data []byte) error {
	switch DetectMIMEType(data) {
	case "video/webm", "video/mp4":
		return nil
	default:
		return fmt.Errorf("unsupported video capture format")
	}
}
