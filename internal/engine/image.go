package engine

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// maxImageBytes bounds the size of an image attached to a chat message.
const maxImageBytes = 20 << 20

// loadImage reads an image file and returns its bytes with the detected
// MIME type. Files that are not images are rejected.
func loadImage(path string) ([]byte, string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	if fi.Size() > maxImageBytes {
		return nil, "", fmt.Errorf("image %s is %d bytes, limit is %d", path, fi.Size(), maxImageBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, "", fmt.Errorf("%s is %s, not an image", path, mt.String())
	}
	return data, mt.String(), nil
}

// dataURL encodes an image file as a base64 data URL.
func dataURL(path string) (string, error) {
	data, mime, err := loadImage(path)
	if err != nil {
		return "", err
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
