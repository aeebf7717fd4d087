package retrieval

import "encoding/json"

// asMap converts metadata to the JSON object form stored by remote
// backends. Empty fields are omitted.
func (m Metadata) asMap() map[string]any {
	out := map[string]any{"type": m.Type}
	for k, v := range map[string]string{
		"text":       m.Text,
		"pdf_name":   m.PDFName,
		"image_path": m.ImagePath,
		"context":    m.Context,
		"caption":    m.Caption,
	} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// metadataFromMap decodes a remote payload. Fields with unexpected types
// are left empty, so a payload without a string type yields Type == "".
func metadataFromMap(payload map[string]any) Metadata {
	str := func(key string) string {
		s, _ := payload[key].(string)
		return s
	}
	return Metadata{
		Type:      str("type"),
		Text:      str("text"),
		PDFName:   str("pdf_name"),
		ImagePath: str("image_path"),
		Context:   str("context"),
		Caption:   str("caption"),
	}
}

// decodeMetadata parses stored JSON metadata, returning the zero value for
// undecodable input.
func decodeMetadata(raw string) Metadata {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Metadata{}
	}
	return metadataFromMap(payload)
}
